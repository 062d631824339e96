// Package store provides storage backends for Reunite.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/mattn/go-sqlite3"
	"github.com/reunite-bot/reunite/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists domain entities in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateCase(c models.Case) error {
	query := `INSERT INTO cases (` + caseColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	if _, err := s.db.Exec(query, caseInsertValues(c)...); err != nil {
		slog.Error("SQLiteStore CreateCase failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to insert case %s: %w", c.ID, err)
	}
	slog.Debug("SQLiteStore CreateCase succeeded", "id", c.ID, "owner", c.OwnerID)
	return nil
}

func (s *SQLiteStore) SaveDraftCase(c models.Case) error {
	query := `INSERT INTO cases (` + caseColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	 ON CONFLICT(id) DO UPDATE SET ` + caseUpsertSet + ` WHERE cases.status = ?`
	args := append(caseInsertValues(c), string(models.CaseStatusDraft))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		slog.Error("SQLiteStore SaveDraftCase failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to save draft case %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotDraft
	}
	slog.Debug("SQLiteStore SaveDraftCase succeeded", "id", c.ID, "owner", c.OwnerID)
	return nil
}

func (s *SQLiteStore) GetCase(id string) (*models.Case, error) {
	row := s.db.QueryRow(`SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCase failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCasesByOwner(ownerID string) ([]models.Case, error) {
	rows, err := s.db.Query(`SELECT `+caseColumns+` FROM cases WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		slog.Error("SQLiteStore ListCasesByOwner query failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			slog.Error("SQLiteStore ListCasesByOwner scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate case rows: %w", err)
	}
	return cases, nil
}

func (s *SQLiteStore) UpdateCaseField(id string, upd models.CaseFieldUpdate) error {
	column, value, err := caseFieldColumn(upd)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE cases SET `+column+` = ?, updated_at = ? WHERE id = ?`, value, time.Now(), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateCaseField failed", "error", err, "id", id, "field", upd.Field)
		return fmt.Errorf("failed to update case %s field %s: %w", id, upd.Field, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	slog.Debug("SQLiteStore UpdateCaseField succeeded", "id", id, "field", upd.Field)
	return nil
}

func (s *SQLiteStore) MarkCaseAdvertised(id, escrowTxID string) error {
	now := time.Now()
	res, err := s.db.Exec(
		`UPDATE cases SET status = ?, escrow_tx_id = ?, advertised_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(models.CaseStatusAdvertised), escrowTxID, now, now, id, string(models.CaseStatusDraft),
	)
	if err != nil {
		slog.Error("SQLiteStore MarkCaseAdvertised failed", "error", err, "id", id)
		return fmt.Errorf("failed to advertise case %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := s.GetCase(id)
		if err != nil {
			return err
		}
		if existing == nil {
			return models.ErrNotFound
		}
		return models.ErrNotDraft
	}
	slog.Info("SQLiteStore MarkCaseAdvertised succeeded", "id", id, "tx", escrowTxID)
	return nil
}

func (s *SQLiteStore) SaveWallet(w models.Wallet) error {
	_, err := s.db.Exec(
		`INSERT INTO wallets (user_id, address, mnemonic, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET address = excluded.address, mnemonic = excluded.mnemonic`,
		w.UserID, w.Address, w.Mnemonic, w.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveWallet failed", "error", err, "user", w.UserID)
		return fmt.Errorf("failed to save wallet for %s: %w", w.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) GetWallet(userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRow(`SELECT user_id, address, mnemonic, created_at FROM wallets WHERE user_id = ?`, userID).
		Scan(&w.UserID, &w.Address, &w.Mnemonic, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for %s: %w", userID, err)
	}
	return &w, nil
}

func (s *SQLiteStore) AddMobileNumber(m models.MobileNumber) error {
	_, err := s.db.Exec(
		`INSERT INTO mobile_numbers (id, user_id, number, verified, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.Number, m.Verified, m.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return models.ErrDuplicate
		}
		slog.Error("SQLiteStore AddMobileNumber failed", "error", err, "user", m.UserID)
		return fmt.Errorf("failed to insert mobile number: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMobileNumbers(userID string) ([]models.MobileNumber, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, number, verified, created_at FROM mobile_numbers WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query mobile numbers: %w", err)
	}
	defer rows.Close()

	var numbers []models.MobileNumber
	for rows.Next() {
		var m models.MobileNumber
		if err := rows.Scan(&m.ID, &m.UserID, &m.Number, &m.Verified, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mobile number row: %w", err)
		}
		numbers = append(numbers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mobile number rows: %w", err)
	}
	return numbers, nil
}

func (s *SQLiteStore) MarkMobileVerified(userID, number string) error {
	res, err := s.db.Exec(`UPDATE mobile_numbers SET verified = 1 WHERE user_id = ? AND number = ?`, userID, number)
	if err != nil {
		return fmt.Errorf("failed to mark mobile verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveUserPreference(p models.UserPreference) error {
	_, err := s.db.Exec(
		`INSERT INTO user_preferences (user_id, language, country, city, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET language = excluded.language, country = excluded.country,
		 city = excluded.city, updated_at = excluded.updated_at`,
		p.UserID, p.Language, p.Country, p.City, time.Now(),
	)
	if err != nil {
		slog.Error("SQLiteStore SaveUserPreference failed", "error", err, "user", p.UserID)
		return fmt.Errorf("failed to save preference for %s: %w", p.UserID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUserPreference(userID string) (*models.UserPreference, error) {
	var p models.UserPreference
	err := s.db.QueryRow(
		`SELECT user_id, language, country, city, updated_at FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Language, &p.Country, &p.City, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference for %s: %w", userID, err)
	}
	return &p, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

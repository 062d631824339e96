package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/lib/pq"
	"github.com/reunite-bot/reunite/internal/models"
)

// Connection pool settings for the PostgreSQL backend.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// pqUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pqUniqueViolation = "23505"

// PostgresStore persists domain entities in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	slog.Debug("Running PostgreSQL migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateCase(c models.Case) error {
	query := `INSERT INTO cases (` + caseColumns + `) VALUES
		($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`
	if _, err := s.db.Exec(query, caseInsertValues(c)...); err != nil {
		slog.Error("PostgresStore CreateCase failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to insert case %s: %w", c.ID, err)
	}
	slog.Debug("PostgresStore CreateCase succeeded", "id", c.ID, "owner", c.OwnerID)
	return nil
}

func (s *PostgresStore) SaveDraftCase(c models.Case) error {
	query := `INSERT INTO cases (` + caseColumns + `) VALUES
		($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT (id) DO UPDATE SET ` + caseUpsertSet + ` WHERE cases.status = $25`
	args := append(caseInsertValues(c), string(models.CaseStatusDraft))
	res, err := s.db.Exec(query, args...)
	if err != nil {
		slog.Error("PostgresStore SaveDraftCase failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to save draft case %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotDraft
	}
	slog.Debug("PostgresStore SaveDraftCase succeeded", "id", c.ID, "owner", c.OwnerID)
	return nil
}

func (s *PostgresStore) GetCase(id string) (*models.Case, error) {
	row := s.db.QueryRow(`SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCase failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get case %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCasesByOwner(ownerID string) ([]models.Case, error) {
	rows, err := s.db.Query(`SELECT `+caseColumns+` FROM cases WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		slog.Error("PostgresStore ListCasesByOwner query failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			slog.Error("PostgresStore ListCasesByOwner scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan case row: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate case rows: %w", err)
	}
	return cases, nil
}

func (s *PostgresStore) UpdateCaseField(id string, upd models.CaseFieldUpdate) error {
	column, value, err := caseFieldColumn(upd)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE cases SET `+column+` = $1, updated_at = $2 WHERE id = $3`, value, time.Now(), id)
	if err != nil {
		slog.Error("PostgresStore UpdateCaseField failed", "error", err, "id", id, "field", upd.Field)
		return fmt.Errorf("failed to update case %s field %s: %w", id, upd.Field, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	slog.Debug("PostgresStore UpdateCaseField succeeded", "id", id, "field", upd.Field)
	return nil
}

func (s *PostgresStore) MarkCaseAdvertised(id, escrowTxID string) error {
	now := time.Now()
	res, err := s.db.Exec(
		`UPDATE cases SET status = $1, escrow_tx_id = $2, advertised_at = $3, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		string(models.CaseStatusAdvertised), escrowTxID, now, now, id, string(models.CaseStatusDraft),
	)
	if err != nil {
		slog.Error("PostgresStore MarkCaseAdvertised failed", "error", err, "id", id)
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
	slog.Info("PostgresStore MarkCaseAdvertised succeeded", "id", id, "tx", escrowTxID)
	return nil
}

func (s *PostgresStore) SaveWallet(w models.Wallet) error {
	_, err := s.db.Exec(
		`INSERT INTO wallets (user_id, address, mnemonic, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET address = EXCLUDED.address, mnemonic = EXCLUDED.mnemonic`,
		w.UserID, w.Address, w.Mnemonic, w.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveWallet failed", "error", err, "user", w.UserID)
		return fmt.Errorf("failed to save wallet for %s: %w", w.UserID, err)
	}
	return nil
}

func (s *PostgresStore) GetWallet(userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRow(`SELECT user_id, address, mnemonic, created_at FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.UserID, &w.Address, &w.Mnemonic, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for %s: %w", userID, err)
	}
	return &w, nil
}

func (s *PostgresStore) AddMobileNumber(m models.MobileNumber) error {
	_, err := s.db.Exec(
		`INSERT INTO mobile_numbers (id, user_id, number, verified, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.Number, m.Verified, m.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return models.ErrDuplicate
		}
		slog.Error("PostgresStore AddMobileNumber failed", "error", err, "user", m.UserID)
		return fmt.Errorf("failed to insert mobile number: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMobileNumbers(userID string) ([]models.MobileNumber, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, number, verified, created_at FROM mobile_numbers WHERE user_id = $1 ORDER BY created_at`,
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

func (s *PostgresStore) MarkMobileVerified(userID, number string) error {
	res, err := s.db.Exec(`UPDATE mobile_numbers SET verified = TRUE WHERE user_id = $1 AND number = $2`, userID, number)
	if err != nil {
		return fmt.Errorf("failed to mark mobile verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveUserPreference(p models.UserPreference) error {
	_, err := s.db.Exec(
		`INSERT INTO user_preferences (user_id, language, country, city, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET language = EXCLUDED.language, country = EXCLUDED.country,
		 city = EXCLUDED.city, updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Language, p.Country, p.City, time.Now(),
	)
	if err != nil {
		slog.Error("PostgresStore SaveUserPreference failed", "error", err, "user", p.UserID)
		return fmt.Errorf("failed to save preference for %s: %w", p.UserID, err)
	}
	return nil
}

func (s *PostgresStore) GetUserPreference(userID string) (*models.UserPreference, error) {
	var p models.UserPreference
	err := s.db.QueryRow(
		`SELECT user_id, language, country, city, updated_at FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Language, &p.Country, &p.City, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference for %s: %w", userID, err)
	}
	return &p, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

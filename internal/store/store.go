// Package store provides storage backends for Reunite.
//
// It persists cases, wallets, mobile numbers and user preferences, with an
// in-memory store for tests, plus SQLite and PostgreSQL backends.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reunite-bot/reunite/internal/models"
)

// Store defines persistence for the bot's domain entities. Lookups that find
// nothing return (nil, nil); callers treat a nil entity as absence.
type Store interface {
	// CreateCase inserts a new case. An existing ID fails with
	// models.ErrDuplicate.
	CreateCase(c models.Case) error
	// SaveDraftCase inserts the case or, when the existing row is still a
	// draft, replaces it with the given values (keeping the original
	// creation time). A non-draft row is left untouched and the call fails
	// with models.ErrNotDraft, so a retried intake can never rewrite an
	// advertised case.
	SaveDraftCase(c models.Case) error
	// GetCase returns a case by ID, or nil when absent.
	GetCase(id string) (*models.Case, error)
	// ListCasesByOwner returns the owner's cases, newest first.
	ListCasesByOwner(ownerID string) ([]models.Case, error)
	// UpdateCaseField applies a single enumerated field update.
	UpdateCaseField(id string, upd models.CaseFieldUpdate) error
	// MarkCaseAdvertised promotes a draft case to advertised, recording the
	// escrow transaction. Fails with models.ErrNotDraft unless the case is
	// currently a draft, so the promotion can happen at most once.
	MarkCaseAdvertised(id, escrowTxID string) error

	// SaveWallet stores a user's custodial wallet.
	SaveWallet(w models.Wallet) error
	// GetWallet returns the user's wallet, or nil when absent.
	GetWallet(userID string) (*models.Wallet, error)

	// AddMobileNumber registers a phone number for a user. Duplicate
	// (user, number) pairs fail with models.ErrDuplicate.
	AddMobileNumber(m models.MobileNumber) error
	// ListMobileNumbers returns the user's registered numbers, oldest first.
	ListMobileNumbers(userID string) ([]models.MobileNumber, error)
	// MarkMobileVerified flags a registered number as verified.
	MarkMobileVerified(userID, number string) error

	// SaveUserPreference upserts a user's settings.
	SaveUserPreference(p models.UserPreference) error
	// GetUserPreference returns the user's settings, or nil when absent.
	GetUserPreference(userID string) (*models.UserPreference, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType determines the database type from a DSN string.
// Returns "postgres" for PostgreSQL URLs and key=value DSNs, "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store used in tests and gateway-less
// deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	cases   map[string]models.Case
	wallets map[string]models.Wallet
	mobiles map[string][]models.MobileNumber
	prefs   map[string]models.UserPreference
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cases:   make(map[string]models.Case),
		wallets: make(map[string]models.Wallet),
		mobiles: make(map[string][]models.MobileNumber),
		prefs:   make(map[string]models.UserPreference),
	}
}

func (s *InMemoryStore) CreateCase(c models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cases[c.ID]; exists {
		return models.ErrDuplicate
	}
	s.cases[c.ID] = c
	return nil
}

func (s *InMemoryStore) SaveDraftCase(c models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cases[c.ID]; ok {
		if existing.Status != models.CaseStatusDraft {
			return models.ErrNotDraft
		}
		c.CreatedAt = existing.CreatedAt
	}
	s.cases[c.ID] = c
	return nil
}

func (s *InMemoryStore) GetCase(id string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *InMemoryStore) ListCasesByOwner(ownerID string) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Case
	for _, c := range s.cases {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateCaseField(id string, upd models.CaseFieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return models.ErrNotFound
	}
	applyCaseFieldUpdate(&c, upd)
	c.UpdatedAt = time.Now()
	s.cases[id] = c
	return nil
}

func (s *InMemoryStore) MarkCaseAdvertised(id, escrowTxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return models.ErrNotFound
	}
	if c.Status != models.CaseStatusDraft {
		return models.ErrNotDraft
	}
	now := time.Now()
	c.Status = models.CaseStatusAdvertised
	c.EscrowTxID = escrowTxID
	c.AdvertisedAt = &now
	c.UpdatedAt = now
	s.cases[id] = c
	return nil
}

func (s *InMemoryStore) SaveWallet(w models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.UserID] = w
	return nil
}

func (s *InMemoryStore) GetWallet(userID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *InMemoryStore) AddMobileNumber(m models.MobileNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.mobiles[m.UserID] {
		if existing.Number == m.Number {
			return models.ErrDuplicate
		}
	}
	s.mobiles[m.UserID] = append(s.mobiles[m.UserID], m)
	return nil
}

func (s *InMemoryStore) ListMobileNumbers(userID string) ([]models.MobileNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MobileNumber(nil), s.mobiles[userID]...), nil
}

func (s *InMemoryStore) MarkMobileVerified(userID, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.mobiles[userID] {
		if existing.Number == number {
			s.mobiles[userID][i].Verified = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *InMemoryStore) SaveUserPreference(p models.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	s.prefs[p.UserID] = p
	return nil
}

func (s *InMemoryStore) GetUserPreference(userID string) (*models.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) Close() error { return nil }

// applyCaseFieldUpdate writes one enumerated field update onto a case.
func applyCaseFieldUpdate(c *models.Case, upd models.CaseFieldUpdate) {
	switch upd.Field {
	case models.CaseFieldSubjectName:
		c.SubjectName = upd.Text
	case models.CaseFieldRelation:
		c.Relation = upd.Text
	case models.CaseFieldSex:
		c.Sex = upd.Text
	case models.CaseFieldAge:
		c.Age = upd.Number
	case models.CaseFieldHairColor:
		c.HairColor = upd.Text
	case models.CaseFieldEyeColor:
		c.EyeColor = upd.Text
	case models.CaseFieldHeightCm:
		c.HeightCm = upd.Number
	case models.CaseFieldWeightKg:
		c.WeightKg = upd.Number
	case models.CaseFieldFeatures:
		c.Features = upd.Text
	case models.CaseFieldReason:
		c.Reason = upd.Text
	}
}

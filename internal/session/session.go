// Package session provides per-user, per-flow conversation state storage.
//
// Sessions are ephemeral process-local state: they are created lazily on
// first access, mutated by flow handlers, and cleared when a flow reaches a
// terminal state. Nothing here survives a restart by design.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/reunite-bot/reunite/internal/models"
)

// Store defines access to per-(user, flow) conversation state and scratch
// data. Implementations must be safe for concurrent use.
type Store interface {
	// GetCurrentState returns the current state, or "" when no session exists.
	GetCurrentState(ctx context.Context, userID string, flowType models.FlowType) (models.StateType, error)

	// SetCurrentState updates the current state, creating the session if needed.
	SetCurrentState(ctx context.Context, userID string, flowType models.FlowType, state models.StateType) error

	// GetStateData returns the scratch value for key, or "" when absent.
	GetStateData(ctx context.Context, userID string, flowType models.FlowType, key models.DataKey) (string, error)

	// SetStateData stores a scratch value, creating the session if needed.
	SetStateData(ctx context.Context, userID string, flowType models.FlowType, key models.DataKey, value string) error

	// ResetState clears the session: state back to absent, scratch emptied.
	ResetState(ctx context.Context, userID string, flowType models.FlowType) error
}

type sessionKey struct {
	userID   string
	flowType models.FlowType
}

// InMemoryStore is the default Store implementation, backed by a map keyed by
// (user, flow).
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[sessionKey]*models.FlowState
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[sessionKey]*models.FlowState)}
}

// GetCurrentState retrieves the current state for a user in a flow.
func (s *InMemoryStore) GetCurrentState(ctx context.Context, userID string, flowType models.FlowType) (models.StateType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs, ok := s.sessions[sessionKey{userID, flowType}]
	if !ok {
		return "", nil
	}
	return fs.CurrentState, nil
}

// SetCurrentState updates the current state for a user in a flow.
func (s *InMemoryStore) SetCurrentState(ctx context.Context, userID string, flowType models.FlowType, state models.StateType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	key := sessionKey{userID, flowType}
	fs, ok := s.sessions[key]
	if !ok {
		fs = &models.FlowState{
			UserID:    userID,
			FlowType:  flowType,
			StateData: make(map[models.DataKey]string),
			CreatedAt: now,
		}
		s.sessions[key] = fs
	}
	fs.CurrentState = state
	fs.UpdatedAt = now
	slog.Debug("session.SetCurrentState", "userID", userID, "flowType", flowType, "state", state)
	return nil
}

// GetStateData retrieves scratch data associated with the user's session.
func (s *InMemoryStore) GetStateData(ctx context.Context, userID string, flowType models.FlowType, key models.DataKey) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs, ok := s.sessions[sessionKey{userID, flowType}]
	if !ok || fs.StateData == nil {
		return "", nil
	}
	return fs.StateData[key], nil
}

// SetStateData stores scratch data associated with the user's session.
func (s *InMemoryStore) SetStateData(ctx context.Context, userID string, flowType models.FlowType, key models.DataKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	k := sessionKey{userID, flowType}
	fs, ok := s.sessions[k]
	if !ok {
		fs = &models.FlowState{
			UserID:    userID,
			FlowType:  flowType,
			StateData: make(map[models.DataKey]string),
			CreatedAt: now,
		}
		s.sessions[k] = fs
	}
	if fs.StateData == nil {
		fs.StateData = make(map[models.DataKey]string)
	}
	fs.StateData[key] = value
	fs.UpdatedAt = now
	return nil
}

// ResetState removes all session state for a user in a flow. Idempotent.
func (s *InMemoryStore) ResetState(ctx context.Context, userID string, flowType models.FlowType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionKey{userID, flowType})
	slog.Debug("session.ResetState", "userID", userID, "flowType", flowType)
	return nil
}

// Scope binds a Store to one (user, flow) pair so handlers can read and write
// scratch data without repeating the key arguments.
type Scope struct {
	store    Store
	userID   string
	flowType models.FlowType
}

// NewScope creates a scoped view over store for the given user and flow.
func NewScope(store Store, userID string, flowType models.FlowType) *Scope {
	return &Scope{store: store, userID: userID, flowType: flowType}
}

// UserID returns the user this scope is bound to.
func (sc *Scope) UserID() string { return sc.userID }

// Flow returns the flow this scope is bound to.
func (sc *Scope) Flow() models.FlowType { return sc.flowType }

// Get returns the scratch value for key, or "" when absent.
func (sc *Scope) Get(ctx context.Context, key models.DataKey) (string, error) {
	return sc.store.GetStateData(ctx, sc.userID, sc.flowType, key)
}

// Put stores a scratch value.
func (sc *Scope) Put(ctx context.Context, key models.DataKey, value string) error {
	return sc.store.SetStateData(ctx, sc.userID, sc.flowType, key, value)
}

// State returns the current state of the bound session.
func (sc *Scope) State(ctx context.Context) (models.StateType, error) {
	return sc.store.GetCurrentState(ctx, sc.userID, sc.flowType)
}

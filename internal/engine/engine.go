package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
)

// Error variables surfaced by Dispatch.
var (
	// ErrNoMatch indicates the event matched no active session and no entry
	// point; the caller decides what (if anything) to tell the user.
	ErrNoMatch = errors.New("event matched no conversation")
	// ErrUndeclaredState indicates a handler returned a state the transition
	// did not declare. This is a configuration fault, not a user error.
	ErrUndeclaredState = errors.New("handler returned undeclared state")
)

// Engine routes inbound events to conversation handlers and maintains the
// per-user current state through the session store.
//
// Conversations are independent state machines: a user may hold an active
// session in several of them at once, and an event is consumed by exactly one
// conversation. Events are dispatched one at a time from the transport's
// channel, so no locking is needed around session mutation beyond what the
// store itself provides.
type Engine struct {
	sessions      session.Store
	conversations []*Conversation
}

// New creates an engine over the given session store and validates every
// conversation definition. A misconfigured conversation fails here, at
// startup.
func New(sessions session.Store, conversations ...*Conversation) (*Engine, error) {
	seen := make(map[models.FlowType]bool)
	for _, c := range conversations {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid conversation: %w", err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate conversation ID %q", c.ID)
		}
		seen[c.ID] = true
	}
	slog.Debug("Engine.New: conversations registered", "count", len(conversations))
	return &Engine{sessions: sessions, conversations: conversations}, nil
}

// Dispatch routes one event. Resolution order:
//
//  1. a matching transition of an active session's current state,
//  2. an entry transition of a conversation with no active session
//     (reentry after a terminal state is allowed),
//  3. the fallback of the first active conversation, state unchanged.
//
// If nothing applies, ErrNoMatch is returned. A handler error leaves the
// session state unchanged so the user can retry the same step.
func (e *Engine) Dispatch(ctx context.Context, ev models.Event) error {
	for _, c := range e.conversations {
		state, err := e.sessions.GetCurrentState(ctx, ev.UserID, c.ID)
		if err != nil {
			return fmt.Errorf("failed to get current state: %w", err)
		}
		if state == "" {
			continue
		}

		transitions, ok := c.States[state]
		if !ok {
			// Session points at a state the conversation no longer declares.
			slog.Error("Engine.Dispatch: session in undeclared state",
				"conversation", c.ID, "state", state, "userID", ev.UserID, "eventKind", ev.Kind)
			return fmt.Errorf("conversation %s state %s: %w", c.ID, state, ErrUndeclaredState)
		}
		for i := range transitions {
			t := &transitions[i]
			if !t.Match(ev) {
				continue
			}
			return e.runTransition(ctx, c, t, state, ev)
		}
	}

	// No active state consumed the event; try entry points.
	for _, c := range e.conversations {
		state, err := e.sessions.GetCurrentState(ctx, ev.UserID, c.ID)
		if err != nil {
			return fmt.Errorf("failed to get current state: %w", err)
		}
		if state != "" {
			continue
		}
		for i := range c.Entry {
			t := &c.Entry[i]
			if !t.Match(ev) {
				continue
			}
			slog.Info("Engine.Dispatch: conversation started", "conversation", c.ID, "userID", ev.UserID)
			return e.runTransition(ctx, c, t, "", ev)
		}
	}

	// Fallback of the first active conversation, without changing state.
	for _, c := range e.conversations {
		state, err := e.sessions.GetCurrentState(ctx, ev.UserID, c.ID)
		if err != nil {
			return fmt.Errorf("failed to get current state: %w", err)
		}
		if state == "" {
			continue
		}
		slog.Debug("Engine.Dispatch: invoking fallback",
			"conversation", c.ID, "state", state, "userID", ev.UserID)
		sc := session.NewScope(e.sessions, ev.UserID, c.ID)
		next, err := c.Fallback(ctx, ev, sc)
		if err != nil {
			slog.Error("Engine.Dispatch: fallback handler failed",
				"error", err, "conversation", c.ID, "state", state, "userID", ev.UserID)
			return fmt.Errorf("fallback handler failed: %w", err)
		}
		// The fallback may terminate the flow (universal cancel); any other
		// return leaves the state exactly where it was.
		if next == models.StateEnd {
			return e.sessions.ResetState(ctx, ev.UserID, c.ID)
		}
		return nil
	}

	return ErrNoMatch
}

// runTransition executes one transition and stores the resulting state.
func (e *Engine) runTransition(ctx context.Context, c *Conversation, t *Transition, from models.StateType, ev models.Event) error {
	sc := session.NewScope(e.sessions, ev.UserID, c.ID)
	next, err := t.Handle(ctx, ev, sc)
	if err != nil {
		// Collaborator failures are reported to the user by the handler;
		// the state stays put so the same step can be retried.
		slog.Error("Engine.Dispatch: handler failed",
			"error", err, "conversation", c.ID, "state", from, "userID", ev.UserID, "eventKind", ev.Kind)
		return fmt.Errorf("handler failed in %s/%s: %w", c.ID, from, err)
	}

	if next == models.StateEnd {
		slog.Info("Engine.Dispatch: conversation finished", "conversation", c.ID, "userID", ev.UserID)
		return e.sessions.ResetState(ctx, ev.UserID, c.ID)
	}

	if !t.declaresNext(next) {
		slog.Error("Engine.Dispatch: handler returned undeclared state",
			"conversation", c.ID, "state", from, "next", next, "userID", ev.UserID, "eventKind", ev.Kind)
		return fmt.Errorf("conversation %s state %s returned %s: %w", c.ID, from, next, ErrUndeclaredState)
	}
	if _, ok := c.States[next]; !ok {
		slog.Error("Engine.Dispatch: handler returned unknown state",
			"conversation", c.ID, "state", from, "next", next, "userID", ev.UserID, "eventKind", ev.Kind)
		return fmt.Errorf("conversation %s state %s returned %s: %w", c.ID, from, next, ErrUndeclaredState)
	}

	if err := e.sessions.SetCurrentState(ctx, ev.UserID, c.ID, next); err != nil {
		return fmt.Errorf("failed to store next state: %w", err)
	}
	if from != next {
		slog.Info("Engine.Dispatch: state transition",
			"conversation", c.ID, "from", from, "to", next, "userID", ev.UserID)
	}
	return nil
}

// Cancel force-terminates every conversation for the user, clearing scratch
// data. Always succeeds on sessions that do not exist.
func (e *Engine) Cancel(ctx context.Context, userID string) error {
	for _, c := range e.conversations {
		if err := e.sessions.ResetState(ctx, userID, c.ID); err != nil {
			return fmt.Errorf("failed to reset %s session: %w", c.ID, err)
		}
	}
	slog.Info("Engine.Cancel: all sessions reset", "userID", userID)
	return nil
}

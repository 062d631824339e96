// Package engine implements the conversation state machine that routes
// inbound user events to flow handlers.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
)

// Handler processes one event for a user in a given state and returns the
// next state. Returning the current state re-prompts in place; returning
// models.StateEnd terminates the flow and clears the session.
type Handler func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error)

// Transition pairs an event matcher with a handler. Next declares every state
// the handler may return; a handler returning a state outside Next is a
// configuration fault, and an undeclared state in Next is rejected when the
// conversation is registered.
type Transition struct {
	Match  func(ev models.Event) bool
	Handle Handler
	Next   []models.StateType
}

// Conversation is a static flow definition: an entry point, a set of named
// states each with an ordered transition list (first match wins), and a
// fallback invoked when no transition of the current state matches.
type Conversation struct {
	ID       models.FlowType
	Entry    []Transition
	States   map[models.StateType][]Transition
	Fallback Handler
}

// Validate checks the conversation definition for misconfiguration: nil
// matchers or handlers, and transitions declaring next states that are not
// part of the conversation. Called once at registration so that a bad handler
// wiring fails at startup rather than mid-conversation.
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("conversation has no ID")
	}
	if len(c.Entry) == 0 {
		return fmt.Errorf("conversation %s has no entry transitions", c.ID)
	}
	if len(c.States) == 0 {
		return fmt.Errorf("conversation %s has no states", c.ID)
	}
	if c.Fallback == nil {
		return fmt.Errorf("conversation %s has no fallback handler", c.ID)
	}

	check := func(where string, ts []Transition) error {
		for i, t := range ts {
			if t.Match == nil {
				return fmt.Errorf("conversation %s: %s transition %d has nil matcher", c.ID, where, i)
			}
			if t.Handle == nil {
				return fmt.Errorf("conversation %s: %s transition %d has nil handler", c.ID, where, i)
			}
			if len(t.Next) == 0 {
				return fmt.Errorf("conversation %s: %s transition %d declares no next states", c.ID, where, i)
			}
			for _, next := range t.Next {
				if next == models.StateEnd {
					continue
				}
				if _, ok := c.States[next]; !ok {
					return fmt.Errorf("conversation %s: %s transition %d declares undeclared state %q", c.ID, where, i, next)
				}
			}
		}
		return nil
	}

	if err := check("entry", c.Entry); err != nil {
		return err
	}
	for state, ts := range c.States {
		if err := check(string(state), ts); err != nil {
			return err
		}
	}
	return nil
}

// declaresNext reports whether the transition declared next as reachable.
func (t *Transition) declaresNext(next models.StateType) bool {
	for _, n := range t.Next {
		if n == next {
			return true
		}
	}
	return false
}

// Matcher helpers shared by flow definitions.

// MatchCommand matches a text event equal to the command, case-insensitively
// and ignoring surrounding whitespace.
func MatchCommand(command string) func(models.Event) bool {
	return func(ev models.Event) bool {
		return ev.Kind == models.EventText && strings.EqualFold(strings.TrimSpace(ev.Text), command)
	}
}

// MatchText matches any non-empty text event that is not a command. Commands
// (leading "/") are left for entry points and the fallback, so "/cancel"
// works even in free-text states.
func MatchText(ev models.Event) bool {
	if ev.Kind != models.EventText {
		return false
	}
	text := strings.TrimSpace(ev.Text)
	return text != "" && !strings.HasPrefix(text, "/")
}

// MatchImage matches an image event with a downloaded media file.
func MatchImage(ev models.Event) bool {
	return ev.Kind == models.EventImage && ev.MediaPath != ""
}

// MatchOptionPrefix matches an option event whose callback data starts with
// the given prefix.
func MatchOptionPrefix(prefix string) func(models.Event) bool {
	return func(ev models.Event) bool {
		return ev.Kind == models.EventOption && strings.HasPrefix(ev.Data, prefix)
	}
}

// MatchAny matches every event. Used as the last transition of a state to
// re-prompt on otherwise-unhandled input.
func MatchAny(ev models.Event) bool { return true }

// MatchNonCommand matches every event except command-like text. Catch-all
// transitions use it so commands still reach entry points and the fallback.
func MatchNonCommand(ev models.Event) bool {
	return !(ev.Kind == models.EventText && strings.HasPrefix(strings.TrimSpace(ev.Text), "/"))
}

// Package messaging provides the pluggable transport abstraction between the
// outside world and the conversation engine.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/reunite-bot/reunite/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the event channel
	DefaultChannelBufferSize = 100
	// MinPhoneDigits is the minimum digit count for a valid recipient
	MinPhoneDigits = 6
)

// ErrServiceStopped is returned when operations are attempted on a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction. Inbound traffic
// arrives as models.Event values on the Events channel; option prompts are
// rendered in whatever form the transport supports.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendOptions sends a message followed by a list of selectable options.
	// A subsequent numeric reply from the recipient is translated into an
	// option event carrying the chosen button's data.
	SendOptions(ctx context.Context, to string, body string, buttons []models.Button) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of inbound user events.
	Events() <-chan models.Event
}

// CanonicalizeRecipient strips non-digits and validates the remaining number.
// Shared by all transport implementations.
func CanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneDigits)
	}
	if recipient != canonical {
		slog.Debug("Messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// RenderOptions appends a numbered option list to a message body. The reply
// "N" selects the Nth option.
func RenderOptions(body string, buttons []models.Button) string {
	var b strings.Builder
	b.WriteString(body)
	for i, btn := range buttons {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(btn.Label)
	}
	return b.String()
}

// optionTracker remembers the most recent option list offered to each
// recipient so a numeric reply can be resolved to the chosen option.
type optionTracker struct {
	mu      sync.Mutex
	pending map[string][]models.Button
}

func newOptionTracker() *optionTracker {
	return &optionTracker{pending: make(map[string][]models.Button)}
}

// offer replaces the recipient's pending options.
func (t *optionTracker) offer(recipient string, buttons []models.Button) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[recipient] = buttons
}

// resolve interprets text as an option pick when a prompt is pending and the
// text is a number within range. The pending options stay live until the next
// outbound message supersedes them, so a reply whose handler fails can simply
// be repeated.
func (t *optionTracker) resolve(recipient, text string) (models.Button, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	buttons, ok := t.pending[recipient]
	if !ok || len(buttons) == 0 {
		return models.Button{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(buttons) {
		return models.Button{}, false
	}
	return buttons[n-1], true
}

// clear forgets the recipient's pending options. Called when a plain message
// supersedes the last option prompt.
func (t *optionTracker) clear(recipient string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, recipient)
}

package messaging

import (
	"context"
	"sync"

	"github.com/reunite-bot/reunite/internal/models"
)

// SentMessage records one outbound message for assertions.
type SentMessage struct {
	To      string
	Body    string
	Buttons []models.Button
}

// MockService is an in-memory Service for tests and local development.
// Inbound events are injected with Inject; outbound traffic is recorded.
type MockService struct {
	mu      sync.Mutex
	sent    []SentMessage
	events  chan models.Event
	options *optionTracker
	stopped bool
}

// NewMockService creates an empty mock transport.
func NewMockService() *MockService {
	return &MockService{
		events:  make(chan models.Event, DefaultChannelBufferSize),
		options: newOptionTracker(),
	}
}

func (s *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizeRecipient(recipient)
}

func (s *MockService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServiceStopped
	}
	s.sent = append(s.sent, SentMessage{To: canonicalTo, Body: body})
	s.options.clear(canonicalTo)
	return nil
}

func (s *MockService) SendOptions(ctx context.Context, to string, body string, buttons []models.Button) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServiceStopped
	}
	s.sent = append(s.sent, SentMessage{To: canonicalTo, Body: body, Buttons: buttons})
	s.options.offer(canonicalTo, buttons)
	return nil
}

func (s *MockService) Start(ctx context.Context) error { return nil }

func (s *MockService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.events)
	return nil
}

func (s *MockService) Events() <-chan models.Event {
	return s.events
}

// Inject delivers an inbound event as if it arrived from the transport.
// Numeric text replies after an option prompt are translated the same way
// the real transport translates them.
func (s *MockService) Inject(ev models.Event) {
	if ev.Kind == models.EventText {
		if btn, ok := s.options.resolve(ev.UserID, ev.Text); ok {
			ev = models.Event{UserID: ev.UserID, Kind: models.EventOption, Text: btn.Label, Data: btn.Data, Time: ev.Time}
		}
	}
	s.events <- ev
}

// Sent returns a copy of all recorded outbound messages.
func (s *MockService) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// LastSent returns the most recent outbound message, or nil when none exists.
func (s *MockService) LastSent() *SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	m := s.sent[len(s.sent)-1]
	return &m
}

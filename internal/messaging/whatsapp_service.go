package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/whatsapp"
)

// DefaultChannelTimeout defines the timeout for non-blocking channel sends.
const DefaultChannelTimeout = 1 * time.Second

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // full client for event handling and media download
	events   chan models.Event
	options  *optionTracker
	done     chan struct{}
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:  client,
		events:  make(chan models.Event, DefaultChannelBufferSize),
		options: newOptionTracker(),
		done:    make(chan struct{}),
	}

	// Only a full client can register event handlers and download media.
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizeRecipient(recipient)
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
		return nil
	}
	go s.handleEvents(ctx)
	return nil
}

// Stop stops background processing and closes the event channel.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.events)
	return nil
}

func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	slog.Debug("WhatsAppService SendMessage invoked", "to", canonicalTo, "body_length", len(body))
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	s.options.clear(canonicalTo)
	return nil
}

// SendOptions renders the buttons as a numbered list. WhatsApp text replies
// with the option number select the matching button.
func (s *WhatsAppService) SendOptions(ctx context.Context, to string, body string, buttons []models.Button) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, RenderOptions(body, buttons)); err != nil {
		slog.Error("WhatsAppService SendOptions error", "error", err, "to", canonicalTo)
		return err
	}
	s.options.offer(canonicalTo, buttons)
	return nil
}

// Events returns the channel of inbound user events.
func (s *WhatsAppService) Events() <-chan models.Event {
	return s.events
}

// handleEvents registers the whatsmeow event handler and runs until the
// context is cancelled.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	slog.Debug("WhatsAppService handleEvents starting")
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(ctx, msg)
		}
	})

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage translates one WhatsApp message into a models.Event.
func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil {
		return
	}

	from, err := s.ValidateAndCanonicalizeRecipient(evt.Info.Sender.User)
	if err != nil {
		slog.Warn("WhatsAppService dropping message from invalid sender", "error", err)
		return
	}

	var event models.Event
	switch {
	case evt.Message.GetImageMessage() != nil:
		path, err := s.waClient.DownloadImage(ctx, evt)
		if err != nil {
			slog.Error("WhatsAppService image download failed", "error", err, "from", from)
			return
		}
		event = models.Event{UserID: from, Kind: models.EventImage, MediaPath: path, Time: evt.Info.Timestamp.Unix()}
	case evt.Message.Conversation != nil || (evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil):
		text := evt.Message.GetConversation()
		if text == "" {
			text = evt.Message.ExtendedTextMessage.GetText()
		}
		if len(text) > models.MaxTextLength {
			text = text[:models.MaxTextLength]
		}
		if btn, ok := s.options.resolve(from, text); ok {
			event = models.Event{UserID: from, Kind: models.EventOption, Text: btn.Label, Data: btn.Data, Time: evt.Info.Timestamp.Unix()}
		} else {
			event = models.Event{UserID: from, Kind: models.EventText, Text: text, Time: evt.Info.Timestamp.Unix()}
		}
	default:
		slog.Debug("WhatsAppService ignoring unsupported message type", "from", from)
		return
	}

	select {
	case s.events <- event:
		slog.Debug("WhatsAppService event forwarded", "from", from, "kind", event.Kind)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService events channel blocked, dropping event", "from", from, "timeout", DefaultChannelTimeout)
	}
}

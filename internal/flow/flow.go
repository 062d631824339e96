// Package flow defines the bot's conversations: case intake, wallet
// management, settings and case listing. Each conversation is a static
// engine.Conversation built over the shared Deps collaborators.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/reunite-bot/reunite/internal/geo"
	"github.com/reunite-bot/reunite/internal/i18n"
	"github.com/reunite-bot/reunite/internal/media"
	"github.com/reunite-bot/reunite/internal/messaging"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
	"github.com/reunite-bot/reunite/internal/sms"
	"github.com/reunite-bot/reunite/internal/store"
	"github.com/reunite-bot/reunite/internal/wallet"
)

// Deps bundles the collaborators every conversation builds on.
type Deps struct {
	Msg            messaging.Service
	Store          store.Store
	Wallets        *wallet.Manager
	Verifier       sms.Verifier
	Media          media.Uploader
	Geo            *geo.Index
	Loc            *i18n.Table
	PageSize       int
	RewardCurrency string
}

// language returns the user's stored language, or the default.
func (d *Deps) language(userID string) string {
	pref, err := d.Store.GetUserPreference(userID)
	if err != nil || pref == nil || pref.Language == "" {
		return i18n.DefaultLanguage
	}
	return pref.Language
}

// text looks up a template in the user's language.
func (d *Deps) text(userID, key string) string {
	return d.Loc.Lookup(d.language(userID), key)
}

// send delivers a localized message, substituting args into the template.
func (d *Deps) send(ctx context.Context, userID, key string, args ...any) error {
	body := d.text(userID, key)
	if len(args) > 0 {
		body = fmt.Sprintf(body, args...)
	}
	return d.Msg.SendMessage(ctx, userID, body)
}

// sendOptions delivers a localized prompt with selectable options.
func (d *Deps) sendOptions(ctx context.Context, userID, key string, buttons []models.Button, args ...any) error {
	body := d.text(userID, key)
	if len(args) > 0 {
		body = fmt.Sprintf(body, args...)
	}
	return d.Msg.SendOptions(ctx, userID, body, buttons)
}

// yesNoButtons builds the localized confirm/decline pair.
func (d *Deps) yesNoButtons(userID string) []models.Button {
	return []models.Button{
		{Label: d.text(userID, "yes_label"), Data: "yes"},
		{Label: d.text(userID, "no_label"), Data: "no"},
	}
}

// fieldLabel returns the localized display name of a case field.
func (d *Deps) fieldLabel(userID string, f models.CaseField) string {
	return d.text(userID, "field_"+string(f))
}

// loadDraft decodes the intake draft from scratch. A missing draft yields the
// zero case.
func loadDraft(ctx context.Context, sc *session.Scope) (models.Case, error) {
	var c models.Case
	raw, err := sc.Get(ctx, models.DataKeyCaseDraft)
	if err != nil {
		return c, fmt.Errorf("failed to read draft: %w", err)
	}
	if raw == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return c, fmt.Errorf("failed to decode draft: %w", err)
	}
	return c, nil
}

// saveDraft encodes the intake draft into scratch.
func saveDraft(ctx context.Context, sc *session.Scope, c models.Case) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	return sc.Put(ctx, models.DataKeyCaseDraft, string(raw))
}

// parsePositiveInt parses strictly positive integer input.
func parsePositiveInt(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parsePositiveFloat parses strictly positive decimal input.
func parsePositiveFloat(text string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// Help sends the localized command overview.
func (d *Deps) Help(ctx context.Context, userID string) error {
	return d.send(ctx, userID, "help")
}

// Apologize reports an internal failure to the user. The session state is
// left untouched so the user can retry the same step.
func (d *Deps) Apologize(ctx context.Context, userID string) error {
	return d.send(ctx, userID, "apology")
}

// cancelFallback builds the universal fallback handler: "/cancel" resets the
// conversation (the engine clears the session when StateEnd is returned from
// a fallback), anything else re-prompts in place.
func (d *Deps) cancelFallback(flow models.FlowType) func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	return func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
		if ev.Kind == models.EventText && strings.EqualFold(strings.TrimSpace(ev.Text), "/cancel") {
			slog.Debug("flow fallback: cancelling", "flow", flow, "user", ev.UserID)
			if err := d.send(ctx, ev.UserID, "cancelled"); err != nil {
				return "", err
			}
			return models.StateEnd, nil
		}
		state, err := sc.State(ctx)
		if err != nil {
			return "", err
		}
		slog.Debug("flow fallback: unmatched input", "flow", flow, "user", ev.UserID, "state", state)
		if err := d.send(ctx, ev.UserID, "help"); err != nil {
			return "", err
		}
		return state, nil
	}
}

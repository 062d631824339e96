package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
	"github.com/reunite-bot/reunite/internal/wallet"
)

// Option data prefixes used by the intake flow.
const (
	optMobilePrefix = "mob:"
	optCityPrefix   = "city:"
	optSexPrefix    = "sex:"
)

// NewIntakeConversation builds the case intake flow: reporter identity, phone
// verification, reward pledge, subject description, and the escrow transfer
// that promotes the draft to an advertised case.
func NewIntakeConversation(d *Deps) *engine.Conversation {
	return &engine.Conversation{
		ID: models.FlowTypeIntake,
		Entry: []engine.Transition{{
			Match:  engine.MatchCommand("/newcase"),
			Handle: d.intakeStart,
			Next:   []models.StateType{models.StateIntakeName},
		}},
		States: map[models.StateType][]engine.Transition{
			models.StateIntakeName: {{
				Match:  engine.MatchText,
				Handle: d.intakeName,
				Next:   []models.StateType{models.StateIntakeMobileSelect},
			}},
			models.StateIntakeMobileSelect: {
				{
					Match:  engine.MatchOptionPrefix(optMobilePrefix),
					Handle: d.intakeMobilePicked,
					Next:   []models.StateType{models.StateIntakeCodeVerify},
				},
				{
					Match:  engine.MatchText,
					Handle: d.intakeMobileTyped,
					Next:   []models.StateType{models.StateIntakeMobileSelect, models.StateIntakeCodeVerify},
				},
			},
			models.StateIntakeCodeVerify: {{
				Match:  engine.MatchText,
				Handle: d.intakeCodeVerify,
				Next:   []models.StateType{models.StateIntakeCodeVerify, models.StateIntakeDisclaimer},
			}},
			models.StateIntakeDisclaimer: {
				{
					Match:  engine.MatchOptionPrefix("yes"),
					Handle: d.intakeDisclaimerAccepted,
					Next:   []models.StateType{models.StateIntakeRewardAmount},
				},
				{
					Match:  engine.MatchOptionPrefix("no"),
					Handle: d.intakeDeclined,
					Next:   []models.StateType{models.StateEnd},
				},
			},
			models.StateIntakeRewardAmount: {{
				Match:  engine.MatchText,
				Handle: d.intakeRewardAmount,
				Next:   []models.StateType{models.StateIntakeRewardAmount, models.StateIntakeSubjectName},
			}},
			models.StateIntakeSubjectName: {{
				Match:  engine.MatchText,
				Handle: d.textField(func(c *models.Case, v string) { c.SubjectName = v }, "ask_relation", models.StateIntakeRelation),
				Next:   []models.StateType{models.StateIntakeRelation},
			}},
			models.StateIntakeRelation: {{
				Match:  engine.MatchText,
				Handle: d.textField(func(c *models.Case, v string) { c.Relation = v }, "ask_photo", models.StateIntakePhoto),
				Next:   []models.StateType{models.StateIntakePhoto},
			}},
			models.StateIntakePhoto: {
				{
					Match:  engine.MatchImage,
					Handle: d.intakePhoto,
					Next:   []models.StateType{models.StateIntakeLastSeen},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.reprompt("photo_required", models.StateIntakePhoto),
					Next:   []models.StateType{models.StateIntakePhoto},
				},
			},
			models.StateIntakeLastSeen: {
				{
					Match:  engine.MatchOptionPrefix(optCityPrefix),
					Handle: d.intakeCityPicked,
					Next:   []models.StateType{models.StateIntakeLastSeen, models.StateIntakeSex},
				},
				{
					Match:  engine.MatchText,
					Handle: d.intakeLastSeen,
					Next:   []models.StateType{models.StateIntakeLastSeen, models.StateIntakeSex},
				},
			},
			models.StateIntakeSex: {
				{
					Match:  engine.MatchOptionPrefix(optSexPrefix),
					Handle: d.intakeSex,
					Next:   []models.StateType{models.StateIntakeAge},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.intakeSexReprompt,
					Next:   []models.StateType{models.StateIntakeSex},
				},
			},
			models.StateIntakeAge: {{
				Match:  engine.MatchText,
				Handle: d.numericField(func(c *models.Case, v int) { c.Age = v }, "ask_hair", models.StateIntakeAge, models.StateIntakeHair),
				Next:   []models.StateType{models.StateIntakeAge, models.StateIntakeHair},
			}},
			models.StateIntakeHair: {{
				Match:  engine.MatchText,
				Handle: d.textField(func(c *models.Case, v string) { c.HairColor = v }, "ask_eyes", models.StateIntakeEyes),
				Next:   []models.StateType{models.StateIntakeEyes},
			}},
			models.StateIntakeEyes: {{
				Match:  engine.MatchText,
				Handle: d.textField(func(c *models.Case, v string) { c.EyeColor = v }, "ask_height", models.StateIntakeHeight),
				Next:   []models.StateType{models.StateIntakeHeight},
			}},
			models.StateIntakeHeight: {{
				Match:  engine.MatchText,
				Handle: d.numericField(func(c *models.Case, v int) { c.HeightCm = v }, "ask_weight", models.StateIntakeHeight, models.StateIntakeWeight),
				Next:   []models.StateType{models.StateIntakeHeight, models.StateIntakeWeight},
			}},
			models.StateIntakeWeight: {{
				Match:  engine.MatchText,
				Handle: d.numericField(func(c *models.Case, v int) { c.WeightKg = v }, "ask_features", models.StateIntakeWeight, models.StateIntakeFeatures),
				Next:   []models.StateType{models.StateIntakeWeight, models.StateIntakeFeatures},
			}},
			models.StateIntakeFeatures: {{
				Match:  engine.MatchText,
				Handle: d.textField(func(c *models.Case, v string) { c.Features = v }, "ask_reason", models.StateIntakeReason),
				Next:   []models.StateType{models.StateIntakeReason},
			}},
			models.StateIntakeReason: {{
				Match:  engine.MatchText,
				Handle: d.intakeReason,
				Next:   []models.StateType{models.StateIntakeRewardAmount, models.StateIntakeRewardConfirm},
			}},
			models.StateIntakeRewardConfirm: {
				{
					Match:  engine.MatchOptionPrefix("yes"),
					Handle: d.intakeRewardConfirmed,
					Next:   []models.StateType{models.StateIntakeTransferConfirm},
				},
				{
					Match:  engine.MatchOptionPrefix("no"),
					Handle: d.intakeRewardChange,
					Next:   []models.StateType{models.StateIntakeRewardAmount},
				},
			},
			models.StateIntakeTransferConfirm: {
				{
					Match:  engine.MatchOptionPrefix("yes"),
					Handle: d.intakeTransfer,
					Next:   []models.StateType{models.StateIntakeRewardAmount, models.StateEnd},
				},
				{
					Match:  engine.MatchOptionPrefix("no"),
					Handle: d.intakeTransferDeclined,
					Next:   []models.StateType{models.StateEnd},
				},
			},
		},
		Fallback: d.cancelFallback(models.FlowTypeIntake),
	}
}

func (d *Deps) intakeStart(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	if err := d.send(ctx, ev.UserID, "ask_name"); err != nil {
		return "", err
	}
	return models.StateIntakeName, nil
}

func (d *Deps) intakeName(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.ReporterName = strings.TrimSpace(ev.Text)
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}

	numbers, err := d.Store.ListMobileNumbers(ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to list mobile numbers: %w", err)
	}
	buttons := make([]models.Button, 0, len(numbers))
	for _, n := range numbers {
		buttons = append(buttons, models.Button{Label: n.Number, Data: optMobilePrefix + n.Number})
	}
	if err := d.sendOptions(ctx, ev.UserID, "ask_mobile", buttons); err != nil {
		return "", err
	}
	return models.StateIntakeMobileSelect, nil
}

// sendOTP delivers a code to the phone and records it in scratch.
func (d *Deps) sendOTP(ctx context.Context, sc *session.Scope, userID, phone string) error {
	if err := d.Verifier.Send(ctx, phone); err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	if err := sc.Put(ctx, models.DataKeyOTPPhone, phone); err != nil {
		return err
	}
	return d.send(ctx, userID, "ask_code", phone)
}

func (d *Deps) intakeMobilePicked(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	phone := strings.TrimPrefix(ev.Data, optMobilePrefix)
	if err := d.sendOTP(ctx, sc, ev.UserID, phone); err != nil {
		return "", err
	}
	return models.StateIntakeCodeVerify, nil
}

func (d *Deps) intakeMobileTyped(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	phone, err := d.Msg.ValidateAndCanonicalizeRecipient(ev.Text)
	if err != nil {
		if sendErr := d.send(ctx, ev.UserID, "ask_mobile"); sendErr != nil {
			return "", sendErr
		}
		return models.StateIntakeMobileSelect, nil
	}
	if err := d.sendOTP(ctx, sc, ev.UserID, phone); err != nil {
		return "", err
	}
	return models.StateIntakeCodeVerify, nil
}

func (d *Deps) intakeCodeVerify(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	phone, err := sc.Get(ctx, models.DataKeyOTPPhone)
	if err != nil {
		return "", err
	}
	ok, err := d.Verifier.Check(ctx, phone, strings.TrimSpace(ev.Text))
	if err != nil {
		return "", fmt.Errorf("failed to check verification code: %w", err)
	}
	if !ok {
		if err := d.send(ctx, ev.UserID, "code_mismatch"); err != nil {
			return "", err
		}
		return models.StateIntakeCodeVerify, nil
	}

	m := models.MobileNumber{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		Number:    phone,
		CreatedAt: time.Now(),
	}
	if err := d.Store.AddMobileNumber(m); err != nil && !errors.Is(err, models.ErrDuplicate) {
		return "", fmt.Errorf("failed to save mobile number: %w", err)
	}
	if err := d.Store.MarkMobileVerified(ev.UserID, phone); err != nil {
		return "", fmt.Errorf("failed to mark mobile verified: %w", err)
	}

	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.MobileNumber = phone
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}

	if err := d.sendOptions(ctx, ev.UserID, "disclaimer", d.yesNoButtons(ev.UserID)); err != nil {
		return "", err
	}
	return models.StateIntakeDisclaimer, nil
}

func (d *Deps) intakeDisclaimerAccepted(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	balance, err := d.Wallets.Balance(ctx, ev.UserID)
	if errors.Is(err, models.ErrNotFound) {
		if err := d.send(ctx, ev.UserID, "no_wallet_yet"); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to check wallet balance: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "ask_reward_amount", d.RewardCurrency, balance); err != nil {
		return "", err
	}
	return models.StateIntakeRewardAmount, nil
}

func (d *Deps) intakeDeclined(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	if err := d.send(ctx, ev.UserID, "declined"); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (d *Deps) intakeRewardAmount(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	amount, ok := parsePositiveFloat(ev.Text)
	if !ok {
		if err := d.send(ctx, ev.UserID, "invalid_number"); err != nil {
			return "", err
		}
		return models.StateIntakeRewardAmount, nil
	}

	balance, err := d.Wallets.Balance(ctx, ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to check wallet balance: %w", err)
	}
	if balance < amount {
		if err := d.send(ctx, ev.UserID, "insufficient_balance", balance, d.RewardCurrency); err != nil {
			return "", err
		}
		return models.StateIntakeRewardAmount, nil
	}

	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.RewardAmount = amount
	draft.RewardCurrency = d.RewardCurrency
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}
	if err := d.send(ctx, ev.UserID, "ask_subject_name"); err != nil {
		return "", err
	}
	return models.StateIntakeSubjectName, nil
}

// textField builds a handler that stores trimmed text into the draft and asks
// the next question.
func (d *Deps) textField(set func(*models.Case, string), nextKey string, next models.StateType) engine.Handler {
	return func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
		draft, err := loadDraft(ctx, sc)
		if err != nil {
			return "", err
		}
		set(&draft, strings.TrimSpace(ev.Text))
		if err := saveDraft(ctx, sc, draft); err != nil {
			return "", err
		}
		if err := d.send(ctx, ev.UserID, nextKey); err != nil {
			return "", err
		}
		return next, nil
	}
}

// numericField builds a handler that requires a positive integer, re-prompting
// in place on anything else.
func (d *Deps) numericField(set func(*models.Case, int), nextKey string, same, next models.StateType) engine.Handler {
	return func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
		n, ok := parsePositiveInt(ev.Text)
		if !ok {
			if err := d.send(ctx, ev.UserID, "invalid_number"); err != nil {
				return "", err
			}
			return same, nil
		}
		draft, err := loadDraft(ctx, sc)
		if err != nil {
			return "", err
		}
		set(&draft, n)
		if err := saveDraft(ctx, sc, draft); err != nil {
			return "", err
		}
		if err := d.send(ctx, ev.UserID, nextKey); err != nil {
			return "", err
		}
		return next, nil
	}
}

// reprompt builds a handler that repeats a message and stays in place.
func (d *Deps) reprompt(key string, same models.StateType) engine.Handler {
	return func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
		if err := d.send(ctx, ev.UserID, key); err != nil {
			return "", err
		}
		return same, nil
	}
}

func (d *Deps) intakePhoto(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	url, err := d.Media.Upload(ctx, ev.MediaPath)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}
	if err := os.Remove(ev.MediaPath); err != nil {
		slog.Warn("intake: failed to remove downloaded photo", "path", ev.MediaPath, "error", err)
	}
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.PhotoURL = url
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}
	if err := d.send(ctx, ev.UserID, "ask_last_seen"); err != nil {
		return "", err
	}
	return models.StateIntakeLastSeen, nil
}

// setLastSeen records the resolved city and moves on to the sex prompt.
func (d *Deps) setLastSeen(ctx context.Context, ev models.Event, sc *session.Scope, city, country string) (models.StateType, error) {
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.LastSeenCity = city
	draft.LastSeenCountry = country
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}

	buttons := []models.Button{
		{Label: d.text(ev.UserID, "sex_male"), Data: optSexPrefix + "male"},
		{Label: d.text(ev.UserID, "sex_female"), Data: optSexPrefix + "female"},
	}
	if err := d.sendOptions(ctx, ev.UserID, "ask_sex", buttons); err != nil {
		return "", err
	}
	return models.StateIntakeSex, nil
}

func (d *Deps) intakeLastSeen(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	matches := d.Geo.SearchCities(ev.Text)
	switch len(matches) {
	case 0:
		if err := d.send(ctx, ev.UserID, "city_not_found"); err != nil {
			return "", err
		}
		return models.StateIntakeLastSeen, nil
	case 1:
		return d.setLastSeen(ctx, ev, sc, matches[0].City, matches[0].CountryName)
	}

	// Ambiguous: offer the candidates and stay in place.
	raw, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("failed to encode city candidates: %w", err)
	}
	if err := sc.Put(ctx, models.DataKeyCityCandidates, string(raw)); err != nil {
		return "", err
	}
	buttons := make([]models.Button, 0, len(matches))
	for i, m := range matches {
		if i >= models.MaxOptionsCount {
			break
		}
		buttons = append(buttons, models.Button{
			Label: fmt.Sprintf("%s (%s)", m.City, m.CountryName),
			Data:  optCityPrefix + strconv.Itoa(i),
		})
	}
	if err := d.sendOptions(ctx, ev.UserID, "pick_city", buttons); err != nil {
		return "", err
	}
	return models.StateIntakeLastSeen, nil
}

func (d *Deps) intakeCityPicked(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	raw, err := sc.Get(ctx, models.DataKeyCityCandidates)
	if err != nil {
		return "", err
	}
	var candidates []struct {
		City        string
		CountryName string
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
			return "", fmt.Errorf("failed to decode city candidates: %w", err)
		}
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(ev.Data, optCityPrefix))
	if err != nil || idx < 0 || idx >= len(candidates) {
		slog.Warn("intake: stale city pick", "user", ev.UserID, "data", ev.Data)
		if err := d.send(ctx, ev.UserID, "ask_last_seen"); err != nil {
			return "", err
		}
		return models.StateIntakeLastSeen, nil
	}
	return d.setLastSeen(ctx, ev, sc, candidates[idx].City, candidates[idx].CountryName)
}

func (d *Deps) intakeSex(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.Sex = strings.TrimPrefix(ev.Data, optSexPrefix)
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}
	if err := d.send(ctx, ev.UserID, "ask_age"); err != nil {
		return "", err
	}
	return models.StateIntakeAge, nil
}

func (d *Deps) intakeSexReprompt(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	buttons := []models.Button{
		{Label: d.text(ev.UserID, "sex_male"), Data: optSexPrefix + "male"},
		{Label: d.text(ev.UserID, "sex_female"), Data: optSexPrefix + "female"},
	}
	if err := d.sendOptions(ctx, ev.UserID, "ask_sex", buttons); err != nil {
		return "", err
	}
	return models.StateIntakeSex, nil
}

func (d *Deps) intakeReason(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	draft.Reason = strings.TrimSpace(ev.Text)
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}

	// The balance may have changed since the pledge; re-check before asking
	// for confirmation.
	balance, err := d.Wallets.Balance(ctx, ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to check wallet balance: %w", err)
	}
	if balance < draft.RewardAmount {
		if err := d.send(ctx, ev.UserID, "insufficient_balance", balance, d.RewardCurrency); err != nil {
			return "", err
		}
		if err := d.send(ctx, ev.UserID, "ask_reward_amount", d.RewardCurrency, balance); err != nil {
			return "", err
		}
		return models.StateIntakeRewardAmount, nil
	}

	if err := d.sendOptions(ctx, ev.UserID, "confirm_reward", d.yesNoButtons(ev.UserID),
		draft.RewardAmount, d.RewardCurrency, balance); err != nil {
		return "", err
	}
	return models.StateIntakeRewardConfirm, nil
}

func (d *Deps) intakeRewardConfirmed(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}
	if draft.ID == "" {
		draft.ID = uuid.NewString()
		if err := saveDraft(ctx, sc, draft); err != nil {
			return "", err
		}
	}
	if err := d.sendOptions(ctx, ev.UserID, "confirm_transfer", d.yesNoButtons(ev.UserID),
		draft.RewardAmount, d.RewardCurrency, draft.ID); err != nil {
		return "", err
	}
	return models.StateIntakeTransferConfirm, nil
}

func (d *Deps) intakeRewardChange(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	balance, err := d.Wallets.Balance(ctx, ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to check wallet balance: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "ask_reward_amount", d.RewardCurrency, balance); err != nil {
		return "", err
	}
	return models.StateIntakeRewardAmount, nil
}

func (d *Deps) intakeTransfer(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	draft, err := loadDraft(ctx, sc)
	if err != nil {
		return "", err
	}

	// Persist the draft before any money moves so a storage failure can
	// never strand a transfer without a case on record. The save is a
	// draft-guarded upsert, so retrying this step is harmless.
	now := time.Now()
	draft.OwnerID = ev.UserID
	draft.Status = models.CaseStatusDraft
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}
	draft.UpdatedAt = now
	if err := saveDraft(ctx, sc, draft); err != nil {
		return "", err
	}
	if err := d.Store.SaveDraftCase(draft); err != nil && !errors.Is(err, models.ErrNotDraft) {
		return "", fmt.Errorf("failed to persist case: %w", err)
	}

	// An accepted transfer is recorded in scratch before the promotion, so a
	// retry after a partial failure never moves money twice.
	txID, err := sc.Get(ctx, models.DataKeyEscrowTx)
	if err != nil {
		return "", err
	}
	if txID == "" {
		txID, err = d.Wallets.EscrowTransfer(ctx, ev.UserID, draft.RewardAmount)
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			balance, balErr := d.Wallets.Balance(ctx, ev.UserID)
			if balErr != nil {
				return "", fmt.Errorf("failed to check wallet balance: %w", balErr)
			}
			if err := d.send(ctx, ev.UserID, "insufficient_balance", balance, d.RewardCurrency); err != nil {
				return "", err
			}
			if err := d.send(ctx, ev.UserID, "ask_reward_amount", d.RewardCurrency, balance); err != nil {
				return "", err
			}
			return models.StateIntakeRewardAmount, nil
		}
		if err != nil {
			return "", fmt.Errorf("escrow transfer failed: %w", err)
		}
		if err := sc.Put(ctx, models.DataKeyEscrowTx, txID); err != nil {
			return "", err
		}
	}

	if err := d.Store.MarkCaseAdvertised(draft.ID, txID); err != nil && !errors.Is(err, models.ErrNotDraft) {
		return "", fmt.Errorf("failed to advertise case: %w", err)
	}

	slog.Info("intake: case advertised", "user", ev.UserID, "case", draft.ID, "reward", draft.RewardAmount, "tx", txID)
	if err := d.send(ctx, ev.UserID, "case_advertised", draft.ID, draft.RewardAmount, d.RewardCurrency); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (d *Deps) intakeTransferDeclined(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	if err := d.send(ctx, ev.UserID, "transfer_cancelled"); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

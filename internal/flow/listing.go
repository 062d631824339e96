package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/paginate"
	"github.com/reunite-bot/reunite/internal/session"
)

// Option data prefixes used by the listing flow.
const (
	optCasePrefix  = "case:"
	optFieldPrefix = "field:"
)

// NewListingConversation builds the case browsing flow: a paginated list of
// the user's cases, a detail view, and single-field editing.
func NewListingConversation(d *Deps) *engine.Conversation {
	return &engine.Conversation{
		ID: models.FlowTypeListing,
		Entry: []engine.Transition{{
			Match:  engine.MatchCommand("/mycases"),
			Handle: d.listingStart,
			Next:   []models.StateType{models.StateListingList, models.StateEnd},
		}},
		States: map[models.StateType][]engine.Transition{
			models.StateListingList: {
				{
					Match:  engine.MatchOptionPrefix(optCasePrefix),
					Handle: d.listingOpen,
					Next:   []models.StateType{models.StateListingList, models.StateListingView},
				},
				{
					Match:  engine.MatchCommand("next"),
					Handle: d.listingPage(1),
					Next:   []models.StateType{models.StateListingList},
				},
				{
					Match:  engine.MatchCommand("prev"),
					Handle: d.listingPage(-1),
					Next:   []models.StateType{models.StateListingList},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.listingPage(0),
					Next:   []models.StateType{models.StateListingList},
				},
			},
			models.StateListingView: {
				{
					Match:  engine.MatchCommand("edit"),
					Handle: d.listingAskField,
					Next:   []models.StateType{models.StateListingEditField},
				},
				{
					Match:  engine.MatchCommand("back"),
					Handle: d.listingPage(0),
					Next:   []models.StateType{models.StateListingList},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.listingShowSelected,
					Next:   []models.StateType{models.StateListingView},
				},
			},
			models.StateListingEditField: {
				{
					Match:  engine.MatchOptionPrefix(optFieldPrefix),
					Handle: d.listingFieldPicked,
					Next:   []models.StateType{models.StateListingEditField, models.StateListingEditValue},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.listingAskField,
					Next:   []models.StateType{models.StateListingEditField},
				},
			},
			models.StateListingEditValue: {{
				Match:  engine.MatchText,
				Handle: d.listingEditValue,
				Next:   []models.StateType{models.StateListingEditField, models.StateListingEditValue, models.StateListingView},
			}},
		},
		Fallback: d.cancelFallback(models.FlowTypeListing),
	}
}

// pageSize returns the configured page size, or the default.
func (d *Deps) pageSize() int {
	if d.PageSize > 0 {
		return d.PageSize
	}
	return paginate.DefaultPageSize
}

// showList renders one page of the user's cases and stores the page number.
func (d *Deps) showList(ctx context.Context, ev models.Event, sc *session.Scope, page int) (models.StateType, error) {
	cases, err := d.Store.ListCasesByOwner(ev.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to list cases: %w", err)
	}
	if len(cases) == 0 {
		if err := d.send(ctx, ev.UserID, "no_cases"); err != nil {
			return "", err
		}
		return models.StateEnd, nil
	}

	pageItems, totalPages := paginate.Paginate(cases, page, d.pageSize())
	page = paginate.Clamp(page, totalPages)
	if err := sc.Put(ctx, models.DataKeyListPage, strconv.Itoa(page)); err != nil {
		return "", err
	}

	buttons := make([]models.Button, 0, len(pageItems))
	for _, c := range pageItems {
		label := c.SubjectName
		if label == "" {
			label = c.ID
		}
		buttons = append(buttons, models.Button{
			Label: fmt.Sprintf("%s (%s)", label, c.Status),
			Data:  optCasePrefix + c.ID,
		})
	}
	if err := d.sendOptions(ctx, ev.UserID, "case_list_header", buttons, page, totalPages); err != nil {
		return "", err
	}
	return models.StateListingList, nil
}

func (d *Deps) listingStart(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	return d.showList(ctx, ev, sc, 1)
}

// listingPage builds a handler that moves the page cursor by delta and
// re-renders the list.
func (d *Deps) listingPage(delta int) engine.Handler {
	return func(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
		page := 1
		if raw, err := sc.Get(ctx, models.DataKeyListPage); err == nil && raw != "" {
			if n, convErr := strconv.Atoi(raw); convErr == nil {
				page = n
			}
		}
		return d.showList(ctx, ev, sc, page+delta)
	}
}

// ownedCase loads a case and enforces ownership. A denial sends the localized
// refusal and returns (nil, nil) so the caller can stay in place.
func (d *Deps) ownedCase(ctx context.Context, userID, caseID string) (*models.Case, error) {
	c, err := d.Store.GetCase(caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	if c == nil || c.OwnerID != userID {
		if err := d.send(ctx, userID, "not_owner"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return c, nil
}

// showView renders the detail view of the selected case.
func (d *Deps) showView(ctx context.Context, ev models.Event, c *models.Case) (models.StateType, error) {
	if err := d.send(ctx, ev.UserID, "case_view",
		c.ID, c.SubjectName, string(c.Status), c.RewardAmount, c.RewardCurrency); err != nil {
		return "", err
	}
	return models.StateListingView, nil
}

func (d *Deps) listingOpen(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	caseID := strings.TrimPrefix(ev.Data, optCasePrefix)
	c, err := d.ownedCase(ctx, ev.UserID, caseID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return models.StateListingList, nil
	}
	if err := sc.Put(ctx, models.DataKeySelectedCase, c.ID); err != nil {
		return "", err
	}
	return d.showView(ctx, ev, c)
}

func (d *Deps) listingShowSelected(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	caseID, err := sc.Get(ctx, models.DataKeySelectedCase)
	if err != nil {
		return "", err
	}
	c, err := d.ownedCase(ctx, ev.UserID, caseID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return models.StateListingView, nil
	}
	return d.showView(ctx, ev, c)
}

func (d *Deps) listingAskField(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	buttons := make([]models.Button, 0, len(models.EditableCaseFields))
	for _, f := range models.EditableCaseFields {
		buttons = append(buttons, models.Button{
			Label: d.fieldLabel(ev.UserID, f),
			Data:  optFieldPrefix + string(f),
		})
	}
	if err := d.sendOptions(ctx, ev.UserID, "edit_pick_field", buttons); err != nil {
		return "", err
	}
	return models.StateListingEditField, nil
}

func (d *Deps) listingFieldPicked(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	name := strings.TrimPrefix(ev.Data, optFieldPrefix)
	field, ok := editableField(name)
	if !ok {
		return d.listingAskField(ctx, ev, sc)
	}
	if err := sc.Put(ctx, models.DataKeyEditField, string(field)); err != nil {
		return "", err
	}
	if err := d.send(ctx, ev.UserID, "edit_ask_value", d.fieldLabel(ev.UserID, field)); err != nil {
		return "", err
	}
	return models.StateListingEditValue, nil
}

func (d *Deps) listingEditValue(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	name, err := sc.Get(ctx, models.DataKeyEditField)
	if err != nil {
		return "", err
	}
	field, ok := editableField(name)
	if !ok {
		return d.listingAskField(ctx, ev, sc)
	}

	upd, ok := buildFieldUpdate(field, ev.Text)
	if !ok {
		if err := d.send(ctx, ev.UserID, "invalid_number"); err != nil {
			return "", err
		}
		return models.StateListingEditValue, nil
	}

	caseID, err := sc.Get(ctx, models.DataKeySelectedCase)
	if err != nil {
		return "", err
	}
	c, err := d.ownedCase(ctx, ev.UserID, caseID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return models.StateListingEditValue, nil
	}

	if err := d.Store.UpdateCaseField(c.ID, upd); err != nil {
		return "", fmt.Errorf("failed to update case field: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "edit_saved", d.fieldLabel(ev.UserID, field)); err != nil {
		return "", err
	}

	updated, err := d.Store.GetCase(c.ID)
	if err != nil || updated == nil {
		return "", fmt.Errorf("failed to reload case: %w", err)
	}
	return d.showView(ctx, ev, updated)
}

// editableField resolves a field name against the editable set.
func editableField(name string) (models.CaseField, bool) {
	for _, f := range models.EditableCaseFields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// buildFieldUpdate validates input for the field and builds the update.
// Numeric fields require a positive integer.
func buildFieldUpdate(field models.CaseField, text string) (models.CaseFieldUpdate, bool) {
	text = strings.TrimSpace(text)
	if field.IsNumeric() {
		n, ok := parsePositiveInt(text)
		if !ok {
			return models.CaseFieldUpdate{}, false
		}
		return models.CaseFieldUpdate{Field: field, Number: n}, true
	}
	if text == "" {
		return models.CaseFieldUpdate{}, false
	}
	return models.CaseFieldUpdate{Field: field, Text: text}, true
}

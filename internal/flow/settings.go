package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/reunite-bot/reunite/internal/engine"
	"github.com/reunite-bot/reunite/internal/models"
	"github.com/reunite-bot/reunite/internal/session"
)

// Option data prefixes used by the settings flow.
const (
	optSettingsLanguage = "settings:language"
	optSettingsLocation = "settings:location"
	optLangPrefix       = "lang:"
)

// NewSettingsConversation builds the settings flow: language selection
// (persisted across sessions) and country/city location selection.
func NewSettingsConversation(d *Deps) *engine.Conversation {
	return &engine.Conversation{
		ID: models.FlowTypeSettings,
		Entry: []engine.Transition{{
			Match:  engine.MatchCommand("/settings"),
			Handle: d.settingsStart,
			Next:   []models.StateType{models.StateSettingsMenu},
		}},
		States: map[models.StateType][]engine.Transition{
			models.StateSettingsMenu: {
				{
					Match:  engine.MatchOptionPrefix(optSettingsLanguage),
					Handle: d.settingsAskLanguage,
					Next:   []models.StateType{models.StateSettingsLanguage},
				},
				{
					Match:  engine.MatchOptionPrefix(optSettingsLocation),
					Handle: d.reprompt("ask_country", models.StateSettingsCountry),
					Next:   []models.StateType{models.StateSettingsCountry},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.settingsStart,
					Next:   []models.StateType{models.StateSettingsMenu},
				},
			},
			models.StateSettingsLanguage: {
				{
					Match:  engine.MatchOptionPrefix(optLangPrefix),
					Handle: d.settingsSetLanguage,
					Next:   []models.StateType{models.StateEnd},
				},
				{
					Match:  engine.MatchNonCommand,
					Handle: d.settingsAskLanguage,
					Next:   []models.StateType{models.StateSettingsLanguage},
				},
			},
			models.StateSettingsCountry: {{
				Match:  engine.MatchText,
				Handle: d.settingsCountry,
				Next:   []models.StateType{models.StateSettingsCountry, models.StateSettingsCity},
			}},
			models.StateSettingsCity: {{
				Match:  engine.MatchText,
				Handle: d.settingsCity,
				Next:   []models.StateType{models.StateSettingsCity, models.StateEnd},
			}},
		},
		Fallback: d.cancelFallback(models.FlowTypeSettings),
	}
}

func (d *Deps) settingsStart(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	buttons := []models.Button{
		{Label: d.text(ev.UserID, "settings_language"), Data: optSettingsLanguage},
		{Label: d.text(ev.UserID, "settings_location"), Data: optSettingsLocation},
	}
	if err := d.sendOptions(ctx, ev.UserID, "settings_menu", buttons); err != nil {
		return "", err
	}
	return models.StateSettingsMenu, nil
}

func (d *Deps) settingsAskLanguage(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	langs := d.Loc.Languages()
	buttons := make([]models.Button, 0, len(langs))
	for _, lang := range langs {
		buttons = append(buttons, models.Button{Label: lang, Data: optLangPrefix + lang})
	}
	if err := d.sendOptions(ctx, ev.UserID, "ask_language", buttons); err != nil {
		return "", err
	}
	return models.StateSettingsLanguage, nil
}

func (d *Deps) settingsSetLanguage(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	lang := strings.TrimPrefix(ev.Data, optLangPrefix)

	pref := models.UserPreference{UserID: ev.UserID, Language: lang}
	if existing, err := d.Store.GetUserPreference(ev.UserID); err == nil && existing != nil {
		pref.Country = existing.Country
		pref.City = existing.City
	}
	if err := d.Store.SaveUserPreference(pref); err != nil {
		return "", fmt.Errorf("failed to save language: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "language_saved"); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

func (d *Deps) settingsCountry(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	matches := d.Geo.SearchCountries(ev.Text)
	if len(matches) != 1 {
		if err := d.send(ctx, ev.UserID, "country_not_found"); err != nil {
			return "", err
		}
		return models.StateSettingsCountry, nil
	}
	country := matches[0]
	if err := sc.Put(ctx, models.DataKeyCountry, country.Code); err != nil {
		return "", err
	}
	if err := d.send(ctx, ev.UserID, "ask_city", country.Name); err != nil {
		return "", err
	}
	return models.StateSettingsCity, nil
}

func (d *Deps) settingsCity(ctx context.Context, ev models.Event, sc *session.Scope) (models.StateType, error) {
	code, err := sc.Get(ctx, models.DataKeyCountry)
	if err != nil {
		return "", err
	}
	matches := d.Geo.SearchCitiesIn(code, ev.Text)
	if len(matches) != 1 {
		if err := d.send(ctx, ev.UserID, "city_not_found"); err != nil {
			return "", err
		}
		return models.StateSettingsCity, nil
	}
	m := matches[0]

	pref := models.UserPreference{UserID: ev.UserID, Country: m.CountryName, City: m.City}
	if existing, err := d.Store.GetUserPreference(ev.UserID); err == nil && existing != nil {
		pref.Language = existing.Language
	}
	if err := d.Store.SaveUserPreference(pref); err != nil {
		return "", fmt.Errorf("failed to save location: %w", err)
	}
	if err := d.send(ctx, ev.UserID, "location_saved", m.City, m.CountryName); err != nil {
		return "", err
	}
	return models.StateEnd, nil
}

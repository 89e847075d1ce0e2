package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Default is the language used when none is requested
const Default = "ru"

// Message identifiers
const (
	MsgNameRequired     = "NameRequired"
	MsgResponseRequired = "ResponseRequired"
	MsgConfirmed        = "Confirmed"
	MsgDeclined         = "Declined"
	MsgSaveFailed       = "SaveFailed"
	MsgAlreadyConfirmed = "AlreadyConfirmed"
	MsgAlreadyDeclined  = "AlreadyDeclined"
	MsgNoGuests         = "NoGuests"
	MsgJustNow          = "JustNow"
	MsgMinutesAgo       = "MinutesAgo"
	MsgHoursAgo         = "HoursAgo"
	MsgDaysAgo          = "DaysAgo"
	MsgFormatDate       = "FormatDate"
	MsgNamePlaceholder  = "NamePlaceholder"
	MsgButtonYes        = "ButtonYes"
	MsgButtonNo         = "ButtonNo"
	MsgButtonGuests     = "ButtonGuests"
	MsgGuestsTitle      = "GuestsTitle"
	MsgConfirmedLabel   = "ConfirmedLabel"
	MsgButtonClose      = "ButtonClose"
	MsgOpenMap          = "OpenMap"
)

// Bundle holds every embedded translation
type Bundle struct {
	bundle    *i18n.Bundle
	languages []string
	log       zerolog.Logger
}

// Load reads the embedded locale files
func Load(logger zerolog.Logger) (*Bundle, error) {
	bundle := i18n.NewBundle(language.Russian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}

	var languages []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		languages = append(languages, strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json"))
	}
	sort.Strings(languages)

	return &Bundle{
		bundle:    bundle,
		languages: languages,
		log:       logger.With().Str("component", "i18n").Logger(),
	}, nil
}

// Languages lists the available language codes
func (b *Bundle) Languages() []string {
	return append([]string(nil), b.languages...)
}

// Supports reports whether lang has a locale file
func (b *Bundle) Supports(lang string) bool {
	for _, l := range b.languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Translator returns a translator for the given languages, in preference order
func (b *Bundle) Translator(langs ...string) *Translator {
	return &Translator{
		localizer: i18n.NewLocalizer(b.bundle, append(langs, Default)...),
		log:       b.log,
	}
}

// Translator resolves message identifiers for one language preference
type Translator struct {
	localizer *i18n.Localizer
	log       zerolog.Logger
}

// Msg translates id; unknown identifiers are returned as is
func (t *Translator) Msg(id string) string {
	return t.Format(id, nil)
}

// Format translates id, filling its template with data
func (t *Translator) Format(id string, data map[string]any) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		t.log.Debug().Err(err).Str("key", id).Msg("Missing translation")
		return id
	}
	return msg
}

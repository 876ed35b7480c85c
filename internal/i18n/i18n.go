package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Translator renders tracker labels in the test-taker's language.
type Translator struct {
	bundle      *i18n.Bundle
	defaultLang string
	logger      *slog.Logger
}

// New loads every embedded locale with defaultLang as the fallback.
func New(defaultLang string, logger *slog.Logger) (*Translator, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{bundle: bundle, defaultLang: defaultLang, logger: logger}, nil
}

// Td translates msgID with template data. Missing translations fall back to
// the message ID.
func (t *Translator) Td(lang, msgID string, data map[string]any) string {
	return t.localize(lang, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message.
func (t *Translator) Tp(lang, msgID string, count int, data map[string]any) string {
	return t.localize(lang, &i18n.LocalizeConfig{MessageID: msgID, PluralCount: count, TemplateData: data})
}

func (t *Translator) localize(lang string, cfg *i18n.LocalizeConfig) string {
	if lang == "" {
		lang = t.defaultLang
	}
	loc := i18n.NewLocalizer(t.bundle, lang, t.defaultLang)
	s, err := loc.Localize(cfg)
	if err != nil {
		t.logger.Warn("missing translation", "id", cfg.MessageID, "lang", lang, "error", err)
		return cfg.MessageID
	}
	return s
}

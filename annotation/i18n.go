package annotation

import (
	"context"
	"embed"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

var bundle *i18n.Bundle

type localizerKey struct{}

func init() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, locale := range SupportedLanguages {
		data, err := localesFS.ReadFile("locales/" + locale + ".json")
		if err != nil {
			log.Printf("Warning: failed to read locale file %s: %v", locale, err)
			continue
		}

		_, err = bundle.ParseMessageFileBytes(data, locale+".json")
		if err != nil {
			log.Printf("Warning: failed to parse locale file %s: %v", locale, err)
		}
	}
}

// NewLocalizer returns a localizer for lang, falling back to English
func NewLocalizer(lang ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, lang...)
}

// GetLocalizerFromContext retrieves the localizer from context, or returns fallback
func GetLocalizerFromContext(ctx context.Context, fallback *i18n.Localizer) *i18n.Localizer {
	if ctx == nil {
		return fallback
	}
	if localizer, ok := ctx.Value(localizerKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	return fallback
}

func WithLocalizer(ctx context.Context, localizer *i18n.Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, localizer)
}

// GetLocalizerFromRequest creates a localizer based on the Accept-Language header
func GetLocalizerFromRequest(r *http.Request, defaultLang string) *i18n.Localizer {
	acceptLang := r.Header.Get("Accept-Language")

	// Format: "en-US,en;q=0.9,pt-BR;q=0.8,pt;q=0.7"
	var langs []string
	if acceptLang != "" {
		for _, part := range strings.Split(acceptLang, ",") {
			lang := strings.TrimSpace(strings.Split(part, ";")[0])
			if lang != "" {
				langs = append(langs, lang)
			}
		}
	}
	langs = append(langs, defaultLang)
	return NewLocalizer(langs...)
}

// Localize translates a message, returning the message ID when there is no translation
func Localize(localizer *i18n.Localizer, messageID string, data map[string]any) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

package render

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-taskforms/pkg/model"
)

// ErrMissingTranslator is passed to the missing handler when a Localizer has
// no Translator configured.
var ErrMissingTranslator = errors.New("render: translator is not configured")

// ErrMissingTranslation is returned by Catalog when a key has no entry.
var ErrMissingTranslation = errors.New("render: missing translation")

// Translator resolves a message key for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// MissingTranslationHandler returns the string used when a key cannot be
// translated. fallback is the untranslated label.
type MissingTranslationHandler func(locale, key, fallback string, err error) string

// Localizer is a model.Decorator that replaces property labels and enum value
// labels with translated strings. Keys are built as
//
//	<prefix><property id>
//	<prefix><property id>.<enum value id>
type Localizer struct {
	Locale     string
	Prefix     string
	Translator Translator
	OnMissing  MissingTranslationHandler
}

var _ model.Decorator = (*Localizer)(nil)

// Decorate translates labels in place on the resolver's private copy.
func (l *Localizer) Decorate(properties []model.FormProperty) error {
	if l == nil || l.Locale == "" {
		return nil
	}
	for i := range properties {
		property := &properties[i]
		key := l.Prefix + property.ID
		property.Name = l.translate(key, property.Label())

		for j := range property.Type.Values {
			value := &property.Type.Values[j]
			fallback := value.Label
			if fallback == "" {
				fallback = value.ID
			}
			value.Label = l.translate(key+"."+value.ID, fallback)
		}
	}
	return nil
}

func (l *Localizer) translate(key, fallback string) string {
	onMissing := l.OnMissing
	if onMissing == nil {
		onMissing = keepFallback
	}
	if l.Translator == nil {
		return onMissing(l.Locale, key, fallback, ErrMissingTranslator)
	}
	msg, err := l.Translator.Translate(l.Locale, key)
	if err != nil || strings.TrimSpace(msg) == "" {
		return onMissing(l.Locale, key, fallback, err)
	}
	return msg
}

func keepFallback(_, _, fallback string, _ error) string {
	return fallback
}

// Catalog is an in-memory Translator keyed by locale then message key.
// Arguments are applied with fmt.Sprintf when present.
type Catalog map[string]map[string]string

// Translate implements Translator. A region-qualified locale such as "es-MX"
// falls back to its base language.
func (c Catalog) Translate(locale, key string, args ...any) (string, error) {
	for _, candidate := range localeChain(locale) {
		if msg, ok := c[candidate][key]; ok {
			if len(args) > 0 {
				return fmt.Sprintf(msg, args...), nil
			}
			return msg, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, locale, key)
}

func localeChain(locale string) []string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return nil
	}
	chain := []string{locale}
	if idx := strings.IndexAny(locale, "-_"); idx > 0 {
		chain = append(chain, locale[:idx])
	}
	return chain
}

// ParseCatalog decodes a YAML (or JSON) document of the shape
//
//	es:
//	  customer: Cliente
//	  currency.EUR: Euro
func ParseCatalog(data []byte) (Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("render: parse catalog: %w", err)
	}
	if catalog == nil {
		catalog = Catalog{}
	}
	return catalog, nil
}

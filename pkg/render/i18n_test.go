package render_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/render"
)

func TestLocalizerTranslatesLabelsAndEnumValues(t *testing.T) {
	catalog, err := render.ParseCatalog([]byte(`
es:
  form.customer: Cliente
  form.currency.EUR: Euro
`))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}

	properties := []model.FormProperty{
		{ID: "customer", Name: "Customer", Type: model.StringType()},
		{ID: "currency", Name: "Currency", Type: model.EnumOf("EUR", "USD")},
	}
	localizer := &render.Localizer{Locale: "es-MX", Prefix: "form.", Translator: catalog}
	if err := localizer.Decorate(properties); err != nil {
		t.Fatalf("decorate: %v", err)
	}

	if properties[0].Name != "Cliente" {
		t.Fatalf("customer label = %q", properties[0].Name)
	}
	if properties[1].Name != "Currency" {
		t.Fatalf("currency label = %q, want fallback", properties[1].Name)
	}
	want := []model.EnumValue{{ID: "EUR", Label: "Euro"}, {ID: "USD", Label: "USD"}}
	if diff := cmp.Diff(want, properties[1].Type.Values); diff != "" {
		t.Fatalf("enum values mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalizerMissingHandler(t *testing.T) {
	var seen []string
	localizer := &render.Localizer{
		Locale: "fr",
		OnMissing: func(locale, key, fallback string, err error) string {
			if !errors.Is(err, render.ErrMissingTranslator) {
				t.Fatalf("unexpected error %v", err)
			}
			seen = append(seen, key)
			return "[" + fallback + "]"
		},
	}
	properties := []model.FormProperty{{ID: "amount", Type: model.LongType()}}
	if err := localizer.Decorate(properties); err != nil {
		t.Fatalf("decorate: %v", err)
	}
	if properties[0].Name != "[amount]" {
		t.Fatalf("label = %q", properties[0].Name)
	}
	if diff := cmp.Diff([]string{"amount"}, seen); diff != "" {
		t.Fatalf("missing keys (-want +got):\n%s", diff)
	}
}

func TestLocalizerWithoutLocaleIsNoop(t *testing.T) {
	properties := []model.FormProperty{{ID: "a", Name: "A", Type: model.StringType()}}
	localizer := &render.Localizer{Translator: render.Catalog{"en": {"a": "Alpha"}}}
	if err := localizer.Decorate(properties); err != nil {
		t.Fatalf("decorate: %v", err)
	}
	if properties[0].Name != "A" {
		t.Fatalf("label = %q", properties[0].Name)
	}
}

func TestCatalogFormatsArguments(t *testing.T) {
	catalog := render.Catalog{"en": {"greet": "hello %s"}}
	msg, err := catalog.Translate("en", "greet", "ada")
	if err != nil || msg != "hello ada" {
		t.Fatalf("translate = %q, %v", msg, err)
	}
	if _, err := catalog.Translate("de", "greet"); !errors.Is(err, render.ErrMissingTranslation) {
		t.Fatalf("expected missing translation, got %v", err)
	}
}

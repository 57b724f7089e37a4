package openapi_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/renderers/openapi"
)

func renderSchema(t *testing.T, renderer *openapi.Renderer, formKey string, properties []model.FormProperty) *openapi3.Schema {
	t.Helper()
	out, err := renderer.Render(context.Background(), formKey, properties)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	schema, ok := out.(*openapi3.Schema)
	if !ok {
		t.Fatalf("render returned %T, want *openapi3.Schema", out)
	}
	return schema
}

func TestRendererBuildsObjectSchema(t *testing.T) {
	renderer := openapi.New(openapi.WithTitle("Invoice"))
	schema := renderSchema(t, renderer, "invoice-start", []model.FormProperty{
		{ID: "customer", Name: "Customer", Type: model.StringType(), Required: true, Writable: true},
		{ID: "amount", Name: "Amount", Type: model.LongType(), Writable: true, Value: int64(1200)},
		{ID: "currency", Name: "Currency", Type: model.EnumOf("EUR", "USD"), Writable: true, Value: "EUR"},
		{ID: "due", Name: "Due", Type: model.DateType(""), Writable: true, Value: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{ID: "urgent", Name: "Urgent", Type: model.BooleanType(), Writable: true, Value: false},
		{ID: "owner", Name: "Owner", Type: model.StringType(), Required: true, Writable: false, Value: "ops"},
	})

	if !schema.Type.Is(openapi3.TypeObject) {
		t.Fatalf("type = %v", schema.Type)
	}
	if schema.Title != "Invoice" {
		t.Fatalf("title = %q", schema.Title)
	}
	if diff := cmp.Diff([]string{"customer"}, schema.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}
	wantOrder := []string{"customer", "amount", "currency", "due", "urgent", "owner"}
	if diff := cmp.Diff(wantOrder, schema.Extensions[openapi.ExtensionOrder]); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got := schema.Extensions[openapi.ExtensionFormKey]; got != "invoice-start" {
		t.Fatalf("form key = %v", got)
	}

	amount := schema.Properties["amount"].Value
	if !amount.Type.Is(openapi3.TypeInteger) || amount.Format != "int64" || amount.Default != int64(1200) {
		t.Fatalf("amount schema = %+v", amount)
	}
	currency := schema.Properties["currency"].Value
	if diff := cmp.Diff([]any{"EUR", "USD"}, currency.Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
	due := schema.Properties["due"].Value
	if due.Format != "date" || due.Default != "2024-03-15" {
		t.Fatalf("due schema = %+v", due)
	}
	if !schema.Properties["urgent"].Value.Type.Is(openapi3.TypeBoolean) {
		t.Fatal("urgent is not boolean")
	}
	if !schema.Properties["owner"].Value.ReadOnly {
		t.Fatal("owner should be readOnly")
	}
}

func TestRendererCustomAndPatternedDates(t *testing.T) {
	renderer := openapi.New()
	schema := renderSchema(t, renderer, "", []model.FormProperty{
		{ID: "due", Type: model.DateType("02/01/2006"), Writable: true},
		{ID: "color", Type: model.CustomType("color", map[string]any{"palette": "web"}), Writable: true},
	})

	due := schema.Properties["due"].Value
	if due.Format != "" || due.Extensions[openapi.ExtensionDateLayout] != "02/01/2006" {
		t.Fatalf("due schema = %+v", due)
	}
	want := map[string]any{"name": "color", "payload": map[string]any{"palette": "web"}}
	if diff := cmp.Diff(want, schema.Properties["color"].Value.Extensions[openapi.ExtensionCustomType]); diff != "" {
		t.Fatalf("custom mismatch (-want +got):\n%s", diff)
	}
}

func TestRendererSchemaValidatesSubmissions(t *testing.T) {
	renderer := openapi.New()
	schema := renderSchema(t, renderer, "", []model.FormProperty{
		{ID: "decision", Type: model.EnumOf("approve", "reject"), Required: true, Writable: true},
		{ID: "amount", Type: model.LongType(), Writable: true},
	})

	var ok map[string]any
	if err := json.Unmarshal([]byte(`{"decision":"approve","amount":5}`), &ok); err != nil {
		t.Fatal(err)
	}
	if err := schema.VisitJSON(ok); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if err := schema.VisitJSON(map[string]any{"decision": "maybe"}); err == nil {
		t.Fatal("enum violation accepted")
	}
	if err := schema.VisitJSON(map[string]any{"amount": float64(1)}); err == nil {
		t.Fatal("missing required property accepted")
	}
}

func TestRendererMarshalsToJSON(t *testing.T) {
	renderer := openapi.New()
	schema := renderSchema(t, renderer, "k", []model.FormProperty{
		{ID: "name", Name: "Name", Type: model.StringType(), Writable: true},
	})

	raw, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "object" || decoded["x-form-key"] != "k" {
		t.Fatalf("decoded = %v", decoded)
	}
	if renderer.ContentType() != "application/schema+json" {
		t.Fatalf("content type = %q", renderer.ContentType())
	}
}

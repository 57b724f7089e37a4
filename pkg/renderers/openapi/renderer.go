// Package openapi renders resolved forms as OpenAPI 3 schema objects so API
// clients can describe and validate submissions without an HTML surface.
package openapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/render"
)

// Name is the engine name the renderer registers under by default.
const Name = "openapi"

// Extension keys attached to generated schemas.
const (
	ExtensionFormKey    = "x-form-key"
	ExtensionOrder      = "x-property-order"
	ExtensionDateLayout = "x-date-layout"
	ExtensionCustomType = "x-custom-type"
)

// Option configures the renderer.
type Option func(*Renderer)

// WithTitle sets the schema title.
func WithTitle(title string) Option {
	return func(r *Renderer) {
		r.title = title
	}
}

// WithValidation runs openapi3 schema validation on every generated schema.
func WithValidation(enabled bool) Option {
	return func(r *Renderer) {
		r.validate = enabled
	}
}

// Renderer produces *openapi3.Schema documents.
type Renderer struct {
	title    string
	validate bool
}

var (
	_ render.Renderer     = (*Renderer)(nil)
	_ render.ContentTyper = (*Renderer)(nil)
)

// New constructs the renderer.
func New(options ...Option) *Renderer {
	r := &Renderer{validate: true}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "application/schema+json"
}

// Render returns an object schema with one property per form property.
// Read-only properties carry readOnly and never appear in required.
func (r *Renderer) Render(ctx context.Context, formKey string, properties []model.FormProperty) (render.RenderedForm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	schema := openapi3.NewObjectSchema()
	schema.Title = r.title
	schema.Properties = make(openapi3.Schemas, len(properties))
	schema.Extensions = map[string]any{}
	if formKey != "" {
		schema.Extensions[ExtensionFormKey] = formKey
	}

	order := make([]string, 0, len(properties))
	for _, property := range properties {
		propertySchema, err := propertySchema(property)
		if err != nil {
			return nil, fmt.Errorf("openapi renderer: property %q: %w", property.ID, err)
		}
		schema.Properties[property.ID] = openapi3.NewSchemaRef("", propertySchema)
		if property.Required && property.Writable {
			schema.Required = append(schema.Required, property.ID)
		}
		order = append(order, property.ID)
	}
	schema.Extensions[ExtensionOrder] = order

	if r.validate {
		if err := schema.Validate(ctx); err != nil {
			return nil, fmt.Errorf("openapi renderer: invalid schema: %w", err)
		}
	}
	return schema, nil
}

func propertySchema(property model.FormProperty) (*openapi3.Schema, error) {
	var schema *openapi3.Schema
	switch property.Type.Kind {
	case model.KindString:
		schema = openapi3.NewStringSchema()
	case model.KindLong:
		schema = openapi3.NewInt64Schema()
	case model.KindBoolean:
		schema = openapi3.NewBoolSchema()
	case model.KindDate:
		schema = openapi3.NewStringSchema()
		pattern := property.Type.DatePattern
		if pattern == "" || pattern == model.DefaultDatePattern {
			schema.Format = "date"
		} else {
			schema.Extensions = map[string]any{ExtensionDateLayout: pattern}
		}
	case model.KindEnum:
		schema = openapi3.NewStringSchema()
		for _, value := range property.Type.Values {
			schema.Enum = append(schema.Enum, value.ID)
		}
	case model.KindCustom:
		schema = openapi3.NewStringSchema()
		custom := map[string]any{"name": property.Type.CustomName}
		if len(property.Type.CustomPayload) > 0 {
			custom["payload"] = property.Type.CustomPayload
		}
		schema.Extensions = map[string]any{ExtensionCustomType: custom}
	default:
		return nil, fmt.Errorf("unsupported property type %q", property.Type.Kind)
	}

	schema.Title = property.Label()
	schema.ReadOnly = !property.Writable
	if value, ok := schemaValue(property); ok {
		schema.Default = value
	}
	return schema, nil
}

// schemaValue converts a resolved value to its JSON wire representation.
func schemaValue(property model.FormProperty) (any, bool) {
	switch v := property.Value.(type) {
	case nil:
		return nil, false
	case time.Time:
		pattern := property.Type.DatePattern
		if pattern == "" {
			pattern = model.DefaultDatePattern
		}
		return v.Format(pattern), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case bool:
		return v, true
	case string:
		if property.Type.Kind == model.KindLong {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, true
			}
		}
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

package vanilla

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/render"
	rendertemplate "github.com/goliatone/go-taskforms/pkg/render/template"
	gotemplate "github.com/goliatone/go-taskforms/pkg/render/template/gotemplate"
)

// Name is the engine name the renderer registers under by default.
const Name = "vanilla"

const formTemplate = "templates/form.tmpl"

// Option configures the vanilla renderer.
type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateDir      string
	templateRenderer rendertemplate.TemplateRenderer
	policy           *bluemonday.Policy
	action           string
	submitLabel      string
}

// WithTemplatesFS supplies an alternate template bundle via fs.FS. The bundle
// must contain templates/form.tmpl.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk. The directory
// must contain templates/form.tmpl and takes precedence over WithTemplatesFS.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		cfg.templateDir = strings.TrimSpace(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithLabelPolicy overrides the sanitizer applied to property labels.
func WithLabelPolicy(policy *bluemonday.Policy) Option {
	return func(cfg *config) {
		if policy != nil {
			cfg.policy = policy
		}
	}
}

// WithAction sets the form action attribute.
func WithAction(action string) Option {
	return func(cfg *config) {
		cfg.action = strings.TrimSpace(action)
	}
}

// WithSubmitLabel overrides the submit button text.
func WithSubmitLabel(label string) Option {
	return func(cfg *config) {
		if label = strings.TrimSpace(label); label != "" {
			cfg.submitLabel = label
		}
	}
}

// Renderer produces an HTML form document from resolved form properties.
type Renderer struct {
	templates   rendertemplate.TemplateRenderer
	policy      *bluemonday.Policy
	action      string
	submitLabel string
}

var (
	_ render.Renderer     = (*Renderer)(nil)
	_ render.ContentTyper = (*Renderer)(nil)
)

// New constructs the vanilla renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{submitLabel: "Submit"}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	if cfg.templateFS == nil && cfg.templateDir == "" {
		cfg.templateFS = TemplatesFS()
	}
	if cfg.policy == nil {
		cfg.policy = bluemonday.UGCPolicy()
	}

	renderer := cfg.templateRenderer
	if renderer == nil {
		source := gotemplate.WithFS(cfg.templateFS)
		if cfg.templateDir != "" {
			source = gotemplate.WithBaseDir(cfg.templateDir)
		}
		engine, err := gotemplate.New(source, gotemplate.WithExtension(".tmpl"))
		if err != nil {
			return nil, fmt.Errorf("vanilla renderer: configure template renderer: %w", err)
		}
		renderer = engine
	}

	return &Renderer{
		templates:   renderer,
		policy:      cfg.policy,
		action:      cfg.action,
		submitLabel: cfg.submitLabel,
	}, nil
}

func (r *Renderer) Name() string {
	return Name
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render returns the HTML document as []byte.
func (r *Renderer) Render(ctx context.Context, formKey string, properties []model.FormProperty) (render.RenderedForm, error) {
	if r == nil || r.templates == nil {
		return nil, fmt.Errorf("vanilla renderer: template renderer is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields := make([]map[string]any, 0, len(properties))
	for _, property := range properties {
		fields = append(fields, r.fieldView(property))
	}

	result, err := r.templates.RenderTemplate(formTemplate, map[string]any{
		"form": map[string]any{
			"key":         formKey,
			"action":      r.action,
			"submitLabel": r.submitLabel,
			"fields":      fields,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render template: %w", err)
	}
	return []byte(result), nil
}

func (r *Renderer) fieldView(property model.FormProperty) map[string]any {
	value := formatValue(property)
	view := map[string]any{
		"id":        property.ID,
		"controlId": controlID(property.ID),
		"label":     r.policy.Sanitize(property.Label()),
		"kind":      string(property.Type.Kind),
		"inputType": inputType(property.Type),
		"required":  property.Required && property.Writable,
		"readonly":  !property.Writable,
		"value":     value,
	}

	switch property.Type.Kind {
	case model.KindEnum:
		options := make([]map[string]any, 0, len(property.Type.Values))
		for _, option := range property.Type.Values {
			label := option.Label
			if label == "" {
				label = option.ID
			}
			options = append(options, map[string]any{
				"id":       option.ID,
				"label":    label,
				"selected": option.ID == value,
			})
		}
		view["options"] = options
	case model.KindBoolean:
		view["checked"] = value == "true"
	case model.KindDate:
		if property.Type.DatePattern != model.DefaultDatePattern {
			view["pattern"] = property.Type.DatePattern
		}
	}
	return view
}

func inputType(t model.PropertyType) string {
	switch t.Kind {
	case model.KindLong:
		return "number"
	case model.KindDate:
		// Native date inputs only submit ISO dates.
		if t.DatePattern == model.DefaultDatePattern {
			return "date"
		}
		return "text"
	default:
		return "text"
	}
}

// formatValue renders the current value the way the binder expects it back.
func formatValue(property model.FormProperty) string {
	switch v := property.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		pattern := property.Type.DatePattern
		if pattern == "" {
			pattern = model.DefaultDatePattern
		}
		return v.Format(pattern)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func controlID(id string) string {
	var b strings.Builder
	b.WriteString("tf-")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-taskforms/pkg/model"
	"github.com/goliatone/go-taskforms/pkg/render"
)

// Name is the engine name the renderer registers under by default.
const Name = "tui"

// Renderer implements render.Renderer for terminal sessions. Rendering a form
// prompts for every writable property and returns the raw answers as a
// map[string]string ready to be submitted back through the binder.
type Renderer struct {
	driver            PromptDriver
	out               io.Writer
	submitTransformer SubmitTransformer
	showReadOnly      bool
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer, defaulting to the survey driver on stdout.
func New(options ...Option) *Renderer {
	r := &Renderer{showReadOnly: true}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		out := r.out
		if out == nil {
			out = os.Stdout
		}
		r.driver = NewSurveyDriver(out)
	}
	return r
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return Name
}

// Render walks the properties in order. Read-only properties are echoed;
// writable ones are prompted with a validator matching their type so the
// collected answers bind cleanly.
func (r *Renderer) Render(ctx context.Context, formKey string, properties []model.FormProperty) (render.RenderedForm, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.driver == nil {
		return nil, ErrNoDriver
	}

	if formKey != "" {
		if err := r.driver.Info(ctx, "Form: "+formKey); err != nil {
			return nil, err
		}
	}

	answers := make(map[string]string, len(properties))
	for _, property := range properties {
		if !property.Writable {
			if r.showReadOnly {
				line := fmt.Sprintf("%s: %s", property.Label(), displayValue(property))
				if err := r.driver.Info(ctx, line); err != nil {
					return nil, err
				}
			}
			continue
		}
		answer, err := r.prompt(ctx, property)
		if err != nil {
			return nil, fmt.Errorf("tui: prompt %q: %w", property.ID, err)
		}
		answers[property.ID] = answer
	}

	if r.submitTransformer != nil {
		transformed, err := r.submitTransformer(answers)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
		answers = transformed
	}
	return answers, nil
}

func (r *Renderer) prompt(ctx context.Context, property model.FormProperty) (string, error) {
	message := property.Label()
	current := displayValue(property)

	switch property.Type.Kind {
	case model.KindBoolean:
		ok, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: message,
			Default: current == "true",
		})
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(ok), nil

	case model.KindEnum:
		options := make([]string, 0, len(property.Type.Values))
		defaultIndex := -1
		for i, value := range property.Type.Values {
			label := value.Label
			if label == "" {
				label = value.ID
			}
			options = append(options, label)
			if value.ID == current {
				defaultIndex = i
			}
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      options,
			DefaultIndex: defaultIndex,
		})
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(property.Type.Values) {
			return "", fmt.Errorf("selection %d out of range", idx)
		}
		return property.Type.Values[idx].ID, nil

	default:
		return r.driver.Input(ctx, InputConfig{
			Message:   message,
			Default:   current,
			Help:      helpFor(property),
			Validator: validatorFor(property),
		})
	}
}

func helpFor(property model.FormProperty) string {
	switch property.Type.Kind {
	case model.KindLong:
		return "whole number"
	case model.KindDate:
		return "date in layout " + property.Type.DatePattern
	default:
		return ""
	}
}

// validatorFor mirrors the binder rules so a prompt cannot produce an answer
// the submission will reject.
func validatorFor(property model.FormProperty) func(string) error {
	required := property.Required
	kind := property.Type.Kind
	pattern := property.Type.DatePattern
	if pattern == "" {
		pattern = model.DefaultDatePattern
	}
	return func(raw string) error {
		if strings.TrimSpace(raw) == "" {
			if required {
				return errors.New("value is required")
			}
			return nil
		}
		switch kind {
		case model.KindLong:
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				return errors.New("expected a whole number")
			}
		case model.KindDate:
			if _, err := time.Parse(pattern, raw); err != nil {
				return fmt.Errorf("expected a date like %s", pattern)
			}
		}
		return nil
	}
}

func displayValue(property model.FormProperty) string {
	switch v := property.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		pattern := property.Type.DatePattern
		if pattern == "" {
			pattern = model.DefaultDatePattern
		}
		return v.Format(pattern)
	default:
		return fmt.Sprint(v)
	}
}

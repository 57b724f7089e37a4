package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-taskforms/pkg/model"
)

// Dispatcher selects a form engine and hands it the form key plus a private
// copy of the resolved properties.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher wraps registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Render resolves engineName (or the default when empty) and returns the
// engine's output unchanged. Lookup failures are returned before any engine
// is invoked.
func (d *Dispatcher) Render(ctx context.Context, form model.FormData, engineName string) (RenderedForm, error) {
	if form == nil {
		return nil, errors.New("render: form data is required")
	}
	renderer, err := d.rendererFor(engineName)
	if err != nil {
		return nil, err
	}

	output, err := renderer.Render(ctx, form.FormKey(), model.CloneProperties(form.FormProperties()))
	if err != nil {
		return nil, fmt.Errorf("render: render output: %w", err)
	}
	return output, nil
}

func (d *Dispatcher) rendererFor(name string) (Renderer, error) {
	if d == nil || d.registry == nil {
		return nil, errors.New("render: renderer registry is nil")
	}
	if strings.TrimSpace(name) != "" {
		return d.registry.Lookup(name)
	}
	return d.registry.LookupDefault()
}

package render

import (
	"context"

	"github.com/goliatone/go-taskforms/pkg/model"
)

// RenderedForm is the engine-defined output of a render call. The pipeline
// places no structure on it: HTML engines return bytes, schema engines return
// schema documents, interactive engines return collected answers.
type RenderedForm = any

// Renderer turns a form template reference plus its resolved properties into a
// RenderedForm. Implementations must treat properties as read-only.
type Renderer interface {
	Render(ctx context.Context, formKey string, properties []model.FormProperty) (RenderedForm, error)
}

// RendererFunc adapts a function into a Renderer.
type RendererFunc func(ctx context.Context, formKey string, properties []model.FormProperty) (RenderedForm, error)

// Render calls the underlying function.
func (fn RendererFunc) Render(ctx context.Context, formKey string, properties []model.FormProperty) (RenderedForm, error) {
	return fn(ctx, formKey, properties)
}

// ContentTyper is implemented by renderers whose output has a MIME type.
type ContentTyper interface {
	ContentType() string
}

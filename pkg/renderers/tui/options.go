package tui

import "io"

// SubmitTransformer mutates collected answers before they are returned.
type SubmitTransformer func(map[string]string) (map[string]string, error)

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutput redirects informational lines of the default survey driver.
func WithOutput(w io.Writer) Option {
	return func(r *Renderer) {
		if w != nil {
			r.out = w
		}
	}
}

// WithSubmitTransformer allows callers to mutate collected answers prior to
// returning them.
func WithSubmitTransformer(fn SubmitTransformer) Option {
	return func(r *Renderer) {
		r.submitTransformer = fn
	}
}

// WithReadOnlySummary controls whether non-writable properties are echoed
// through Info before prompting. Enabled by default.
func WithReadOnlySummary(enabled bool) Option {
	return func(r *Renderer) {
		r.showReadOnly = enabled
	}
}

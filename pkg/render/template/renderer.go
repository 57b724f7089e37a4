package template

import (
	"io"
)

// TemplateRenderer is the seam HTML form engines render through. The pongo2
// backed implementation lives in the gotemplate subpackage; tests and callers
// with their own template stack can supply any implementation.
type TemplateRenderer interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
}

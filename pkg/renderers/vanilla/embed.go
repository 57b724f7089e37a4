package vanilla

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// TemplatesFS exposes the embedded template bundle for consumers that want to
// start from the built-in form layout.
func TemplatesFS() fs.FS {
	return embeddedTemplates
}

package render

import (
	"fmt"
	"strings"
)

// UnknownFormEngineError reports a render request naming an engine that was
// never registered.
type UnknownFormEngineError struct {
	Name string
}

func (e *UnknownFormEngineError) Error() string {
	return fmt.Sprintf("render: unknown form engine %q", e.Name)
}

// NoDefaultFormEngineError reports a render request without an engine name
// while no engine is marked default.
type NoDefaultFormEngineError struct {
	Registered []string
}

func (e *NoDefaultFormEngineError) Error() string {
	if len(e.Registered) == 0 {
		return "render: no default form engine (none registered)"
	}
	return "render: no default form engine (registered: " + strings.Join(e.Registered, ", ") + ")"
}

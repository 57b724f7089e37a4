package orchestrator

import (
	"fmt"

	"github.com/goliatone/go-taskforms/pkg/binding"
	"github.com/goliatone/go-taskforms/pkg/render"
	"github.com/goliatone/go-taskforms/pkg/resolver"
)

// Aliases so callers can match every failure of the form pipeline from one
// package.
type (
	NotFoundError            = resolver.NotFoundError
	ValidationError          = binding.ValidationError
	UnknownFormEngineError   = render.UnknownFormEngineError
	NoDefaultFormEngineError = render.NoDefaultFormEngineError
)

// CommitRejectedError reports that the engine refused the start, complete, or
// save transition after the input had bound successfully. The submitted input
// was valid; the target changed underneath the caller.
type CommitRejectedError struct {
	Flow   Flow
	Target string
	Err    error
}

func (e *CommitRejectedError) Error() string {
	return fmt.Sprintf("orchestrator: %s %q rejected: %v", e.Flow, e.Target, e.Err)
}

func (e *CommitRejectedError) Unwrap() error {
	return e.Err
}

package binding

import (
	"strings"

	"github.com/goliatone/go-taskforms/pkg/model"
)

// ValidationError aggregates every violation found in a single Bind call. It
// is never returned partially populated.
type ValidationError struct {
	Violations []model.Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "binding: validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, violation := range e.Violations {
		parts = append(parts, violation.String())
	}
	return "binding: validation failed: " + strings.Join(parts, ", ")
}

// Fields groups violation reasons by property id, the shape renderers use to
// surface inline feedback.
func (e *ValidationError) Fields() map[string][]string {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	out := make(map[string][]string, len(e.Violations))
	for _, violation := range e.Violations {
		out[violation.PropertyID] = append(out[violation.PropertyID], violation.Reason)
	}
	return out
}

// RejectError is returned by custom binders to reject a value with a specific
// reason.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return "binding: rejected: " + e.Reason
}

// Reject builds a RejectError.
func Reject(reason string) error {
	return &RejectError{Reason: reason}
}

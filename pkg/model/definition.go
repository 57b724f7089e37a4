package model

import (
	"errors"
	"fmt"
	"strings"
)

// PropertyDefinition is the authored declaration of a form property. A
// definition's properties are kept in authoring order; resolvers turn them into
// FormProperty values for a specific request.
type PropertyDefinition struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Type     PropertyType `json:"type"`
	Required bool         `json:"required,omitempty"`
	// Writable and Readable default to true when the definition is loaded from a
	// document; see definitions.Load.
	Writable bool `json:"writable"`
	Readable bool `json:"readable"`
	// Default is a raw literal shown as the initial value when no variable
	// exists yet.
	Default string `json:"default,omitempty"`
}

// ValidateDefinitions checks a property sequence for empty or duplicate ids and
// invalid type tags.
func ValidateDefinitions(definitions []PropertyDefinition) error {
	seen := make(map[string]struct{}, len(definitions))
	var errs []error
	for idx, def := range definitions {
		id := strings.TrimSpace(def.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("model: property %d: id is required", idx))
			continue
		}
		if _, exists := seen[id]; exists {
			errs = append(errs, fmt.Errorf("model: duplicate property id %q", id))
			continue
		}
		seen[id] = struct{}{}
		if err := def.Type.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("model: property %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

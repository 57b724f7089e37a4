package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of property types a form can declare.
type Kind string

const (
	KindString  Kind = "string"
	KindLong    Kind = "long"
	KindDate    Kind = "date"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindCustom  Kind = "custom"
)

// DefaultDatePattern is used by date properties that do not declare a layout.
const DefaultDatePattern = "2006-01-02"

// Violation reasons reported by the binder.
const (
	ReasonRequired       = "required"
	ReasonInvalidLong    = "invalid-long"
	ReasonInvalidDate    = "invalid-date"
	ReasonInvalidBoolean = "invalid-boolean"
	ReasonInvalidValue   = "invalid-value"
)

// ParseKind normalises an authored type name into a Kind.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", KindString:
		return KindString, nil
	case KindLong:
		return KindLong, nil
	case KindDate:
		return KindDate, nil
	case KindBoolean:
		return KindBoolean, nil
	case KindEnum:
		return KindEnum, nil
	case KindCustom:
		return KindCustom, nil
	default:
		return "", fmt.Errorf("model: unknown property type %q", raw)
	}
}

// EnumValue is one allowed literal of an enum property. ID is the value that is
// submitted and stored; Label is what renderers show.
type EnumValue struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// PropertyType describes how a raw submitted string is interpreted. Only the
// fields relevant to Kind are populated.
type PropertyType struct {
	Kind          Kind           `json:"kind"`
	DatePattern   string         `json:"datePattern,omitempty"`
	Values        []EnumValue    `json:"values,omitempty"`
	CustomName    string         `json:"customName,omitempty"`
	CustomPayload map[string]any `json:"customPayload,omitempty"`
}

// StringType returns the string property type.
func StringType() PropertyType { return PropertyType{Kind: KindString} }

// LongType returns the 64-bit integer property type.
func LongType() PropertyType { return PropertyType{Kind: KindLong} }

// BooleanType returns the boolean property type.
func BooleanType() PropertyType { return PropertyType{Kind: KindBoolean} }

// DateType returns a date property type parsed with the given Go time layout.
// An empty layout falls back to DefaultDatePattern.
func DateType(pattern string) PropertyType {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultDatePattern
	}
	return PropertyType{Kind: KindDate, DatePattern: pattern}
}

// EnumType returns an enum property type restricted to values.
func EnumType(values ...EnumValue) PropertyType {
	return PropertyType{Kind: KindEnum, Values: append([]EnumValue(nil), values...)}
}

// EnumOf is shorthand for EnumType with ids doubling as labels.
func EnumOf(ids ...string) PropertyType {
	values := make([]EnumValue, 0, len(ids))
	for _, id := range ids {
		values = append(values, EnumValue{ID: id, Label: id})
	}
	return PropertyType{Kind: KindEnum, Values: values}
}

// CustomType returns an engine-specific property type.
func CustomType(name string, payload map[string]any) PropertyType {
	return PropertyType{Kind: KindCustom, CustomName: strings.TrimSpace(name), CustomPayload: payload}
}

// Validate checks the invariants of the type tag.
func (t PropertyType) Validate() error {
	switch t.Kind {
	case KindString, KindLong, KindBoolean:
		return nil
	case KindDate:
		if strings.TrimSpace(t.DatePattern) == "" {
			return errors.New("model: date type requires a pattern")
		}
		return nil
	case KindEnum:
		if len(t.Values) == 0 {
			return errors.New("model: enum type requires at least one value")
		}
		seen := make(map[string]struct{}, len(t.Values))
		for _, value := range t.Values {
			if value.ID == "" {
				return errors.New("model: enum value id is required")
			}
			if _, exists := seen[value.ID]; exists {
				return fmt.Errorf("model: duplicate enum value %q", value.ID)
			}
			seen[value.ID] = struct{}{}
		}
		return nil
	case KindCustom:
		if t.CustomName == "" {
			return errors.New("model: custom type requires a name")
		}
		return nil
	default:
		return fmt.Errorf("model: unknown property type %q", t.Kind)
	}
}

// HasValue reports whether id is one of the allowed enum values.
func (t PropertyType) HasValue(id string) bool {
	for _, value := range t.Values {
		if value.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so renderers and callers cannot alias definition
// state.
func (t PropertyType) Clone() PropertyType {
	out := t
	if t.Values != nil {
		out.Values = append([]EnumValue(nil), t.Values...)
	}
	if t.CustomPayload != nil {
		out.CustomPayload = make(map[string]any, len(t.CustomPayload))
		for key, value := range t.CustomPayload {
			out.CustomPayload[key] = value
		}
	}
	return out
}

// FormProperty is a single field of a resolved form. ID is the binding key on
// submission and stays stable across renders of the same form. A nil Value means
// the property has no current or default value.
type FormProperty struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     PropertyType `json:"type"`
	Required bool         `json:"required"`
	Writable bool         `json:"writable"`
	Value    any          `json:"value,omitempty"`
}

// Label returns Name, falling back to ID.
func (p FormProperty) Label() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.ID
}

// CloneProperties deep-copies a property sequence, preserving order.
func CloneProperties(properties []FormProperty) []FormProperty {
	if properties == nil {
		return nil
	}
	out := make([]FormProperty, len(properties))
	for i, property := range properties {
		out[i] = property
		out[i].Type = property.Type.Clone()
	}
	return out
}

// FormData is the request-scoped read model shared by start and task forms.
type FormData interface {
	FormKey() string
	FormProperties() []FormProperty
}

// StartFormData is the form shown before a process instance exists.
type StartFormData struct {
	ProcessDefinitionID string         `json:"processDefinitionId"`
	DeploymentID        string         `json:"deploymentId"`
	Key                 string         `json:"formKey,omitempty"`
	Properties          []FormProperty `json:"properties"`
}

// FormKey implements FormData.
func (d StartFormData) FormKey() string { return d.Key }

// FormProperties implements FormData.
func (d StartFormData) FormProperties() []FormProperty { return d.Properties }

// TaskFormData is the form used to complete a task.
type TaskFormData struct {
	TaskID              string         `json:"taskId"`
	ProcessDefinitionID string         `json:"processDefinitionId"`
	TaskDefinitionKey   string         `json:"taskDefinitionKey"`
	Key                 string         `json:"formKey,omitempty"`
	Properties          []FormProperty `json:"properties"`
}

// FormKey implements FormData.
func (d TaskFormData) FormKey() string { return d.Key }

// FormProperties implements FormData.
func (d TaskFormData) FormProperties() []FormProperty { return d.Properties }

// Variables maps property ids to typed values: string, int64, time.Time, bool,
// or whatever a custom binder produced.
type Variables map[string]any

// Violation reports why a single property failed to bind.
type Violation struct {
	PropertyID string `json:"propertyId"`
	Reason     string `json:"reason"`
}

func (v Violation) String() string {
	return v.PropertyID + ": " + v.Reason
}

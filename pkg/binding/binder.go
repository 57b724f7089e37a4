package binding

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-taskforms/pkg/model"
)

// CustomBinder converts a raw submitted string for a custom property type. A
// returned *RejectError becomes a violation carrying its reason; any other
// error becomes a violation carrying the error text.
type CustomBinder interface {
	BindCustom(property model.FormProperty, raw string) (any, error)
}

// CustomBinderFunc adapts a function into a CustomBinder.
type CustomBinderFunc func(property model.FormProperty, raw string) (any, error)

// BindCustom calls the underlying function.
func (fn CustomBinderFunc) BindCustom(property model.FormProperty, raw string) (any, error) {
	return fn(property, raw)
}

// Option customises a Binder.
type Option func(*Binder)

// WithCustomBinder registers a binder for custom properties named name.
func WithCustomBinder(name string, binder CustomBinder) Option {
	return func(b *Binder) {
		name = strings.TrimSpace(name)
		if name == "" || binder == nil {
			return
		}
		b.custom[name] = binder
	}
}

// WithLocation sets the location used to interpret dates that carry no zone.
func WithLocation(loc *time.Location) Option {
	return func(b *Binder) {
		if loc != nil {
			b.location = loc
		}
	}
}

// Binder converts raw form input into typed variables. A Binder is immutable
// after New and safe for concurrent use.
type Binder struct {
	custom   map[string]CustomBinder
	location *time.Location
}

// New constructs a Binder applying any provided options.
func New(options ...Option) *Binder {
	b := &Binder{
		custom:   make(map[string]CustomBinder),
		location: time.UTC,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// Bind converts input into typed variables for every writable property. Every
// violation is collected before returning; the error is a *ValidationError
// whose violations follow property order. Non-writable properties are ignored
// even when present in input.
func (b *Binder) Bind(properties []model.FormProperty, input map[string]string) (model.Variables, error) {
	return b.bind(properties, input, true)
}

// BindPartial behaves like Bind but does not report missing required
// properties. It still rejects values that fail type conversion.
func (b *Binder) BindPartial(properties []model.FormProperty, input map[string]string) (model.Variables, error) {
	return b.bind(properties, input, false)
}

func (b *Binder) bind(properties []model.FormProperty, input map[string]string, checkRequired bool) (model.Variables, error) {
	vars := make(model.Variables)
	var violations []model.Violation

	for _, property := range properties {
		if !property.Writable {
			continue
		}
		raw, present := input[property.ID]
		if !present || strings.TrimSpace(raw) == "" {
			if property.Required && checkRequired {
				violations = append(violations, model.Violation{PropertyID: property.ID, Reason: model.ReasonRequired})
			}
			continue
		}

		value, reason := b.convert(property, raw)
		if reason != "" {
			violations = append(violations, model.Violation{PropertyID: property.ID, Reason: reason})
			continue
		}
		vars[property.ID] = value
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return vars, nil
}

func (b *Binder) convert(property model.FormProperty, raw string) (any, string) {
	switch property.Type.Kind {
	case model.KindLong:
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, model.ReasonInvalidLong
		}
		return parsed, ""
	case model.KindDate:
		pattern := property.Type.DatePattern
		if pattern == "" {
			pattern = model.DefaultDatePattern
		}
		parsed, err := time.ParseInLocation(pattern, raw, b.location)
		if err != nil {
			return nil, model.ReasonInvalidDate
		}
		return parsed, ""
	case model.KindBoolean:
		switch {
		case strings.EqualFold(raw, "true"):
			return true, ""
		case strings.EqualFold(raw, "false"):
			return false, ""
		default:
			return nil, model.ReasonInvalidBoolean
		}
	case model.KindEnum:
		if !property.Type.HasValue(raw) {
			return nil, model.ReasonInvalidValue
		}
		return raw, ""
	case model.KindCustom:
		binder, ok := b.custom[property.Type.CustomName]
		if !ok {
			return raw, ""
		}
		value, err := binder.BindCustom(property, raw)
		if err != nil {
			return nil, rejectionReason(err)
		}
		return value, ""
	default:
		return raw, ""
	}
}

func rejectionReason(err error) string {
	var reject *RejectError
	if errors.As(err, &reject) && strings.TrimSpace(reject.Reason) != "" {
		return reject.Reason
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return model.ReasonInvalidValue
}

// Bind is a convenience wrapper around a zero-option Binder.
func Bind(properties []model.FormProperty, input map[string]string) (model.Variables, error) {
	return New().Bind(properties, input)
}

package model

// Decorator enriches resolved form properties (labels, display values) after
// the resolver has produced them. Decorators receive a private copy and must not
// reach back into definition state.
type Decorator interface {
	Decorate([]FormProperty) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func([]FormProperty) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(properties []FormProperty) error {
	return fn(properties)
}

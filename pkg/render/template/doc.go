// Package template defines the renderer-agnostic template contract used by
// HTML form engines.
package template

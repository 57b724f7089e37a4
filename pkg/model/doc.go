// Package model defines the value objects that flow through the form pipeline:
// typed form properties, the start/task form read models, authored property
// definitions, and the typed variables produced by binding. Nothing in this
// package is persisted; form data is rebuilt per request from definition
// metadata and the task's current variables.
package model

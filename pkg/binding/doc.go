// Package binding converts raw submitted strings into typed process variables
// according to each property's declared type. Binding never stops at the first
// problem: callers receive every violation of a submission in one
// ValidationError so a form can be re-shown with complete feedback.
package binding

// Package orchestrator is the single entry point of the form subsystem. It
// wires the resolver → form engine dispatcher pipeline for reads and the
// resolver → binder → engine commit pipeline for start, complete and save
// submissions, so a caller never observes variables applied without the
// matching transition.
package orchestrator

// Package endpoint implements the endpoint-execution stage of the dispatch
// pipeline.
//
// The stage runs after the dispatcher stage has selected an endpoint. It asks
// each configured handler factory, in order, for a builder for that endpoint.
// The first non-nil builder wins: it is applied to the stage's downstream
// continuation and the resulting handler is executed between the
// "endpoint execution start" and "endpoint execution end" events.
//
// When no factory claims the endpoint the stage logs a warning and calls its
// downstream continuation unchanged.
package endpoint

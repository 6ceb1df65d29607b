// Package dispatcher implements the first stage of the dispatch pipeline.
//
// # Architecture
//
// Every request gets a fresh Feature, stored in the request context. The
// configured dispatchers run in order against it; each may select an
// Endpoint, supply a short-circuit handler, or do nothing:
//
//	Dispatch(r, feature) -> handler set?   stop, run handler, skip next
//	                     -> endpoint set?  stop, call next
//	                     -> neither        try the next dispatcher
//
// When the chain is exhausted without a decision, next is called with the
// request unchanged. The endpoint stage (package endpoint) reads the same
// Feature to resolve and run a handler for the selected endpoint.
//
// Options are built once at startup and shared read-only by every request.
package dispatcher

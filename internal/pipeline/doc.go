// Package pipeline wires the dispatcher and endpoint stages into a single
// request handler.
//
// A request flows through three continuations:
//
//	dispatcher stage -> endpoint stage -> fallback
//
// The dispatcher stage creates the per-request dispatch feature and consults
// the configured dispatchers in order. A dispatcher may short-circuit the
// request, in which case its handler runs and nothing downstream is called.
// Otherwise the endpoint stage resolves a handler for the selected endpoint
// from the configured handler factories. Requests that match nothing, and
// endpoints no factory claims, reach the fallback, which by default renders
// a JSON 404.
//
// The pipeline can be mounted as an http.Handler (Handler) or as chi-style
// middleware in front of an existing router (Middleware), where the wrapped
// handler becomes the fallback.
package pipeline

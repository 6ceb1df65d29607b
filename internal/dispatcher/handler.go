package dispatcher

import "net/http"

// HandlerFunc handles a request. It returns once the response has been
// produced or delegated; a non-nil error propagates to the caller unchanged.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// FromHTTP adapts a net/http handler. The adapted handler never fails.
func FromHTTP(h http.Handler) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	}
}

// Builder wraps the downstream continuation into the handler for an endpoint.
type Builder func(next HandlerFunc) HandlerFunc

// HandlerFactory produces a Builder for endpoints it knows how to serve.
// A nil Builder means the endpoint is not handled by this factory.
type HandlerFactory interface {
	CreateHandler(ep Endpoint) Builder
}

// HandlerFactoryFunc adapts a function to HandlerFactory.
type HandlerFactoryFunc func(ep Endpoint) Builder

// CreateHandler calls f(ep).
func (f HandlerFactoryFunc) CreateHandler(ep Endpoint) Builder {
	return f(ep)
}

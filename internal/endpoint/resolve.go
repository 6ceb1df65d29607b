package endpoint

import "github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"

// Resolve asks factories, in order, for a builder for ep. The first non-nil
// builder is applied to next and returned together with the index of the
// factory that produced it. Later factories are not consulted. When no
// factory yields a builder Resolve returns nil and -1.
func Resolve(factories []dispatcher.HandlerFactory, ep dispatcher.Endpoint, next dispatcher.HandlerFunc) (dispatcher.HandlerFunc, int) {
	for i, factory := range factories {
		builder := factory.CreateHandler(ep)
		if builder == nil {
			continue
		}
		return builder(next), i
	}
	return nil, -1
}

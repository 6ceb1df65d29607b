package handlers

import "github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"

// Passthrough claims passthrough endpoints and hands them to next, so the
// downstream router serves them inside the endpoint execution events.
func Passthrough() dispatcher.HandlerFactory {
	return dispatcher.HandlerFactoryFunc(func(ep dispatcher.Endpoint) dispatcher.Builder {
		if _, ok := dispatcher.IsKind(ep, dispatcher.KindPassthrough); !ok {
			return nil
		}
		return func(next dispatcher.HandlerFunc) dispatcher.HandlerFunc {
			return next
		}
	})
}

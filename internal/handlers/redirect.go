package handlers

import (
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

// Redirect serves redirect endpoints. Status defaults to 302; anything
// outside 3xx is treated as 302.
func Redirect() dispatcher.HandlerFactory {
	return dispatcher.HandlerFactoryFunc(func(ep dispatcher.Endpoint) dispatcher.Builder {
		d, ok := dispatcher.IsKind(ep, dispatcher.KindRedirect)
		if !ok {
			return nil
		}
		status := d.Status
		if status < 300 || status > 399 {
			status = http.StatusFound
		}
		return func(next dispatcher.HandlerFunc) dispatcher.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) error {
				if d.Target == "" {
					return server.NewAPIError(http.StatusInternalServerError, "redirect endpoint has no target", nil)
				}
				http.Redirect(w, r, d.Target, status)
				return nil
			}
		}
	})
}

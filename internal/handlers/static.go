package handlers

import (
	"io"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
)

// Static serves static endpoints.
func Static() dispatcher.HandlerFactory {
	return dispatcher.HandlerFactoryFunc(func(ep dispatcher.Endpoint) dispatcher.Builder {
		d, ok := dispatcher.IsKind(ep, dispatcher.KindStatic)
		if !ok {
			return nil
		}
		return func(next dispatcher.HandlerFunc) dispatcher.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) error {
				status := d.Status
				if status == 0 {
					status = http.StatusOK
				}
				for k, v := range d.Headers {
					w.Header().Set(k, v)
				}
				if w.Header().Get("Content-Type") == "" && d.Body != "" {
					w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				}
				w.WriteHeader(status)
				if r.Method == http.MethodHead {
					return nil
				}
				_, err := io.WriteString(w, d.Body)
				return err
			}
		}
	})
}

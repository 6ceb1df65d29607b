package routes

import (
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-dispatch/internal/auth"
	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

// Auth short-circuits requests without a valid bearer API key. Paths with
// one of the exempt prefixes are not checked; empty prefixes are ignored.
// Authenticated requests are left undecided so later dispatchers can route
// them.
func Auth(name string, a *auth.Authenticator, exempt []string) dispatcher.Dispatcher {
	prefixes := make([]string, 0, len(exempt))
	for _, p := range exempt {
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	exempt = prefixes

	return dispatcher.DispatcherFunc(func(r *http.Request, f *dispatcher.Feature) error {
		for _, prefix := range exempt {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return nil
			}
		}

		apiKey, err := auth.ExtractAPIKey(r)
		if err == nil {
			var key auth.Key
			key, err = a.ValidateAPIKey(apiKey)
			if err == nil {
				server.AddLogField(r.Context(), "api_key", key.Name)
				return nil
			}
		}

		reason := err.Error()
		f.SetHandler(func(w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("WWW-Authenticate", `Bearer realm="dispatch"`)
			return server.NewAPIError(http.StatusUnauthorized, reason, &DeniedError{
				Dispatcher: name,
				Reason:     reason,
				StatusCode: http.StatusUnauthorized,
			})
		})
		return nil
	})
}

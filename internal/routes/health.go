package routes

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
)

// DefaultHealthPath is used when no path is configured.
const DefaultHealthPath = "/health"

// Health short-circuits GET and HEAD requests for path with a JSON 200.
func Health(path string) dispatcher.Dispatcher {
	if path == "" {
		path = DefaultHealthPath
	}
	return dispatcher.DispatcherFunc(func(r *http.Request, f *dispatcher.Feature) error {
		if r.URL.Path != path || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			return nil
		}
		f.SetHandler(healthHandler)
		return nil
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return nil
	}
	return json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

package dispatcher

import (
	"fmt"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

// Execute runs h exactly once between a start and an end event. The end
// event fires on every exit path: normal return, returned error, and panic.
// Errors and panics propagate unchanged.
func Execute(obs *telemetry.Observer, kind telemetry.ExecutionKind, name string, h HandlerFunc, w http.ResponseWriter, r *http.Request) (err error) {
	ctx, finish := obs.Begin(r.Context(), kind, name)
	defer func() {
		if p := recover(); p != nil {
			finish(fmt.Errorf("panic: %v", p))
			panic(p)
		}
		finish(err)
	}()

	return h(w, r.WithContext(ctx))
}

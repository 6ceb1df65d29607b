package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
)

// Table selects endpoints by matching the request against their chi route
// patterns. The chi tree is only used as a matcher: route handlers record
// the matched endpoint and never write a response.
type Table struct {
	mux *chi.Mux
}

var _ dispatcher.Dispatcher = (*Table)(nil)

type matchKey struct{}

type match struct {
	endpoint *dispatcher.Descriptor
}

// NewTable registers every endpoint's Method and Pattern. An empty method or
// "*" matches any method.
func NewTable(endpoints []*dispatcher.Descriptor) (*Table, error) {
	mux := chi.NewMux()
	noop := func(http.ResponseWriter, *http.Request) {}
	mux.NotFound(noop)
	mux.MethodNotAllowed(noop)

	for _, ep := range endpoints {
		if err := register(mux, ep); err != nil {
			return nil, err
		}
	}
	return &Table{mux: mux}, nil
}

func register(mux *chi.Mux, ep *dispatcher.Descriptor) (err error) {
	// chi panics on malformed patterns and unknown methods.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("endpoint %s: %v", ep.DisplayName(), p)
		}
	}()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m, ok := r.Context().Value(matchKey{}).(*match); ok {
			m.endpoint = ep
		}
	})
	if ep.Method == "" || ep.Method == "*" {
		mux.Handle(ep.Pattern, h)
	} else {
		mux.Method(ep.Method, ep.Pattern, h)
	}
	return nil
}

func (t *Table) Dispatch(r *http.Request, f *dispatcher.Feature) error {
	m := &match{}
	ctx := context.WithValue(r.Context(), matchKey{}, m)
	// Route from scratch even when mounted under another chi router.
	ctx = context.WithValue(ctx, chi.RouteCtxKey, nil)

	t.mux.ServeHTTP(discardWriter{}, r.WithContext(ctx))

	if m.endpoint != nil {
		f.SetEndpoint(m.endpoint)
	}
	return nil
}

// discardWriter absorbs anything written by the matcher.
type discardWriter struct{}

func (discardWriter) Header() http.Header         { return http.Header{} }
func (discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (discardWriter) WriteHeader(int)             {}

package endpoint

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

const unknownEndpoint = "<unknown>"

// Middleware is the endpoint-execution stage.
type Middleware struct {
	factories []dispatcher.HandlerFactory
	next      dispatcher.HandlerFunc
	logger    *slog.Logger
	observer  *telemetry.Observer
}

// Option is a functional option for configuring a Middleware.
type Option func(*Middleware)

// WithLogger sets the logger used when no observer is supplied.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

// WithObserver sets the observer that receives pipeline events.
func WithObserver(obs *telemetry.Observer) Option {
	return func(m *Middleware) {
		m.observer = obs
	}
}

// NewMiddleware creates the endpoint stage. Only opts.HandlerFactories is
// used; the slice is copied.
func NewMiddleware(opts *dispatcher.Options, next dispatcher.HandlerFunc, mwOpts ...Option) (*Middleware, error) {
	if opts == nil {
		return nil, fmt.Errorf("endpoint middleware: %w", dispatcher.ErrNilOptions)
	}
	if next == nil {
		return nil, fmt.Errorf("endpoint middleware: %w", dispatcher.ErrNilNext)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("endpoint middleware: %w", err)
	}

	m := &Middleware{
		factories: append([]dispatcher.HandlerFactory(nil), opts.HandlerFactories...),
		next:      next,
		logger:    slog.Default(),
	}
	for _, opt := range mwOpts {
		opt(m)
	}
	if m.observer == nil {
		m.observer = telemetry.NewObserver(m.logger, nil)
	}
	return m, nil
}

// Invoke executes the handler for the request's selected endpoint. Requests
// without an endpoint, and endpoints no factory claims, go to next.
func (m *Middleware) Invoke(w http.ResponseWriter, r *http.Request) error {
	f, err := dispatcher.FromContext(r.Context())
	if err != nil {
		return fmt.Errorf("endpoint middleware: %w", err)
	}

	ep := f.Endpoint()
	if ep != nil && f.Handler() == nil {
		if h, _ := Resolve(m.factories, ep, m.next); h != nil {
			f.SetHandler(h)
		} else {
			m.observer.NoHandler(r.Context(), ep.DisplayName())
		}
	}

	h := f.Handler()
	if h == nil {
		return m.next(w, r)
	}

	name := unknownEndpoint
	if ep != nil {
		name = ep.DisplayName()
	}
	return dispatcher.Execute(m.observer, telemetry.KindEndpoint, name, h, w, r)
}

package dispatcher

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

// Middleware is the dispatcher stage: the entry point of the pipeline.
type Middleware struct {
	runner   *Runner
	next     HandlerFunc
	logger   *slog.Logger
	observer *telemetry.Observer
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

// NewMiddleware creates the dispatcher stage. next is the downstream
// continuation, normally the endpoint stage. Missing options or next are
// configuration errors.
func NewMiddleware(opts *Options, next HandlerFunc, mwOpts ...Option) (*Middleware, error) {
	if opts == nil {
		return nil, fmt.Errorf("dispatcher middleware: %w", ErrNilOptions)
	}
	if next == nil {
		return nil, fmt.Errorf("dispatcher middleware: %w", ErrNilNext)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher middleware: %w", err)
	}

	m := &Middleware{
		next:   next,
		logger: slog.Default(),
	}
	for _, opt := range mwOpts {
		opt(m)
	}
	if m.observer == nil {
		m.observer = telemetry.NewObserver(m.logger, nil)
	}

	// Copy so later appends by the caller cannot reach running requests.
	entries := make([]Entry, len(opts.Dispatchers))
	copy(entries, opts.Dispatchers)
	m.runner = NewRunner(entries, m.observer)

	return m, nil
}

// Invoke runs the dispatcher chain for one request. A short-circuit handler
// is executed here and next is skipped; otherwise next is called with the
// request carrying the Feature.
func (m *Middleware) Invoke(w http.ResponseWriter, r *http.Request) error {
	f := NewFeature()
	r = r.WithContext(WithFeature(r.Context(), f))

	res, err := m.runner.Run(r, f)
	if err != nil {
		return err
	}

	if res.Outcome == OutcomeShortCircuit {
		return Execute(m.observer, telemetry.KindShortCircuit, res.Entry, f.Handler(), w, r)
	}

	return m.next(w, r)
}

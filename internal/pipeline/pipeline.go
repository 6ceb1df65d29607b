package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/endpoint"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

// Config configures a Pipeline.
type Config struct {
	// Options holds the ordered dispatchers and handler factories
	Options *dispatcher.Options

	// Fallback handles requests nothing else handled. Defaults to NotFound.
	Fallback dispatcher.HandlerFunc

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Pipeline is the assembled two-stage dispatch pipeline.
type Pipeline struct {
	entry  *dispatcher.Middleware
	logger *slog.Logger
}

// New builds the pipeline. Configuration errors from either stage are
// returned as is.
func New(cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = NotFound
	}
	obs := telemetry.NewObserver(logger, cfg.Metrics)

	endpointStage, err := endpoint.NewMiddleware(cfg.Options, fallback, endpoint.WithObserver(obs))
	if err != nil {
		return nil, err
	}
	dispatchStage, err := dispatcher.NewMiddleware(cfg.Options, endpointStage.Invoke, dispatcher.WithObserver(obs))
	if err != nil {
		return nil, err
	}

	return &Pipeline{entry: dispatchStage, logger: logger}, nil
}

// Invoke runs one request through the pipeline.
func (p *Pipeline) Invoke(w http.ResponseWriter, r *http.Request) error {
	return p.entry.Invoke(w, r)
}

// Handler returns the pipeline as an http.Handler. Errors that escape the
// pipeline are rendered by server.Adapt.
func (p *Pipeline) Handler() http.Handler {
	return server.Adapt(p.Invoke, p.logger)
}

// Middleware returns chi-compatible middleware that runs the pipeline in
// front of the wrapped handler. The wrapped handler is the fallback, so
// cfg.Fallback is ignored.
func Middleware(cfg Config) (func(http.Handler) http.Handler, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline middleware: %w", err)
	}
	return func(next http.Handler) http.Handler {
		c := cfg
		c.Fallback = dispatcher.FromHTTP(next)
		p, err := New(c)
		if err != nil {
			// Options were validated above and the fallback is never nil.
			panic(err)
		}
		return p.Handler()
	}, nil
}

// NotFound is the default fallback.
func NotFound(w http.ResponseWriter, r *http.Request) error {
	return server.NewAPIError(http.StatusNotFound, fmt.Sprintf("no endpoint for %s %s", r.Method, r.URL.Path), nil)
}

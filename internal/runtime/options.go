package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/handlers"
	"github.com/tjfontaine/polyglot-dispatch/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage/sqlite"
	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig loads configuration from a YAML file plus DISPATCH_
// environment overrides.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithSQLite uses the SQLite route store at path, overriding
// storage.sqlite.path. The gateway closes it on Shutdown.
func WithSQLite(path string) Option {
	return func(g *Gateway) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		g.store = store
		g.ownsStore = true
		return nil
	}
}

// WithStore sets a custom route store. The caller keeps ownership.
func WithStore(store storage.RouteStore) Option {
	return func(g *Gateway) error {
		g.store = store
		g.ownsStore = false
		return nil
	}
}

// WithDispatchers appends dispatchers after the configured chain.
func WithDispatchers(entries ...dispatcher.Entry) Option {
	return func(g *Gateway) error {
		g.extraDispatchers = append(g.extraDispatchers, entries...)
		return nil
	}
}

// WithHandlerFactories appends handler factories after the configured ones.
func WithHandlerFactories(factories ...dispatcher.HandlerFactory) Option {
	return func(g *Gateway) error {
		g.extraFactories = append(g.extraFactories, factories...)
		return nil
	}
}

// WithHandlerRegistry resolves configured handler kinds through r, which
// may carry custom kinds.
func WithHandlerRegistry(r *handlers.Registry) Option {
	return func(g *Gateway) error {
		g.registry = r
		return nil
	}
}

// WithFallback serves requests the pipeline does not handle. The default
// is a JSON 404.
func WithFallback(h http.Handler) Option {
	return func(g *Gateway) error {
		g.fallback = h
		return nil
	}
}

// WithTransport sets the transport used for proxy upstreams and webhook
// dispatchers.
func WithTransport(rt http.RoundTripper) Option {
	return func(g *Gateway) error {
		g.transport = rt
		return nil
	}
}

// WithMetrics sets the Prometheus metrics the pipeline reports to.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gateway) error {
		g.metrics = m
		return nil
	}
}

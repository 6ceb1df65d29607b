// Package runtime provides the Gateway struct and lifecycle management for
// the dispatch service.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-dispatch/internal/auth"
	"github.com/tjfontaine/polyglot-dispatch/internal/controlplane"
	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/handlers"
	"github.com/tjfontaine/polyglot-dispatch/internal/pipeline"
	"github.com/tjfontaine/polyglot-dispatch/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dispatch/internal/routes"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage/memory"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage/sqlite"
	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

// Gateway is the main entry point for running the dispatch pipeline.
// It owns configuration, the route store, the pipeline and the HTTP server.
// Gateway can be embedded in larger applications or run standalone.
type Gateway struct {
	// Dependencies (injected via options)
	cfg              *config.Config
	store            storage.RouteStore
	ownsStore        bool
	logger           *slog.Logger
	metrics          *telemetry.Metrics
	registry         *handlers.Registry
	transport        http.RoundTripper
	fallback         http.Handler
	extraDispatchers []dispatcher.Entry
	extraFactories   []dispatcher.HandlerFactory

	// Assembled in New
	catalog  *routes.Catalog
	pipeline *pipeline.Pipeline
	server   *server.Server

	// Lifecycle management
	mu      sync.Mutex
	started bool
	errc    chan error
}

// New creates a Gateway. Without WithFileConfig or WithConfig the defaults
// are used: no dispatchers, static/redirect/proxy handlers, in-memory store.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			gw.closeStore()
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if err := gw.init(); err != nil {
		gw.closeStore()
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) init() error {
	if g.cfg == nil {
		g.cfg = config.Default()
	}
	if g.metrics == nil {
		g.metrics = telemetry.NewMetrics("")
	}
	if g.registry == nil {
		g.registry = handlers.NewRegistry()
	}

	if g.store == nil {
		if path := g.cfg.Storage.SQLite.Path; path != "" {
			store, err := sqlite.New(path)
			if err != nil {
				return fmt.Errorf("create sqlite storage: %w", err)
			}
			g.store = store
		} else {
			g.logger.Info("no route database configured, using in-memory store")
			g.store = memory.New()
		}
		g.ownsStore = true
	}

	g.catalog = routes.NewCatalog(g.cfg.Endpoints)
	if g.cfg.Storage.SeedEndpoints {
		if err := g.seed(context.Background()); err != nil {
			return fmt.Errorf("seed routes: %w", err)
		}
	}

	var client *http.Client
	if g.transport != nil {
		client = &http.Client{Transport: otelhttp.NewTransport(g.transport)}
	}
	entries, err := routes.Build(g.cfg.Dispatchers, routes.Deps{
		Catalog:    g.catalog,
		Store:      g.store,
		HTTPClient: client,
		Logger:     g.logger,
	})
	if err != nil {
		return fmt.Errorf("build dispatchers: %w", err)
	}
	entries = append(entries, g.extraDispatchers...)

	factories, err := g.registry.Build(g.cfg.Handlers, handlers.Deps{
		Transport: g.transport,
		Logger:    g.logger,
	})
	if err != nil {
		return fmt.Errorf("build handlers: %w", err)
	}
	factories = append(factories, g.extraFactories...)

	var fallback dispatcher.HandlerFunc
	if g.fallback != nil {
		fallback = dispatcher.FromHTTP(g.fallback)
	}

	g.pipeline, err = pipeline.New(pipeline.Config{
		Options: &dispatcher.Options{
			Dispatchers:      entries,
			HandlerFactories: factories,
		},
		Fallback: fallback,
		Logger:   g.logger,
		Metrics:  g.metrics,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	g.server = server.New(server.Options{
		Port:           g.cfg.Server.Port,
		RequestTimeout: g.cfg.Server.RequestTimeout,
		ReadTimeout:    g.cfg.Server.ReadTimeout,
		WriteTimeout:   g.cfg.Server.WriteTimeout,
		ServiceName:    g.cfg.Telemetry.ServiceName,
		Logger:         g.logger,
	})
	pipelineHandler := g.pipeline.Handler()
	if path := g.cfg.Telemetry.MetricsPath; path != "" {
		g.server.Router.Handle(path, metricsOrPipeline(g.metrics.Handler(), pipelineHandler))
	}
	if path := g.cfg.Server.Admin.Path; path != "" {
		g.server.Router.Mount(path, g.adminServer(entries))
	}
	g.server.Router.Handle("/*", pipelineHandler)

	g.logger.Info("pipeline assembled",
		slog.Int("dispatchers", len(entries)),
		slog.Int("handler_factories", len(factories)),
		slog.Int("endpoints", len(g.catalog.All())))
	return nil
}

// seed copies configured endpoints into the route store. Patterns with chi
// parameters cannot be expressed as stored routes and are skipped.
func (g *Gateway) seed(ctx context.Context) error {
	for _, d := range g.catalog.All() {
		if d.Pattern == "" {
			continue
		}
		if strings.Contains(d.Pattern, "{") {
			g.logger.Warn("endpoint pattern has parameters, not seeding",
				slog.String("endpoint", d.Name),
				slog.String("pattern", d.Pattern))
			continue
		}
		if err := g.store.PutRoute(ctx, routes.RouteFromDescriptor(d)); err != nil {
			return fmt.Errorf("endpoint %s: %w", d.Name, err)
		}
	}
	return nil
}

// metricsOrPipeline serves scrapes on the metrics path and hands every
// other method to the pipeline.
func metricsOrPipeline(metrics, pipeline http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			metrics.ServeHTTP(w, r)
			return
		}
		pipeline.ServeHTTP(w, r)
	})
}

func (g *Gateway) adminServer(entries []dispatcher.Entry) *controlplane.Server {
	switches := make(map[string]controlplane.Switch)
	for _, e := range entries {
		if m, ok := e.Dispatcher.(*routes.Maintenance); ok {
			switches[e.Name] = m
		}
	}

	var authn *auth.Authenticator
	if keys := g.cfg.Server.Admin.Keys; len(keys) > 0 {
		converted := make([]auth.Key, len(keys))
		for i, k := range keys {
			converted[i] = auth.Key{Name: k.Name, KeyHash: k.KeyHash}
		}
		authn = auth.NewAuthenticator(converted)
	}

	return controlplane.NewServer(controlplane.Options{
		Store:         g.store,
		Switches:      switches,
		Authenticator: authn,
		Logger:        g.logger,
	})
}

// Handler returns the full HTTP stack: server middleware, metrics endpoint
// and the dispatch pipeline.
func (g *Gateway) Handler() http.Handler {
	return g.server.Router
}

// Store returns the route store backing store dispatchers.
func (g *Gateway) Store() storage.RouteStore {
	return g.store
}

// Config returns the configuration the gateway was built from.
func (g *Gateway) Config() *config.Config {
	return g.cfg
}

// Start begins serving in the background. Serve errors are logged and
// reported by Wait. Cancelling ctx does not stop the server; call Shutdown.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return errors.New("gateway already started")
	}
	g.started = true
	g.errc = make(chan error, 1)

	go func() {
		err := g.server.Start()
		if err != nil {
			g.logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
		}
		g.errc <- err
	}()

	g.logger.InfoContext(ctx, "gateway started", slog.Int("port", g.cfg.Server.Port))
	return nil
}

// Wait blocks until the server stops and returns its error, if any.
func (g *Gateway) Wait() error {
	g.mu.Lock()
	errc := g.errc
	g.mu.Unlock()
	if errc == nil {
		return nil
	}
	err := <-errc
	errc <- err
	return err
}

// Shutdown gracefully stops the server and closes the route store when the
// gateway opened it.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.started {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}
	g.closeStore()

	g.logger.Info("gateway shutdown complete")
	return nil
}

func (g *Gateway) closeStore() {
	if g.store == nil || !g.ownsStore {
		return
	}
	if err := g.store.Close(); err != nil {
		g.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}
	g.store = nil
}

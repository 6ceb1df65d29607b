package routes

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/auth"
	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
)

// Deps are the collaborators dispatchers may need.
type Deps struct {
	Catalog    *Catalog
	Store      storage.RouteStore
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Build creates the dispatcher chain in configuration order.
func Build(cfgs []config.DispatcherConfig, deps Deps) ([]dispatcher.Entry, error) {
	entries := make([]dispatcher.Entry, 0, len(cfgs))
	for _, cfg := range cfgs {
		d, err := newDispatcher(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("dispatcher %s: %w", cfg.Name, err)
		}
		entries = append(entries, dispatcher.Entry{Name: cfg.Name, Dispatcher: d})
	}
	return entries, nil
}

func newDispatcher(cfg config.DispatcherConfig, deps Deps) (dispatcher.Dispatcher, error) {
	switch cfg.Type {
	case config.DispatcherHealth:
		return Health(cfg.Path), nil

	case config.DispatcherAuth:
		keys := make([]auth.Key, len(cfg.Keys))
		for i, k := range cfg.Keys {
			keys[i] = auth.Key{Name: k.Name, KeyHash: k.KeyHash}
		}
		return Auth(cfg.Name, auth.NewAuthenticator(keys), cfg.Exempt), nil

	case config.DispatcherMaintenance:
		return NewMaintenance(cfg.Name, cfg.Enabled, cfg.RetryAfter, cfg.Message), nil

	case config.DispatcherTable:
		endpoints, err := deps.Catalog.Routable(cfg.Endpoints)
		if err != nil {
			return nil, err
		}
		return NewTable(endpoints)

	case config.DispatcherStore:
		if deps.Store == nil {
			return nil, fmt.Errorf("no route store configured")
		}
		return NewStoreDispatcher(deps.Store), nil

	case config.DispatcherWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		return NewWebhook(WebhookConfig{
			Name:    cfg.Name,
			URL:     cfg.URL,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
			OnError: cfg.OnError,
			Headers: cfg.Headers,
			Catalog: deps.Catalog,
			Client:  deps.HTTPClient,
			Logger:  deps.Logger,
		}), nil

	default:
		return nil, fmt.Errorf("unknown type %q", cfg.Type)
	}
}

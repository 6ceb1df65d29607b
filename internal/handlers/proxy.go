package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/pkg/safehttp"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

// ProxyFactory serves proxy endpoints with a reverse proxy to the
// endpoint's target.
type ProxyFactory struct {
	transport http.RoundTripper
	safe      http.RoundTripper
	logger    *slog.Logger
}

var _ dispatcher.HandlerFactory = (*ProxyFactory)(nil)

// NewProxy creates a proxy factory. transport defaults to
// http.DefaultTransport; endpoints with BlockPrivate use a transport that
// refuses private destinations instead. Both are instrumented with otelhttp.
func NewProxy(transport http.RoundTripper, logger *slog.Logger) *ProxyFactory {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyFactory{
		transport: otelhttp.NewTransport(transport),
		safe:      otelhttp.NewTransport(safehttp.NewTransport()),
		logger:    logger,
	}
}

func (p *ProxyFactory) CreateHandler(ep dispatcher.Endpoint) dispatcher.Builder {
	d, ok := dispatcher.IsKind(ep, dispatcher.KindProxy)
	if !ok {
		return nil
	}

	target, err := url.Parse(d.Target)
	if err == nil && (target.Scheme == "" || target.Host == "") {
		err = fmt.Errorf("target %q is not an absolute URL", d.Target)
	}
	if err != nil {
		cfgErr := server.NewAPIError(http.StatusInternalServerError, "proxy endpoint is misconfigured", err)
		return func(next dispatcher.HandlerFunc) dispatcher.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) error { return cfgErr }
		}
	}

	transport := p.transport
	if d.BlockPrivate {
		transport = p.safe
	}

	return func(next dispatcher.HandlerFunc) dispatcher.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			var upstreamErr error
			proxy := &httputil.ReverseProxy{
				Rewrite: func(pr *httputil.ProxyRequest) {
					pr.SetURL(target)
					pr.SetXForwarded()
					if id := server.GetRequestID(r.Context()); id != "" {
						pr.Out.Header.Set(server.RequestIDHeader, id)
					}
				},
				Transport: transport,
				ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
					upstreamErr = err
				},
			}
			proxy.ServeHTTP(w, r)

			if upstreamErr == nil {
				return nil
			}
			if r.Context().Err() != nil {
				return r.Context().Err()
			}
			p.logger.WarnContext(r.Context(), "upstream request failed",
				slog.String("request_id", server.GetRequestID(r.Context())),
				slog.String("endpoint", d.DisplayName()),
				slog.String("target", d.Target),
				slog.String("error", upstreamErr.Error()))
			return server.NewAPIError(http.StatusBadGateway, "upstream request failed", upstreamErr)
		}
	}
}

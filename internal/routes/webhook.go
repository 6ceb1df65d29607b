package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

// Webhook actions.
const (
	ActionRoute = "route"
	ActionDeny  = "deny"
	ActionPass  = "pass"
)

// On-error behaviours.
const (
	OnErrorAllow = "allow"
	OnErrorDeny  = "deny"
)

// WebhookRequest is posted to the decision service for every request.
type WebhookRequest struct {
	RequestID string            `json:"request_id,omitempty"`
	Method    string            `json:"method"`
	Host      string            `json:"host"`
	Path      string            `json:"path"`
	Query     string            `json:"query,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// WebhookResponse is the decision returned by the service.
type WebhookResponse struct {
	Action   string `json:"action"`
	Endpoint string `json:"endpoint,omitempty"`
	Status   int    `json:"status,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// WebhookConfig configures a webhook dispatcher.
type WebhookConfig struct {
	Name    string
	URL     string
	Timeout time.Duration
	Retries int
	OnError string // allow or deny (default deny)
	Headers map[string]string

	// Catalog resolves the endpoint names the service routes to
	Catalog *Catalog

	// Client defaults to an otelhttp-instrumented client; Timeout applies
	// when the client sets none
	Client *http.Client
	Logger *slog.Logger
}

// Webhook asks a remote decision service where a request should go.
type Webhook struct {
	name    string
	url     string
	retries int
	onError string
	headers map[string]string
	catalog *Catalog
	client  *http.Client
	logger  *slog.Logger
}

var _ dispatcher.Dispatcher = (*Webhook)(nil)

// forwardedHeaders are copied from the inbound request into WebhookRequest.
var forwardedHeaders = []string{"Content-Type", "User-Agent", "X-Forwarded-For", "X-Tenant"}

// NewWebhook creates a webhook dispatcher.
func NewWebhook(cfg WebhookConfig) *Webhook {
	onError := cfg.OnError
	if onError == "" {
		onError = OnErrorDeny // Default to fail-closed
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if client.Timeout == 0 {
		c := *client
		c.Timeout = timeout
		client = &c
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	return &Webhook{
		name:    cfg.Name,
		url:     cfg.URL,
		retries: retries,
		onError: onError,
		headers: cfg.Headers,
		catalog: cfg.Catalog,
		client:  client,
		logger:  logger,
	}
}

func (h *Webhook) Dispatch(r *http.Request, f *dispatcher.Feature) error {
	ctx := r.Context()
	in := h.describe(r)

	var lastErr error
	attempts := h.retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := h.doRequest(ctx, in)
		if err == nil {
			return h.apply(out, f)
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return h.handleError(ctx, lastErr, f)
}

func (h *Webhook) describe(r *http.Request) *WebhookRequest {
	in := &WebhookRequest{
		RequestID: server.GetRequestID(r.Context()),
		Method:    r.Method,
		Host:      r.Host,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
	}
	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			if in.Headers == nil {
				in.Headers = make(map[string]string)
			}
			in.Headers[name] = v
		}
	}
	return in
}

func (h *Webhook) doRequest(ctx context.Context, in *WebhookRequest) (*WebhookResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out WebhookResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal webhook response: %w", err)
	}

	switch out.Action {
	case ActionRoute:
		if _, ok := h.catalog.Lookup(out.Endpoint); !ok {
			return nil, fmt.Errorf("webhook routed to unknown endpoint %q", out.Endpoint)
		}
	case ActionDeny, ActionPass:
	case "":
		out.Action = ActionPass
	default:
		return nil, fmt.Errorf("invalid action from webhook: %s", out.Action)
	}
	return &out, nil
}

func (h *Webhook) apply(out *WebhookResponse, f *dispatcher.Feature) error {
	switch out.Action {
	case ActionRoute:
		ep, _ := h.catalog.Lookup(out.Endpoint)
		f.SetEndpoint(ep)
	case ActionDeny:
		reason := out.Reason
		if reason == "" {
			reason = "denied by dispatcher " + h.name
		}
		f.SetHandler(h.deny(out.Status, reason))
	}
	return nil
}

func (h *Webhook) handleError(ctx context.Context, err error, f *dispatcher.Feature) error {
	switch h.onError {
	case OnErrorAllow:
		// Fail-open: leave the request to later dispatchers
		h.logger.WarnContext(ctx, "webhook dispatcher failed, passing request on",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("dispatcher", h.name),
			slog.String("error", err.Error()))
		return nil
	case OnErrorDeny:
		f.SetHandler(h.deny(http.StatusServiceUnavailable, fmt.Sprintf("webhook error: %v", err)))
		return nil
	default:
		return fmt.Errorf("webhook dispatcher %s failed: %w", h.name, err)
	}
}

func (h *Webhook) deny(status int, reason string) dispatcher.HandlerFunc {
	if status < 400 || status > 599 {
		status = http.StatusForbidden
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		return server.NewAPIError(status, reason, &DeniedError{
			Dispatcher: h.name,
			Reason:     reason,
			StatusCode: status,
		})
	}
}

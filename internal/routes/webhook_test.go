package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/recorder"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dispatch/internal/testutil"
)

func testCatalog() *Catalog {
	return NewCatalog([]config.EndpointConfig{
		{Name: "users", Kind: "static", Status: 200, Body: "[]"},
	})
}

// decisionServer answers every webhook call with resp and counts calls.
func decisionServer(t *testing.T, status int, resp any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var in WebhookRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode webhook request: %v", err)
		}
		if r.Header.Get("X-Hook-Token") != "t0ken" {
			t.Errorf("missing configured header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestWebhook(url string, client *http.Client, onError string, retries int) *Webhook {
	return NewWebhook(WebhookConfig{
		Name:    "hook",
		URL:     url,
		Retries: retries,
		OnError: onError,
		Headers: map[string]string{"X-Hook-Token": "t0ken"},
		Catalog: testCatalog(),
		Client:  client,
	})
}

func TestWebhook_RecordAndReplay(t *testing.T) {
	srv, calls := decisionServer(t, http.StatusOK, WebhookResponse{Action: ActionRoute, Endpoint: "users"})
	cassette := testutil.CassettePath(t, "webhook_route")

	// Record against the live decision service.
	rec, stop := testutil.NewVCRRecorder(t, cassette, recorder.ModeRecording, nil)
	hook := newTestWebhook(srv.URL, testutil.VCRHTTPClient(rec), OnErrorDeny, 0)
	f := dispatch(t, hook, httptest.NewRequest("GET", "/users", nil))
	stop()

	users, _ := testCatalog().Lookup("users")
	if d, ok := f.Endpoint().(*dispatcher.Descriptor); !ok || d.Name != users.Name {
		t.Fatalf("recorded endpoint = %v, want users", f.Endpoint())
	}

	// Replay without the service.
	srv.Close()
	rec, _ = testutil.NewVCRRecorder(t, cassette, recorder.ModeReplaying, nil)
	hook = newTestWebhook(srv.URL, testutil.VCRHTTPClient(rec), OnErrorDeny, 0)
	f = dispatch(t, hook, httptest.NewRequest("GET", "/users", nil))

	if f.Endpoint() == nil || f.Endpoint().DisplayName() != "users" {
		t.Errorf("replayed endpoint = %v, want users", f.Endpoint())
	}
	if f.Handler() != nil {
		t.Error("route decision must not short-circuit")
	}
	if calls.Load() != 1 {
		t.Errorf("decision service calls = %d, want 1", calls.Load())
	}
}

func TestWebhook_RouteSelectsCatalogDescriptor(t *testing.T) {
	srv, _ := decisionServer(t, http.StatusOK, WebhookResponse{Action: ActionRoute, Endpoint: "users"})
	catalog := testCatalog()
	hook := NewWebhook(WebhookConfig{
		Name:    "hook",
		URL:     srv.URL,
		Headers: map[string]string{"X-Hook-Token": "t0ken"},
		Catalog: catalog,
	})

	f := dispatch(t, hook, httptest.NewRequest("GET", "/users", nil))
	want, _ := catalog.Lookup("users")
	if f.Endpoint() != want {
		t.Errorf("endpoint = %v, want the catalog descriptor", f.Endpoint())
	}
}

func TestWebhook_Decisions(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		resp       WebhookResponse
		onError    string
		wantStatus int // 0 means no short-circuit
		wantRoute  bool
	}{
		{name: "pass", status: 200, resp: WebhookResponse{Action: ActionPass}},
		{name: "empty action passes", status: 200, resp: WebhookResponse{}},
		{name: "deny with status", status: 200, resp: WebhookResponse{Action: ActionDeny, Status: 451, Reason: "blocked"}, wantStatus: 451},
		{name: "deny default status", status: 200, resp: WebhookResponse{Action: ActionDeny}, wantStatus: 403},
		{name: "server error fails closed", status: 500, resp: WebhookResponse{}, onError: OnErrorDeny, wantStatus: 503},
		{name: "server error fails open", status: 500, resp: WebhookResponse{}, onError: OnErrorAllow},
		{name: "unknown endpoint fails closed", status: 200, resp: WebhookResponse{Action: ActionRoute, Endpoint: "ghost"}, wantStatus: 503},
		{name: "invalid action fails closed", status: 200, resp: WebhookResponse{Action: "mutate"}, wantStatus: 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := decisionServer(t, tt.status, tt.resp)
			hook := newTestWebhook(srv.URL, nil, tt.onError, 0)

			req := httptest.NewRequest("GET", "/x", nil)
			f := dispatch(t, hook, req)

			if got := f.Endpoint() != nil; got != tt.wantRoute {
				t.Errorf("endpoint selected = %v, want %v", got, tt.wantRoute)
			}
			if tt.wantStatus == 0 {
				if f.Handler() != nil {
					t.Error("expected no short-circuit")
				}
				return
			}
			if f.Handler() == nil {
				t.Fatal("expected short-circuit")
			}
			rec := serve(f.Handler(), req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestWebhook_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(WebhookResponse{Action: ActionRoute, Endpoint: "users"})
	}))
	defer srv.Close()

	hook := newTestWebhook(srv.URL, nil, OnErrorDeny, 2)
	f := dispatch(t, hook, httptest.NewRequest("GET", "/", nil))
	if f.Endpoint() == nil {
		t.Fatal("expected endpoint after retries")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhook_Cancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	hook := newTestWebhook(srv.URL, nil, OnErrorDeny, 5)

	done := make(chan error, 1)
	f := dispatcher.NewFeature()
	go func() {
		done <- hook.Dispatch(httptest.NewRequest("GET", "/", nil).WithContext(ctx), f)
	}()
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Dispatch() error = %v, want context.Canceled", err)
	}
	if f.Handler() != nil {
		t.Error("cancellation must not apply on_error")
	}
}

func TestWebhook_NegativeRetriesStillCallsOnce(t *testing.T) {
	for _, onError := range []string{OnErrorAllow, OnErrorDeny} {
		t.Run(onError, func(t *testing.T) {
			srv, calls := decisionServer(t, http.StatusOK, WebhookResponse{Action: ActionRoute, Endpoint: "users"})

			hook := newTestWebhook(srv.URL, nil, onError, -1)
			f := dispatch(t, hook, httptest.NewRequest("GET", "/", nil))

			if calls.Load() != 1 {
				t.Errorf("calls = %d, want 1", calls.Load())
			}
			if f.Handler() != nil {
				t.Error("a successful decision must not be replaced by on_error")
			}
			if f.Endpoint() == nil {
				t.Error("expected the routed endpoint")
			}
		})
	}
}

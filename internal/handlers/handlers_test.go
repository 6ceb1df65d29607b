package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

func unreachable(t *testing.T) dispatcher.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		t.Error("next must not be called")
		return nil
	}
}

// run builds the handler for ep and serves one request through server.Adapt.
func run(t *testing.T, f dispatcher.HandlerFactory, ep dispatcher.Endpoint, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	b := f.CreateHandler(ep)
	if b == nil {
		t.Fatalf("factory did not claim %s", ep.DisplayName())
	}
	rec := httptest.NewRecorder()
	server.Adapt(b(unreachable(t)), nil).ServeHTTP(rec, req)
	return rec
}

func TestFactories_ClaimOnlyTheirKind(t *testing.T) {
	factories := map[string]dispatcher.HandlerFactory{
		dispatcher.KindStatic:      Static(),
		dispatcher.KindRedirect:    Redirect(),
		dispatcher.KindProxy:       NewProxy(nil, nil),
		dispatcher.KindPassthrough: Passthrough(),
	}

	for kind, f := range factories {
		for other := range factories {
			ep := &dispatcher.Descriptor{Name: "e", Kind: other, Target: "http://example.com"}
			claimed := f.CreateHandler(ep) != nil
			if claimed != (kind == other) {
				t.Errorf("%s factory claimed %s endpoint = %v", kind, other, claimed)
			}
		}
	}

	// Endpoints that are not descriptors are never claimed.
	type foreign struct{ dispatcher.Endpoint }
	if Static().CreateHandler(foreign{}) != nil {
		t.Error("static factory claimed a foreign endpoint")
	}
}

func TestStatic(t *testing.T) {
	ep := &dispatcher.Descriptor{
		Name:    "teapot",
		Kind:    dispatcher.KindStatic,
		Status:  http.StatusTeapot,
		Body:    `{"short":"stout"}`,
		Headers: map[string]string{"Content-Type": "application/json"},
	}
	rec := run(t, Static(), ep, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if rec.Body.String() != `{"short":"stout"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	rec = run(t, Static(), &dispatcher.Descriptor{Kind: dispatcher.KindStatic, Body: "hi"}, httptest.NewRequest("HEAD", "/", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD = %d %q, want 200 with no body", rec.Code, rec.Body.String())
	}
}

func TestRedirect(t *testing.T) {
	tests := []struct {
		status int
		want   int
	}{
		{0, http.StatusFound},
		{http.StatusMovedPermanently, http.StatusMovedPermanently},
		{http.StatusOK, http.StatusFound},
	}
	for _, tt := range tests {
		ep := &dispatcher.Descriptor{Kind: dispatcher.KindRedirect, Target: "https://example.com/new", Status: tt.status}
		rec := run(t, Redirect(), ep, httptest.NewRequest("GET", "/old", nil))
		if rec.Code != tt.want {
			t.Errorf("status %d: code = %d, want %d", tt.status, rec.Code, tt.want)
		}
		if rec.Header().Get("Location") != "https://example.com/new" {
			t.Errorf("Location = %q", rec.Header().Get("Location"))
		}
	}

	rec := run(t, Redirect(), &dispatcher.Descriptor{Kind: dispatcher.KindRedirect}, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("missing target: code = %d, want 500", rec.Code)
	}
}

func TestPassthrough(t *testing.T) {
	calls := 0
	next := func(w http.ResponseWriter, r *http.Request) error {
		calls++
		return nil
	}
	b := Passthrough().CreateHandler(&dispatcher.Descriptor{Kind: dispatcher.KindPassthrough})
	if err := b(next)(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if calls != 1 {
		t.Errorf("next calls = %d, want 1", calls)
	}
}

func TestProxy(t *testing.T) {
	var gotPath, gotForwarded string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotForwarded = r.Header.Get("X-Forwarded-Host")
		w.Header().Set("X-Upstream", "yes")
		_, _ = io.WriteString(w, "proxied")
	}))
	defer upstream.Close()

	ep := &dispatcher.Descriptor{Name: "api", Kind: dispatcher.KindProxy, Target: upstream.URL + "/v1"}
	req := httptest.NewRequest("GET", "http://gateway.local/users", nil)
	rec := run(t, NewProxy(nil, nil), ep, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "proxied" {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream headers not copied")
	}
	if gotPath != "/v1/users" {
		t.Errorf("upstream path = %q, want /v1/users", gotPath)
	}
	if gotForwarded != "gateway.local" {
		t.Errorf("X-Forwarded-Host = %q", gotForwarded)
	}
}

func TestProxy_Failures(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("blocked upstream must not be reached")
	}))
	defer upstream.Close()

	tests := []struct {
		name string
		ep   *dispatcher.Descriptor
		want int
	}{
		{"private target blocked", &dispatcher.Descriptor{Kind: dispatcher.KindProxy, Target: upstream.URL, BlockPrivate: true}, http.StatusBadGateway},
		{"relative target", &dispatcher.Descriptor{Kind: dispatcher.KindProxy, Target: "/nowhere"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := run(t, NewProxy(nil, nil), tt.ep, httptest.NewRequest("GET", "/", nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestProxy_UpstreamErrorIsAPIError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	b := NewProxy(nil, nil).CreateHandler(&dispatcher.Descriptor{Kind: dispatcher.KindProxy, Target: url})
	err := b(unreachable(t))(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	var apiErr *server.APIError
	if !errors.As(err, &apiErr) || apiErr.Status() != http.StatusBadGateway {
		t.Errorf("error = %v, want 502 APIError", err)
	}
}

func TestProxy_CanceledRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewProxy(nil, nil).CreateHandler(&dispatcher.Descriptor{Kind: dispatcher.KindProxy, Target: upstream.URL})
	err := b(unreachable(t))(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil).WithContext(ctx))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if diff := cmp.Diff([]string{"passthrough", "proxy", "redirect", "static"}, r.Kinds()); diff != "" {
		t.Errorf("Kinds() mismatch (-want +got):\n%s", diff)
	}
	if err := r.Register("static", func(Deps) dispatcher.HandlerFactory { return Static() }); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := r.Register("echo", func(Deps) dispatcher.HandlerFactory { return Passthrough() }); err != nil {
		t.Fatalf("Register(echo) error = %v", err)
	}
	if !r.IsRegistered("echo") {
		t.Error("echo should be registered")
	}

	factories, err := r.Build([]string{"redirect", "static"}, Deps{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(factories) != 2 {
		t.Fatalf("Build() = %d factories, want 2", len(factories))
	}
	if factories[0].CreateHandler(&dispatcher.Descriptor{Kind: dispatcher.KindRedirect}) == nil {
		t.Error("first factory should be redirect")
	}

	for _, kinds := range [][]string{{"nope"}, {"static", "static"}} {
		if _, err := r.Build(kinds, Deps{}); err == nil || !strings.Contains(err.Error(), "handler kind") {
			t.Errorf("Build(%v) error = %v", kinds, err)
		}
	}
}

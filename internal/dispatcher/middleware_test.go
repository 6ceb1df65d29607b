package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
	"github.com/tjfontaine/polyglot-dispatch/internal/testutil"
)

// recordingNext is a downstream continuation that counts its invocations.
type recordingNext struct {
	calls    int
	requests []*http.Request
}

func (n *recordingNext) handle(w http.ResponseWriter, r *http.Request) error {
	n.calls++
	n.requests = append(n.requests, r)
	return nil
}

func newTestMiddleware(t *testing.T, opts *Options, next HandlerFunc) (*Middleware, *testutil.LogRecorder) {
	t.Helper()
	logger, logs := testutil.NewLogger()
	m, err := NewMiddleware(opts, next, WithObserver(telemetry.NewObserver(logger, nil)))
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}
	return m, logs
}

func TestNewMiddleware_ConfigurationErrors(t *testing.T) {
	next := func(w http.ResponseWriter, r *http.Request) error { return nil }

	if _, err := NewMiddleware(nil, next); !errors.Is(err, ErrNilOptions) {
		t.Errorf("nil options: error = %v, want ErrNilOptions", err)
	}
	if _, err := NewMiddleware(&Options{}, nil); !errors.Is(err, ErrNilNext) {
		t.Errorf("nil next: error = %v, want ErrNilNext", err)
	}
	if _, err := NewMiddleware(&Options{Dispatchers: []Entry{{Name: "broken"}}}, next); err == nil {
		t.Error("nil dispatcher: expected error")
	}
}

func TestMiddleware_EmptyChainPassesThrough(t *testing.T) {
	next := &recordingNext{}
	m, logs := newTestMiddleware(t, &Options{}, next.handle)

	req := httptest.NewRequest("POST", "/orders?id=7", nil)
	if err := m.Invoke(httptest.NewRecorder(), req); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if next.calls != 1 {
		t.Fatalf("next calls = %d, want 1", next.calls)
	}
	got := next.requests[0]
	if got.Method != req.Method || got.URL.String() != req.URL.String() {
		t.Errorf("next saw %s %s, want %s %s", got.Method, got.URL, req.Method, req.URL)
	}
	if _, err := FromContext(got.Context()); err != nil {
		t.Errorf("next should see the feature: %v", err)
	}
	if len(logs.Messages()) != 0 {
		t.Errorf("expected no pipeline events, got %v", logs.Messages())
	}
}

func TestMiddleware_EndpointCallsNext(t *testing.T) {
	ep := &Descriptor{Name: "E"}
	next := &recordingNext{}
	opts := &Options{Dispatchers: []Entry{
		{Name: "d0", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error {
			f.SetEndpoint(ep)
			return nil
		})},
	}}
	m, _ := newTestMiddleware(t, opts, next.handle)

	if err := m.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("next calls = %d, want 1", next.calls)
	}
	f, err := FromContext(next.requests[0].Context())
	if err != nil {
		t.Fatalf("FromContext() error = %v", err)
	}
	if f.Endpoint() != ep {
		t.Errorf("Endpoint = %v, want E", f.Endpoint())
	}
	if f.Handler() != nil {
		t.Error("no handler should be set by the dispatcher stage")
	}
}

func TestMiddleware_ShortCircuitSkipsNext(t *testing.T) {
	ep := &Descriptor{Name: "E"}
	next := &recordingNext{}
	handlerCalls := 0

	opts := &Options{Dispatchers: []Entry{
		{Name: "both", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error {
			f.SetEndpoint(ep)
			f.SetHandler(func(w http.ResponseWriter, r *http.Request) error {
				handlerCalls++
				w.WriteHeader(http.StatusTeapot)
				return nil
			})
			return nil
		})},
	}}
	m, logs := newTestMiddleware(t, opts, next.handle)

	rec := httptest.NewRecorder()
	if err := m.Invoke(rec, httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if handlerCalls != 1 {
		t.Errorf("handler calls = %d, want 1", handlerCalls)
	}
	if next.calls != 0 {
		t.Errorf("next calls = %d, want 0", next.calls)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if diff := cmp.Diff([]string{"short-circuit start", "short-circuit end"}, logs.Messages()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestMiddleware_ShortCircuitErrorPropagates(t *testing.T) {
	boom := errors.New("handler failed")
	next := &recordingNext{}
	opts := &Options{Dispatchers: []Entry{
		{Name: "sc", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error {
			f.SetHandler(func(w http.ResponseWriter, r *http.Request) error { return boom })
			return nil
		})},
	}}
	m, logs := newTestMiddleware(t, opts, next.handle)

	err := m.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if err != boom {
		t.Fatalf("Invoke() error = %v, want handler error unchanged", err)
	}
	if got := logs.Count("short-circuit end"); got != 1 {
		t.Errorf("end events = %d, want 1", got)
	}
	if next.calls != 0 {
		t.Errorf("next calls = %d, want 0", next.calls)
	}
}

func TestMiddleware_ShortCircuitPanicStillEnds(t *testing.T) {
	opts := &Options{Dispatchers: []Entry{
		{Name: "sc", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error {
			f.SetHandler(func(w http.ResponseWriter, r *http.Request) error { panic("kaboom") })
			return nil
		})},
	}}
	m, logs := newTestMiddleware(t, opts, func(w http.ResponseWriter, r *http.Request) error { return nil })

	func() {
		defer func() {
			if p := recover(); p != "kaboom" {
				t.Errorf("recovered %v, want the original panic value", p)
			}
		}()
		_ = m.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	}()

	if got := logs.Count("short-circuit end"); got != 1 {
		t.Errorf("end events = %d, want 1", got)
	}
}

func TestMiddleware_CancelledHandlerStillEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	opts := &Options{Dispatchers: []Entry{
		{Name: "sc", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error {
			f.SetHandler(func(w http.ResponseWriter, r *http.Request) error {
				cancel()
				<-r.Context().Done()
				return r.Context().Err()
			})
			return nil
		})},
	}}
	m, logs := newTestMiddleware(t, opts, func(w http.ResponseWriter, r *http.Request) error { return nil })

	err := m.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil).WithContext(ctx))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Invoke() error = %v, want context.Canceled", err)
	}
	end, ok := logs.Find("short-circuit end")
	if !ok {
		t.Fatal("expected short-circuit end event on the cancellation path")
	}
	if end.Attrs["error"] != context.Canceled.Error() {
		t.Errorf("end error attr = %q", end.Attrs["error"])
	}
}

func TestMiddleware_DispatcherErrorSkipsNext(t *testing.T) {
	boom := errors.New("lookup failed")
	next := &recordingNext{}
	opts := &Options{Dispatchers: []Entry{
		{Name: "store", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error { return boom })},
	}}
	m, _ := newTestMiddleware(t, opts, next.handle)

	if err := m.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil)); err != boom {
		t.Fatalf("Invoke() error = %v, want %v", err, boom)
	}
	if next.calls != 0 {
		t.Errorf("next calls = %d, want 0", next.calls)
	}
}

func TestMiddleware_OptionsCopiedAtConstruction(t *testing.T) {
	next := &recordingNext{}
	opts := &Options{}
	m, _ := newTestMiddleware(t, opts, next.handle)

	opts.Dispatchers = append(opts.Dispatchers, Entry{Name: "late", Dispatcher: DispatcherFunc(func(r *http.Request, f *Feature) error {
		t.Error("dispatcher added after construction must not run")
		return nil
	})})

	if err := m.Invoke(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
}

func TestFeature_LastWriteWins(t *testing.T) {
	f := NewFeature()
	a, b := &Descriptor{Name: "a"}, &Descriptor{Name: "b"}
	f.SetEndpoint(a)
	f.SetEndpoint(b)
	if f.Endpoint() != b {
		t.Errorf("Endpoint = %v, want b", f.Endpoint())
	}
	f.SetEndpoint(nil)
	if f.Endpoint() != nil {
		t.Error("Endpoint should be cleared")
	}
}

func TestFromContext_Missing(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, ErrFeatureMissing) {
		t.Errorf("FromContext() error = %v, want ErrFeatureMissing", err)
	}
}

func TestDescriptor_DisplayName(t *testing.T) {
	tests := []struct {
		d    *Descriptor
		want string
	}{
		{&Descriptor{Name: "users", Method: "GET", Pattern: "/users"}, "users"},
		{&Descriptor{Method: "GET", Pattern: "/users"}, "GET /users"},
		{&Descriptor{Pattern: "/users"}, "* /users"},
	}
	for _, tt := range tests {
		if got := tt.d.DisplayName(); got != tt.want {
			t.Errorf("DisplayName() = %q, want %q", got, tt.want)
		}
	}
}

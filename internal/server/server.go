package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures the HTTP server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// ServiceName is the operation name reported by the otelhttp handler.
	ServiceName string
	Logger      *slog.Logger
}

// Server owns the chi router and the listening http.Server.
type Server struct {
	Router *chi.Mux
	Port   int

	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a server with the standard middleware chain applied:
// request id, access log, timeout, panic recovery and OpenTelemetry.
// Routes and further middleware are added through Router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "polyglot-dispatch"
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, NewAPIError(http.StatusNotFound, fmt.Sprintf("no route for %s", req.URL.Path), nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, NewAPIError(http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", req.Method), nil))
	})

	return &Server{
		Router: r,
		Port:   opts.Port,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.Port),
			Handler:      r,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
	}
}

// Start listens and serves until Shutdown is called.
// It returns nil when the server was shut down gracefully.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

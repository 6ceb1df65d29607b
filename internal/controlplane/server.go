// Package controlplane serves the admin API: process stats, the stored route
// table and maintenance switches.
package controlplane

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/polyglot-dispatch/internal/auth"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
)

// Switch is a runtime toggle, implemented by maintenance dispatchers.
type Switch interface {
	SetEnabled(enabled bool)
	Enabled() bool
}

// Options configures the admin API.
type Options struct {
	Store storage.RouteStore

	// Switches are addressable by name under /api/maintenance
	Switches map[string]Switch

	// Authenticator guards every admin route when set
	Authenticator *auth.Authenticator

	Logger *slog.Logger
}

type Server struct {
	router    *chi.Mux
	startTime time.Time
	store     storage.RouteStore
	switches  map[string]Switch
	authn     *auth.Authenticator
	logger    *slog.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    chi.NewRouter(),
		startTime: time.Now(),
		store:     opts.Store,
		switches:  opts.Switches,
		authn:     opts.Authenticator,
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	if s.authn != nil {
		s.router.Use(s.requireKey)
	}

	s.router.Method(http.MethodGet, "/api/stats", server.Adapt(s.handleStats, s.logger))

	s.router.Method(http.MethodGet, "/api/routes", server.Adapt(s.handleListRoutes, s.logger))
	s.router.Method(http.MethodPut, "/api/routes/{id}", server.Adapt(s.handlePutRoute, s.logger))
	s.router.Method(http.MethodDelete, "/api/routes/{id}", server.Adapt(s.handleDeleteRoute, s.logger))

	s.router.Method(http.MethodGet, "/api/maintenance", server.Adapt(s.handleListSwitches, s.logger))
	s.router.Method(http.MethodPut, "/api/maintenance/{name}", server.Adapt(s.handleSetSwitch, s.logger))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := auth.ExtractAPIKey(r)
		if err == nil {
			var k auth.Key
			if k, err = s.authn.ValidateAPIKey(key); err == nil {
				server.AddLogField(r.Context(), "admin_key", k.Name)
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
		server.WriteError(w, server.NewAPIError(http.StatusUnauthorized, "invalid admin credentials", err))
	})
}

type StatsResponse struct {
	Uptime       string      `json:"uptime"`
	GoVersion    string      `json:"go_version"`
	NumGoroutine int         `json:"num_goroutine"`
	Memory       MemoryStats `json:"memory"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return writeJSON(w, http.StatusOK, StatsResponse{
		Uptime:       time.Since(s.startTime).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	})
}

// RouteJSON is the wire form of a stored route.
type RouteJSON struct {
	ID           string            `json:"id"`
	Method       string            `json:"method,omitempty"`
	Path         string            `json:"path"`
	Prefix       bool              `json:"prefix,omitempty"`
	Endpoint     string            `json:"endpoint"`
	Kind         string            `json:"kind,omitempty"`
	Target       string            `json:"target,omitempty"`
	Status       int               `json:"status,omitempty"`
	Body         string            `json:"body,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BlockPrivate bool              `json:"block_private,omitempty"`
	CreatedAt    *time.Time        `json:"created_at,omitempty"`
	UpdatedAt    *time.Time        `json:"updated_at,omitempty"`
}

func toJSON(r *storage.Route) RouteJSON {
	out := RouteJSON{
		ID:           r.ID,
		Method:       r.Method,
		Path:         r.Path,
		Prefix:       r.Prefix,
		Endpoint:     r.Endpoint,
		Kind:         r.Kind,
		Target:       r.Target,
		Status:       r.Status,
		Body:         r.Body,
		Headers:      r.Headers,
		BlockPrivate: r.BlockPrivate,
	}
	if !r.CreatedAt.IsZero() {
		out.CreatedAt = &r.CreatedAt
	}
	if !r.UpdatedAt.IsZero() {
		out.UpdatedAt = &r.UpdatedAt
	}
	return out
}

func (rj RouteJSON) route() *storage.Route {
	method := rj.Method
	if method == "" {
		method = storage.AnyMethod
	}
	return &storage.Route{
		ID:           rj.ID,
		Method:       method,
		Path:         rj.Path,
		Prefix:       rj.Prefix,
		Endpoint:     rj.Endpoint,
		Kind:         rj.Kind,
		Target:       rj.Target,
		Status:       rj.Status,
		Body:         rj.Body,
		Headers:      rj.Headers,
		BlockPrivate: rj.BlockPrivate,
	}
}

func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) error {
	if s.store == nil {
		return errNoStore
	}
	routes, err := s.store.ListRoutes(r.Context())
	if err != nil {
		return err
	}
	out := make([]RouteJSON, 0, len(routes))
	for _, rt := range routes {
		out = append(out, toJSON(rt))
	}
	return writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutRoute(w http.ResponseWriter, r *http.Request) error {
	if s.store == nil {
		return errNoStore
	}
	var body RouteJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return server.NewAPIError(http.StatusBadRequest, "invalid JSON body", err)
	}
	body.ID = chi.URLParam(r, "id")

	route := body.route()
	if err := route.Validate(); err != nil {
		return server.NewAPIError(http.StatusBadRequest, err.Error(), err)
	}
	if err := s.store.PutRoute(r.Context(), route); err != nil {
		return err
	}
	s.logger.InfoContext(r.Context(), "route saved",
		slog.String("route_id", route.ID),
		slog.String("path", route.Path))
	return writeJSON(w, http.StatusOK, toJSON(route))
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) error {
	if s.store == nil {
		return errNoStore
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteRoute(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return server.NewAPIError(http.StatusNotFound, fmt.Sprintf("route %s not found", id), err)
		}
		return err
	}
	s.logger.InfoContext(r.Context(), "route deleted", slog.String("route_id", id))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// SwitchState is the wire form of a maintenance switch.
type SwitchState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (s *Server) handleListSwitches(w http.ResponseWriter, r *http.Request) error {
	out := make([]SwitchState, 0, len(s.switches))
	for name, sw := range s.switches {
		out = append(out, SwitchState{Name: name, Enabled: sw.Enabled()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetSwitch(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	sw, ok := s.switches[name]
	if !ok {
		return server.NewAPIError(http.StatusNotFound, fmt.Sprintf("no maintenance dispatcher %s", name), nil)
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		return server.NewAPIError(http.StatusBadRequest, `body must be {"enabled": bool}`, err)
	}
	sw.SetEnabled(*body.Enabled)
	s.logger.InfoContext(r.Context(), "maintenance switched",
		slog.String("dispatcher", name),
		slog.Bool("enabled", *body.Enabled))
	return writeJSON(w, http.StatusOK, SwitchState{Name: name, Enabled: *body.Enabled})
}

var errNoStore = server.NewAPIError(http.StatusNotFound, "no route store configured", nil)

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

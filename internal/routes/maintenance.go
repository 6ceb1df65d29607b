package routes

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

// Maintenance rejects every request with 503 while enabled.
type Maintenance struct {
	name       string
	enabled    atomic.Bool
	retryAfter time.Duration
	message    string
}

var _ dispatcher.Dispatcher = (*Maintenance)(nil)

// NewMaintenance creates a maintenance dispatcher in the given state.
func NewMaintenance(name string, enabled bool, retryAfter time.Duration, message string) *Maintenance {
	if message == "" {
		message = "service is under maintenance"
	}
	m := &Maintenance{name: name, retryAfter: retryAfter, message: message}
	m.enabled.Store(enabled)
	return m
}

// SetEnabled switches maintenance mode at runtime.
func (m *Maintenance) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// Enabled reports whether maintenance mode is on.
func (m *Maintenance) Enabled() bool {
	return m.enabled.Load()
}

func (m *Maintenance) Dispatch(r *http.Request, f *dispatcher.Feature) error {
	if !m.enabled.Load() {
		return nil
	}
	f.SetHandler(m.reject)
	return nil
}

func (m *Maintenance) reject(w http.ResponseWriter, r *http.Request) error {
	if m.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(m.retryAfter.Round(time.Second)/time.Second)))
	}
	return server.NewAPIError(http.StatusServiceUnavailable, m.message, &DeniedError{
		Dispatcher: m.name,
		Reason:     "maintenance",
		StatusCode: http.StatusServiceUnavailable,
	})
}

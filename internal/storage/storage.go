// Package storage defines the route store used by the store dispatcher and
// the routectl admin tool.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// AnyMethod matches every request method.
const AnyMethod = "*"

// ErrNotFound is returned when no route matches or an id is unknown.
var ErrNotFound = errors.New("route not found")

// Route maps a method and path to an endpoint description.
type Route struct {
	ID string

	// Method is an HTTP method or AnyMethod
	Method string

	// Path is matched exactly, or as a prefix when Prefix is set
	Path   string
	Prefix bool

	// Endpoint fields, see dispatcher.Descriptor
	Endpoint     string
	Kind         string
	Target       string
	Status       int
	Body         string
	Headers      map[string]string
	BlockPrivate bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RouteStore persists routes.
type RouteStore interface {
	// PutRoute inserts or replaces the route with the same ID.
	PutRoute(ctx context.Context, route *Route) error

	// LookupRoute returns the best route for method and path, or ErrNotFound.
	LookupRoute(ctx context.Context, method, path string) (*Route, error)

	ListRoutes(ctx context.Context) ([]*Route, error)
	DeleteRoute(ctx context.Context, id string) error
	Close() error
}

// Matches reports whether the route applies to method and path.
func (r *Route) Matches(method, path string) bool {
	if r.Method != AnyMethod && !strings.EqualFold(r.Method, method) {
		return false
	}
	if r.Prefix {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

// Better reports whether r should win over other when both match.
// Exact routes beat prefix routes, longer prefixes beat shorter ones and a
// concrete method beats AnyMethod.
func (r *Route) Better(other *Route) bool {
	if other == nil {
		return true
	}
	if r.Prefix != other.Prefix {
		return !r.Prefix
	}
	if len(r.Path) != len(other.Path) {
		return len(r.Path) > len(other.Path)
	}
	return r.Method != AnyMethod && other.Method == AnyMethod
}

// Match returns the best route in routes for method and path, or nil.
func Match(routes []*Route, method, path string) *Route {
	var best *Route
	for _, r := range routes {
		if r.Matches(method, path) && r.Better(best) {
			best = r
		}
	}
	return best
}

// Validate checks the fields every stored route needs.
func (r *Route) Validate() error {
	switch {
	case r.ID == "":
		return errors.New("route id is required")
	case r.Path == "" || !strings.HasPrefix(r.Path, "/"):
		return errors.New("route path must start with /")
	case r.Endpoint == "":
		return errors.New("route endpoint is required")
	}
	return nil
}

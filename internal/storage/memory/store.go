package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
)

// Store is an in-memory implementation of storage.RouteStore
type Store struct {
	mu     sync.RWMutex
	routes map[string]*storage.Route
}

var _ storage.RouteStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		routes: make(map[string]*storage.Route),
	}
}

func (s *Store) PutRoute(ctx context.Context, route *storage.Route) error {
	if err := route.Validate(); err != nil {
		return err
	}
	if route.Method == "" {
		route.Method = storage.AnyMethod
	}
	route.Method = strings.ToUpper(route.Method)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.routes[route.ID]; ok {
		route.CreatedAt = existing.CreatedAt
	} else if route.CreatedAt.IsZero() {
		route.CreatedAt = now
	}
	route.UpdatedAt = now

	stored := *route
	s.routes[route.ID] = &stored
	return nil
}

func (s *Store) LookupRoute(ctx context.Context, method, path string) (*storage.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*storage.Route, 0, len(s.routes))
	for _, r := range s.routes {
		all = append(all, r)
	}
	best := storage.Match(all, method, path)
	if best == nil {
		return nil, storage.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (s *Store) ListRoutes(ctx context.Context) ([]*storage.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := make([]*storage.Route, 0, len(s.routes))
	for _, r := range s.routes {
		cp := *r
		routes = append(routes, &cp)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, nil
}

func (s *Store) DeleteRoute(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.routes, id)
	return nil
}

func (s *Store) Close() error {
	return nil
}

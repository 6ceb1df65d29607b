package routes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
)

// StoreDispatcher selects endpoints from a route store.
type StoreDispatcher struct {
	store storage.RouteStore
}

var _ dispatcher.Dispatcher = (*StoreDispatcher)(nil)

// NewStoreDispatcher creates a dispatcher backed by store.
func NewStoreDispatcher(store storage.RouteStore) *StoreDispatcher {
	return &StoreDispatcher{store: store}
}

func (d *StoreDispatcher) Dispatch(r *http.Request, f *dispatcher.Feature) error {
	route, err := d.store.LookupRoute(r.Context(), r.Method, r.URL.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("route lookup: %w", err)
	}
	f.SetEndpoint(DescriptorFromRoute(route))
	return nil
}

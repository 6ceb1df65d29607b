package routes

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"
	"github.com/tjfontaine/polyglot-dispatch/internal/pkg/config"
	"github.com/tjfontaine/polyglot-dispatch/internal/storage"
)

// Catalog holds the configured endpoints by name. Descriptors are created
// once so every request that selects an endpoint sees the same value.
type Catalog struct {
	ordered []*dispatcher.Descriptor
	byName  map[string]*dispatcher.Descriptor
}

// NewCatalog builds a catalog from endpoint configuration.
func NewCatalog(endpoints []config.EndpointConfig) *Catalog {
	c := &Catalog{byName: make(map[string]*dispatcher.Descriptor, len(endpoints))}
	for _, e := range endpoints {
		d := DescriptorFromConfig(e)
		c.ordered = append(c.ordered, d)
		c.byName[d.Name] = d
	}
	return c
}

// Lookup returns the endpoint named name.
func (c *Catalog) Lookup(name string) (*dispatcher.Descriptor, bool) {
	if c == nil {
		return nil, false
	}
	d, ok := c.byName[name]
	return d, ok
}

// All returns every endpoint in configuration order.
func (c *Catalog) All() []*dispatcher.Descriptor {
	if c == nil {
		return nil
	}
	return append([]*dispatcher.Descriptor(nil), c.ordered...)
}

// Routable returns the named endpoints, or every endpoint with a path when
// names is empty.
func (c *Catalog) Routable(names []string) ([]*dispatcher.Descriptor, error) {
	if len(names) == 0 {
		var out []*dispatcher.Descriptor
		for _, d := range c.All() {
			if d.Pattern != "" {
				out = append(out, d)
			}
		}
		return out, nil
	}

	out := make([]*dispatcher.Descriptor, 0, len(names))
	for _, name := range names {
		d, ok := c.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown endpoint %q", name)
		}
		if d.Pattern == "" {
			return nil, fmt.Errorf("endpoint %q has no path", name)
		}
		out = append(out, d)
	}
	return out, nil
}

// DescriptorFromConfig converts endpoint configuration.
func DescriptorFromConfig(e config.EndpointConfig) *dispatcher.Descriptor {
	return &dispatcher.Descriptor{
		Name:         e.Name,
		Kind:         e.Kind,
		Method:       strings.ToUpper(e.Method),
		Pattern:      e.Path,
		Target:       e.Target,
		Status:       e.Status,
		Body:         e.Body,
		Headers:      e.Headers,
		BlockPrivate: e.BlockPrivate,
	}
}

// DescriptorFromRoute converts a stored route.
func DescriptorFromRoute(r *storage.Route) *dispatcher.Descriptor {
	return &dispatcher.Descriptor{
		Name:         r.Endpoint,
		Kind:         r.Kind,
		Method:       r.Method,
		Pattern:      r.Path,
		Target:       r.Target,
		Status:       r.Status,
		Body:         r.Body,
		Headers:      r.Headers,
		BlockPrivate: r.BlockPrivate,
		Metadata:     map[string]string{"route_id": r.ID},
	}
}

// RouteFromDescriptor converts an endpoint with a path into a stored route.
// Patterns ending in "/*" become prefix routes.
func RouteFromDescriptor(d *dispatcher.Descriptor) *storage.Route {
	path, prefix := d.Pattern, false
	if strings.HasSuffix(path, "/*") {
		path, prefix = strings.TrimSuffix(path, "*"), true
	}
	method := d.Method
	if method == "" {
		method = storage.AnyMethod
	}
	return &storage.Route{
		ID:           d.Name,
		Method:       method,
		Path:         path,
		Prefix:       prefix,
		Endpoint:     d.Name,
		Kind:         d.Kind,
		Target:       d.Target,
		Status:       d.Status,
		Body:         d.Body,
		Headers:      d.Headers,
		BlockPrivate: d.BlockPrivate,
	}
}

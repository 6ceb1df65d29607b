package dispatcher

import "strings"

// Endpoint is a logical target a request can be dispatched to.
// Endpoints are compared by identity and must not be mutated once a
// dispatcher has placed them on a Feature.
type Endpoint interface {
	DisplayName() string
}

// Endpoint kinds understood by the bundled handler factories.
const (
	KindStatic      = "static"
	KindRedirect    = "redirect"
	KindProxy       = "proxy"
	KindPassthrough = "passthrough"
)

// Descriptor is the Endpoint implementation produced by the bundled
// dispatchers. Which fields matter depends on Kind.
type Descriptor struct {
	// Name identifies the endpoint in logs and lookups
	Name string

	// Kind selects the handler factory (static, redirect, proxy, passthrough)
	Kind string

	// Method and Pattern describe the route the endpoint was matched on
	Method  string
	Pattern string

	// Target is the upstream URL for proxy endpoints or the Location for redirects
	Target string

	// Status, Body and Headers describe static responses and redirect codes
	Status  int
	Body    string
	Headers map[string]string

	// BlockPrivate rejects proxy connections to private and loopback addresses
	BlockPrivate bool

	// Metadata carries free-form values for custom handler factories
	Metadata map[string]string
}

// DisplayName returns Name, falling back to "METHOD pattern".
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	method := d.Method
	if method == "" {
		method = "*"
	}
	return strings.TrimSpace(method + " " + d.Pattern)
}

// IsKind reports whether ep is a Descriptor of the given kind.
func IsKind(ep Endpoint, kind string) (*Descriptor, bool) {
	d, ok := ep.(*Descriptor)
	if !ok || d == nil || d.Kind != kind {
		return nil, false
	}
	return d, true
}

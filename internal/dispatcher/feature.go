package dispatcher

import "context"

// Feature is the per-request dispatch state shared by the dispatcher and
// endpoint stages. It is owned by a single request and is not safe for
// concurrent use. Setters perform no validation; the last write wins.
type Feature struct {
	endpoint Endpoint
	handler  HandlerFunc
}

// NewFeature creates an empty Feature.
func NewFeature() *Feature {
	return &Feature{}
}

// Endpoint returns the selected endpoint, or nil.
func (f *Feature) Endpoint() Endpoint {
	return f.endpoint
}

// SetEndpoint selects ep for the request.
func (f *Feature) SetEndpoint(ep Endpoint) {
	f.endpoint = ep
}

// Handler returns the handler that will run for the request, or nil.
func (f *Feature) Handler() HandlerFunc {
	return f.handler
}

// SetHandler sets the handler to run. When set by a dispatcher it
// short-circuits the rest of the pipeline.
func (f *Feature) SetHandler(h HandlerFunc) {
	f.handler = h
}

type featureKey struct{}

// WithFeature attaches f to ctx.
func WithFeature(ctx context.Context, f *Feature) context.Context {
	return context.WithValue(ctx, featureKey{}, f)
}

// FromContext returns the Feature attached to ctx or ErrFeatureMissing.
func FromContext(ctx context.Context) (*Feature, error) {
	if f, ok := ctx.Value(featureKey{}).(*Feature); ok && f != nil {
		return f, nil
	}
	return nil, ErrFeatureMissing
}

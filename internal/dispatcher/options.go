package dispatcher

import (
	"fmt"
	"net/http"
)

// Dispatcher inspects a request and may select an endpoint or set a
// short-circuit handler on f. It returns once its decision is final.
// Blocking dispatchers must honour r.Context() cancellation.
type Dispatcher interface {
	Dispatch(r *http.Request, f *Feature) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(r *http.Request, f *Feature) error

// Dispatch calls fn(r, f).
func (fn DispatcherFunc) Dispatch(r *http.Request, f *Feature) error {
	return fn(r, f)
}

// Entry is one element of the ordered dispatcher list.
type Entry struct {
	// Name labels the dispatcher in logs and metrics
	Name       string
	Dispatcher Dispatcher
}

// Options is the configuration shared by both pipeline stages.
// It is built once at startup and must not be modified afterwards.
type Options struct {
	// Dispatchers are consulted in order until one decides
	Dispatchers []Entry

	// HandlerFactories are consulted in order until one yields a Builder
	HandlerFactories []HandlerFactory
}

// Validate reports nil dispatchers or factories, which would otherwise only
// surface as a panic on the first request.
func (o *Options) Validate() error {
	if o == nil {
		return ErrNilOptions
	}
	for i, e := range o.Dispatchers {
		if e.Dispatcher == nil {
			return fmt.Errorf("dispatcher %d (%q) is nil", i, e.Name)
		}
	}
	for i, f := range o.HandlerFactories {
		if f == nil {
			return fmt.Errorf("handler factory %d is nil", i)
		}
	}
	return nil
}

package dispatcher

import "errors"

var (
	// ErrNilOptions is returned when a stage is constructed without options.
	ErrNilOptions = errors.New("dispatcher options required")

	// ErrNilNext is returned when a stage is constructed without a downstream handler.
	ErrNilNext = errors.New("next handler required")

	// ErrFeatureMissing is returned when the endpoint stage runs on a request
	// that did not pass through the dispatcher stage. It means the stages are
	// wired out of order.
	ErrFeatureMissing = errors.New("dispatch feature not present on request")
)

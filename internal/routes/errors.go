package routes

import (
	"errors"
	"fmt"
	"net/http"
)

// DeniedError is the cause carried by responses a dispatcher refused.
type DeniedError struct {
	Dispatcher string
	Reason     string
	StatusCode int
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied by %s: %s", e.Dispatcher, e.Reason)
}

// Status returns the HTTP status, defaulting to 403.
func (e *DeniedError) Status() int {
	if e.StatusCode == 0 {
		return http.StatusForbidden
	}
	return e.StatusCode
}

// IsDenied reports whether err carries a DeniedError.
func IsDenied(err error) bool {
	var d *DeniedError
	return errors.As(err, &d)
}

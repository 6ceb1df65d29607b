package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorType represents the category of an error response.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeUnavailable    ErrorType = "unavailable"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeBadGateway     ErrorType = "bad_gateway"
	ErrorTypeServer         ErrorType = "server"
)

// StatusCoder is implemented by errors that know which HTTP status they map to.
type StatusCoder interface {
	Status() int
}

// APIError is an error that is rendered to the client as a JSON body.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// StatusCode is the HTTP status written with the body
	StatusCode int `json:"-"`

	// Err is the underlying cause, never serialized
	Err error `json:"-"`
}

// NewAPIError creates an APIError with the type derived from status.
func NewAPIError(status int, message string, cause error) *APIError {
	return &APIError{
		Type:       typeForStatus(status),
		Message:    message,
		StatusCode: status,
		Err:        cause,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code, defaulting to 500.
func (e *APIError) Status() int {
	if e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// StatusFor maps an error returned by the dispatch pipeline to an HTTP status.
func StatusFor(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.Status()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return ErrorTypeInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorTypeAuthentication
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusServiceUnavailable:
		return ErrorTypeUnavailable
	case http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case http.StatusBadGateway:
		return ErrorTypeBadGateway
	default:
		return ErrorTypeServer
	}
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// WriteError renders err as a JSON error body. Errors that are not an
// *APIError only expose the status text so internal details stay in the logs.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		apiErr = NewAPIError(status, http.StatusText(status), err)
	}
	if apiErr.Type == "" {
		apiErr.Type = typeForStatus(status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: apiErr})
}

// Adapt turns an error-returning handler into an http.Handler.
// It is the boundary where pipeline failures stop propagating: the error is
// recorded on the access log and, unless the response has already started or
// the client went away, written as a JSON error body.
func Adapt(h func(http.ResponseWriter, *http.Request) error, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		err := h(tw, r)
		if err == nil {
			return
		}

		AddError(r.Context(), err)

		if errors.Is(err, context.Canceled) {
			logger.Debug("request canceled by client",
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("path", r.URL.Path))
			return
		}

		if tw.started {
			logger.Warn("error after response started",
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("error", err.Error()))
			return
		}

		WriteError(tw, err)
	})
}

// trackingWriter records whether a response has been started.
type trackingWriter struct {
	http.ResponseWriter
	started bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	tw.started = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.started = true
	return tw.ResponseWriter.Write(b)
}

func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		tw.started = true
		f.Flush()
	}
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

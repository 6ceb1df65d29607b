/*
Package server provides the HTTP surface around the dispatch pipeline.

# Middleware Components

## Request ID (requestid.go)

RequestIDMiddleware assigns a UUID to each request and adds it to:
  - The request context (accessible via GetRequestID)
  - The X-Request-ID response header

## Logging (logging.go)

LoggingMiddleware provides structured request logging using slog:
  - Logs request start (method, path, remote_addr)
  - Logs request completion (status, bytes, duration)
  - Supports custom log fields via AddLogField/AddError

## Timeout (timeout.go)

TimeoutMiddleware puts a deadline on the request context. Dispatchers and
handlers must check context.Done() for cooperative cancellation.

## Errors (errors.go)

Adapt is the boundary between error-returning pipeline handlers and
net/http. Errors are rendered as JSON by WriteError using the status from
StatusCoder, 504 for deadline exceeded and 500 otherwise.

# Middleware Chain Order

 1. RequestIDMiddleware
 2. LoggingMiddleware
 3. TimeoutMiddleware
 4. Recoverer
 5. OTel instrumentation
 6. Dispatch pipeline (mounted by the runtime)
*/
package server

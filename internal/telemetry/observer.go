package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-dispatch/internal/server"
)

const instrumentationName = "github.com/tjfontaine/polyglot-dispatch/internal/dispatcher"

// ExecutionKind distinguishes the two ways a handler runs in the pipeline.
type ExecutionKind string

const (
	// KindShortCircuit is a handler supplied directly by a dispatcher.
	KindShortCircuit ExecutionKind = "short-circuit"
	// KindEndpoint is a handler resolved from a selected endpoint.
	KindEndpoint ExecutionKind = "endpoint"
)

func (k ExecutionKind) startMessage() string {
	if k == KindShortCircuit {
		return "short-circuit start"
	}
	return "endpoint execution start"
}

func (k ExecutionKind) endMessage() string {
	if k == KindShortCircuit {
		return "short-circuit end"
	}
	return "endpoint execution end"
}

// Observer emits the pipeline's observability events as slog records,
// OpenTelemetry spans and Prometheus samples. None of it affects the
// outcome of a request.
type Observer struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// NewObserver creates an observer. metrics may be nil.
func NewObserver(logger *slog.Logger, metrics *Metrics) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		metrics: metrics,
	}
}

// Logger returns the logger events are written to.
func (o *Observer) Logger() *slog.Logger {
	return o.logger
}

// EndpointMatched records that a dispatcher selected an endpoint.
func (o *Observer) EndpointMatched(ctx context.Context, dispatcherName, endpoint string) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, "endpoint matched",
		slog.String("request_id", server.GetRequestID(ctx)),
		slog.String("dispatcher", dispatcherName),
		slog.String("endpoint", endpoint),
	)
	trace.SpanFromContext(ctx).AddEvent("endpoint matched", trace.WithAttributes(
		attribute.String("dispatch.dispatcher", dispatcherName),
		attribute.String("dispatch.endpoint", endpoint),
	))
	server.AddLogField(ctx, "endpoint", endpoint)
}

// DispatchCompleted records the result of the dispatcher chain.
func (o *Observer) DispatchCompleted(ctx context.Context, outcome, dispatcherName string) {
	server.AddLogField(ctx, "dispatch", outcome)
	server.AddLogField(ctx, "dispatcher", dispatcherName)
	if o.metrics != nil {
		o.metrics.dispatches.WithLabelValues(outcome, dispatcherName).Inc()
	}
}

// NoHandler records that no handler factory produced a handler for endpoint.
func (o *Observer) NoHandler(ctx context.Context, endpoint string) {
	o.logger.LogAttrs(ctx, slog.LevelWarn, "no handler found for endpoint",
		slog.String("request_id", server.GetRequestID(ctx)),
		slog.String("endpoint", endpoint),
	)
	if o.metrics != nil {
		o.metrics.unresolved.WithLabelValues(endpoint).Inc()
	}
}

// Begin emits the start event for a handler execution and returns the
// context to run the handler with plus the func that emits the matching end
// event. The finish func must be deferred by the caller; calling it more than
// once has no further effect.
func (o *Observer) Begin(ctx context.Context, kind ExecutionKind, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "dispatch."+string(kind), trace.WithAttributes(
		attribute.String("dispatch.kind", string(kind)),
		attribute.String("dispatch.name", name),
	))

	requestID := server.GetRequestID(ctx)
	o.logger.LogAttrs(ctx, slog.LevelInfo, kind.startMessage(),
		slog.String("request_id", requestID),
		slog.String("name", name),
	)
	if o.metrics != nil {
		o.metrics.inflight.WithLabelValues(string(kind)).Inc()
	}

	finished := false
	return ctx, func(err error) {
		if finished {
			return
		}
		finished = true

		duration := time.Since(start)
		result := "ok"
		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("name", name),
			slog.Duration("duration", duration),
		}
		if err != nil {
			result = "error"
			attrs = append(attrs, slog.String("error", err.Error()))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		o.logger.LogAttrs(ctx, slog.LevelInfo, kind.endMessage(), attrs...)
		if o.metrics != nil {
			o.metrics.inflight.WithLabelValues(string(kind)).Dec()
			o.metrics.executions.WithLabelValues(string(kind), result).Observe(duration.Seconds())
		}
		span.End()
	}
}

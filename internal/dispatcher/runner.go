package dispatcher

import (
	"net/http"

	"github.com/tjfontaine/polyglot-dispatch/internal/telemetry"
)

// Outcome is the result of running the dispatcher chain.
type Outcome int

const (
	// OutcomeNoMatch means no dispatcher decided.
	OutcomeNoMatch Outcome = iota
	// OutcomeEndpoint means a dispatcher selected an endpoint.
	OutcomeEndpoint
	// OutcomeShortCircuit means a dispatcher supplied a handler.
	OutcomeShortCircuit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEndpoint:
		return "endpoint"
	case OutcomeShortCircuit:
		return "short-circuit"
	default:
		return "no-match"
	}
}

// Result describes which dispatcher, if any, decided the request.
type Result struct {
	Outcome Outcome
	// Entry is the name of the deciding dispatcher
	Entry string
	// Index is the position of the deciding dispatcher, -1 when none decided
	Index int
}

// Runner executes an ordered dispatcher list against a Feature.
type Runner struct {
	entries  []Entry
	observer *telemetry.Observer
}

// NewRunner creates a runner over entries. A nil observer logs to slog.Default.
func NewRunner(entries []Entry, observer *telemetry.Observer) *Runner {
	if observer == nil {
		observer = telemetry.NewObserver(nil, nil)
	}
	return &Runner{entries: entries, observer: observer}
}

// Run calls each dispatcher in order and stops at the first one that leaves
// a handler or an endpoint on f. A handler beats an endpoint. An error from a
// dispatcher stops the chain and is returned as is; Result.Index then points
// at the failing dispatcher.
func (rn *Runner) Run(r *http.Request, f *Feature) (Result, error) {
	ctx := r.Context()

	for i, entry := range rn.entries {
		if err := entry.Dispatcher.Dispatch(r, f); err != nil {
			return Result{Outcome: OutcomeNoMatch, Entry: entry.Name, Index: i}, err
		}

		if f.Handler() != nil {
			res := Result{Outcome: OutcomeShortCircuit, Entry: entry.Name, Index: i}
			rn.observer.DispatchCompleted(ctx, res.Outcome.String(), entry.Name)
			return res, nil
		}

		if ep := f.Endpoint(); ep != nil {
			res := Result{Outcome: OutcomeEndpoint, Entry: entry.Name, Index: i}
			rn.observer.EndpointMatched(ctx, entry.Name, ep.DisplayName())
			rn.observer.DispatchCompleted(ctx, res.Outcome.String(), entry.Name)
			return res, nil
		}
	}

	rn.observer.DispatchCompleted(ctx, OutcomeNoMatch.String(), "")
	return Result{Outcome: OutcomeNoMatch, Index: -1}, nil
}

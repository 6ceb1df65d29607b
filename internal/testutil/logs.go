package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecord is a captured slog record with its attributes flattened to strings.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

type logStore struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogRecorder is a slog.Handler that keeps every record in memory.
type LogRecorder struct {
	store *logStore
	attrs []slog.Attr
}

// NewLogger returns a logger writing into a fresh LogRecorder.
func NewLogger() (*slog.Logger, *LogRecorder) {
	rec := &LogRecorder{store: &logStore{}}
	return slog.New(rec), rec
}

func (r *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]string, record.NumAttrs()+len(r.attrs))
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.String()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.records = append(r.store.records, LogRecord{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	return nil
}

func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	merged = append(merged, r.attrs...)
	merged = append(merged, attrs...)
	return &LogRecorder{store: r.store, attrs: merged}
}

func (r *LogRecorder) WithGroup(string) slog.Handler { return r }

// Records returns a copy of everything logged so far.
func (r *LogRecorder) Records() []LogRecord {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]LogRecord, len(r.store.records))
	copy(out, r.store.records)
	return out
}

// Messages returns the logged messages in order.
func (r *LogRecorder) Messages() []string {
	records := r.Records()
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Message
	}
	return out
}

// Count returns how many records carry msg.
func (r *LogRecorder) Count(msg string) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Message == msg {
			n++
		}
	}
	return n
}

// Find returns the first record carrying msg.
func (r *LogRecorder) Find(msg string) (LogRecord, bool) {
	for _, rec := range r.Records() {
		if rec.Message == msg {
			return rec, true
		}
	}
	return LogRecord{}, false
}

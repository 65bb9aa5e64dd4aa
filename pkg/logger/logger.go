package logger

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one captured log event with its attributes flattened.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Recorder is an slog.Handler that keeps every record in memory. Handlers
// derived through WithAttrs share the same storage.
type Recorder struct {
	store *recordStore
	attrs []slog.Attr
	group string
}

type recordStore struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{store: &recordStore{}}
}

// New returns a logger writing into a fresh recorder.
func New() (*slog.Logger, *Recorder) {
	rec := NewRecorder()
	return slog.New(rec), rec
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, len(r.attrs)+rec.NumAttrs())
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if r.group != "" {
			key = r.group + "." + key
		}
		attrs[key] = a.Value.Resolve().Any()
		return true
	})

	r.store.mu.Lock()
	r.store.records = append(r.store.records, Record{Level: rec.Level, Message: rec.Message, Attrs: attrs})
	r.store.mu.Unlock()
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *r
	next.attrs = append(append([]slog.Attr(nil), r.attrs...), attrs...)
	return &next
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	next := *r
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

// Records returns a copy of everything captured so far.
func (r *Recorder) Records() []Record {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]Record(nil), r.store.records...)
}

// Find returns records with the message whose attributes contain every
// key/value pair of match.
func (r *Recorder) Find(message string, match map[string]any) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Message != message {
			continue
		}
		ok := true
		for k, v := range match {
			if rec.Attrs[k] != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

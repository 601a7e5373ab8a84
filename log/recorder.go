package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record with its attributes flattened to strings.
type Entry struct {
	Time    time.Time `json:"time"`
	Attrs   []Attr    `json:"attrs,omitempty"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Attr returns the value of the attribute named key.
func (e Entry) Attr(key string) (Attr, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a, true
		}
	}
	return Attr{}, false
}

// Attr is a single attribute as captured by Recorder.
type Attr struct {
	Key   string `json:"key"`
	Type  string `json:"type"` // "string", "int64", "bool", "float64", "time", "duration", "error", "json", "any"
	Value string `json:"value"`
}

// Recorder is a slog.Handler that keeps every record in memory. Handlers
// derived with WithAttrs or WithGroup share the parent's entries.
type Recorder struct {
	store  *recorderStore
	attrs  []Attr
	prefix string
	level  slog.Level
}

type recorderStore struct {
	entries []Entry
	mu      sync.Mutex
}

// NewRecorder creates a Recorder reporting records at level and above.
func NewRecorder(level slog.Level) *Recorder {
	return &Recorder{store: &recorderStore{}, level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (r *Recorder) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.level
}

// Handle captures record.
func (r *Recorder) Handle(_ context.Context, record slog.Record) error {
	entry := Entry{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   append([]Attr(nil), r.attrs...),
	}
	record.Attrs(func(a slog.Attr) bool {
		entry.Attrs = append(entry.Attrs, toAttr(r.prefix, a))
		return true
	})

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries = append(r.store.entries, entry)
	return nil
}

// WithAttrs returns a Recorder that adds attrs to every entry.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *r
	out.attrs = append([]Attr(nil), r.attrs...)
	for _, a := range attrs {
		out.attrs = append(out.attrs, toAttr(r.prefix, a))
	}
	return &out
}

// WithGroup returns a Recorder that qualifies later keys with name.
func (r *Recorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return r
	}
	out := *r
	out.prefix = r.prefix + name + "."
	return &out
}

// Entries returns a copy of the captured entries.
func (r *Recorder) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]Entry(nil), r.store.entries...)
}

// Find returns the first entry with the given message.
func (r *Recorder) Find(message string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Message == message {
			return e, true
		}
	}
	return Entry{}, false
}

// toAttr converts a slog.Attr to its flattened form.
func toAttr(prefix string, attr slog.Attr) Attr {
	out := Attr{Key: prefix + attr.Key}
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		out.Type = "string"
		out.Value = attr.Value.String()
	case slog.KindInt64:
		out.Type = "int64"
		out.Value = fmt.Sprintf("%d", attr.Value.Int64())
	case slog.KindUint64:
		out.Type = "uint64"
		out.Value = fmt.Sprintf("%d", attr.Value.Uint64())
	case slog.KindBool:
		out.Type = "bool"
		out.Value = fmt.Sprintf("%t", attr.Value.Bool())
	case slog.KindFloat64:
		out.Type = "float64"
		out.Value = fmt.Sprintf("%f", attr.Value.Float64())
	case slog.KindTime:
		out.Type = "time"
		out.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		out.Type = "duration"
		out.Value = attr.Value.Duration().String()
	case slog.KindAny:
		v := attr.Value.Any()
		if err, isErr := v.(error); isErr {
			out.Type = "error"
			out.Value = err.Error()
		} else if s, isStringer := v.(fmt.Stringer); isStringer {
			out.Type = "string"
			out.Value = s.String()
		} else if data, marshalErr := json.Marshal(v); marshalErr == nil {
			out.Type = "json"
			out.Value = string(data)
		} else {
			out.Type = "any"
			out.Value = fmt.Sprintf("%v", v)
		}
	default:
		// Groups are kept as a single value; nested keys are not expanded.
		out.Type = "any"
		out.Value = fmt.Sprintf("%v", attr.Value.Any())
	}
	return out
}

package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultRingSize is how many entries a Ring keeps.
const DefaultRingSize = 100

// Entry is one recorded log line.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Error   string
	Attrs   map[string]string

	fromSink bool
}

// Ring keeps the most recent entries in memory so they can be inspected
// without shipping them anywhere.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	now     func() time.Time
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{entries: make([]Entry, size), now: time.Now}
}

func (r *Ring) RecordError(_ context.Context, message string, err error, attrs ...attribute.KeyValue) {
	e := Entry{Level: LevelError, Message: message, Attrs: attrMap(attrs), fromSink: true}
	if err != nil {
		e.Error = err.Error()
	}
	r.add(e)
}

func (r *Ring) Log(_ context.Context, level Level, message string, attrs ...attribute.KeyValue) {
	r.add(Entry{Level: level, Message: message, Attrs: attrMap(attrs), fromSink: true})
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Time = r.now()
	r.put(e)
}

func (r *Ring) put(e Entry) {
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

func (r *Ring) newest() (Entry, bool) {
	if !r.full && r.next == 0 {
		return Entry{}, false
	}
	return r.entries[(r.next-1+len(r.entries))%len(r.entries)], true
}

// Entries returns the stored entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Clear drops all entries.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make([]Entry, len(r.entries))
	r.next = 0
	r.full = false
}

// Hook returns a zerolog hook copying warn and error log lines into the ring.
func (r *Ring) Hook() zerolog.Hook {
	return ringHook{r}
}

type ringHook struct{ r *Ring }

func (h ringHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch {
	case level >= zerolog.ErrorLevel && level < zerolog.NoLevel:
		h.r.addLogLine(Entry{Level: LevelError, Message: msg})
	case level == zerolog.WarnLevel:
		h.r.addLogLine(Entry{Level: LevelWarn, Message: msg})
	}
}

// echoWindow is how close a log line must follow a sink entry with the same
// level and message to be treated as its echo.
const echoWindow = time.Second

// addLogLine adds a hooked log line unless it repeats the entry just recorded
// through the Sink methods, which carries the error and attributes.
func (r *Ring) addLogLine(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Time = r.now()
	if last, ok := r.newest(); ok && last.fromSink &&
		last.Level == e.Level && last.Message == e.Message && e.Time.Sub(last.Time) < echoWindow {
		return
	}
	r.put(e)
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

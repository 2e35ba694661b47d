// Package telemetry records errors and diagnostic entries for later triage.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Level is the severity of a recorded entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Sink receives telemetry from the pipeline. Implementations must be safe
// for concurrent use and must never block the caller for long.
type Sink interface {
	// RecordError reports a failure together with its context attributes.
	RecordError(ctx context.Context, message string, err error, attrs ...attribute.KeyValue)
	// Log reports a non-error diagnostic entry.
	Log(ctx context.Context, level Level, message string, attrs ...attribute.KeyValue)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordError(context.Context, string, error, ...attribute.KeyValue) {}
func (Nop) Log(context.Context, Level, string, ...attribute.KeyValue)          {}

// Multi fans every call out to all of its sinks.
type Multi []Sink

func (m Multi) RecordError(ctx context.Context, message string, err error, attrs ...attribute.KeyValue) {
	for _, s := range m {
		s.RecordError(ctx, message, err, attrs...)
	}
}

func (m Multi) Log(ctx context.Context, level Level, message string, attrs ...attribute.KeyValue) {
	for _, s := range m {
		s.Log(ctx, level, message, attrs...)
	}
}

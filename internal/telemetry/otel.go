package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/forcetech/cookvision"

// ProviderConfig selects the trace exporter. OTLPEndpoint wins over
// TraceFile; with neither set no provider is created.
type ProviderConfig struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	TraceFile      string
	Device         Device
}

// Provider owns the tracer provider and whatever the exporter writes to.
type Provider struct {
	tp   *sdktrace.TracerProvider
	file *os.File
}

// NewProvider builds a tracer provider from cfg. It returns (nil, nil) when
// no exporter is configured.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.OTLPEndpoint == "" && cfg.TraceFile == "" {
		return nil, nil
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
	}
	attrs = append(attrs, cfg.Device.Attributes()...)

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}
	var exporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
	} else {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		p.file = f
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return p, nil
}

// Sink returns a sink writing to this provider.
func (p *Provider) Sink() *OTelSink {
	return NewOTelSink(p.tp)
}

// Shutdown flushes pending spans and closes the trace file.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.tp.Shutdown(ctx)
	if p.file != nil {
		err = errors.Join(err, p.file.Close())
	}
	return err
}

// OTelSink records every entry as a short span.
type OTelSink struct {
	tracer trace.Tracer
}

// NewOTelSink creates a sink on top of any tracer provider.
func NewOTelSink(tp trace.TracerProvider) *OTelSink {
	return &OTelSink{tracer: tp.Tracer(instrumentationName)}
}

func (s *OTelSink) RecordError(ctx context.Context, message string, err error, attrs ...attribute.KeyValue) {
	_, span := s.tracer.Start(ctx, message, trace.WithAttributes(attrs...))
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Error, message)
}

func (s *OTelSink) Log(ctx context.Context, level Level, message string, attrs ...attribute.KeyValue) {
	_, span := s.tracer.Start(ctx, message, trace.WithAttributes(attrs...))
	span.SetAttributes(attribute.String("log.level", string(level)))
	span.End()
}

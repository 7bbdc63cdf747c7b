// Package otelexport exports collector spans over OTLP. It lives in
// its own package so the OpenTelemetry dependency stays out of the
// core tracing path.
package otelexport

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/parleylabs/parley/internal/tracing"
)

// Config configures the OTLP exporter.
type Config struct {
	Endpoint    string            // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            // "grpc" (default) or "http"
	Insecure    bool              // skip TLS for local dev
	ServiceName string            // OTel service name (default "parley")
	Headers     map[string]string // extra headers (auth tokens, etc.)
}

// Exporter converts collector spans to OTel spans and ships them via
// OTLP. Implements tracing.SpanExporter.
type Exporter struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// New creates an OTLP exporter with the given config.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "parley"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default: // "grpc"
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(100),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)

	return &Exporter{
		provider: tp,
		tracer:   tp.Tracer("parley"),
	}, nil
}

// ExportSpans ships the batch. Called by the collector during flush.
func (e *Exporter) ExportSpans(ctx context.Context, spans []tracing.SpanData) {
	if e == nil || len(spans) == 0 {
		return
	}
	for _, s := range spans {
		e.exportSpan(ctx, s)
	}
}

func (e *Exporter) exportSpan(ctx context.Context, s tracing.SpanData) {
	// All spans of one run share a trace derived from the run ID, so a
	// backend groups them even though IDs originate here.
	parentCtx := trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    runTraceID(s.RunID),
		SpanID:     spanID(s),
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	attrs := []attribute.KeyValue{
		attribute.String("parley.span_type", s.SpanType),
		attribute.String("parley.run_id", s.RunID),
	}
	if s.SessionID != "" {
		attrs = append(attrs, attribute.String("parley.session_id", s.SessionID))
	}
	if s.Model != "" {
		attrs = append(attrs, attribute.String("gen_ai.request.model", s.Model))
	}
	if s.SpanType == tracing.SpanLLMCall {
		attrs = append(attrs, attribute.String("gen_ai.system", s.Name))
	}
	if s.PromptTokens > 0 {
		attrs = append(attrs, attribute.Int("gen_ai.usage.input_tokens", s.PromptTokens))
	}
	if s.CompletionTokens > 0 {
		attrs = append(attrs, attribute.Int("gen_ai.usage.output_tokens", s.CompletionTokens))
	}
	if s.SpanType == tracing.SpanToolCall {
		attrs = append(attrs, attribute.String("parley.tool.name", s.Name))
	}
	if s.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("parley.duration_ms", s.DurationMs))
	}
	if s.InputPreview != "" {
		attrs = append(attrs, attribute.String("parley.input_preview", s.InputPreview))
	}
	if s.OutputPreview != "" {
		attrs = append(attrs, attribute.String("parley.output_preview", s.OutputPreview))
	}

	kind := trace.SpanKindInternal
	if s.SpanType == tracing.SpanLLMCall {
		kind = trace.SpanKindClient
	}

	_, span := e.tracer.Start(parentCtx, s.Name,
		trace.WithTimestamp(s.StartedAt),
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)

	if s.Status == tracing.StatusError {
		span.SetStatus(codes.Error, s.Error)
		if s.Error != "" {
			span.RecordError(fmt.Errorf("%s", s.Error))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(s.StartedAt.Add(time.Duration(s.DurationMs) * time.Millisecond)))
}

// Shutdown flushes remaining spans and stops the provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	slog.Info("otel exporter shutting down")
	return e.provider.Shutdown(ctx)
}

// runTraceID derives a stable 16-byte trace ID from a run ID.
func runTraceID(runID string) trace.TraceID {
	sum := sha256.Sum256([]byte(runID))
	var tid trace.TraceID
	copy(tid[:], sum[:16])
	return tid
}

// spanID uses the last 8 bytes of the span UUID.
func spanID(s tracing.SpanData) trace.SpanID {
	var sid trace.SpanID
	copy(sid[:], s.ID[8:16])
	return sid
}

package otlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/span"
)

// Config contains configuration for the OTLP exporter.
type Config struct {
	// Enabled turns exporting on. When false, New returns a noop
	// exporter with no backend connection.
	Enabled bool

	// Endpoint is the OTLP gRPC collector endpoint (host:port).
	Endpoint string

	// Insecure disables transport security for the collector connection.
	Insecure bool

	// Timeout bounds each export batch. Default: 10 seconds.
	Timeout time.Duration

	// ServiceName identifies this process in the tracing backend.
	ServiceName string
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     false,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		Timeout:     10 * time.Second,
		ServiceName: "witness",
	}
}

// Exporter republishes finished spans to an OTLP collector.
type Exporter struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   *slog.Logger
	enabled  bool
	subID    uint64
}

// New creates an exporter. With Enabled false it is a ready-to-use noop.
func New(cfg *Config) (*Exporter, error) {
	if cfg == nil {
		return nil, errors.New("otlp exporter config is nil")
	}

	e := &Exporter{
		logger:  slog.Default().With("component", "export.otlp"),
		enabled: cfg.Enabled,
	}
	if !cfg.Enabled {
		e.tracer = trace.NewNoopTracerProvider().Tracer("witness")
		return e, nil
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("otlp exporter endpoint is empty")
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := otlptracegrpc.NewClient(opts...)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	e.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	e.tracer = e.provider.Tracer("witness")

	e.logger.Info("otlp exporter initialized", "endpoint", cfg.Endpoint)

	return e, nil
}

// Attach subscribes the exporter to span finish events. Delivery is
// asynchronous so a slow collector never stalls publishers.
func (e *Exporter) Attach(b *bus.Bus) {
	e.subID = b.SubscribeAsync(span.TopicFinish, func(evt bus.Event) {
		s, ok := evt.Payload.(span.Span)
		if !ok {
			return
		}
		e.export(s)
	})
}

// Detach removes the bus subscription.
func (e *Exporter) Detach(b *bus.Bus) {
	if e.subID != 0 {
		b.Unsubscribe(e.subID)
		e.subID = 0
	}
}

// export replays one finished span through the OTLP pipeline with its
// original timing. The registry's identifiers travel as attributes; the
// OTLP backend assigns its own trace identity.
func (e *Exporter) export(s span.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("witness.trace_id", s.TraceID),
		attribute.String("witness.span_id", s.SpanID),
	}
	if s.ParentID != "" {
		attrs = append(attrs, attribute.String("witness.parent_id", s.ParentID))
	}
	if s.UnitID != 0 {
		attrs = append(attrs, attribute.Int64("witness.unit_id", int64(s.UnitID)))
	}
	for k, v := range s.Tags {
		attrs = append(attrs, attribute.String(k, v))
	}

	_, otelSpan := e.tracer.Start(
		context.Background(),
		s.Name,
		trace.WithTimestamp(s.StartTime),
		trace.WithAttributes(attrs...),
	)
	if s.Status == span.StatusError {
		otelSpan.SetStatus(codes.Error, s.Error)
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	otelSpan.End(trace.WithTimestamp(s.EndTime))
}

// Enabled reports whether exporting is active.
func (e *Exporter) Enabled() bool {
	return e.enabled
}

// Shutdown flushes pending spans and shuts the pipeline down.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if !e.enabled || e.provider == nil {
		return nil
	}
	return e.provider.Shutdown(ctx)
}

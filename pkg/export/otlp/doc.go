// Package otlp exports finished spans to a distributed-tracing backend
// over OTLP gRPC. The exporter attaches to the event bus, so instrumented
// code never depends on the OpenTelemetry SDK; span identity is resolved
// entirely from the published span values.
package otlp

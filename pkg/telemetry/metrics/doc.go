// Package metrics exposes Prometheus metrics for the span pipeline:
// span volume and latency from bus events, registry table and
// subscription sizes, and sweep activity.
package metrics

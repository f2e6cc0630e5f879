// Package bus is the in-process event bus spans and instrumentation
// events are published through. Handlers attach to structured topic names
// and receive every event published to their topic while attached
// (at-least-once delivery; a handler may run concurrently with itself when
// subscribed asynchronously).
package bus

// Package recorder turns finished spans into durable span records. It
// subscribes to span finish events on the bus and writes records to a
// storage backend asynchronously, so persistence latency never reaches
// the instrumented code path.
package recorder

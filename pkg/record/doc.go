// Package record defines the persisted form of finished spans and the
// Storage interface its backends implement. Records are the queryable,
// durable downstream of the span pipeline: the recorder turns bus finish
// events into records, storage backends persist them, and the retention
// pruner bounds how long they live.
package record

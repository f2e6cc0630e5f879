// Package span is the instrumentation surface: it creates named spans
// around units of work, threads them through context, and wires their
// start/stop boundaries into the cross-unit span registry and the event
// bus. Downstream consumers (exporter, recorder, metrics) never talk to
// instrumented code directly; they attach to the bus and resolve span
// identity through the registry.
package span

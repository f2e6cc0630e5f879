// Package registry maps execution units to their currently (or most
// recently) active span, surviving termination of the unit that registered
// the span.
//
// Instrumentation registers a span when a unit of work starts and
// tombstones it when the work stops. Any goroutine may then resolve "what
// span is, or was, active for unit X", including after X has terminated,
// for a bounded tombstone TTL. A single coordinator goroutine owns the
// only order-sensitive state (liveness watches and the sweep timer);
// the high-frequency table reads and writes never pass through it.
//
// Registries are instance-scoped, one per observability context. A
// process-wide index keyed by context name is available through Install,
// ForContext and Uninstall for code that cannot thread a *Registry
// explicitly; it has defined setup and teardown and exists for that case
// only.
package registry

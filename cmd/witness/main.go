// Witness is a cross-unit span registry and tracing runtime.
//
// It tracks the active span of every execution unit in a process, keeps
// finished spans resolvable for a configurable window, and fans span
// boundary events out to storage, metrics, and OTLP export.
//
// Usage:
//
//	# Start the runtime with default configuration
//	witness run
//
//	# Start with a custom configuration file
//	witness run --config /path/to/witness.yaml
//
//	# Validate a configuration file without starting
//	witness validate
//
//	# Query recorded spans
//	witness spans --trace-id 4bf92f3577b34da6a3ce929d0e0e4736
//
//	# Show version information
//	witness version
package main

func main() {
	Execute()
}

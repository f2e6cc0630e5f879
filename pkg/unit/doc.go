// Package unit provides explicit identities for concurrent units of
// execution (goroutines) and threads them through context.Context.
//
// Go offers neither goroutine identity nor a way to observe another
// goroutine's termination from outside. This package supplies both as an
// explicit runtime layer: spawning through Go or GoWithRecover gives the
// child goroutine a process-unique ID, records who spawned it, and closes
// a done channel when the child returns for any reason, including a panic.
//
// IDs are allocated from a monotonic counter and are never recycled, so an
// ID observed anywhere in the process always refers to the same logical
// unit of execution.
package unit

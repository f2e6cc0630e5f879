// Package storage provides the span record storage backends: an in-memory
// map for tests and a SQLite backend for durable single-instance
// deployments.
package storage

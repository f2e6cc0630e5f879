// Package cli contains shared helpers for the witness command-line
// interface: typed command errors and shutdown signal handling.
package cli

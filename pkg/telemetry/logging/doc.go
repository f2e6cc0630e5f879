// Package logging configures the process-wide structured logger. All
// components log through log/slog with a "component" attribute; this
// package owns level and format parsing and handler construction.
package logging

// Package retention bounds the span record store. A pruner deletes
// records past a maximum age or beyond a maximum count, either on demand
// or on a cron schedule.
package retention

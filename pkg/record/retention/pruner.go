package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/systemic-engineering/witness/pkg/record"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// MaxAge is how long to retain span records. Zero keeps records
	// forever (no age-based pruning).
	MaxAge time.Duration

	// MaxRecords is the maximum number of records to keep. Zero means
	// unlimited.
	MaxRecords int64

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "*/5 * * * *" (every five minutes). Empty disables the
	// scheduler; Prune can still be called directly.
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAge:        7 * 24 * time.Hour,
		MaxRecords:    0,
		PruneSchedule: "*/30 * * * *",
	}
}

// Pruner enforces retention policy on span records.
type Pruner struct {
	storage   record.Storage
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a retention pruner over the given storage backend.
func NewPruner(storage record.Storage, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "record.retention"),
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes span records older than MaxAge, then trims the store down
// to MaxRecords by deleting the oldest. Returns the total number of
// records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.MaxAge > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("span record pruning completed",
			"deleted", total,
			"max_age", p.config.MaxAge,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-p.config.MaxAge)
	return p.storage.Delete(ctx, &record.Query{EndTime: &cutoff})
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &record.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	// Walk the oldest records to find the cutoff EndTime, then delete up
	// to and including it.
	excess := int(count - p.config.MaxRecords)
	oldest, err := p.storage.Query(ctx, &record.Query{Limit: excess})
	if err != nil {
		return 0, fmt.Errorf("failed to query oldest records: %w", err)
	}
	if len(oldest) == 0 {
		return 0, nil
	}

	cutoff := oldest[len(oldest)-1].EndTime
	return p.storage.Delete(ctx, &record.Query{EndTime: &cutoff})
}

// Start begins scheduled pruning. Call during application startup.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled prune, or nil when
// no schedule is active.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

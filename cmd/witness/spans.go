package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/systemic-engineering/witness/pkg/cli"
	"github.com/systemic-engineering/witness/pkg/config"
	"github.com/systemic-engineering/witness/pkg/record"
)

var spansFlags struct {
	traceID   string
	name      string
	status    string
	timeRange string
	limit     int
	format    string
}

var spansCmd = &cobra.Command{
	Use:   "spans",
	Short: "Query recorded spans",
	Long: `Query span records from the configured storage backend.

Examples:
  # List the most recent spans
  witness spans

  # All spans of one trace
  witness spans --trace-id 4bf92f3577b34da6a3ce929d0e0e4736

  # Failed spans in a time range
  witness spans --status error --time-range "2026-08-01T00:00:00Z/2026-08-02T00:00:00Z"

  # JSON output
  witness spans --format json`,
	RunE: querySpans,
}

func init() {
	rootCmd.AddCommand(spansCmd)

	spansCmd.Flags().StringVar(&spansFlags.traceID, "trace-id", "", "filter by trace ID")
	spansCmd.Flags().StringVar(&spansFlags.name, "name", "", "filter by span name")
	spansCmd.Flags().StringVar(&spansFlags.status, "status", "", "filter by status: ok, error")
	spansCmd.Flags().StringVar(&spansFlags.timeRange, "time-range", "", "filter by end time (RFC3339 interval: start/end)")
	spansCmd.Flags().IntVar(&spansFlags.limit, "limit", 100, "maximum records to return")
	spansCmd.Flags().StringVar(&spansFlags.format, "format", "text", "output format: text, json")
}

func querySpans(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	store, err := openStorage(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError("spans", err)
	}
	defer store.Close()

	query := &record.Query{
		TraceID: spansFlags.traceID,
		Name:    spansFlags.name,
		Status:  spansFlags.status,
		Limit:   spansFlags.limit,
	}

	if spansFlags.timeRange != "" {
		parts := strings.Split(spansFlags.timeRange, "/")
		if len(parts) != 2 {
			return fmt.Errorf("invalid time range format (expected: start/end)")
		}

		startTime, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return fmt.Errorf("invalid start time: %w", err)
		}
		query.StartTime = &startTime

		endTime, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return fmt.Errorf("invalid end time: %w", err)
		}
		query.EndTime = &endTime
	}

	ctx := context.Background()
	records, err := store.Query(ctx, query)
	if err != nil {
		return cli.NewCommandError("spans", fmt.Errorf("query failed: %w", err))
	}

	switch spansFlags.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "text":
		printSpansTable(records)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", spansFlags.format)
	}
}

func printSpansTable(records []*record.SpanRecord) {
	if len(records) == 0 {
		fmt.Println("No span records found.")
		return
	}

	fmt.Printf("%-34s %-18s %-24s %-8s %-12s %s\n",
		"TRACE", "SPAN", "NAME", "STATUS", "DURATION", "END TIME")
	for _, rec := range records {
		fmt.Printf("%-34s %-18s %-24s %-8s %-12s %s\n",
			rec.TraceID,
			rec.SpanID,
			truncate(rec.Name, 24),
			rec.Status,
			rec.Duration.Round(time.Microsecond),
			rec.EndTime.Format(time.RFC3339),
		)
	}
	fmt.Printf("\nTotal: %d records\n", len(records))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

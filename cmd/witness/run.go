package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/systemic-engineering/witness/pkg/bus"
	"github.com/systemic-engineering/witness/pkg/cli"
	"github.com/systemic-engineering/witness/pkg/config"
	"github.com/systemic-engineering/witness/pkg/export/otlp"
	"github.com/systemic-engineering/witness/pkg/record"
	"github.com/systemic-engineering/witness/pkg/record/recorder"
	"github.com/systemic-engineering/witness/pkg/record/retention"
	"github.com/systemic-engineering/witness/pkg/record/storage"
	"github.com/systemic-engineering/witness/pkg/registry"
	"github.com/systemic-engineering/witness/pkg/span"
	"github.com/systemic-engineering/witness/pkg/telemetry/logging"
	"github.com/systemic-engineering/witness/pkg/telemetry/metrics"
	"github.com/systemic-engineering/witness/pkg/unit"

	"github.com/prometheus/client_golang/prometheus"
)

var runFlags struct {
	contextName string
	logLevel    string
	dryRun      bool
	watch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the witness runtime",
	Long: `Start the witness runtime with the specified configuration.

The runtime installs a span registry for the configured observability
context, wires span lifecycle events to storage, metrics, and OTLP
export, and serves Prometheus metrics if enabled.

Examples:
  # Start with default config
  witness run

  # Start with custom config
  witness run --config /etc/witness/witness.yaml

  # Override the observability context name
  witness run --context payments

  # Validate config without starting
  witness run --dry-run

  # Reload configuration on file change
  witness run --watch`,
	RunE: runRuntime,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.contextName, "context", "", "override observability context name")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the runtime")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload configuration when the file changes")
}

func runRuntime(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError(cfgFile, fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.contextName != "" {
		cfg.Context = runFlags.contextName
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Witness %s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Metrics collector is created first so the registry's sweep
	// callback can feed it.
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(&metrics.Config{
			Namespace: cfg.Metrics.Namespace,
		}, prometheus.NewRegistry())
	}

	regCfg := &registry.Config{
		TombstoneTTL:  cfg.Registry.TombstoneTTL,
		SweepInterval: cfg.Registry.SweepInterval,
		Logger:        logging.Component(logger, "registry"),
	}
	if collector != nil {
		regCfg.OnSweep = collector.RecordSweep
		regCfg.OnLookup = collector.RecordLookup
	}

	reg, err := registry.Install(cfg.Context, regCfg)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to install registry: %w", err))
	}
	defer registry.Uninstall(cfg.Context)
	fmt.Printf("✓ Span registry installed (context %q)\n", cfg.Context)

	eventBus := bus.New()
	defer eventBus.Close()
	if cfg.Bus.Workers > 0 {
		if err := eventBus.EnableWorkerPool(cfg.Bus.Workers, cfg.Bus.QueueSize); err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to start bus workers: %w", err))
		}
	}
	eventBus.SetPanicHook(func(handlerID uint64, r any) {
		slog.Error("bus handler panicked", "handler_id", handlerID, "panic", r)
	})

	tracer := span.NewTracer(span.Config{
		Registry: reg,
		Bus:      eventBus,
	})

	// Span recording
	slog.Info("initializing span storage", "backend", cfg.Storage.Backend)
	store, err := openStorage(&cfg.Storage)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	rec := recorder.New(store, recorder.DefaultConfig())
	rec.Attach(eventBus)
	defer rec.Close()
	defer rec.Detach(eventBus)
	fmt.Println("✓ Span recorder attached")

	// Retention pruning
	if cfg.Retention.PruneSchedule != "" {
		pruner := retention.NewPruner(store, &retention.Config{
			MaxAge:        cfg.Retention.MaxAge,
			MaxRecords:    cfg.Retention.MaxRecords,
			PruneSchedule: cfg.Retention.PruneSchedule,
		})
		if err := pruner.Start(context.Background()); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				slog.Debug("retention scheduler started", "next_pruning", next)
			}
		}
	}

	// OTLP export
	exporter, err := otlp.New(&otlp.Config{
		Enabled:     cfg.Export.Enabled,
		Endpoint:    cfg.Export.Endpoint,
		Insecure:    cfg.Export.Insecure,
		Timeout:     cfg.Export.Timeout,
		ServiceName: cfg.Export.ServiceName,
	})
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to create OTLP exporter: %w", err))
	}
	exporter.Attach(eventBus)
	defer func() {
		exporter.Detach(eventBus)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exporter.Shutdown(shutdownCtx); err != nil {
			slog.Error("exporter shutdown failed", "error", err)
		}
	}()
	if exporter.Enabled() {
		fmt.Printf("✓ OTLP export enabled (%s)\n", cfg.Export.Endpoint)
	}

	// Metrics endpoint
	var metricsSrv *http.Server
	if collector != nil {
		collector.Attach(eventBus)
		defer collector.Detach(eventBus)

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})

		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics server starting", "address", cfg.Metrics.ListenAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Metrics.ListenAddress)
	}

	// Housekeeping loop: sample registry stats on the sweep cadence, and
	// trace the sampling itself so the pipeline carries traffic even when
	// no application spans are flowing.
	houseCtx, houseCancel := context.WithCancel(context.Background())
	defer houseCancel()
	houseUnit := unit.Go(houseCtx, func(ctx context.Context) {
		ticker := time.NewTicker(cfg.Registry.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, s := tracer.StartSpan(ctx, "registry.observe")
				stats := reg.Stats()
				s.SetTag("entries", strconv.Itoa(stats.Entries))
				s.SetTag("subscriptions", strconv.Itoa(stats.Subscriptions))
				if collector != nil {
					collector.ObserveRegistry(stats)
					collector.ObserveBusDropped(eventBus.Dropped())
				}
				s.Finish()
			}
		}
	})
	defer houseUnit.Finish()

	// Optional config hot reload
	var watcher *config.Watcher
	if runFlags.watch {
		watcher, err = config.NewWatcher(cfgFile, logging.Component(logger, "config"))
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to create config watcher: %w", err))
		}
		go func() {
			err := watcher.Watch(context.Background(), func() error {
				// Structural settings (context name, storage backend,
				// listen address) need a restart; the reload swaps the
				// global config for settings read per use.
				return config.ReloadConfig(cfgFile)
			})
			if err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
		defer func() {
			if err := watcher.Stop(); err != nil {
				slog.Error("config watcher stop failed", "error", err)
			}
		}()
		fmt.Println("✓ Configuration watcher started")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sig := <-cli.WaitForShutdown()
	fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}

	fmt.Println("✓ Runtime stopped")
	return nil
}

// openStorage creates the span record storage backend from configuration.
func openStorage(cfg *config.StorageConfig) (record.Storage, error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path: cfg.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		return store, nil
	case "memory":
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

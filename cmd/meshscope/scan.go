package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"meshscope/internal/codec"
	"meshscope/internal/logging"
	"meshscope/internal/repository"
	"meshscope/internal/repository/sqlite"
	"meshscope/internal/service"
)

// Scan command flags
var (
	outputFormat string
	scanTimeout  time.Duration
	saveSnapshot bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one discovery scan and print the graph",
	Long: `Query the coordinator and every node reachable from it, then print the
resulting topology graph to stdout.`,
	Example: `  # Scan from the configured coordinator, print JSON
  meshscope scan

  # YAML output, give up after one minute
  meshscope scan --format yaml --timeout 1m

  # Scan and store the result as the latest snapshot for 'serve'
  meshscope scan --save`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, yaml)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Abort the scan after this long (overrides scan.run_timeout)")
	scanCmd.Flags().BoolVar(&saveSnapshot, "save", false, "Store the graph in the database")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the graph; logs stay off unless asked for
	if err := initLogging("off"); err != nil {
		return err
	}
	defer logging.Sync()

	exporter, err := codec.ForFormat(outputFormat)
	if err != nil {
		return err
	}

	runTimeout := cfg.Scan.RunTimeout.Duration()
	if scanTimeout > 0 {
		runTimeout = scanTimeout
	}

	var repo repository.Repository
	if saveSnapshot {
		store, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		repo = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := service.NewEventBus()
	topology := service.NewTopologyService(newEngine(cfg, eventBus), repo, eventBus, coordinatorResolver(cfg), runTimeout)
	if repo != nil {
		if err := topology.Restore(ctx); err != nil {
			logging.Warn("Stored topology unreadable", zap.Error(err))
		}
	}

	graph, err := topology.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	return exporter.Export(graph, cmd.OutOrStdout())
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/guardsync/history"
	"github.com/yairfalse/guardsync/internal/daemon"
	"github.com/yairfalse/guardsync/reconciler"
	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/tfstate"
	"github.com/yairfalse/guardsync/wal"
)

var (
	daemonConfigPath   string
	daemonTerraformDir string
	daemonDataDir      string
	daemonInterval     time.Duration
	daemonMetricsAddr  string
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous reconciliation sweeps",
	Long: `Run guardsync in daemon mode for continuous drift reconciliation.

The daemon sweeps the organization at the configured interval, importing
resources that appeared outside Terraform, and exports metrics.

Features:
- Continuous reconciliation loop
- Prometheus metrics on /metrics
- Health checks on /health, /-/healthy, /-/ready
- Run history for the report command
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  guardsync daemon                          # Run with defaults
  guardsync daemon --interval 30m           # Sweep every 30 minutes
  guardsync daemon --metrics-addr :9090     # Custom metrics address`,
	RunE: runDaemonCmd,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonConfigPath, "config", "", "Operator config file path")
	daemonCmd.Flags().StringVar(&daemonTerraformDir, "dir", ".", "Terraform working directory")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", ".guardsync", "Audit trail and history directory")
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 30*time.Minute, "Sweep interval")
	daemonCmd.Flags().StringVar(&daemonMetricsAddr, "metrics-addr", ":2112", "Metrics HTTP server address")
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "guardsync",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() { _ = shutdown(ctx) }()

	eff, err := loadEffective(ctx, daemonConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := eff.Validate(); err != nil {
		return err
	}

	probes, _, accounts, err := buildProbes(ctx, eff)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(daemonDataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	auditLog, err := wal.Open(daemonDataDir)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer func() { _ = auditLog.Close() }()

	hist, err := history.Open(daemonDataDir)
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()

	metrics, err := telemetry.NewSweepMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	store := tfstate.NewRunner(daemonTerraformDir)
	sweeper := &snapshotSweeper{
		probes:   probes,
		store:    store,
		auditLog: auditLog,
		metrics:  metrics,
		opts: reconciler.Options{
			Accounts: accounts,
		},
	}

	fmt.Printf("🚀 Starting guardsync daemon...\n")
	fmt.Printf("   Interval: %s\n", daemonInterval)
	fmt.Printf("   Metrics: http://localhost%s/metrics\n", daemonMetricsAddr)
	fmt.Printf("   Terraform dir: %s\n\n", daemonTerraformDir)

	d := daemon.New(sweeper, hist, daemon.Config{
		Interval:    daemonInterval,
		MetricsAddr: daemonMetricsAddr,
	})
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	fmt.Println("\n👋 Daemon stopped")
	return nil
}

// snapshotSweeper re-snapshots the state index before every sweep, so
// imports applied outside the daemon between ticks are picked up.
type snapshotSweeper struct {
	probes   reconciler.Prober
	store    tfstate.Store
	auditLog *wal.WAL
	metrics  *telemetry.SweepMetrics
	opts     reconciler.Options
}

func (s *snapshotSweeper) Sweep(ctx context.Context) (*reconciler.Result, error) {
	index, err := tfstate.Snapshot(ctx, s.store)
	if err != nil {
		return nil, err
	}
	engine := reconciler.NewEngine(s.probes, s.store, index, s.auditLog, s.metrics, s.opts)
	return engine.Sweep(ctx)
}

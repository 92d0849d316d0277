package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/guardsync/history"
	"github.com/yairfalse/guardsync/reconciler"
	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/tfstate"
	"github.com/yairfalse/guardsync/wal"
)

var (
	syncConfigPath   string
	syncTerraformDir string
	syncDataDir      string
	syncRegions      []string
	syncConcurrency  int
	syncRetryDelay   time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import existing GuardDuty resources into Terraform state",
	Long: `Run one reconciliation sweep against the Terraform state store.

This command will:
1. Snapshot the addresses already tracked by state
2. Probe each (category, region) target for existing resources
3. Import unmanaged resources, skipping tracked and excluded ones
4. Record an audit trail and per-category summary

A resource the store reports as already managed counts as success. A
region whose cross-account session cannot be acquired is skipped, not
failed.`,
	Example: `  # Sweep all regions against ./terraform
  guardsync sync --config ./config.yaml --dir ./terraform

  # Restrict the sweep to two regions
  guardsync sync --config ./config.yaml --regions us-east-1,eu-west-1`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&syncConfigPath, "config", "", "Operator config file path")
	syncCmd.Flags().StringVar(&syncTerraformDir, "dir", ".", "Terraform working directory")
	syncCmd.Flags().StringVar(&syncDataDir, "data-dir", ".guardsync", "Audit trail and history directory")
	syncCmd.Flags().StringSliceVar(&syncRegions, "regions", nil, "Regions to sweep (default: all)")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 4, "Workers per category")
	syncCmd.Flags().DurationVar(&syncRetryDelay, "retry-delay", 5*time.Second, "Delay between import retries")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "guardsync",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() { _ = shutdown(ctx) }()

	eff, err := loadEffective(ctx, syncConfigPath)
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

	store := tfstate.NewRunner(syncTerraformDir)
	index, err := tfstate.Snapshot(ctx, store)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(syncDataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	auditLog, err := wal.Open(syncDataDir)
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer func() { _ = auditLog.Close() }()

	metrics, err := telemetry.NewSweepMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	engine := reconciler.NewEngine(probes, store, index, auditLog, metrics, reconciler.Options{
		Regions:     syncRegions,
		Accounts:    accounts,
		RetryDelay:  syncRetryDelay,
		Concurrency: syncConcurrency,
	})

	fmt.Println("🔄 Starting reconciliation sweep...")
	result, err := engine.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if hist, err := history.Open(syncDataDir); err == nil {
		if err := hist.RecordSweep(result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
		}
		_ = hist.Close()
	}

	displaySyncResult(result)
	if result.Failed() {
		os.Exit(1)
	}
	return nil
}

func displaySyncResult(result *reconciler.Result) {
	fmt.Println("\n✅ Sweep Complete")
	for _, category := range reconciler.CategoryOrder {
		s := result.Summaries[category]
		fmt.Printf("  %-12s imported=%d tracked=%d failed=%d skipped=%d\n",
			category, s.Imported, s.AlreadyTracked, s.Failed, s.NotApplicable)
	}
	fmt.Printf("  ⏱️  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if result.Failed() {
		fmt.Println("\n❌ Some imports failed:")
		for _, o := range result.Outcomes {
			if o.Kind == reconciler.OutcomeImportFailed {
				fmt.Printf("  - %s (%s): %s\n", o.Address, o.Region, o.Reason)
			}
		}
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/guardsync/discovery"
	"github.com/yairfalse/guardsync/history"
	"github.com/yairfalse/guardsync/verifier"
	"github.com/yairfalse/guardsync/wal"
)

var (
	verifyConfigPath string
	verifyVarsDir    string
	verifyDataDir    string
	verifyRegions    []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify GuardDuty configuration across all accounts and regions",
	Long: `Check the live GuardDuty configuration after the declarative apply.

Five dimensions are checked:
1. GuardDuty service access in Organizations
2. Delegated administrator per region
3. Org auto-enable completeness per region
4. Detector status per account and region
5. Publishing destination health per region

Misconfigured or missing resources are issues; partially enabled
protection plans are warnings; checks that error are tallied apart
so "could not determine" never masquerades as "confirmed absent".`,
	Example: `  # Verify using account IDs from the discovery hand-off
  guardsync verify --vars ./terraform

  # Verify with operator config only
  guardsync verify --config ./config.yaml`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyConfigPath, "config", "", "Operator config file path")
	verifyCmd.Flags().StringVar(&verifyVarsDir, "vars", "", "Directory holding the discovery variables file")
	verifyCmd.Flags().StringVar(&verifyDataDir, "data-dir", ".guardsync", "History directory")
	verifyCmd.Flags().StringSliceVar(&verifyRegions, "regions", nil, "Regions to verify (default: all)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eff, err := loadEffective(ctx, verifyConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The discovery hand-off can supply account IDs the operator config
	// does not carry.
	if verifyVarsDir != "" {
		vars, err := discovery.ReadVariables(verifyVarsDir)
		if err != nil {
			return err
		}
		if eff.AuditAccountID == "" {
			eff.AuditAccountID = vars.AuditAccountID
		}
		if eff.PrimaryRegion == "" {
			eff.PrimaryRegion = vars.PrimaryRegion
		}
	}
	if eff.AuditAccountID == "" {
		return fmt.Errorf("audit_account_id is required: set it in the operator config file or pass --vars")
	}

	probes, _, accounts, err := buildProbes(ctx, eff)
	if err != nil {
		return err
	}

	v := verifier.New(probes, probes, verifier.Options{
		Regions:       verifyRegions,
		Accounts:      accounts,
		PrimaryRegion: eff.PrimaryRegion,
	})

	fmt.Println("🔎 Verifying GuardDuty configuration...")
	report, err := v.Run(ctx)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if auditLog, err := wal.Open(verifyDataDir); err == nil {
		_ = auditLog.Append(wal.EntryVerified, "", report)
		_ = auditLog.Close()
	}

	if hist, err := history.Open(verifyDataDir); err == nil {
		if err := hist.RecordVerification(report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record history: %v\n", err)
		}
		_ = hist.Close()
	}

	fmt.Println()
	report.Render(os.Stdout)
	if report.ExitCode() != 0 {
		os.Exit(report.ExitCode())
	}
	return nil
}

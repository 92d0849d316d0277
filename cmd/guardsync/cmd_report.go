package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/guardsync/history"
	"github.com/yairfalse/guardsync/reconciler"
	"github.com/yairfalse/guardsync/wal"
)

var (
	reportDataDir string
	reportLimit   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show recent sweep and verification history",
	Long: `Show what the last reconciliation sweeps imported and how the last
verification runs classified the organization.

Back-to-back sweeps that both imported resources are flagged: a sweep
over a converged matrix should find nothing left to import.`,
	Example: `  guardsync report              # Last 5 sweeps and verifications
  guardsync report --limit 20   # More history`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportDataDir, "data-dir", ".guardsync", "History directory")
	reportCmd.Flags().IntVarP(&reportLimit, "limit", "n", 5, "How many runs to show")
}

func runReport(cmd *cobra.Command, args []string) error {
	hist, err := history.Open(reportDataDir)
	if err != nil {
		return err
	}
	defer func() { _ = hist.Close() }()

	sweeps, err := hist.RecentSweeps(reportLimit)
	if err != nil {
		return err
	}
	verifications, err := hist.RecentVerifications(reportLimit)
	if err != nil {
		return err
	}

	fmt.Println("📊 Recent sweeps")
	if len(sweeps) == 0 {
		fmt.Println("  (none recorded)")
	}
	for i, sweep := range sweeps {
		var tracked, failed int
		for _, s := range sweep.Summaries {
			tracked += s.AlreadyTracked
			failed += s.Failed
		}
		status := "ok"
		if sweep.Failed() {
			status = "failed"
		}
		marker := ""
		if repeatImport(sweeps, i) {
			marker = "  ⚠ repeat import"
		}
		fmt.Printf("  %s  imported=%d tracked=%d failed=%d  %s%s\n",
			sweep.Timestamp.Format(time.RFC3339), sweep.TotalImported(), tracked, failed, status, marker)
		for _, category := range reconciler.CategoryOrder {
			if s, ok := sweep.Summaries[category]; ok && s.Failed > 0 {
				fmt.Printf("    %s: %d failed\n", category, s.Failed)
			}
		}
	}
	if repeatImport(sweeps, 0) {
		fmt.Println("\n⚠️  The last two sweeps both imported resources. A converged state")
		fmt.Println("   imports nothing on the second pass; something keeps drifting.")
	}

	fmt.Println("\n🔎 Recent verifications")
	if len(verifications) == 0 {
		fmt.Println("  (none recorded)")
	}
	for _, report := range verifications {
		fmt.Printf("  %s  verdict=%s issues=%d warnings=%d\n",
			report.Timestamp.Format(time.RFC3339), report.Verdict(),
			len(report.Issues), len(report.Warnings))
	}

	entries, err := wal.ReadAll(reportDataDir)
	if err != nil {
		return err
	}
	fmt.Println("\n🧾 Latest audit trail")
	if len(entries) == 0 {
		fmt.Println("  (none recorded)")
		return nil
	}
	counts := auditCounts(entries)
	for _, entryType := range auditOrder {
		if counts[entryType] > 0 {
			fmt.Printf("  %s: %d\n", entryType, counts[entryType])
		}
	}
	return nil
}

var auditOrder = []wal.EntryType{
	wal.EntryObserved,
	wal.EntryImported,
	wal.EntrySkipped,
	wal.EntryExcluded,
	wal.EntryFailed,
	wal.EntryVerified,
}

func auditCounts(entries []wal.Entry) map[wal.EntryType]int {
	counts := make(map[wal.EntryType]int)
	for _, entry := range entries {
		counts[entry.Type]++
	}
	return counts
}

// repeatImport reports whether the sweep at index i imported resources
// right after the preceding sweep did too. Sweeps are newest first, so the
// preceding sweep sits at i+1.
func repeatImport(sweeps []reconciler.Result, i int) bool {
	if i < 0 || i+1 >= len(sweeps) {
		return false
	}
	return sweeps[i].TotalImported() > 0 && sweeps[i+1].TotalImported() > 0
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/guardsync/discovery"
)

var (
	discoverConfigPath string
	discoverOutputDir  string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover existing GuardDuty organization configuration",
	Long: `Probe the organization for existing GuardDuty configuration and write
the hand-off files the declarative layer reads.

This command will:
1. Resolve the caller's account (the management account)
2. Look up the delegated GuardDuty administrator
3. Read the org auto-enable configuration from the audit account
4. Write discovery.json and bootstrap.auto.tfvars.json`,
	Example: `  # Discover with the default config file
  guardsync discover --config ./config.yaml

  # Write hand-off files into the terraform directory
  guardsync discover --config ./config.yaml --output ./terraform`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverConfigPath, "config", "", "Operator config file path")
	discoverCmd.Flags().StringVarP(&discoverOutputDir, "output", "o", ".", "Directory for hand-off files")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eff, err := loadEffective(ctx, discoverConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if eff.ResourcePrefix == "" {
		return fmt.Errorf("resource_prefix is required: set it in the operator config file")
	}

	probes, sessions, _, err := buildProbes(ctx, eff)
	if err != nil {
		return err
	}

	d := discovery.New(probes, sessions, eff)
	result, err := d.Run(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if err := d.Write(result, discoverOutputDir); err != nil {
		return fmt.Errorf("failed to write hand-off files: %w", err)
	}

	fmt.Println("🔍 GuardDuty Organization Discovery")
	fmt.Printf("  Management account: %s\n", result.Variables.ManagementAccountID)
	fmt.Printf("  Primary region: %s\n", result.Variables.PrimaryRegion)
	if result.Facts.OrgExists {
		fmt.Printf("  Delegated admin: %s\n", result.Facts.DelegatedAdmin)
		fmt.Printf("  Auto-enable: %v (S3=%v EKS=%v Malware=%v)\n",
			result.Facts.AutoEnable, result.Facts.S3Protection,
			result.Facts.EKSProtection, result.Facts.MalwareProtection)
	} else {
		fmt.Println("  Delegated admin: none (will be set up)")
	}
	fmt.Printf("\n✅ Hand-off files written to %s\n", discoverOutputDir)
	return nil
}

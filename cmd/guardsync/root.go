package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/yairfalse/guardsync/config"
	"github.com/yairfalse/guardsync/providers/aws"
	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/types"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "guardsync",
		Short: "GuardDuty organization reconciliation",
		Long: `Guardsync - GuardDuty organization reconciliation

Guardsync reconciles the live GuardDuty configuration of a multi-account,
multi-region AWS organization with a Terraform state store, so plan and
apply neither re-create resources that already exist nor silently
diverge from reality.

Discover existing org configuration, import unmanaged resources into
state, and verify the result across all accounts and regions.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Guardsync {{.Version}} - GuardDuty organization reconciliation
`)
}

// loadEffective builds the merged configuration: operator file values
// overridden by the shared parameter store, then defaults.
func loadEffective(ctx context.Context, configPath string) (config.Effective, error) {
	operator := &config.Config{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Effective{}, err
		}
		operator = loaded
	}

	region := operator.PrimaryRegion
	if region == "" {
		region = config.DefaultPrimaryRegion
	}
	baseCfg, err := aws.LoadBaseConfig(ctx, region)
	if err != nil {
		return config.Effective{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	params := aws.NewParamStore(ssm.NewFromConfig(baseCfg))
	shared, err := params.FetchSharedConfig(ctx, "")
	if err != nil {
		// The shared store is an enrichment source, not a prerequisite.
		telemetry.NewLogger("config").Warn().Err(err).
			Msg("could not read shared parameter store, using operator config only")
		shared = nil
	}

	return config.Merge(operator, shared), nil
}

// buildProbes wires the session provider and probe service for the
// accounts the merged config names.
func buildProbes(ctx context.Context, eff config.Effective) (*aws.ProbeService, *aws.SessionProvider, types.AccountIDs, error) {
	baseCfg, err := aws.LoadBaseConfig(ctx, eff.PrimaryRegion)
	if err != nil {
		return nil, nil, types.AccountIDs{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	sessions := aws.NewSessionProvider(sts.NewFromConfig(baseCfg), "guardsync")
	managementAccount, err := sessions.CallerAccountID(ctx)
	if err != nil {
		return nil, nil, types.AccountIDs{}, fmt.Errorf("failed to resolve caller identity: %w", err)
	}

	accounts := types.AccountIDs{
		Management: managementAccount,
		Audit:      eff.AuditAccountID,
		LogArchive: eff.LogArchiveAccountID,
	}
	return aws.NewProbeService(sessions, accounts), sessions, accounts, nil
}

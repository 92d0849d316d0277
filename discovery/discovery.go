package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yairfalse/guardsync/config"
	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/types"
)

// Hand-off file names consumed by the declarative layer.
const (
	FactsFile     = "discovery.json"
	VariablesFile = "bootstrap.auto.tfvars.json"
)

// Prober is the org-level discovery surface: the delegated-admin
// registration seen from the management account, and the org configuration
// seen from the delegated admin.
type Prober interface {
	DelegatedAdministrator(ctx context.Context, region string) (types.AdminFact, error)
	OrgConfiguration(ctx context.Context, region string) (types.OrgConfigFact, error)
}

// Identity resolves the account the caller runs as.
type Identity interface {
	CallerAccountID(ctx context.Context) (string, error)
}

// Facts is the discovery output consumed downstream as an opaque key-value
// map. Key names are part of the hand-off contract.
type Facts struct {
	OrgExists         bool   `json:"guardduty_org_exists"`
	DelegatedAdmin    string `json:"guardduty_delegated_admin"`
	AutoEnable        bool   `json:"guardduty_auto_enable"`
	S3Protection      bool   `json:"guardduty_s3_protection"`
	EKSProtection     bool   `json:"guardduty_eks_protection"`
	MalwareProtection bool   `json:"guardduty_malware_protection"`
}

// Variables is the generated variables file feeding the declarative layer.
type Variables struct {
	PrimaryRegion       string `json:"primary_region"`
	ResourcePrefix      string `json:"resource_prefix"`
	AuditAccountID      string `json:"audit_account_id"`
	ManagementAccountID string `json:"management_account_id"`
	OrgExists           bool   `json:"guardduty_org_exists"`
	DelegatedAdmin      string `json:"guardduty_delegated_admin"`
}

// Result bundles one discovery pass.
type Result struct {
	Timestamp time.Time `json:"timestamp"`
	Facts     Facts     `json:"facts"`
	Variables Variables `json:"variables"`
}

// Discoverer probes the current org-level GuardDuty footprint and writes
// the hand-off files later phases read.
type Discoverer struct {
	prober   Prober
	identity Identity
	logger   *telemetry.Logger
	cfg      config.Effective
}

func New(prober Prober, identity Identity, cfg config.Effective) *Discoverer {
	return &Discoverer{
		prober:   prober,
		identity: identity,
		logger:   telemetry.NewLogger("discovery"),
		cfg:      cfg,
	}
}

// Run discovers the org-level configuration. Probe failures degrade to
// empty facts with a warning: discovery against a not-yet-configured org
// is the normal first-run case, not an error.
func (d *Discoverer) Run(ctx context.Context) (*Result, error) {
	managementAccount, err := d.identity.CallerAccountID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller identity: %w", err)
	}

	result := &Result{Timestamp: time.Now()}
	if d.cfg.AuditAccountID == "" {
		d.logger.WithContext(ctx).Warn().
			Msg("audit_account_id not configured, skipping org discovery")
	} else {
		result.Facts = d.discoverFacts(ctx)
	}

	result.Variables = Variables{
		PrimaryRegion:       d.cfg.PrimaryRegion,
		ResourcePrefix:      d.cfg.ResourcePrefix,
		AuditAccountID:      d.cfg.AuditAccountID,
		ManagementAccountID: managementAccount,
		OrgExists:           result.Facts.OrgExists,
		DelegatedAdmin:      result.Facts.DelegatedAdmin,
	}

	return result, nil
}

func (d *Discoverer) discoverFacts(ctx context.Context) Facts {
	var facts Facts

	admin, err := d.prober.DelegatedAdministrator(ctx, d.cfg.PrimaryRegion)
	if err != nil {
		d.logger.WithContext(ctx).Warn().Err(err).
			Msg("could not list delegated administrators")
		return facts
	}
	if !admin.Found {
		d.logger.WithContext(ctx).Info().Msg("no delegated admin registered")
		return facts
	}

	facts.OrgExists = true
	facts.DelegatedAdmin = admin.AdminAccountID

	// Org configuration is only visible from the delegated admin, so a
	// foreign admin account ends discovery here.
	if admin.AdminAccountID != d.cfg.AuditAccountID {
		d.logger.WithContext(ctx).Warn().
			Str("delegated_admin", admin.AdminAccountID).
			Str("audit_account", d.cfg.AuditAccountID).
			Msg("delegated admin is not the audit account")
		return facts
	}

	org, err := d.prober.OrgConfiguration(ctx, d.cfg.PrimaryRegion)
	if err != nil {
		d.logger.WithContext(ctx).Warn().Err(err).
			Msg("could not check org config from audit account")
		return facts
	}
	if !org.Found {
		return facts
	}

	facts.AutoEnable = org.AutoEnableMembers == types.AutoEnableAll
	facts.S3Protection = org.S3AutoEnable
	facts.EKSProtection = org.EKSAutoEnable
	facts.MalwareProtection = org.MalwareAutoEnable
	return facts
}

// Write persists both hand-off files into dir.
func (d *Discoverer) Write(result *Result, dir string) error {
	if err := writeJSON(filepath.Join(dir, FactsFile), result.Facts); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, VariablesFile), result.Variables)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadVariables loads a previously written variables file, used by the
// verification phase to learn account IDs.
func ReadVariables(dir string) (*Variables, error) {
	data, err := os.ReadFile(filepath.Join(dir, VariablesFile)) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read variables file: %w", err)
	}
	var vars Variables
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("failed to parse variables file: %w", err)
	}
	return &vars, nil
}

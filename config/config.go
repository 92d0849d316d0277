package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPrimaryRegion is used when neither the shared store nor the
// operator config names a primary region.
const DefaultPrimaryRegion = "us-east-1"

// Config is the operator-supplied configuration file.
type Config struct {
	PrimaryRegion  string            `yaml:"primary_region"`
	ResourcePrefix string            `yaml:"resource_prefix"`
	AuditAccountID string            `yaml:"audit_account_id"`
	Tags           map[string]string `yaml:"tags,omitempty"`
}

// SharedConfig is the organization-wide configuration published to the
// shared parameter store by the landing-zone deployment. Fields here win
// over operator config; log_archive_account_id and organization_id exist
// only here.
type SharedConfig struct {
	PrimaryRegion       string            `json:"primary_region,omitempty"`
	AuditAccountID      string            `json:"audit_account_id,omitempty"`
	LogArchiveAccountID string            `json:"log_archive_account_id,omitempty"`
	OrganizationID      string            `json:"organization_id,omitempty"`
	Tags                map[string]string `json:"tags,omitempty"`
}

// Effective is the merged configuration the rest of the system runs on.
type Effective struct {
	PrimaryRegion       string
	ResourcePrefix      string
	AuditAccountID      string
	LogArchiveAccountID string
	OrganizationID      string
	Tags                map[string]string
}

// Load reads the operator configuration from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Merge combines operator config with shared-store config. Shared-store
// values win for every field the store defines; operator values are the
// fallback, then documented defaults. A nil shared config means the store
// was unreachable or the key absent, and operator values are used as-is.
func Merge(operator *Config, shared *SharedConfig) Effective {
	eff := Effective{
		PrimaryRegion:  operator.PrimaryRegion,
		ResourcePrefix: operator.ResourcePrefix,
		AuditAccountID: operator.AuditAccountID,
		Tags:           operator.Tags,
	}

	if shared != nil {
		if shared.PrimaryRegion != "" {
			eff.PrimaryRegion = shared.PrimaryRegion
		}
		if shared.AuditAccountID != "" {
			eff.AuditAccountID = shared.AuditAccountID
		}
		if len(shared.Tags) > 0 {
			eff.Tags = shared.Tags
		}
		// Not operator-overridable: shared store is the only source.
		eff.LogArchiveAccountID = shared.LogArchiveAccountID
		eff.OrganizationID = shared.OrganizationID
	}

	if eff.PrimaryRegion == "" {
		eff.PrimaryRegion = DefaultPrimaryRegion
	}
	if eff.Tags == nil {
		eff.Tags = map[string]string{}
	}

	return eff
}

// Validate checks the merged configuration for fields without which no
// sweep target can be constructed. Failures here are fatal to the run.
func (e *Effective) Validate() error {
	if e.ResourcePrefix == "" {
		return fmt.Errorf("resource_prefix is required: set it in the operator config file")
	}
	if e.AuditAccountID == "" {
		return fmt.Errorf("audit_account_id is required: set it in the operator config file or publish it to the shared parameter store")
	}
	return nil
}

package reconciler

import (
	"fmt"

	"github.com/yairfalse/guardsync/types"
)

// Category is one resource kind the sweep reconciles. The order of
// CategoryOrder is a correctness constraint: publishing destinations need
// detectors to exist, so categories run as sequential barriers.
type Category string

const (
	CategoryOrgAdmin   Category = "org-admin"
	CategoryOrgConfig  Category = "org-config"
	CategoryDetector   Category = "detector"
	CategoryPublishing Category = "publishing"
)

// CategoryOrder fixes the sweep sequence across categories.
var CategoryOrder = []Category{
	CategoryOrgAdmin,
	CategoryOrgConfig,
	CategoryDetector,
	CategoryPublishing,
}

// Role returns the account identity a category's probes operate as.
// Only the delegated-admin registration is visible from the management
// account; everything else lives in the audit account.
func (c Category) Role() types.AccountRole {
	if c == CategoryOrgAdmin {
		return types.RoleManagement
	}
	return types.RoleAudit
}

// Address builds the canonical state address for one (category, region)
// target. Address construction is pure so it can be tested without any
// network call; equality is exact string match.
func Address(c Category, region string) string {
	suffix := types.RegionSuffix(region)
	switch c {
	case CategoryOrgAdmin:
		return fmt.Sprintf("module.guardduty_org_%s[0].aws_guardduty_organization_admin_account.main", suffix)
	case CategoryOrgConfig:
		return fmt.Sprintf("module.guardduty_org_config_%s[0].aws_guardduty_organization_configuration.main", suffix)
	case CategoryDetector:
		return fmt.Sprintf("module.guardduty_audit_%s[0].aws_guardduty_detector.main", suffix)
	case CategoryPublishing:
		return fmt.Sprintf("module.guardduty_publishing_%s[0].aws_guardduty_publishing_destination.main", suffix)
	}
	return ""
}

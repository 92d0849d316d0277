package types

// Auto-enable scopes reported by the security service for organization members.
const (
	AutoEnableAll  = "ALL"
	AutoEnableNew  = "NEW"
	AutoEnableNone = "NONE"
)

// PublishingHealthy is the destination status that counts as fully working.
const PublishingHealthy = "PUBLISHING"

// AdminFact is the probed state of the delegated-admin registration in one region.
type AdminFact struct {
	Found          bool   `json:"found"`
	AdminAccountID string `json:"admin_account_id,omitempty"`
}

// OrgConfigFact is the probed organization auto-enable configuration in one region.
// Nested data-source blocks absent from the API response default to false.
type OrgConfigFact struct {
	Found             bool   `json:"found"`
	DetectorID        string `json:"detector_id,omitempty"`
	AutoEnableMembers string `json:"auto_enable_members,omitempty"`
	S3AutoEnable      bool   `json:"s3_auto_enable"`
	EKSAutoEnable     bool   `json:"eks_auto_enable"`
	MalwareAutoEnable bool   `json:"malware_auto_enable"`
}

// DetectorFact is the probed state of one account's detector in one region.
type DetectorFact struct {
	Found          bool   `json:"found"`
	DetectorID     string `json:"detector_id,omitempty"`
	Enabled        bool   `json:"enabled"`
	S3Enabled      bool   `json:"s3_enabled"`
	EKSEnabled     bool   `json:"eks_enabled"`
	MalwareEnabled bool   `json:"malware_enabled"`
}

// PublishingFact is the probed state of the findings export destination in one region.
type PublishingFact struct {
	Found          bool   `json:"found"`
	DetectorID     string `json:"detector_id,omitempty"`
	DestinationID  string `json:"destination_id,omitempty"`
	Status         string `json:"status,omitempty"`
	DestinationArn string `json:"destination_arn,omitempty"`
}

// ServiceAccessFact is the probed org-wide service activation state.
type ServiceAccessFact struct {
	Enabled bool `json:"enabled"`
}

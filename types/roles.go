package types

// AccountRole tags which organizational account a resource belongs to.
type AccountRole string

const (
	RoleManagement AccountRole = "management"  // the caller's own account
	RoleAudit      AccountRole = "audit"       // delegated security administrator
	RoleLogArchive AccountRole = "log-archive" // centralized log sink
)

// AccountIDs maps each account role to its resolved account ID.
// Management is always set (caller identity); the others may be empty
// when discovery could not resolve them.
type AccountIDs struct {
	Management string `json:"management"`
	Audit      string `json:"audit"`
	LogArchive string `json:"log_archive"`
}

// ForRole returns the account ID for the given role, empty if unknown.
func (a AccountIDs) ForRole(role AccountRole) string {
	switch role {
	case RoleManagement:
		return a.Management
	case RoleAudit:
		return a.Audit
	case RoleLogArchive:
		return a.LogArchive
	}
	return ""
}

package verifier

import (
	"fmt"
	"io"
	"time"

	"github.com/yairfalse/guardsync/types"
)

// maxListed bounds how many issue and warning lines a rendered report shows.
const maxListed = 10

// Verdict is the overall outcome of a verification run.
type Verdict string

const (
	VerdictClean    Verdict = "clean"
	VerdictWarnings Verdict = "warnings"
	VerdictFail     Verdict = "fail"
)

// Tally counts one dimension's per-region results. Errors means the check
// could not determine the state, which is distinct from Missing.
type Tally struct {
	OK      int `json:"ok"`
	Partial int `json:"partial"`
	Missing int `json:"missing"`
	Errors  int `json:"errors"`
}

// Report is the outcome of one verification run.
type Report struct {
	Timestamp      time.Time                   `json:"timestamp"`
	Regions        int                         `json:"regions"`
	ServiceAccess  Tally                       `json:"service_access"`
	DelegatedAdmin Tally                       `json:"delegated_admin"`
	OrgConfig      Tally                       `json:"org_config"`
	Detectors      map[types.AccountRole]Tally `json:"detectors"`
	Publishing     Tally                       `json:"publishing"`
	DestinationArn string                      `json:"destination_arn,omitempty"`
	SinkReachable  *bool                       `json:"sink_reachable,omitempty"`
	Issues         []string                    `json:"issues,omitempty"`
	Warnings       []string                    `json:"warnings,omitempty"`
	Duration       time.Duration               `json:"duration"`
}

// Verdict classifies the run: any issue fails it, warnings alone pass
// with warnings, otherwise clean.
func (r *Report) Verdict() Verdict {
	switch {
	case len(r.Issues) > 0:
		return VerdictFail
	case len(r.Warnings) > 0:
		return VerdictWarnings
	default:
		return VerdictClean
	}
}

// ExitCode maps the verdict to a process exit status.
func (r *Report) ExitCode() int {
	if r.Verdict() == VerdictFail {
		return 1
	}
	return 0
}

// Render writes a human-readable summary with bounded issue and warning
// lists.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Verification summary (%d regions)\n\n", r.Regions)

	renderTally(w, "Service access", r.ServiceAccess)
	renderTally(w, "Delegated admin", r.DelegatedAdmin)
	renderTally(w, "Org config", r.OrgConfig)
	for _, role := range []types.AccountRole{types.RoleManagement, types.RoleLogArchive, types.RoleAudit} {
		if tally, ok := r.Detectors[role]; ok {
			renderTally(w, fmt.Sprintf("Detectors (%s)", role), tally)
		}
	}
	renderTally(w, "Publishing", r.Publishing)
	if r.DestinationArn != "" {
		fmt.Fprintf(w, "  Findings destination: %s\n", r.DestinationArn)
	}
	fmt.Fprintln(w)

	renderList(w, "Issues", r.Issues)
	renderList(w, "Warnings", r.Warnings)

	switch r.Verdict() {
	case VerdictClean:
		fmt.Fprintln(w, "All checks passed.")
	case VerdictWarnings:
		fmt.Fprintln(w, "Verification complete with warnings.")
	case VerdictFail:
		fmt.Fprintln(w, "Verification complete with issues that need attention.")
	}
}

func renderTally(w io.Writer, name string, t Tally) {
	fmt.Fprintf(w, "  %-26s ok=%d", name, t.OK)
	if t.Partial > 0 {
		fmt.Fprintf(w, " partial=%d", t.Partial)
	}
	if t.Missing > 0 {
		fmt.Fprintf(w, " missing=%d", t.Missing)
	}
	if t.Errors > 0 {
		fmt.Fprintf(w, " errors=%d", t.Errors)
	}
	fmt.Fprintln(w)
}

func renderList(w io.Writer, name string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", name, len(items))
	shown := items
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, item := range shown {
		fmt.Fprintf(w, "  - %s\n", item)
	}
	if rest := len(items) - maxListed; rest > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", rest)
	}
	fmt.Fprintln(w)
}

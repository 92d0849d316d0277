package reconciler

import (
	"context"
	"time"

	"github.com/yairfalse/guardsync/types"
)

// Prober discovers the live state of one resource kind in one target.
// Errors are transport or API failures; a resource that simply does not
// exist yet comes back as a fact with Found=false.
type Prober interface {
	AdminAccount(ctx context.Context, region string) (types.AdminFact, error)
	OrgConfiguration(ctx context.Context, region string) (types.OrgConfigFact, error)
	Detector(ctx context.Context, role types.AccountRole, region string) (types.DetectorFact, error)
	PublishingDestination(ctx context.Context, region string) (types.PublishingFact, error)
}

// OutcomeKind classifies what happened to one sweep target.
type OutcomeKind string

const (
	OutcomeAlreadyTracked OutcomeKind = "already_tracked"
	OutcomeImported       OutcomeKind = "imported"
	OutcomeImportFailed   OutcomeKind = "import_failed"
	OutcomeNotApplicable  OutcomeKind = "not_applicable"
)

// Outcome is the result for one (category, region) target.
type Outcome struct {
	Category Category          `json:"category"`
	Role     types.AccountRole `json:"role"`
	Region   string            `json:"region"`
	Address  string            `json:"address"`
	Kind     OutcomeKind       `json:"kind"`
	Reason   string            `json:"reason,omitempty"`
}

// CategorySummary holds the per-category counters that form the sweep's
// externally observable contract.
type CategorySummary struct {
	Imported       int `json:"imported"`
	AlreadyTracked int `json:"already_tracked"`
	Failed         int `json:"failed"`
	NotApplicable  int `json:"not_applicable"`
}

// Result is the outcome of one full reconciliation sweep.
type Result struct {
	Timestamp time.Time                    `json:"timestamp"`
	Outcomes  []Outcome                    `json:"outcomes"`
	Summaries map[Category]CategorySummary `json:"summaries"`
	Duration  time.Duration                `json:"duration"`
}

// Failed reports whether any target recorded an import failure.
func (r *Result) Failed() bool {
	for _, s := range r.Summaries {
		if s.Failed > 0 {
			return true
		}
	}
	return false
}

// TotalImported sums imports across categories.
func (r *Result) TotalImported() int {
	total := 0
	for _, s := range r.Summaries {
		total += s.Imported
	}
	return total
}

// Options configure a sweep. Everything that was ambient in earlier
// revisions (region list, retry policy) is injected here so tests can
// shrink the matrix and speed up retries.
type Options struct {
	Regions           []string
	Accounts          types.AccountIDs
	RetryAttempts     int           // total import attempts per target
	RetryDelay        time.Duration // fixed delay between attempts
	Concurrency       int           // workers per category pool
	DesiredAutoEnable string        // declared org auto-enable scope
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if len(o.Regions) == 0 {
		o.Regions = types.DefaultRegions
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.DesiredAutoEnable == "" {
		o.DesiredAutoEnable = types.AutoEnableAll
	}
	return o
}

package verifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/types"
)

// Prober is the read-only discovery surface the verifier checks against.
// It is the reconciler's probe set plus the org-level service access check.
type Prober interface {
	ServiceAccess(ctx context.Context, region string) (types.ServiceAccessFact, error)
	AdminAccount(ctx context.Context, region string) (types.AdminFact, error)
	OrgConfiguration(ctx context.Context, region string) (types.OrgConfigFact, error)
	Detector(ctx context.Context, role types.AccountRole, region string) (types.DetectorFact, error)
	PublishingDestination(ctx context.Context, region string) (types.PublishingFact, error)
}

// BucketChecker probes whether the findings sink bucket answers. Optional.
type BucketChecker interface {
	SinkBucketReachable(ctx context.Context, region, destinationArn string) (bool, error)
}

// Options configure a verification run.
type Options struct {
	Regions       []string
	Accounts      types.AccountIDs
	PrimaryRegion string
	Concurrency   int
}

func (o Options) withDefaults() Options {
	if len(o.Regions) == 0 {
		o.Regions = types.DefaultRegions
	}
	if o.PrimaryRegion == "" {
		o.PrimaryRegion = "us-east-1"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}

// Verifier checks the live configuration across five dimensions without
// mutating anything. It runs after the declarative apply, with the same
// probes the reconciler uses.
type Verifier struct {
	prober  Prober
	buckets BucketChecker
	logger  *telemetry.Logger
	opts    Options
}

// New creates a verifier. buckets may be nil to skip sink reachability.
func New(prober Prober, buckets BucketChecker, opts Options) *Verifier {
	return &Verifier{
		prober:  prober,
		buckets: buckets,
		logger:  telemetry.NewLogger("verifier"),
		opts:    opts.withDefaults(),
	}
}

// finding classifies one region's check. An error means "could not
// determine" and is tallied apart from a confirmed-missing resource.
type finding struct {
	class   findingClass
	issue   string
	warning string
	detail  string
}

type findingClass int

const (
	classOK findingClass = iota
	classPartial
	classMissing
	classError
)

// Run executes all five check dimensions and assembles the report.
// Per-region check errors accumulate into tallies; the returned error
// covers only run-level problems.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		Timestamp: start,
		Regions:   len(v.opts.Regions),
		Detectors: make(map[types.AccountRole]Tally),
	}

	v.checkServiceAccess(ctx, report)
	v.collect(&report.DelegatedAdmin, report, v.sweepRegions(ctx, v.checkAdmin))
	v.collect(&report.OrgConfig, report, v.sweepRegions(ctx, v.checkOrgConfig))

	for _, role := range []types.AccountRole{types.RoleManagement, types.RoleLogArchive, types.RoleAudit} {
		if v.opts.Accounts.ForRole(role) == "" {
			v.logger.WithContext(ctx).Warn().
				Str("role", string(role)).
				Msg("skipping detector checks, no account ID configured")
			continue
		}
		r := role
		var tally Tally
		v.collect(&tally, report, v.sweepRegions(ctx, func(ctx context.Context, region string) finding {
			return v.checkDetector(ctx, r, region)
		}))
		report.Detectors[role] = tally
	}

	findings := v.sweepRegions(ctx, v.checkPublishing)
	v.collect(&report.Publishing, report, findings)
	for _, f := range findings {
		if f.detail != "" {
			report.DestinationArn = f.detail
			break
		}
	}

	v.checkSinkBucket(ctx, report)

	report.Duration = time.Since(start)
	return report, nil
}

// sweepRegions fans one check out over the region list with a bounded
// worker pool, keeping findings in region order.
func (v *Verifier) sweepRegions(ctx context.Context, check func(ctx context.Context, region string) finding) []finding {
	findings := make([]finding, len(v.opts.Regions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < v.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				findings[i] = check(ctx, v.opts.Regions[i])
			}
		}()
	}
	for i := range v.opts.Regions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return findings
}

func (v *Verifier) collect(tally *Tally, report *Report, findings []finding) {
	for _, f := range findings {
		switch f.class {
		case classOK:
			tally.OK++
		case classPartial:
			tally.Partial++
		case classMissing:
			tally.Missing++
		case classError:
			tally.Errors++
		}
		if f.issue != "" {
			report.Issues = append(report.Issues, f.issue)
		}
		if f.warning != "" {
			report.Warnings = append(report.Warnings, f.warning)
		}
	}
}

func (v *Verifier) checkServiceAccess(ctx context.Context, report *Report) {
	fact, err := v.prober.ServiceAccess(ctx, v.opts.PrimaryRegion)
	switch {
	case err != nil:
		v.logger.WithContext(ctx).Warn().Err(err).Msg("service access check failed")
		report.ServiceAccess.Errors++
	case fact.Enabled:
		report.ServiceAccess.OK++
	default:
		report.ServiceAccess.Missing++
		report.Issues = append(report.Issues, "GuardDuty service access not enabled in Organizations")
	}
}

func (v *Verifier) checkAdmin(ctx context.Context, region string) finding {
	fact, err := v.prober.AdminAccount(ctx, region)
	switch {
	case err != nil:
		return finding{class: classError}
	case !fact.Found:
		return finding{class: classMissing, issue: region + ": no delegated admin registered"}
	case fact.AdminAccountID != v.opts.Accounts.Audit:
		return finding{
			class: classMissing,
			issue: fmt.Sprintf("%s: wrong delegated admin (%s)", region, fact.AdminAccountID),
		}
	}
	return finding{class: classOK}
}

func (v *Verifier) checkOrgConfig(ctx context.Context, region string) finding {
	fact, err := v.prober.OrgConfiguration(ctx, region)
	switch {
	case err != nil:
		return finding{class: classError}
	case !fact.Found:
		return finding{class: classMissing, issue: region + ": organization configuration not found"}
	}

	var gaps []string
	if fact.AutoEnableMembers != types.AutoEnableAll {
		gaps = append(gaps, "auto_enable="+fact.AutoEnableMembers)
	}
	if !fact.S3AutoEnable {
		gaps = append(gaps, "S3")
	}
	if !fact.EKSAutoEnable {
		gaps = append(gaps, "EKS")
	}
	if !fact.MalwareAutoEnable {
		gaps = append(gaps, "Malware")
	}
	if len(gaps) > 0 {
		return finding{
			class:   classPartial,
			warning: fmt.Sprintf("%s: partial org config, missing: %s", region, strings.Join(gaps, ", ")),
		}
	}
	return finding{class: classOK}
}

func (v *Verifier) checkDetector(ctx context.Context, role types.AccountRole, region string) finding {
	fact, err := v.prober.Detector(ctx, role, region)
	switch {
	case err != nil:
		return finding{class: classError}
	case !fact.Found || !fact.Enabled:
		return finding{
			class: classMissing,
			issue: fmt.Sprintf("%s (%s): detector not enabled", role, region),
		}
	}
	return finding{class: classOK}
}

func (v *Verifier) checkPublishing(ctx context.Context, region string) finding {
	fact, err := v.prober.PublishingDestination(ctx, region)
	switch {
	case err != nil:
		return finding{class: classError}
	case !fact.Found:
		return finding{class: classMissing, issue: fmt.Sprintf("audit (%s): no S3 publishing destination", region)}
	case fact.Status != types.PublishingHealthy:
		return finding{
			class: classMissing,
			issue: fmt.Sprintf("audit (%s): publishing status is %s", region, fact.Status),
		}
	}
	return finding{class: classOK, detail: fact.DestinationArn}
}

// checkSinkBucket is a best-effort reachability probe of the bucket behind
// the publishing destinations. Unreachable is a warning, not an issue: the
// destination may still drain once bucket policy propagates.
func (v *Verifier) checkSinkBucket(ctx context.Context, report *Report) {
	if v.buckets == nil || report.DestinationArn == "" {
		return
	}
	reachable, err := v.buckets.SinkBucketReachable(ctx, v.opts.PrimaryRegion, report.DestinationArn)
	if err != nil {
		v.logger.WithContext(ctx).Warn().Err(err).Msg("sink bucket check failed")
		return
	}
	report.SinkReachable = &reachable
	if !reachable {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("findings sink bucket behind %s is not reachable", report.DestinationArn))
	}
}

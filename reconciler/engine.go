package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yairfalse/guardsync/telemetry"
	"github.com/yairfalse/guardsync/tfstate"
	"github.com/yairfalse/guardsync/types"
	"github.com/yairfalse/guardsync/wal"
)

// Engine sweeps the (category x region) matrix, compares discovered
// resources against the state index, and issues idempotent imports.
type Engine struct {
	prober  Prober
	store   tfstate.Store
	index   *tfstate.Index
	wal     *wal.WAL
	logger  *telemetry.Logger
	metrics *telemetry.SweepMetrics
	opts    Options
}

// NewEngine creates a reconciliation engine. metrics may be nil.
func NewEngine(prober Prober, store tfstate.Store, index *tfstate.Index, auditLog *wal.WAL, metrics *telemetry.SweepMetrics, opts Options) *Engine {
	return &Engine{
		prober:  prober,
		store:   store,
		index:   index,
		wal:     auditLog,
		logger:  telemetry.NewLogger("reconciler"),
		metrics: metrics,
		opts:    opts.withDefaults(),
	}
}

// Sweep runs one full reconciliation pass. Per-target failures accumulate
// into outcomes and never abort the matrix; the returned error covers only
// run-level problems.
func (e *Engine) Sweep(ctx context.Context) (*Result, error) {
	start := time.Now()

	// First run against an empty state trips a known class of provider
	// initialization failures on import. A read-only plan warms every
	// configured provider up front; its failure is advisory.
	if e.index.SnapshotLen() == 0 {
		if err := e.store.PlanRefreshOnly(ctx); err != nil {
			e.logger.WithContext(ctx).Warn().Err(err).Msg("state warm-up plan failed, continuing")
		}
	}

	result := &Result{
		Timestamp: start,
		Summaries: make(map[Category]CategorySummary),
	}

	for _, category := range CategoryOrder {
		outcomes := e.sweepCategory(ctx, category)
		result.Outcomes = append(result.Outcomes, outcomes...)

		summary := summarize(outcomes)
		result.Summaries[category] = summary
		e.logger.LogSweepSummary(ctx, string(category),
			summary.Imported, summary.AlreadyTracked, summary.Failed, summary.NotApplicable)
	}

	result.Duration = time.Since(start)
	if e.metrics != nil {
		status := "ok"
		if result.Failed() {
			status = "failed"
		}
		e.metrics.RecordSweepDuration(ctx, result.Duration.Seconds(), status)
	}

	return result, nil
}

// sweepCategory fans one category out over the region list with a bounded
// worker pool. Outcomes land positionally so reported order always follows
// the configured region order.
func (e *Engine) sweepCategory(ctx context.Context, category Category) []Outcome {
	outcomes := make([]Outcome, len(e.opts.Regions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.processTarget(ctx, category, e.opts.Regions[i])
			}
		}()
	}
	for i := range e.opts.Regions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, o := range outcomes {
		e.record(ctx, o)
	}
	return outcomes
}

// processTarget runs the per-target pipeline: state check, probe, decide,
// import. Each step short-circuits to a terminal outcome.
func (e *Engine) processTarget(ctx context.Context, category Category, region string) Outcome {
	outcome := Outcome{
		Category: category,
		Role:     category.Role(),
		Region:   region,
		Address:  Address(category, region),
	}

	if err := ctx.Err(); err != nil {
		outcome.Kind = OutcomeNotApplicable
		outcome.Reason = "run cancelled"
		return outcome
	}

	// A tracked resource is never re-probed or re-imported.
	if e.index.Contains(outcome.Address) {
		outcome.Kind = OutcomeAlreadyTracked
		return outcome
	}

	naturalKey, reason, err := e.probeTarget(ctx, category, region)
	if err == nil {
		e.logger.LogProbe(ctx, string(category), region, naturalKey != "")
		if e.wal != nil {
			_ = e.wal.Append(wal.EntryObserved, outcome.Address, observation{
				NaturalKey: naturalKey,
				Reason:     reason,
			})
		}
	}
	switch {
	case errors.Is(err, types.ErrSessionUnavailable):
		outcome.Kind = OutcomeNotApplicable
		outcome.Reason = "cross-account session unavailable"
		return outcome
	case err != nil:
		if e.metrics != nil {
			e.metrics.RecordProbeError(ctx, string(category), region)
		}
		outcome.Kind = OutcomeImportFailed
		outcome.Reason = fmt.Sprintf("probe failed: %v", err)
		return outcome
	case naturalKey == "":
		outcome.Kind = OutcomeNotApplicable
		outcome.Reason = reason
		return outcome
	}

	return e.importTarget(ctx, outcome, naturalKey)
}

// observation is the audit record of a completed probe.
type observation struct {
	NaturalKey string `json:"natural_key,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// probeTarget probes one target with bounded retry and derives the import
// identifier. An empty natural key with a reason means the target is not
// applicable.
func (e *Engine) probeTarget(ctx context.Context, category Category, region string) (naturalKey, reason string, err error) {
	err = e.withRetry(ctx, func() error {
		var probeErr error
		naturalKey, reason, probeErr = e.probeOnce(ctx, category, region)
		return probeErr
	})
	return naturalKey, reason, err
}

func (e *Engine) probeOnce(ctx context.Context, category Category, region string) (string, string, error) {
	switch category {
	case CategoryOrgAdmin:
		fact, err := e.prober.AdminAccount(ctx, region)
		if err != nil {
			return "", "", err
		}
		if !fact.Found {
			return "", "no delegated admin registered", nil
		}
		if fact.AdminAccountID != e.opts.Accounts.Audit {
			return "", fmt.Sprintf("delegated admin is %s, not the audit account", fact.AdminAccountID), nil
		}
		return fact.AdminAccountID, "", nil

	case CategoryOrgConfig:
		fact, err := e.prober.OrgConfiguration(ctx, region)
		if err != nil {
			return "", "", err
		}
		if !fact.Found {
			return "", "no detector exists yet", nil
		}
		if fact.AutoEnableMembers == types.AutoEnableNone && e.opts.DesiredAutoEnable == types.AutoEnableAll {
			// Importing here would pin the live NONE value and force a
			// destroy/recreate on apply. Leaving the resource out of state
			// lets the declarative layer create it fresh with ALL.
			return "", e.excludeByPolicy(ctx, Address(category, region), fact), nil
		}
		return fact.DetectorID, "", nil

	case CategoryDetector:
		fact, err := e.prober.Detector(ctx, types.RoleAudit, region)
		if err != nil {
			return "", "", err
		}
		if !fact.Found {
			return "", "no detector exists yet to import", nil
		}
		return fact.DetectorID, "", nil

	case CategoryPublishing:
		fact, err := e.prober.PublishingDestination(ctx, region)
		if err != nil {
			return "", "", err
		}
		if !fact.Found {
			return "", "no publishing destination configured", nil
		}
		return fact.DetectorID + ":" + fact.DestinationID, "", nil
	}

	return "", "", fmt.Errorf("unknown category %s", category)
}

func (e *Engine) excludeByPolicy(ctx context.Context, address string, fact types.OrgConfigFact) string {
	reason := fmt.Sprintf("auto-enable is %s but %s is desired: import would force a destructive replace",
		fact.AutoEnableMembers, e.opts.DesiredAutoEnable)
	e.logger.LogPolicyExclusion(ctx, address, reason)
	if e.wal != nil {
		_ = e.wal.Append(wal.EntryExcluded, address, fact)
	}
	return reason
}

// importTarget imports one discovered resource with bounded retry.
func (e *Engine) importTarget(ctx context.Context, outcome Outcome, naturalKey string) Outcome {
	err := e.withRetry(ctx, func() error {
		return e.store.Import(ctx, outcome.Address, naturalKey)
	})

	switch {
	case errors.Is(err, tfstate.ErrAlreadyManaged):
		// The store's own "already managed" response is a success signal.
		e.index.Add(outcome.Address)
		outcome.Kind = OutcomeAlreadyTracked
	case err != nil:
		e.logger.LogImportFailed(ctx, outcome.Address, err)
		outcome.Kind = OutcomeImportFailed
		outcome.Reason = err.Error()
	default:
		e.index.Add(outcome.Address)
		e.logger.LogImport(ctx, outcome.Address, naturalKey)
		outcome.Kind = OutcomeImported
	}
	return outcome
}

// withRetry runs fn up to RetryAttempts times with a fixed delay,
// stopping early on success or a non-retryable error.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.opts.RetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		if attempt < e.opts.RetryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.RetryDelay):
			}
		}
	}
	return err
}

func isRetryable(err error) bool {
	return !errors.Is(err, tfstate.ErrAlreadyManaged) &&
		!errors.Is(err, types.ErrSessionUnavailable)
}

// record writes one outcome to telemetry and the audit trail.
func (e *Engine) record(ctx context.Context, o Outcome) {
	if e.metrics != nil {
		e.metrics.RecordOutcome(ctx, string(o.Category), o.Region, string(o.Kind))
	}
	if e.wal == nil {
		return
	}
	switch o.Kind {
	case OutcomeImported:
		_ = e.wal.Append(wal.EntryImported, o.Address, o)
	case OutcomeImportFailed:
		_ = e.wal.AppendError(wal.EntryFailed, o.Address, o, errors.New(o.Reason))
	default:
		_ = e.wal.Append(wal.EntrySkipped, o.Address, o)
	}
}

func summarize(outcomes []Outcome) CategorySummary {
	var s CategorySummary
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeImported:
			s.Imported++
		case OutcomeAlreadyTracked:
			s.AlreadyTracked++
		case OutcomeImportFailed:
			s.Failed++
		case OutcomeNotApplicable:
			s.NotApplicable++
		}
	}
	return s
}

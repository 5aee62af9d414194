package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/alerts"
	"github.com/coverwatch/coverwatch/internal/compliance"
	"github.com/coverwatch/coverwatch/internal/models"
)

// ResultCache invalidates cached evaluation results after a vendor is
// re-evaluated. A nil cache disables invalidation.
type ResultCache interface {
	// Invalidate drops any cached evaluation result for the vendor.
	Invalidate(ctx context.Context, vendorID uint64) error
}

// VendorFailure records a vendor whose evaluation could not complete. The
// failure never aborts the run; the vendor's previous result is left intact.
type VendorFailure struct {
	VendorID uint64 `json:"vendor_id"`
	Reason   string `json:"reason"`
}

// RunReport summarizes a completed batch run for one organization.
type RunReport struct {
	RunID string `json:"run_id"` // Unique identifier for this run.
	OrgID uint64 `json:"org_id"` // Organization the run covered.

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	VendorsTotal     int             `json:"vendors_total"`     // Active vendors considered.
	VendorsEvaluated int             `json:"vendors_evaluated"` // Vendors with a fresh result.
	VendorsFailed    int             `json:"vendors_failed"`    // Vendors skipped for data problems.
	Failures         []VendorFailure `json:"failures,omitempty"`

	RulesSkipped     int `json:"rules_skipped"`     // Misconfigured rule evaluations across all vendors.
	TemplatesSkipped int `json:"templates_skipped"` // Unparsable alert templates across all vendors.

	AlertsCreated    int `json:"alerts_created"`
	AlertsSuppressed int `json:"alerts_suppressed"`
	AlertsResolved   int `json:"alerts_resolved"`

	// AverageScore aggregates the scores of successfully evaluated, scored
	// vendors only. Nil when no vendor produced a score.
	AverageScore *float64                `json:"average_score,omitempty"`
	TierCounts   map[models.RiskTier]int `json:"tier_counts"`

	Aging alerts.Aging `json:"aging"` // SLA aging computed after alert sync.
}

// Runner executes full evaluation passes over an organization's vendors:
// rule evaluation, alert template matching, alert sync, and SLA aging.
type Runner struct {
	db       *gorm.DB
	engine   *compliance.Engine
	alertMgr *alerts.Manager
	cache    ResultCache // Optional; nil disables invalidation.
}

// NewRunner constructs a batch runner over the given database handle.
func NewRunner(conn *gorm.DB, cache ResultCache) *Runner {
	return &Runner{
		db:       conn,
		engine:   compliance.NewEngine(conn),
		alertMgr: alerts.NewManager(conn),
		cache:    cache,
	}
}

// vendorOutcome carries one worker's result back to the aggregator.
type vendorOutcome struct {
	vendorID   uint64
	failure    *VendorFailure
	score      *int
	tier       models.RiskTier
	rulesSkip  int
	tplSkip    int
	syncResult alerts.SyncResult
}

// RunOrg evaluates every active vendor of the org with a bounded worker pool
// and returns the run report. Vendor failures are isolated: a vendor whose
// snapshot is missing or malformed is reported and skipped while the rest of
// the run proceeds.
func (r *Runner) RunOrg(ctx context.Context, orgID uint64, concurrency int) (*RunReport, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	report := &RunReport{
		RunID:      uuid.NewString(),
		OrgID:      orgID,
		StartedAt:  time.Now().UTC(),
		TierCounts: map[models.RiskTier]int{},
	}
	logger := log.WithFields(log.Fields{"run_id": report.RunID, "org_id": orgID})

	// Rules and templates are read-only during the run; load once and share.
	rules, errRules := r.engine.LoadActiveRules(ctx, orgID)
	if errRules != nil {
		return nil, errRules
	}
	templates, errTpl := r.loadTemplates(ctx, orgID)
	if errTpl != nil {
		return nil, errTpl
	}

	var vendors []models.Vendor
	errVendors := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&vendors).Error
	if errVendors != nil {
		return nil, errVendors
	}
	report.VendorsTotal = len(vendors)

	now := time.Now().UTC()
	outcomes := make([]vendorOutcome, len(vendors))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i := range vendors {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, vendor models.Vendor) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[idx] = r.evaluateVendor(ctx, orgID, vendor.ID, rules, templates, now)
		}(i, vendors[i])
	}
	wg.Wait()

	if errCtx := ctx.Err(); errCtx != nil {
		return nil, errCtx
	}

	scoreSum := 0
	scoreCount := 0
	for i := range outcomes {
		outcome := &outcomes[i]
		if outcome.failure != nil {
			report.VendorsFailed++
			report.Failures = append(report.Failures, *outcome.failure)
			continue
		}
		report.VendorsEvaluated++
		report.RulesSkipped += outcome.rulesSkip
		report.TemplatesSkipped += outcome.tplSkip
		report.AlertsCreated += outcome.syncResult.Created
		report.AlertsSuppressed += outcome.syncResult.Suppressed
		report.AlertsResolved += outcome.syncResult.Resolved
		if outcome.score != nil {
			scoreSum += *outcome.score
			scoreCount++
			report.TierCounts[outcome.tier]++
		}
	}
	if scoreCount > 0 {
		avg := float64(scoreSum) / float64(scoreCount)
		report.AverageScore = &avg
	}

	aging, errAging := alerts.OrgAging(ctx, r.db, orgID, now)
	if errAging != nil {
		return nil, errAging
	}
	report.Aging = aging
	report.FinishedAt = time.Now().UTC()

	logger.WithFields(log.Fields{
		"vendors_evaluated": report.VendorsEvaluated,
		"vendors_failed":    report.VendorsFailed,
		"alerts_created":    report.AlertsCreated,
		"alerts_resolved":   report.AlertsResolved,
		"sla_health":        report.Aging.Health,
	}).Info("batch run finished")
	return report, nil
}

// evaluateVendor runs the full pipeline for one vendor. Errors are folded
// into the outcome so one vendor never aborts the batch.
func (r *Runner) evaluateVendor(ctx context.Context, orgID, vendorID uint64, rules []models.Rule, templates []models.AlertRuleTemplate, now time.Time) vendorOutcome {
	outcome := vendorOutcome{vendorID: vendorID}

	record, snap, errLoad := r.engine.LoadSnapshot(ctx, vendorID)
	if errLoad != nil {
		outcome.failure = classifyFailure(vendorID, errLoad)
		return outcome
	}

	result, eval, errEval := r.engine.EvaluateVendor(ctx, orgID, vendorID, rules, snap)
	if errEval != nil {
		outcome.failure = classifyFailure(vendorID, errEval)
		return outcome
	}
	outcome.score = result.GlobalScore
	outcome.tier = result.Tier
	outcome.rulesSkip = len(eval.Skipped)

	state := alerts.VendorState{
		VendorID:           vendorID,
		EarliestExpiration: record.EarliestExpiration,
		FailingRules:       len(eval.Failing),
	}
	candidates, skippedTpl := alerts.EvaluateTemplates(templates, state, now)
	outcome.tplSkip = len(skippedTpl)
	for _, tpl := range skippedTpl {
		log.WithFields(log.Fields{"template_id": tpl.TemplateID, "reason": tpl.Reason}).
			Warn("skipping misconfigured alert template")
	}

	syncResult, errSync := r.alertMgr.Sync(ctx, orgID, vendorID, candidates)
	if errSync != nil {
		outcome.failure = classifyFailure(vendorID, errSync)
		return outcome
	}
	outcome.syncResult = syncResult

	if r.cache != nil {
		if errInvalidate := r.cache.Invalidate(ctx, vendorID); errInvalidate != nil {
			log.WithError(errInvalidate).WithField("vendor_id", vendorID).
				Warn("failed to invalidate cached evaluation result")
		}
	}
	return outcome
}

// loadTemplates returns the org's alert templates, active and inactive;
// EvaluateTemplates filters inactive ones so the caller sees skip reporting.
func (r *Runner) loadTemplates(ctx context.Context, orgID uint64) ([]models.AlertRuleTemplate, error) {
	var templates []models.AlertRuleTemplate
	errFind := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("id ASC").
		Find(&templates).Error
	return templates, errFind
}

// classifyFailure maps per-vendor pipeline errors onto a report entry.
func classifyFailure(vendorID uint64, err error) *VendorFailure {
	reason := err.Error()
	var dataErr *compliance.DataError
	if errors.As(err, &dataErr) {
		reason = dataErr.Err.Error()
	} else if errors.Is(err, compliance.ErrSnapshotNotFound) {
		reason = compliance.ErrSnapshotNotFound.Error()
	}
	log.WithFields(log.Fields{"vendor_id": vendorID, "reason": reason}).
		Warn("vendor evaluation failed")
	return &VendorFailure{VendorID: vendorID, Reason: reason}
}

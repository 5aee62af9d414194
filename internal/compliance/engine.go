package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coverwatch/coverwatch/internal/models"
)

// ErrSnapshotNotFound is returned when a vendor has no coverage snapshot to
// evaluate against.
var ErrSnapshotNotFound = errors.New("compliance: coverage snapshot not found")

// DataError reports that a vendor's snapshot or rule set could not be loaded
// or parsed. It is recorded per vendor and never aborts a batch.
type DataError struct {
	VendorID uint64
	Err      error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	return fmt.Sprintf("compliance: vendor %d: %v", e.VendorID, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *DataError) Unwrap() error { return e.Err }

// RuleRef carries the display attributes of an evaluated rule into one of the
// partition sets.
type RuleRef struct {
	RuleID   uint64          `json:"rule_id"`
	Field    string          `json:"field"`
	Message  string          `json:"message"`
	Severity models.Severity `json:"severity"`
}

// SkippedRule records a rule excluded from the partition for a config problem.
type SkippedRule struct {
	RuleID uint64 `json:"rule_id"`
	Reason string `json:"reason"`
}

// Evaluation is the exhaustive, disjoint partition of a vendor's active rules.
// Every evaluable rule appears in exactly one of Passing, Failing, or Missing;
// misconfigured rules land in Skipped and are excluded from scoring.
type Evaluation struct {
	Passing []RuleRef
	Failing []RuleRef
	Missing []RuleRef
	Skipped []SkippedRule
}

// TotalRules returns the number of rules that entered the partition.
func (e *Evaluation) TotalRules() int {
	return len(e.Passing) + len(e.Failing) + len(e.Missing)
}

// Partition evaluates every rule against the snapshot and splits the set into
// passing, failing, and missing. No ordering is guaranteed within a set.
func Partition(rules []models.Rule, snap Snapshot) Evaluation {
	out := Evaluation{
		Passing: make([]RuleRef, 0, len(rules)),
		Failing: make([]RuleRef, 0),
		Missing: make([]RuleRef, 0),
	}
	for i := range rules {
		rule := &rules[i]
		outcome, errEval := EvaluateRule(rule, snap)
		if errEval != nil {
			var cfgErr *ConfigError
			reason := errEval.Error()
			if errors.As(errEval, &cfgErr) {
				reason = cfgErr.Reason
			}
			out.Skipped = append(out.Skipped, SkippedRule{RuleID: rule.ID, Reason: reason})
			continue
		}
		ref := RuleRef{RuleID: rule.ID, Field: rule.Field, Message: rule.Message, Severity: rule.Severity}
		switch outcome {
		case OutcomePass:
			out.Passing = append(out.Passing, ref)
		case OutcomeFail:
			out.Failing = append(out.Failing, ref)
		case OutcomeMissing:
			out.Missing = append(out.Missing, ref)
		}
	}
	return out
}

// Engine evaluates vendors' coverage snapshots against their org's rule set
// and persists evaluation results.
type Engine struct {
	db *gorm.DB // Database handle for rules, snapshots, and results.
}

// NewEngine constructs a rule evaluation engine.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// LoadActiveRules returns all active rules belonging to active rule groups in
// the org. Rule and group definitions are read-only during a batch run and may
// be loaded once and shared across workers.
func (e *Engine) LoadActiveRules(ctx context.Context, orgID uint64) ([]models.Rule, error) {
	var rules []models.Rule
	errFind := e.db.WithContext(ctx).
		Joins("JOIN rule_groups ON rule_groups.id = rules.group_id").
		Where("rule_groups.org_id = ?", orgID).
		Where("rule_groups.is_active = ?", true).
		Where("rules.is_active = ?", true).
		Find(&rules).Error
	if errFind != nil {
		return nil, fmt.Errorf("compliance: load rules: %w", errFind)
	}
	return rules, nil
}

// LoadSnapshot returns the vendor's coverage snapshot plus its decoded field
// map, or ErrSnapshotNotFound wrapped in a DataError.
func (e *Engine) LoadSnapshot(ctx context.Context, vendorID uint64) (*models.CoverageSnapshot, Snapshot, error) {
	var row models.CoverageSnapshot
	if errFind := e.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil, &DataError{VendorID: vendorID, Err: ErrSnapshotNotFound}
		}
		return nil, nil, &DataError{VendorID: vendorID, Err: errFind}
	}
	snap, errDecode := SnapshotFromJSON(row.Fields)
	if errDecode != nil {
		return nil, nil, &DataError{VendorID: vendorID, Err: fmt.Errorf("decode snapshot: %w", errDecode)}
	}
	return &row, snap, nil
}

// EvaluateVendor runs all active rules for one vendor using preloaded rules,
// persists the result, and returns it together with the partition.
// The caller distinguishes "evaluated: all rules missing" from a DataError.
func (e *Engine) EvaluateVendor(ctx context.Context, orgID, vendorID uint64, rules []models.Rule, snap Snapshot) (*models.EvaluationResult, *Evaluation, error) {
	evaluation := Partition(rules, snap)

	result := &models.EvaluationResult{
		VendorID:     vendorID,
		OrgID:        orgID,
		SkippedRules: len(evaluation.Skipped),
		TotalRules:   evaluation.TotalRules(),
		EvaluatedAt:  time.Now().UTC(),
	}
	if score, tier, ok := Score(len(evaluation.Passing), len(evaluation.Failing), len(evaluation.Missing)); ok {
		result.GlobalScore = &score
		result.Tier = tier
	}

	var errEncode error
	if result.Passing, errEncode = encodeRefs(evaluation.Passing); errEncode != nil {
		return nil, nil, errEncode
	}
	if result.Failing, errEncode = encodeRefs(evaluation.Failing); errEncode != nil {
		return nil, nil, errEncode
	}
	if result.Missing, errEncode = encodeRefs(evaluation.Missing); errEncode != nil {
		return nil, nil, errEncode
	}

	errSave := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"org_id", "passing", "failing", "missing", "skipped_rules",
			"total_rules", "global_score", "tier", "evaluated_at", "updated_at",
		}),
	}).Create(result).Error
	if errSave != nil {
		return nil, nil, fmt.Errorf("compliance: save result: %w", errSave)
	}
	return result, &evaluation, nil
}

// encodeRefs marshals a partition set for storage.
func encodeRefs(refs []RuleRef) (datatypes.JSON, error) {
	if refs == nil {
		refs = []RuleRef{}
	}
	raw, errMarshal := json.Marshal(refs)
	if errMarshal != nil {
		return nil, fmt.Errorf("compliance: encode rule refs: %w", errMarshal)
	}
	return datatypes.JSON(raw), nil
}

// DecodeRefs unmarshals a stored partition set.
func DecodeRefs(raw datatypes.JSON) ([]RuleRef, error) {
	if len(raw) == 0 {
		return []RuleRef{}, nil
	}
	var refs []RuleRef
	if errDecode := json.Unmarshal(raw, &refs); errDecode != nil {
		return nil, fmt.Errorf("compliance: decode rule refs: %w", errDecode)
	}
	return refs, nil
}

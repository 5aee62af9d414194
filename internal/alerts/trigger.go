// Package alerts implements the alert trigger evaluator, the open-alert
// deduplicator with lifecycle management, and SLA aging.
package alerts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/coverwatch/coverwatch/internal/models"
)

const (
	// conditionNonCompliant triggers when a vendor has at least one failing rule.
	conditionNonCompliant = "non_compliant"
	// conditionExpirationPrefix starts the expiration window grammar, e.g. expiration<=30.
	conditionExpirationPrefix = "expiration<="
)

// TriggerCondition is the parsed form of an AlertRuleTemplate condition string.
type TriggerCondition struct {
	Code       string // Alert code raised on match.
	WithinDays int    // Expiration window; meaningful only for expiration conditions.
}

// ParseCondition parses the template condition grammar. Supported forms:
//
//	non_compliant
//	expiration<=N   (N >= 0)
//
// Unknown grammar yields an error so misconfigured templates are rejected at
// ingestion and skipped at evaluation, never treated as matching.
func ParseCondition(raw string) (TriggerCondition, error) {
	trimmed := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	switch {
	case trimmed == conditionNonCompliant:
		return TriggerCondition{Code: models.AlertCodeNonCompliant}, nil
	case strings.HasPrefix(trimmed, conditionExpirationPrefix):
		daysRaw := strings.TrimPrefix(trimmed, conditionExpirationPrefix)
		days, errParse := strconv.Atoi(daysRaw)
		if errParse != nil || days < 0 {
			return TriggerCondition{}, fmt.Errorf("alerts: invalid expiration window %q", raw)
		}
		return TriggerCondition{Code: models.AlertCodeExpiration, WithinDays: days}, nil
	default:
		return TriggerCondition{}, fmt.Errorf("alerts: unknown trigger condition %q", raw)
	}
}

// VendorState carries the per-vendor facts trigger conditions read: the
// earliest known policy expiration and whether the latest evaluation has
// failing rules.
type VendorState struct {
	VendorID           uint64
	EarliestExpiration *time.Time
	FailingRules       int
}

// Candidate is an alert a matching template wants raised, before dedup.
type Candidate struct {
	VendorID    uint64
	Code        string
	Severity    models.Severity
	TemplateKey string
	Recipients  datatypes.JSON
}

// SkippedTemplate records a template excluded from evaluation for an
// unparsable condition.
type SkippedTemplate struct {
	TemplateID uint64
	Reason     string
}

// EvaluateTemplates runs every active template against one vendor's state and
// returns candidate alerts, one per matching template. Templates with
// unknown grammar are skipped and reported, mirroring how the rule engine
// treats misconfigured rules.
func EvaluateTemplates(templates []models.AlertRuleTemplate, vendor VendorState, now time.Time) ([]Candidate, []SkippedTemplate) {
	candidates := make([]Candidate, 0, len(templates))
	var skipped []SkippedTemplate

	for i := range templates {
		tpl := &templates[i]
		if !tpl.IsActive {
			continue
		}
		cond, errParse := ParseCondition(tpl.Condition)
		if errParse != nil {
			skipped = append(skipped, SkippedTemplate{TemplateID: tpl.ID, Reason: errParse.Error()})
			continue
		}
		if !conditionMatches(cond, vendor, now) {
			continue
		}
		candidates = append(candidates, Candidate{
			VendorID:    vendor.VendorID,
			Code:        cond.Code,
			Severity:    tpl.Severity,
			TemplateKey: tpl.TemplateKey,
			Recipients:  tpl.Recipients,
		})
	}
	return candidates, skipped
}

// conditionMatches evaluates one parsed condition against a vendor's state.
func conditionMatches(cond TriggerCondition, vendor VendorState, now time.Time) bool {
	switch cond.Code {
	case models.AlertCodeNonCompliant:
		return vendor.FailingRules > 0
	case models.AlertCodeExpiration:
		if vendor.EarliestExpiration == nil {
			return false
		}
		// Inclusive window: an expiration exactly N days out matches, and so
		// does one already in the past. Already-expired coverage satisfies
		// every window.
		deadline := now.AddDate(0, 0, cond.WithinDays)
		return !vendor.EarliestExpiration.After(deadline)
	default:
		return false
	}
}

// ExpirySeverity classifies a policy expiration for dashboard display using
// the canonical taxonomy: already expired is critical, within 30 days is
// high, within 60 days is medium, otherwise low.
func ExpirySeverity(expiration, now time.Time) models.Severity {
	days := int(expiration.Sub(now).Hours() / 24)
	switch {
	case expiration.Before(now):
		return models.SeverityCritical
	case days <= 30:
		return models.SeverityHigh
	case days <= 60:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

package models

import "time"

// Severity classifies how serious a rule failure or alert is.
type Severity string

// Severity levels form the canonical four-level taxonomy used across the system.
const (
	// SeverityLow marks informational requirements.
	SeverityLow Severity = "low"
	// SeverityMedium marks requirements whose failure needs follow-up.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks requirements whose failure blocks approval.
	SeverityHigh Severity = "high"
	// SeverityCritical marks requirements whose failure is an immediate risk.
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s is one of the canonical severity levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// RuleType identifies what kind of coverage fact a rule tests.
type RuleType string

// Rule types form a closed set validated at ingestion.
const (
	// RuleTypeCoverage tests presence of a coverage line.
	RuleTypeCoverage RuleType = "coverage"
	// RuleTypeLimit tests a numeric policy limit.
	RuleTypeLimit RuleType = "limit"
	// RuleTypeEndorsement tests membership in the endorsement list.
	RuleTypeEndorsement RuleType = "endorsement"
	// RuleTypeDate tests a policy date field.
	RuleTypeDate RuleType = "date"
)

// ValidRuleType reports whether t is a known rule type.
func ValidRuleType(t RuleType) bool {
	switch t {
	case RuleTypeCoverage, RuleTypeLimit, RuleTypeEndorsement, RuleTypeDate:
		return true
	default:
		return false
	}
}

// RuleCondition identifies the comparison a rule applies to its field.
type RuleCondition string

// Rule conditions form a closed set validated at ingestion.
const (
	// ConditionExists passes when the field has a non-empty value.
	ConditionExists RuleCondition = "exists"
	// ConditionMissing passes when the field is absent or empty.
	ConditionMissing RuleCondition = "missing"
	// ConditionGTE passes when the numeric field is >= the rule value.
	ConditionGTE RuleCondition = "gte"
	// ConditionLTE passes when the numeric field is <= the rule value.
	ConditionLTE RuleCondition = "lte"
	// ConditionRequires passes when the rule value is in the list field.
	ConditionRequires RuleCondition = "requires"
	// ConditionBefore passes when the date field is before the rule value.
	ConditionBefore RuleCondition = "before"
	// ConditionAfter passes when the date field is after the rule value.
	ConditionAfter RuleCondition = "after"
)

// ValidRuleCondition reports whether c is a known rule condition.
func ValidRuleCondition(c RuleCondition) bool {
	switch c {
	case ConditionExists, ConditionMissing, ConditionGTE, ConditionLTE,
		ConditionRequires, ConditionBefore, ConditionAfter:
		return true
	default:
		return false
	}
}

// RuleGroup bundles related compliance requirements, e.g. "General Liability".
type RuleGroup struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID uint64        `gorm:"not null;index"`   // Owning organization.
	Org   *Organization `gorm:"foreignKey:OrgID"` // Organization relation.

	Label    string   `gorm:"type:text;not null"`               // Group display label.
	Severity Severity `gorm:"type:varchar(16);not null"`        // Default severity for display.
	IsActive bool     `gorm:"not null;default:true"`            // Soft-disable flag; groups are never hard-deleted while rules reference them.

	Rules []Rule `gorm:"foreignKey:GroupID"` // Member rules.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Rule is one testable coverage requirement inside a rule group.
// Its identity is immutable once it has been evaluated against, for audit trail.
type Rule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GroupID uint64     `gorm:"not null;index"`     // Owning rule group; must belong to the same org.
	Group   *RuleGroup `gorm:"foreignKey:GroupID"` // Rule group relation.

	Type      RuleType      `gorm:"type:varchar(16);not null"`  // Kind of fact tested.
	Field     string        `gorm:"type:text;not null;index"`   // Logical field key, e.g. gl_limit.
	Condition RuleCondition `gorm:"type:varchar(16);not null"`  // Comparison applied.
	Value     *string       `gorm:"type:text"`                  // Comparison operand; nil for exists/missing.
	Severity  Severity      `gorm:"type:varchar(16);not null"`  // Failure severity.
	Message   string        `gorm:"type:text;not null"`         // Human-readable requirement message.

	IsActive bool `gorm:"not null;default:true"` // Whether the rule is evaluated.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

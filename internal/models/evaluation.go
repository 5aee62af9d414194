package models

import (
	"time"

	"gorm.io/datatypes"
)

// RiskTier is the discrete risk category derived from a global score.
type RiskTier string

// Risk tiers, from safest to riskiest. Boundary scores belong to the safer tier.
const (
	// TierEliteSafe covers scores >= 85.
	TierEliteSafe RiskTier = "Elite Safe"
	// TierPreferred covers scores >= 70.
	TierPreferred RiskTier = "Preferred"
	// TierWatch covers scores >= 55.
	TierWatch RiskTier = "Watch"
	// TierHighRisk covers scores >= 35.
	TierHighRisk RiskTier = "High Risk"
	// TierSevere covers scores < 35.
	TierSevere RiskTier = "Severe"
)

// EvaluationResult is the outcome of running all active rules for one vendor.
// A prior row is replaced on each run; consumers must treat it as stale once
// the snapshot or the rule set changes.
type EvaluationResult struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VendorID uint64  `gorm:"not null;uniqueIndex"` // Evaluated vendor.
	Vendor   *Vendor `gorm:"foreignKey:VendorID"`  // Vendor relation.
	OrgID    uint64  `gorm:"not null;index"`       // Owning organization.

	Passing datatypes.JSON `gorm:"not null;default:'[]'"` // Rule refs that passed.
	Failing datatypes.JSON `gorm:"not null;default:'[]'"` // Rule refs that failed.
	Missing datatypes.JSON `gorm:"not null;default:'[]'"` // Rule refs lacking data.

	SkippedRules int `gorm:"not null;default:0"` // Rules skipped for unknown type/condition.

	TotalRules  int       `gorm:"not null"`               // |passing| + |failing| + |missing|.
	GlobalScore *int      `gorm:""`                       // 0-100 score; nil when no rules are configured.
	Tier        RiskTier  `gorm:"type:varchar(16)"`       // Risk tier; empty when unscored.
	EvaluatedAt time.Time `gorm:"not null;index"`         // When the evaluation ran.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

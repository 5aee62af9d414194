package models

import "time"

// AlertStatus tracks an alert through its lifecycle.
type AlertStatus string

// Alert lifecycle states: open -> in_review -> resolved, or open -> resolved.
const (
	// AlertStatusOpen marks a raised, unhandled alert.
	AlertStatusOpen AlertStatus = "open"
	// AlertStatusInReview marks an alert with a remediation action in flight.
	AlertStatusInReview AlertStatus = "in_review"
	// AlertStatusResolved marks an alert whose triggering condition cleared.
	AlertStatusResolved AlertStatus = "resolved"
)

// Alert codes identify what condition raised an alert. At most one open alert
// per (vendor, code) may exist; see the partial unique index created in db.Migrate.
const (
	// AlertCodeExpiration is raised when coverage expires within the template window.
	AlertCodeExpiration = "expiration"
	// AlertCodeNonCompliant is raised when a vendor has at least one failing rule.
	AlertCodeNonCompliant = "non_compliant"
)

// Alert is a raised, trackable compliance event for one vendor.
type Alert struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID    uint64  `gorm:"not null;index"`                        // Owning organization.
	VendorID uint64  `gorm:"not null;index:idx_alerts_vendor_code"` // Affected vendor.
	Vendor   *Vendor `gorm:"foreignKey:VendorID"`                   // Vendor relation.

	Code        string      `gorm:"type:varchar(32);not null;index:idx_alerts_vendor_code"` // Trigger code, e.g. expiration.
	Severity    Severity    `gorm:"type:varchar(16);not null"`                              // Severity copied from the template.
	TemplateKey string      `gorm:"type:text;not null;default:''"`                          // Message template key for dispatch.
	Status      AlertStatus `gorm:"type:varchar(16);not null;index"`                        // Lifecycle state.

	ResolvedAt *time.Time // Set when the alert transitions to resolved.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Raise timestamp; SLA aging is derived from it.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}

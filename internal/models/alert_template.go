package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertRuleTemplate is an org-level trigger definition, distinct from a
// compliance Rule. Its condition string is parsed and validated at ingestion.
type AlertRuleTemplate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID uint64        `gorm:"not null;index"`   // Owning organization.
	Org   *Organization `gorm:"foreignKey:OrgID"` // Organization relation.

	Condition   string         `gorm:"type:text;not null"`        // Trigger grammar, e.g. expiration<=30 or non_compliant.
	Severity    Severity       `gorm:"type:varchar(16);not null"` // Severity copied onto raised alerts.
	Recipients  datatypes.JSON `gorm:"not null;default:'[]'"`     // Notification recipients, consumed downstream.
	TemplateKey string         `gorm:"type:text;not null"`        // Message template key for dispatch.

	IsActive bool `gorm:"not null;default:true"` // Whether trigger evaluation includes this template.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// CoverageSnapshot is the flattened view of a vendor's current policy facts.
// It is rebuilt whenever the vendor's policies or extracted document data
// change, and is read-only input to evaluation.
type CoverageSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VendorID uint64  `gorm:"not null;uniqueIndex"` // Vendor this snapshot describes.
	Vendor   *Vendor `gorm:"foreignKey:VendorID"`  // Vendor relation.
	OrgID    uint64  `gorm:"not null;index"`       // Owning organization.

	Fields datatypes.JSON `gorm:"not null;default:'{}'"` // Flattened field->value map.

	EarliestExpiration *time.Time `gorm:"index"` // Earliest policy expiration across the vendor's policies.

	RefreshedAt time.Time `gorm:"not null"`                // When the snapshot was last rebuilt.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package models

import "time"

// Vendor is a third party whose insurance coverage an organization tracks.
type Vendor struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OrgID uint64        `gorm:"not null;index"`        // Owning organization.
	Org   *Organization `gorm:"foreignKey:OrgID"`      // Organization relation.
	Name  string        `gorm:"type:text;not null"`    // Vendor display name.

	IsActive bool `gorm:"not null;default:true"` // Whether evaluation runs include this vendor.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

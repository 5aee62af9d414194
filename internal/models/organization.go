package models

import "time"

// Organization is a tenant whose vendors are tracked for coverage compliance.
type Organization struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`    // Display name.
	IsActive bool   `gorm:"not null;default:true"` // Whether batch runs include this org.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package db

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestMigrateCreatesCoreTables(t *testing.T) {
	conn := openTestDB(t)

	for _, table := range []string{
		"organizations", "vendors", "rule_groups", "rules",
		"coverage_snapshots", "evaluation_results", "alert_rule_templates",
		"alerts", "settings", "admins",
	} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestMigrateOpenAlertIndexBlocksDuplicates(t *testing.T) {
	conn := openTestDB(t)

	first := models.Alert{
		OrgID:    1,
		VendorID: 7,
		Code:     models.AlertCodeExpiration,
		Severity: models.SeverityHigh,
		Status:   models.AlertStatusOpen,
	}
	if errCreate := conn.Create(&first).Error; errCreate != nil {
		t.Fatalf("create first alert: %v", errCreate)
	}

	dup := models.Alert{
		OrgID:    1,
		VendorID: 7,
		Code:     models.AlertCodeExpiration,
		Severity: models.SeverityHigh,
		Status:   models.AlertStatusOpen,
	}
	errDup := conn.Create(&dup).Error
	if errDup == nil {
		t.Fatalf("expected unique violation for duplicate open alert")
	}
	if !IsUniqueViolation(errDup) {
		t.Fatalf("expected unique violation classification, got %v", errDup)
	}

	// Resolving the first alert frees the (vendor, code) slot.
	now := time.Now().UTC()
	if errUpdate := conn.Model(&models.Alert{}).Where("id = ?", first.ID).
		Updates(map[string]any{"status": models.AlertStatusResolved, "resolved_at": now}).Error; errUpdate != nil {
		t.Fatalf("resolve first alert: %v", errUpdate)
	}
	reopened := models.Alert{
		OrgID:    1,
		VendorID: 7,
		Code:     models.AlertCodeExpiration,
		Severity: models.SeverityHigh,
		Status:   models.AlertStatusOpen,
	}
	if errCreate := conn.Create(&reopened).Error; errCreate != nil {
		t.Fatalf("create alert after resolve: %v", errCreate)
	}
}

package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/db"
	"github.com/coverwatch/coverwatch/internal/models"
)

// Lifecycle errors surfaced to handlers.
var (
	// ErrAlertNotFound is returned for transitions on an unknown alert.
	ErrAlertNotFound = errors.New("alerts: alert not found")
	// ErrInvalidTransition is returned for transitions the lifecycle forbids.
	ErrInvalidTransition = errors.New("alerts: invalid status transition")
)

// Manager deduplicates candidate alerts against open records and drives the
// open -> in_review -> resolved lifecycle.
type Manager struct {
	db *gorm.DB // Database handle for alert records.
}

// NewManager constructs an alert lifecycle manager.
func NewManager(conn *gorm.DB) *Manager {
	return &Manager{db: conn}
}

// SyncResult summarizes one vendor's alert reconciliation.
type SyncResult struct {
	Created    int // New alerts raised.
	Suppressed int // Candidates with an equivalent unresolved alert.
	Resolved   int // Unresolved alerts whose condition cleared.
}

// Sync reconciles one vendor's candidate alerts with its unresolved records:
// candidates without an equivalent unresolved alert create a new open record;
// unresolved alerts whose code produced no candidate are resolved. Running
// Sync twice with no state change creates nothing the second time.
func (m *Manager) Sync(ctx context.Context, orgID, vendorID uint64, candidates []Candidate) (SyncResult, error) {
	var result SyncResult

	var unresolved []models.Alert
	errFind := m.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Where("status IN ?", []models.AlertStatus{models.AlertStatusOpen, models.AlertStatusInReview}).
		Find(&unresolved).Error
	if errFind != nil {
		return result, fmt.Errorf("alerts: load unresolved: %w", errFind)
	}

	openByCode := make(map[string]*models.Alert, len(unresolved))
	for i := range unresolved {
		openByCode[unresolved[i].Code] = &unresolved[i]
	}

	wanted := make(map[string]struct{}, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		wanted[candidate.Code] = struct{}{}
		if _, exists := openByCode[candidate.Code]; exists {
			result.Suppressed++
			continue
		}
		created, errCreate := m.create(ctx, orgID, candidate)
		if errCreate != nil {
			return result, errCreate
		}
		if created {
			result.Created++
		} else {
			result.Suppressed++
		}
	}

	// Auto-resolve: re-evaluation shows the triggering condition no longer holds.
	now := time.Now().UTC()
	for code, alert := range openByCode {
		if _, still := wanted[code]; still {
			continue
		}
		errResolve := m.db.WithContext(ctx).Model(&models.Alert{}).
			Where("id = ?", alert.ID).
			Where("status IN ?", []models.AlertStatus{models.AlertStatusOpen, models.AlertStatusInReview}).
			Updates(map[string]any{"status": models.AlertStatusResolved, "resolved_at": now}).Error
		if errResolve != nil {
			return result, fmt.Errorf("alerts: auto-resolve: %w", errResolve)
		}
		result.Resolved++
	}

	return result, nil
}

// create inserts a new open alert. A concurrent run that wins the race trips
// the partial unique index; that is reported as "already exists" (created
// false), not as a failure.
func (m *Manager) create(ctx context.Context, orgID uint64, candidate *Candidate) (bool, error) {
	alert := models.Alert{
		OrgID:       orgID,
		VendorID:    candidate.VendorID,
		Code:        candidate.Code,
		Severity:    candidate.Severity,
		TemplateKey: candidate.TemplateKey,
		Status:      models.AlertStatusOpen,
	}
	if errCreate := m.db.WithContext(ctx).Create(&alert).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return false, nil
		}
		return false, fmt.Errorf("alerts: create: %w", errCreate)
	}
	return true, nil
}

// MarkInReview transitions an open alert to in_review when a remediation
// action is initiated against it.
func (m *Manager) MarkInReview(ctx context.Context, alertID uint64) error {
	return m.transition(ctx, alertID,
		[]models.AlertStatus{models.AlertStatusOpen},
		map[string]any{"status": models.AlertStatusInReview})
}

// Resolve transitions an open or in_review alert to resolved.
func (m *Manager) Resolve(ctx context.Context, alertID uint64) error {
	return m.transition(ctx, alertID,
		[]models.AlertStatus{models.AlertStatusOpen, models.AlertStatusInReview},
		map[string]any{"status": models.AlertStatusResolved, "resolved_at": time.Now().UTC()})
}

// transition applies a guarded status update and maps the failure modes onto
// the lifecycle errors.
func (m *Manager) transition(ctx context.Context, alertID uint64, from []models.AlertStatus, updates map[string]any) error {
	result := m.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", alertID).
		Where("status IN ?", from).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("alerts: transition: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if errCount := m.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", alertID).Count(&count).Error; errCount != nil {
			return fmt.Errorf("alerts: transition lookup: %w", errCount)
		}
		if count == 0 {
			return ErrAlertNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

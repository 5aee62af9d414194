package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/alerts"
	"github.com/coverwatch/coverwatch/internal/models"
)

// AlertHandler manages alert listing and lifecycle transitions.
type AlertHandler struct {
	db      *gorm.DB        // Database handle for alerts.
	manager *alerts.Manager // Lifecycle transition logic.
}

// NewAlertHandler constructs an alert handler.
func NewAlertHandler(db *gorm.DB) *AlertHandler {
	return &AlertHandler{db: db, manager: alerts.NewManager(db)}
}

// List returns alerts filtered by query parameters.
func (h *AlertHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Alert{})
	if orgQ := strings.TrimSpace(c.Query("org_id")); orgQ != "" {
		if id, errParse := strconv.ParseUint(orgQ, 10, 64); errParse == nil {
			q = q.Where("org_id = ?", id)
		}
	}
	if vendorQ := strings.TrimSpace(c.Query("vendor_id")); vendorQ != "" {
		if id, errParse := strconv.ParseUint(vendorQ, 10, 64); errParse == nil {
			q = q.Where("vendor_id = ?", id)
		}
	}
	if statusQ := strings.TrimSpace(c.Query("status")); statusQ != "" {
		status := models.AlertStatus(statusQ)
		switch status {
		case models.AlertStatusOpen, models.AlertStatusInReview, models.AlertStatusResolved:
			q = q.Where("status = ?", status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of open, in_review, resolved"})
			return
		}
	}
	if codeQ := strings.TrimSpace(c.Query("code")); codeQ != "" {
		q = q.Where("code = ?", codeQ)
	}

	var rows []models.Alert
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list alerts failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAlert(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

// Review transitions an open alert to in_review.
func (h *AlertHandler) Review(c *gin.Context) {
	h.transition(c, h.manager.MarkInReview)
}

// Resolve transitions an open or in_review alert to resolved.
func (h *AlertHandler) Resolve(c *gin.Context) {
	h.transition(c, h.manager.Resolve)
}

func (h *AlertHandler) transition(c *gin.Context, apply func(ctx context.Context, alertID uint64) error) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	errApply := apply(c.Request.Context(), id)
	switch {
	case errApply == nil:
	case errors.Is(errApply, alerts.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case errors.Is(errApply, alerts.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "alert is not in a state that allows this transition"})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transition failed"})
		return
	}

	var alert models.Alert
	if errFind := h.db.WithContext(c.Request.Context()).First(&alert, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatAlert(&alert))
}

func formatAlert(alert *models.Alert) gin.H {
	return gin.H{
		"id":           alert.ID,
		"org_id":       alert.OrgID,
		"vendor_id":    alert.VendorID,
		"code":         alert.Code,
		"severity":     alert.Severity,
		"template_key": alert.TemplateKey,
		"status":       alert.Status,
		"resolved_at":  alert.ResolvedAt,
		"created_at":   alert.CreatedAt,
		"updated_at":   alert.UpdatedAt,
	}
}

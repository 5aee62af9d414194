package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/alerts"
	"github.com/coverwatch/coverwatch/internal/models"
)

// AlertTemplateHandler manages admin CRUD endpoints for alert rule templates.
type AlertTemplateHandler struct {
	db *gorm.DB // Database handle for alert templates.
}

// NewAlertTemplateHandler constructs an alert template handler.
func NewAlertTemplateHandler(db *gorm.DB) *AlertTemplateHandler {
	return &AlertTemplateHandler{db: db}
}

// createAlertTemplateRequest captures the payload for creating a template.
type createAlertTemplateRequest struct {
	OrgID       uint64   `json:"org_id"`       // Owning organization ID.
	Condition   string   `json:"condition"`    // Trigger grammar.
	Severity    string   `json:"severity"`     // Severity for raised alerts.
	Recipients  []string `json:"recipients"`   // Notification recipients.
	TemplateKey string   `json:"template_key"` // Message template key.
	IsActive    *bool    `json:"is_active"`    // Optional active flag; defaults true.
}

// Create validates the trigger grammar and inserts a template. Rejecting bad
// grammar here keeps unparsable templates out of evaluation.
func (h *AlertTemplateHandler) Create(c *gin.Context) {
	var body createAlertTemplateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if body.OrgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}
	condition := strings.TrimSpace(body.Condition)
	if _, errParse := alerts.ParseCondition(condition); errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errParse.Error()})
		return
	}
	severity := models.Severity(strings.TrimSpace(strings.ToLower(body.Severity)))
	if !models.ValidSeverity(severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of low, medium, high, critical"})
		return
	}
	templateKey := strings.TrimSpace(body.TemplateKey)
	if templateKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_key is required"})
		return
	}

	var orgCount int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Organization{}).
		Where("id = ?", body.OrgID).Count(&orgCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if orgCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id references an unknown organization"})
		return
	}

	recipients := body.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	rawRecipients, errEncode := json.Marshal(recipients)
	if errEncode != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipients must be a list of strings"})
		return
	}

	tpl := models.AlertRuleTemplate{
		OrgID:       body.OrgID,
		Condition:   condition,
		Severity:    severity,
		Recipients:  datatypes.JSON(rawRecipients),
		TemplateKey: templateKey,
		IsActive:    true,
	}
	if body.IsActive != nil {
		tpl.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&tpl).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create alert template failed"})
		return
	}
	c.JSON(http.StatusCreated, formatAlertTemplate(&tpl))
}

// List returns alert templates filtered by query parameters.
func (h *AlertTemplateHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.AlertRuleTemplate{})
	if orgQ := strings.TrimSpace(c.Query("org_id")); orgQ != "" {
		if id, errParse := strconv.ParseUint(orgQ, 10, 64); errParse == nil {
			q = q.Where("org_id = ?", id)
		}
	}
	if isActiveQ := strings.TrimSpace(c.Query("is_active")); isActiveQ != "" {
		if isActiveQ == "true" || isActiveQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if isActiveQ == "false" || isActiveQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}

	var rows []models.AlertRuleTemplate
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list alert templates failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatAlertTemplate(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"alert_templates": out})
}

// updateAlertTemplateRequest captures optional fields for template updates.
type updateAlertTemplateRequest struct {
	Condition   *string   `json:"condition"`    // Optional trigger grammar.
	Severity    *string   `json:"severity"`     // Optional severity.
	Recipients  *[]string `json:"recipients"`   // Optional recipient list.
	TemplateKey *string   `json:"template_key"` // Optional template key.
	IsActive    *bool     `json:"is_active"`    // Optional active flag.
}

// Update validates and applies alert template changes.
func (h *AlertTemplateHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateAlertTemplateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.AlertRuleTemplate
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{}
	if body.Condition != nil {
		condition := strings.TrimSpace(*body.Condition)
		if _, errCond := alerts.ParseCondition(condition); errCond != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errCond.Error()})
			return
		}
		updates["condition"] = condition
	}
	if body.Severity != nil {
		severity := models.Severity(strings.TrimSpace(strings.ToLower(*body.Severity)))
		if !models.ValidSeverity(severity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of low, medium, high, critical"})
			return
		}
		updates["severity"] = severity
	}
	if body.Recipients != nil {
		rawRecipients, errEncode := json.Marshal(*body.Recipients)
		if errEncode != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recipients must be a list of strings"})
			return
		}
		updates["recipients"] = datatypes.JSON(rawRecipients)
	}
	if body.TemplateKey != nil {
		templateKey := strings.TrimSpace(*body.TemplateKey)
		if templateKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "template_key cannot be empty"})
			return
		}
		updates["template_key"] = templateKey
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).Model(&existing).Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update alert template failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatAlertTemplate(&existing))
}

// Delete removes an alert template. Alerts it already raised keep their
// lifecycle; only future evaluation stops consulting it.
func (h *AlertTemplateHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.db.WithContext(c.Request.Context()).Delete(&models.AlertRuleTemplate{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete alert template failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func formatAlertTemplate(tpl *models.AlertRuleTemplate) gin.H {
	return gin.H{
		"id":           tpl.ID,
		"org_id":       tpl.OrgID,
		"condition":    tpl.Condition,
		"severity":     tpl.Severity,
		"recipients":   json.RawMessage(tpl.Recipients),
		"template_key": tpl.TemplateKey,
		"is_active":    tpl.IsActive,
		"created_at":   tpl.CreatedAt,
		"updated_at":   tpl.UpdatedAt,
	}
}

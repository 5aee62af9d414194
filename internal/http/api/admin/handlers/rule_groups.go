package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/models"
)

// RuleGroupHandler manages admin CRUD endpoints for rule groups.
type RuleGroupHandler struct {
	db *gorm.DB // Database handle for rule groups.
}

// NewRuleGroupHandler constructs a rule group handler.
func NewRuleGroupHandler(db *gorm.DB) *RuleGroupHandler {
	return &RuleGroupHandler{db: db}
}

// createRuleGroupRequest captures the payload for creating a rule group.
type createRuleGroupRequest struct {
	OrgID    uint64 `json:"org_id"`    // Owning organization ID.
	Label    string `json:"label"`     // Group display label.
	Severity string `json:"severity"`  // Default severity.
	IsActive *bool  `json:"is_active"` // Optional active flag; defaults true.
}

// Create validates input and inserts a rule group.
func (h *RuleGroupHandler) Create(c *gin.Context) {
	var body createRuleGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if body.OrgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}
	label := strings.TrimSpace(body.Label)
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}
	severity := models.Severity(strings.TrimSpace(strings.ToLower(body.Severity)))
	if !models.ValidSeverity(severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of low, medium, high, critical"})
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

	group := models.RuleGroup{OrgID: body.OrgID, Label: label, Severity: severity, IsActive: true}
	if body.IsActive != nil {
		group.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&group).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rule group failed"})
		return
	}
	c.JSON(http.StatusCreated, formatRuleGroup(&group))
}

// List returns rule groups filtered by query parameters.
func (h *RuleGroupHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.RuleGroup{})
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

	var rows []models.RuleGroup
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rule groups failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRuleGroup(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rule_groups": out})
}

// Get fetches a rule group by ID, including its rules.
func (h *RuleGroupHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var group models.RuleGroup
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Rules").First(&group, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := formatRuleGroup(&group)
	rules := make([]gin.H, 0, len(group.Rules))
	for i := range group.Rules {
		rules = append(rules, formatRule(&group.Rules[i]))
	}
	out["rules"] = rules
	c.JSON(http.StatusOK, out)
}

// updateRuleGroupRequest captures optional fields for rule group updates.
type updateRuleGroupRequest struct {
	Label    *string `json:"label"`     // Optional display label.
	Severity *string `json:"severity"`  // Optional default severity.
	IsActive *bool   `json:"is_active"` // Optional active flag.
}

// Update validates and applies rule group changes. Deactivating a group
// removes all of its rules from evaluation without deleting history.
func (h *RuleGroupHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateRuleGroupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.RuleGroup
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{}
	if body.Label != nil {
		label := strings.TrimSpace(*body.Label)
		if label == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label cannot be empty"})
			return
		}
		updates["label"] = label
	}
	if body.Severity != nil {
		severity := models.Severity(strings.TrimSpace(strings.ToLower(*body.Severity)))
		if !models.ValidSeverity(severity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of low, medium, high, critical"})
			return
		}
		updates["severity"] = severity
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).Model(&existing).Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update rule group failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatRuleGroup(&existing))
}

func formatRuleGroup(group *models.RuleGroup) gin.H {
	return gin.H{
		"id":         group.ID,
		"org_id":     group.OrgID,
		"label":      group.Label,
		"severity":   group.Severity,
		"is_active":  group.IsActive,
		"created_at": group.CreatedAt,
		"updated_at": group.UpdatedAt,
	}
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/compliance"
	"github.com/coverwatch/coverwatch/internal/models"
)

// RuleHandler manages admin CRUD endpoints for compliance rules.
type RuleHandler struct {
	db *gorm.DB // Database handle for rules.
}

// NewRuleHandler constructs a rule handler.
func NewRuleHandler(db *gorm.DB) *RuleHandler {
	return &RuleHandler{db: db}
}

// conditionsForType maps each rule type onto the conditions it supports.
var conditionsForType = map[models.RuleType][]models.RuleCondition{
	models.RuleTypeCoverage:    {models.ConditionExists, models.ConditionMissing},
	models.RuleTypeLimit:       {models.ConditionGTE, models.ConditionLTE},
	models.RuleTypeEndorsement: {models.ConditionRequires},
	models.RuleTypeDate:        {models.ConditionBefore, models.ConditionAfter},
}

// validateRuleSpec rejects rule definitions the evaluator would have to skip.
// Catching these at ingestion keeps misconfigured rules out of batches.
func validateRuleSpec(ruleType models.RuleType, condition models.RuleCondition, value *string) error {
	if !models.ValidRuleType(ruleType) {
		return fmt.Errorf("type must be one of coverage, limit, endorsement, date")
	}
	if !models.ValidRuleCondition(condition) {
		return fmt.Errorf("condition must be one of exists, missing, gte, lte, requires, before, after")
	}
	allowed := false
	for _, cond := range conditionsForType[ruleType] {
		if cond == condition {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("condition %s is not valid for type %s", condition, ruleType)
	}

	switch condition {
	case models.ConditionExists, models.ConditionMissing:
		if value != nil && strings.TrimSpace(*value) != "" {
			return fmt.Errorf("condition %s takes no value", condition)
		}
	case models.ConditionGTE, models.ConditionLTE:
		if value == nil || strings.TrimSpace(*value) == "" {
			return fmt.Errorf("condition %s requires a numeric value", condition)
		}
		parsed, errParse := strconv.ParseFloat(strings.TrimSpace(*value), 64)
		if errParse != nil || parsed < 0 {
			return fmt.Errorf("condition %s requires a non-negative numeric value", condition)
		}
	case models.ConditionRequires:
		if value == nil || strings.TrimSpace(*value) == "" {
			return fmt.Errorf("condition requires needs an endorsement value")
		}
	case models.ConditionBefore, models.ConditionAfter:
		if value == nil || strings.TrimSpace(*value) == "" {
			return fmt.Errorf("condition %s requires a date value", condition)
		}
		if _, ok := compliance.ParseDate(strings.TrimSpace(*value)); !ok {
			return fmt.Errorf("condition %s requires a parseable date, e.g. 2026-12-31", condition)
		}
	}
	return nil
}

// createRuleRequest captures the payload for creating a rule.
type createRuleRequest struct {
	GroupID   uint64  `json:"group_id"`  // Owning rule group ID.
	Type      string  `json:"type"`      // Rule type.
	Field     string  `json:"field"`     // Logical field key.
	Condition string  `json:"condition"` // Comparison applied.
	Value     *string `json:"value"`     // Comparison operand.
	Severity  string  `json:"severity"`  // Failure severity.
	Message   string  `json:"message"`   // Requirement message.
	IsActive  *bool   `json:"is_active"` // Optional active flag; defaults true.
}

// Create validates input and inserts a rule.
func (h *RuleHandler) Create(c *gin.Context) {
	var body createRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if body.GroupID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
		return
	}
	field := strings.TrimSpace(body.Field)
	if field == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "field is required"})
		return
	}
	message := strings.TrimSpace(body.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	severity := models.Severity(strings.TrimSpace(strings.ToLower(body.Severity)))
	if !models.ValidSeverity(severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of low, medium, high, critical"})
		return
	}
	ruleType := models.RuleType(strings.TrimSpace(strings.ToLower(body.Type)))
	condition := models.RuleCondition(strings.TrimSpace(strings.ToLower(body.Condition)))
	if errSpec := validateRuleSpec(ruleType, condition, body.Value); errSpec != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errSpec.Error()})
		return
	}

	var groupCount int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.RuleGroup{}).
		Where("id = ?", body.GroupID).Count(&groupCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if groupCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id references an unknown rule group"})
		return
	}

	var value *string
	if body.Value != nil {
		trimmed := strings.TrimSpace(*body.Value)
		if trimmed != "" {
			value = &trimmed
		}
	}

	rule := models.Rule{
		GroupID:   body.GroupID,
		Type:      ruleType,
		Field:     field,
		Condition: condition,
		Value:     value,
		Severity:  severity,
		Message:   message,
		IsActive:  true,
	}
	if body.IsActive != nil {
		rule.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&rule).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create rule failed"})
		return
	}
	c.JSON(http.StatusCreated, formatRule(&rule))
}

// List returns rules filtered by query parameters.
func (h *RuleHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Rule{})
	if groupQ := strings.TrimSpace(c.Query("group_id")); groupQ != "" {
		if id, errParse := strconv.ParseUint(groupQ, 10, 64); errParse == nil {
			q = q.Where("group_id = ?", id)
		}
	}
	if fieldQ := strings.TrimSpace(c.Query("field")); fieldQ != "" {
		q = q.Where("field = ?", fieldQ)
	}
	if isActiveQ := strings.TrimSpace(c.Query("is_active")); isActiveQ != "" {
		if isActiveQ == "true" || isActiveQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if isActiveQ == "false" || isActiveQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}

	var rows []models.Rule
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rules failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRule(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// updateRuleRequest captures mutable rule fields. Type, field, condition, and
// value are immutable once the rule exists so past evaluation results keep
// their meaning; replace the rule to change what it tests.
type updateRuleRequest struct {
	Severity *string `json:"severity"`  // Optional failure severity.
	Message  *string `json:"message"`   // Optional requirement message.
	IsActive *bool   `json:"is_active"` // Optional active flag.
}

// Update validates and applies rule changes.
func (h *RuleHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Rule
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{}
	if body.Severity != nil {
		severity := models.Severity(strings.TrimSpace(strings.ToLower(*body.Severity)))
		if !models.ValidSeverity(severity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of low, medium, high, critical"})
			return
		}
		updates["severity"] = severity
	}
	if body.Message != nil {
		message := strings.TrimSpace(*body.Message)
		if message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
			return
		}
		updates["message"] = message
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).Model(&existing).Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update rule failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatRule(&existing))
}

// Delete removes a rule from its group.
func (h *RuleHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	result := h.db.WithContext(c.Request.Context()).Delete(&models.Rule{}, id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete rule failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func formatRule(rule *models.Rule) gin.H {
	return gin.H{
		"id":         rule.ID,
		"group_id":   rule.GroupID,
		"type":       rule.Type,
		"field":      rule.Field,
		"condition":  rule.Condition,
		"value":      rule.Value,
		"severity":   rule.Severity,
		"message":    rule.Message,
		"is_active":  rule.IsActive,
		"created_at": rule.CreatedAt,
		"updated_at": rule.UpdatedAt,
	}
}

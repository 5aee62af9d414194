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

// OrganizationHandler manages admin CRUD endpoints for organizations.
type OrganizationHandler struct {
	db *gorm.DB // Database handle for organizations.
}

// NewOrganizationHandler constructs an organization handler.
func NewOrganizationHandler(db *gorm.DB) *OrganizationHandler {
	return &OrganizationHandler{db: db}
}

// createOrganizationRequest captures the payload for creating an organization.
type createOrganizationRequest struct {
	Name     string `json:"name"`      // Display name.
	IsActive *bool  `json:"is_active"` // Optional active flag; defaults true.
}

// Create validates input and inserts an organization.
func (h *OrganizationHandler) Create(c *gin.Context) {
	var body createOrganizationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	org := models.Organization{Name: name, IsActive: true}
	if body.IsActive != nil {
		org.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&org).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create organization failed"})
		return
	}
	c.JSON(http.StatusCreated, formatOrganization(&org))
}

// List returns organizations, optionally filtered by active flag.
func (h *OrganizationHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Organization{})
	if isActiveQ := strings.TrimSpace(c.Query("is_active")); isActiveQ != "" {
		if isActiveQ == "true" || isActiveQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if isActiveQ == "false" || isActiveQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}

	var rows []models.Organization
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list organizations failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatOrganization(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"organizations": out})
}

// Get fetches an organization by ID.
func (h *OrganizationHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var org models.Organization
	if errFind := h.db.WithContext(c.Request.Context()).First(&org, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatOrganization(&org))
}

// updateOrganizationRequest captures optional fields for organization updates.
type updateOrganizationRequest struct {
	Name     *string `json:"name"`      // Optional display name.
	IsActive *bool   `json:"is_active"` // Optional active flag.
}

// Update validates and applies organization changes.
func (h *OrganizationHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateOrganizationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Organization
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(c.Request.Context()).Model(&existing).Updates(updates).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update organization failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatOrganization(&existing))
}

func formatOrganization(org *models.Organization) gin.H {
	return gin.H{
		"id":         org.ID,
		"name":       org.Name,
		"is_active":  org.IsActive,
		"created_at": org.CreatedAt,
		"updated_at": org.UpdatedAt,
	}
}

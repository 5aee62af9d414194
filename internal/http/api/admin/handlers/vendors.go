package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coverwatch/coverwatch/internal/cache"
	"github.com/coverwatch/coverwatch/internal/compliance"
	"github.com/coverwatch/coverwatch/internal/models"
)

// VendorHandler manages admin CRUD endpoints for vendors and their coverage
// snapshots.
type VendorHandler struct {
	db          *gorm.DB           // Database handle for vendors and snapshots.
	resultCache *cache.ResultCache // Evaluation cache invalidated on snapshot change.
}

// NewVendorHandler constructs a vendor handler.
func NewVendorHandler(db *gorm.DB, resultCache *cache.ResultCache) *VendorHandler {
	return &VendorHandler{db: db, resultCache: resultCache}
}

// createVendorRequest captures the payload for creating a vendor.
type createVendorRequest struct {
	OrgID    uint64 `json:"org_id"`    // Owning organization ID.
	Name     string `json:"name"`      // Vendor display name.
	IsActive *bool  `json:"is_active"` // Optional active flag; defaults true.
}

// Create validates input and inserts a vendor.
func (h *VendorHandler) Create(c *gin.Context) {
	var body createVendorRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if body.OrgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
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

	vendor := models.Vendor{OrgID: body.OrgID, Name: name, IsActive: true}
	if body.IsActive != nil {
		vendor.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&vendor).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create vendor failed"})
		return
	}
	c.JSON(http.StatusCreated, formatVendor(&vendor))
}

// List returns vendors filtered by query parameters.
func (h *VendorHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Vendor{})
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

	var rows []models.Vendor
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list vendors failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatVendor(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"vendors": out})
}

// Get fetches a vendor by ID.
func (h *VendorHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var vendor models.Vendor
	if errFind := h.db.WithContext(c.Request.Context()).First(&vendor, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatVendor(&vendor))
}

// updateVendorRequest captures optional fields for vendor updates.
type updateVendorRequest struct {
	Name     *string `json:"name"`      // Optional display name.
	IsActive *bool   `json:"is_active"` // Optional active flag.
}

// Update validates and applies vendor changes.
func (h *VendorHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateVendorRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.Vendor
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
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update vendor failed"})
			return
		}
	}
	c.JSON(http.StatusOK, formatVendor(&existing))
}

// upsertSnapshotRequest captures the payload for replacing a vendor's
// coverage snapshot.
type upsertSnapshotRequest struct {
	Fields             map[string]any `json:"fields"`              // Flattened field->value map.
	EarliestExpiration *string        `json:"earliest_expiration"` // Optional earliest policy expiration date.
}

// UpsertSnapshot replaces the vendor's coverage snapshot and drops any cached
// evaluation result, which is now stale.
func (h *VendorHandler) UpsertSnapshot(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body upsertSnapshotRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Fields == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fields is required"})
		return
	}

	var earliest *time.Time
	if body.EarliestExpiration != nil && strings.TrimSpace(*body.EarliestExpiration) != "" {
		parsed, ok := compliance.ParseDate(strings.TrimSpace(*body.EarliestExpiration))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "earliest_expiration must be a parseable date, e.g. 2026-12-31"})
			return
		}
		earliest = &parsed
	}

	var vendor models.Vendor
	if errFind := h.db.WithContext(c.Request.Context()).First(&vendor, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	raw, errEncode := json.Marshal(body.Fields)
	if errEncode != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fields must be a JSON object"})
		return
	}

	now := time.Now().UTC()
	snap := models.CoverageSnapshot{
		VendorID:           vendor.ID,
		OrgID:              vendor.OrgID,
		Fields:             datatypes.JSON(raw),
		EarliestExpiration: earliest,
		RefreshedAt:        now,
	}
	errUpsert := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"org_id", "fields", "earliest_expiration", "refreshed_at", "updated_at",
		}),
	}).Create(&snap).Error
	if errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store snapshot failed"})
		return
	}

	if errInvalidate := h.resultCache.Invalidate(c.Request.Context(), vendor.ID); errInvalidate != nil {
		// The DB row is authoritative; a failed invalidation only delays reads.
		c.JSON(http.StatusOK, gin.H{"stored": true, "cache_invalidated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": true, "cache_invalidated": true})
}

// GetSnapshot fetches the vendor's current coverage snapshot.
func (h *VendorHandler) GetSnapshot(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var snap models.CoverageSnapshot
	if errFind := h.db.WithContext(c.Request.Context()).Where("vendor_id = ?", id).First(&snap).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vendor_id":           snap.VendorID,
		"org_id":              snap.OrgID,
		"fields":              json.RawMessage(snap.Fields),
		"earliest_expiration": snap.EarliestExpiration,
		"refreshed_at":        snap.RefreshedAt,
	})
}

func formatVendor(vendor *models.Vendor) gin.H {
	return gin.H{
		"id":         vendor.ID,
		"org_id":     vendor.OrgID,
		"name":       vendor.Name,
		"is_active":  vendor.IsActive,
		"created_at": vendor.CreatedAt,
		"updated_at": vendor.UpdatedAt,
	}
}

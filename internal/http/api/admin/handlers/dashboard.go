package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/alerts"
	"github.com/coverwatch/coverwatch/internal/models"
)

// DashboardHandler serves org-level compliance and SLA overviews.
type DashboardHandler struct {
	db *gorm.DB // Database handle for dashboard aggregates.
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

func orgIDQuery(c *gin.Context) (uint64, bool) {
	orgID, errParse := strconv.ParseUint(strings.TrimSpace(c.Query("org_id")), 10, 64)
	if errParse != nil || orgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return 0, false
	}
	return orgID, true
}

// SLA returns the org's alert aging buckets and SLA health score.
func (h *DashboardHandler) SLA(c *gin.Context) {
	orgID, ok := orgIDQuery(c)
	if !ok {
		return
	}
	aging, errAging := alerts.OrgAging(c.Request.Context(), h.db, orgID, time.Now().UTC())
	if errAging != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "compute sla failed"})
		return
	}
	c.JSON(http.StatusOK, aging)
}

// Compliance returns the org's score distribution and upcoming expirations.
func (h *DashboardHandler) Compliance(c *gin.Context) {
	orgID, ok := orgIDQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var results []models.EvaluationResult
	if errFind := h.db.WithContext(ctx).
		Select("vendor_id", "global_score", "tier", "total_rules", "evaluated_at").
		Where("org_id = ?", orgID).
		Find(&results).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load results failed"})
		return
	}

	tierCounts := map[models.RiskTier]int{}
	scoreSum := 0
	scored := 0
	unscored := 0
	for i := range results {
		result := &results[i]
		if result.GlobalScore == nil {
			unscored++
			continue
		}
		scored++
		scoreSum += *result.GlobalScore
		tierCounts[result.Tier]++
	}

	var averageScore *float64
	if scored > 0 {
		avg := float64(scoreSum) / float64(scored)
		averageScore = &avg
	}

	now := time.Now().UTC()
	horizon := now.AddDate(0, 0, 90)
	var expiring []models.CoverageSnapshot
	if errExpiring := h.db.WithContext(ctx).
		Select("vendor_id", "earliest_expiration").
		Where("org_id = ?", orgID).
		Where("earliest_expiration IS NOT NULL").
		Where("earliest_expiration <= ?", horizon).
		Order("earliest_expiration ASC").
		Find(&expiring).Error; errExpiring != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load expirations failed"})
		return
	}
	expirations := make([]gin.H, 0, len(expiring))
	for i := range expiring {
		snap := &expiring[i]
		expirations = append(expirations, gin.H{
			"vendor_id":  snap.VendorID,
			"expires_at": snap.EarliestExpiration,
			"severity":   alerts.ExpirySeverity(*snap.EarliestExpiration, now),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"org_id":           orgID,
		"vendors_scored":   scored,
		"vendors_unscored": unscored,
		"average_score":    averageScore,
		"tier_counts":      tierCounts,
		"expirations":      expirations,
	})
}

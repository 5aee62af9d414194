package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/batch"
	"github.com/coverwatch/coverwatch/internal/cache"
	"github.com/coverwatch/coverwatch/internal/models"
	internalsettings "github.com/coverwatch/coverwatch/internal/settings"
)

// EvaluationHandler serves on-demand batch runs and evaluation result reads.
type EvaluationHandler struct {
	db          *gorm.DB           // Database handle for evaluation results.
	runner      *batch.Runner      // Batch runner for on-demand evaluation.
	resultCache *cache.ResultCache // Read-through result cache.
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(db *gorm.DB, runner *batch.Runner, resultCache *cache.ResultCache) *EvaluationHandler {
	return &EvaluationHandler{db: db, runner: runner, resultCache: resultCache}
}

// Run executes a full evaluation batch for one org synchronously and returns
// the run report. The same pipeline the scheduler runs nightly.
func (h *EvaluationHandler) Run(c *gin.Context) {
	orgID, errParse := strconv.ParseUint(strings.TrimSpace(c.Query("org_id")), 10, 64)
	if errParse != nil || orgID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
		return
	}

	var org models.Organization
	if errFind := h.db.WithContext(c.Request.Context()).First(&org, orgID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	report, errRun := h.runner.RunOrg(c.Request.Context(), orgID, internalsettings.BatchConcurrency())
	if errRun != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation run failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetVendorResult returns the latest evaluation result for a vendor, served
// from the cache when warm.
func (h *EvaluationHandler) GetVendorResult(c *gin.Context) {
	vendorID, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	if cached, ok := h.resultCache.Get(ctx, vendorID); ok {
		c.JSON(http.StatusOK, formatEvaluationResult(cached, true))
		return
	}

	var result models.EvaluationResult
	if errFind := h.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&result).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor has not been evaluated"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	_ = h.resultCache.Set(ctx, &result)
	c.JSON(http.StatusOK, formatEvaluationResult(&result, false))
}

func formatEvaluationResult(result *models.EvaluationResult, fromCache bool) gin.H {
	return gin.H{
		"vendor_id":     result.VendorID,
		"org_id":        result.OrgID,
		"passing":       json.RawMessage(result.Passing),
		"failing":       json.RawMessage(result.Failing),
		"missing":       json.RawMessage(result.Missing),
		"skipped_rules": result.SkippedRules,
		"total_rules":   result.TotalRules,
		"global_score":  result.GlobalScore,
		"tier":          result.Tier,
		"evaluated_at":  result.EvaluatedAt,
		"cached":        fromCache,
	}
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coverwatch/coverwatch/internal/models"
)

func TestDashboardComplianceAggregates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	orgID := seedOrg(t, db)

	scoreA, scoreB := 90, 40
	now := time.Now().UTC()
	results := []models.EvaluationResult{
		{VendorID: 1, OrgID: orgID, TotalRules: 5, GlobalScore: &scoreA, Tier: models.TierEliteSafe, EvaluatedAt: now},
		{VendorID: 2, OrgID: orgID, TotalRules: 5, GlobalScore: &scoreB, Tier: models.TierHighRisk, EvaluatedAt: now},
		{VendorID: 3, OrgID: orgID, TotalRules: 0, EvaluatedAt: now}, // unscored
	}
	for i := range results {
		if errCreate := db.Create(&results[i]).Error; errCreate != nil {
			t.Fatalf("create result: %v", errCreate)
		}
	}

	soon := now.AddDate(0, 0, 10)
	snap := models.CoverageSnapshot{VendorID: 1, OrgID: orgID, Fields: []byte(`{}`), EarliestExpiration: &soon, RefreshedAt: now}
	if errCreate := db.Create(&snap).Error; errCreate != nil {
		t.Fatalf("create snapshot: %v", errCreate)
	}

	h := NewDashboardHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v0/admin/dashboard/compliance?org_id=%d", orgID), nil)
	h.Compliance(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		VendorsScored   int            `json:"vendors_scored"`
		VendorsUnscored int            `json:"vendors_unscored"`
		AverageScore    *float64       `json:"average_score"`
		TierCounts      map[string]int `json:"tier_counts"`
		Expirations     []struct {
			VendorID uint64 `json:"vendor_id"`
			Severity string `json:"severity"`
		} `json:"expirations"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.VendorsScored != 2 || resp.VendorsUnscored != 1 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if resp.AverageScore == nil || *resp.AverageScore != 65 {
		t.Fatalf("expected average 65, got %v", resp.AverageScore)
	}
	if resp.TierCounts["Elite Safe"] != 1 || resp.TierCounts["High Risk"] != 1 {
		t.Fatalf("unexpected tier counts: %v", resp.TierCounts)
	}
	if len(resp.Expirations) != 1 || resp.Expirations[0].Severity != "high" {
		t.Fatalf("unexpected expirations: %+v", resp.Expirations)
	}
}

func TestDashboardSLARequiresOrg(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)

	h := NewDashboardHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/admin/dashboard/sla", nil)
	h.SLA(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDashboardSLAHealthyWhenNoAlerts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	orgID := seedOrg(t, db)

	h := NewDashboardHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v0/admin/dashboard/sla?org_id=%d", orgID), nil)
	h.SLA(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Health int `json:"health"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Health != 100 {
		t.Fatalf("expected health 100 with no open alerts, got %d", resp.Health)
	}
}

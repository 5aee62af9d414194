package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coverwatch/coverwatch/internal/models"
)

func TestAlertReviewThenResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	orgID := seedOrg(t, db)

	alert := models.Alert{
		OrgID: orgID, VendorID: 7,
		Code: models.AlertCodeNonCompliant, Severity: models.SeverityHigh,
		TemplateKey: "vendor_non_compliant", Status: models.AlertStatusOpen,
	}
	if errCreate := db.Create(&alert).Error; errCreate != nil {
		t.Fatalf("create alert: %v", errCreate)
	}

	h := NewAlertHandler(db)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v0/admin/alerts/1/review", nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", alert.ID)}}
	h.Review(c)
	if w.Code != http.StatusOK {
		t.Fatalf("review: expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	// A second review attempt conflicts; the alert is no longer open.
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v0/admin/alerts/1/review", nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", alert.ID)}}
	h.Review(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("re-review: expected status 409, got %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v0/admin/alerts/1/resolve", nil)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", alert.ID)}}
	h.Resolve(c)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded models.Alert
	if errFind := db.First(&reloaded, alert.ID).Error; errFind != nil {
		t.Fatalf("reload alert: %v", errFind)
	}
	if reloaded.Status != models.AlertStatusResolved || reloaded.ResolvedAt == nil {
		t.Fatalf("expected resolved alert with timestamp, got %+v", reloaded)
	}
}

func TestAlertTransitionUnknownID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)

	h := NewAlertHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v0/admin/alerts/999/resolve", nil)
	c.Params = gin.Params{{Key: "id", Value: "999"}}
	h.Resolve(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestAlertListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)

	h := NewAlertHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/admin/alerts?status=snoozed", nil)
	h.List(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
}

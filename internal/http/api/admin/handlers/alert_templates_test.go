package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coverwatch/coverwatch/internal/models"
)

func TestAlertTemplateCreateValidatesGrammar(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	orgID := seedOrg(t, db)

	h := NewAlertTemplateHandler(db)

	create := func(condition string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = jsonRequest(t, http.MethodPost, "/v0/admin/alert-templates",
			fmt.Sprintf(`{"org_id":%d,"condition":%q,"severity":"high","template_key":"coi_expiring","recipients":["ops@acme.test"]}`, orgID, condition))
		h.Create(c)
		return w
	}

	if w := create("expiration<=30"); w.Code != http.StatusCreated {
		t.Fatalf("valid grammar: expected status 201, got %d body=%s", w.Code, w.Body.String())
	}
	if w := create("expires_in 30 days"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid grammar: expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
	if w := create("expiration<=-3"); w.Code != http.StatusBadRequest {
		t.Fatalf("negative window: expected status 400, got %d body=%s", w.Code, w.Body.String())
	}

	var count int64
	if errCount := db.Model(&models.AlertRuleTemplate{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count templates: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected exactly the valid template stored, got %d", count)
	}
}

func TestAlertTemplateUpdateRevalidatesCondition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	orgID := seedOrg(t, db)

	tpl := models.AlertRuleTemplate{
		OrgID: orgID, Condition: "non_compliant", Severity: models.SeverityHigh,
		Recipients: []byte(`[]`), TemplateKey: "vendor_non_compliant", IsActive: true,
	}
	if errCreate := db.Create(&tpl).Error; errCreate != nil {
		t.Fatalf("create template: %v", errCreate)
	}

	h := NewAlertTemplateHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPut, "/v0/admin/alert-templates/1", `{"condition":"overdue"}`)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", tpl.ID)}}
	h.Update(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded models.AlertRuleTemplate
	if errFind := db.First(&reloaded, tpl.ID).Error; errFind != nil {
		t.Fatalf("reload template: %v", errFind)
	}
	if reloaded.Condition != "non_compliant" {
		t.Fatalf("condition should be unchanged, got %q", reloaded.Condition)
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	dbpkg "github.com/coverwatch/coverwatch/internal/db"
	"github.com/coverwatch/coverwatch/internal/models"
)

func openHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(db); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func seedOrg(t *testing.T, db *gorm.DB) uint64 {
	t.Helper()
	org := models.Organization{Name: "Acme Logistics"}
	if errCreate := db.Create(&org).Error; errCreate != nil {
		t.Fatalf("create org: %v", errCreate)
	}
	return org.ID
}

func seedGroup(t *testing.T, db *gorm.DB, orgID uint64) uint64 {
	t.Helper()
	group := models.RuleGroup{OrgID: orgID, Label: "General Liability", Severity: models.SeverityHigh}
	if errCreate := db.Create(&group).Error; errCreate != nil {
		t.Fatalf("create group: %v", errCreate)
	}
	return group.ID
}

func jsonRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestValidateRuleSpec(t *testing.T) {
	t.Parallel()
	strptr := func(s string) *string { return &s }

	cases := []struct {
		name      string
		ruleType  models.RuleType
		condition models.RuleCondition
		value     *string
		wantErr   bool
	}{
		{"limit gte numeric", models.RuleTypeLimit, models.ConditionGTE, strptr("1000000"), false},
		{"limit gte missing value", models.RuleTypeLimit, models.ConditionGTE, nil, true},
		{"limit gte negative", models.RuleTypeLimit, models.ConditionGTE, strptr("-5"), true},
		{"limit gte non-numeric", models.RuleTypeLimit, models.ConditionGTE, strptr("a lot"), true},
		{"coverage exists no value", models.RuleTypeCoverage, models.ConditionExists, nil, false},
		{"coverage exists with value", models.RuleTypeCoverage, models.ConditionExists, strptr("x"), true},
		{"coverage gte mismatched", models.RuleTypeCoverage, models.ConditionGTE, strptr("5"), true},
		{"endorsement requires", models.RuleTypeEndorsement, models.ConditionRequires, strptr("waiver_of_subrogation"), false},
		{"endorsement requires empty", models.RuleTypeEndorsement, models.ConditionRequires, strptr("  "), true},
		{"date after parseable", models.RuleTypeDate, models.ConditionAfter, strptr("2026-12-31"), false},
		{"date after garbage", models.RuleTypeDate, models.ConditionAfter, strptr("eventually"), true},
		{"unknown type", models.RuleType("premium"), models.ConditionGTE, strptr("5"), true},
		{"unknown condition", models.RuleTypeLimit, models.RuleCondition("approx"), strptr("5"), true},
	}
	for _, tc := range cases {
		err := validateRuleSpec(tc.ruleType, tc.condition, tc.value)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestRuleCreateRejectsUnknownCondition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	groupID := seedGroup(t, db, seedOrg(t, db))

	h := NewRuleHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/admin/rules",
		fmt.Sprintf(`{"group_id":%d,"type":"limit","field":"gl_limit","condition":"approx","value":"5","severity":"high","message":"m"}`, groupID))

	h.Create(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}
	var count int64
	if errCount := db.Model(&models.Rule{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rules: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("expected no rules stored, got %d", count)
	}
}

func TestRuleCreateAndList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	groupID := seedGroup(t, db, seedOrg(t, db))

	h := NewRuleHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/v0/admin/rules",
		fmt.Sprintf(`{"group_id":%d,"type":"limit","field":"gl_limit","condition":"gte","value":"1000000","severity":"high","message":"GL limit >= $1M"}`, groupID))

	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	var rule models.Rule
	if errFind := db.First(&rule).Error; errFind != nil {
		t.Fatalf("load rule: %v", errFind)
	}
	if rule.Condition != models.ConditionGTE || rule.Field != "gl_limit" || rule.Value == nil || *rule.Value != "1000000" {
		t.Fatalf("unexpected stored rule: %+v", rule)
	}
	if !rule.IsActive {
		t.Fatalf("expected rule active by default")
	}
}

func TestRuleUpdateCannotChangeComparison(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openHandlerTestDB(t)
	groupID := seedGroup(t, db, seedOrg(t, db))

	value := "1000000"
	rule := models.Rule{
		GroupID: groupID, Type: models.RuleTypeLimit, Field: "gl_limit",
		Condition: models.ConditionGTE, Value: &value,
		Severity: models.SeverityHigh, Message: "m", IsActive: true,
	}
	if errCreate := db.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	h := NewRuleHandler(db)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPut, "/v0/admin/rules/1",
		`{"condition":"lte","severity":"low","is_active":false}`)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", rule.ID)}}

	h.Update(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var reloaded models.Rule
	if errFind := db.First(&reloaded, rule.ID).Error; errFind != nil {
		t.Fatalf("reload rule: %v", errFind)
	}
	if reloaded.Condition != models.ConditionGTE {
		t.Fatalf("condition changed; comparison fields are immutable")
	}
	if reloaded.Severity != models.SeverityLow || reloaded.IsActive {
		t.Fatalf("mutable fields not applied: %+v", reloaded)
	}
}

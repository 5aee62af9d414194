package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/coverwatch/coverwatch/internal/models"
)

func timeptr(t time.Time) *time.Time { return &t }

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw      string
		wantCode string
		wantDays int
		wantErr  bool
	}{
		{"non_compliant", models.AlertCodeNonCompliant, 0, false},
		{" Non_Compliant ", models.AlertCodeNonCompliant, 0, false},
		{"expiration<=30", models.AlertCodeExpiration, 30, false},
		{"expiration <= 7", models.AlertCodeExpiration, 7, false},
		{"expiration<=0", models.AlertCodeExpiration, 0, false},
		{"expiration<=-5", "", 0, true},
		{"expiration<=soon", "", 0, true},
		{"renewal>=30", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cond, errParse := ParseCondition(tt.raw)
			if tt.wantErr {
				assert.Error(t, errParse)
				return
			}
			require.NoError(t, errParse)
			assert.Equal(t, tt.wantCode, cond.Code)
			assert.Equal(t, tt.wantDays, cond.WithinDays)
		})
	}
}

func TestEvaluateTemplates_ExpirationWindow(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tpl := models.AlertRuleTemplate{
		ID: 1, OrgID: 1, Condition: "expiration<=30",
		Severity: models.SeverityHigh, TemplateKey: "coi_expiring",
		Recipients: datatypes.JSON([]byte(`["ops@example.com"]`)),
		IsActive:   true,
	}

	t.Run("ten days out triggers", func(t *testing.T) {
		vendor := VendorState{VendorID: 5, EarliestExpiration: timeptr(now.AddDate(0, 0, 10))}
		candidates, skipped := EvaluateTemplates([]models.AlertRuleTemplate{tpl}, vendor, now)
		require.Len(t, candidates, 1)
		assert.Empty(t, skipped)
		assert.Equal(t, models.AlertCodeExpiration, candidates[0].Code)
		assert.Equal(t, models.SeverityHigh, candidates[0].Severity)
		assert.Equal(t, "coi_expiring", candidates[0].TemplateKey)
	})

	t.Run("already expired also triggers", func(t *testing.T) {
		vendor := VendorState{VendorID: 5, EarliestExpiration: timeptr(now.AddDate(0, 0, -14))}
		candidates, _ := EvaluateTemplates([]models.AlertRuleTemplate{tpl}, vendor, now)
		assert.Len(t, candidates, 1)
	})

	t.Run("beyond window does not trigger", func(t *testing.T) {
		vendor := VendorState{VendorID: 5, EarliestExpiration: timeptr(now.AddDate(0, 0, 45))}
		candidates, _ := EvaluateTemplates([]models.AlertRuleTemplate{tpl}, vendor, now)
		assert.Empty(t, candidates)
	})

	t.Run("no known expiration does not trigger", func(t *testing.T) {
		candidates, _ := EvaluateTemplates([]models.AlertRuleTemplate{tpl}, VendorState{VendorID: 5}, now)
		assert.Empty(t, candidates)
	})
}

func TestEvaluateTemplates_NonCompliant(t *testing.T) {
	now := time.Now().UTC()
	tpl := models.AlertRuleTemplate{
		ID: 2, OrgID: 1, Condition: "non_compliant",
		Severity: models.SeverityCritical, TemplateKey: "non_compliant",
		IsActive: true,
	}

	candidates, _ := EvaluateTemplates([]models.AlertRuleTemplate{tpl}, VendorState{VendorID: 9, FailingRules: 2}, now)
	require.Len(t, candidates, 1)
	assert.Equal(t, models.AlertCodeNonCompliant, candidates[0].Code)

	candidates, _ = EvaluateTemplates([]models.AlertRuleTemplate{tpl}, VendorState{VendorID: 9, FailingRules: 0}, now)
	assert.Empty(t, candidates)
}

func TestEvaluateTemplates_SkipsInactiveAndMisconfigured(t *testing.T) {
	now := time.Now().UTC()
	templates := []models.AlertRuleTemplate{
		{ID: 1, Condition: "non_compliant", Severity: models.SeverityHigh, IsActive: false},
		{ID: 2, Condition: "lapsed>=10", Severity: models.SeverityHigh, IsActive: true},
		{ID: 3, Condition: "non_compliant", Severity: models.SeverityHigh, IsActive: true},
	}
	vendor := VendorState{VendorID: 1, FailingRules: 1}

	candidates, skipped := EvaluateTemplates(templates, vendor, now)
	require.Len(t, candidates, 1)
	assert.Equal(t, uint64(3), templates[2].ID)
	require.Len(t, skipped, 1)
	assert.Equal(t, uint64(2), skipped[0].TemplateID)
}

func TestExpirySeverity(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, models.SeverityCritical, ExpirySeverity(now.AddDate(0, 0, -1), now))
	assert.Equal(t, models.SeverityHigh, ExpirySeverity(now.AddDate(0, 0, 10), now))
	assert.Equal(t, models.SeverityHigh, ExpirySeverity(now.AddDate(0, 0, 30), now))
	assert.Equal(t, models.SeverityMedium, ExpirySeverity(now.AddDate(0, 0, 45), now))
	assert.Equal(t, models.SeverityLow, ExpirySeverity(now.AddDate(0, 0, 90), now))
}

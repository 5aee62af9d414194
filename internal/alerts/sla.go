package alerts

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/models"
)

// Aging bucket weights. Buckets are cumulative: a ten-day-old alert counts in
// all three.
const (
	weightOver24 = 5
	weightOver72 = 10
	weightOver7d = 20
)

// Aging summarizes how long an org's unresolved alerts have been waiting and
// derives the 0-100 SLA health score.
type Aging struct {
	OpenTotal int `json:"open_total"` // Unresolved alerts counted.
	Over24    int `json:"over_24h"`   // Aged at least 1 day.
	Over72    int `json:"over_72h"`   // Aged at least 3 days.
	Over7d    int `json:"over_7d"`    // Aged at least 7 days.
	Health    int `json:"health"`     // clamp(100 - 5*over24 - 10*over72 - 20*over7d, 0, 100).
}

// ComputeAging buckets alert raise times by age relative to now. Age is full
// days, floored. With no unresolved alerts health is 100 by definition:
// a perfect SLA, not "unknown". Aging is always computed fresh from raise
// times, never from incremented state, so repeated same-day runs cannot
// double-count.
func ComputeAging(createdAts []time.Time, now time.Time) Aging {
	aging := Aging{OpenTotal: len(createdAts)}
	for _, createdAt := range createdAts {
		age := int(now.Sub(createdAt).Hours() / 24)
		if age >= 1 {
			aging.Over24++
		}
		if age >= 3 {
			aging.Over72++
		}
		if age >= 7 {
			aging.Over7d++
		}
	}
	health := 100 - weightOver24*aging.Over24 - weightOver72*aging.Over72 - weightOver7d*aging.Over7d
	if health < 0 {
		health = 0
	}
	if health > 100 {
		health = 100
	}
	aging.Health = health
	return aging
}

// OrgAging computes SLA aging over an org's unresolved alerts. Alerts under
// review still age; only resolution stops the clock.
func OrgAging(ctx context.Context, conn *gorm.DB, orgID uint64, now time.Time) (Aging, error) {
	var createdAts []time.Time
	errFind := conn.WithContext(ctx).Model(&models.Alert{}).
		Where("org_id = ?", orgID).
		Where("status IN ?", []models.AlertStatus{models.AlertStatusOpen, models.AlertStatusInReview}).
		Pluck("created_at", &createdAts).Error
	if errFind != nil {
		return Aging{}, fmt.Errorf("alerts: load open alert ages: %w", errFind)
	}
	return ComputeAging(createdAts, now), nil
}

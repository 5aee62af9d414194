package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverwatch/coverwatch/internal/models"
)

func agesToTimes(now time.Time, ageDays ...int) []time.Time {
	out := make([]time.Time, 0, len(ageDays))
	for _, age := range ageDays {
		out = append(out, now.AddDate(0, 0, -age))
	}
	return out
}

func TestComputeAging_Buckets(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Ages 0, 2, 5, 10 days: over24=3, over72=2, over7d=1,
	// health = 100 - 5*3 - 10*2 - 20*1 = 45.
	aging := ComputeAging(agesToTimes(now, 0, 2, 5, 10), now)
	assert.Equal(t, 4, aging.OpenTotal)
	assert.Equal(t, 3, aging.Over24)
	assert.Equal(t, 2, aging.Over72)
	assert.Equal(t, 1, aging.Over7d)
	assert.Equal(t, 45, aging.Health)
}

func TestComputeAging_NoOpenAlertsIsPerfect(t *testing.T) {
	aging := ComputeAging(nil, time.Now().UTC())
	assert.Equal(t, 100, aging.Health, "no open alerts is a perfect SLA, not unknown")
	assert.Zero(t, aging.OpenTotal)
}

func TestComputeAging_ClampsAtZero(t *testing.T) {
	now := time.Now().UTC()
	// Ten alerts all older than a week overwhelm the weights.
	aging := ComputeAging(agesToTimes(now, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17), now)
	assert.Equal(t, 0, aging.Health)
}

func TestComputeAging_AgeIsFlooredToFullDays(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// 23 hours old: not yet a full day, so no bucket counts it.
	aging := ComputeAging([]time.Time{now.Add(-23 * time.Hour)}, now)
	assert.Zero(t, aging.Over24)
	assert.Equal(t, 100, aging.Health)

	// 25 hours old crosses the first bucket only.
	aging = ComputeAging([]time.Time{now.Add(-25 * time.Hour)}, now)
	assert.Equal(t, 1, aging.Over24)
	assert.Zero(t, aging.Over72)
	assert.Equal(t, 95, aging.Health)
}

func TestComputeAging_Monotonicity(t *testing.T) {
	now := time.Now().UTC()
	base := agesToTimes(now, 0, 2, 5)
	older := agesToTimes(now, 0, 2, 8) // one alert aged further

	healthBase := ComputeAging(base, now).Health
	healthOlder := ComputeAging(older, now).Health
	assert.LessOrEqual(t, healthOlder, healthBase, "aging an alert can never improve health")
}

func TestOrgAging_CountsUnresolvedOnly(t *testing.T) {
	conn := setupAlertTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []models.Alert{
		{OrgID: 1, VendorID: 1, Code: models.AlertCodeExpiration, Severity: models.SeverityHigh, Status: models.AlertStatusOpen, CreatedAt: now.AddDate(0, 0, -2)},
		{OrgID: 1, VendorID: 2, Code: models.AlertCodeExpiration, Severity: models.SeverityHigh, Status: models.AlertStatusInReview, CreatedAt: now.AddDate(0, 0, -4)},
		{OrgID: 1, VendorID: 3, Code: models.AlertCodeExpiration, Severity: models.SeverityHigh, Status: models.AlertStatusResolved, CreatedAt: now.AddDate(0, 0, -10)},
		{OrgID: 2, VendorID: 4, Code: models.AlertCodeExpiration, Severity: models.SeverityHigh, Status: models.AlertStatusOpen, CreatedAt: now.AddDate(0, 0, -10)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	aging, errAging := OrgAging(ctx, conn, 1, now)
	require.NoError(t, errAging)
	assert.Equal(t, 2, aging.OpenTotal, "resolved alerts and other orgs are excluded")
	assert.Equal(t, 2, aging.Over24)
	assert.Equal(t, 1, aging.Over72)
	assert.Zero(t, aging.Over7d)
}

package batch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/coverwatch/coverwatch/internal/models"
	internalsettings "github.com/coverwatch/coverwatch/internal/settings"
)

// retryInterval is used after a pass that could not even list orgs.
const retryInterval = time.Minute

// Scheduler runs full evaluation batches for every active organization on a
// fixed cadence. Interval and worker pool size come from DB-backed settings
// and are re-read before every pass, so admin changes apply without restart.
type Scheduler struct {
	db     *gorm.DB
	runner *Runner
}

// NewScheduler constructs a batch scheduler.
func NewScheduler(conn *gorm.DB, runner *Runner) *Scheduler {
	if conn == nil || runner == nil {
		return nil
	}
	return &Scheduler{db: conn, runner: runner}
}

// Start launches the scheduling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("batch scheduler started (interval=%s)", internalsettings.BatchInterval())
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		interval := s.pass(ctx)
		if ctx.Err() != nil {
			return
		}
		if interval <= 0 {
			interval = internalsettings.BatchInterval()
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// pass runs one batch over every active org and returns the interval to sleep
// before the next pass.
func (s *Scheduler) pass(ctx context.Context) time.Duration {
	interval := internalsettings.BatchInterval()
	concurrency := internalsettings.BatchConcurrency()

	var orgs []models.Organization
	errFind := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&orgs).Error
	if errFind != nil {
		log.WithError(errFind).Warn("batch scheduler: list orgs failed")
		return retryInterval
	}

	for i := range orgs {
		if ctx.Err() != nil {
			return interval
		}
		org := &orgs[i]
		report, errRun := s.runner.RunOrg(ctx, org.ID, concurrency)
		if errRun != nil {
			log.WithError(errRun).WithField("org_id", org.ID).Warn("batch run failed")
			continue
		}
		log.WithFields(log.Fields{
			"run_id":   report.RunID,
			"org_id":   org.ID,
			"vendors":  report.VendorsEvaluated,
			"failures": report.VendorsFailed,
		}).Debug("batch pass completed org")
	}
	return interval
}

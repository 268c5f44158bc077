// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/mortgage-service/internal/metrics"
	"github.com/Dan9191/mortgage-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	complianceReportJob = "compliance_report"
	limiterCleanupJob   = "rate_limiter_cleanup"

	reportWindow  = 24 * time.Hour
	reportTimeout = 30 * time.Second
)

// ComplianceReporter produces compliance summaries
type ComplianceReporter interface {
	ComplianceSummary(ctx context.Context, since time.Time) (*models.ComplianceSummary, error)
}

// Cleaner drops idle state
type Cleaner interface {
	Cleanup() int
}

// Scheduler wraps a cron runner with the service's jobs
type Scheduler struct {
	cron     *cron.Cron
	reporter ComplianceReporter
	limiter  Cleaner
	log      *logrus.Logger
	now      func() time.Time
}

// New creates a scheduler. The compliance report runs on schedule (standard
// five-field cron syntax or descriptors such as @daily); idle rate limiter
// buckets are purged every 30 minutes.
func New(schedule string, reporter ComplianceReporter, limiter Cleaner, log *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(jobWrappers(log)...)),
		reporter: reporter,
		limiter:  limiter,
		log:      log,
		now:      time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.RunComplianceReport(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc("@every 30m", s.cleanupLimiters); err != nil {
		return nil, fmt.Errorf("failed to schedule limiter cleanup: %w", err)
	}
	return s, nil
}

// jobWrappers recover panics and skip overlapping runs, reporting through log
func jobWrappers(log *logrus.Logger) []cron.JobWrapper {
	logger := cron.PrintfLogger(log)
	return []cron.JobWrapper{
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	}
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infof("Scheduler started with %d jobs", len(s.cron.Entries()))
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before running jobs finished")
	}
}

// RunComplianceReport logs and publishes the compliance counts of the last 24 hours
func (s *Scheduler) RunComplianceReport(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()

	since := s.now().Add(-reportWindow)
	summary, err := s.reporter.ComplianceSummary(ctx, since)
	if err != nil {
		metrics.RecordJobRun(complianceReportJob, false)
		s.log.Errorf("Compliance report failed: %v", err)
		return
	}

	counts := make(map[string]int, len(summary.Counts))
	fields := logrus.Fields{"since": since.Format(time.RFC3339), "total": summary.Total}
	for status, n := range summary.Counts {
		counts[string(status)] = n
		fields[string(status)] = n
	}
	metrics.SetComplianceSummary(counts)
	metrics.RecordJobRun(complianceReportJob, true)
	s.log.WithFields(fields).Info("Compliance report")
}

func (s *Scheduler) cleanupLimiters() {
	removed := s.limiter.Cleanup()
	metrics.RecordJobRun(limiterCleanupJob, true)
	if removed > 0 {
		s.log.Debugf("Removed %d idle rate limiters", removed)
	}
}

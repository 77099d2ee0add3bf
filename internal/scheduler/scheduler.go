package scheduler

import (
	"context"
	"time"

	"portfolio-hub/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Jobs is the work the scheduler runs
type Jobs interface {
	Reconcile(ctx context.Context) (services.ReplayReport, error)
	CheckDomainExpiry(ctx context.Context) services.SweepReport
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron    *cron.Cron
	jobs    Jobs
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewScheduler creates a new scheduler. A job still running when its next
// tick arrives is skipped for that tick.
func NewScheduler(jobs Jobs, log logrus.FieldLogger) *Scheduler {
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		jobs:    jobs,
		log:     log,
		timeout: 10 * time.Minute,
	}
}

// Start registers both jobs and starts the scheduler
func (s *Scheduler) Start(reconcileInterval, domainCheckInterval string) error {
	if _, err := s.cron.AddFunc(reconcileInterval, func() { s.RunReconcile(context.Background()) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(domainCheckInterval, func() { s.RunDomainCheck(context.Background()) }); err != nil {
		return err
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"reconcile":    reconcileInterval,
		"domain_check": domainCheckInterval,
	}).Info("Scheduler started")
	return nil
}

// RunReconcile replays pending writes and resumes unfinished intents
func (s *Scheduler) RunReconcile(ctx context.Context) services.ReplayReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.jobs.Reconcile(ctx)
	log := s.log.WithFields(logrus.Fields{
		"replayed":  report.Replayed,
		"failed":    report.Failed,
		"dropped":   report.Dropped,
		"remaining": report.Remaining,
	})
	if err != nil {
		log.WithError(err).Error("Scheduled reconcile failed")
		return report
	}
	if report.Replayed+report.Failed+report.Dropped > 0 {
		log.Info("Scheduled reconcile completed")
	} else {
		log.Debug("Nothing to reconcile")
	}
	return report
}

// RunDomainCheck runs the domain expiry sweep
func (s *Scheduler) RunDomainCheck(ctx context.Context) services.SweepReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.log.Info("Starting scheduled domain check...")
	report := s.jobs.CheckDomainExpiry(ctx)
	s.log.WithField("expired", report.Expired).Info("Scheduled domain check completed")
	return report
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

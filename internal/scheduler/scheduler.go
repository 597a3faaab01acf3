package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/marcusw/jobtrack/internal/config"
	"github.com/marcusw/jobtrack/internal/ingest"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler triggers full pipeline passes on an hourly cadence inside a
// business-hours window, plus a daily read-only liveness audit. Passes are
// serialized: if a pass is still running when the next trigger fires, the
// trigger is skipped rather than overlapped.
type Scheduler struct {
	cfg      config.SchedulerConfig
	pipeline *ingest.Pipeline
	log      *logger.Logger
	cron     *cron.Cron
}

// New creates a scheduler for the pipeline.
func New(cfg config.SchedulerConfig, pipeline *ingest.Pipeline, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		pipeline: pipeline,
		log:      log,
	}
}

// Start registers the cron entries and launches the scheduler. The context
// bounds every triggered pass; Stop (or context cancellation plus Stop) shuts
// the scheduler down.
func (s *Scheduler) Start(ctx context.Context) error {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", s.cfg.Timezone, err)
	}

	cronLog := cron.PrintfLogger(s.log)
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog)),
	)

	passSpec := fmt.Sprintf("0 %d-%d * * *", s.cfg.PassStartHour, s.cfg.PassEndHour)
	passJob := cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
		s.pipeline.Run(ctx)
	}))
	if _, err := s.cron.AddJob(passSpec, passJob); err != nil {
		return fmt.Errorf("failed to schedule pipeline pass: %w", err)
	}

	auditSpec := fmt.Sprintf("0 %d * * *", s.cfg.AuditHour)
	if _, err := s.cron.AddFunc(auditSpec, func() {
		s.pipeline.Audit(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule liveness audit: %w", err)
	}

	s.cron.Start()
	s.log.WithFields(logger.Fields{
		"pass_schedule":  passSpec,
		"audit_schedule": auditSpec,
		"timezone":       s.cfg.Timezone,
	}).Info("Scheduler started")

	// An immediate pass on startup so a fresh deployment does not sit idle
	// until the next top of the hour.
	if s.cfg.RunOnStart {
		go s.pipeline.Run(ctx)
	}

	return nil
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("Scheduler stopped")
}

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"github.com/marcusw/jobtrack/internal/source"
)

// SourceJob pairs an adapter with the role queries it should be asked.
type SourceJob struct {
	Adapter     source.Adapter
	RoleQueries []string
}

// Pipeline runs full passes over every configured data source, one source at
// a time, and aggregates the run ledger into a cycle summary.
type Pipeline struct {
	coordinator  *Coordinator
	postings     *repository.PostingRepository
	stats        *CycleStats
	sources      []SourceJob
	lookbackDays int
	log          *logger.Logger
}

// NewPipeline creates a pipeline over the given source jobs.
func NewPipeline(
	coordinator *Coordinator,
	postings *repository.PostingRepository,
	stats *CycleStats,
	sources []SourceJob,
	lookbackDays int,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		coordinator:  coordinator,
		postings:     postings,
		stats:        stats,
		sources:      sources,
		lookbackDays: lookbackDays,
		log:          log,
	}
}

// Run executes one full pipeline pass: counters reset, every source cycled
// sequentially, summary logged, counters reset again for the next pass.
// A failing source never prevents the remaining sources from running.
func (p *Pipeline) Run(ctx context.Context) {
	p.stats.Reset()
	start := time.Now()
	total := len(p.sources)

	p.log.WithField("sources", total).Info("Starting pipeline pass")

	for i, job := range p.sources {
		if ctx.Err() != nil {
			p.log.Warnf("Pipeline pass canceled after %d/%d sources", i, total)
			break
		}
		p.log.Infof("Running source %d/%d: %s", i+1, total, job.Adapter.Name())
		if _, err := p.coordinator.RunSource(ctx, job.Adapter, job.RoleQueries, p.lookbackDays); err != nil {
			p.log.WithError(err).WithField("source", job.Adapter.Name()).
				Error("Source cycle could not be recorded")
		}
	}

	summary := p.stats.Snapshot()
	p.log.WithFields(logger.Fields{
		"sources_run":    summary.SourcesRun,
		"sources_failed": summary.SourcesFailed,
		"success_rate":   fmt.Sprintf("%.1f%%", summary.SuccessRate()),
		"added":          summary.PostingsAdded,
		"updated":        summary.PostingsUpdated,
		"expired":        summary.PostingsExpired,
		"duplicates":     summary.DuplicatesSkipped,
		"errors":         summary.RecordErrors,
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("Pipeline pass completed")
	p.stats.Reset()
}

// RunOne executes a single source cycle by name, outside the scheduled pass.
func (p *Pipeline) RunOne(ctx context.Context, name string) error {
	for _, job := range p.sources {
		if job.Adapter.Name() == name {
			_, err := p.coordinator.RunSource(ctx, job.Adapter, job.RoleQueries, p.lookbackDays)
			return err
		}
	}
	return fmt.Errorf("unknown source %q", name)
}

// Audit logs current active/inactive posting counts. Read-only; it performs
// no lifecycle transitions.
func (p *Pipeline) Audit(ctx context.Context) {
	active, err := p.postings.CountByActive(ctx, true)
	if err != nil {
		p.log.WithError(err).Error("Liveness audit failed to count active postings")
		return
	}
	inactive, err := p.postings.CountByActive(ctx, false)
	if err != nil {
		p.log.WithError(err).Error("Liveness audit failed to count inactive postings")
		return
	}
	p.log.WithFields(logger.Fields{
		"active":   active,
		"inactive": inactive,
	}).Info("Liveness audit")
}

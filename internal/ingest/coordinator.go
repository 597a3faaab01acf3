package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"github.com/marcusw/jobtrack/internal/source"
	"github.com/marcusw/jobtrack/internal/taxonomy"
)

// Coordinator drives one data source through a full ingestion cycle: adapter
// fetch, classification, upsert, stale expiration, ledger entry. All store
// writes for a source happen on the coordinator's goroutine; adapters only
// fetch and parse.
type Coordinator struct {
	runs       *repository.RunRepository
	classifier *taxonomy.Classifier
	engine     *UpsertEngine
	lifecycle  *LifecycleManager
	stats      *CycleStats
	log        *logger.Logger
}

// NewCoordinator creates an ingestion coordinator.
func NewCoordinator(
	runs *repository.RunRepository,
	classifier *taxonomy.Classifier,
	engine *UpsertEngine,
	lifecycle *LifecycleManager,
	stats *CycleStats,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		runs:       runs,
		classifier: classifier,
		engine:     engine,
		lifecycle:  lifecycle,
		stats:      stats,
		log:        log,
	}
}

// RunSource executes one ingestion cycle for a source and returns its
// finalized run record. Per-posting failures are counted and contained here;
// an adapter-level failure finalizes the record as failed and, critically,
// skips stale expiration so a broken scrape is never read as "zero jobs".
// The returned error is non-nil only when the run ledger itself is unusable.
func (c *Coordinator) RunSource(ctx context.Context, adapter source.Adapter, roleQueries []string, lookbackDays int) (*domain.RunRecord, error) {
	log := c.log.WithFields(logger.Fields{
		logger.FieldSource:  adapter.Name(),
		logger.FieldCompany: adapter.Company(),
	})
	start := time.Now()

	record, err := c.runs.Open(ctx, adapter.Name())
	if err != nil {
		log.WithError(err).Error("Failed to open run record")
		c.stats.RecordFailure()
		return nil, err
	}

	log.WithField("run_id", record.ID).Info("Starting source cycle")

	data, err := adapter.Fetch(ctx, roleQueries, lookbackDays)
	if err != nil {
		log.WithError(err).Error("Adapter failed, aborting source cycle")
		if ferr := c.runs.FinalizeFailure(ctx, record, err.Error()); ferr != nil {
			log.WithError(ferr).Error("Failed to finalize run record")
		}
		c.stats.RecordFailure()
		return record, nil
	}

	var (
		added      int
		updated    int
		duplicates int
		recordErrs int
		processed  = make(map[string]struct{})
		seenIDs    = make(map[string]struct{})
	)

	// The seen set feeds stale expiration and must cover every identifier the
	// source reported, even when the record's role query is later skipped or
	// its upsert fails. Anything less wrongly expires a posting the board
	// still lists.
	for _, records := range data {
		for _, rec := range records {
			if id := strings.TrimSpace(rec.ExternalID); id != "" {
				seenIDs[id] = struct{}{}
			}
		}
	}

	for roleQuery, records := range data {
		if strings.TrimSpace(roleQuery) == "" {
			log.Warn("Skipping empty role query")
			continue
		}

		role, err := c.classifier.Canonicalize(ctx, roleQuery)
		if err != nil {
			log.WithError(err).WithField("role_query", roleQuery).
				Error("Failed to canonicalize role, skipping its records")
			recordErrs += len(records)
			continue
		}

		for _, rec := range records {
			externalID := strings.TrimSpace(rec.ExternalID)
			if externalID != "" {
				if _, done := processed[externalID]; done {
					continue
				}
				processed[externalID] = struct{}{}
			}

			outcome, _, _ := c.engine.Upsert(ctx, rec, adapter.Company(), role)
			switch outcome {
			case OutcomeCreated:
				added++
			case OutcomeUpdated:
				updated++
			case OutcomeDuplicateSkipped:
				duplicates++
			case OutcomeFailed:
				recordErrs++
			}
		}
	}

	expired, err := c.lifecycle.ExpireStale(ctx, adapter.Company(), seenIDs)
	if err != nil {
		// Expiration failure leaves stale rows active until the next cycle;
		// the ingested postings are already committed, so the run stands.
		log.WithError(err).Error("Stale expiration failed")
	}

	if err := c.runs.FinalizeSuccess(ctx, record, added, updated); err != nil {
		log.WithError(err).Error("Failed to finalize run record")
	}
	c.stats.RecordSuccess(added, updated, int(expired), duplicates, recordErrs)

	log.WithFields(logger.Fields{
		"run_id":      record.ID,
		"added":       added,
		"updated":     updated,
		"expired":     expired,
		"duplicates":  duplicates,
		"errors":      recordErrs,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Source cycle completed")

	return record, nil
}

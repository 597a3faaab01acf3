package ingest

import (
	"context"

	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
)

// LifecycleManager owns the active-to-inactive transition. It is the only
// path by which a posting becomes inactive; reactivation happens only through
// the upsert engine re-seeing the identifier.
type LifecycleManager struct {
	postings *repository.PostingRepository
	log      *logger.Logger
}

// NewLifecycleManager creates a lifecycle manager.
func NewLifecycleManager(postings *repository.PostingRepository, log *logger.Logger) *LifecycleManager {
	return &LifecycleManager{postings: postings, log: log}
}

// ExpireStale deactivates every active posting for company absent from
// activeIDs and returns how many rows transitioned. activeIDs must be the
// complete identifier set from a successful full scrape; an empty set is
// treated as a scrape-failure signal and expires nothing, never as "zero jobs
// exist".
func (m *LifecycleManager) ExpireStale(ctx context.Context, company string, activeIDs map[string]struct{}) (int64, error) {
	if len(activeIDs) == 0 {
		m.log.WithField("company", company).
			Warn("No active IDs reported, skipping stale expiration")
		return 0, nil
	}

	ids := make([]string, 0, len(activeIDs))
	for id := range activeIDs {
		ids = append(ids, id)
	}

	expired, err := m.postings.ExpireStale(ctx, company, ids)
	if err != nil {
		m.log.WithError(err).WithField("company", company).
			Error("Failed to expire stale postings")
		return 0, err
	}

	if expired > 0 {
		m.log.WithFields(logger.Fields{
			"company": company,
			"count":   expired,
		}).Info("Marked stale postings inactive")
	}
	return expired, nil
}

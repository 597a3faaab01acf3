package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/marcusw/jobtrack/internal/domain"
	"github.com/marcusw/jobtrack/internal/logger"
	"github.com/marcusw/jobtrack/internal/repository"
	"github.com/marcusw/jobtrack/internal/source"
	"gorm.io/gorm"
)

// ErrMissingIdentity marks a raw record that carries no source identifier.
// Such records are skipped and counted, never persisted.
var ErrMissingIdentity = errors.New("record has no source identifier")

// Outcome classifies the result of one upsert call.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeUpdated          Outcome = "updated"
	OutcomeDuplicateSkipped Outcome = "duplicate_skipped"
	OutcomeFailed           Outcome = "failed"
)

// postedDateLayouts are accepted DatePosted formats, in preference order.
var postedDateLayouts = []string{"2006-01-02", time.RFC3339}

// UpsertEngine resolves posting identity and performs idempotent
// create-or-update against the store. It exclusively owns posting and
// posting-role writes. Failures below the transient-retry threshold are
// handled internally; the returned error exists so callers can count, and is
// never meant to abort a cycle.
type UpsertEngine struct {
	postings      *repository.PostingRepository
	log           *logger.Logger
	retryAttempts uint
}

// NewUpsertEngine creates an upsert engine. retryCount bounds the backoff
// retries around the conditional write; values below 1 fall back to 3.
func NewUpsertEngine(postings *repository.PostingRepository, log *logger.Logger, retryCount int) *UpsertEngine {
	if retryCount < 1 {
		retryCount = 3
	}
	return &UpsertEngine{
		postings:      postings,
		log:           log,
		retryAttempts: uint(retryCount),
	}
}

// Upsert creates or updates the posting described by rec under company and
// attaches role to it. The outcome reports which path won; err is non-nil
// only when the outcome is OutcomeFailed.
func (e *UpsertEngine) Upsert(ctx context.Context, rec source.RawRecord, company string, role *domain.Role) (Outcome, *domain.Posting, error) {
	externalID := strings.TrimSpace(rec.ExternalID)
	if externalID == "" {
		e.log.WithFields(logger.Fields{
			"company": company,
			"title":   rec.Title,
		}).Warn("Skipping record with missing identity")
		return OutcomeFailed, nil, ErrMissingIdentity
	}

	now := time.Now().UTC()
	datePosted := e.parsePostedDate(rec.DatePosted, now)

	// Primary lookup by (externalID, company).
	existing, err := e.postings.GetByIdentity(ctx, externalID, company)
	if err == nil {
		return e.updateExisting(ctx, existing, rec, datePosted, now, role)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		// The conditional write below is safe even if the row exists, so a
		// flaky read does not abort the record.
		e.log.WithError(err).WithField("external_id", externalID).
			Warn("Primary lookup failed, falling through to conditional write")
	}

	// Secondary duplicate check: the same real-world posting re-keyed under a
	// new identifier between cycles.
	dup, err := e.postings.FindActiveDuplicate(ctx, company, rec.Title, rec.Location)
	if err == nil {
		e.log.WithFields(logger.Fields{
			"company":     company,
			"title":       rec.Title,
			"existing_id": dup.ExternalID,
			"incoming_id": externalID,
		}).Info("Duplicate posting detected, skipping")
		if err := e.postings.AttachRole(ctx, dup, role); err != nil {
			e.log.WithError(err).Warn("Failed to attach role to duplicate posting")
		}
		return OutcomeDuplicateSkipped, dup, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		e.log.WithError(err).WithField("external_id", externalID).
			Warn("Duplicate check failed, continuing")
	}

	posting := &domain.Posting{
		ExternalID:     externalID,
		Company:        company,
		Title:          rec.Title,
		Location:       rec.Location,
		URL:            rec.URL,
		DatePosted:     datePosted,
		EmploymentType: rec.EmploymentType,
		Description:    rec.Description,
		FirstSeen:      now,
		LastUpdated:    now,
		IsActive:       true,
		RawPayload:     domain.RawPayload(rec.Payload),
	}

	// Conditional insert-or-update so a concurrent writer racing on the same
	// identity cannot produce two rows. Transient store errors are retried
	// with backoff; a uniqueness violation is not retryable here and drops
	// through to conflict recovery.
	err = retry.Do(
		func() error { return e.postings.CreateOrUpdate(ctx, posting) },
		retry.Attempts(e.retryAttempts),
		retry.Delay(100*time.Millisecond),
		retry.MaxJitter(50*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, gorm.ErrDuplicatedKey)
		}),
	)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return e.recoverConflict(ctx, externalID, company, rec, datePosted, role)
		}
		e.log.WithError(err).WithFields(logger.Fields{
			"external_id": externalID,
			"company":     company,
		}).Error("Failed to upsert posting")
		return OutcomeFailed, nil, err
	}

	// Re-read to learn which branch of the conditional write won: a fresh row
	// has first_seen == last_updated, a row the competing writer inserted
	// keeps its older first_seen.
	persisted, err := e.postings.GetByIdentity(ctx, externalID, company)
	if err != nil {
		e.log.WithError(err).WithField("external_id", externalID).
			Error("Failed to re-read posting after upsert")
		return OutcomeFailed, nil, err
	}

	if err := e.postings.AttachRole(ctx, persisted, role); err != nil {
		e.log.WithError(err).Warn("Failed to attach role to posting")
	}

	if persisted.FirstSeen.Equal(persisted.LastUpdated) {
		return OutcomeCreated, persisted, nil
	}
	return OutcomeUpdated, persisted, nil
}

// updateExisting overwrites the mutable fields of a posting found by primary
// lookup, reactivates it, and bumps last_updated.
func (e *UpsertEngine) updateExisting(ctx context.Context, existing *domain.Posting, rec source.RawRecord, datePosted, now time.Time, role *domain.Role) (Outcome, *domain.Posting, error) {
	existing.Title = rec.Title
	existing.Location = rec.Location
	existing.URL = rec.URL
	existing.DatePosted = datePosted
	existing.EmploymentType = rec.EmploymentType
	existing.Description = rec.Description
	existing.LastUpdated = now
	existing.IsActive = true
	existing.RawPayload = domain.RawPayload(rec.Payload)

	if err := e.postings.Save(ctx, existing); err != nil {
		e.log.WithError(err).WithFields(logger.Fields{
			"external_id": existing.ExternalID,
			"company":     existing.Company,
		}).Error("Failed to update posting")
		return OutcomeFailed, nil, err
	}
	if err := e.postings.AttachRole(ctx, existing, role); err != nil {
		e.log.WithError(err).Warn("Failed to attach role to posting")
	}
	return OutcomeUpdated, existing, nil
}

// recoverConflict handles a lost insert race: another writer committed the
// identity between our lookup and our write. Re-read on a fresh session and
// retry the update path once.
func (e *UpsertEngine) recoverConflict(ctx context.Context, externalID, company string, rec source.RawRecord, datePosted time.Time, role *domain.Role) (Outcome, *domain.Posting, error) {
	e.log.WithFields(logger.Fields{
		"external_id": externalID,
		"company":     company,
	}).Warn("Uniqueness conflict on upsert, recovering via re-read")

	existing, err := e.postings.GetByIdentityFresh(ctx, externalID, company)
	if err != nil {
		e.log.WithError(err).WithField("external_id", externalID).
			Error("Conflict recovery failed: row not readable after uniqueness violation")
		return OutcomeFailed, nil, err
	}
	return e.updateExisting(ctx, existing, rec, datePosted, time.Now().UTC(), role)
}

// parsePostedDate parses the adapter's date string, substituting now on
// failure. A bad date is a warning, never a record failure.
func (e *UpsertEngine) parsePostedDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range postedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	e.log.WithField("date_posted", raw).Warn("Invalid date format, using current time")
	return now
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/marcusw/jobtrack/internal/domain"
	"gorm.io/gorm"
)

// RunRepository owns the run ledger: one record per (source, cycle).
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Open creates a run record in the running state and returns it.
func (r *RunRepository) Open(ctx context.Context, sourceName string) (*domain.RunRecord, error) {
	record := &domain.RunRecord{
		SourceName: sourceName,
		StartTime:  time.Now().UTC(),
		Status:     domain.RunStatusRunning,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FinalizeSuccess closes a run record with success and its counters.
// A record is finalized exactly once and never mutated afterwards.
func (r *RunRepository) FinalizeSuccess(ctx context.Context, record *domain.RunRecord, added, updated int) error {
	now := time.Now().UTC()
	record.EndTime = &now
	record.Status = domain.RunStatusSuccess
	record.PostingsAdded = added
	record.PostingsUpdated = updated
	return r.db.WithContext(ctx).Save(record).Error
}

// FinalizeFailure closes a run record with failure and the adapter's error message.
func (r *RunRepository) FinalizeFailure(ctx context.Context, record *domain.RunRecord, errMsg string) error {
	now := time.Now().UTC()
	record.EndTime = &now
	record.Status = domain.RunStatusFailure
	record.ErrorMessage = errMsg
	return r.db.WithContext(ctx).Save(record).Error
}

// ListRecent returns the most recent run records, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []domain.RunRecord
	if err := r.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// LastBySource returns the latest run record for a source, or nil if the
// source has never run.
func (r *RunRepository) LastBySource(ctx context.Context, sourceName string) (*domain.RunRecord, error) {
	var record domain.RunRecord
	err := r.db.WithContext(ctx).
		Where("source_name = ?", sourceName).
		Order("start_time DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/marcusw/jobtrack/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostingRepository handles posting data operations. It is the only writer of
// posting rows and posting-role associations.
type PostingRepository struct {
	db *gorm.DB
}

// NewPostingRepository creates a new PostingRepository.
func NewPostingRepository(db *gorm.DB) *PostingRepository {
	return &PostingRepository{db: db}
}

// GetByIdentity retrieves a posting by its (externalID, company) pair.
func (r *PostingRepository) GetByIdentity(ctx context.Context, externalID, company string) (*domain.Posting, error) {
	var posting domain.Posting
	if err := r.db.WithContext(ctx).
		First(&posting, "external_id = ? AND company = ?", externalID, company).Error; err != nil {
		return nil, err
	}
	return &posting, nil
}

// GetByIdentityFresh retrieves a posting by identity on a fresh session,
// bypassing any statement or session state accumulated on the shared handle.
// Used for conflict recovery after a lost insert race, where the row written
// by the competing writer must be visible.
func (r *PostingRepository) GetByIdentityFresh(ctx context.Context, externalID, company string) (*domain.Posting, error) {
	var posting domain.Posting
	fresh := r.db.Session(&gorm.Session{NewDB: true})
	if err := fresh.WithContext(ctx).
		First(&posting, "external_id = ? AND company = ?", externalID, company).Error; err != nil {
		return nil, err
	}
	return &posting, nil
}

// FindActiveDuplicate looks for an active posting with the same company,
// title, and location but a different external ID. Boards occasionally re-key
// the same real-world posting between cycles; this catches those.
func (r *PostingRepository) FindActiveDuplicate(ctx context.Context, company, title, location string) (*domain.Posting, error) {
	var posting domain.Posting
	if err := r.db.WithContext(ctx).
		First(&posting, "company = ? AND title = ? AND location = ? AND is_active = ?",
			company, title, location, true).Error; err != nil {
		return nil, err
	}
	return &posting, nil
}

// Save persists all fields of an already-loaded posting.
func (r *PostingRepository) Save(ctx context.Context, posting *domain.Posting) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(posting).Error
}

// CreateOrUpdate performs a single conditional write keyed on
// (external_id, company): it inserts the posting, or on conflict overwrites
// the mutable columns of the existing row. first_seen is deliberately excluded
// from the update set so the original sighting time survives re-ingestion,
// which also lets callers tell which branch won (see Upsert engine).
func (r *PostingRepository) CreateOrUpdate(ctx context.Context, posting *domain.Posting) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}, {Name: "company"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "location", "url", "date_posted", "employment_type",
				"description", "last_updated", "is_active", "raw_payload",
			}),
		}).Create(posting).Error
}

// AttachRole associates a role with a posting. Attaching an already-attached
// role is a no-op; associations accumulate and are never removed.
func (r *PostingRepository) AttachRole(ctx context.Context, posting *domain.Posting, role *domain.Role) error {
	if role == nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(posting).Association("Roles").Append(role); err != nil {
		return fmt.Errorf("failed to attach role %q to posting %d: %w", role.Name, posting.ID, err)
	}
	return nil
}

// ExpireStale deactivates every active posting for company whose external ID
// is not in activeIDs, and returns the number of rows transitioned. The caller
// is responsible for the empty-set guard; at this level an empty keep-list is
// rejected outright as a second line of defense against mass deactivation.
func (r *PostingRepository) ExpireStale(ctx context.Context, company string, activeIDs []string) (int64, error) {
	if len(activeIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Posting{}).
		Where("company = ? AND is_active = ? AND external_id NOT IN ?", company, true, activeIDs).
		Update("is_active", false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CountByActive counts postings by their active flag.
func (r *PostingRepository) CountByActive(ctx context.Context, active bool) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Posting{}).
		Where("is_active = ?", active).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetByID retrieves a posting by primary key, with roles preloaded.
func (r *PostingRepository) GetByID(ctx context.Context, id uint) (*domain.Posting, error) {
	var posting domain.Posting
	if err := r.db.WithContext(ctx).Preload("Roles").First(&posting, id).Error; err != nil {
		return nil, err
	}
	return &posting, nil
}

// ListFilter narrows List results. Zero values mean "no constraint" except
// ActiveOnly, which is explicit because the read API defaults to live rows.
type ListFilter struct {
	Company    string
	Role       string
	ActiveOnly bool
	PostedDays int
	Limit      int
	Offset     int
}

// List retrieves postings matching the filter, newest first.
func (r *PostingRepository) List(ctx context.Context, filter ListFilter) ([]domain.Posting, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Posting{})

	if filter.Company != "" {
		query = query.Where("company = ?", filter.Company)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.PostedDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -filter.PostedDays)
		query = query.Where("date_posted >= ?", cutoff)
	}
	if filter.Role != "" {
		query = query.
			Joins("JOIN posting_roles ON posting_roles.posting_id = postings.id").
			Joins("JOIN roles ON roles.id = posting_roles.role_id").
			Where("roles.name = ?", filter.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var postings []domain.Posting
	if err := query.
		Preload("Roles").
		Order("date_posted DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&postings).Error; err != nil {
		return nil, 0, err
	}
	return postings, total, nil
}

// CompanyCount pairs a company with its active posting count.
type CompanyCount struct {
	Company string `json:"company"`
	Count   int64  `json:"count"`
}

// CountActiveByCompany returns active posting counts per company, largest first.
func (r *PostingRepository) CountActiveByCompany(ctx context.Context) ([]CompanyCount, error) {
	var counts []CompanyCount
	if err := r.db.WithContext(ctx).Model(&domain.Posting{}).
		Select("company, COUNT(*) as count").
		Where("is_active = ?", true).
		Group("company").
		Order("count DESC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

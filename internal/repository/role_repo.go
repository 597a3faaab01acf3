package repository

import (
	"context"
	"errors"

	"github.com/marcusw/jobtrack/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository handles taxonomy role records. Role creation is reserved to
// the classifier; everything else reads.
type RoleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByName retrieves a role by its canonical name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.WithContext(ctx).First(&role, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// GetOrCreate returns the role with the given name, creating it if missing.
// The insert ignores a concurrent create of the same name and re-reads, so
// two classifiers racing on a new name converge on one row.
func (r *RoleRepository) GetOrCreate(ctx context.Context, name string) (*domain.Role, error) {
	role, err := r.GetByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &domain.Role{Name: name}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(created).Error; err != nil {
		return nil, err
	}
	if created.ID != 0 {
		return created, nil
	}
	return r.GetByName(ctx, name)
}

// ListNames returns every canonical role name, for classifier warm-up.
func (r *RoleRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&domain.Role{}).
		Order("name").
		Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// CountPostings returns role names with the number of postings carrying each,
// largest first.
func (r *RoleRepository) CountPostings(ctx context.Context) ([]domain.RoleCount, error) {
	var counts []domain.RoleCount
	if err := r.db.WithContext(ctx).Model(&domain.Role{}).
		Select("roles.name as role, COUNT(posting_roles.posting_id) as count").
		Joins("LEFT JOIN posting_roles ON posting_roles.role_id = roles.id").
		Group("roles.name").
		Order("count DESC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

package repository

import (
	"context"

	"secure_messaging_service/internal/messaging/domain"

	"gorm.io/gorm"
)

// PractitionerRepository read access to staff users
type PractitionerRepository interface {
	List(ctx context.Context) ([]domain.Practitioner, error)
	FindByID(ctx context.Context, id string) (*domain.Practitioner, error)
	// FindByIDs unknown ids are skipped
	FindByIDs(ctx context.Context, ids []string) ([]domain.Practitioner, error)
}

type practitionerRepository struct {
	db *gorm.DB
}

// NewPractitionerRepository create a PractitionerRepository
func NewPractitionerRepository(db *gorm.DB) PractitionerRepository {
	return &practitionerRepository{db: db}
}

func (r *practitionerRepository) List(ctx context.Context) ([]domain.Practitioner, error) {
	var ps []domain.Practitioner
	err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&ps).Error
	return ps, err
}

func (r *practitionerRepository) FindByID(ctx context.Context, id string) (*domain.Practitioner, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	var p domain.Practitioner
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *practitionerRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Practitioner, error) {
	var ps []domain.Practitioner
	ids = onlyValid(ids)
	if len(ids) == 0 {
		return ps, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&ps).Error
	return ps, err
}

package repository

import (
	"context"

	"secure_messaging_service/internal/messaging/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadRepository read receipts
type ReadRepository interface {
	// Upsert insert the receipt or refresh read_at of the existing one, ErrInvalidID when an id is not a uuid
	Upsert(ctx context.Context, read *domain.MessageRead) error
	// ListByMessage receipts of a message, earliest read first
	ListByMessage(ctx context.Context, messageID string) ([]domain.MessageRead, error)
	// ListByMessages receipts of several messages
	ListByMessages(ctx context.Context, messageIDs []string) ([]domain.MessageRead, error)
}

type readRepository struct {
	db *gorm.DB
}

// NewReadRepository create a ReadRepository
func NewReadRepository(db *gorm.DB) ReadRepository {
	return &readRepository{db: db}
}

func (r *readRepository) Upsert(ctx context.Context, read *domain.MessageRead) error {
	if !validID(read.MessageID) || !validID(read.UserID) {
		return ErrInvalidID
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at"}),
	}).Create(read).Error
}

func (r *readRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.MessageRead, error) {
	var reads []domain.MessageRead
	if !validID(messageID) {
		return reads, nil
	}
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC, user_id ASC").
		Find(&reads).Error
	return reads, err
}

func (r *readRepository) ListByMessages(ctx context.Context, messageIDs []string) ([]domain.MessageRead, error) {
	var reads []domain.MessageRead
	messageIDs = onlyValid(messageIDs)
	if len(messageIDs) == 0 {
		return reads, nil
	}
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("read_at ASC").
		Find(&reads).Error
	return reads, err
}

package repository

import (
	"context"
	"time"

	"secure_messaging_service/internal/messaging/domain"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRepository threads and their participant rows
type ThreadRepository interface {
	// CreateThread insert the thread and one participant row per id in one transaction,
	// ErrInvalidID when an id is not a uuid
	CreateThread(ctx context.Context, thread *domain.Thread, participantIDs []string) error
	FindByID(ctx context.Context, threadID string) (*domain.Thread, error)
	// ListByParticipant threads of userID, newest last_message_at first
	ListByParticipant(ctx context.Context, userID string) ([]domain.Thread, error)
	IsParticipant(ctx context.Context, threadID, userID string) (bool, error)
	ParticipantIDs(ctx context.Context, threadID string) ([]string, error)
	// ParticipantsOf participant ids keyed by thread id
	ParticipantsOf(ctx context.Context, threadIDs []string) (map[string][]string, error)
	// AddParticipants insert the ids not yet present and return them, ErrInvalidID when an id is not a uuid
	AddParticipants(ctx context.Context, threadID string, ids []string) ([]string, error)
	// RemoveParticipant delete targetID and return the remaining ids
	RemoveParticipant(ctx context.Context, threadID, targetID string) ([]string, error)
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository create a ThreadRepository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) CreateThread(ctx context.Context, thread *domain.Thread, participantIDs []string) error {
	if !validID(thread.ID) || !validIDs(participantIDs) || (thread.ClientID != nil && !validID(*thread.ClientID)) {
		return ErrInvalidID
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(thread).Error; err != nil {
			return err
		}
		rows := participantRows(thread.ID, participantIDs, thread.CreatedAt)
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

func (r *threadRepository) FindByID(ctx context.Context, threadID string) (*domain.Thread, error) {
	if !validID(threadID) {
		return nil, ErrNotFound
	}
	var t domain.Thread
	if err := r.db.WithContext(ctx).First(&t, "id = ?", threadID).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *threadRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Thread, error) {
	var threads []domain.Thread
	if !validID(userID) {
		return threads, nil
	}
	err := r.db.WithContext(ctx).
		Joins("JOIN thread_participants tp ON tp.thread_id = threads.id").
		Where("tp.practitioner_id = ?", userID).
		Order("threads.last_message_at DESC NULLS LAST").
		Order("threads.created_at DESC").
		Find(&threads).Error
	return threads, err
}

func (r *threadRepository) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	if !validID(threadID) || !validID(userID) {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ThreadParticipant{}).
		Where("thread_id = ? AND practitioner_id = ?", threadID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *threadRepository) ParticipantIDs(ctx context.Context, threadID string) ([]string, error) {
	var ids []string
	if !validID(threadID) {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&domain.ThreadParticipant{}).
		Where("thread_id = ?", threadID).
		Order("joined_at, practitioner_id").
		Pluck("practitioner_id", &ids).Error
	return ids, err
}

func (r *threadRepository) ParticipantsOf(ctx context.Context, threadIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(threadIDs))
	threadIDs = onlyValid(threadIDs)
	if len(threadIDs) == 0 {
		return out, nil
	}

	var rows []domain.ThreadParticipant
	err := r.db.WithContext(ctx).
		Where("thread_id IN ?", threadIDs).
		Order("joined_at, practitioner_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ThreadID] = append(out[row.ThreadID], row.PractitionerID)
	}
	return out, nil
}

func (r *threadRepository) AddParticipants(ctx context.Context, threadID string, ids []string) ([]string, error) {
	if !validID(threadID) {
		return nil, ErrNotFound
	}
	if !validIDs(ids) {
		return nil, ErrInvalidID
	}
	var added []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&domain.ThreadParticipant{}).
			Where("thread_id = ?", threadID).
			Pluck("practitioner_id", &existing).Error; err != nil {
			return err
		}

		added, _ = lo.Difference(lo.Uniq(ids), existing)
		if len(added) == 0 {
			return nil
		}

		rows := participantRows(threadID, added, time.Now().UTC())
		// a concurrent add of the same id is a no-op, not an error
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (r *threadRepository) RemoveParticipant(ctx context.Context, threadID, targetID string) ([]string, error) {
	if !validID(threadID) {
		return nil, ErrNotFound
	}
	if !validID(targetID) {
		return nil, ErrNotParticipant
	}
	var remaining []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []domain.ThreadParticipant
		// 鎖住參與者列，避免並發移除後人數變成 0
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("thread_id = ?", threadID).
			Order("joined_at, practitioner_id").
			Find(&rows).Error; err != nil {
			return err
		}

		if len(rows) <= 1 {
			return ErrLastParticipant
		}
		ids := lo.Map(rows, func(p domain.ThreadParticipant, _ int) string { return p.PractitionerID })
		if !lo.Contains(ids, targetID) {
			return ErrNotParticipant
		}

		if err := tx.Where("thread_id = ? AND practitioner_id = ?", threadID, targetID).
			Delete(&domain.ThreadParticipant{}).Error; err != nil {
			return err
		}
		remaining = lo.Without(ids, targetID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

func participantRows(threadID string, ids []string, joinedAt time.Time) []domain.ThreadParticipant {
	return lo.Map(ids, func(id string, _ int) domain.ThreadParticipant {
		return domain.ThreadParticipant{ThreadID: threadID, PractitionerID: id, JoinedAt: joinedAt}
	})
}

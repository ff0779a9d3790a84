package repository

import (
	"context"

	"secure_messaging_service/internal/messaging/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository encrypted messages
type MessageRepository interface {
	// CreateMessage insert msg and bump the thread last_message_at in one transaction
	CreateMessage(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// ListByThread messages of a thread, oldest first
	ListByThread(ctx context.Context, threadID string) ([]domain.Message, error)
	// LatestMessages newest message of each thread in one query, empty threads are absent
	LatestMessages(ctx context.Context, threadIDs []string) (map[string]domain.Message, error)
	// CountUnread messages from others without a read receipt of userID, per thread
	CountUnread(ctx context.Context, userID string) ([]domain.UnreadCount, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository create a MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if !validID(msg.ThreadID) {
		return ErrNotFound
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(msg).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.Thread{}).
			Where("id = ?", msg.ThreadID).
			Update("last_message_at", msg.Timestamp)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *messageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	if !validID(messageID) {
		return nil, ErrNotFound
	}
	var m domain.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", messageID).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if !validID(threadID) {
		return msgs, nil
	}
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("timestamp ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) LatestMessages(ctx context.Context, threadIDs []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(threadIDs))
	threadIDs = onlyValid(threadIDs)
	if len(threadIDs) == 0 {
		return out, nil
	}

	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (thread_id) * FROM messages
			WHERE thread_id IN ?
			ORDER BY thread_id, timestamp DESC, id DESC`, threadIDs).
		Scan(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ThreadID] = m
	}
	return out, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, userID string) ([]domain.UnreadCount, error) {
	var out []domain.UnreadCount
	if !validID(userID) {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.thread_id AS thread_id, COUNT(*) AS unread_count").
		Joins("JOIN thread_participants tp ON tp.thread_id = m.thread_id AND tp.practitioner_id = ?", userID).
		Joins("LEFT JOIN message_reads mr ON mr.message_id = m.id AND mr.user_id = ?", userID).
		Where("m.sender_id <> ? AND mr.message_id IS NULL", userID).
		Group("m.thread_id").
		Order("MAX(m.timestamp) DESC").
		Scan(&out).Error
	return out, err
}

package domain

import "time"

// Message stored message, Content is ciphertext
type Message struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	ThreadID  string    `gorm:"type:uuid;not null;index:idx_messages_thread_ts,priority:1"`
	SenderID  string    `gorm:"type:uuid;not null"`
	ClientID  *string   `gorm:"type:uuid"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_messages_thread_ts,priority:2"`

	Reads []MessageRead `gorm:"constraint:OnDelete:CASCADE"`
}

// MessageRead read receipt, one row per (message, user)
type MessageRead struct {
	MessageID string    `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"type:uuid;primaryKey"`
	ReadAt    time.Time `gorm:"not null"`
}

// MessageView message with plaintext content as returned to participants
type MessageView struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	ThreadID  string    `json:"threadId"`
	ClientID  *string   `json:"clientId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sender    *UserRef  `json:"sender"`
}

// Reader one read receipt with the reader identity
type Reader struct {
	User   UserRef   `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

// AccessLog one audit entry per message handed to a participant
type AccessLog struct {
	MessageID  string    `bson:"message_id"`
	ThreadID   string    `bson:"thread_id"`
	UserID     string    `bson:"user_id"`
	AccessedAt time.Time `bson:"accessed_at"`
}

package domain

import "time"

// Practitioner staff user, read only for the messaging core
type Practitioner struct {
	ID    string `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string `gorm:"not null;index" json:"name"`
	Email string `gorm:"not null" json:"email"`
}

// Thread 對話容器
type Thread struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID      *string    `gorm:"type:uuid" json:"clientId"`
	CreatedAt     time.Time  `gorm:"not null" json:"createdAt"`
	LastMessageAt *time.Time `gorm:"index" json:"lastMessageAt"`

	Participants []ThreadParticipant `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Messages     []Message           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// ThreadParticipant membership of a practitioner in a thread
type ThreadParticipant struct {
	ThreadID       string    `gorm:"type:uuid;primaryKey" json:"threadId"`
	PractitionerID string    `gorm:"type:uuid;primaryKey" json:"practitionerId"`
	JoinedAt       time.Time `gorm:"not null" json:"joinedAt"`
}

// UserRef identity shown next to messages and read receipts
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ref identity of p
func (p Practitioner) Ref() UserRef {
	return UserRef{ID: p.ID, Name: p.Name, Email: p.Email}
}

// ThreadSummary inbox row
type ThreadSummary struct {
	ID            string       `json:"id"`
	ClientID      *string      `json:"clientId"`
	CreatedAt     time.Time    `json:"createdAt"`
	LastMessageAt *time.Time   `json:"lastMessageAt"`
	LatestMessage *MessageView `json:"latestMessage"`
	// Seen every participant other than its sender has read LatestMessage
	Seen          bool         `json:"seen"`
	Participants  []UserRef    `json:"participants"`
}

// UnreadCount unread messages of one thread for one user
type UnreadCount struct {
	ThreadID    string `json:"threadId"`
	UnreadCount int64  `json:"unreadCount"`
}

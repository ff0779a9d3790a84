package app

import (
	"context"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"
	errprocess "secure_messaging_service/pkg/err"
)

// ReadUseCase read receipts
type ReadUseCase struct {
	threads       repository.ThreadRepository
	messages      repository.MessageRepository
	reads         repository.ReadRepository
	practitioners repository.PractitionerRepository
	pub           Publisher
}

// NewReadUseCase init read receipt use case
func NewReadUseCase(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	reads repository.ReadRepository,
	practitioners repository.PractitionerRepository,
	pub Publisher,
) *ReadUseCase {
	return &ReadUseCase{
		threads:       threads,
		messages:      messages,
		reads:         reads,
		practitioners: practitioners,
		pub:           pub,
	}
}

// authorize load the message and check the caller belongs to its thread
func (uc *ReadUseCase) authorize(ctx context.Context, callerID, messageID string) (*domain.Message, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, errprocess.Validation("messageId is required")
	}
	msg, err := uc.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, lookupErr("message", err)
	}
	if err := requireParticipant(ctx, uc.threads, msg.ThreadID, callerID); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkMessageRead upsert the caller's receipt and notify every participant
func (uc *ReadUseCase) MarkMessageRead(ctx context.Context, callerID, messageID string) (*domain.Reader, error) {
	msg, err := uc.authorize(ctx, callerID, messageID)
	if err != nil {
		return nil, err
	}

	read := &domain.MessageRead{MessageID: msg.ID, UserID: callerID, ReadAt: now()}
	if err := uc.reads.Upsert(ctx, read); err != nil {
		return nil, internal("mark read", err)
	}

	users, err := resolveUsers(ctx, uc.practitioners, []string{callerID})
	if err != nil {
		return nil, err
	}
	reader := &domain.Reader{User: users[callerID], ReadAt: read.ReadAt}

	participants, err := uc.threads.ParticipantIDs(ctx, msg.ThreadID)
	if err != nil {
		return nil, internal("list participants", err)
	}
	fanOut(ctx, uc.pub, participants, domain.EventMessageRead, domain.MessageReadPayload{
		ThreadID:  msg.ThreadID,
		MessageID: msg.ID,
		User:      reader.User,
		ReadAt:    reader.ReadAt,
	})
	return reader, nil
}

// ListReaders receipts of a message, earliest first
func (uc *ReadUseCase) ListReaders(ctx context.Context, callerID, messageID string) ([]domain.Reader, error) {
	if _, err := uc.authorize(ctx, callerID, messageID); err != nil {
		return nil, err
	}

	reads, err := uc.reads.ListByMessage(ctx, messageID)
	if err != nil {
		return nil, internal("list readers", err)
	}
	ids := make([]string, len(reads))
	for i, r := range reads {
		ids[i] = r.UserID
	}
	users, err := resolveUsers(ctx, uc.practitioners, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Reader, 0, len(reads))
	for _, r := range reads {
		out = append(out, domain.Reader{User: users[r.UserID], ReadAt: r.ReadAt})
	}
	return out, nil
}

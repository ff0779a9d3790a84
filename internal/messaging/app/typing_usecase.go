package app

import (
	"context"
	"errors"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"
	errprocess "secure_messaging_service/pkg/err"

	"github.com/samber/lo"
)

// TypingUseCase ephemeral typing indicator, nothing is stored
type TypingUseCase struct {
	threads       repository.ThreadRepository
	practitioners repository.PractitionerRepository
	pub           Publisher
}

// NewTypingUseCase init typing use case
func NewTypingUseCase(threads repository.ThreadRepository, practitioners repository.PractitionerRepository, pub Publisher) *TypingUseCase {
	return &TypingUseCase{threads: threads, practitioners: practitioners, pub: pub}
}

// Typing tell the other participants of threadID that the caller is typing.
// Only participants may emit it.
func (uc *TypingUseCase) Typing(ctx context.Context, callerID, threadID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if threadID == "" {
		return errprocess.Validation("threadId is required")
	}
	if err := requireParticipant(ctx, uc.threads, threadID, callerID); err != nil {
		return err
	}

	participants, err := uc.threads.ParticipantIDs(ctx, threadID)
	if err != nil {
		return internal("list participants", err)
	}
	name := ""
	p, err := uc.practitioners.FindByID(ctx, callerID)
	switch {
	case err == nil:
		name = p.Name
	case !errors.Is(err, repository.ErrNotFound):
		return internal("load practitioner", err)
	}

	fanOut(ctx, uc.pub, lo.Without(participants, callerID), domain.EventTyping, domain.TypingPayload{
		ThreadID: threadID,
		UserID:   callerID,
		Name:     name,
	})
	return nil
}

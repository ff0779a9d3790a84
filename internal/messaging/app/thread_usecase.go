package app

import (
	"context"
	"errors"
	"strings"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"
	errprocess "secure_messaging_service/pkg/err"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ThreadUseCase thread and participant management
type ThreadUseCase struct {
	threads       repository.ThreadRepository
	messages      repository.MessageRepository
	reads         repository.ReadRepository
	practitioners repository.PractitionerRepository
	codec         Codec
	pub           Publisher
}

// NewThreadUseCase init thread use case
func NewThreadUseCase(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	reads repository.ReadRepository,
	practitioners repository.PractitionerRepository,
	codec Codec,
	pub Publisher,
) *ThreadUseCase {
	return &ThreadUseCase{
		threads:       threads,
		messages:      messages,
		reads:         reads,
		practitioners: practitioners,
		codec:         codec,
		pub:           pub,
	}
}

// normalizeParticipants trim, drop empties, dedupe and put callerID first exactly once
func normalizeParticipants(callerID string, ids []string) []string {
	cleaned := lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		id = strings.TrimSpace(id)
		return id, id != "" && id != callerID
	})
	return append([]string{callerID}, lo.Uniq(cleaned)...)
}

// CreateThread create a thread whose participants are the caller plus participantIDs
func (uc *ThreadUseCase) CreateThread(ctx context.Context, callerID string, participantIDs []string, clientID *string) (*domain.Thread, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	thread := &domain.Thread{
		ID:        uuid.NewString(),
		ClientID:  optional(clientID),
		CreatedAt: now(),
	}
	if err := uc.threads.CreateThread(ctx, thread, normalizeParticipants(callerID, participantIDs)); err != nil {
		return nil, writeErr("create thread", err)
	}
	return thread, nil
}

// ListThreads threads of the caller, most recent activity first
func (uc *ThreadUseCase) ListThreads(ctx context.Context, callerID string) ([]domain.ThreadSummary, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}

	threads, err := uc.threads.ListByParticipant(ctx, callerID)
	if err != nil {
		return nil, internal("list threads", err)
	}

	ids := lo.Map(threads, func(t domain.Thread, _ int) string { return t.ID })
	roster, err := uc.threads.ParticipantsOf(ctx, ids)
	if err != nil {
		return nil, internal("list participants", err)
	}
	users, err := resolveUsers(ctx, uc.practitioners, lo.Flatten(lo.Values(roster)))
	if err != nil {
		return nil, err
	}

	latest, err := uc.messages.LatestMessages(ctx, ids)
	if err != nil {
		return nil, internal("latest messages", err)
	}
	latestIDs := lo.MapToSlice(latest, func(_ string, m domain.Message) string { return m.ID })
	receipts, err := uc.reads.ListByMessages(ctx, latestIDs)
	if err != nil {
		return nil, internal("list receipts", err)
	}
	readers := lo.GroupBy(receipts, func(r domain.MessageRead) string { return r.MessageID })

	out := make([]domain.ThreadSummary, 0, len(threads))
	for _, t := range threads {
		summary := domain.ThreadSummary{
			ID:            t.ID,
			ClientID:      t.ClientID,
			CreatedAt:     t.CreatedAt,
			LastMessageAt: t.LastMessageAt,
			Participants: lo.Map(roster[t.ID], func(id string, _ int) domain.UserRef {
				return users[id]
			}),
		}

		if m, ok := latest[t.ID]; ok {
			view, err := decrypt(uc.codec, m)
			if err != nil {
				return nil, err
			}
			summary.LatestMessage = &view
			summary.Seen = domain.Seen(&view, roster[t.ID], lo.Map(readers[m.ID], func(r domain.MessageRead, _ int) domain.Reader {
				return domain.Reader{User: domain.UserRef{ID: r.UserID}, ReadAt: r.ReadAt}
			}))
		}
		out = append(out, summary)
	}
	return out, nil
}

// AddParticipants add the ids not yet in the thread and return them
func (uc *ThreadUseCase) AddParticipants(ctx context.Context, callerID, threadID string, ids []string) ([]string, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if threadID == "" {
		return nil, errprocess.Validation("threadId is required")
	}
	if err := requireParticipant(ctx, uc.threads, threadID, callerID); err != nil {
		return nil, err
	}

	cleaned := lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })))
	added, err := uc.threads.AddParticipants(ctx, threadID, cleaned)
	if err != nil {
		return nil, writeErr("add participants", err)
	}

	current, err := uc.threads.ParticipantIDs(ctx, threadID)
	if err != nil {
		return nil, internal("list participants", err)
	}
	fanOut(ctx, uc.pub, current, domain.EventThreadParticipants, domain.ParticipantsPayload{
		ThreadID:       threadID,
		ParticipantIDs: current,
	})

	if added == nil {
		added = []string{}
	}
	return added, nil
}

// RemoveParticipant remove targetID; a thread never drops below one participant
func (uc *ThreadUseCase) RemoveParticipant(ctx context.Context, callerID, threadID, targetID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if threadID == "" || targetID == "" {
		return errprocess.Validation("threadId and practitionerId are required")
	}
	if err := requireParticipant(ctx, uc.threads, threadID, callerID); err != nil {
		return err
	}

	remaining, err := uc.threads.RemoveParticipant(ctx, threadID, targetID)
	switch {
	case errors.Is(err, repository.ErrLastParticipant):
		return errprocess.Validation(repository.ErrLastParticipant.Error())
	case errors.Is(err, repository.ErrNotParticipant):
		return errprocess.NotFound("participant not found")
	case err != nil:
		return internal("remove participant", err)
	}

	// the removed user also learns it left the thread
	fanOut(ctx, uc.pub, append(remaining, targetID), domain.EventThreadParticipants, domain.ParticipantsPayload{
		ThreadID:       threadID,
		ParticipantIDs: remaining,
	})
	return nil
}

// ListPractitioners every practitioner, for participant pickers
func (uc *ThreadUseCase) ListPractitioners(ctx context.Context) ([]domain.UserRef, error) {
	ps, err := uc.practitioners.List(ctx)
	if err != nil {
		return nil, internal("list practitioners", err)
	}
	return lo.Map(ps, func(p domain.Practitioner, _ int) domain.UserRef { return p.Ref() }), nil
}

package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"
	errprocess "secure_messaging_service/pkg/err"
	"secure_messaging_service/pkg/logger"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Publisher fan-out of one event to the room of one user
type Publisher interface {
	Publish(ctx context.Context, userID string, event domain.Event, payload any) error
}

var (
	clockMu sync.Mutex
	lastNow time.Time
)

// now message and receipt timestamps: postgres keeps microseconds, and two
// sends in the same microsecond must still order
func now() time.Time {
	clockMu.Lock()
	defer clockMu.Unlock()
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(lastNow) {
		t = lastNow.Add(time.Microsecond)
	}
	lastNow = t
	return t
}

func requireCaller(callerID string) error {
	if callerID == "" {
		return errprocess.Unauthorized("missing caller identity")
	}
	return nil
}

// requireParticipant membership is re-read on every call, never cached
func requireParticipant(ctx context.Context, threads repository.ThreadRepository, threadID, callerID string) error {
	ok, err := threads.IsParticipant(ctx, threadID, callerID)
	if err != nil {
		return internal("check participant", err)
	}
	if !ok {
		return errprocess.Forbidden("not a participant of this thread")
	}
	return nil
}

// fanOut publish to every room in userIDs; failures never fail the operation
func fanOut(ctx context.Context, pub Publisher, userIDs []string, event domain.Event, payload any) {
	if pub == nil {
		return
	}
	for _, id := range lo.Uniq(userIDs) {
		if err := pub.Publish(ctx, id, event, payload); err != nil {
			logger.Log.Warn("publish failed", zap.String("event", string(event)), zap.String("userID", id), zap.Error(err))
		}
	}
}

// resolveUsers identity of each id; ids without a practitioner row keep an empty name and email
func resolveUsers(ctx context.Context, practitioners repository.PractitionerRepository, ids []string) (map[string]domain.UserRef, error) {
	ids = lo.Uniq(ids)
	ps, err := practitioners.FindByIDs(ctx, ids)
	if err != nil {
		return nil, internal("load practitioners", err)
	}
	users := lo.SliceToMap(ps, func(p domain.Practitioner) (string, domain.UserRef) { return p.ID, p.Ref() })
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			users[id] = domain.UserRef{ID: id}
		}
	}
	return users, nil
}

// decrypt ciphertext of m into a view
func decrypt(codec Codec, m domain.Message) (domain.MessageView, error) {
	plain, err := codec.Decrypt(m.Content)
	if err != nil {
		logger.Log.Error("decrypt message", zap.String("messageID", m.ID), zap.String("threadID", m.ThreadID), zap.Error(err))
		return domain.MessageView{}, errprocess.Crypto("cannot decrypt message", err)
	}
	return domain.MessageView{
		ID:        m.ID,
		SenderID:  m.SenderID,
		ThreadID:  m.ThreadID,
		ClientID:  m.ClientID,
		Content:   plain,
		Timestamp: m.Timestamp,
	}, nil
}

func internal(op string, err error) error {
	logger.Log.Error(op, zap.Error(err))
	return errprocess.Internal(op, err)
}

// writeErr ids the store rejects as malformed are the caller's fault
func writeErr(op string, err error) error {
	if errors.Is(err, repository.ErrInvalidID) {
		return errprocess.Validation("ids must be uuids")
	}
	return internal(op, err)
}

func lookupErr(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errprocess.NotFound(what + " not found")
	}
	return internal("load "+what, err)
}

func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

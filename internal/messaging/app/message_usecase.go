package app

import (
	"context"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"
	errprocess "secure_messaging_service/pkg/err"
	"secure_messaging_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MessageUseCase 負責處理聊天訊息
type MessageUseCase struct {
	threads       repository.ThreadRepository
	messages      repository.MessageRepository
	practitioners repository.PractitionerRepository
	accessLogs    repository.AccessLogRepository
	codec         Codec
	pub           Publisher
}

// NewMessageUseCase init message use case, accessLogs may be nil
func NewMessageUseCase(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	practitioners repository.PractitionerRepository,
	accessLogs repository.AccessLogRepository,
	codec Codec,
	pub Publisher,
) *MessageUseCase {
	return &MessageUseCase{
		threads:       threads,
		messages:      messages,
		practitioners: practitioners,
		accessLogs:    accessLogs,
		codec:         codec,
		pub:           pub,
	}
}

// SendMessage encrypt and store content, then notify every participant with the plaintext
func (uc *MessageUseCase) SendMessage(ctx context.Context, callerID, threadID, content string, clientID *string) (*domain.MessageView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if threadID == "" || content == "" {
		return nil, errprocess.Validation("threadId and content are required")
	}

	// 1. 檢查 thread 是否存在
	if _, err := uc.threads.FindByID(ctx, threadID); err != nil {
		return nil, lookupErr("thread", err)
	}
	if err := requireParticipant(ctx, uc.threads, threadID, callerID); err != nil {
		return nil, err
	}

	// 2. 加密後寫入，同一交易內更新 last_message_at
	ciphertext, err := uc.codec.Encrypt(content)
	if err != nil {
		return nil, internal("encrypt message", err)
	}
	msg := &domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		SenderID:  callerID,
		ClientID:  optional(clientID),
		Content:   ciphertext,
		Timestamp: now(),
	}
	if err := uc.messages.CreateMessage(ctx, msg); err != nil {
		return nil, lookupErr("thread", err)
	}

	view := domain.MessageView{
		ID:        msg.ID,
		SenderID:  msg.SenderID,
		ThreadID:  msg.ThreadID,
		ClientID:  msg.ClientID,
		Content:   content,
		Timestamp: msg.Timestamp,
	}
	// the message is stored, a missing sender identity only degrades the view
	if sender, err := resolveUsers(ctx, uc.practitioners, []string{callerID}); err != nil {
		logger.Log.Warn("resolve sender", zap.String("messageID", msg.ID), zap.String("userID", callerID), zap.Error(err))
	} else {
		ref := sender[callerID]
		view.Sender = &ref
	}

	// 3. commit 之後才推播給所有參與者
	participants, err := uc.threads.ParticipantIDs(ctx, threadID)
	if err != nil {
		logger.Log.Warn("load participants for fan-out", zap.String("threadID", threadID), zap.Error(err))
		return &view, nil
	}
	fanOut(ctx, uc.pub, participants, domain.EventMessageNew, domain.MessageNewPayload{
		ThreadID: threadID,
		Message:  view,
	})
	return &view, nil
}

// ListMessages decrypted messages of a thread, oldest first; each returned message is access-logged
func (uc *MessageUseCase) ListMessages(ctx context.Context, callerID, threadID string) ([]domain.MessageView, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, uc.threads, threadID, callerID); err != nil {
		return nil, err
	}

	msgs, err := uc.messages.ListByThread(ctx, threadID)
	if err != nil {
		return nil, internal("list messages", err)
	}

	senders, err := resolveUsers(ctx, uc.practitioners, lo.Map(msgs, func(m domain.Message, _ int) string { return m.SenderID }))
	if err != nil {
		return nil, err
	}

	views := make([]domain.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view, err := decrypt(uc.codec, m)
		if err != nil {
			return nil, err
		}
		sender := senders[m.SenderID]
		view.Sender = &sender
		views = append(views, view)
	}

	uc.recordAccess(ctx, callerID, threadID, views)
	return views, nil
}

func (uc *MessageUseCase) recordAccess(ctx context.Context, callerID, threadID string, views []domain.MessageView) {
	if uc.accessLogs == nil || len(views) == 0 {
		return
	}
	at := now()
	logs := lo.Map(views, func(v domain.MessageView, _ int) domain.AccessLog {
		return domain.AccessLog{MessageID: v.ID, ThreadID: threadID, UserID: callerID, AccessedAt: at}
	})
	if err := uc.accessLogs.InsertMany(ctx, logs); err != nil {
		logger.Log.Warn("record message access", zap.String("threadID", threadID), zap.String("userID", callerID), zap.Error(err))
	}
}

// UnreadCounts per thread, messages from others the caller has not read
func (uc *MessageUseCase) UnreadCounts(ctx context.Context, callerID string) ([]domain.UnreadCount, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	counts, err := uc.messages.CountUnread(ctx, callerID)
	if err != nil {
		return nil, internal("count unread", err)
	}
	if counts == nil {
		counts = []domain.UnreadCount{}
	}
	return counts, nil
}

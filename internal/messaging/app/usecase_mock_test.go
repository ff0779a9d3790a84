package app

import (
	"context"
	"sync"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"

	"github.com/stretchr/testify/mock"
)

// MockThreadRepository Mock ThreadRepository
type MockThreadRepository struct {
	mock.Mock
}

func (m *MockThreadRepository) CreateThread(ctx context.Context, thread *domain.Thread, participantIDs []string) error {
	args := m.Called(ctx, thread, participantIDs)
	return args.Error(0)
}

func (m *MockThreadRepository) FindByID(ctx context.Context, threadID string) (*domain.Thread, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Thread), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThreadRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Thread, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Thread), args.Error(1)
}

func (m *MockThreadRepository) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	args := m.Called(ctx, threadID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockThreadRepository) ParticipantIDs(ctx context.Context, threadID string) ([]string, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThreadRepository) ParticipantsOf(ctx context.Context, threadIDs []string) (map[string][]string, error) {
	args := m.Called(ctx, threadIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string][]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThreadRepository) AddParticipants(ctx context.Context, threadID string, ids []string) ([]string, error) {
	args := m.Called(ctx, threadID, ids)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThreadRepository) RemoveParticipant(ctx context.Context, threadID, targetID string) ([]string, error) {
	args := m.Called(ctx, threadID, targetID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) CreateMessage(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	args := m.Called(ctx, threadID)
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockMessageRepository) LatestMessages(ctx context.Context, threadIDs []string) (map[string]domain.Message, error) {
	args := m.Called(ctx, threadIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) CountUnread(ctx context.Context, userID string) ([]domain.UnreadCount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.UnreadCount), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockReadRepository Mock ReadRepository
type MockReadRepository struct {
	mock.Mock
}

func (m *MockReadRepository) Upsert(ctx context.Context, read *domain.MessageRead) error {
	args := m.Called(ctx, read)
	return args.Error(0)
}

func (m *MockReadRepository) ListByMessage(ctx context.Context, messageID string) ([]domain.MessageRead, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).([]domain.MessageRead), args.Error(1)
}

func (m *MockReadRepository) ListByMessages(ctx context.Context, messageIDs []string) ([]domain.MessageRead, error) {
	args := m.Called(ctx, messageIDs)
	return args.Get(0).([]domain.MessageRead), args.Error(1)
}

// MockPractitionerRepository Mock PractitionerRepository
type MockPractitionerRepository struct {
	mock.Mock
}

func (m *MockPractitionerRepository) List(ctx context.Context) ([]domain.Practitioner, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Practitioner), args.Error(1)
}

func (m *MockPractitionerRepository) FindByID(ctx context.Context, id string) (*domain.Practitioner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Practitioner), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPractitionerRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Practitioner, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]domain.Practitioner), args.Error(1)
}

// MockAccessLogRepository Mock AccessLogRepository
type MockAccessLogRepository struct {
	mock.Mock
}

func (m *MockAccessLogRepository) InsertMany(ctx context.Context, logs []domain.AccessLog) error {
	args := m.Called(ctx, logs)
	return args.Error(0)
}

func (m *MockAccessLogRepository) FindByMessage(ctx context.Context, messageID string) ([]domain.AccessLog, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).([]domain.AccessLog), args.Error(1)
}

// published one captured Publish call
type published struct {
	UserID  string
	Event   domain.Event
	Payload any
}

// fakePublisher captures every event instead of writing to sockets
type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, userID string, event domain.Event, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{UserID: userID, Event: event, Payload: payload})
	return p.err
}

// recipients users that received event, in publish order
func (p *fakePublisher) recipients(event domain.Event) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.Event == event {
			out = append(out, e.UserID)
		}
	}
	return out
}

func (p *fakePublisher) last(event domain.Event) (published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Event == event {
			return p.events[i], true
		}
	}
	return published{}, false
}

func (p *fakePublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func errNotFound() error { return repository.ErrNotFound }

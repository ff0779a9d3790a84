package client

import (
	"context"
	"sync"
	"time"

	"secure_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/mock"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]domain.ThreadSummary)
	return out, args.Error(1)
}

func (m *mockAPI) ListMessages(ctx context.Context, threadID string) ([]domain.MessageView, error) {
	args := m.Called(ctx, threadID)
	out, _ := args.Get(0).([]domain.MessageView)
	return out, args.Error(1)
}

func (m *mockAPI) ListReaders(ctx context.Context, messageID string) ([]domain.Reader, error) {
	args := m.Called(ctx, messageID)
	out, _ := args.Get(0).([]domain.Reader)
	return out, args.Error(1)
}

func (m *mockAPI) MarkRead(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *mockAPI) SendMessage(ctx context.Context, threadID, content string) (*domain.MessageView, error) {
	args := m.Called(ctx, threadID, content)
	out, _ := args.Get(0).(*domain.MessageView)
	return out, args.Error(1)
}

// fakeClock fires AfterFunc callbacks only from Advance
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

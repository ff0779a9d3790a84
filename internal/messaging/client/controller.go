package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/pkg/logger"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// State of the controller
type State string

const (
	StateNoThread State = "no-thread-selected"
	StateLoading  State = "thread-loading"
	StateReady    State = "thread-ready"
)

// TypingTTL how long a typing indicator stays up without a fresh event
const TypingTTL = 3 * time.Second

// Notification new message in a thread that is not on screen
type Notification struct {
	ThreadID string
	Message  domain.MessageView
}

type typingEntry struct {
	name  string
	gen   uint64
	timer Timer
}

// Controller session state of one signed-in practitioner.
//
// REST is authoritative: socket events only trigger re-fetches, except
// read receipts and typing which are applied locally.
type Controller struct {
	userID string
	api    API
	clock  Clock
	notify func(Notification)

	mu        sync.Mutex
	state     State
	activeID  string
	loadSeq   uint64
	dirty     bool
	threads   []domain.ThreadSummary
	messages  []domain.MessageView
	readers   []domain.Reader
	typing    map[string]*typingEntry
	typingGen uint64
}

// NewController clock nil means RealClock, notify may be nil
func NewController(userID string, api API, clock Clock, notify func(Notification)) *Controller {
	if clock == nil {
		clock = RealClock()
	}
	if notify == nil {
		notify = func(Notification) {}
	}
	return &Controller{
		userID: userID,
		api:    api,
		clock:  clock,
		notify: notify,
		state:  StateNoThread,
		typing: make(map[string]*typingEntry),
	}
}

// State current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveThread id of the selected thread, empty when none
func (c *Controller) ActiveThread() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Threads last fetched inbox
func (c *Controller) Threads() []domain.ThreadSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ThreadSummary(nil), c.threads...)
}

// Messages of the active thread
func (c *Controller) Messages() []domain.MessageView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.MessageView(nil), c.messages...)
}

// Typing names of the users currently typing in the active thread, sorted
func (c *Controller) Typing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := lo.MapToSlice(c.typing, func(_ string, e *typingEntry) string { return e.name })
	sort.Strings(names)
	return names
}

// Seen whether every other participant of the active thread read its latest message
func (c *Controller) Seen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || len(c.messages) == 0 {
		return false
	}
	latest := c.messages[len(c.messages)-1]
	return domain.Seen(&latest, c.participantIDsLocked(c.activeID), c.readers)
}

func (c *Controller) participantIDsLocked(threadID string) []string {
	t, ok := lo.Find(c.threads, func(t domain.ThreadSummary) bool { return t.ID == threadID })
	if !ok {
		return nil
	}
	return lo.Map(t.Participants, func(u domain.UserRef, _ int) string { return u.ID })
}

// RefreshThreads reload the inbox
func (c *Controller) RefreshThreads(ctx context.Context) error {
	threads, err := c.api.ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}
	c.mu.Lock()
	c.threads = threads
	c.mu.Unlock()
	return nil
}

// SelectThread open threadID: thread-loading until its messages arrive, then thread-ready
func (c *Controller) SelectThread(ctx context.Context, threadID string) error {
	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.state = StateLoading
	c.activeID = threadID
	c.dirty = false
	c.messages = nil
	c.readers = nil
	c.clearTypingLocked()
	c.mu.Unlock()

	if err := c.loadMessages(ctx, threadID, seq); err != nil {
		c.mu.Lock()
		if c.loadSeq == seq {
			c.state = StateNoThread
			c.activeID = ""
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// loadMessages fetch the full message list, mark the latest read when it came
// from someone else and fetch its readers. A result is dropped when another
// SelectThread started meanwhile, and fetched again when a message arrived
// for the thread while it was loading.
func (c *Controller) loadMessages(ctx context.Context, threadID string, seq uint64) error {
	for {
		msgs, readers, err := c.fetchMessages(ctx, threadID)
		if err != nil {
			return err
		}

		c.mu.Lock()
		switch {
		case c.loadSeq != seq:
			c.mu.Unlock()
			return nil
		case c.dirty:
			c.dirty = false
			c.mu.Unlock()
			continue
		}
		c.messages = msgs
		c.readers = readers
		c.state = StateReady
		c.mu.Unlock()
		return nil
	}
}

func (c *Controller) fetchMessages(ctx context.Context, threadID string) ([]domain.MessageView, []domain.Reader, error) {
	msgs, err := c.api.ListMessages(ctx, threadID)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}
	if len(msgs) == 0 {
		return msgs, nil, nil
	}

	latest := msgs[len(msgs)-1]
	if latest.SenderID != c.userID {
		if err := c.api.MarkRead(ctx, latest.ID); err != nil {
			return nil, nil, fmt.Errorf("mark read: %w", err)
		}
	}
	readers, err := c.api.ListReaders(ctx, latest.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list readers: %w", err)
	}
	return msgs, readers, nil
}

// Send post content to the active thread. The list updates when the
// message:new event comes back.
func (c *Controller) Send(ctx context.Context, content string) (*domain.MessageView, error) {
	threadID := c.ActiveThread()
	if threadID == "" {
		return nil, fmt.Errorf("no thread selected")
	}
	return c.api.SendMessage(ctx, threadID, content)
}

// HandleEvent apply one frame from the socket
func (c *Controller) HandleEvent(ctx context.Context, env domain.RawEnvelope) error {
	switch env.Event {
	case domain.EventMessageNew:
		var p domain.MessageNewPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return c.onMessageNew(ctx, p)

	case domain.EventMessageRead:
		var p domain.MessageReadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		c.onMessageRead(p)
		return nil

	case domain.EventThreadParticipants:
		var p domain.ParticipantsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return c.onParticipants(ctx, p)

	case domain.EventTyping:
		var p domain.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		c.onTyping(p)
		return nil

	case domain.EventError:
		var p domain.ErrorPayload
		_ = json.Unmarshal(env.Payload, &p)
		logger.Log.Warn("server rejected frame", zap.String("userID", c.userID), zap.String("error", p.Error))
		return nil

	default:
		logger.Log.Debug("ignore event", zap.String("event", string(env.Event)))
		return nil
	}
}

func (c *Controller) onMessageNew(ctx context.Context, p domain.MessageNewPayload) error {
	c.mu.Lock()
	onScreen := c.activeID == p.ThreadID
	loading := onScreen && c.state == StateLoading
	if loading {
		// the load in flight fetches again before it settles
		c.dirty = true
	}
	active := onScreen && c.state == StateReady
	seq := c.loadSeq
	c.mu.Unlock()

	if loading {
		return nil
	}
	if active {
		// always re-fetch, never merge the pushed message
		return c.loadMessages(ctx, p.ThreadID, seq)
	}

	if p.Message.SenderID != c.userID {
		c.notify(Notification{ThreadID: p.ThreadID, Message: p.Message})
	}
	return c.RefreshThreads(ctx)
}

func (c *Controller) onMessageRead(p domain.MessageReadPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.activeID != p.ThreadID || len(c.messages) == 0 {
		return
	}
	if c.messages[len(c.messages)-1].ID != p.MessageID {
		return
	}
	c.readers = append(lo.Reject(c.readers, func(r domain.Reader, _ int) bool {
		return r.User.ID == p.User.ID
	}), domain.Reader{User: p.User, ReadAt: p.ReadAt})
}

func (c *Controller) onParticipants(ctx context.Context, p domain.ParticipantsPayload) error {
	if err := c.RefreshThreads(ctx); err != nil {
		return err
	}
	if lo.Contains(p.ParticipantIDs, c.userID) {
		return nil
	}

	// removed from the thread on screen
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == p.ThreadID {
		c.loadSeq++
		c.state = StateNoThread
		c.activeID = ""
		c.dirty = false
		c.messages = nil
		c.readers = nil
		c.clearTypingLocked()
	}
	return nil
}

func (c *Controller) onTyping(p domain.TypingPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.UserID == c.userID || c.activeID != p.ThreadID {
		return
	}

	if e, ok := c.typing[p.UserID]; ok {
		e.timer.Stop()
	}
	c.typingGen++
	gen := c.typingGen
	userID := p.UserID
	c.typing[userID] = &typingEntry{
		name: p.Name,
		gen:  gen,
		timer: c.clock.AfterFunc(TypingTTL, func() {
			c.expireTyping(userID, gen)
		}),
	}
}

func (c *Controller) expireTyping(userID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// a stopped timer may still fire once, only the newest entry may expire
	if e, ok := c.typing[userID]; ok && e.gen == gen {
		delete(c.typing, userID)
	}
}

func (c *Controller) clearTypingLocked() {
	for id, e := range c.typing {
		e.timer.Stop()
		delete(c.typing, id)
	}
}

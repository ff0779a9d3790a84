package app

import (
	"context"
	"sort"
	"sync"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/repository"

	"github.com/samber/lo"
)

// memoryStore in-memory persistence honouring the same constraints as the postgres gateway
type memoryStore struct {
	mu            sync.Mutex
	practitioners map[string]domain.Practitioner
	threads       map[string]domain.Thread
	participants  map[string][]domain.ThreadParticipant
	messages      []domain.Message
	reads         map[[2]string]domain.MessageRead
	accessLogs    []domain.AccessLog
}

func newMemoryStore(ps ...domain.Practitioner) *memoryStore {
	return &memoryStore{
		practitioners: lo.SliceToMap(ps, func(p domain.Practitioner) (string, domain.Practitioner) { return p.ID, p }),
		threads:       map[string]domain.Thread{},
		participants:  map[string][]domain.ThreadParticipant{},
		reads:         map[[2]string]domain.MessageRead{},
	}
}

func (s *memoryStore) ids(threadID string) []string {
	return lo.Map(s.participants[threadID], func(p domain.ThreadParticipant, _ int) string { return p.PractitionerID })
}

type memThreads struct{ *memoryStore }

func (s memThreads) CreateThread(_ context.Context, thread *domain.Thread, participantIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = *thread
	for _, id := range participantIDs {
		s.participants[thread.ID] = append(s.participants[thread.ID], domain.ThreadParticipant{
			ThreadID: thread.ID, PractitionerID: id, JoinedAt: thread.CreatedAt,
		})
	}
	return nil
}

func (s memThreads) FindByID(_ context.Context, threadID string) (*domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s memThreads) ListByParticipant(_ context.Context, userID string) ([]domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Thread
	for id, t := range s.threads {
		if lo.Contains(s.ids(id), userID) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out, nil
}

func (s memThreads) IsParticipant(_ context.Context, threadID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Contains(s.ids(threadID), userID), nil
}

func (s memThreads) ParticipantIDs(_ context.Context, threadID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids(threadID), nil
}

func (s memThreads) ParticipantsOf(_ context.Context, threadIDs []string) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]string{}
	for _, id := range threadIDs {
		out[id] = s.ids(id)
	}
	return out, nil
}

func (s memThreads) AddParticipants(_ context.Context, threadID string, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added, _ := lo.Difference(lo.Uniq(ids), s.ids(threadID))
	for _, id := range added {
		s.participants[threadID] = append(s.participants[threadID], domain.ThreadParticipant{
			ThreadID: threadID, PractitionerID: id, JoinedAt: now(),
		})
	}
	return added, nil
}

func (s memThreads) RemoveParticipant(_ context.Context, threadID, targetID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.ids(threadID)
	if len(ids) <= 1 {
		return nil, repository.ErrLastParticipant
	}
	if !lo.Contains(ids, targetID) {
		return nil, repository.ErrNotParticipant
	}
	s.participants[threadID] = lo.Reject(s.participants[threadID], func(p domain.ThreadParticipant, _ int) bool {
		return p.PractitionerID == targetID
	})
	return s.ids(threadID), nil
}

type memMessages struct{ *memoryStore }

func (s memMessages) CreateMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[msg.ThreadID]
	if !ok {
		return repository.ErrNotFound
	}
	s.messages = append(s.messages, *msg)
	ts := msg.Timestamp
	t.LastMessageAt = &ts
	s.threads[msg.ThreadID] = t
	return nil
}

func (s memMessages) FindByID(_ context.Context, messageID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := lo.Find(s.messages, func(m domain.Message) bool { return m.ID == messageID })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s memMessages) ListByThread(_ context.Context, threadID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(s.messages, func(m domain.Message, _ int) bool { return m.ThreadID == threadID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s memMessages) LatestMessages(ctx context.Context, threadIDs []string) (map[string]domain.Message, error) {
	out := make(map[string]domain.Message, len(threadIDs))
	for _, id := range threadIDs {
		if msgs, _ := s.ListByThread(ctx, id); len(msgs) > 0 {
			out[id] = msgs[len(msgs)-1]
		}
	}
	return out, nil
}

func (s memMessages) CountUnread(_ context.Context, userID string) ([]domain.UnreadCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for _, m := range s.messages {
		if m.SenderID == userID || !lo.Contains(s.ids(m.ThreadID), userID) {
			continue
		}
		if _, read := s.reads[[2]string{m.ID, userID}]; !read {
			counts[m.ThreadID]++
		}
	}
	out := make([]domain.UnreadCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, domain.UnreadCount{ThreadID: id, UnreadCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThreadID < out[j].ThreadID })
	return out, nil
}

type memReads struct{ *memoryStore }

func (s memReads) Upsert(_ context.Context, read *domain.MessageRead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads[[2]string{read.MessageID, read.UserID}] = *read
	return nil
}

func (s memReads) ListByMessage(_ context.Context, messageID string) ([]domain.MessageRead, error) {
	return s.ListByMessages(context.Background(), []string{messageID})
}

func (s memReads) ListByMessages(_ context.Context, messageIDs []string) ([]domain.MessageRead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MessageRead
	for key, r := range s.reads {
		if lo.Contains(messageIDs, key[0]) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadAt.Before(out[j].ReadAt) })
	return out, nil
}

func (s *memoryStore) readCount(messageID, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reads[[2]string{messageID, userID}]; ok {
		return 1
	}
	return 0
}

type memPractitioners struct{ *memoryStore }

func (s memPractitioners) List(_ context.Context) ([]domain.Practitioner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Values(s.practitioners)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memPractitioners) FindByID(_ context.Context, id string) (*domain.Practitioner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.practitioners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s memPractitioners) FindByIDs(_ context.Context, ids []string) ([]domain.Practitioner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Practitioner
	for _, id := range ids {
		if p, ok := s.practitioners[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memAccessLogs struct{ *memoryStore }

func (s memAccessLogs) InsertMany(_ context.Context, logs []domain.AccessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessLogs = append(s.accessLogs, logs...)
	return nil
}

func (s memAccessLogs) FindByMessage(_ context.Context, messageID string) ([]domain.AccessLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Filter(s.accessLogs, func(l domain.AccessLog, _ int) bool { return l.MessageID == messageID }), nil
}

// service every use case wired on one memory store
type service struct {
	store    *memoryStore
	pub      *fakePublisher
	codec    Codec
	threads  *ThreadUseCase
	messages *MessageUseCase
	reads    *ReadUseCase
	typing   *TypingUseCase
}

func newService(codec Codec, ps ...domain.Practitioner) *service {
	store := newMemoryStore(ps...)
	pub := &fakePublisher{}
	return &service{
		store:    store,
		pub:      pub,
		codec:    codec,
		threads:  NewThreadUseCase(memThreads{store}, memMessages{store}, memReads{store}, memPractitioners{store}, codec, pub),
		messages: NewMessageUseCase(memThreads{store}, memMessages{store}, memPractitioners{store}, memAccessLogs{store}, codec, pub),
		reads:    NewReadUseCase(memThreads{store}, memMessages{store}, memReads{store}, memPractitioners{store}, pub),
		typing:   NewTypingUseCase(memThreads{store}, memPractitioners{store}, pub),
	}
}

package service

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/repository"
	"github.com/google/uuid"
)

// memorySessionStore повторяет контракт SessionRepository в памяти,
// включая условные обновления по версии и отказ при пересечении окон
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
	swaps    int // успешные условные обновления

	// beforeSwap вызывается перед условным обновлением под блокировкой;
	// тесты подменяют им конкурентную запись. Если hook что-то изменил,
	// версия строки растёт, как после настоящей записи.
	beforeSwap func(stored *model.Session)
	// beforeDelete вызывается перед удалением под блокировкой
	beforeDelete func(sessions map[uuid.UUID]*model.Session)
}

func newMemorySessionStore(sessions ...*model.Session) *memorySessionStore {
	store := &memorySessionStore{sessions: make(map[uuid.UUID]*model.Session)}
	for _, s := range sessions {
		store.sessions[s.ID] = s.Clone()
	}
	return store
}

func (m *memorySessionStore) overlapLocked(s *model.Session) bool {
	for _, other := range m.sessions {
		if other.ID == s.ID || other.MentorID != s.MentorID || !other.Status.BlocksCalendar() {
			continue
		}
		if other.Overlaps(s.StartTime, s.EndTime) {
			return true
		}
	}
	return false
}

func (m *memorySessionStore) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Status.BlocksCalendar() && m.overlapLocked(s) {
		return repository.ErrOverlap
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *memorySessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *memorySessionStore) ListByMentor(_ context.Context, mentorID string) ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*model.Session
	for _, s := range m.sessions {
		if s.MentorID == mentorID {
			result = append(result, s.Clone())
		}
	}
	return result, nil
}

func (m *memorySessionStore) ListByMentorInRange(ctx context.Context, mentorID string, from, to time.Time) ([]*model.Session, error) {
	all, _ := m.ListByMentor(ctx, mentorID)
	var result []*model.Session
	for _, s := range all {
		if s.Overlaps(from, to) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *memorySessionStore) concurrentWriteLocked(id uuid.UUID) {
	stored, ok := m.sessions[id]
	if !ok || m.beforeSwap == nil {
		return
	}
	before := stored.Clone()
	m.beforeSwap(stored)
	if !reflect.DeepEqual(before, stored) {
		stored.Version++
		stored.UpdatedAt = time.Now()
	}
}

func (m *memorySessionStore) swapLocked(s *model.Session, expected int64) bool {
	stored, ok := m.sessions[s.ID]
	if !ok || stored.Version != expected {
		return false
	}
	next := s.Clone()
	next.Channel = stored.Channel
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now()
	next.Version = expected + 1
	m.sessions[s.ID] = next
	s.Version = next.Version
	m.swaps++
	return true
}

func (m *memorySessionStore) UpdateIfVersion(_ context.Context, s *model.Session, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.concurrentWriteLocked(s.ID)
	return m.swapLocked(s, expected), nil
}

func (m *memorySessionStore) RescheduleIfVersion(_ context.Context, s *model.Session, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.concurrentWriteLocked(s.ID)
	if m.overlapLocked(s) {
		return false, repository.ErrOverlap
	}
	return m.swapLocked(s, expected), nil
}

func (m *memorySessionStore) AssignChannel(_ context.Context, id uuid.UUID, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.Channel == "" {
		s.Channel = channel
		s.Version++
	}
	return nil
}

func (m *memorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.beforeDelete != nil {
		m.beforeDelete(m.sessions)
	}
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memorySessionStore) get(id uuid.UUID) *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id].Clone()
}

func (m *memorySessionStore) swapCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swaps
}

type memoryAvailabilityStore struct {
	mu    sync.Mutex
	items map[string]*model.Availability
}

func newMemoryAvailabilityStore(items ...*model.Availability) *memoryAvailabilityStore {
	store := &memoryAvailabilityStore{items: make(map[string]*model.Availability)}
	for _, a := range items {
		store.items[a.MentorID] = a
	}
	return store
}

func (m *memoryAvailabilityStore) GetByMentorID(_ context.Context, mentorID string) (*model.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[mentorID], nil
}

func (m *memoryAvailabilityStore) Upsert(_ context.Context, a *model.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.MentorID] = a
	return nil
}

type issuedToken struct {
	channel string
	uid     string
	role    model.ParticipantRole
	ttl     int
}

type fakeTokenIssuer struct {
	mu     sync.Mutex
	err    error
	issued []issuedToken
}

func (f *fakeTokenIssuer) Issue(_ context.Context, channel, uid string, role model.ParticipantRole, ttlSeconds int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.issued = append(f.issued, issuedToken{channel: channel, uid: uid, role: role, ttl: ttlSeconds})
	return "token-" + uid, nil
}

type sentMessage struct {
	to      string
	subject string
}

// recordingDispatcher отдаёт отправленные сообщения в канал, чтобы тест мог дождаться фоновой отправки
type recordingDispatcher struct {
	sent chan sentMessage
	ok   bool
}

func newRecordingDispatcher(ok bool) *recordingDispatcher {
	return &recordingDispatcher{sent: make(chan sentMessage, 16), ok: ok}
}

func (d *recordingDispatcher) Send(_ context.Context, to, subject, _ string) bool {
	d.sent <- sentMessage{to: to, subject: subject}
	return d.ok
}

func (d *recordingDispatcher) next(timeout time.Duration) (sentMessage, bool) {
	select {
	case m := <-d.sent:
		return m, true
	case <-time.After(timeout):
		return sentMessage{}, false
	}
}

type fakePresence struct {
	mu     sync.Mutex
	err    error
	marked map[model.ParticipantRole]time.Time
}

func (f *fakePresence) MarkJoined(_ context.Context, _ uuid.UUID, role model.ParticipantRole, at, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.marked == nil {
		f.marked = make(map[model.ParticipantRole]time.Time)
	}
	if _, ok := f.marked[role]; !ok {
		f.marked[role] = at
	}
	return nil
}

func (f *fakePresence) Get(_ context.Context, _ uuid.UUID) (*model.Presence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &model.Presence{}
	if at, ok := f.marked[model.RolePublisher]; ok {
		p.MentorJoinedAt = &at
	}
	if at, ok := f.marked[model.RoleSubscriber]; ok {
		p.MenteeJoinedAt = &at
	}
	return p, nil
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// mutableClock - часы, которые тест может переводить
type mutableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newSession(mentorID, counterpartyID string, start time.Time, minutes int, status model.SessionStatus, payment model.PaymentStatus) *model.Session {
	s := &model.Session{
		ID:                 uuid.New(),
		MentorID:           mentorID,
		CounterpartyID:     counterpartyID,
		CounterpartyName:   "Name " + counterpartyID,
		CounterpartyEmail:  counterpartyID + "@example.com",
		Status:             status,
		PaymentStatus:      payment,
		BookingType:        model.BookingTypePaid,
		RescheduleRequests: []model.RescheduleRequest{},
	}
	_ = s.SetTiming(start, start.Add(time.Duration(minutes)*time.Minute))
	return s
}

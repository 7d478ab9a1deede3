package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var sessionStart = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type joinFixture struct {
	store    *memorySessionStore
	tokens   *fakeTokenIssuer
	presence *fakePresence
	clock    *mutableClock
	svc      *JoinService
	session  *model.Session
}

func newJoinFixture(t *testing.T, status model.SessionStatus, payment model.PaymentStatus) *joinFixture {
	t.Helper()

	session := newSession("mentor-1", "mentee-1", sessionStart, 60, status, payment)
	f := &joinFixture{
		store:    newMemorySessionStore(session),
		tokens:   &fakeTokenIssuer{},
		presence: &fakePresence{},
		clock:    &mutableClock{now: sessionStart},
		session:  session,
	}
	f.svc = NewJoinService(f.store, f.tokens, f.presence, f.clock.Now, 0, 0, zap.NewNop())
	return f
}

func TestJoin_WindowBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "exactly at window open", now: sessionStart.Add(-15 * time.Minute)},
		{name: "one second before window", now: sessionStart.Add(-15*time.Minute - time.Second), wantErr: ErrTooEarly},
		{name: "during session", now: sessionStart.Add(20 * time.Minute)},
		{name: "exactly at end", now: sessionStart.Add(time.Hour)},
		{name: "one second after end", now: sessionStart.Add(time.Hour + time.Second), wantErr: ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)
			f.clock.Set(tt.now)

			result, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrInvalidState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.RoleSubscriber, result.Role)
		})
	}
}

func TestJoin_ScenarioD(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	f.clock.Set(time.Date(2025, 3, 10, 9, 44, 0, 0, time.UTC))
	_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.Error(t, err)

	var tooEarly *TooEarlyError
	require.True(t, errors.As(err, &tooEarly))
	assert.Equal(t, 1, tooEarly.MinutesUntilJoin)
	assert.Equal(t, model.SessionStatusScheduled, f.store.get(f.session.ID).Status)

	joinedAt := time.Date(2025, 3, 10, 9, 45, 0, 0, time.UTC)
	f.clock.Set(joinedAt)
	result, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.NoError(t, err)

	assert.Equal(t, model.RolePublisher, result.Role)
	assert.Equal(t, ChannelName(f.session.ID), result.Channel)
	assert.Equal(t, "token-mentor-1", result.Token)

	stored := f.store.get(f.session.ID)
	assert.Equal(t, model.SessionStatusOngoing, stored.Status)
	require.NotNil(t, stored.ActualStart)
	assert.Equal(t, joinedAt, *stored.ActualStart)
	assert.Equal(t, ChannelName(f.session.ID), stored.Channel)
}

func TestJoin_MinutesUntilJoinRoundsUp(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)
	f.clock.Set(sessionStart.Add(-45*time.Minute - 30*time.Second))

	_, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)

	var tooEarly *TooEarlyError
	require.True(t, errors.As(err, &tooEarly))
	assert.Equal(t, 31, tooEarly.MinutesUntilJoin)
}

func TestJoin_PreconditionOrder(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)
		_, err := f.svc.Join(context.Background(), "mentor-1", uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stranger is forbidden before payment check", func(t *testing.T) {
		f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPending)
		_, err := f.svc.Join(context.Background(), "stranger", f.session.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("payment before state", func(t *testing.T) {
		f := newJoinFixture(t, model.SessionStatusCancelled, model.PaymentStatusPending)
		_, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)
		assert.ErrorIs(t, err, ErrPaymentRequired)
	})

	t.Run("state before time window", func(t *testing.T) {
		f := newJoinFixture(t, model.SessionStatusCompleted, model.PaymentStatusPaid)
		f.clock.Set(sessionStart.Add(-3 * time.Hour))
		_, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.NotErrorIs(t, err, ErrTooEarly)
	})

	t.Run("draft cannot be joined", func(t *testing.T) {
		f := newJoinFixture(t, model.SessionStatusDraft, model.PaymentStatusPaid)
		_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestJoin_MenteeDoesNotStartSession(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	result, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)
	require.NoError(t, err)

	assert.Equal(t, model.RoleSubscriber, result.Role)
	assert.Equal(t, model.SessionStatusScheduled, f.store.get(f.session.ID).Status)
	assert.Equal(t, 0, f.store.swapCount())
}

func TestJoin_OngoingRejoin(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	first, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.NoError(t, err)

	f.clock.Set(sessionStart.Add(10 * time.Minute))
	second, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Channel, second.Channel)
	assert.Equal(t, 1, f.store.swapCount())

	stored := f.store.get(f.session.ID)
	require.NotNil(t, stored.ActualStart)
	assert.Equal(t, sessionStart, *stored.ActualStart)
}

func TestJoin_ConcurrentMentorJoinsTransitionOnce(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.store.swapCount())
	assert.Equal(t, model.SessionStatusOngoing, f.store.get(f.session.ID).Status)
	assert.Len(t, f.tokens.issued, callers)
}

func TestJoin_ReevaluatesAfterConcurrentCancel(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	// Отмена проходит между чтением и условным обновлением
	f.store.beforeSwap = func(stored *model.Session) {
		stored.Status = model.SessionStatusCancelled
	}

	_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, f.tokens.issued)
}

func TestJoin_KeepsConcurrentDetailEdits(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	// Ментор меняет ссылку, пока вход переводит сессию в ongoing
	f.store.beforeSwap = func(stored *model.Session) {
		stored.MeetingLink = "https://meet.example/room-2"
	}

	_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.NoError(t, err)

	stored := f.store.get(f.session.ID)
	assert.Equal(t, model.SessionStatusOngoing, stored.Status)
	assert.Equal(t, "https://meet.example/room-2", stored.MeetingLink)
	assert.Equal(t, ChannelName(f.session.ID), stored.Channel)
}

func TestJoin_TokenFailureKeepsOngoing(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)
	f.tokens.err = errors.New("media server down")

	_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, model.SessionStatusOngoing, f.store.get(f.session.ID).Status)

	// Повторный вызов принимает ongoing как допустимое состояние
	f.tokens.err = nil
	result, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RolePublisher, result.Role)
	assert.Equal(t, 1, f.store.swapCount())
}

func TestJoin_TokenRequest(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)

	_, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)
	require.NoError(t, err)

	require.Len(t, f.tokens.issued, 1)
	assert.Equal(t, issuedToken{
		channel: ChannelName(f.session.ID),
		uid:     "mentee-1",
		role:    model.RoleSubscriber,
		ttl:     DefaultTokenTTL,
	}, f.tokens.issued[0])
}

func TestJoin_PresenceIsBestEffort(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)
	f.presence.err = errors.New("redis unavailable")

	_, err := f.svc.Join(context.Background(), "mentee-1", f.session.ID)
	assert.NoError(t, err)
}

func TestPresence(t *testing.T) {
	f := newJoinFixture(t, model.SessionStatusScheduled, model.PaymentStatusPaid)
	f.clock.Set(sessionStart.Add(-5 * time.Minute))

	_, err := f.svc.Join(context.Background(), "mentor-1", f.session.ID)
	require.NoError(t, err)

	p, err := f.svc.Presence(context.Background(), "mentee-1", f.session.ID)
	require.NoError(t, err)
	require.NotNil(t, p.MentorJoinedAt)
	assert.Equal(t, sessionStart.Add(-5*time.Minute), *p.MentorJoinedAt)
	assert.Nil(t, p.MenteeJoinedAt)

	_, err = f.svc.Presence(context.Background(), "stranger", f.session.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

package service

import (
	"context"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/google/uuid"
)

// SessionStore - долговременное хранилище сессий.
// UpdateIfVersion и RescheduleIfVersion - условные обновления по версии строки:
// false значит, что сессию успели изменить после чтения.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	ListByMentor(ctx context.Context, mentorID string) ([]*model.Session, error)
	ListByMentorInRange(ctx context.Context, mentorID string, from, to time.Time) ([]*model.Session, error)
	UpdateIfVersion(ctx context.Context, s *model.Session, expected int64) (bool, error)
	RescheduleIfVersion(ctx context.Context, s *model.Session, expected int64) (bool, error)
	AssignChannel(ctx context.Context, id uuid.UUID, channel string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AvailabilityStore - хранилище шаблонов доступности
type AvailabilityStore interface {
	GetByMentorID(ctx context.Context, mentorID string) (*model.Availability, error)
	Upsert(ctx context.Context, a *model.Availability) error
}

// TokenIssuer выдаёт медиа-токен для канала
type TokenIssuer interface {
	Issue(ctx context.Context, channel, uid string, role model.ParticipantRole, ttlSeconds int) (string, error)
}

// Dispatcher отправляет уведомления; ошибки логируются внутри и наружу не выходят
type Dispatcher interface {
	Send(ctx context.Context, to, subject, body string) bool
}

// PresenceTracker запоминает подключения участников
type PresenceTracker interface {
	MarkJoined(ctx context.Context, sessionID uuid.UUID, role model.ParticipantRole, at time.Time, until time.Time) error
	Get(ctx context.Context, sessionID uuid.UUID) (*model.Presence, error)
}

// Clock возвращает текущее время; в тестах подменяется
type Clock func() time.Time

// maxSwapAttempts ограничивает повторы после неудачного условного обновления
const maxSwapAttempts = 5

package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldMentor = "mentor_joined_at"
	fieldMentee = "mentee_joined_at"
)

// Tracker хранит отметки первого подключения участников в хеше redis.
// Ключ живёт до конца сессии с запасом и удаляется redis сам.
type Tracker struct {
	client redis.Cmdable
}

func NewTracker(client redis.Cmdable) *Tracker {
	return &Tracker{client: client}
}

func key(sessionID uuid.UUID) string {
	return fmt.Sprintf("sessions:presence:%s", sessionID)
}

func field(role model.ParticipantRole) string {
	if role == model.RolePublisher {
		return fieldMentor
	}
	return fieldMentee
}

// MarkJoined запоминает первое подключение; повторные не перезаписывают время
func (t *Tracker) MarkJoined(ctx context.Context, sessionID uuid.UUID, role model.ParticipantRole, at, until time.Time) error {
	k := key(sessionID)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, k, field(role), at.UTC().Format(time.RFC3339Nano))
		pipe.ExpireAt(ctx, k, until)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark presence: %w", err)
	}
	return nil
}

// Get возвращает отметки; отсутствие ключа - пустой ответ
func (t *Tracker) Get(ctx context.Context, sessionID uuid.UUID) (*model.Presence, error) {
	values, err := t.client.HGetAll(ctx, key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}
	return parsePresence(values)
}

func parsePresence(values map[string]string) (*model.Presence, error) {
	presence := &model.Presence{}

	mentor, err := parseStamp(values[fieldMentor])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldMentor, err)
	}
	presence.MentorJoinedAt = mentor

	mentee, err := parseStamp(values[fieldMentee])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fieldMentee, err)
	}
	presence.MenteeJoinedAt = mentee

	return presence, nil
}

func parseStamp(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

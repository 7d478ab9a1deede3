package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	// ErrOverlap - у ментора уже есть сессия, пересекающая запрошенное окно
	ErrOverlap = errors.New("session overlaps an existing booking")
	// ErrNotFound - строки с таким id нет
	ErrNotFound = errors.New("session not found")
)

const sessionColumns = `
	id, mentor_id, counterparty_id, counterparty_name, counterparty_email,
	start_time, end_time, duration_minutes, actual_start, actual_end,
	status, payment_status, booking_type, channel, meeting_link, recording_ref, notes,
	reschedule_requests, reschedule_count, cancelled_by, cancellation_reason, cancelled_at,
	version, created_at, updated_at`

// Статусы, которые занимают окно ментора
var blockingStatuses = []string{
	string(model.SessionStatusScheduled),
	string(model.SessionStatusOngoing),
	string(model.SessionStatusRescheduleRequested),
}

type SessionRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewSessionRepository(pool *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

func scanSession(row base.Scanner) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.CounterpartyID,
		&s.CounterpartyName,
		&s.CounterpartyEmail,
		&s.StartTime,
		&s.EndTime,
		&s.DurationMinutes,
		&s.ActualStart,
		&s.ActualEnd,
		&s.Status,
		&s.PaymentStatus,
		&s.BookingType,
		&s.Channel,
		&s.MeetingLink,
		&s.RecordingRef,
		&s.Notes,
		&s.RescheduleRequests,
		&s.RescheduleCount,
		&s.CancelledBy,
		&s.CancellationReason,
		&s.CancelledAt,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]*model.Session, error) {
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func rescheduleTrail(s *model.Session) []model.RescheduleRequest {
	if s.RescheduleRequests == nil {
		return []model.RescheduleRequest{}
	}
	return s.RescheduleRequests
}

// lockMentor сериализует записи в календарь одного ментора до конца транзакции
func lockMentor(ctx context.Context, tx pgx.Tx, mentorID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, mentorID); err != nil {
		return fmt.Errorf("lock mentor calendar: %w", err)
	}
	return nil
}

// hasOverlap ищет занимающую окно сессию ментора, кроме exclude
func hasOverlap(ctx context.Context, db base.DBTX, mentorID string, exclude uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM mentor_sessions
			WHERE mentor_id = $1
			  AND id <> $2
			  AND status = ANY($3)
			  AND start_time < $5
			  AND end_time > $4
		)
	`

	var exists bool
	err := db.QueryRow(ctx, query, mentorID, exclude, blockingStatuses, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session overlap: %w", err)
	}
	return exists, nil
}

// Create сохраняет новую сессию; занимающие окно сессии не могут пересекаться
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.InTx(ctx, func(tx pgx.Tx) error {
		if s.Status.BlocksCalendar() {
			if err := lockMentor(ctx, tx, s.MentorID); err != nil {
				return err
			}
			overlap, err := hasOverlap(ctx, tx, s.MentorID, s.ID, s.StartTime, s.EndTime)
			if err != nil {
				return err
			}
			if overlap {
				return ErrOverlap
			}
		}

		query := `
			INSERT INTO mentor_sessions (
				id, mentor_id, counterparty_id, counterparty_name, counterparty_email,
				start_time, end_time, duration_minutes, status, payment_status, booking_type,
				channel, meeting_link, recording_ref, notes, reschedule_requests, reschedule_count
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING version, created_at, updated_at
		`

		err := tx.QueryRow(
			ctx, query,
			s.ID,
			s.MentorID,
			s.CounterpartyID,
			s.CounterpartyName,
			s.CounterpartyEmail,
			s.StartTime,
			s.EndTime,
			s.DurationMinutes,
			s.Status,
			s.PaymentStatus,
			s.BookingType,
			s.Channel,
			s.MeetingLink,
			s.RecordingRef,
			s.Notes,
			rescheduleTrail(s),
			s.RescheduleCount,
		).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
}

// GetByID получает сессию по ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM mentor_sessions WHERE id = $1`

	s, err := scanSession(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}
	return s, nil
}

// ListByMentor получает всю историю сессий ментора
func (r *SessionRepository) ListByMentor(ctx context.Context, mentorID string) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM mentor_sessions
		WHERE mentor_id = $1
		ORDER BY start_time
	`

	rows, err := r.Pool().Query(ctx, query, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get sessions by mentor: %w", err)
	}
	return collectSessions(rows)
}

// ListByMentorInRange получает сессии ментора, пересекающие [from, to)
func (r *SessionRepository) ListByMentorInRange(ctx context.Context, mentorID string, from, to time.Time) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM mentor_sessions
		WHERE mentor_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`

	rows, err := r.Pool().Query(ctx, query, mentorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get sessions by mentor in range: %w", err)
	}
	return collectSessions(rows)
}

func updateIfVersion(ctx context.Context, db base.DBTX, s *model.Session, expected int64) (bool, error) {
	query := `
		UPDATE mentor_sessions
		SET start_time = $3,
		    end_time = $4,
		    duration_minutes = $5,
		    actual_start = $6,
		    actual_end = $7,
		    status = $8,
		    payment_status = $9,
		    meeting_link = $10,
		    recording_ref = $11,
		    notes = $12,
		    reschedule_requests = $13,
		    reschedule_count = $14,
		    cancelled_by = $15,
		    cancellation_reason = $16,
		    cancelled_at = $17,
		    counterparty_name = $18,
		    counterparty_email = $19,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err := db.QueryRow(
		ctx, query,
		s.ID,
		expected,
		s.StartTime,
		s.EndTime,
		s.DurationMinutes,
		s.ActualStart,
		s.ActualEnd,
		s.Status,
		s.PaymentStatus,
		s.MeetingLink,
		s.RecordingRef,
		s.Notes,
		rescheduleTrail(s),
		s.RescheduleCount,
		s.CancelledBy,
		s.CancellationReason,
		s.CancelledAt,
		s.CounterpartyName,
		s.CounterpartyEmail,
	).Scan(&s.Version, &s.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("update session: %w", err)
	}
	return true, nil
}

// UpdateIfVersion записывает изменяемые поля, только если версия строки всё ещё expected,
// и увеличивает её. false означает, что сессию успели изменить: нужно перечитать и решить заново.
func (r *SessionRepository) UpdateIfVersion(ctx context.Context, s *model.Session, expected int64) (bool, error) {
	return updateIfVersion(ctx, r.Pool(), s, expected)
}

// RescheduleIfVersion как UpdateIfVersion, но сначала проверяет, что новое окно свободно
func (r *SessionRepository) RescheduleIfVersion(ctx context.Context, s *model.Session, expected int64) (bool, error) {
	var updated bool
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if err := lockMentor(ctx, tx, s.MentorID); err != nil {
			return err
		}
		overlap, err := hasOverlap(ctx, tx, s.MentorID, s.ID, s.StartTime, s.EndTime)
		if err != nil {
			return err
		}
		if overlap {
			return ErrOverlap
		}
		updated, err = updateIfVersion(ctx, tx, s, expected)
		return err
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// AssignChannel назначает канал, если он ещё не назначен
func (r *SessionRepository) AssignChannel(ctx context.Context, id uuid.UUID, channel string) error {
	query := `
		UPDATE mentor_sessions
		SET channel = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND channel = ''
	`

	affected, err := base.ExecAffected(ctx, r.Pool(), query, id, channel)
	if err != nil {
		return fmt.Errorf("assign channel: %w", err)
	}
	if affected == 0 {
		r.logger.Debug("Channel already assigned",
			zap.String("session_id", id.String()))
	}
	return nil
}

// Delete удаляет сессию (административная операция)
func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := base.ExecAffected(ctx, r.Pool(), `DELETE FROM mentor_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

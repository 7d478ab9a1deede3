package repository

import (
	"context"
	"fmt"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AvailabilityRepository хранит недельные шаблоны и исключения менторов
type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: base.NewRepository(pool)}
}

// GetByMentorID получает шаблон ментора, nil если не задан
func (r *AvailabilityRepository) GetByMentorID(ctx context.Context, mentorID string) (*model.Availability, error) {
	query := `
		SELECT mentor_id, timezone, weekly, overrides, min_notice_hours,
		       max_sessions_per_week, instant_booking, created_at, updated_at
		FROM mentor_availability
		WHERE mentor_id = $1
	`

	var a model.Availability
	err := r.Pool().QueryRow(ctx, query, mentorID).Scan(
		&a.MentorID,
		&a.Timezone,
		&a.Weekly,
		&a.Overrides,
		&a.MinNoticeHours,
		&a.MaxSessionsPerWeek,
		&a.InstantBooking,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability by mentor: %w", err)
	}

	return &a, nil
}

// Upsert создаёт или заменяет шаблон ментора
func (r *AvailabilityRepository) Upsert(ctx context.Context, a *model.Availability) error {
	weekly := a.Weekly
	if weekly == nil {
		weekly = []model.WeeklyWindow{}
	}
	overrides := a.Overrides
	if overrides == nil {
		overrides = []model.DateOverride{}
	}

	query := `
		INSERT INTO mentor_availability (
			mentor_id, timezone, weekly, overrides, min_notice_hours, max_sessions_per_week, instant_booking
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mentor_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			weekly = EXCLUDED.weekly,
			overrides = EXCLUDED.overrides,
			min_notice_hours = EXCLUDED.min_notice_hours,
			max_sessions_per_week = EXCLUDED.max_sessions_per_week,
			instant_booking = EXCLUDED.instant_booking,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.Pool().QueryRow(
		ctx, query,
		a.MentorID,
		a.Timezone,
		weekly,
		overrides,
		a.MinNoticeHours,
		a.MaxSessionsPerWeek,
		a.InstantBooking,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}

	return nil
}

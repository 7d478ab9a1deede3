package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type swapMode int

const (
	swapSkip      swapMode = iota // писать нечего, текущее состояние уже подходит
	swapUpdate                    // условное обновление по версии
	swapReschedule                // условное обновление с проверкой пересечений
)

// loadSession получает сессию или ErrNotFound
func loadSession(ctx context.Context, store SessionStore, id uuid.UUID) (*model.Session, error) {
	session, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return session, nil
}

// swapSession читает сессию, применяет apply к копии и записывает её условным
// обновлением по прочитанной версии. Любая запись между чтением и обновлением
// (в том числе без смены статуса) отменяет его, и всё повторяется на свежих
// данных: apply заново проверяет предусловия.
func swapSession(
	ctx context.Context,
	store SessionStore,
	logger *zap.Logger,
	id uuid.UUID,
	apply func(s *model.Session) (swapMode, error),
) (*model.Session, error) {
	for attempt := 1; attempt <= maxSwapAttempts; attempt++ {
		current, err := loadSession(ctx, store, id)
		if err != nil {
			return nil, err
		}

		expected := current.Version
		next := current.Clone()

		mode, err := apply(next)
		if err != nil {
			return nil, err
		}

		var swapped bool
		switch mode {
		case swapSkip:
			return next, nil
		case swapReschedule:
			swapped, err = store.RescheduleIfVersion(ctx, next, expected)
		default:
			swapped, err = store.UpdateIfVersion(ctx, next, expected)
		}
		if err != nil {
			if errors.Is(err, repository.ErrOverlap) {
				return nil, fmt.Errorf("%w: mentor already has a session in this time window", ErrConflict)
			}
			return nil, fmt.Errorf("update session: %w", err)
		}
		if swapped {
			return next, nil
		}

		logger.Debug("Session changed concurrently, re-evaluating",
			zap.String("session_id", id.String()),
			zap.Int64("expected_version", expected),
			zap.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("%w: session is being modified concurrently, retry", ErrConflict)
}

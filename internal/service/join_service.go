package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultJoinWindow   = 15 * time.Minute
	DefaultTokenTTL     = 3600
	presenceGracePeriod = time.Hour
)

// ChannelName - канал сессии выводится из её id, поэтому одинаков при любых гонках
func ChannelName(id uuid.UUID) string {
	return "session-" + id.String()
}

// JoinService - единственный путь получить медиа-токен и перевести сессию в ongoing
type JoinService struct {
	sessionRepo SessionStore
	tokens      TokenIssuer
	presence    PresenceTracker
	now         Clock
	joinWindow  time.Duration
	tokenTTL    int
	logger      *zap.Logger
}

func NewJoinService(
	sessionRepo SessionStore,
	tokens TokenIssuer,
	presence PresenceTracker,
	now Clock,
	joinWindow time.Duration,
	tokenTTL int,
	logger *zap.Logger,
) *JoinService {
	if now == nil {
		now = time.Now
	}
	if joinWindow <= 0 {
		joinWindow = DefaultJoinWindow
	}
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &JoinService{
		sessionRepo: sessionRepo,
		tokens:      tokens,
		presence:    presence,
		now:         now,
		joinWindow:  joinWindow,
		tokenTTL:    tokenTTL,
		logger:      logger,
	}
}

// admit проверяет предусловия подключения строго по порядку
func (s *JoinService) admit(sess *model.Session, callerID string, now time.Time) error {
	if !sess.IsParticipant(callerID) {
		return fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}
	if sess.PaymentStatus != model.PaymentStatusPaid {
		return fmt.Errorf("%w: session is not paid", ErrPaymentRequired)
	}
	if sess.Status != model.SessionStatusScheduled && sess.Status != model.SessionStatusOngoing {
		return invalidStatef("cannot join a %s session", sess.Status)
	}
	if now.After(sess.EndTime) {
		return ErrExpired
	}

	opensAt := sess.StartTime.Add(-s.joinWindow)
	if now.Before(opensAt) {
		return &TooEarlyError{
			MinutesUntilJoin: int(math.Ceil(opensAt.Sub(now).Minutes())),
		}
	}
	return nil
}

// Join пускает участника в сессию и выдаёт ему токен
func (s *JoinService) Join(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.JoinResult, error) {
	var (
		joinedAt   time.Time
		transition bool
	)

	session, err := swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		joinedAt = s.now()
		transition = false

		if err := s.admit(sess, callerID, joinedAt); err != nil {
			return swapSkip, err
		}

		// Переход делает только ментор; повторный вход в ongoing не пишет ничего
		if sess.Status == model.SessionStatusScheduled && sess.IsMentor(callerID) {
			sess.Status = model.SessionStatusOngoing
			sess.ActualStart = &joinedAt
			transition = true
			return swapUpdate, nil
		}
		return swapSkip, nil
	})
	if err != nil {
		return nil, err
	}

	if transition {
		s.logger.Info("Session started",
			zap.String("session_id", session.ID.String()),
			zap.String("mentor_id", session.MentorID),
			zap.Time("actual_start", joinedAt),
		)
	}

	if session.Channel == "" {
		channel := ChannelName(session.ID)
		if err := s.sessionRepo.AssignChannel(ctx, session.ID, channel); err != nil {
			return nil, fmt.Errorf("assign channel: %w", err)
		}
		session.Channel = channel
	}

	role := model.RoleSubscriber
	if session.IsMentor(callerID) {
		role = model.RolePublisher
	}

	token, err := s.tokens.Issue(ctx, session.Channel, callerID, role, s.tokenTTL)
	if err != nil {
		// Переход в ongoing уже сохранён и не откатывается
		s.logger.Error("Failed to issue media token",
			zap.String("session_id", session.ID.String()),
			zap.String("user_id", callerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: media token issuer failed", ErrServiceUnavailable)
	}

	s.markPresence(ctx, session, role, joinedAt)

	return &model.JoinResult{
		Channel: session.Channel,
		Token:   token,
		Role:    role,
	}, nil
}

func (s *JoinService) markPresence(ctx context.Context, session *model.Session, role model.ParticipantRole, at time.Time) {
	if s.presence == nil {
		return
	}
	until := session.EndTime.Add(presenceGracePeriod)
	if err := s.presence.MarkJoined(ctx, session.ID, role, at, until); err != nil {
		s.logger.Warn("Failed to record presence",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}
}

// Presence возвращает отметки подключения участникам сессии
func (s *JoinService) Presence(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.Presence, error) {
	session, err := loadSession(ctx, s.sessionRepo, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(callerID) {
		return nil, fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}

	if s.presence == nil {
		return &model.Presence{}, nil
	}

	presence, err := s.presence.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Failed to read presence",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: presence store unavailable", ErrServiceUnavailable)
	}
	return presence, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/notify"
	"github.com/aureeture/mentor_sessions/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const notifyTimeout = 10 * time.Second

// SessionService управляет жизненным циклом сессий
type SessionService struct {
	sessionRepo SessionStore
	dispatcher  Dispatcher
	now         Clock
	logger      *zap.Logger
}

func NewSessionService(
	sessionRepo SessionStore,
	dispatcher Dispatcher,
	now Clock,
	logger *zap.Logger,
) *SessionService {
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		dispatcher:  dispatcher,
		now:         now,
		logger:      logger,
	}
}

type CreateSessionInput struct {
	MentorID          string
	CounterpartyID    string
	CounterpartyName  string
	CounterpartyEmail string
	StartTime         time.Time
	EndTime           time.Time
	MeetingLink       string
	Notes             string
	BookingType       model.BookingType
	Draft             bool // заготовка отношений без подтверждённого времени
}

// Create создаёт сессию: draft для заготовки, иначе scheduled
func (s *SessionService) Create(ctx context.Context, callerID string, input CreateSessionInput) (*model.Session, error) {
	input.MentorID = strings.TrimSpace(input.MentorID)
	input.CounterpartyID = strings.TrimSpace(input.CounterpartyID)
	input.CounterpartyName = strings.TrimSpace(input.CounterpartyName)

	if input.MentorID == "" {
		return nil, validationf("mentor id is required")
	}
	if input.CounterpartyID == "" && input.CounterpartyName == "" {
		return nil, validationf("counterparty id or name is required")
	}
	if input.CounterpartyID != "" && input.CounterpartyID == input.MentorID {
		return nil, validationf("mentor cannot book a session with themselves")
	}
	if input.BookingType == "" {
		input.BookingType = model.BookingTypePaid
	}
	if !input.BookingType.Valid() {
		return nil, validationf("unknown booking type %q", input.BookingType)
	}

	if callerID == "" || (callerID != input.MentorID && callerID != input.CounterpartyID) {
		return nil, fmt.Errorf("%w: only a participant can create the session", ErrForbidden)
	}

	status := model.SessionStatusScheduled
	if input.Draft {
		status = model.SessionStatusDraft
	}

	session := &model.Session{
		ID:                 uuid.New(),
		MentorID:           input.MentorID,
		CounterpartyID:     input.CounterpartyID,
		CounterpartyName:   input.CounterpartyName,
		CounterpartyEmail:  strings.TrimSpace(input.CounterpartyEmail),
		Status:             status,
		PaymentStatus:      input.BookingType.InitialPaymentStatus(),
		BookingType:        input.BookingType,
		MeetingLink:        strings.TrimSpace(input.MeetingLink),
		Notes:              input.Notes,
		RescheduleRequests: []model.RescheduleRequest{},
	}
	if err := session.SetTiming(input.StartTime, input.EndTime); err != nil {
		return nil, validationf("%v", err)
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			return nil, fmt.Errorf("%w: mentor already has a session in this time window", ErrConflict)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("Session created",
		zap.String("session_id", session.ID.String()),
		zap.String("mentor_id", session.MentorID),
		zap.String("counterparty", model.CounterpartyKey(session)),
		zap.String("status", string(session.Status)),
		zap.String("booking_type", string(session.BookingType)),
		zap.Time("start_time", session.StartTime),
	)

	if session.Status == model.SessionStatusScheduled {
		s.notify(session, session.CounterpartyEmail, notify.SessionBooked(session))
	}

	return session, nil
}

// ConfirmPayment вызывается после подтверждения оплаты внешней системой
func (s *SessionService) ConfirmPayment(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	alreadyPaid := false

	session, err := swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		alreadyPaid = false
		if sess.PaymentStatus == model.PaymentStatusRefunded {
			return swapSkip, invalidStatef("payment for this session was refunded")
		}

		switch sess.Status {
		case model.SessionStatusScheduled:
			if sess.PaymentStatus == model.PaymentStatusPaid {
				alreadyPaid = true
				return swapSkip, nil
			}
			sess.PaymentStatus = model.PaymentStatusPaid
			return swapUpdate, nil
		case model.SessionStatusDraft:
			sess.PaymentStatus = model.PaymentStatusPaid
			sess.Status = model.SessionStatusScheduled
			// Заготовка начинает занимать окно ментора
			return swapReschedule, nil
		default:
			return swapSkip, invalidStatef("cannot confirm payment for a %s session", sess.Status)
		}
	})
	if err != nil {
		return nil, err
	}

	if alreadyPaid {
		return session, nil
	}

	s.logger.Info("Session payment confirmed",
		zap.String("session_id", session.ID.String()),
		zap.String("mentor_id", session.MentorID),
	)

	s.notify(session, session.CounterpartyEmail, notify.PaymentConfirmed(session))

	return session, nil
}

// RequestReschedule добавляет запрос на перенос и переводит сессию в reschedule_requested
func (s *SessionService) RequestReschedule(ctx context.Context, callerID string, sessionID uuid.UUID, proposedStart, proposedEnd time.Time, reason string) (*model.Session, error) {
	if !proposedEnd.After(proposedStart) {
		return nil, validationf("proposed end must be after proposed start")
	}

	var request model.RescheduleRequest
	session, err := swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		if !sess.IsParticipant(callerID) {
			return swapSkip, fmt.Errorf("%w: only a participant can request a reschedule", ErrForbidden)
		}
		if sess.Status != model.SessionStatusScheduled {
			return swapSkip, invalidStatef("cannot reschedule a %s session", sess.Status)
		}

		requestedBy := model.RequesterStudent
		if sess.IsMentor(callerID) {
			requestedBy = model.RequesterMentor
		}

		request = model.RescheduleRequest{
			RequestedAt:   s.now(),
			RequestedBy:   requestedBy,
			RequesterID:   callerID,
			Reason:        strings.TrimSpace(reason),
			ProposedStart: proposedStart,
			ProposedEnd:   proposedEnd,
			Decision:      model.RescheduleDecisionPending,
		}
		sess.RescheduleRequests = append(sess.RescheduleRequests, request)
		sess.Status = model.SessionStatusRescheduleRequested
		return swapUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reschedule requested",
		zap.String("session_id", session.ID.String()),
		zap.String("requested_by", string(request.RequestedBy)),
		zap.Time("proposed_start", proposedStart),
		zap.Time("proposed_end", proposedEnd),
	)

	s.notify(session, s.otherParty(session, callerID), notify.RescheduleRequested(session, request))

	return session, nil
}

// DecideReschedule применяет решение по последнему запросу на перенос.
// Решает второй участник; ментор решает свой запрос сам, только если у собеседника нет id.
func (s *SessionService) DecideReschedule(ctx context.Context, callerID string, sessionID uuid.UUID, rawDecision string) (*model.Session, error) {
	decision, ok := model.ParseRescheduleDecision(rawDecision)
	if !ok {
		return nil, validationf("decision must be approved or rejected")
	}

	var requestedBy model.Requester
	session, err := swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		if !sess.IsParticipant(callerID) {
			return swapSkip, fmt.Errorf("%w: only a participant can decide a reschedule", ErrForbidden)
		}
		if sess.Status != model.SessionStatusRescheduleRequested {
			return swapSkip, invalidStatef("no reschedule request pending for a %s session", sess.Status)
		}

		idx := sess.PendingReschedule()
		if idx < 0 {
			return swapSkip, invalidStatef("no pending reschedule request")
		}
		request := &sess.RescheduleRequests[idx]
		if request.RequesterID == callerID && sess.CounterpartyID != "" {
			return swapSkip, fmt.Errorf("%w: the other participant must decide this request", ErrForbidden)
		}
		requestedBy = request.RequestedBy

		decidedAt := s.now()
		request.Decision = decision
		request.DecidedAt = &decidedAt
		sess.Status = model.SessionStatusScheduled

		if decision == model.RescheduleDecisionRejected {
			return swapUpdate, nil
		}

		if err := sess.SetTiming(request.ProposedStart, request.ProposedEnd); err != nil {
			return swapSkip, validationf("%v", err)
		}
		sess.RescheduleCount = sess.ApprovedReschedules()
		return swapReschedule, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reschedule decided",
		zap.String("session_id", session.ID.String()),
		zap.String("decision", string(decision)),
		zap.Int("reschedule_count", session.RescheduleCount),
	)

	// Решение получает автор запроса
	recipient := session.CounterpartyEmail
	if requestedBy == model.RequesterMentor {
		recipient = session.MentorID
	}
	s.notify(session, recipient, notify.RescheduleDecided(session, decision))

	return session, nil
}

// Complete завершает сессию; вызывать может только ментор
func (s *SessionService) Complete(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.Session, error) {
	session, err := swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		if !sess.IsMentor(callerID) {
			return swapSkip, fmt.Errorf("%w: only the mentor can complete the session", ErrForbidden)
		}
		if sess.Status != model.SessionStatusScheduled && sess.Status != model.SessionStatusOngoing {
			return swapSkip, invalidStatef("cannot complete a %s session", sess.Status)
		}

		now := s.now()
		sess.Status = model.SessionStatusCompleted
		sess.ActualEnd = &now
		return swapUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session completed",
		zap.String("session_id", session.ID.String()),
		zap.String("mentor_id", session.MentorID),
	)

	return session, nil
}

// Cancel отменяет сессию; вызывать может любой участник
func (s *SessionService) Cancel(ctx context.Context, callerID string, sessionID uuid.UUID, reason string) (*model.Session, error) {
	session, err := swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		if !sess.IsParticipant(callerID) {
			return swapSkip, fmt.Errorf("%w: only a participant can cancel the session", ErrForbidden)
		}
		if sess.Status != model.SessionStatusScheduled && sess.Status != model.SessionStatusOngoing {
			return swapSkip, invalidStatef("cannot cancel a %s session", sess.Status)
		}

		now := s.now()
		sess.Status = model.SessionStatusCancelled
		sess.CancelledBy = callerID
		sess.CancellationReason = strings.TrimSpace(reason)
		sess.CancelledAt = &now
		return swapUpdate, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session cancelled",
		zap.String("session_id", session.ID.String()),
		zap.String("cancelled_by", callerID),
	)

	s.notify(session, s.otherParty(session, callerID), notify.SessionCancelled(session))

	return session, nil
}

type UpdateDetailsInput struct {
	Notes        *string
	MeetingLink  *string
	RecordingRef *string
	StartTime    *time.Time
	EndTime      *time.Time
}

// UpdateDetails меняет общие поля без смены статуса; новое время проверяется заново
func (s *SessionService) UpdateDetails(ctx context.Context, callerID string, sessionID uuid.UUID, input UpdateDetailsInput) (*model.Session, error) {
	return swapSession(ctx, s.sessionRepo, s.logger, sessionID, func(sess *model.Session) (swapMode, error) {
		if !sess.IsMentor(callerID) {
			return swapSkip, fmt.Errorf("%w: only the mentor can edit the session", ErrForbidden)
		}

		mode := swapUpdate
		if input.StartTime != nil || input.EndTime != nil {
			if sess.Status != model.SessionStatusDraft && sess.Status != model.SessionStatusScheduled {
				return swapSkip, invalidStatef("cannot change the time of a %s session", sess.Status)
			}
			start, end := sess.StartTime, sess.EndTime
			if input.StartTime != nil {
				start = *input.StartTime
			}
			if input.EndTime != nil {
				end = *input.EndTime
			}
			if err := sess.SetTiming(start, end); err != nil {
				return swapSkip, validationf("%v", err)
			}
			if sess.Status.BlocksCalendar() {
				mode = swapReschedule
			}
		}

		if input.Notes != nil {
			sess.Notes = *input.Notes
		}
		if input.MeetingLink != nil {
			sess.MeetingLink = strings.TrimSpace(*input.MeetingLink)
		}
		if input.RecordingRef != nil {
			sess.RecordingRef = strings.TrimSpace(*input.RecordingRef)
		}
		return mode, nil
	})
}

// Get возвращает сессию участнику
func (s *SessionService) Get(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.Session, error) {
	session, err := loadSession(ctx, s.sessionRepo, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(callerID) {
		return nil, fmt.Errorf("%w: not a participant of this session", ErrForbidden)
	}
	return session, nil
}

// ListMentorSessions делит сессии ментора на предстоящие и прошедшие
func (s *SessionService) ListMentorSessions(ctx context.Context, callerID, mentorID string, scope model.ListScope) (*model.MentorSessions, error) {
	if callerID == "" || callerID != mentorID {
		return nil, fmt.Errorf("%w: only the mentor can list their sessions", ErrForbidden)
	}

	sessions, err := s.sessionRepo.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("get mentor sessions: %w", err)
	}

	now := s.now()
	result := &model.MentorSessions{
		Upcoming: []*model.Session{},
		Past:     []*model.Session{},
	}
	for _, sess := range sessions {
		if !sess.Status.IsTerminal() && sess.EndTime.After(now) {
			result.Upcoming = append(result.Upcoming, sess)
		} else {
			result.Past = append(result.Past, sess)
		}
	}

	sort.SliceStable(result.Upcoming, func(i, j int) bool {
		return result.Upcoming[i].StartTime.Before(result.Upcoming[j].StartTime)
	})
	sort.SliceStable(result.Past, func(i, j int) bool {
		return result.Past[i].StartTime.After(result.Past[j].StartTime)
	})

	switch scope {
	case model.ListScopeUpcoming:
		result.Past = []*model.Session{}
	case model.ListScopePast:
		result.Upcoming = []*model.Session{}
	}

	return result, nil
}

// Delete физически удаляет сессию (административная операция)
func (s *SessionService) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := loadSession(ctx, s.sessionRepo, sessionID); err != nil {
		return err
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Удалили между чтением и удалением
			return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return fmt.Errorf("delete session: %w", err)
	}

	s.logger.Warn("Session deleted", zap.String("session_id", sessionID.String()))
	return nil
}

// otherParty - адрес второго участника для уведомления
func (s *SessionService) otherParty(session *model.Session, callerID string) string {
	if session.IsMentor(callerID) {
		return session.CounterpartyEmail
	}
	return session.MentorID
}

// notify отправляет уведомление в фоне: сбой не влияет на операцию и не повторяется
func (s *SessionService) notify(session *model.Session, to string, msg notify.Message) {
	if s.dispatcher == nil || strings.TrimSpace(to) == "" {
		return
	}

	sessionID := session.ID.String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if !s.dispatcher.Send(ctx, to, msg.Subject, msg.Body) {
			s.logger.Warn("Notification not delivered",
				zap.String("session_id", sessionID),
				zap.String("subject", msg.Subject))
		}
	}()
}

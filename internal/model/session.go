package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTiming возвращается, когда окончание сессии не позже начала
var ErrInvalidTiming = errors.New("end time must be after start time")

type SessionStatus string

const (
	SessionStatusDraft               SessionStatus = "draft"                // Заготовка отношений без подтверждённого времени
	SessionStatusScheduled           SessionStatus = "scheduled"            // Запланирована
	SessionStatusOngoing             SessionStatus = "ongoing"              // Идёт
	SessionStatusCompleted           SessionStatus = "completed"            // Завершена
	SessionStatusCancelled           SessionStatus = "cancelled"            // Отменена
	SessionStatusRescheduleRequested SessionStatus = "reschedule_requested" // Ожидает решения по переносу
)

// Valid проверяет что статус входит в закрытый набор
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusDraft, SessionStatusScheduled, SessionStatusOngoing,
		SessionStatusCompleted, SessionStatusCancelled, SessionStatusRescheduleRequested:
		return true
	}
	return false
}

// IsTerminal - из completed и cancelled переходов нет
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// BlocksCalendar сообщает, занимает ли сессия окно ментора
func (s SessionStatus) BlocksCalendar() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusOngoing, SessionStatusRescheduleRequested:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

type BookingType string

const (
	BookingTypePaid   BookingType = "paid"
	BookingTypeFree   BookingType = "free"
	BookingTypeManual BookingType = "manual"
)

func (b BookingType) Valid() bool {
	switch b {
	case BookingTypePaid, BookingTypeFree, BookingTypeManual:
		return true
	}
	return false
}

// InitialPaymentStatus - бесплатные и ручные записи оплачивать нечего
func (b BookingType) InitialPaymentStatus() PaymentStatus {
	if b == BookingTypePaid {
		return PaymentStatusPending
	}
	return PaymentStatusPaid
}

type RescheduleDecision string

const (
	RescheduleDecisionPending  RescheduleDecision = "pending"
	RescheduleDecisionApproved RescheduleDecision = "approved"
	RescheduleDecisionRejected RescheduleDecision = "rejected"
)

// ParseRescheduleDecision принимает только финальные решения
func ParseRescheduleDecision(raw string) (RescheduleDecision, bool) {
	switch d := RescheduleDecision(strings.ToLower(strings.TrimSpace(raw))); d {
	case RescheduleDecisionApproved, RescheduleDecisionRejected:
		return d, true
	}
	return "", false
}

type Requester string

const (
	RequesterMentor  Requester = "mentor"
	RequesterStudent Requester = "student"
)

type ParticipantRole string

const (
	RolePublisher  ParticipantRole = "publisher"
	RoleSubscriber ParticipantRole = "subscriber"
)

// RescheduleRequest - запись в журнале переносов, журнал только дополняется
type RescheduleRequest struct {
	RequestedAt   time.Time          `json:"requested_at"`
	RequestedBy   Requester          `json:"requested_by"`
	RequesterID   string             `json:"requester_id"`
	Reason        string             `json:"reason,omitempty"`
	ProposedStart time.Time          `json:"proposed_start"`
	ProposedEnd   time.Time          `json:"proposed_end"`
	Decision      RescheduleDecision `json:"decision"`
	DecidedAt     *time.Time         `json:"decided_at,omitempty"`
}

type Session struct {
	ID                 uuid.UUID           `json:"id"`
	MentorID           string              `json:"mentor_id"`
	CounterpartyID     string              `json:"counterparty_id,omitempty"`
	CounterpartyName   string              `json:"counterparty_name,omitempty"`
	CounterpartyEmail  string              `json:"counterparty_email,omitempty"`
	StartTime          time.Time           `json:"start_time"`
	EndTime            time.Time           `json:"end_time"`
	DurationMinutes    int                 `json:"duration_minutes"`
	ActualStart        *time.Time          `json:"actual_start,omitempty"`
	ActualEnd          *time.Time          `json:"actual_end,omitempty"`
	Status             SessionStatus       `json:"status"`
	PaymentStatus      PaymentStatus       `json:"payment_status"`
	BookingType        BookingType         `json:"booking_type"`
	Channel            string              `json:"channel,omitempty"`
	MeetingLink        string              `json:"meeting_link,omitempty"`
	RecordingRef       string              `json:"recording_ref,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	RescheduleRequests []RescheduleRequest `json:"reschedule_requests"`
	RescheduleCount    int                 `json:"reschedule_count"`
	CancelledBy        string              `json:"cancelled_by,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	Version            int64               `json:"version"` // растёт при каждой записи
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// SetTiming меняет время сессии и пересчитывает длительность
func (s *Session) SetTiming(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidTiming
	}
	s.StartTime = start
	s.EndTime = end
	s.DurationMinutes = int(end.Sub(start) / time.Minute)
	return nil
}

func (s *Session) IsMentor(userID string) bool {
	return userID != "" && s.MentorID == userID
}

// IsParticipant - ментор или собеседник по записи
func (s *Session) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return s.MentorID == userID || s.CounterpartyID == userID
}

// CounterpartyKey - ключ собеседника для агрегации: id, если есть, иначе имя.
// Схема хрупкая (имена могут совпадать), поэтому используется только здесь.
func CounterpartyKey(s *Session) string {
	if id := strings.TrimSpace(s.CounterpartyID); id != "" {
		return id
	}
	return strings.TrimSpace(s.CounterpartyName)
}

// PendingReschedule возвращает индекс последнего нерешённого запроса на перенос
func (s *Session) PendingReschedule() int {
	for i := len(s.RescheduleRequests) - 1; i >= 0; i-- {
		if s.RescheduleRequests[i].Decision == RescheduleDecisionPending {
			return i
		}
	}
	return -1
}

// ApprovedReschedules считает одобренные переносы
func (s *Session) ApprovedReschedules() int {
	count := 0
	for _, r := range s.RescheduleRequests {
		if r.Decision == RescheduleDecisionApproved {
			count++
		}
	}
	return count
}

// Overlaps проверяет пересечение [start, end) сессии с окном
func (s *Session) Overlaps(from, to time.Time) bool {
	return s.StartTime.Before(to) && from.Before(s.EndTime)
}

// Clone делает глубокую копию, чтобы изменения не протекали в хранилище
func (s *Session) Clone() *Session {
	c := *s
	if s.RescheduleRequests != nil {
		c.RescheduleRequests = make([]RescheduleRequest, len(s.RescheduleRequests))
		copy(c.RescheduleRequests, s.RescheduleRequests)
	}
	c.ActualStart = cloneTime(s.ActualStart)
	c.ActualEnd = cloneTime(s.ActualEnd)
	c.CancelledAt = cloneTime(s.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type ListScope string

const (
	ListScopeAll      ListScope = "all"
	ListScopeUpcoming ListScope = "upcoming"
	ListScopePast     ListScope = "past"
)

// ParseListScope - пустое значение означает all
func ParseListScope(raw string) (ListScope, bool) {
	switch s := ListScope(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return ListScopeAll, true
	case ListScopeAll, ListScopeUpcoming, ListScopePast:
		return s, true
	}
	return "", false
}

// MentorSessions - ответ ListMentorSessions
type MentorSessions struct {
	Upcoming []*Session `json:"upcoming"`
	Past     []*Session `json:"past"`
}

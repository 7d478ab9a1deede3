package api

import (
	"context"
	"strings"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionLifecycle interface {
	Create(ctx context.Context, callerID string, input service.CreateSessionInput) (*model.Session, error)
	Get(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.Session, error)
	UpdateDetails(ctx context.Context, callerID string, sessionID uuid.UUID, input service.UpdateDetailsInput) (*model.Session, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
	RequestReschedule(ctx context.Context, callerID string, sessionID uuid.UUID, proposedStart, proposedEnd time.Time, reason string) (*model.Session, error)
	DecideReschedule(ctx context.Context, callerID string, sessionID uuid.UUID, decision string) (*model.Session, error)
	Complete(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.Session, error)
	Cancel(ctx context.Context, callerID string, sessionID uuid.UUID, reason string) (*model.Session, error)
	ConfirmPayment(ctx context.Context, sessionID uuid.UUID) (*model.Session, error)
	ListMentorSessions(ctx context.Context, callerID, mentorID string, scope model.ListScope) (*model.MentorSessions, error)
}

type joinGate interface {
	Join(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.JoinResult, error)
	Presence(ctx context.Context, callerID string, sessionID uuid.UUID) (*model.Presence, error)
}

type SessionHandler struct {
	sessions sessionLifecycle
	join     joinGate
	logger   *zap.Logger
}

func NewSessionHandler(sessions *service.SessionService, join *service.JoinService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, join: join, logger: logger}
}

type createSessionRequest struct {
	MentorID          string `json:"mentor_id"`
	CounterpartyID    string `json:"counterparty_id"`
	CounterpartyName  string `json:"counterparty_name"`
	CounterpartyEmail string `json:"counterparty_email"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	MeetingLink       string `json:"meeting_link"`
	Notes             string `json:"notes"`
	BookingType       string `json:"booking_type"`
	Draft             bool   `json:"draft"`
}

type updateSessionRequest struct {
	Notes        *string `json:"notes"`
	MeetingLink  *string `json:"meeting_link"`
	RecordingRef *string `json:"recording_ref"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
}

type rescheduleRequest struct {
	ProposedStart string `json:"proposed_start"`
	ProposedEnd   string `json:"proposed_end"`
	Reason        string `json:"reason"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func parseTimestamp(raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	return t, err == nil
}

func parseSessionID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func invalidSessionID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	start, ok := parseTimestamp(req.StartTime)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_time must be a valid RFC3339 timestamp"})
	}
	end, ok := parseTimestamp(req.EndTime)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_time must be a valid RFC3339 timestamp"})
	}

	session, err := h.sessions.Create(c.Context(), userID, service.CreateSessionInput{
		MentorID:          req.MentorID,
		CounterpartyID:    req.CounterpartyID,
		CounterpartyName:  req.CounterpartyName,
		CounterpartyEmail: req.CounterpartyEmail,
		StartTime:         start,
		EndTime:           end,
		MeetingLink:       req.MeetingLink,
		Notes:             req.Notes,
		BookingType:       model.BookingType(strings.ToLower(strings.TrimSpace(req.BookingType))),
		Draft:             req.Draft,
	})
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	session, err := h.sessions.Get(c.Context(), userID, sessionID)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	var req updateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	input := service.UpdateDetailsInput{
		Notes:        req.Notes,
		MeetingLink:  req.MeetingLink,
		RecordingRef: req.RecordingRef,
	}
	if req.StartTime != nil {
		start, ok := parseTimestamp(*req.StartTime)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_time must be a valid RFC3339 timestamp"})
		}
		input.StartTime = &start
	}
	if req.EndTime != nil {
		end, ok := parseTimestamp(*req.EndTime)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_time must be a valid RFC3339 timestamp"})
		}
		input.EndTime = &end
	}

	session, err := h.sessions.UpdateDetails(c.Context(), userID, sessionID, input)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	if err := h.sessions.Delete(c.Context(), sessionID); err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) RequestReschedule(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	start, ok := parseTimestamp(req.ProposedStart)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proposed_start must be a valid RFC3339 timestamp"})
	}
	end, ok := parseTimestamp(req.ProposedEnd)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proposed_end must be a valid RFC3339 timestamp"})
	}

	session, err := h.sessions.RequestReschedule(c.Context(), userID, sessionID, start, end, req.Reason)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) DecideReschedule(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	var req decisionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	session, err := h.sessions.DecideReschedule(c.Context(), userID, sessionID, req.Decision)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CompleteSession(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	session, err := h.sessions.Complete(c.Context(), userID, sessionID)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	// тело необязательно
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
	}

	session, err := h.sessions.Cancel(c.Context(), userID, sessionID, req.Reason)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) ConfirmPayment(c *fiber.Ctx) error {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	session, err := h.sessions.ConfirmPayment(c.Context(), sessionID)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Join(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	result, err := h.join.Join(c.Context(), userID, sessionID)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(result)
}

func (h *SessionHandler) Presence(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := parseSessionID(c)
	if !ok {
		return invalidSessionID(c)
	}

	presence, err := h.join.Presence(c.Context(), userID, sessionID)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"presence": presence})
}

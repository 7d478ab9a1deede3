package api

import (
	"context"
	"strings"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/aureeture/mentor_sessions/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type availabilityManager interface {
	GetAvailability(ctx context.Context, mentorID string) (*model.Availability, error)
	UpsertAvailability(ctx context.Context, callerID string, availability *model.Availability) (*model.Availability, error)
	GetSlots(ctx context.Context, mentorID string, from, to time.Time) ([]model.Slot, error)
}

type menteeLister interface {
	ListMentees(ctx context.Context, callerID, mentorID string) ([]model.MenteeSummary, error)
}

// MentorHandler - календарь, сессии и подопечные конкретного ментора
type MentorHandler struct {
	availability availabilityManager
	sessions     sessionLifecycle
	mentees      menteeLister
	logger       *zap.Logger
}

func NewMentorHandler(
	availability *service.AvailabilityService,
	sessions *service.SessionService,
	mentees *service.MenteeService,
	logger *zap.Logger,
) *MentorHandler {
	return &MentorHandler{
		availability: availability,
		sessions:     sessions,
		mentees:      mentees,
		logger:       logger,
	}
}

type availabilityRequest struct {
	Timezone           string               `json:"timezone"`
	Weekly             []model.WeeklyWindow `json:"weekly"`
	Overrides          []model.DateOverride `json:"overrides"`
	MinNoticeHours     int                  `json:"min_notice_hours"`
	MaxSessionsPerWeek int                  `json:"max_sessions_per_week"`
	InstantBooking     bool                 `json:"instant_booking"`
}

func mentorID(c *fiber.Ctx) (string, bool) {
	id := strings.TrimSpace(c.Params("mentorId"))
	return id, id != ""
}

func (h *MentorHandler) GetAvailability(c *fiber.Ctx) error {
	mentor, ok := mentorID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	availability, err := h.availability.GetAvailability(c.Context(), mentor)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"availability": availability})
}

func (h *MentorHandler) UpsertAvailability(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	mentor, ok := mentorID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	var req availabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	if req.Weekly == nil {
		req.Weekly = []model.WeeklyWindow{}
	}
	if req.Overrides == nil {
		req.Overrides = []model.DateOverride{}
	}

	availability, err := h.availability.UpsertAvailability(c.Context(), userID, &model.Availability{
		MentorID:           mentor,
		Timezone:           strings.TrimSpace(req.Timezone),
		Weekly:             req.Weekly,
		Overrides:          req.Overrides,
		MinNoticeHours:     req.MinNoticeHours,
		MaxSessionsPerWeek: req.MaxSessionsPerWeek,
		InstantBooking:     req.InstantBooking,
	})
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"availability": availability})
}

func (h *MentorHandler) GetSlots(c *fiber.Ctx) error {
	mentor, ok := mentorID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	from, err := time.Parse(model.DateLayout, strings.TrimSpace(c.Query("from")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be a YYYY-MM-DD date"})
	}
	to, err := time.Parse(model.DateLayout, strings.TrimSpace(c.Query("to")))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be a YYYY-MM-DD date"})
	}

	slots, err := h.availability.GetSlots(c.Context(), mentor, from, to)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"slots": slots})
}

func (h *MentorHandler) ListSessions(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	mentor, ok := mentorID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	scope, ok := model.ParseListScope(c.Query("scope"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scope must be all, upcoming or past"})
	}

	sessions, err := h.sessions.ListMentorSessions(c.Context(), userID, mentor, scope)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(sessions)
}

func (h *MentorHandler) ListMentees(c *fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return unauthorized(c)
	}
	mentor, ok := mentorID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid mentor id"})
	}

	mentees, err := h.mentees.ListMentees(c.Context(), userID, mentor)
	if err != nil {
		return mapServiceError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"mentees": mentees})
}

package api

import (
	"github.com/gofiber/fiber/v2"
)

// RouteConfig - секреты, которыми защищены маршруты
type RouteConfig struct {
	AuthSecret    string
	InternalToken string
}

// RegisterRoutes монтирует API под /api/v1
func RegisterRoutes(app *fiber.App, cfg RouteConfig, sessionHandler *SessionHandler, mentorHandler *MentorHandler) {
	v1 := app.Group("/api/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	internal := v1.Group("/internal", InternalTokenRequired(cfg.InternalToken))
	internal.Post("/sessions/:id/payment-confirmed", sessionHandler.ConfirmPayment)

	auth := AuthRequired(cfg.AuthSecret)

	mentors := v1.Group("/mentors", auth)
	mentors.Get("/:mentorId/availability", mentorHandler.GetAvailability)
	mentors.Put("/:mentorId/availability", mentorHandler.UpsertAvailability)
	mentors.Get("/:mentorId/slots", mentorHandler.GetSlots)
	mentors.Get("/:mentorId/sessions", mentorHandler.ListSessions)
	mentors.Get("/:mentorId/mentees", mentorHandler.ListMentees)

	sessions := v1.Group("/sessions", auth)
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Patch("/:id", sessionHandler.UpdateSession)
	sessions.Delete("/:id", AdminOnly(), sessionHandler.DeleteSession)
	sessions.Post("/:id/reschedule", sessionHandler.RequestReschedule)
	sessions.Post("/:id/reschedule/decision", sessionHandler.DecideReschedule)
	sessions.Post("/:id/join", sessionHandler.Join)
	sessions.Get("/:id/presence", sessionHandler.Presence)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)
	sessions.Post("/:id/cancel", sessionHandler.CancelSession)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authenticate := cfg.AuthMiddleware.Handle
	app.Get("/metrics", authenticate, cfg.Health.Metrics)

	tickets := app.Group("/tickets", authenticate)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Post("/waiting-batch", auth.RequireProfile(domain.UserProfileAdmin), cfg.Tickets.WaitingBatch)
	tickets.Post("/sync-eligibility", cfg.Tickets.SyncEligibility)
	tickets.Get("/:ticketId", cfg.Tickets.ShowTicket)
	tickets.Get("/:ticketId/participants", cfg.Tickets.Participants)
	tickets.Get("/:ticketId/related", cfg.Tickets.RelatedTickets)
	tickets.Put("/:ticketId", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:ticketId", cfg.Tickets.DeleteTicket)

	app.Post("/ticket-logs", authenticate, cfg.Tickets.CreateTicketLog)

	if cfg.Events != nil {
		app.Get("/ws/tickets", authenticate, cfg.Events.Upgrade, cfg.Events.Stream())
	}
}

package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/service"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// TicketsHandler manages the ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	listing *service.ListingService
	waiting *service.WaitingService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, listing *service.ListingService, waiting *service.WaitingService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, listing: listing, waiting: waiting}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	result, err := h.listing.List(c.UserContext(), principal.UserID(), c.Queries())
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.Create(c.UserContext(), service.TicketCreateInput{
		ContactID:  req.ContactID,
		Status:     req.Status,
		UserID:     req.UserID,
		QueueID:    req.QueueID,
		WhatsappID: req.WhatsappID,
	})
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// ShowTicket GET /tickets/:ticketId.
func (h *TicketsHandler) ShowTicket(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Show(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// Participants GET /tickets/:ticketId/participants.
func (h *TicketsHandler) Participants(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	contacts, err := h.tickets.Participants(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(contacts)
}

// UpdateTicket PUT /tickets/:ticketId.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	input, err := service.ParseTicketUpdate(c.Body())
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Update(c.UserContext(), ticketID, input)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// DeleteTicket DELETE /tickets/:ticketId.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), ticketID); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "ticket deleted"})
}

// RelatedTickets GET /tickets/:ticketId/related.
func (h *TicketsHandler) RelatedTickets(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	related, err := h.tickets.Related(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(related)
}

// CreateTicketLog POST /ticket-logs.
func (h *TicketsHandler) CreateTicketLog(c *fiber.Ctx) error {
	var req dto.CreateTicketLogRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.tickets.CreateLog(c.UserContext(), service.TicketLogInput{
		TicketID:     req.TicketID,
		UserID:       req.UserID,
		NewUserID:    req.NewUserID,
		LogType:      req.LogType,
		TicketStatus: req.TicketStatus,
	})
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

// WaitingBatch POST /tickets/waiting-batch.
func (h *TicketsHandler) WaitingBatch(c *fiber.Ctx) error {
	offset, limit, err := service.ParseBatchParams(c.Body())
	if err != nil {
		return err
	}
	result, err := h.waiting.Run(c.UserContext(), offset, limit)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// SyncEligibility POST /tickets/sync-eligibility.
func (h *TicketsHandler) SyncEligibility(c *fiber.Ctx) error {
	var ids []int64
	if err := json.Unmarshal(c.Body(), &ids); err != nil {
		return apperrors.NewValidationError("body must be an array of ticket ids", nil)
	}
	result, err := h.listing.SyncEligibility(c.UserContext(), ids)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	raw := c.Params("ticketId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticketId", map[string]any{"ticketId": raw})
	}
	return id, nil
}

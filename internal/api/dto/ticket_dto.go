package dto

import (
	"github.com/spec-kit/ticketdesk/internal/domain"
)

// CreateTicketRequest payload. Omitting whatsappId selects the default channel.
type CreateTicketRequest struct {
	ContactID  int64               `json:"contactId"`
	Status     domain.TicketStatus `json:"status"`
	UserID     *int64              `json:"userId"`
	QueueID    *int64              `json:"queueId"`
	WhatsappID *int64              `json:"whatsappId"`
}

// CreateTicketLogRequest payload.
type CreateTicketLogRequest struct {
	TicketID     int64               `json:"ticketId"`
	UserID       *int64              `json:"userId"`
	NewUserID    *int64              `json:"newUserId"`
	LogType      string              `json:"logType"`
	TicketStatus domain.TicketStatus `json:"ticketStatus"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

package events

import (
	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Action enumerates lifecycle event kinds delivered to clients.
type Action string

const (
	// ActionUpdate covers both creation and modification; clients upsert.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// LifecycleEvent is the payload published under a status partition.
// Update events carry the full ticket, delete events only its id.
type LifecycleEvent struct {
	Action   Action         `json:"action"`
	Ticket   *domain.Ticket `json:"ticket,omitempty"`
	TicketID int64          `json:"ticketId,omitempty"`
}

// NewUpdateEvent builds the event announcing a created or changed ticket.
func NewUpdateEvent(ticket *domain.Ticket) LifecycleEvent {
	return LifecycleEvent{Action: ActionUpdate, Ticket: ticket}
}

// NewDeleteEvent builds the event announcing a removed ticket.
func NewDeleteEvent(ticketID int64) LifecycleEvent {
	return LifecycleEvent{Action: ActionDelete, TicketID: ticketID}
}

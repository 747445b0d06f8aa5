package domain

import "time"

// TicketLog is an immutable audit trail entry.
type TicketLog struct {
	ID           int64        `json:"id"`
	TicketID     int64        `json:"ticketId"`
	UserID       *int64       `json:"userId"`
	NewUserID    *int64       `json:"newUserId"`
	LogType      string       `json:"logType"`
	TicketStatus TicketStatus `json:"ticketStatus"`
	CreatedAt    time.Time    `json:"createdAt"`
}

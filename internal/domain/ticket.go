package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusPending TicketStatus = "pending"
	TicketStatusClosed  TicketStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusClosed:
		return true
	}
	return false
}

// Ticket is the aggregate for a customer conversation handled by agents.
type Ticket struct {
	ID                        int64        `json:"id"`
	Status                    TicketStatus `json:"status"`
	IsGroup                   bool         `json:"isGroup"`
	ContactID                 int64        `json:"contactId"`
	QueueID                   *int64       `json:"queueId"`
	UserID                    *int64       `json:"userId"`
	WhatsappID                int64        `json:"whatsappId"`
	CategoryID                *int64       `json:"categoryId"`
	MarketingCampaignID       *int64       `json:"marketingCampaignId"`
	UnreadMessages            int          `json:"unreadMessages"`
	LastMessage               string       `json:"lastMessage"`
	LastMessageTimestamp      int64        `json:"lastMessageTimestamp"`
	WasSentToZapier           bool         `json:"wasSentToZapier"`
	BeenWaitingSinceTimestamp *int64       `json:"beenWaitingSinceTimestamp"`
	CreatedAt                 time.Time    `json:"createdAt"`
	UpdatedAt                 time.Time    `json:"updatedAt"`

	Contact  *Contact  `json:"contact,omitempty"`
	Queue    *Queue    `json:"queue,omitempty"`
	User     *User     `json:"user,omitempty"`
	Whatsapp *Whatsapp `json:"whatsapp,omitempty"`
}

// RelatedTicket is a ticket sharing channel and contact with another one,
// carrying its first message sent at or after its creation.
type RelatedTicket struct {
	Ticket
	Messages []Message `json:"messages"`
}

package domain

// Message is a chat message exchanged on a ticket. Timestamp is unix seconds.
type Message struct {
	ID        string `json:"id"`
	TicketID  int64  `json:"ticketId"`
	FromMe    bool   `json:"fromMe"`
	Timestamp int64  `json:"timestamp"`
	Body      string `json:"body"`
}

// MessageVolume counts messages on a ticket by direction.
type MessageVolume struct {
	Inbound  int
	Outbound int
}

// Package channel talks to the chat gateway that owns the messaging
// connections tickets originate from.
package channel

import (
	"context"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Channel is the outbound side of a messaging connection.
type Channel interface {
	SendText(ctx context.Context, whatsappID int64, chatID, body string) error
	GroupParticipants(ctx context.Context, whatsappID int64, groupID string) ([]string, error)
	GetContact(ctx context.Context, whatsappID int64, chatID string) (*domain.Contact, error)
	LeaveGroup(ctx context.Context, whatsappID int64, groupID string) error
}

// ChatID returns the gateway address of a contact number.
func ChatID(number string, isGroup bool) string {
	if isGroup {
		return number + "@g.us"
	}
	return number + "@c.us"
}

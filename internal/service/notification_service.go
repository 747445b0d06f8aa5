package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
)

// NotificationService keeps an operational log of every lifecycle event
// delivered to this instance's hub.
type NotificationService struct {
	hub    *events.Hub
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(hub *events.Hub, logger *zap.Logger) *NotificationService {
	return &NotificationService{hub: hub, logger: logger}
}

// Run consumes events from all partitions until ctx is cancelled.
func (n *NotificationService) Run(ctx context.Context) {
	if n.hub == nil {
		return
	}
	partitions := []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending, domain.TicketStatusClosed}
	subs := make([]*events.Subscription, len(partitions))
	for i, partition := range partitions {
		subs[i] = n.hub.Subscribe(partition)
	}
	defer func() {
		for _, sub := range subs {
			n.hub.Unsubscribe(sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-subs[0].Events():
			n.handle(partitions[0], event)
		case event := <-subs[1].Events():
			n.handle(partitions[1], event)
		case event := <-subs[2].Events():
			n.handle(partitions[2], event)
		}
	}
}

func (n *NotificationService) handle(partition domain.TicketStatus, event events.LifecycleEvent) {
	ticketID := event.TicketID
	if event.Ticket != nil {
		ticketID = event.Ticket.ID
	}
	n.logger.Debug("lifecycle event delivered",
		zap.String("partition", string(partition)),
		zap.String("action", string(event.Action)),
		zap.Int64("ticket_id", ticketID))
}

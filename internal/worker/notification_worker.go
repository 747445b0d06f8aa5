package worker

import (
	"context"

	"github.com/spec-kit/ticketdesk/internal/service"
)

// StartNotificationWorker consumes hub deliveries in the background until
// ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	go notificationService.Run(ctx)
}

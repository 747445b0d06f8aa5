package events

import (
	"context"
	"errors"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Broadcaster delivers lifecycle events to everything subscribed to a
// status partition. Delivery is best-effort and at-most-once.
type Broadcaster interface {
	Publish(ctx context.Context, partition domain.TicketStatus, event LifecycleEvent) error
}

// Multi publishes to every sink in order. A failing sink does not stop the
// others; all failures are joined into the returned error.
type Multi []Broadcaster

// Publish fans the event out to all sinks.
func (m Multi) Publish(ctx context.Context, partition domain.TicketStatus, event LifecycleEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, partition, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

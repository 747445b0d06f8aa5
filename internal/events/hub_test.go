package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

func receive(t *testing.T, sub *Subscription) LifecycleEvent {
	t.Helper()
	select {
	case event := <-sub.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return LifecycleEvent{}
	}
}

func requireEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected event %+v", event)
	default:
	}
}

func TestHubDeliversOnlyToPartition(t *testing.T) {
	hub := NewHub()
	open := hub.Subscribe(domain.TicketStatusOpen)
	pending := hub.Subscribe(domain.TicketStatusPending)

	ticket := &domain.Ticket{ID: 10, Status: domain.TicketStatusOpen}
	if err := hub.Publish(context.Background(), domain.TicketStatusOpen, NewUpdateEvent(ticket)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	event := receive(t, open)
	if event.Action != ActionUpdate || event.Ticket.ID != 10 {
		t.Fatalf("event = %+v", event)
	}
	requireEmpty(t, pending)
}

func TestHubMultiplePartitions(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(domain.TicketStatusOpen, domain.TicketStatusClosed)

	_ = hub.Publish(context.Background(), domain.TicketStatusClosed, NewDeleteEvent(4))
	event := receive(t, sub)
	if event.Action != ActionDelete || event.TicketID != 4 || event.Ticket != nil {
		t.Fatalf("event = %+v", event)
	}
}

func TestHubDropsOnOverflow(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(domain.TicketStatusOpen)

	for i := 0; i < subscriptionBuffer+3; i++ {
		_ = hub.Publish(context.Background(), domain.TicketStatusOpen, NewDeleteEvent(int64(i)))
	}
	if got := sub.Dropped(); got != 3 {
		t.Fatalf("Dropped = %d, want 3", got)
	}
}

func TestHubPrunesCancelledSubscribers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(domain.TicketStatusPending)
	sub.Cancel()

	_ = hub.Publish(context.Background(), domain.TicketStatusPending, NewDeleteEvent(1))
	if n := hub.SubscriberCount(domain.TicketStatusPending); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
	requireEmpty(t, sub)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	keep := hub.Subscribe(domain.TicketStatusOpen)
	gone := hub.Subscribe(domain.TicketStatusOpen, domain.TicketStatusClosed)

	hub.Unsubscribe(gone)
	if n := hub.SubscriberCount(domain.TicketStatusOpen); n != 1 {
		t.Fatalf("open subscribers = %d, want 1", n)
	}
	if n := hub.SubscriberCount(domain.TicketStatusClosed); n != 0 {
		t.Fatalf("closed subscribers = %d, want 0", n)
	}
	select {
	case <-gone.Done():
	default:
		t.Fatal("unsubscribed subscription must be done")
	}

	_ = hub.Publish(context.Background(), domain.TicketStatusOpen, NewDeleteEvent(2))
	receive(t, keep)
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, domain.TicketStatus, LifecycleEvent) error {
	f.calls++
	return errors.New("sink down")
}

func TestMultiIsolatesFailures(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(domain.TicketStatusOpen)
	failing := &failingSink{}

	err := Multi{failing, nil, hub}.Publish(context.Background(), domain.TicketStatusOpen, NewDeleteEvent(8))
	if err == nil {
		t.Fatal("expected joined error from failing sink")
	}
	if failing.calls != 1 {
		t.Fatalf("failing sink calls = %d", failing.calls)
	}
	if event := receive(t, sub); event.TicketID != 8 {
		t.Fatalf("event = %+v", event)
	}
}

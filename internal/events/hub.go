package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// subscriptionBuffer is the per-subscriber channel size. Events arriving
// while the buffer is full are dropped for that subscriber.
const subscriptionBuffer = 64

// Subscription is one client's registration on one or more partitions.
type Subscription struct {
	partitions []domain.TicketStatus
	events     chan LifecycleEvent
	done       chan struct{}
	once       sync.Once
	dropped    atomic.Int64
}

// Events returns the channel events are delivered on. It is never closed;
// select on Done as well.
func (s *Subscription) Events() <-chan LifecycleEvent { return s.events }

// Done is closed once the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events were discarded on overflow.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Cancel stops delivery. The hub prunes the subscription on its next
// publish to any of its partitions.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// Hub is the in-process subscriber registry keyed by ticket status.
type Hub struct {
	mu          sync.Mutex
	subscribers map[domain.TicketStatus][]*Subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[domain.TicketStatus][]*Subscription)}
}

// Subscribe registers for events on the given partitions.
func (h *Hub) Subscribe(partitions ...domain.TicketStatus) *Subscription {
	sub := &Subscription{
		partitions: partitions,
		events:     make(chan LifecycleEvent, subscriptionBuffer),
		done:       make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, partition := range partitions {
		h.subscribers[partition] = append(h.subscribers[partition], sub)
	}
	return sub
}

// Unsubscribe cancels the subscription and removes it right away.
func (h *Hub) Unsubscribe(sub *Subscription) {
	sub.Cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, partition := range sub.partitions {
		current := h.subscribers[partition]
		for i, existing := range current {
			if existing == sub {
				current = append(current[:i], current[i+1:]...)
				break
			}
		}
		if len(current) == 0 {
			delete(h.subscribers, partition)
		} else {
			h.subscribers[partition] = current
		}
	}
}

// Publish delivers the event to every live subscriber of the partition
// without blocking. It never fails.
func (h *Hub) Publish(_ context.Context, partition domain.TicketStatus, event LifecycleEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.subscribers[partition]
	if len(current) == 0 {
		return nil
	}

	// reverse order so removals don't shift unvisited entries
	for i := len(current) - 1; i >= 0; i-- {
		sub := current[i]

		select {
		case <-sub.done:
			current = append(current[:i], current[i+1:]...)
			continue
		default:
		}

		select {
		case sub.events <- event:
		default:
			sub.dropped.Add(1)
		}
	}

	if len(current) == 0 {
		delete(h.subscribers, partition)
	} else {
		h.subscribers[partition] = current
	}
	return nil
}

// SubscriberCount returns the number of registrations on a partition.
func (h *Hub) SubscriberCount(partition domain.TicketStatus) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[partition])
}

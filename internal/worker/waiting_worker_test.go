package worker

import (
	"context"
	"testing"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/testutil"
)

func newWaiting(store *testutil.Store) *service.WaitingService {
	return service.NewWaitingService(service.WaitingDependencies{
		TicketRepo:  store.TicketRepo(),
		MessageRepo: store.MessageRepo(),
		MaxLimit:    50,
	})
}

func seedTickets(store *testutil.Store, n int) {
	for i := 1; i <= n; i++ {
		id := int64(i)
		store.AddTicket(domain.Ticket{ID: id, Status: domain.TicketStatusOpen})
		store.Messages[id] = []domain.Message{{TicketID: id, Timestamp: 100 + id}}
	}
}

func TestSweepCoversEveryTicket(t *testing.T) {
	store := testutil.NewStore()
	seedTickets(store, 7)

	result, err := Sweep(context.Background(), newWaiting(store), 0, 3, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Batches != 3 || result.Processed != 7 || result.Updated != 7 {
		t.Fatalf("result = %+v", result)
	}

	again, err := Sweep(context.Background(), newWaiting(store), 0, 3, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if again.Updated != 0 {
		t.Fatalf("second sweep updated %d tickets", again.Updated)
	}
}

func TestSweepHonoursRange(t *testing.T) {
	store := testutil.NewStore()
	seedTickets(store, 10)

	result, err := Sweep(context.Background(), newWaiting(store), 2, 3, 4)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Processed != 4 || result.Batches != 2 {
		t.Fatalf("result = %+v", result)
	}
	for id := int64(1); id <= 10; id++ {
		marked := store.Tickets[id].BeenWaitingSinceTimestamp != nil
		want := id >= 3 && id <= 6
		if marked != want {
			t.Errorf("ticket %d marked = %v, want %v", id, marked, want)
		}
	}
}

func TestSweepExactMultipleEndsOnEmptyPage(t *testing.T) {
	store := testutil.NewStore()
	seedTickets(store, 6)

	result, err := Sweep(context.Background(), newWaiting(store), 0, 3, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Batches != 3 || result.Processed != 6 {
		t.Fatalf("result = %+v", result)
	}
}

package service

import (
	"context"
	"testing"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/testutil"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

func newWaitingService(store *testutil.Store) *WaitingService {
	return NewWaitingService(WaitingDependencies{
		TicketRepo:  store.TicketRepo(),
		MessageRepo: store.MessageRepo(),
		MaxLimit:    100,
	})
}

func TestWaitingRunBackfillsOnce(t *testing.T) {
	store := testutil.NewStore()
	for _, id := range []int64{1, 2, 3} {
		store.AddTicket(domain.Ticket{ID: id, Status: domain.TicketStatusOpen})
	}
	store.Messages[1] = []domain.Message{
		{ID: "a", FromMe: true, Timestamp: 10},
		{ID: "b", Timestamp: 20},
		{ID: "c", Timestamp: 30},
	}
	store.Messages[2] = []domain.Message{
		{ID: "d", Timestamp: 10},
		{ID: "e", FromMe: true, Timestamp: 20},
	}
	svc := newWaitingService(store)

	result, err := svc.Run(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Count != 3 || *result.FirstID != 1 || *result.LastID != 3 || result.Updated != 1 {
		t.Fatalf("result = %+v", result)
	}
	if got := store.Tickets[1].BeenWaitingSinceTimestamp; got == nil || *got != 20 {
		t.Fatalf("ticket 1 waiting since = %v, want 20", got)
	}
	if store.Tickets[2].BeenWaitingSinceTimestamp != nil {
		t.Fatal("answered ticket must not be marked waiting")
	}

	writes := store.WaitingWrites
	again, err := svc.Run(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if again.Updated != 0 || store.WaitingWrites != writes {
		t.Fatalf("second run updated %d, writes %d -> %d", again.Updated, writes, store.WaitingWrites)
	}
}

func TestWaitingRunPagesByID(t *testing.T) {
	store := testutil.NewStore()
	for _, id := range []int64{5, 1, 9, 7} {
		store.AddTicket(domain.Ticket{ID: id})
	}
	svc := newWaitingService(store)

	result, err := svc.Run(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Count != 2 || *result.FirstID != 5 || *result.LastID != 7 {
		t.Fatalf("result = %+v, want ids 5..7", result)
	}
}

func TestWaitingRunEmptyPage(t *testing.T) {
	svc := newWaitingService(testutil.NewStore())

	for _, limit := range []int{0, 10} {
		result, err := svc.Run(context.Background(), 50, limit)
		if err != nil {
			t.Fatalf("Run(limit=%d): %v", limit, err)
		}
		if result.Count != 0 || result.Updated != 0 || result.FirstID != nil || result.LastID != nil {
			t.Fatalf("Run(limit=%d) = %+v, want empty summary", limit, result)
		}
	}
}

func TestWaitingRunRejectsOversizedLimit(t *testing.T) {
	svc := newWaitingService(testutil.NewStore())

	if _, err := svc.Run(context.Background(), 0, 101); !apperrors.HasCode(err, apperrors.CodeInvalidParams) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeInvalidParams)
	}
	if _, err := svc.Run(context.Background(), -1, 1); !apperrors.HasCode(err, apperrors.CodeInvalidParams) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeInvalidParams)
	}
}

func TestParseBatchParams(t *testing.T) {
	offset, limit, err := ParseBatchParams([]byte(`{"limit":25,"offset":50}`))
	if err != nil || offset != 50 || limit != 25 {
		t.Fatalf("got offset=%d limit=%d err=%v", offset, limit, err)
	}

	for _, body := range []string{
		`{"limit":"25","offset":0}`,
		`{"limit":25}`,
		`{"limit":null,"offset":0}`,
		`{"limit":-1,"offset":0}`,
		`{"limit":2.5,"offset":0}`,
		`not json`,
	} {
		if _, _, err := ParseBatchParams([]byte(body)); !apperrors.HasCode(err, apperrors.CodeInvalidParams) {
			t.Errorf("ParseBatchParams(%s) err = %v, want %s", body, err, apperrors.CodeInvalidParams)
		}
	}
}

func TestWaitingSince(t *testing.T) {
	cases := []struct {
		name string
		msgs []domain.Message
		want int64
		ok   bool
	}{
		{"no messages", nil, 0, false},
		{"last outbound", []domain.Message{{Timestamp: 1}, {FromMe: true, Timestamp: 2}}, 0, false},
		{"only inbound", []domain.Message{{Timestamp: 3}, {Timestamp: 4}}, 3, true},
		{"trailing run", []domain.Message{{Timestamp: 1}, {FromMe: true, Timestamp: 2}, {Timestamp: 5}, {Timestamp: 6}}, 5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := waitingSince(tc.msgs)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("waitingSince = %d,%v want %d,%v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

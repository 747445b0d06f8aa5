package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/testutil"
	"github.com/spec-kit/ticketdesk/internal/ticketquery"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

func newListingService(store *testutil.Store, annotate bool) *ListingService {
	return NewListingService(ListingDependencies{
		TicketRepo:  store.TicketRepo(),
		MessageRepo: store.MessageRepo(),
		Users:       store.UserRepo(),
		Config:      config.ListingConfig{PageSize: 2, AnnotateSyncEligibility: annotate, WaitingThresholdMinutes: 10},
		Now:         func() time.Time { return time.Date(2024, 5, 17, 15, 0, 0, 0, time.UTC) },
	})
}

func seedListing(store *testutil.Store) {
	for i, ts := range []int64{100, 300, 200} {
		store.AddTicket(domain.Ticket{
			ID:                   int64(i + 1),
			Status:               domain.TicketStatusOpen,
			ContactID:            testutil.ContactAna,
			WhatsappID:           testutil.WhatsappMain,
			UserID:               testutil.Int64(testutil.UserAgent),
			LastMessageTimestamp: ts,
		})
	}
}

func messages(ticketID int64, inbound, outbound int) []domain.Message {
	var msgs []domain.Message
	for i := 0; i < inbound; i++ {
		msgs = append(msgs, domain.Message{TicketID: ticketID, Timestamp: int64(i)})
	}
	for i := 0; i < outbound; i++ {
		msgs = append(msgs, domain.Message{TicketID: ticketID, FromMe: true, Timestamp: int64(100 + i)})
	}
	return msgs
}

func TestListPagesAndReportsHasMore(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	seedListing(store)
	svc := newListingService(store, false)

	result, err := svc.List(context.Background(), testutil.UserAgent, map[string]string{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Count != 3 || !result.HasMore || len(result.Tickets) != 2 {
		t.Fatalf("result = count %d hasMore %v len %d", result.Count, result.HasMore, len(result.Tickets))
	}
	if result.Tickets[0].ID != 2 || result.Tickets[1].ID != 3 {
		t.Fatalf("order = %d,%d, want most recent activity first", result.Tickets[0].ID, result.Tickets[1].ID)
	}
	if result.Tickets[0].ShouldSendToZapier != nil {
		t.Fatal("annotation must be absent when disabled")
	}

	result, err = svc.List(context.Background(), testutil.UserAgent, map[string]string{ticketquery.ParamPageNumber: "2"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.HasMore || len(result.Tickets) != 1 || result.Tickets[0].ID != 1 {
		t.Fatalf("second page = %+v", result)
	}
}

func TestListReturnsBuiltPredicate(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	svc := newListingService(store, false)

	result, err := svc.List(context.Background(), testutil.UserAgent, map[string]string{ticketquery.ParamFilterByUserQueue: "true"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.LastQuery == nil {
		t.Fatal("search was not called")
	}

	var queueClause *ticketquery.Clause
	for i, clause := range result.WhereCondition.And {
		if clause.Field == ticketquery.FieldQueueID {
			queueClause = &result.WhereCondition.And[i]
		}
	}
	if queueClause == nil {
		t.Fatalf("where = %+v, want a queue scope clause", result.WhereCondition)
	}
	refs, ok := queueClause.Value.([]ticketquery.QueueRef)
	if !ok || len(refs) != 3 || !refs[2].IsUnassigned() {
		t.Fatalf("queue scope = %+v, want the agent's two queues plus unassigned", queueClause.Value)
	}
	if len(result.Tickets) != 0 || result.Tickets == nil {
		t.Fatal("empty listing must return an empty, non-nil slice")
	}
}

func TestListAppliesFiltersToTickets(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	store.AddTicket(domain.Ticket{ID: 1, Status: domain.TicketStatusOpen, ContactID: testutil.ContactAna, WhatsappID: testutil.WhatsappMain, QueueID: testutil.Int64(testutil.QueueSales), LastMessageTimestamp: 30})
	store.AddTicket(domain.Ticket{ID: 2, Status: domain.TicketStatusOpen, ContactID: testutil.ContactAna, WhatsappID: testutil.WhatsappMain, LastMessageTimestamp: 20})
	store.AddTicket(domain.Ticket{ID: 3, Status: domain.TicketStatusPending, ContactID: testutil.ContactGroup, WhatsappID: testutil.WhatsappDefault, IsGroup: true, LastMessageTimestamp: 10})
	store.AddTicket(domain.Ticket{ID: 4, Status: domain.TicketStatusOpen, ContactID: testutil.ContactAna, WhatsappID: testutil.WhatsappMain, UserID: testutil.Int64(testutil.UserAdmin), LastMessageTimestamp: 40})
	svc := NewListingService(ListingDependencies{
		TicketRepo:  store.TicketRepo(),
		MessageRepo: store.MessageRepo(),
		Users:       store.UserRepo(),
		Config:      config.ListingConfig{PageSize: 10, WaitingThresholdMinutes: 10},
	})

	cases := []struct {
		name   string
		params map[string]string
		want   []int64
	}{
		{"owned or pending by default", map[string]string{}, []int64{3}},
		{"show all", map[string]string{ticketquery.ParamShowAll: "true"}, []int64{4, 1, 2, 3}},
		{"empty queue list matches nothing", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamQueueIDs: "[]"}, nil},
		{"null queue matches unassigned only", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamQueueIDs: "[null]"}, []int64{4, 2, 3}},
		{"queue id only", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamQueueIDs: "[20]"}, []int64{1}},
		{"user queues plus unassigned", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamFilterByUserQueue: "true"}, []int64{4, 1, 2, 3}},
		{"channel", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamWhatsappIDs: "[4]"}, []int64{3}},
		{"groups", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamTypeIDs: `["group"]`}, []int64{3}},
		{"search by contact", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamSearch: "SUPPL"}, []int64{3}},
		{"status", map[string]string{ticketquery.ParamShowAll: "true", ticketquery.ParamStatus: "pending"}, []int64{3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.List(context.Background(), testutil.UserAgent, tc.params)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var got []int64
			for _, ticket := range result.Tickets {
				got = append(got, ticket.ID)
			}
			if result.Count != len(tc.want) || !equalIDs(got, tc.want) {
				t.Fatalf("ids = %v (count %d), want %v", got, result.Count, tc.want)
			}
		})
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestListAnnotatesSyncEligibility(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	seedListing(store)
	store.Messages[2] = messages(2, 6, 6)
	store.Messages[3] = messages(3, 6, 5)
	svc := newListingService(store, true)

	result, err := svc.List(context.Background(), testutil.UserAgent, map[string]string{ticketquery.ParamShowAll: "true"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := map[int64]bool{}
	for _, ticket := range result.Tickets {
		if ticket.ShouldSendToZapier == nil {
			t.Fatalf("ticket %d not annotated", ticket.ID)
		}
		got[ticket.ID] = *ticket.ShouldSendToZapier
	}
	if !got[2] || got[3] {
		t.Fatalf("eligibility = %v, want 2 eligible and 3 not", got)
	}
}

func TestListUnknownUserWithQueueScope(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	svc := newListingService(store, false)

	_, err := svc.List(context.Background(), 404, map[string]string{ticketquery.ParamFilterByUserQueue: "true"})
	if !apperrors.HasCode(err, apperrors.CodeUserNotFound) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeUserNotFound)
	}
}

func TestListRejectsMalformedFilter(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	svc := newListingService(store, false)

	_, err := svc.List(context.Background(), testutil.UserAgent, map[string]string{ticketquery.ParamQueueIDs: "[1,"})
	if !apperrors.HasCode(err, apperrors.CodeMalformedFilter) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeMalformedFilter)
	}
	if store.LastQuery != nil {
		t.Fatal("malformed filters must not reach storage")
	}
}

func TestListStorageFailure(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	svc := newListingService(store, false)
	store.Err = errors.New("connection refused")

	_, err := svc.List(context.Background(), testutil.UserAgent, map[string]string{})
	if !apperrors.HasCode(err, apperrors.CodePersistenceFailure) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodePersistenceFailure)
	}
}

func TestSyncEligibility(t *testing.T) {
	store := testutil.Seed(testutil.NewStore())
	seedListing(store)
	store.Tickets[1].WasSentToZapier = true
	store.Messages[1] = messages(1, 10, 10)
	store.Messages[2] = messages(2, 6, 6)
	svc := newListingService(store, false)

	result, err := svc.SyncEligibility(context.Background(), []int64{1, 2, 3, 99})
	if err != nil {
		t.Fatalf("SyncEligibility: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("result = %+v, want unknown ids skipped", result)
	}
	if result[0].ShouldSendToZapier || !result[0].WasSentToZapier {
		t.Errorf("ticket 1 = %+v, already sent tickets are not eligible", result[0])
	}
	if !result[1].ShouldSendToZapier {
		t.Errorf("ticket 2 = %+v, want eligible", result[1])
	}
	if result[2].ShouldSendToZapier {
		t.Errorf("ticket 3 = %+v, want not eligible", result[2])
	}

	empty, err := svc.SyncEligibility(context.Background(), nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty = %v, %v", empty, err)
	}
}

func TestEligibleForSyncThreshold(t *testing.T) {
	cases := []struct {
		volume domain.MessageVolume
		sent   bool
		want   bool
	}{
		{domain.MessageVolume{Inbound: 5, Outbound: 5}, false, false},
		{domain.MessageVolume{Inbound: 6, Outbound: 5}, false, false},
		{domain.MessageVolume{Inbound: 6, Outbound: 6}, false, true},
		{domain.MessageVolume{Inbound: 6, Outbound: 6}, true, false},
	}
	for _, tc := range cases {
		if got := eligibleForSync(tc.sent, tc.volume); got != tc.want {
			t.Errorf("eligibleForSync(%v, %+v) = %v, want %v", tc.sent, tc.volume, got, tc.want)
		}
	}
}

package ticketquery

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

var testNow = time.Date(2024, 5, 17, 15, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{UserID: 2, PageSize: 20, Now: testNow, WaitingThreshold: 10 * time.Minute}
}

func findClause(query Query, field Field) (Clause, bool) {
	for _, clause := range query.Predicate.And {
		if clause.Field == field {
			return clause, true
		}
	}
	return Clause{}, false
}

func TestBuildIsDeterministic(t *testing.T) {
	criteria, err := ParseCriteria(map[string]string{
		ParamSearch:                 "joão",
		ParamStatus:                 "open",
		ParamDate:                   "2024-05-01",
		ParamQueueIDs:               "[1,null]",
		ParamWhatsappIDs:            "[3,4]",
		ParamTypeIDs:                `["group","individual"]`,
		ParamShowOnlyWaitingTickets: "true",
		ParamCategoryID:             "6",
	})
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}

	first, err := Build(criteria, criteria.QueueIDs, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(criteria, criteria.QueueIDs, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("Build returned different queries for identical inputs")
	}

	firstJSON, _ := json.Marshal(first.Predicate)
	secondJSON, _ := json.Marshal(second.Predicate)
	if string(firstJSON) != string(secondJSON) {
		t.Fatalf("predicate JSON differs:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestBuildWithoutFiltersOnlyRestrictsOwnership(t *testing.T) {
	criteria, _ := ParseCriteria(map[string]string{})

	query, err := Build(criteria, criteria.QueueIDs, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(query.Predicate.And) != 1 {
		t.Fatalf("clauses = %+v, want only the ownership clause", query.Predicate.And)
	}
	clause := query.Predicate.And[0]
	if clause.Field != FieldOwnership || clause.Value != int64(2) {
		t.Fatalf("clause = %+v", clause)
	}
}

func TestBuildShowAllDropsOwnership(t *testing.T) {
	criteria, _ := ParseCriteria(map[string]string{ParamShowAll: "true"})

	query, err := Build(criteria, criteria.QueueIDs, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(query.Predicate.And) != 0 {
		t.Fatalf("clauses = %+v, want none", query.Predicate.And)
	}
}

func TestBuildEmptyListMatchesNothing(t *testing.T) {
	criteria, _ := ParseCriteria(map[string]string{ParamShowAll: "true", ParamMarketingCampaignIDs: "[]"})

	query, err := Build(criteria, criteria.QueueIDs, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	clause, ok := findClause(query, FieldMarketingCampaignID)
	if !ok || clause.Op != OpNone {
		t.Fatalf("clause = %+v, want a match-none clause", clause)
	}
	if _, ok := findClause(query, FieldWhatsappID); ok {
		t.Fatal("absent whatsappIds must not produce a clause")
	}
}

func TestBuildClauses(t *testing.T) {
	criteria, _ := ParseCriteria(map[string]string{
		ParamShowAll:                "true",
		ParamSearch:                 "Ana",
		ParamDate:                   "2024-05-01",
		ParamTypeIDs:                `["group","individual","group"]`,
		ParamShowOnlyMyGroups:       "true",
		ParamWithUnreadMessages:     "true",
		ParamShowOnlyWaitingTickets: "true",
	})
	scope := QueueList{Present: true, Refs: []QueueRef{QueueID(2), Unassigned()}}

	query, err := Build(criteria, scope, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if clause, _ := findClause(query, FieldSearch); clause.Value != "%ana%" {
		t.Errorf("search clause = %+v", clause)
	}
	dateClause, _ := findClause(query, FieldCreatedAt)
	dateRange, ok := dateClause.Value.(DateRange)
	if !ok || !dateRange.To.Equal(dateRange.From.Add(24*time.Hour)) {
		t.Errorf("date clause = %+v", dateClause)
	}
	queueClause, _ := findClause(query, FieldQueueID)
	if refs, ok := queueClause.Value.([]QueueRef); !ok || len(refs) != 2 || !refs[1].IsUnassigned() {
		t.Errorf("queue clause = %+v", queueClause)
	}
	typeClause, _ := findClause(query, FieldIsGroup)
	if kinds, ok := typeClause.Value.([]bool); !ok || !reflect.DeepEqual(kinds, []bool{false, true}) {
		t.Errorf("type clause = %+v", typeClause)
	}
	waitingClause, _ := findClause(query, FieldBeenWaitingSince)
	if waitingClause.Value != testNow.Add(-10*time.Minute).Unix() {
		t.Errorf("waiting clause = %+v", waitingClause)
	}
	if _, ok := findClause(query, FieldUnreadMessages); !ok {
		t.Error("missing unread clause")
	}

	var messagesRequired bool
	for _, include := range query.Includes {
		if include.As == "messages" {
			messagesRequired = include.Required
		}
	}
	if !messagesRequired {
		t.Error("search must require the messages include")
	}
}

func TestBuildPagination(t *testing.T) {
	criteria, _ := ParseCriteria(map[string]string{ParamPageNumber: "3"})

	query, err := Build(criteria, criteria.QueueIDs, testOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if query.Offset != 40 || query.Limit != 20 {
		t.Fatalf("offset/limit = %d/%d, want 40/20", query.Offset, query.Limit)
	}

	criteria.PageNumber = -1
	if _, err := Build(criteria, criteria.QueueIDs, testOptions()); !apperrors.HasCode(err, apperrors.CodeInvalidPagination) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeInvalidPagination)
	}
}

func TestHasMore(t *testing.T) {
	if !HasMore(47, 1, 20) {
		t.Error("count=47 page=1 size=20: want hasMore")
	}
	if !HasMore(47, 2, 20) {
		t.Error("count=47 page=2 size=20: want hasMore")
	}
	if HasMore(47, 3, 20) {
		t.Error("count=47 page=3 size=20: want no more")
	}
	if HasMore(0, 1, 20) {
		t.Error("empty result must not have more")
	}
}

func TestQueueRefJSON(t *testing.T) {
	body, err := json.Marshal([]QueueRef{QueueID(4), Unassigned()})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(body) != "[4,null]" {
		t.Fatalf("JSON = %s, want [4,null]", body)
	}
}

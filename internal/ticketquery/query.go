package ticketquery

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// Field names a ticket attribute a clause restricts.
type Field string

const (
	FieldStatus              Field = "status"
	FieldCreatedAt           Field = "createdAt"
	FieldSearch              Field = "search"
	FieldQueueID             Field = "queueId"
	FieldWhatsappID          Field = "whatsappId"
	FieldMarketingCampaignID Field = "marketingCampaignId"
	FieldIsGroup             Field = "isGroup"
	FieldUnreadMessages      Field = "unreadMessages"
	FieldCategoryID          Field = "categoryId"
	FieldBeenWaitingSince    Field = "beenWaitingSinceTimestamp"
	FieldOwnership           Field = "ownership"
)

// Operator is the comparison a clause applies.
type Operator string

const (
	OpEq             Operator = "eq"
	OpIn             Operator = "in"
	OpBetween        Operator = "between"
	OpLike           Operator = "like"
	OpGt             Operator = "gt"
	OpLte            Operator = "lte"
	OpNone           Operator = "none"
	OpOwnerOrPending Operator = "ownerOrPending"
)

// Clause is one restriction of the listing predicate. The dynamic type of
// Value depends on Field and Op:
//
//	status/eq                      domain.TicketStatus
//	createdAt/between              DateRange
//	search/like                    string (lower-cased LIKE pattern)
//	queueId/in                     []QueueRef
//	whatsappId, marketingCampaignId/in  []int64
//	isGroup/in                     []bool
//	isGroup/eq                     bool
//	unreadMessages/gt              int
//	categoryId/eq                  int64
//	beenWaitingSinceTimestamp/lte  int64 (unix seconds)
//	ownership/ownerOrPending       int64 (requesting user id)
//	any/none                       nil, matches nothing
type Clause struct {
	Field Field    `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value,omitempty"`
}

// DateRange is a half-open [From, To) interval.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Predicate is the conjunction of its clauses; no clauses means no restriction.
type Predicate struct {
	And []Clause `json:"and"`
}

// Include describes a relation loaded with every ticket.
type Include struct {
	Model      string   `json:"model"`
	As         string   `json:"as"`
	Attributes []string `json:"attributes"`
	Required   bool     `json:"required"`
}

// OrderTerm is one sort key.
type OrderTerm struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Query is the complete, storage-independent description of a listing.
type Query struct {
	Predicate  Predicate
	Includes   []Include
	Order      []OrderTerm
	PageNumber int
	PageSize   int
	Limit      int
	Offset     int
}

// Options carries the request context Build needs besides the criteria.
type Options struct {
	UserID           int64
	PageSize         int
	Now              time.Time
	WaitingThreshold time.Duration
}

// Build composes criteria and scope into a Query. It is a pure function of
// its inputs: the same arguments always produce an identical Query.
func Build(criteria Criteria, scope QueueList, opts Options) (Query, error) {
	if criteria.PageNumber < 1 {
		return Query{}, apperrors.NewInvalidPagination(strconv.Itoa(criteria.PageNumber))
	}
	if opts.PageSize < 1 {
		return Query{}, apperrors.NewValidationError("page size must be positive", map[string]any{"pageSize": opts.PageSize})
	}

	clauses := []Clause{}

	if !criteria.ShowAll {
		clauses = append(clauses, Clause{Field: FieldOwnership, Op: OpOwnerOrPending, Value: opts.UserID})
	}
	if criteria.Status != "" {
		clauses = append(clauses, Clause{Field: FieldStatus, Op: OpEq, Value: criteria.Status})
	}
	if criteria.Date != nil {
		from := *criteria.Date
		clauses = append(clauses, Clause{Field: FieldCreatedAt, Op: OpBetween, Value: DateRange{From: from, To: from.AddDate(0, 0, 1)}})
	}
	if criteria.SearchParam != "" {
		pattern := "%" + strings.ToLower(criteria.SearchParam) + "%"
		clauses = append(clauses, Clause{Field: FieldSearch, Op: OpLike, Value: pattern})
	}
	if scope.Present {
		clauses = append(clauses, membership(FieldQueueID, len(scope.Refs), scope.Refs))
	}
	if criteria.WhatsappIDs.Present {
		clauses = append(clauses, membership(FieldWhatsappID, len(criteria.WhatsappIDs.Values), criteria.WhatsappIDs.Values))
	}
	if criteria.MarketingCampaignIDs.Present {
		clauses = append(clauses, membership(FieldMarketingCampaignID, len(criteria.MarketingCampaignIDs.Values), criteria.MarketingCampaignIDs.Values))
	}
	if criteria.TypeIDs.Present {
		kinds := groupKinds(criteria.TypeIDs.Values)
		clauses = append(clauses, membership(FieldIsGroup, len(kinds), kinds))
	}
	if criteria.ShowOnlyMyGroups {
		clauses = append(clauses, Clause{Field: FieldIsGroup, Op: OpEq, Value: true})
	}
	if criteria.WithUnreadMessages {
		clauses = append(clauses, Clause{Field: FieldUnreadMessages, Op: OpGt, Value: 0})
	}
	if criteria.CategoryID != nil {
		clauses = append(clauses, Clause{Field: FieldCategoryID, Op: OpEq, Value: *criteria.CategoryID})
	}
	if criteria.ShowOnlyWaitingTickets {
		cutoff := opts.Now.Add(-opts.WaitingThreshold).Unix()
		clauses = append(clauses, Clause{Field: FieldBeenWaitingSince, Op: OpLte, Value: cutoff})
	}

	return Query{
		Predicate:  Predicate{And: clauses},
		Includes:   includesFor(criteria),
		Order:      []OrderTerm{{Field: "lastMessageTimestamp", Direction: "DESC"}, {Field: "id", Direction: "DESC"}},
		PageNumber: criteria.PageNumber,
		PageSize:   opts.PageSize,
		Limit:      opts.PageSize,
		Offset:     (criteria.PageNumber - 1) * opts.PageSize,
	}, nil
}

// HasMore reports whether results exist beyond the given page.
func HasMore(count, pageNumber, pageSize int) bool {
	return count > pageNumber*pageSize
}

func membership(field Field, n int, values any) Clause {
	if n == 0 {
		return Clause{Field: field, Op: OpNone}
	}
	return Clause{Field: field, Op: OpIn, Value: values}
}

// groupKinds maps ticket type names to isGroup values, individual first.
func groupKinds(types []string) []bool {
	var individual, group bool
	for _, t := range types {
		switch t {
		case TicketTypeIndividual:
			individual = true
		case TicketTypeGroup:
			group = true
		}
	}
	kinds := make([]bool, 0, 2)
	if individual {
		kinds = append(kinds, false)
	}
	if group {
		kinds = append(kinds, true)
	}
	return kinds
}

func includesFor(criteria Criteria) []Include {
	return []Include{
		{Model: "Contact", As: "contact", Attributes: []string{"id", "name", "number", "profilePicUrl", "isGroup"}},
		{Model: "Queue", As: "queue", Attributes: []string{"id", "name", "color"}},
		{Model: "User", As: "user", Attributes: []string{"id", "name"}},
		{Model: "Whatsapp", As: "whatsapp", Attributes: []string{"id", "name"}},
		{Model: "Message", As: "messages", Attributes: []string{"body"}, Required: criteria.SearchParam != ""},
	}
}

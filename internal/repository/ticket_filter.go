package repository

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/ticketquery"
)

var clauseColumns = map[ticketquery.Field]string{
	ticketquery.FieldStatus:              "t.status",
	ticketquery.FieldWhatsappID:          "t.whatsapp_id",
	ticketquery.FieldMarketingCampaignID: "t.marketing_campaign_id",
	ticketquery.FieldIsGroup:             "t.is_group",
	ticketquery.FieldUnreadMessages:      "t.unread_messages",
	ticketquery.FieldCategoryID:          "t.category_id",
	ticketquery.FieldBeenWaitingSince:    "t.been_waiting_since_timestamp",
}

var orderColumns = map[string]string{
	"lastMessageTimestamp": "t.last_message_timestamp",
	"id":                   "t.id",
	"createdAt":            "t.created_at",
}

// sqlFilter accumulates WHERE fragments and their positional arguments.
type sqlFilter struct {
	clauses []string
	args    []any
}

func (f *sqlFilter) arg(value any) string {
	f.args = append(f.args, value)
	return fmt.Sprintf("$%d", len(f.args))
}

func (f *sqlFilter) in(column string, values []any) string {
	placeholders := make([]string, len(values))
	for i, value := range values {
		placeholders[i] = f.arg(value)
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

// renderPredicate turns a listing predicate into a WHERE body over the
// tickets (t) and contacts (c) aliases.
func renderPredicate(predicate ticketquery.Predicate) (string, []any, error) {
	f := &sqlFilter{clauses: []string{"1=1"}, args: []any{}}
	for _, clause := range predicate.And {
		sql, err := f.render(clause)
		if err != nil {
			return "", nil, err
		}
		f.clauses = append(f.clauses, sql)
	}
	return strings.Join(f.clauses, " AND "), f.args, nil
}

func (f *sqlFilter) render(clause ticketquery.Clause) (string, error) {
	if clause.Op == ticketquery.OpNone {
		return "FALSE", nil
	}

	switch clause.Field {
	case ticketquery.FieldOwnership:
		userID, ok := clause.Value.(int64)
		if !ok {
			return "", unsupported(clause)
		}
		return fmt.Sprintf("(t.user_id = %s OR t.status = %s)", f.arg(userID), f.arg(string(domain.TicketStatusPending))), nil
	case ticketquery.FieldCreatedAt:
		dateRange, ok := clause.Value.(ticketquery.DateRange)
		if !ok {
			return "", unsupported(clause)
		}
		return fmt.Sprintf("(t.created_at >= %s AND t.created_at < %s)", f.arg(dateRange.From), f.arg(dateRange.To)), nil
	case ticketquery.FieldSearch:
		pattern, ok := clause.Value.(string)
		if !ok {
			return "", unsupported(clause)
		}
		p := f.arg(pattern)
		return fmt.Sprintf(`(LOWER(c.name) LIKE %[1]s OR LOWER(c.number) LIKE %[1]s
            OR EXISTS (SELECT 1 FROM messages m WHERE m.ticket_id = t.id AND LOWER(m.body) LIKE %[1]s))`, p), nil
	case ticketquery.FieldQueueID:
		refs, ok := clause.Value.([]ticketquery.QueueRef)
		if !ok || clause.Op != ticketquery.OpIn {
			return "", unsupported(clause)
		}
		return f.queueMembership(refs), nil
	}

	column, ok := clauseColumns[clause.Field]
	if !ok {
		return "", unsupported(clause)
	}

	switch clause.Op {
	case ticketquery.OpEq:
		return fmt.Sprintf("%s = %s", column, f.arg(scalar(clause.Value))), nil
	case ticketquery.OpGt:
		return fmt.Sprintf("%s > %s", column, f.arg(clause.Value)), nil
	case ticketquery.OpLte:
		return fmt.Sprintf("%s <= %s", column, f.arg(clause.Value)), nil
	case ticketquery.OpIn:
		values, ok := anySlice(clause.Value)
		if !ok {
			return "", unsupported(clause)
		}
		return f.in(column, values), nil
	}
	return "", unsupported(clause)
}

func (f *sqlFilter) queueMembership(refs []ticketquery.QueueRef) string {
	var ids []any
	unassigned := false
	for _, ref := range refs {
		if id, ok := ref.ID(); ok {
			ids = append(ids, id)
		} else {
			unassigned = true
		}
	}

	parts := make([]string, 0, 2)
	if len(ids) > 0 {
		parts = append(parts, f.in("t.queue_id", ids))
	}
	if unassigned {
		parts = append(parts, "t.queue_id IS NULL")
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func renderOrder(terms []ticketquery.OrderTerm) (string, error) {
	if len(terms) == 0 {
		return "t.id DESC", nil
	}
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		column, ok := orderColumns[term.Field]
		if !ok {
			return "", fmt.Errorf("unsupported order field %q", term.Field)
		}
		direction := strings.ToUpper(term.Direction)
		if direction != "ASC" && direction != "DESC" {
			return "", fmt.Errorf("unsupported order direction %q", term.Direction)
		}
		parts = append(parts, column+" "+direction)
	}
	return strings.Join(parts, ", "), nil
}

func scalar(value any) any {
	if status, ok := value.(domain.TicketStatus); ok {
		return string(status)
	}
	return value
}

func anySlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []int64:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	case []bool:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	}
	return nil, false
}

func unsupported(clause ticketquery.Clause) error {
	return fmt.Errorf("unsupported clause %s/%s (%T)", clause.Field, clause.Op, clause.Value)
}

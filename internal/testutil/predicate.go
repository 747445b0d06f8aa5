package testutil

import (
	"fmt"
	"strings"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/ticketquery"
)

// matches evaluates a listing predicate against an expanded ticket the way
// the SQL filter in the repository package does. Callers hold s.mu.
func (s *Store) matches(ticket *domain.Ticket, predicate ticketquery.Predicate) (bool, error) {
	for _, clause := range predicate.And {
		ok, err := s.matchClause(ticket, clause)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) matchClause(ticket *domain.Ticket, clause ticketquery.Clause) (bool, error) {
	if clause.Op == ticketquery.OpNone {
		return false, nil
	}

	switch clause.Field {
	case ticketquery.FieldOwnership:
		userID, ok := clause.Value.(int64)
		if !ok {
			break
		}
		owned := ticket.UserID != nil && *ticket.UserID == userID
		return owned || ticket.Status == domain.TicketStatusPending, nil
	case ticketquery.FieldStatus:
		status, ok := clause.Value.(domain.TicketStatus)
		if !ok {
			break
		}
		return ticket.Status == status, nil
	case ticketquery.FieldCreatedAt:
		span, ok := clause.Value.(ticketquery.DateRange)
		if !ok {
			break
		}
		return !ticket.CreatedAt.Before(span.From) && ticket.CreatedAt.Before(span.To), nil
	case ticketquery.FieldSearch:
		pattern, ok := clause.Value.(string)
		if !ok {
			break
		}
		return s.searchMatches(ticket, strings.Trim(pattern, "%")), nil
	case ticketquery.FieldQueueID:
		refs, ok := clause.Value.([]ticketquery.QueueRef)
		if !ok {
			break
		}
		for _, ref := range refs {
			id, assigned := ref.ID()
			if !assigned && ticket.QueueID == nil {
				return true, nil
			}
			if assigned && ticket.QueueID != nil && *ticket.QueueID == id {
				return true, nil
			}
		}
		return false, nil
	case ticketquery.FieldWhatsappID:
		ids, ok := clause.Value.([]int64)
		if !ok {
			break
		}
		return containsID(ids, &ticket.WhatsappID), nil
	case ticketquery.FieldMarketingCampaignID:
		ids, ok := clause.Value.([]int64)
		if !ok {
			break
		}
		return containsID(ids, ticket.MarketingCampaignID), nil
	case ticketquery.FieldIsGroup:
		switch v := clause.Value.(type) {
		case bool:
			return ticket.IsGroup == v, nil
		case []bool:
			for _, kind := range v {
				if ticket.IsGroup == kind {
					return true, nil
				}
			}
			return false, nil
		}
	case ticketquery.FieldUnreadMessages:
		floor, ok := clause.Value.(int)
		if !ok {
			break
		}
		return ticket.UnreadMessages > floor, nil
	case ticketquery.FieldCategoryID:
		id, ok := clause.Value.(int64)
		if !ok {
			break
		}
		return ticket.CategoryID != nil && *ticket.CategoryID == id, nil
	case ticketquery.FieldBeenWaitingSince:
		cutoff, ok := clause.Value.(int64)
		if !ok {
			break
		}
		return ticket.BeenWaitingSinceTimestamp != nil && *ticket.BeenWaitingSinceTimestamp <= cutoff, nil
	}
	return false, fmt.Errorf("unsupported clause %s/%s (%T)", clause.Field, clause.Op, clause.Value)
}

func (s *Store) searchMatches(ticket *domain.Ticket, needle string) bool {
	if ticket.Contact != nil {
		if strings.Contains(strings.ToLower(ticket.Contact.Name), needle) ||
			strings.Contains(strings.ToLower(ticket.Contact.Number), needle) {
			return true
		}
	}
	for _, msg := range s.Messages[ticket.ID] {
		if strings.Contains(strings.ToLower(msg.Body), needle) {
			return true
		}
	}
	return false
}

func containsID(ids []int64, value *int64) bool {
	if value == nil {
		return false
	}
	for _, id := range ids {
		if id == *value {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"time"

	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/ticketquery"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// syncVolumeThreshold is the message count each direction must exceed
// before a ticket is worth forwarding to the external CRM.
const syncVolumeThreshold = 5

// ListingService answers dashboard ticket listings.
type ListingService struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	users    ticketquery.UserLookup
	cfg      config.ListingConfig
	now      func() time.Time
}

// ListingDependencies bundles collaborators for the listing service.
type ListingDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Users       ticketquery.UserLookup
	Config      config.ListingConfig
	Now         func() time.Time
}

// ListedTicket is a ticket as returned by the listing. ShouldSendToZapier
// is only present when sync annotation is enabled.
type ListedTicket struct {
	domain.Ticket
	ShouldSendToZapier *bool `json:"shouldSendToZapier,omitempty"`
}

// ListingResult is one listing page together with the query that produced it.
type ListingResult struct {
	Tickets          []ListedTicket        `json:"tickets"`
	Count            int                   `json:"count"`
	HasMore          bool                  `json:"hasMore"`
	WhereCondition   ticketquery.Predicate `json:"whereCondition"`
	IncludeCondition []ticketquery.Include `json:"includeCondition"`
}

// SyncEligibility reports whether a ticket should be forwarded.
type SyncEligibility struct {
	ID                 int64 `json:"id"`
	WasSentToZapier    bool  `json:"wasSentToZapier"`
	ShouldSendToZapier bool  `json:"shouldSendToZapier"`
}

// NewListingService constructs the service.
func NewListingService(deps ListingDependencies) *ListingService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ListingService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		users:    deps.Users,
		cfg:      deps.Config,
		now:      now,
	}
}

// List normalizes raw parameters, resolves the caller's queue scope, runs
// the query and annotates the page when configured to.
func (s *ListingService) List(ctx context.Context, userID int64, raw map[string]string) (*ListingResult, error) {
	criteria, err := ticketquery.ParseCriteria(raw)
	if err != nil {
		return nil, err
	}

	scope, err := ticketquery.ResolveScope(ctx, s.users, userID, criteria.FilterByUserQueue, criteria.QueueIDs)
	if err != nil {
		return nil, err
	}

	query, err := ticketquery.Build(criteria, scope, ticketquery.Options{
		UserID:           userID,
		PageSize:         s.cfg.PageSize,
		Now:              s.now(),
		WaitingThreshold: s.cfg.WaitingThreshold(),
	})
	if err != nil {
		return nil, err
	}

	tickets, count, err := s.tickets.Search(ctx, query)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	listed := make([]ListedTicket, len(tickets))
	for i := range tickets {
		listed[i] = ListedTicket{Ticket: tickets[i]}
	}
	if s.cfg.AnnotateSyncEligibility && len(listed) > 0 {
		if err := s.annotate(ctx, listed); err != nil {
			return nil, err
		}
	}

	return &ListingResult{
		Tickets:          listed,
		Count:            count,
		HasMore:          ticketquery.HasMore(count, query.PageNumber, query.PageSize),
		WhereCondition:   query.Predicate,
		IncludeCondition: query.Includes,
	}, nil
}

// SyncEligibility evaluates the given tickets regardless of configuration.
func (s *ListingService) SyncEligibility(ctx context.Context, ticketIDs []int64) ([]SyncEligibility, error) {
	result := []SyncEligibility{}
	if len(ticketIDs) == 0 {
		return result, nil
	}

	tickets, err := s.tickets.ListByIDs(ctx, ticketIDs)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	volumes, err := s.messages.CountByDirection(ctx, ticketIDs)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	for _, ticket := range tickets {
		result = append(result, SyncEligibility{
			ID:                 ticket.ID,
			WasSentToZapier:    ticket.WasSentToZapier,
			ShouldSendToZapier: eligibleForSync(ticket.WasSentToZapier, volumes[ticket.ID]),
		})
	}
	return result, nil
}

func (s *ListingService) annotate(ctx context.Context, listed []ListedTicket) error {
	ids := make([]int64, len(listed))
	for i := range listed {
		ids[i] = listed[i].ID
	}
	volumes, err := s.messages.CountByDirection(ctx, ids)
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	for i := range listed {
		eligible := eligibleForSync(listed[i].WasSentToZapier, volumes[listed[i].ID])
		listed[i].ShouldSendToZapier = &eligible
	}
	return nil
}

func eligibleForSync(wasSent bool, volume domain.MessageVolume) bool {
	return !wasSent && volume.Inbound > syncVolumeThreshold && volume.Outbound > syncVolumeThreshold
}

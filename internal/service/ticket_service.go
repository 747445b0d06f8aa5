package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/channel"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util/errorutil"
)

// allowedTransitions lists the statuses reachable from each status.
// Closed tickets may be reopened to open or pending.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:    {domain.TicketStatusOpen, domain.TicketStatusPending, domain.TicketStatusClosed},
	domain.TicketStatusPending: {domain.TicketStatusPending, domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusClosed:  {domain.TicketStatusClosed, domain.TicketStatusOpen, domain.TicketStatusPending},
}

// TicketService coordinates ticket lifecycle workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	logs        repository.TicketLogRepository
	contacts    repository.ContactRepository
	whatsapps   repository.WhatsappRepository
	channel     channel.Channel
	broadcaster events.Broadcaster
	hooks       hookRunner
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo        repository.TicketRepository
	TicketLogRepo     repository.TicketLogRepository
	ContactRepo       repository.ContactRepository
	WhatsappRepo      repository.WhatsappRepository
	Channel           channel.Channel
	Broadcaster       events.Broadcaster
	Logger            *zap.Logger
	Metrics           *observability.Metrics
	SideEffectTimeout time.Duration
}

// TicketCreateInput describes ticket creation payload. A nil WhatsappID
// selects the default channel.
type TicketCreateInput struct {
	ContactID  int64
	Status     domain.TicketStatus
	UserID     *int64
	QueueID    *int64
	WhatsappID *int64
}

// TicketLogInput describes an audit entry to append.
type TicketLogInput struct {
	TicketID     int64
	UserID       *int64
	NewUserID    *int64
	LogType      string
	TicketStatus domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		logs:        deps.TicketLogRepo,
		contacts:    deps.ContactRepo,
		whatsapps:   deps.WhatsappRepo,
		channel:     deps.Channel,
		broadcaster: deps.Broadcaster,
		hooks:       hookRunner{timeout: deps.SideEffectTimeout, logger: logger, metrics: deps.Metrics},
		logger:      logger,
		metrics:     deps.Metrics,
	}
}

// Create opens a ticket for a contact and announces it on its status partition.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if input.ContactID <= 0 {
		return nil, apperrors.NewValidationError("contactId is required", map[string]any{"contactId": input.ContactID})
	}
	if input.Status == "" {
		input.Status = domain.TicketStatusPending
	}
	if !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": input.Status})
	}

	contact, err := s.contacts.GetByID(ctx, input.ContactID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("contact", map[string]any{"contactId": input.ContactID})
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}

	whatsappID, err := s.resolveWhatsapp(ctx, input.WhatsappID)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Status:     input.Status,
		IsGroup:    contact.IsGroup,
		ContactID:  contact.ID,
		QueueID:    input.QueueID,
		UserID:     input.UserID,
		WhatsappID: whatsappID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	created, err := s.load(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.hooks.run(ctx, created.ID, s.broadcastHook(created.Status, events.NewUpdateEvent(created)))
	return created, nil
}

// Show returns a ticket with its relations expanded.
func (s *TicketService) Show(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.load(ctx, ticketID)
}

// Update applies a partial change, then runs the farewell, leave-group and
// broadcast hooks. Hook failures are logged and never undo the change.
// Concurrent updates to one ticket are last-write-wins.
func (s *TicketService) Update(ctx context.Context, ticketID int64, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if input.Status != nil && !isValidTransition(ticket.Status, *input.Status) {
		return nil, apperrors.NewValidationError("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   *input.Status,
		})
	}

	input.apply(ticket)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}

	updated, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	hooks := make([]hook, 0, 3)
	if updated.Status == domain.TicketStatusClosed {
		if !updated.IsGroup && input.SendFarewell() {
			hooks = append(hooks, s.farewellHook(updated))
		}
		if updated.IsGroup && input.LeaveGroup() {
			hooks = append(hooks, s.leaveGroupHook(updated))
		}
	}
	hooks = append(hooks, s.broadcastHook(updated.Status, events.NewUpdateEvent(updated)))
	s.hooks.run(ctx, updated.ID, hooks...)

	return updated, nil
}

// Delete removes a ticket and its messages and announces the removal on the
// partition of the status it had. Ticket logs are kept.
func (s *TicketService) Delete(ctx context.Context, ticketID int64) error {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return err
	}

	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewTicketNotFound(ticketID)
		}
		return apperrors.NewPersistenceFailure(err)
	}

	s.hooks.run(ctx, ticketID, s.broadcastHook(ticket.Status, events.NewDeleteEvent(ticketID)))
	return nil
}

// Participants returns the contacts of a group ticket's members, creating
// contacts for members that are not known yet.
func (s *TicketService) Participants(ctx context.Context, ticketID int64) ([]domain.Contact, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	numbers, err := s.channel.GroupParticipants(ctx, ticket.WhatsappID, channel.ChatID(ticket.Contact.Number, true))
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable("participants lookup", err)
	}

	known, err := s.contacts.ListByNumbers(ctx, numbers)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}

	missing := missingNumbers(numbers, known)
	if len(missing) == 0 {
		return known, nil
	}

	for _, number := range missing {
		contact, err := s.channel.GetContact(ctx, ticket.WhatsappID, channel.ChatID(number, false))
		if err != nil {
			return nil, apperrors.NewUpstreamUnavailable("contact lookup", err)
		}
		contact.Number = number
		if err := s.contacts.Create(ctx, contact); err != nil {
			return nil, apperrors.NewPersistenceFailure(err)
		}
		s.logger.Info("materialized group participant", zap.Int64("ticket_id", ticketID), zap.String("number", number))
	}

	all, err := s.contacts.ListByNumbers(ctx, numbers)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return all, nil
}

// Related lists every ticket sharing channel and contact with the given one.
func (s *TicketService) Related(ctx context.Context, ticketID int64) ([]domain.RelatedTicket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	related, err := s.tickets.ListRelated(ctx, ticket.WhatsappID, ticket.ContactID)
	if err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	if len(related) == 0 {
		return nil, apperrors.NewNoRelatedTickets(ticketID)
	}
	return related, nil
}

// CreateLog appends an audit entry for an existing ticket.
func (s *TicketService) CreateLog(ctx context.Context, input TicketLogInput) (*domain.TicketLog, error) {
	details := map[string]any{}
	if input.TicketID <= 0 {
		details["ticketId"] = "required"
	}
	if strings.TrimSpace(input.LogType) == "" {
		details["logType"] = "required"
	}
	if !input.TicketStatus.Valid() {
		details["ticketStatus"] = "must be open, pending or closed"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket log", details)
	}

	if _, err := s.load(ctx, input.TicketID); err != nil {
		return nil, err
	}

	entry := &domain.TicketLog{
		TicketID:     input.TicketID,
		UserID:       input.UserID,
		NewUserID:    input.NewUserID,
		LogType:      strings.TrimSpace(input.LogType),
		TicketStatus: input.TicketStatus,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return entry, nil
}

func (s *TicketService) load(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(ticketID)
		}
		return nil, apperrors.NewPersistenceFailure(err)
	}
	return ticket, nil
}

func (s *TicketService) resolveWhatsapp(ctx context.Context, requested *int64) (int64, error) {
	if requested != nil {
		whatsapp, err := s.whatsapps.GetByID(ctx, *requested)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, apperrors.NewNotFound("whatsapp", map[string]any{"whatsappId": *requested})
			}
			return 0, apperrors.NewPersistenceFailure(err)
		}
		return whatsapp.ID, nil
	}

	whatsapp, err := s.whatsapps.GetDefault(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NewNotFound("default whatsapp", nil)
		}
		return 0, apperrors.NewPersistenceFailure(err)
	}
	return whatsapp.ID, nil
}

func (s *TicketService) farewellHook(ticket *domain.Ticket) hook {
	return hook{name: hookFarewell, run: func(ctx context.Context) error {
		whatsapp, err := s.whatsapps.GetByID(ctx, ticket.WhatsappID)
		if err != nil {
			return err
		}
		if whatsapp.FarewellMessage == "" || ticket.Contact == nil {
			return nil
		}
		body, err := renderFarewell(whatsapp.FarewellMessage, ticket.Contact)
		if err != nil {
			return err
		}
		return s.channel.SendText(ctx, ticket.WhatsappID, channel.ChatID(ticket.Contact.Number, false), body)
	}}
}

func (s *TicketService) leaveGroupHook(ticket *domain.Ticket) hook {
	return hook{name: hookLeave, run: func(ctx context.Context) error {
		if ticket.Contact == nil {
			return errors.New("group contact not loaded")
		}
		return s.channel.LeaveGroup(ctx, ticket.WhatsappID, channel.ChatID(ticket.Contact.Number, true))
	}}
}

func (s *TicketService) broadcastHook(partition domain.TicketStatus, event events.LifecycleEvent) hook {
	return hook{name: hookBroadcast, run: func(ctx context.Context) error {
		if s.broadcaster == nil {
			return nil
		}
		if err := s.broadcaster.Publish(ctx, partition, event); err != nil {
			return err
		}
		s.metrics.RecordEvent(string(partition), string(event.Action))
		return nil
	}}
}

// renderFarewell fills the channel's farewell template with contact fields.
func renderFarewell(template string, contact *domain.Contact) (string, error) {
	return mustache.Render(template, map[string]any{
		"name":          contact.Name,
		"number":        contact.Number,
		"profilePicUrl": contact.ProfilePicURL,
		"isGroup":       contact.IsGroup,
	})
}

func isValidTransition(from, to domain.TicketStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func missingNumbers(numbers []string, known []domain.Contact) []string {
	seen := make(map[string]struct{}, len(known))
	for _, contact := range known {
		seen[contact.Number] = struct{}{}
	}
	var missing []string
	for _, number := range numbers {
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		missing = append(missing, number)
	}
	return missing
}

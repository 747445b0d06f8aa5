// Package testutil provides in-memory stand-ins for storage, the chat
// channel and the broadcaster.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/ticketquery"
)

// Store is an in-memory backend for tickets and everything around them.
// Set Err to make every call fail.
type Store struct {
	mu sync.Mutex

	Tickets   map[int64]*domain.Ticket
	Messages  map[int64][]domain.Message
	Logs      []domain.TicketLog
	Contacts  map[int64]*domain.Contact
	Whatsapps map[int64]*domain.Whatsapp
	Users     map[int64]*domain.User
	Queues    map[int64]*domain.Queue

	Err           error
	LastQuery     *ticketquery.Query
	WaitingWrites int

	nextID int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		Tickets:   map[int64]*domain.Ticket{},
		Messages:  map[int64][]domain.Message{},
		Contacts:  map[int64]*domain.Contact{},
		Whatsapps: map[int64]*domain.Whatsapp{},
		Users:     map[int64]*domain.User{},
		Queues:    map[int64]*domain.Queue{},
		nextID:    1000,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddTicket stores a copy of the ticket as-is.
func (s *Store) AddTicket(ticket domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tickets[ticket.ID] = &ticket
}

// expand returns a copy with relations attached, like the SQL joins do.
func (s *Store) expand(ticket *domain.Ticket) *domain.Ticket {
	out := *ticket
	if c, ok := s.Contacts[out.ContactID]; ok {
		contact := *c
		out.Contact = &contact
	}
	out.Queue, out.User, out.Whatsapp = nil, nil, nil
	if out.QueueID != nil {
		if q, ok := s.Queues[*out.QueueID]; ok {
			queue := *q
			out.Queue = &queue
		}
	}
	if out.UserID != nil {
		if u, ok := s.Users[*out.UserID]; ok {
			user := *u
			out.User = &user
		}
	}
	if w, ok := s.Whatsapps[out.WhatsappID]; ok {
		whatsapp := *w
		out.Whatsapp = &whatsapp
	}
	return &out
}

// TicketRepo returns a view satisfying repository.TicketRepository.
func (s *Store) TicketRepo() *TicketRepo { return &TicketRepo{s} }

// MessageRepo returns a view satisfying repository.MessageRepository.
func (s *Store) MessageRepo() *MessageRepo { return &MessageRepo{s} }

// LogRepo returns a view satisfying repository.TicketLogRepository.
func (s *Store) LogRepo() *LogRepo { return &LogRepo{s} }

// ContactRepo returns a view satisfying repository.ContactRepository.
func (s *Store) ContactRepo() *ContactRepo { return &ContactRepo{s} }

// WhatsappRepo returns a view satisfying repository.WhatsappRepository.
func (s *Store) WhatsappRepo() *WhatsappRepo { return &WhatsappRepo{s} }

// UserRepo returns a view satisfying repository.UserRepository.
func (s *Store) UserRepo() *UserRepo { return &UserRepo{s} }

// TicketRepo is the ticket view of Store.
type TicketRepo struct{ s *Store }

func (r *TicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	now := time.Now().UTC()
	ticket.ID = r.s.id()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	stored := *ticket
	r.s.Tickets[ticket.ID] = &stored
	return nil
}

func (r *TicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	current, ok := r.s.Tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	current.Status = ticket.Status
	current.QueueID = ticket.QueueID
	current.UserID = ticket.UserID
	current.WhatsappID = ticket.WhatsappID
	current.CategoryID = ticket.CategoryID
	current.UpdatedAt = time.Now().UTC()
	ticket.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *TicketRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.Tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.Tickets, id)
	delete(r.s.Messages, id)
	return nil
}

func (r *TicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	ticket, ok := r.s.Tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.s.expand(ticket), nil
}

func (r *TicketRepo) ListByIDs(_ context.Context, ids []int64) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	result := []domain.Ticket{}
	for _, id := range ids {
		if ticket, ok := r.s.Tickets[id]; ok {
			result = append(result, *r.s.expand(ticket))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Search filters by the predicate and pages in listing order. The query is
// kept in LastQuery for assertions.
func (r *TicketRepo) Search(_ context.Context, query ticketquery.Query) ([]domain.Ticket, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, 0, r.s.Err
	}
	r.s.LastQuery = &query

	all := make([]domain.Ticket, 0, len(r.s.Tickets))
	for _, ticket := range r.s.Tickets {
		expanded := r.s.expand(ticket)
		ok, err := r.s.matches(expanded, query.Predicate)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			all = append(all, *expanded)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LastMessageTimestamp != all[j].LastMessageTimestamp {
			return all[i].LastMessageTimestamp > all[j].LastMessageTimestamp
		}
		return all[i].ID > all[j].ID
	})
	return window(all, query.Offset, query.Limit), len(all), nil
}

func (r *TicketRepo) ListRelated(_ context.Context, whatsappID, contactID int64) ([]domain.RelatedTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var result []domain.RelatedTicket
	for _, ticket := range r.s.Tickets {
		if ticket.WhatsappID != whatsappID || ticket.ContactID != contactID {
			continue
		}
		related := domain.RelatedTicket{Ticket: *r.s.expand(ticket), Messages: []domain.Message{}}
		for _, msg := range r.s.Messages[ticket.ID] {
			if msg.Timestamp >= ticket.CreatedAt.Unix() {
				related.Messages = append(related.Messages, msg)
				break
			}
		}
		result = append(result, related)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastMessageTimestamp != result[j].LastMessageTimestamp {
			return result[i].LastMessageTimestamp < result[j].LastMessageTimestamp
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *TicketRepo) ListPage(_ context.Context, offset, limit int) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	all := make([]domain.Ticket, 0, len(r.s.Tickets))
	for _, ticket := range r.s.Tickets {
		all = append(all, *ticket)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, offset, limit), nil
}

func (r *TicketRepo) SetBeenWaitingSince(_ context.Context, id, timestamp int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	ticket, ok := r.s.Tickets[id]
	if !ok || ticket.BeenWaitingSinceTimestamp != nil {
		return false, nil
	}
	ticket.BeenWaitingSinceTimestamp = &timestamp
	r.s.WaitingWrites++
	return true, nil
}

// MessageRepo is the message view of Store.
type MessageRepo struct{ s *Store }

func (r *MessageRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	msgs := append([]domain.Message(nil), r.s.Messages[ticketID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return msgs, nil
}

func (r *MessageRepo) CountByDirection(_ context.Context, ticketIDs []int64) (map[int64]domain.MessageVolume, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	result := make(map[int64]domain.MessageVolume, len(ticketIDs))
	for _, id := range ticketIDs {
		var volume domain.MessageVolume
		for _, msg := range r.s.Messages[id] {
			if msg.FromMe {
				volume.Outbound++
			} else {
				volume.Inbound++
			}
		}
		if volume.Inbound+volume.Outbound > 0 {
			result[id] = volume
		}
	}
	return result, nil
}

// LogRepo is the ticket log view of Store.
type LogRepo struct{ s *Store }

func (r *LogRepo) Create(_ context.Context, log *domain.TicketLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	log.ID = r.s.id()
	log.CreatedAt = time.Now().UTC()
	r.s.Logs = append(r.s.Logs, *log)
	return nil
}

// ContactRepo is the contact view of Store.
type ContactRepo struct{ s *Store }

func (r *ContactRepo) GetByID(_ context.Context, id int64) (*domain.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	contact, ok := r.s.Contacts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *contact
	return &out, nil
}

func (r *ContactRepo) ListByNumbers(_ context.Context, numbers []string) ([]domain.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	wanted := make(map[string]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}
	result := []domain.Contact{}
	for _, contact := range r.s.Contacts {
		if wanted[contact.Number] {
			result = append(result, *contact)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *ContactRepo) Create(_ context.Context, contact *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	contact.ID = r.s.id()
	stored := *contact
	r.s.Contacts[contact.ID] = &stored
	return nil
}

// WhatsappRepo is the channel view of Store.
type WhatsappRepo struct{ s *Store }

func (r *WhatsappRepo) GetByID(_ context.Context, id int64) (*domain.Whatsapp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	whatsapp, ok := r.s.Whatsapps[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *whatsapp
	return &out, nil
}

func (r *WhatsappRepo) GetDefault(_ context.Context) (*domain.Whatsapp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var found *domain.Whatsapp
	for _, whatsapp := range r.s.Whatsapps {
		if whatsapp.IsDefault && (found == nil || whatsapp.ID < found.ID) {
			found = whatsapp
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	out := *found
	return &out, nil
}

// UserRepo is the user view of Store.
type UserRepo struct{ s *Store }

func (r *UserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	user, ok := r.s.Users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *user
	out.QueueIDs = append([]int64(nil), user.QueueIDs...)
	return &out, nil
}

func window(all []domain.Ticket, offset, limit int) []domain.Ticket {
	if offset >= len(all) {
		return []domain.Ticket{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

// Published is one recorded broadcast.
type Published struct {
	Partition domain.TicketStatus
	Event     events.LifecycleEvent
}

// Broadcaster records every published event.
type Broadcaster struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

func (b *Broadcaster) Publish(_ context.Context, partition domain.TicketStatus, event events.LifecycleEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Published{Partition: partition, Event: event})
	return b.Err
}

// Events returns a copy of the recorded events.
func (b *Broadcaster) Events() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.events...)
}

// SentText is one recorded outbound text message.
type SentText struct {
	WhatsappID int64
	ChatID     string
	Body       string
}

// Channel records outbound calls and serves canned group data.
type Channel struct {
	mu sync.Mutex

	Sent         []SentText
	Left         []string
	Participants map[string][]string
	Profiles     map[string]domain.Contact

	SendErr   error
	LeaveErr  error
	LookupErr error
}

// NewChannel returns an empty channel fake.
func NewChannel() *Channel {
	return &Channel{Participants: map[string][]string{}, Profiles: map[string]domain.Contact{}}
}

func (c *Channel) SendText(ctx context.Context, whatsappID int64, chatID, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, SentText{WhatsappID: whatsappID, ChatID: chatID, Body: body})
	return nil
}

func (c *Channel) GroupParticipants(_ context.Context, _ int64, groupID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LookupErr != nil {
		return nil, c.LookupErr
	}
	return append([]string(nil), c.Participants[groupID]...), nil
}

func (c *Channel) GetContact(_ context.Context, _ int64, chatID string) (*domain.Contact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LookupErr != nil {
		return nil, c.LookupErr
	}
	contact := c.Profiles[chatID]
	return &contact, nil
}

func (c *Channel) LeaveGroup(_ context.Context, _ int64, groupID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LeaveErr != nil {
		return c.LeaveErr
	}
	c.Left = append(c.Left, groupID)
	return nil
}

// SentCount returns how many texts were sent.
func (c *Channel) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// LeftCount returns how many groups were left.
func (c *Channel) LeftCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Left)
}

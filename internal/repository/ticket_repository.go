package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/ticketquery"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListByIDs(ctx context.Context, ids []int64) ([]domain.Ticket, error)
	Search(ctx context.Context, query ticketquery.Query) ([]domain.Ticket, int, error)
	ListRelated(ctx context.Context, whatsappID, contactID int64) ([]domain.RelatedTicket, error)
	ListPage(ctx context.Context, offset, limit int) ([]domain.Ticket, error)
	SetBeenWaitingSince(ctx context.Context, id, timestamp int64) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `
        t.id, t.status, t.is_group, t.contact_id, t.queue_id, t.user_id, t.whatsapp_id,
        t.category_id, t.marketing_campaign_id, t.unread_messages, t.last_message,
        t.last_message_timestamp, t.was_sent_to_zapier, t.been_waiting_since_timestamp,
        t.created_at, t.updated_at,
        c.id, c.name, c.number, c.profile_pic_url, c.is_group,
        q.id, q.name, q.color,
        u.id, u.name, u.profile,
        w.id, w.name, w.is_default, w.farewell_message`

const ticketJoins = `
        FROM tickets t
        JOIN contacts c ON c.id = t.contact_id
        LEFT JOIN queues q ON q.id = t.queue_id
        LEFT JOIN users u ON u.id = t.user_id
        LEFT JOIN whatsapps w ON w.id = t.whatsapp_id`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (status, is_group, contact_id, queue_id, user_id, whatsapp_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.IsGroup,
		ticket.ContactID,
		ticket.QueueID,
		ticket.UserID,
		ticket.WhatsappID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, queue_id=$2, user_id=$3, whatsapp_id=$4, category_id=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.QueueID,
		ticket.UserID,
		ticket.WhatsappID,
		ticket.CategoryID,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

// Delete removes a ticket and its messages atomically. Ticket logs are kept.
func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE ticket_id=$1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListByIDs(ctx context.Context, ids []int64) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` WHERE t.id = ANY($1) ORDER BY t.id ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// Search returns one page of tickets matching the query plus the total
// number of matches regardless of pagination.
func (r *ticketRepository) Search(ctx context.Context, q ticketquery.Query) ([]domain.Ticket, int, error) {
	where, args, err := renderPredicate(q.Predicate)
	if err != nil {
		return nil, 0, err
	}
	order, err := renderOrder(q.Order)
	if err != nil {
		return nil, 0, err
	}

	var count int
	countQuery := `SELECT COUNT(*)` + ticketJoins + ` WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&count); err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return []domain.Ticket{}, 0, nil
	}

	listQuery := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		ticketColumns, ticketJoins, where, order, q.Limit, q.Offset)
	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, count, nil
}

// ListRelated returns the tickets sharing channel and contact, oldest
// activity first, each with its first message sent at or after its creation.
func (r *ticketRepository) ListRelated(ctx context.Context, whatsappID, contactID int64) ([]domain.RelatedTicket, error) {
	query := `SELECT` + ticketColumns + `,
        fm.id, fm.from_me, fm.timestamp, fm.body` + ticketJoins + `
        LEFT JOIN LATERAL (
            SELECT m.id, m.from_me, m.timestamp, m.body FROM messages m
            WHERE m.ticket_id = t.id AND m.timestamp >= EXTRACT(EPOCH FROM t.created_at)::BIGINT
            ORDER BY m.timestamp ASC LIMIT 1
        ) fm ON TRUE
        WHERE t.whatsapp_id=$1 AND t.contact_id=$2
        ORDER BY t.last_message_timestamp ASC, t.id ASC`
	rows, err := r.pool.Query(ctx, query, whatsappID, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RelatedTicket
	for rows.Next() {
		var (
			msgID        *string
			msgFromMe    *bool
			msgTimestamp *int64
			msgBody      *string
		)
		ticket, err := scanTicket(rows, &msgID, &msgFromMe, &msgTimestamp, &msgBody)
		if err != nil {
			return nil, err
		}
		related := domain.RelatedTicket{Ticket: *ticket, Messages: []domain.Message{}}
		if msgID != nil {
			related.Messages = append(related.Messages, domain.Message{
				ID:        *msgID,
				TicketID:  ticket.ID,
				FromMe:    deref(msgFromMe),
				Timestamp: deref(msgTimestamp),
				Body:      deref(msgBody),
			})
		}
		result = append(result, related)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.Ticket, error) {
	query := `SELECT` + ticketColumns + ticketJoins + ` ORDER BY t.id ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// SetBeenWaitingSince stores the timestamp only when none is set yet and
// reports whether a row changed.
func (r *ticketRepository) SetBeenWaitingSince(ctx context.Context, id, timestamp int64) (bool, error) {
	const query = `
        UPDATE tickets SET been_waiting_since_timestamp=$1
        WHERE id=$2 AND been_waiting_since_timestamp IS NULL`
	cmd, err := r.pool.Exec(ctx, query, timestamp, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, extra ...any) (*domain.Ticket, error) {
	var (
		ticket  domain.Ticket
		contact domain.Contact

		queueID    *int64
		queueName  *string
		queueColor *string

		userID      *int64
		userName    *string
		userProfile *string

		whatsappID       *int64
		whatsappName     *string
		whatsappDefault  *bool
		whatsappFarewell *string
	)

	dest := []any{
		&ticket.ID,
		&ticket.Status,
		&ticket.IsGroup,
		&ticket.ContactID,
		&ticket.QueueID,
		&ticket.UserID,
		&ticket.WhatsappID,
		&ticket.CategoryID,
		&ticket.MarketingCampaignID,
		&ticket.UnreadMessages,
		&ticket.LastMessage,
		&ticket.LastMessageTimestamp,
		&ticket.WasSentToZapier,
		&ticket.BeenWaitingSinceTimestamp,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&contact.ID,
		&contact.Name,
		&contact.Number,
		&contact.ProfilePicURL,
		&contact.IsGroup,
		&queueID,
		&queueName,
		&queueColor,
		&userID,
		&userName,
		&userProfile,
		&whatsappID,
		&whatsappName,
		&whatsappDefault,
		&whatsappFarewell,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	ticket.Contact = &contact
	if queueID != nil {
		ticket.Queue = &domain.Queue{ID: *queueID, Name: deref(queueName), Color: deref(queueColor)}
	}
	if userID != nil {
		ticket.User = &domain.User{ID: *userID, Name: deref(userName), Profile: domain.UserProfile(deref(userProfile))}
	}
	if whatsappID != nil {
		ticket.Whatsapp = &domain.Whatsapp{
			ID:              *whatsappID,
			Name:            deref(whatsappName),
			IsDefault:       deref(whatsappDefault),
			FarewellMessage: deref(whatsappFarewell),
		}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// MessageRepository reads ticket chat messages. Messages are written by the
// channel ingestion side and only read here.
type MessageRepository interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error)
	CountByDirection(ctx context.Context, ticketIDs []int64) (map[int64]domain.MessageVolume, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, from_me, timestamp, body
        FROM messages WHERE ticket_id=$1 ORDER BY timestamp ASC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.FromMe,
			&msg.Timestamp,
			&msg.Body,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) CountByDirection(ctx context.Context, ticketIDs []int64) (map[int64]domain.MessageVolume, error) {
	const query = `
        SELECT ticket_id,
               COUNT(*) FILTER (WHERE NOT from_me),
               COUNT(*) FILTER (WHERE from_me)
        FROM messages WHERE ticket_id = ANY($1)
        GROUP BY ticket_id`
	result := make(map[int64]domain.MessageVolume, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticketID int64
			volume   domain.MessageVolume
		)
		if err := rows.Scan(&ticketID, &volume.Inbound, &volume.Outbound); err != nil {
			return nil, err
		}
		result[ticketID] = volume
	}
	return result, rows.Err()
}

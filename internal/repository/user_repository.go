package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// UserRepository defines read access for agents and their queue assignments.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT u.id, u.name, u.profile,
               COALESCE(ARRAY_AGG(uq.queue_id ORDER BY uq.queue_id) FILTER (WHERE uq.queue_id IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_queues uq ON uq.user_id = u.id
        WHERE u.id=$1
        GROUP BY u.id`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Profile,
		&user.QueueIDs,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// WhatsappRepository reads messaging channel settings.
type WhatsappRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Whatsapp, error)
	GetDefault(ctx context.Context) (*domain.Whatsapp, error)
}

type whatsappRepository struct {
	pool *pgxpool.Pool
}

// NewWhatsappRepository builds repository.
func NewWhatsappRepository(pool *pgxpool.Pool) WhatsappRepository {
	return &whatsappRepository{pool: pool}
}

func (r *whatsappRepository) GetByID(ctx context.Context, id int64) (*domain.Whatsapp, error) {
	const query = `
        SELECT id, name, is_default, farewell_message
        FROM whatsapps WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *whatsappRepository) GetDefault(ctx context.Context) (*domain.Whatsapp, error) {
	const query = `
        SELECT id, name, is_default, farewell_message
        FROM whatsapps WHERE is_default ORDER BY id ASC LIMIT 1`
	return r.fetchSingle(ctx, query)
}

func (r *whatsappRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Whatsapp, error) {
	var whatsapp domain.Whatsapp
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&whatsapp.ID,
		&whatsapp.Name,
		&whatsapp.IsDefault,
		&whatsapp.FarewellMessage,
	); err != nil {
		return nil, err
	}
	return &whatsapp, nil
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// ContactRepository manages customer and group contacts.
type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Contact, error)
	ListByNumbers(ctx context.Context, numbers []string) ([]domain.Contact, error)
	Create(ctx context.Context, contact *domain.Contact) error
}

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository builds repository.
func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) GetByID(ctx context.Context, id int64) (*domain.Contact, error) {
	const query = `
        SELECT id, name, number, profile_pic_url, is_group
        FROM contacts WHERE id=$1`
	var contact domain.Contact
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&contact.ID,
		&contact.Name,
		&contact.Number,
		&contact.ProfilePicURL,
		&contact.IsGroup,
	); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) ListByNumbers(ctx context.Context, numbers []string) ([]domain.Contact, error) {
	const query = `
        SELECT id, name, number, profile_pic_url, is_group
        FROM contacts WHERE number = ANY($1) ORDER BY id ASC`
	result := []domain.Contact{}
	if len(numbers) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, query, numbers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var contact domain.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.Name,
			&contact.Number,
			&contact.ProfilePicURL,
			&contact.IsGroup,
		); err != nil {
			return nil, err
		}
		result = append(result, contact)
	}
	return result, rows.Err()
}

// Create inserts the contact, or refreshes name and picture when the number
// is already known.
func (r *contactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	const query = `
        INSERT INTO contacts (name, number, profile_pic_url, is_group)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (number) DO UPDATE SET name=EXCLUDED.name, profile_pic_url=EXCLUDED.profile_pic_url, updated_at=NOW()
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		contact.Name,
		contact.Number,
		contact.ProfilePicURL,
		contact.IsGroup,
	).Scan(&contact.ID)
}

package comments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-events/backend/internal/models"
)

// Repository handles comment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a comments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create appends a comment to an event.
func (r *Repository) Create(ctx context.Context, eventID, authorID uuid.UUID, text string) (*models.Comment, error) {
	const q = `INSERT INTO comments (event_id, author_id, comment) VALUES ($1, $2, $3)
		RETURNING id, event_id, author_id, comment, created_on`
	var cm models.Comment
	err := r.pool.QueryRow(ctx, q, eventID, authorID, text).Scan(&cm.ID, &cm.EventID, &cm.AuthorID, &cm.Text, &cm.CreatedOn)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// ListByEvent returns an event's comments, oldest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error) {
	const q = `SELECT c.id, c.event_id, c.author_id, COALESCE(u.username, ''), c.comment, c.created_on
		FROM comments c LEFT JOIN users u ON u.id = c.author_id
		WHERE c.event_id = $1 ORDER BY c.created_on`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Comment
	for rows.Next() {
		var cm models.Comment
		if err := rows.Scan(&cm.ID, &cm.EventID, &cm.AuthorID, &cm.AuthorUsername, &cm.Text, &cm.CreatedOn); err != nil {
			return nil, err
		}
		list = append(list, cm)
	}
	return list, rows.Err()
}

package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/database"
)

// ErrNotFound is returned when the notification does not exist or belongs to someone else.
var ErrNotFound = errors.New("notification not found")

// DefaultListLimit caps the notifications page.
const DefaultListLimit = 50

// Repository handles both notification tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListForUser returns the recipient's notifications of both kinds, newest first.
func (r *Repository) ListForUser(ctx context.Context, recipient uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	const q = `SELECT id, kind, message, recipient_id, created_on, read, source_event_id, originator_id, originator_username FROM (
			SELECT s.id, 'status' AS kind, s.message, s.recipient_id, s.created_on, s.read,
				s.source_event_id, NULL::uuid AS originator_id, '' AS originator_username
			FROM event_status_changes s WHERE s.recipient_id = $1
			UNION ALL
			SELECT f.id, 'friend', f.message, f.recipient_id, f.created_on, f.read,
				NULL::uuid, f.originator_id, COALESCE(u.username, '')
			FROM friend_requests f LEFT JOIN users u ON u.id = f.originator_id WHERE f.recipient_id = $1
		) n ORDER BY created_on DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, recipient, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		if err := rows.Scan(&n.ID, &kind, &n.Message, &n.RecipientID, &n.CreatedOn, &n.Read,
			&n.SourceEventID, &n.OriginatorID, &n.OriginatorUsername); err != nil {
			return nil, err
		}
		n.Kind = models.NotificationKind(kind)
		list = append(list, n)
	}
	return list, rows.Err()
}

// UnreadCount returns how many unread notifications the recipient has.
func (r *Repository) UnreadCount(ctx context.Context, recipient uuid.UUID) (int, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM event_status_changes WHERE recipient_id = $1 AND NOT read) +
		(SELECT COUNT(*) FROM friend_requests WHERE recipient_id = $1 AND NOT read)`
	var n int
	if err := r.pool.QueryRow(ctx, q, recipient).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func tableFor(kind models.NotificationKind) (string, error) {
	switch kind {
	case models.KindEventStatusChange:
		return "event_status_changes", nil
	case models.KindFriendRequest:
		return "friend_requests", nil
	}
	return "", fmt.Errorf("unknown notification kind %q", kind)
}

// MarkRead flags one of the recipient's notifications as read and returns it.
func (r *Repository) MarkRead(ctx context.Context, kind models.NotificationKind, id, recipient uuid.UUID) (*models.Notification, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`UPDATE %s SET read = TRUE WHERE id = $1 AND recipient_id = $2
		RETURNING id, message, recipient_id, created_on, read`, table)
	n := models.Notification{Kind: kind}
	err = r.pool.QueryRow(ctx, q, id, recipient).Scan(&n.ID, &n.Message, &n.RecipientID, &n.CreatedOn, &n.Read)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// CreateStatusChanges inserts status-change notifications in one batch.
func (r *Repository) CreateStatusChanges(ctx context.Context, list []models.Notification) error {
	if len(list) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range list {
		if n.Kind != models.KindEventStatusChange || n.SourceEventID == nil {
			return fmt.Errorf("notification for %s is not a status change", n.RecipientID)
		}
		batch.Queue(`INSERT INTO event_status_changes (message, recipient_id, source_event_id) VALUES ($1, $2, $3)`,
			n.Message, n.RecipientID, *n.SourceEventID)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range list {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert status change: %w", err)
		}
	}
	return nil
}

// CreateFriendRequest inserts a friend request notification.
func (r *Repository) CreateFriendRequest(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if n.Kind != models.KindFriendRequest || n.OriginatorID == nil {
		return nil, fmt.Errorf("notification for %s is not a friend request", n.RecipientID)
	}
	const q = `INSERT INTO friend_requests (message, recipient_id, originator_id) VALUES ($1, $2, $3)
		RETURNING id, created_on, read`
	if err := r.pool.QueryRow(ctx, q, n.Message, n.RecipientID, *n.OriginatorID).Scan(&n.ID, &n.CreatedOn, &n.Read); err != nil {
		return nil, err
	}
	return &n, nil
}

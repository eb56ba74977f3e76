package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/database"
)

// ErrNotFound is returned when no event matches.
var ErrNotFound = errors.New("event not found")

var upvotes = database.Membership{Table: "event_upvotes", Owner: "event_id", Member: "user_id"}

const eventColumns = `e.id, e.name, e.description, e.location, e.created_by, COALESCE(u.username, ''),
	e.status, e.required_num_upvotes,
	(SELECT COUNT(*) FROM event_upvotes v WHERE v.event_id = e.id),
	e.created_on, e.updated_on`

const eventFrom = ` FROM events e LEFT JOIN users u ON u.id = e.created_by`

// Pool is the subset of *pgxpool.Pool the repository uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles event persistence.
type Repository struct {
	pool Pool
}

// NewRepository creates an event repository.
func NewRepository(pool Pool) *Repository {
	return &Repository{pool: pool}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var status string
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &e.CreatedBy, &e.CreatorUsername,
		&status, &e.RequiredNumUpvotes, &e.NumberOfUpvotes, &e.CreatedOn, &e.UpdatedOn)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Status = models.Status(status)
	return &e, nil
}

// Create inserts a proposal owned by creator.
func (r *Repository) Create(ctx context.Context, creator uuid.UUID, f models.EventFields, required int) (*models.Event, error) {
	ev := models.Event{RequiredNumUpvotes: models.DefaultRequiredUpvotes}
	ev.SetRequiredNumUpvotes(required)
	const q = `INSERT INTO events (name, description, location, created_by, status, required_num_upvotes)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, f.Name, f.Description, f.Location, creator, string(models.StatusProposal), ev.RequiredNumUpvotes).Scan(&id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns an event with its upvote count and creator username.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+eventFrom+` WHERE e.id = $1`, id))
}

// List returns all events, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+eventFrom+` ORDER BY e.created_on DESC`)
}

// ListRecent returns the newest limit proposals still in the Proposal stage.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]models.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+eventFrom+` WHERE e.status = $1 ORDER BY e.created_on DESC LIMIT $2`,
		string(models.StatusProposal), limit)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Event, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update overwrites the user-editable fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, f models.EventFields) error {
	const q = `UPDATE events SET name = $2, description = $3, location = $4, updated_on = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, f.Name, f.Description, f.Location)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleUpvote flips userID's upvote on an event, recounts, and promotes the
// proposal to planning (creating its plan) once the count passes the threshold.
// The event row is locked for the duration of the transaction.
func (r *Repository) ToggleUpvote(ctx context.Context, eventID, userID uuid.UUID) (models.UpvoteResult, error) {
	var res models.UpvoteResult
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	ev := models.Event{ID: eventID}
	err = tx.QueryRow(ctx, `SELECT status, required_num_upvotes FROM events WHERE id = $1 FOR UPDATE`, eventID).
		Scan(&status, &ev.RequiredNumUpvotes)
	if err != nil {
		if database.IsNoRows(err) {
			return res, ErrNotFound
		}
		return res, err
	}
	ev.Status = models.Status(status)

	added, count, err := upvotes.Toggle(ctx, tx, eventID, userID)
	if err != nil {
		return res, err
	}
	promoted := ev.ApplyUpvoteCount(count)
	if promoted {
		if err := setStatus(ctx, tx, eventID, models.StatusPlanning); err != nil {
			return res, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return models.UpvoteResult{
		EventID:  eventID,
		Upvoted:  added,
		Count:    count,
		Status:   ev.Status,
		Promoted: promoted,
	}, nil
}

// HasUpvoted reports whether userID upvoted the event.
func (r *Repository) HasUpvoted(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	return upvotes.Has(ctx, r.pool, eventID, userID)
}

// UpvotedEventIDs returns the set of events userID has upvoted.
func (r *Repository) UpvotedEventIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT event_id FROM event_upvotes WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = true
	}
	return set, rows.Err()
}

// UpvoterIDs returns every user who upvoted the event.
func (r *Repository) UpvoterIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM event_upvotes WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Transition moves an event from one status to another. It fails with
// models.ErrInvalidTransition if the move is not allowed or the event is no
// longer in status from.
func (r *Repository) Transition(ctx context.Context, eventID uuid.UUID, from, to models.Status) error {
	if !from.CanTransition(to) {
		return models.ErrInvalidTransition
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE events SET status = $3, updated_on = NOW() WHERE id = $1 AND status = $2`,
		eventID, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidTransition
	}
	if to == models.StatusPlanning {
		if err := ensurePlan(ctx, tx, eventID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func setStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, s models.Status) error {
	if _, err := tx.Exec(ctx, `UPDATE events SET status = $2, updated_on = NOW() WHERE id = $1`, eventID, string(s)); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if s == models.StatusPlanning {
		return ensurePlan(ctx, tx, eventID)
	}
	return nil
}

func ensurePlan(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `INSERT INTO plans (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

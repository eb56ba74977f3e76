package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/database"
)

var (
	// ErrNotFound is returned when the event has no plan, or the date does not exist.
	ErrNotFound = errors.New("plan not found")
	// ErrDuplicateDate is returned when the date was already proposed for the plan.
	ErrDuplicateDate = errors.New("date already proposed")
)

var (
	volunteers = database.Membership{Table: "plan_volunteers", Owner: "plan_id", Member: "user_id"}
	dateVotes  = database.Membership{Table: "proposed_date_votes", Owner: "proposed_date_id", Member: "user_id"}
)

// Repository handles plan, volunteer and proposed date persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a plans repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByEvent returns the event's plan with its volunteers.
func (r *Repository) GetByEvent(ctx context.Context, eventID uuid.UUID) (*models.Plan, error) {
	var p models.Plan
	err := r.pool.QueryRow(ctx, `SELECT id, event_id, created_on, updated_on FROM plans WHERE event_id = $1`, eventID).
		Scan(&p.ID, &p.EventID, &p.CreatedOn, &p.UpdatedOn)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT u.id, u.username, u.first_name, u.last_name, u.avatar_url
		FROM plan_volunteers v JOIN users u ON u.id = v.user_id
		WHERE v.plan_id = $1 ORDER BY u.username`, p.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	p.Volunteers = []models.UserPublic{}
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.AvatarURL); err != nil {
			return nil, err
		}
		p.Volunteers = append(p.Volunteers, u)
	}
	return &p, rows.Err()
}

// ListDates returns the plan's proposed dates in calendar order with vote counts.
func (r *Repository) ListDates(ctx context.Context, planID uuid.UUID) ([]models.ProposedDate, error) {
	const q = `SELECT d.id, d.plan_id, d.created_by, d.date,
		(SELECT COUNT(*) FROM proposed_date_votes v WHERE v.proposed_date_id = d.id)
		FROM proposed_dates d WHERE d.plan_id = $1 ORDER BY d.date`
	rows, err := r.pool.Query(ctx, q, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ProposedDate
	for rows.Next() {
		var d models.ProposedDate
		if err := rows.Scan(&d.ID, &d.PlanID, &d.CreatedBy, &d.Date, &d.NumberOfVotes); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// ToggleVolunteer flips userID in the volunteer set of the event's plan.
func (r *Repository) ToggleVolunteer(ctx context.Context, eventID, userID uuid.UUID) (models.ToggleResult, error) {
	return r.toggle(ctx, volunteers, `SELECT id FROM plans WHERE event_id = $1 FOR UPDATE`,
		`UPDATE plans SET updated_on = NOW() WHERE id = $1`, eventID, userID)
}

// ToggleDateVote flips userID's vote on a proposed date.
func (r *Repository) ToggleDateVote(ctx context.Context, dateID, userID uuid.UUID) (models.ToggleResult, error) {
	return r.toggle(ctx, dateVotes, `SELECT id FROM proposed_dates WHERE id = $1 FOR UPDATE`,
		`UPDATE plans SET updated_on = NOW() WHERE id = (SELECT plan_id FROM proposed_dates WHERE id = $1)`, dateID, userID)
}

// toggle locks the owning row found by lockQuery, flips the membership and
// bumps the plan's updated_on with touchQuery.
func (r *Repository) toggle(ctx context.Context, m database.Membership, lockQuery, touchQuery string, key, userID uuid.UUID) (models.ToggleResult, error) {
	var res models.ToggleResult
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner uuid.UUID
	if err := tx.QueryRow(ctx, lockQuery, key).Scan(&owner); err != nil {
		if database.IsNoRows(err) {
			return res, ErrNotFound
		}
		return res, err
	}
	added, count, err := m.Toggle(ctx, tx, owner, userID)
	if err != nil {
		return res, err
	}
	if _, err := tx.Exec(ctx, touchQuery, owner); err != nil {
		return res, fmt.Errorf("touch plan: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return models.ToggleResult{Added: added, Count: count}, nil
}

// ProposeDate adds a candidate date to the event's plan.
func (r *Repository) ProposeDate(ctx context.Context, eventID, userID uuid.UUID, date time.Time) (*models.ProposedDate, error) {
	const q = `INSERT INTO proposed_dates (plan_id, created_by, date)
		SELECT p.id, $2, $3 FROM plans p WHERE p.event_id = $1
		RETURNING id, plan_id, created_by, date`
	var d models.ProposedDate
	err := r.pool.QueryRow(ctx, q, eventID, userID, date).Scan(&d.ID, &d.PlanID, &d.CreatedBy, &d.Date)
	if err != nil {
		switch {
		case database.IsNoRows(err):
			return nil, ErrNotFound
		case database.IsUniqueViolation(err, "proposed_dates_plan_date_key"):
			return nil, ErrDuplicateDate
		}
		return nil, err
	}
	return &d, nil
}

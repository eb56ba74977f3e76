package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Membership names a two-column join table that stands in for a per-user
// boolean flag (upvotes, volunteers, date votes). The (Owner, Member) pair
// must be the table's primary key.
type Membership struct {
	Table  string
	Owner  string
	Member string
}

// RowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Toggle removes member from owner's set if present, otherwise adds it.
// It returns whether the member is now in the set and the new set size.
// Table and column names come from package constants, never from input.
func (m Membership) Toggle(ctx context.Context, tx pgx.Tx, owner, member uuid.UUID) (added bool, count int, err error) {
	del := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, m.Table, m.Owner, m.Member)
	tag, err := tx.Exec(ctx, del, owner, member)
	if err != nil {
		return false, 0, fmt.Errorf("delete %s: %w", m.Table, err)
	}
	if tag.RowsAffected() == 0 {
		ins := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, m.Table, m.Owner, m.Member)
		if _, err := tx.Exec(ctx, ins, owner, member); err != nil {
			return false, 0, fmt.Errorf("insert %s: %w", m.Table, err)
		}
		added = true
	}
	count, err = m.Count(ctx, tx, owner)
	if err != nil {
		return false, 0, err
	}
	return added, count, nil
}

// Count returns the size of owner's set.
func (m Membership) Count(ctx context.Context, q RowQuerier, owner uuid.UUID) (int, error) {
	var n int
	sel := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, m.Table, m.Owner)
	if err := q.QueryRow(ctx, sel, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", m.Table, err)
	}
	return n, nil
}

// Has reports whether member is in owner's set.
func (m Membership) Has(ctx context.Context, q RowQuerier, owner, member uuid.UUID) (bool, error) {
	var ok bool
	sel := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1 AND %s = $2)`, m.Table, m.Owner, m.Member)
	if err := q.QueryRow(ctx, sel, owner, member).Scan(&ok); err != nil {
		return false, fmt.Errorf("check %s: %w", m.Table, err)
	}
	return ok, nil
}

package events

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-events/backend/internal/models"
)

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestToggleUpvotePromotesInTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID, userID := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(q(`SELECT status, required_num_upvotes FROM events WHERE id = $1 FOR UPDATE`)).
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "required_num_upvotes"}).AddRow("PR", 3))
	mock.ExpectExec(q(`DELETE FROM event_upvotes WHERE event_id = $1 AND user_id = $2`)).
		WithArgs(eventID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(q(`INSERT INTO event_upvotes (event_id, user_id) VALUES ($1, $2)`)).
		WithArgs(eventID, userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM event_upvotes WHERE event_id = $1`)).
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(q(`UPDATE events SET status = $2`)).
		WithArgs(eventID, "PL").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q(`INSERT INTO plans (event_id) VALUES ($1)`)).
		WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := NewRepository(mock).ToggleUpvote(context.Background(), eventID, userID)

	require.NoError(t, err)
	assert.True(t, res.Upvoted)
	assert.True(t, res.Promoted)
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, models.StatusPlanning, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleUpvoteRemovesWithoutPromotion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID, userID := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FOR UPDATE`)).
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "required_num_upvotes"}).AddRow("PL", 3))
	mock.ExpectExec(q(`DELETE FROM event_upvotes`)).
		WithArgs(eventID, userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM event_upvotes`)).
		WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	res, err := NewRepository(mock).ToggleUpvote(context.Background(), eventID, userID)

	require.NoError(t, err)
	assert.False(t, res.Upvoted)
	assert.False(t, res.Promoted)
	assert.Equal(t, models.StatusPlanning, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleUpvoteUnknownEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(q(`FOR UPDATE`)).WithArgs(eventID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err = NewRepository(mock).ToggleUpvote(context.Background(), eventID, uuid.New())

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	eventID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(q(`WHERE id = $1 AND status = $2`)).
		WithArgs(eventID, "PL", "SC").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = NewRepository(mock).Transition(context.Background(), eventID, models.StatusPlanning, models.StatusScheduled)

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

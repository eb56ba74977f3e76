package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/events"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/queue"
)

type fakeEvents struct {
	events   map[uuid.UUID]*models.Event
	upvoters map[uuid.UUID][]uuid.UUID
}

func (f *fakeEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	if ev, ok := f.events[id]; ok {
		return ev, nil
	}
	return nil, events.ErrNotFound
}

func (f *fakeEvents) UpvoterIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return f.upvoters[id], nil
}

type fakeWriter struct {
	created []models.Notification
	err     error
}

func (f *fakeWriter) CreateStatusChanges(_ context.Context, list []models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, list...)
	return nil
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Dequeue(ctx context.Context) (*queue.Job, string, error) {
	args := m.Called(ctx)
	job, _ := args.Get(0).(*queue.Job)
	return job, args.String(1), args.Error(2)
}

func (m *mockQueue) Retry(ctx context.Context, job *queue.Job) error {
	return m.Called(ctx, job).Error(0)
}

func picnic(creator uuid.UUID) *models.Event {
	return &models.Event{ID: uuid.New(), Name: "Picnic", CreatedBy: &creator, Status: models.StatusPlanning}
}

func statusJob(t *testing.T, eventID uuid.UUID) *queue.Job {
	t.Helper()
	job, err := queue.NewJob(queue.JobTypeStatusChange, queue.StatusChangePayload{
		EventID: eventID,
		From:    string(models.StatusProposal),
		To:      string(models.StatusPlanning),
	})
	require.NoError(t, err)
	return job
}

func TestRecipientsDeduplicates(t *testing.T) {
	creator, u1, u2 := uuid.New(), uuid.New(), uuid.New()

	got := Recipients(picnic(creator), []uuid.UUID{u1, creator, u2, u1})

	assert.Equal(t, []uuid.UUID{creator, u1, u2}, got)
}

func TestRecipientsWithoutCreator(t *testing.T) {
	u1 := uuid.New()
	ev := &models.Event{ID: uuid.New()}

	assert.Equal(t, []uuid.UUID{u1}, Recipients(ev, []uuid.UUID{u1}))
}

func TestProcessCreatesNotifications(t *testing.T) {
	creator, voter := uuid.New(), uuid.New()
	ev := picnic(creator)
	src := &fakeEvents{
		events:   map[uuid.UUID]*models.Event{ev.ID: ev},
		upvoters: map[uuid.UUID][]uuid.UUID{ev.ID: {creator, voter}},
	}
	w := &fakeWriter{}
	p := NewNotificationProcessor(src, w, nil, zap.NewNop())

	require.NoError(t, p.Process(context.Background(), statusJob(t, ev.ID)))

	require.Len(t, w.created, 2)
	assert.Equal(t, creator, w.created[0].RecipientID)
	assert.Equal(t, voter, w.created[1].RecipientID)
	for _, n := range w.created {
		assert.Equal(t, models.KindEventStatusChange, n.Kind)
		assert.Equal(t, ev.ID, *n.SourceEventID)
		assert.Contains(t, n.Message, "Picnic")
	}
}

func TestProcessDropsDeletedEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewNotificationProcessor(&fakeEvents{}, w, nil, nil)

	assert.NoError(t, p.Process(context.Background(), statusJob(t, uuid.New())))
	assert.Empty(t, w.created)
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewNotificationProcessor(&fakeEvents{}, &fakeWriter{}, nil, nil)

	err := p.Process(context.Background(), &queue.Job{ID: "1", Type: "recording_upload"})

	assert.Error(t, err)
}

func TestRunRetriesFailedJob(t *testing.T) {
	ev := picnic(uuid.New())
	src := &fakeEvents{events: map[uuid.UUID]*models.Event{ev.ID: ev}}
	w := &fakeWriter{err: errors.New("db down")}
	job := statusJob(t, ev.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &mockQueue{}
	q.On("Dequeue", mock.Anything).Return(job, queue.QueueNotifications, nil).Once()
	q.On("Dequeue", mock.Anything).Return(nil, "", nil).Run(func(mock.Arguments) {
		cancel()
	})
	q.On("Retry", mock.Anything, job).Return(nil).Once()

	p := NewNotificationProcessor(src, w, q, zap.NewNop())
	p.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	q.AssertExpectations(t)
}

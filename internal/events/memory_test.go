package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/plans"
	"github.com/civic-events/backend/pkg/queue"
)

// memoryStore mirrors Repository semantics over maps.
type memoryStore struct {
	mu      sync.Mutex
	events  map[uuid.UUID]*models.Event
	upvotes map[uuid.UUID]map[uuid.UUID]bool
	plans   map[uuid.UUID]*models.Plan
	creates int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:  map[uuid.UUID]*models.Event{},
		upvotes: map[uuid.UUID]map[uuid.UUID]bool{},
		plans:   map[uuid.UUID]*models.Plan{},
	}
}

func (m *memoryStore) Create(_ context.Context, creator uuid.UUID, f models.EventFields, required int) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	owner := creator
	ev := &models.Event{
		ID: uuid.New(), Name: f.Name, Description: f.Description, Location: f.Location,
		CreatedBy: &owner, Status: models.StatusProposal, RequiredNumUpvotes: required,
		CreatedOn: time.Now().Add(time.Duration(m.creates) * time.Millisecond),
	}
	m.events[ev.ID] = ev
	cp := *ev
	return &cp, nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	cp.NumberOfUpvotes = len(m.upvotes[id])
	return &cp, nil
}

func (m *memoryStore) List(ctx context.Context) ([]models.Event, error) {
	return m.ListRecent(ctx, 0)
}

func (m *memoryStore) ListRecent(_ context.Context, limit int) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Event
	for _, ev := range m.events {
		if limit > 0 && ev.Status != models.StatusProposal {
			continue
		}
		cp := *ev
		cp.NumberOfUpvotes = len(m.upvotes[ev.ID])
		list = append(list, cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedOn.After(list[j].CreatedOn) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) Update(_ context.Context, id uuid.UUID, f models.EventFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return ErrNotFound
	}
	ev.Name, ev.Description, ev.Location = f.Name, f.Description, f.Location
	return nil
}

func (m *memoryStore) ToggleUpvote(_ context.Context, eventID, userID uuid.UUID) (models.UpvoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return models.UpvoteResult{}, ErrNotFound
	}
	set := m.upvotes[eventID]
	if set == nil {
		set = map[uuid.UUID]bool{}
		m.upvotes[eventID] = set
	}
	added := !set[userID]
	if added {
		set[userID] = true
	} else {
		delete(set, userID)
	}
	promoted := ev.ApplyUpvoteCount(len(set))
	if promoted {
		m.plans[eventID] = &models.Plan{ID: uuid.New(), EventID: eventID}
	}
	return models.UpvoteResult{EventID: eventID, Upvoted: added, Count: len(set), Status: ev.Status, Promoted: promoted}, nil
}

func (m *memoryStore) HasUpvoted(_ context.Context, eventID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upvotes[eventID][userID], nil
}

func (m *memoryStore) UpvotedEventIDs(_ context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for id, set := range m.upvotes {
		if set[userID] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memoryStore) Transition(_ context.Context, eventID uuid.UUID, from, to models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if ev.Status != from || !from.CanTransition(to) {
		return models.ErrInvalidTransition
	}
	ev.Status = to
	if to == models.StatusPlanning && m.plans[eventID] == nil {
		m.plans[eventID] = &models.Plan{ID: uuid.New(), EventID: eventID}
	}
	return nil
}

// GetByEvent and ListDates let the store double as the PlanReader.
func (m *memoryStore) GetByEvent(_ context.Context, eventID uuid.UUID) (*models.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[eventID]
	if !ok {
		return nil, plans.ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) ListDates(context.Context, uuid.UUID) ([]models.ProposedDate, error) {
	return nil, nil
}

type noComments struct{}

func (noComments) ListByEvent(context.Context, uuid.UUID) ([]models.Comment, error) { return nil, nil }

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []queue.StatusChangePayload
}

func (r *recordingNotifier) EnqueueStatusChange(_ context.Context, p queue.StatusChangePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, p)
	return nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []string
	last   interface{}
}

func (r *recordingHub) PublishToEvent(_ uuid.UUID, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
}

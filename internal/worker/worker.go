package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/events"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/queue"
)

// EventSource loads the event and its audience.
type EventSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	UpvoterIDs(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// NotificationWriter persists status-change notifications.
type NotificationWriter interface {
	CreateStatusChanges(ctx context.Context, list []models.Notification) error
}

// JobQueue is the subset of queue.Queue the worker loop uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// NotificationProcessor turns status change jobs into notifications for the
// event's creator and everyone who upvoted it.
type NotificationProcessor struct {
	events  EventSource
	writer  NotificationWriter
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(ev EventSource, writer NotificationWriter, q JobQueue, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{events: ev, writer: writer, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := job.StatusChange()
	if err != nil {
		return err
	}

	ev, err := p.events.GetByID(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			p.logger.Info("event gone, dropping status change", zap.String("event_id", payload.EventID.String()))
			return nil
		}
		return fmt.Errorf("load event: %w", err)
	}
	upvoters, err := p.events.UpvoterIDs(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("load upvoters: %w", err)
	}

	to := models.Status(payload.To)
	recipients := Recipients(ev, upvoters)
	list := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		list = append(list, models.NewEventStatusChange(id, ev, to))
	}
	if err := p.writer.CreateStatusChanges(ctx, list); err != nil {
		return fmt.Errorf("store notifications: %w", err)
	}

	p.logger.Info("status change notifications created",
		zap.String("event_id", ev.ID.String()),
		zap.String("from", payload.From),
		zap.String("to", payload.To),
		zap.Int("recipients", len(list)),
	)
	return nil
}

// Recipients returns the creator followed by the upvoters, without duplicates.
func Recipients(ev *models.Event, upvoters []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(upvoters)+1)
	out := make([]uuid.UUID, 0, len(upvoters)+1)
	add := func(id uuid.UUID) {
		if id == uuid.Nil || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	if ev.CreatedBy != nil {
		add(*ev.CreatedBy)
	}
	for _, id := range upvoters {
		add(id)
	}
	return out
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *NotificationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

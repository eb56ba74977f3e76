package plans

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/response"
	"github.com/civic-events/backend/pkg/validation"
)

// DateForm is the body for POST /plans/propose-date/:id/.
type DateForm struct {
	Date string `form:"date" binding:"required,ymd"`
}

// Store is the plan persistence the handlers need.
type Store interface {
	ToggleVolunteer(ctx context.Context, eventID, userID uuid.UUID) (models.ToggleResult, error)
	ToggleDateVote(ctx context.Context, dateID, userID uuid.UUID) (models.ToggleResult, error)
	ProposeDate(ctx context.Context, eventID, userID uuid.UUID, date time.Time) (*models.ProposedDate, error)
}

// Handler handles plan HTTP endpoints. All of them return HTML fragments.
type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a plans handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// Volunteer handles POST /plans/volunteer/:id/ where :id is the event.
func (h *Handler) Volunteer(c *gin.Context) {
	h.toggle(c, "volunteer", h.store.ToggleVolunteer, "Volunteer", "Volunteers")
}

// VoteDate handles POST /plans/vote-date/:id/ where :id is the proposed date.
func (h *Handler) VoteDate(c *gin.Context) {
	h.toggle(c, "date vote", h.store.ToggleDateVote, "Vote", "Votes")
}

func (h *Handler) toggle(c *gin.Context, what string, fn func(context.Context, uuid.UUID, uuid.UUID) (models.ToggleResult, error), singular, plural string) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "Not found.")
		return
	}
	res, err := fn(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Not found.")
			return
		}
		h.logger.Error("toggle "+what, zap.Error(err), zap.String("id", id.String()))
		response.Internal(c, "Could not save your choice.")
		return
	}
	response.Fragment(c, http.StatusOK, models.CountLabel(res.Count, singular, plural))
}

// ProposeDate handles POST /plans/propose-date/:id/ where :id is the event.
func (h *Handler) ProposeDate(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "Event not found.")
		return
	}
	var form DateForm
	if err := c.ShouldBind(&form); err != nil {
		errs := validation.FromBinding(err)
		response.Alert(c, http.StatusUnprocessableEntity, errs["date"])
		return
	}
	date, _ := validation.ParseDate(form.Date)
	today := h.now().UTC().Truncate(24 * time.Hour)
	if date.Before(today) {
		response.Alert(c, http.StatusUnprocessableEntity, "Date cannot be in the past.")
		return
	}

	d, err := h.store.ProposeDate(c.Request.Context(), eventID, userID, date)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "This event has no plan yet.")
		return
	case errors.Is(err, ErrDuplicateDate):
		response.Conflict(c, "That date has already been proposed.")
		return
	case err != nil:
		h.logger.Error("propose date", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "Could not propose the date.")
		return
	}

	detail := "/events/detail/" + eventID.String() + "/"
	if !response.IsHTMX(c) {
		c.Redirect(http.StatusFound, detail)
		return
	}
	c.Header("HX-Refresh", "true")
	response.Fragment(c, http.StatusCreated, `<div class="alert alert-success">Proposed `+d.Date.Format(validation.DateLayout)+`.</div>`)
}

package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/plans"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/pkg/database"
	"github.com/civic-events/backend/pkg/queue"
	"github.com/civic-events/backend/pkg/response"
	"github.com/civic-events/backend/pkg/validation"
)

// HomeListSize is how many proposals the home page shows.
const HomeListSize = 5

// EventUpvotes is the realtime event name for vote count updates.
const EventUpvotes = "upvotes"

// EventForm is the body for create and edit.
type EventForm struct {
	Name        string `form:"name" binding:"required,max=100"`
	Description string `form:"description" binding:"required"`
	Location    string `form:"location" binding:"required,max=100"`
}

func (f EventForm) fields() models.EventFields {
	return models.EventFields{Name: f.Name, Description: f.Description, Location: f.Location}
}

// StatusForm is the body for POST /events/status/:id/.
type StatusForm struct {
	Status string `form:"status" binding:"required"`
}

// Store is the event persistence the handlers need.
type Store interface {
	Create(ctx context.Context, creator uuid.UUID, f models.EventFields, required int) (*models.Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	ListRecent(ctx context.Context, limit int) ([]models.Event, error)
	Update(ctx context.Context, id uuid.UUID, f models.EventFields) error
	ToggleUpvote(ctx context.Context, eventID, userID uuid.UUID) (models.UpvoteResult, error)
	HasUpvoted(ctx context.Context, eventID, userID uuid.UUID) (bool, error)
	UpvotedEventIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
	Transition(ctx context.Context, eventID uuid.UUID, from, to models.Status) error
}

// CommentLister loads the comments shown on the detail page.
type CommentLister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Comment, error)
}

// PlanReader loads an event's plan and its proposed dates.
type PlanReader interface {
	GetByEvent(ctx context.Context, eventID uuid.UUID) (*models.Plan, error)
	ListDates(ctx context.Context, planID uuid.UUID) ([]models.ProposedDate, error)
}

// Notifier queues status-change notifications.
type Notifier interface {
	EnqueueStatusChange(ctx context.Context, p queue.StatusChangePayload) error
}

// Broadcaster pushes live updates to viewers of an event.
type Broadcaster interface {
	PublishToEvent(eventID uuid.UUID, event string, payload interface{})
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store    Store
	comments CommentLister
	plans    PlanReader
	notifier Notifier
	hub      Broadcaster
	required int
	logger   *zap.Logger
}

// NewHandler creates an events handler. notifier and hub may be nil.
func NewHandler(store Store, comments CommentLister, plans PlanReader, notifier Notifier, hub Broadcaster, requiredUpvotes int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requiredUpvotes <= 0 {
		requiredUpvotes = models.DefaultRequiredUpvotes
	}
	return &Handler{
		store:    store,
		comments: comments,
		plans:    plans,
		notifier: notifier,
		hub:      hub,
		required: requiredUpvotes,
		logger:   logger,
	}
}

// Home handles GET /.
func (h *Handler) Home(c *gin.Context) {
	recent, err := h.store.ListRecent(c.Request.Context(), HomeListSize)
	if err != nil {
		h.logger.Error("list recent events", zap.Error(err))
		web.Error(c)
		return
	}
	web.Render(c, http.StatusOK, "home.html", gin.H{"Notice": web.ConstructionNotice, "Events": recent})
}

// List handles GET /events/.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.store.List(ctx)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		web.Error(c)
		return
	}
	upvoted := map[uuid.UUID]bool{}
	if userID, ok := middleware.UserID(c); ok {
		upvoted, err = h.store.UpvotedEventIDs(ctx, userID)
		if err != nil {
			h.logger.Error("list upvoted events", zap.Error(err))
			web.Error(c)
			return
		}
	}
	web.Render(c, http.StatusOK, "event_list.html", gin.H{"Title": "Proposals", "Events": list, "Upvoted": upvoted})
}

// CreatePage handles GET /events/create/.
func (h *Handler) CreatePage(c *gin.Context) {
	h.renderForm(c, http.StatusOK, "Propose an event", "/events/create/", EventForm{}, nil)
}

// Create handles POST /events/create/.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	var form EventForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderForm(c, http.StatusUnprocessableEntity, "Propose an event", "/events/create/", form, validation.FromBinding(err))
		return
	}
	ev, err := h.store.Create(c.Request.Context(), userID, form.fields(), h.required)
	if database.IsForeignKeyViolation(err, "") {
		h.logger.Warn("session user missing", zap.String("user_id", userID.String()))
		middleware.SendToLogin(c)
		return
	}
	if err != nil {
		h.logger.Error("create event", zap.Error(err))
		web.Error(c)
		return
	}
	h.logger.Info("event proposed", zap.String("event_id", ev.ID.String()), zap.String("user_id", userID.String()))
	response.Redirect(c, "/events/")
}

// EditPage handles GET /events/edit/:id/.
func (h *Handler) EditPage(c *gin.Context) {
	ev, ok := h.editable(c)
	if !ok {
		return
	}
	form := EventForm{Name: ev.Name, Description: ev.Description, Location: ev.Location}
	h.renderForm(c, http.StatusOK, "Edit proposal", editPath(ev.ID), form, nil)
}

// Edit handles POST /events/edit/:id/.
func (h *Handler) Edit(c *gin.Context) {
	ev, ok := h.editable(c)
	if !ok {
		return
	}
	var form EventForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderForm(c, http.StatusUnprocessableEntity, "Edit proposal", editPath(ev.ID), form, validation.FromBinding(err))
		return
	}
	if err := h.store.Update(c.Request.Context(), ev.ID, form.fields()); err != nil {
		h.logger.Error("update event", zap.Error(err), zap.String("event_id", ev.ID.String()))
		web.Error(c)
		return
	}
	response.Redirect(c, "/")
}

// editable loads the event named in the URL and checks the caller created it.
// Non-creators are redirected home.
func (h *Handler) editable(c *gin.Context) (*models.Event, bool) {
	ev, ok := h.loadPage(c)
	if !ok {
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !ev.IsCreator(userID) {
		response.Redirect(c, "/")
		return nil, false
	}
	return ev, true
}

func editPath(id uuid.UUID) string {
	return "/events/edit/" + id.String() + "/"
}

func (h *Handler) renderForm(c *gin.Context, status int, title, action string, form EventForm, errs validation.Errors) {
	web.Render(c, status, "event_form.html", gin.H{"Title": title, "Action": action, "Form": form, "Errors": errs})
}

// Detail handles GET /events/detail/:id/.
func (h *Handler) Detail(c *gin.Context) {
	ev, ok := h.loadPage(c)
	if !ok {
		return
	}
	h.RenderDetail(c, http.StatusOK, ev, "", nil)
}

// RenderDetail renders the detail page for ev, carrying over a rejected
// comment draft and its errors.
func (h *Handler) RenderDetail(c *gin.Context, status int, ev *models.Event, commentDraft string, commentErrs validation.Errors) {
	ctx := c.Request.Context()
	data := gin.H{
		"Title":         ev.Name,
		"Event":         ev,
		"CommentText":   commentDraft,
		"CommentErrors": commentErrs,
	}

	comments, err := h.comments.ListByEvent(ctx, ev.ID)
	if err != nil {
		h.logger.Error("list comments", zap.Error(err), zap.String("event_id", ev.ID.String()))
		web.Error(c)
		return
	}
	data["Comments"] = comments

	plan, err := h.plans.GetByEvent(ctx, ev.ID)
	switch {
	case errors.Is(err, plans.ErrNotFound):
	case err != nil:
		h.logger.Error("load plan", zap.Error(err), zap.String("event_id", ev.ID.String()))
		web.Error(c)
		return
	default:
		dates, err := h.plans.ListDates(ctx, plan.ID)
		if err != nil {
			h.logger.Error("list proposed dates", zap.Error(err), zap.String("plan_id", plan.ID.String()))
			web.Error(c)
			return
		}
		data["Plan"] = plan
		data["Dates"] = dates
	}

	if claims, ok := middleware.CurrentUser(c); ok {
		upvoted, err := h.store.HasUpvoted(ctx, ev.ID, claims.UserID)
		if err != nil {
			h.logger.Error("check upvote", zap.Error(err))
			web.Error(c)
			return
		}
		data["Upvoted"] = upvoted
		data["CanEdit"] = ev.IsCreator(claims.UserID)
		if claims.IsStaff {
			data["NextStatuses"] = ev.Status.Next()
		}
	}
	web.Render(c, status, "event_detail.html", data)
}

// loadPage resolves :id for full-page routes, rendering the 404 page on failure.
func (h *Handler) loadPage(c *gin.Context) (*models.Event, bool) {
	ev, err := h.load(c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			web.NotFound(c, "Event not found.")
		} else {
			h.logger.Error("load event", zap.Error(err))
			web.Error(c)
		}
		return nil, false
	}
	return ev, true
}

func (h *Handler) load(c *gin.Context) (*models.Event, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, ErrNotFound
	}
	return h.store.GetByID(c.Request.Context(), id)
}

// Upvote handles POST /events/upvote/:id/ and returns the vote button fragment.
func (h *Handler) Upvote(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "Event not found.")
		return
	}
	ctx := c.Request.Context()
	res, err := h.store.ToggleUpvote(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Event not found.")
			return
		}
		if database.IsForeignKeyViolation(err, "") {
			middleware.SendToLogin(c)
			return
		}
		h.logger.Error("toggle upvote", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "Could not record your vote.")
		return
	}

	if res.Promoted {
		h.logger.Info("event promoted to planning", zap.String("event_id", eventID.String()), zap.Int("upvotes", res.Count))
		h.notify(ctx, eventID, models.StatusProposal, models.StatusPlanning)
	}
	if h.hub != nil {
		h.hub.PublishToEvent(eventID, EventUpvotes, gin.H{
			"event_id": eventID,
			"count":    res.Count,
			"label":    res.Label(),
			"status":   res.Status.Label(),
		})
	}
	response.Fragment(c, http.StatusOK, UpvoteFragment(res))
}

// UpvoteFragment renders the vote button content for the caller.
func UpvoteFragment(res models.UpvoteResult) string {
	return fmt.Sprintf("<i class='%s fa-thumbs-up'></i> %s", web.Thumb(res.Upvoted), res.Label())
}

// SetStatus handles POST /events/status/:id/ (staff only).
func (h *Handler) SetStatus(c *gin.Context) {
	ev, err := h.load(c)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Event not found.")
			return
		}
		h.logger.Error("load event", zap.Error(err))
		response.Internal(c, "Could not load event.")
		return
	}
	var form StatusForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "Choose a status.")
		return
	}
	to, err := models.ParseStatus(form.Status)
	if err != nil {
		response.BadRequest(c, "Unknown status.")
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Transition(ctx, ev.ID, ev.Status, to); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			response.Conflict(c, fmt.Sprintf("Cannot move from %s to %s.", ev.Status.Label(), to.Label()))
			return
		}
		h.logger.Error("transition event", zap.Error(err), zap.String("event_id", ev.ID.String()))
		response.Internal(c, "Could not update status.")
		return
	}
	h.logger.Info("event status changed",
		zap.String("event_id", ev.ID.String()),
		zap.String("from", string(ev.Status)),
		zap.String("to", string(to)),
		zap.String("by", c.MustGet(middleware.ContextUsername).(string)),
	)
	h.notify(ctx, ev.ID, ev.Status, to)
	response.Redirect(c, "/events/detail/"+ev.ID.String()+"/")
}

// notify queues the fan-out job. Failures are logged and never fail the request.
func (h *Handler) notify(ctx context.Context, eventID uuid.UUID, from, to models.Status) {
	if h.notifier == nil {
		return
	}
	err := h.notifier.EnqueueStatusChange(ctx, queue.StatusChangePayload{EventID: eventID, From: string(from), To: string(to)})
	if err != nil {
		h.logger.Warn("enqueue status change", zap.Error(err), zap.String("event_id", eventID.String()))
	}
}

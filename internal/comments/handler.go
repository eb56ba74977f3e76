package comments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/events"
	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/pkg/database"
	"github.com/civic-events/backend/pkg/response"
	"github.com/civic-events/backend/pkg/validation"
)

// CommentForm is the body for POST /events/create-comment/:id/.
type CommentForm struct {
	Comment string `form:"comment" binding:"required,max=5000"`
}

// Store is the comment persistence the handler needs.
type Store interface {
	Create(ctx context.Context, eventID, authorID uuid.UUID, text string) (*models.Comment, error)
}

// EventGetter resolves the event being commented on.
type EventGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// DetailPage re-renders the event page with an inline comment error.
type DetailPage interface {
	RenderDetail(c *gin.Context, status int, ev *models.Event, commentDraft string, commentErrs validation.Errors)
}

// Handler handles comment HTTP endpoints.
type Handler struct {
	store  Store
	events EventGetter
	detail DetailPage
	logger *zap.Logger
}

// NewHandler creates a comments handler.
func NewHandler(store Store, events EventGetter, detail DetailPage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, events: events, detail: detail, logger: logger}
}

// Create handles POST /events/create-comment/:id/.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		web.NotFound(c, "Event not found.")
		return
	}
	ctx := c.Request.Context()
	ev, err := h.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			web.NotFound(c, "Event not found.")
			return
		}
		h.logger.Error("load event", zap.Error(err), zap.String("event_id", eventID.String()))
		web.Error(c)
		return
	}

	var form CommentForm
	bindErr := c.ShouldBind(&form)
	form.Comment = strings.TrimSpace(form.Comment)
	if bindErr != nil || form.Comment == "" {
		errs := validation.FromBinding(bindErr)
		if form.Comment == "" {
			errs = validation.Errors{"comment": "This field is required."}
		}
		h.detail.RenderDetail(c, http.StatusUnprocessableEntity, ev, form.Comment, errs)
		return
	}

	cm, err := h.store.Create(ctx, ev.ID, userID, form.Comment)
	if database.IsForeignKeyViolation(err, "") {
		h.logger.Warn("session user missing", zap.String("user_id", userID.String()))
		middleware.SendToLogin(c)
		return
	}
	if err != nil {
		h.logger.Error("create comment", zap.Error(err), zap.String("event_id", ev.ID.String()))
		web.Error(c)
		return
	}
	h.logger.Debug("comment created", zap.String("comment_id", cm.ID.String()), zap.String("event_id", ev.ID.String()))
	response.Redirect(c, "/events/detail/"+ev.ID.String()+"/")
}

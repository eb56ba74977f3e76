package notifications

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/auth"
	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/pkg/response"
)

// Store is the notification persistence the handlers need.
type Store interface {
	ListForUser(ctx context.Context, recipient uuid.UUID, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipient uuid.UUID) (int, error)
	MarkRead(ctx context.Context, kind models.NotificationKind, id, recipient uuid.UUID) (*models.Notification, error)
	CreateFriendRequest(ctx context.Context, n models.Notification) (*models.Notification, error)
}

// UserLookup resolves friend request targets.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	store  Store
	users  UserLookup
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(store Store, users UserLookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, users: users, logger: logger}
}

// List handles GET /notifications/.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListForUser(c.Request.Context(), userID, DefaultListLimit)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		web.Error(c)
		return
	}
	web.Render(c, http.StatusOK, "notifications.html", gin.H{"Title": "Notifications", "Notifications": list})
}

// Count handles GET /notifications/count/ and returns the unread badge fragment.
func (h *Handler) Count(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	n, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("count notifications", zap.Error(err))
		response.Fragment(c, http.StatusOK, "")
		return
	}
	response.Fragment(c, http.StatusOK, Badge(n))
}

// Badge renders the unread counter; empty when there is nothing unread.
func Badge(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(`<span class="badge">%d</span>`, n)
}

// MarkRead handles POST /notifications/read/:kind/:id/.
func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	kind, err := models.ParseNotificationKind(c.Param("kind"))
	if err != nil {
		response.BadRequest(c, "Unknown notification type.")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "Notification not found.")
		return
	}
	n, err := h.store.MarkRead(c.Request.Context(), kind, id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Notification not found.")
			return
		}
		h.logger.Error("mark notification read", zap.Error(err), zap.String("id", id.String()))
		response.Internal(c, "Could not update notification.")
		return
	}
	response.Fragment(c, http.StatusOK, fmt.Sprintf(`<li id="n-%s" class="read">%s</li>`, n.ID, template.HTMLEscapeString(n.Message)))
}

// FriendRequest handles POST /friends/request/:username/.
func (h *Handler) FriendRequest(c *gin.Context) {
	claims, _ := middleware.CurrentUser(c)
	target, err := h.users.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.NotFound(c, "User not found.")
			return
		}
		h.logger.Error("lookup friend request target", zap.Error(err))
		response.Internal(c, "Could not send the request.")
		return
	}
	if target.ID == claims.UserID {
		response.BadRequest(c, "You cannot send a friend request to yourself.")
		return
	}

	from := &models.User{ID: claims.UserID, Username: claims.Username}
	if _, err := h.store.CreateFriendRequest(c.Request.Context(), models.NewFriendRequest(from, target.ID)); err != nil {
		h.logger.Error("create friend request", zap.Error(err))
		response.Internal(c, "Could not send the request.")
		return
	}
	h.logger.Info("friend request sent", zap.String("from", claims.Username), zap.String("to", target.Username))
	response.Fragment(c, http.StatusOK, `<span class="alert alert-success">Friend request sent.</span>`)
}

package profiles

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/auth"
	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/pkg/response"
	"github.com/civic-events/backend/pkg/storage"
	"github.com/civic-events/backend/pkg/validation"
)

// SettingsForm is the body for POST /settings/:username/.
type SettingsForm struct {
	FirstName string `form:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" binding:"max=150"`
	Bio       string `form:"bio" binding:"max=2000"`
	Birthdate string `form:"birthdate" binding:"omitempty,ymd,notfuture"`
}

// UserStore is the user persistence the profile pages need.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, p models.ProfileUpdate) (*models.User, error)
	SetAvatar(ctx context.Context, id uuid.UUID, url string) (string, error)
}

// AvatarStorage stores uploaded profile pictures.
type AvatarStorage interface {
	UploadAvatar(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	DeleteAvatar(ctx context.Context, key string) error
	KeyFromURL(url string) string
}

// Handler handles profile HTTP endpoints.
type Handler struct {
	users   UserStore
	avatars AvatarStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler creates a profiles handler. avatars may be nil when object storage is not configured.
func NewHandler(users UserStore, avatars AvatarStorage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, avatars: avatars, logger: logger, now: time.Now}
}

// Profile handles GET /profile/:username/.
func (h *Handler) Profile(c *gin.Context) {
	u, err := h.users.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			web.NotFound(c, "User not found.")
			return
		}
		h.logger.Error("load profile", zap.Error(err))
		web.Error(c)
		return
	}
	isSelf := false
	if id, ok := middleware.UserID(c); ok {
		isSelf = id == u.ID
	}
	web.Render(c, http.StatusOK, "profile.html", gin.H{"Title": u.Username, "Profile": u.ToPublic(), "IsSelf": isSelf})
}

// self returns the signed-in user when they own :username; everyone else is
// redirected to their own profile.
func (h *Handler) self(c *gin.Context) (*models.User, bool) {
	own := c.MustGet(middleware.ContextUsername).(string)
	if c.Param("username") != own {
		response.Redirect(c, "/profile/"+own+"/")
		return nil, false
	}
	u, err := h.users.GetByUsername(c.Request.Context(), own)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			web.NotFound(c, "User not found.")
			return nil, false
		}
		h.logger.Error("load settings user", zap.Error(err))
		web.Error(c)
		return nil, false
	}
	return u, true
}

// SettingsPage handles GET /settings/:username/.
func (h *Handler) SettingsPage(c *gin.Context) {
	u, ok := h.self(c)
	if !ok {
		return
	}
	form := SettingsForm{FirstName: u.FirstName, LastName: u.LastName, Bio: u.Bio}
	if u.Birthdate != nil {
		form.Birthdate = u.Birthdate.Format(validation.DateLayout)
	}
	h.renderSettings(c, http.StatusOK, u, form, nil)
}

// Settings handles POST /settings/:username/.
func (h *Handler) Settings(c *gin.Context) {
	u, ok := h.self(c)
	if !ok {
		return
	}
	var form SettingsForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderSettings(c, http.StatusUnprocessableEntity, u, form, validation.FromBinding(err))
		return
	}
	update := models.ProfileUpdate{
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Bio:       strings.TrimSpace(form.Bio),
	}
	if form.Birthdate != "" {
		d, _ := validation.ParseDate(form.Birthdate)
		update.Birthdate = &d
	}
	if _, err := h.users.UpdateProfile(c.Request.Context(), u.ID, update); err != nil {
		h.logger.Error("update profile", zap.Error(err), zap.String("user_id", u.ID.String()))
		web.Error(c)
		return
	}
	response.Redirect(c, "/profile/"+u.Username+"/")
}

func (h *Handler) renderSettings(c *gin.Context, status int, u *models.User, form SettingsForm, errs validation.Errors) {
	web.Render(c, status, "settings.html", gin.H{
		"Title":     "Settings",
		"Username":  u.Username,
		"AvatarURL": u.AvatarURL,
		"Form":      form,
		"Errors":    errs,
	})
}

// UploadAvatar handles POST /settings/:username/avatar/ (multipart field "avatar").
func (h *Handler) UploadAvatar(c *gin.Context) {
	if h.avatars == nil {
		response.ServiceUnavailable(c, "Avatar uploads are not available right now.")
		return
	}
	u, ok := h.self(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxAvatarFileSize+64*1024)
	fh, err := c.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(c, "Avatar must be 2 MB or smaller.")
			return
		}
		response.BadRequest(c, "Choose an image to upload.")
		return
	}
	if fh.Size > storage.MaxAvatarFileSize {
		response.BadRequest(c, "Avatar must be 2 MB or smaller.")
		return
	}

	contentType, err := sniff(fh)
	if err != nil {
		h.logger.Warn("read avatar upload", zap.Error(err))
		response.BadRequest(c, "Could not read the uploaded file.")
		return
	}
	if !storage.ValidateAvatarFileType(contentType, "") || !storage.ValidateAvatarFileType("", fh.Filename) {
		response.BadRequest(c, "Upload a JPEG, PNG, WebP or GIF image.")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "Could not read the uploaded file.")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	key := storage.AvatarKey(u.ID.String(), fh.Filename, h.now())
	url, err := h.avatars.UploadAvatar(ctx, key, storage.ContentTypeForFilename(key), f, fh.Size)
	if err != nil {
		h.logger.Error("upload avatar", zap.Error(err), zap.String("user_id", u.ID.String()))
		response.Internal(c, "Upload failed.")
		return
	}
	prev, err := h.users.SetAvatar(ctx, u.ID, url)
	if err != nil {
		h.logger.Error("save avatar url", zap.Error(err), zap.String("user_id", u.ID.String()))
		response.Internal(c, "Upload failed.")
		return
	}
	if oldKey := h.avatars.KeyFromURL(prev); oldKey != "" && oldKey != key {
		if err := h.avatars.DeleteAvatar(ctx, oldKey); err != nil {
			h.logger.Warn("delete previous avatar", zap.Error(err), zap.String("key", oldKey))
		}
	}
	response.Fragment(c, http.StatusOK, fmt.Sprintf(`<img src="%s" alt="avatar" width="96" height="96">`, template.HTMLEscapeString(url)))
}

// sniff detects the content type from the first bytes of the upload.
func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

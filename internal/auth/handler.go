package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/internal/session"
	"github.com/civic-events/backend/internal/web"
	"github.com/civic-events/backend/pkg/response"
	"github.com/civic-events/backend/pkg/utils"
	"github.com/civic-events/backend/pkg/validation"
)

// Messages shown for duplicate signups.
const (
	MsgEmailTaken    = "User with this Email already exists."
	MsgUsernameTaken = "A user with that username already exists."
	MsgBadLogin      = "Please enter a correct email and password."
)

// SignupForm is the body for POST /accounts/signup/.
type SignupForm struct {
	FirstName string `form:"first_name" binding:"max=150"`
	LastName  string `form:"last_name" binding:"max=150"`
	Username  string `form:"username" binding:"required,max=150,username"`
	Email     string `form:"email" binding:"required,email,max=254"`
	Password1 string `form:"password1" binding:"required,min=8"`
	Password2 string `form:"password2" binding:"required,eqfield=Password1"`
}

// LoginForm is the body for POST /accounts/login/.
type LoginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

// UserStore is the persistence the account pages need.
type UserStore interface {
	Create(ctx context.Context, p CreateUserParams) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handler handles account HTTP endpoints.
type Handler struct {
	users    UserStore
	sessions *session.Manager
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, sessions *session.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, sessions: sessions, logger: logger}
}

// SignupPage handles GET /accounts/signup/.
func (h *Handler) SignupPage(c *gin.Context) {
	if _, ok := middleware.CurrentUser(c); ok {
		c.Redirect(http.StatusFound, "/")
		return
	}
	h.renderSignup(c, http.StatusOK, SignupForm{}, nil)
}

// Signup handles POST /accounts/signup/. A new account is logged in immediately.
func (h *Handler) Signup(c *gin.Context) {
	var form SignupForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderSignup(c, http.StatusUnprocessableEntity, form, validation.FromBinding(err))
		return
	}

	hash, err := utils.HashPassword(form.Password1)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		web.Error(c)
		return
	}

	user, err := h.users.Create(c.Request.Context(), CreateUserParams{
		Email:        form.Email,
		Username:     form.Username,
		PasswordHash: hash,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
	})
	switch {
	case errors.Is(err, ErrEmailTaken):
		h.renderSignup(c, http.StatusUnprocessableEntity, form, validation.Errors{"email": MsgEmailTaken})
		return
	case errors.Is(err, ErrUsernameTaken):
		h.renderSignup(c, http.StatusUnprocessableEntity, form, validation.Errors{"username": MsgUsernameTaken})
		return
	case err != nil:
		h.logger.Error("create user", zap.Error(err))
		web.Error(c)
		return
	}

	if err := h.sessions.Login(c, user); err != nil {
		h.logger.Error("issue session", zap.Error(err))
		web.Error(c)
		return
	}
	h.logger.Info("user signed up", zap.String("user_id", user.ID.String()), zap.String("username", user.Username))
	response.Redirect(c, "/")
}

func (h *Handler) renderSignup(c *gin.Context, status int, form SignupForm, errs validation.Errors) {
	form.Password1, form.Password2 = "", ""
	web.Render(c, status, "signup.html", gin.H{"Title": "Sign up", "Form": form, "Errors": errs})
}

// LoginPage handles GET /accounts/login/.
func (h *Handler) LoginPage(c *gin.Context) {
	next := middleware.SafeNext(c.Query("next"), "/")
	if _, ok := middleware.CurrentUser(c); ok {
		c.Redirect(http.StatusFound, next)
		return
	}
	h.renderLogin(c, http.StatusOK, LoginForm{Next: next}, nil)
}

// Login handles POST /accounts/login/.
func (h *Handler) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderLogin(c, http.StatusUnprocessableEntity, form, validation.FromBinding(err))
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), form.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Error("lookup user", zap.Error(err))
		web.Error(c)
		return
	}
	if user == nil || !utils.CheckPassword(form.Password, user.Password) {
		h.renderLogin(c, http.StatusUnprocessableEntity, form, validation.Errors{validation.FormError: MsgBadLogin})
		return
	}

	if err := h.sessions.Login(c, user); err != nil {
		h.logger.Error("issue session", zap.Error(err))
		web.Error(c)
		return
	}
	response.Redirect(c, middleware.SafeNext(form.Next, "/"))
}

func (h *Handler) renderLogin(c *gin.Context, status int, form LoginForm, errs validation.Errors) {
	web.Render(c, status, "login.html", gin.H{
		"Title":  "Log in",
		"Email":  form.Email,
		"Next":   middleware.SafeNext(form.Next, "/"),
		"Errors": errs,
	})
}

// Logout handles POST /accounts/logout/.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Logout(c)
	response.Redirect(c, "/")
}

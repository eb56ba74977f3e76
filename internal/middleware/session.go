package middleware

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civic-events/backend/internal/session"
	"github.com/civic-events/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUsername is the key for the username in gin context.
	ContextUsername = "username"
	// ContextIsStaff is the key for the staff flag in gin context.
	ContextIsStaff = "is_staff"
	// ContextClaims is the key for the full session claims.
	ContextClaims = "session_claims"
)

// LoginURL is where anonymous users are sent.
const LoginURL = "/accounts/login/"

// Session loads the session cookie when present. Anonymous requests pass through.
func Session(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.FromRequest(c)
		if err == nil {
			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextUsername, claims.Username)
			c.Set(ContextIsStaff, claims.IsStaff)
			c.Set(ContextClaims, claims)
		}
		c.Next()
	}
}

// RequireLogin redirects anonymous users to the login page with a next parameter.
// HTMX requests get HX-Redirect and 401 so the client navigates the whole page.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		SendToLogin(c)
	}
}

// SendToLogin aborts the request and sends the client to the login page,
// returning to the current page afterwards. Handlers also use it when the
// session names a user the database no longer has.
func SendToLogin(c *gin.Context) {
	target := LoginURL + "?next=" + url.QueryEscape(nextPath(c))
	if response.IsHTMX(c) {
		c.Header("HX-Redirect", target)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

// nextPath is the page to return to after login. For HTMX requests that is
// the page the fragment lives on, not the fragment endpoint.
func nextPath(c *gin.Context) string {
	if response.IsHTMX(c) {
		if cur := c.GetHeader("HX-Current-URL"); cur != "" {
			if u, err := url.Parse(cur); err == nil && u.Path != "" {
				return u.RequestURI()
			}
		}
	}
	return c.Request.URL.RequestURI()
}

// CurrentUser returns the session claims set by Session.
func CurrentUser(c *gin.Context) (*session.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*session.Claims)
	return claims, ok && claims != nil
}

// UserID returns the signed-in user's ID.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := CurrentUser(c)
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

// SafeNext returns next when it is a local absolute path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

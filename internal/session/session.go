// Package session issues and reads the signed login cookie.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/civic-events/backend/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSession    = errors.New("no session cookie")
)

// Claims identifies the signed-in user.
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsStaff  bool      `json:"is_staff,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs session tokens and moves them in and out of cookies.
type Manager struct {
	secret      []byte
	expireHours int
	cookieName  string
	secure      bool
}

// NewManager creates a session manager.
func NewManager(secret string, expireHours int, cookieName string, secure bool) *Manager {
	if expireHours <= 0 {
		expireHours = 24 * 14
	}
	if cookieName == "" {
		cookieName = "session"
	}
	return &Manager{
		secret:      []byte(secret),
		expireHours: expireHours,
		cookieName:  cookieName,
		secure:      secure,
	}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookieName }

// Generate creates a new token for the user.
func (m *Manager) Generate(u *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		IsStaff:  u.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl())),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and validates a token, returning claims or error.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Login signs a token for u and sets it as an HttpOnly cookie.
func (m *Manager) Login(c *gin.Context, u *models.User) error {
	token, err := m.Generate(u)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, token, int(m.ttl().Seconds()), "/", "", m.secure, true)
	return nil
}

// Logout expires the session cookie.
func (m *Manager) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}

// FromRequest reads and validates the session cookie.
func (m *Manager) FromRequest(c *gin.Context) (*Claims, error) {
	raw, err := c.Cookie(m.cookieName)
	if err != nil || raw == "" {
		return nil, ErrNoSession
	}
	return m.Validate(raw)
}

func (m *Manager) ttl() time.Duration {
	return time.Duration(m.expireHours) * time.Hour
}

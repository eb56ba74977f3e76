package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/civic-events/backend/pkg/response"
)

// RequireStaff allows only staff users. Others are sent home without an error page.
// Must run after RequireLogin.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok || !claims.IsStaff {
			response.Redirect(c, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

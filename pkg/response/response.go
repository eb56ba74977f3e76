package response

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the JSON envelope used by the few machine-facing endpoints.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Fragment writes a small trusted HTML snippet, for HTMX swaps.
func Fragment(c *gin.Context, status int, html string) {
	c.Data(status, "text/html; charset=utf-8", []byte(html))
}

// Alert writes an escaped message inside an alert box fragment.
func Alert(c *gin.Context, status int, msg string) {
	Fragment(c, status, `<div class="alert alert-error">`+template.HTMLEscapeString(msg)+`</div>`)
}

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// Redirect sends the client to location. HTMX requests get an HX-Redirect
// header instead, so the whole page navigates rather than the swap target.
func Redirect(c *gin.Context, location string) {
	if IsHTMX(c) {
		c.Header("HX-Redirect", location)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// BadRequest sends 400.
func BadRequest(c *gin.Context, msg string) {
	Alert(c, http.StatusBadRequest, msg)
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	Alert(c, http.StatusNotFound, msg)
}

// Conflict sends 409.
func Conflict(c *gin.Context, msg string) {
	Alert(c, http.StatusConflict, msg)
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, msg string) {
	Alert(c, http.StatusServiceUnavailable, msg)
}

// Internal sends 500.
func Internal(c *gin.Context, msg string) {
	Alert(c, http.StatusInternalServerError, msg)
}

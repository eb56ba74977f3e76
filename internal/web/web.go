// Package web holds the embedded HTML templates and the page rendering helper.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civic-events/backend/internal/middleware"
	"github.com/civic-events/backend/internal/models"
	"github.com/civic-events/backend/pkg/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"countLabel": models.CountLabel,
		"thumb":      Thumb,
		"date":       formatDate,
		"datePtr":    formatDatePtr,
		"fieldError": func(errs validation.Errors, field string) string { return errs[field] },
	}
}

// Templates parses all embedded templates. Names are the file basenames.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html"))
}

// Install registers the templates on the router.
func Install(r *gin.Engine) {
	r.SetHTMLTemplate(Templates())
}

// Render executes a page template. The signed-in user and request path are
// always available as .CurrentUser and .Path.
func Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if claims, ok := middleware.CurrentUser(c); ok {
		data["CurrentUser"] = claims
	}
	data["Path"] = c.Request.URL.Path
	c.HTML(status, name, data)
}

// NotFound renders the 404 page.
func NotFound(c *gin.Context, msg string) {
	Render(c, http.StatusNotFound, "error.html", gin.H{"Title": "Not found", "Message": msg})
}

// Error renders the 500 page.
func Error(c *gin.Context) {
	Render(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Error", "Message": "Something went wrong."})
}

// Thumb returns the icon style for a vote the viewer has or has not cast.
func Thumb(voted bool) string {
	if voted {
		return "fa-solid"
	}
	return "fa-regular"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(validation.DateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

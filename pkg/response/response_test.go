package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(htmx bool, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/", handler)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRedirectPlain(t *testing.T) {
	w := serve(false, func(c *gin.Context) { Redirect(c, "/accounts/login/") })

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts/login/", w.Header().Get("Location"))
}

func TestRedirectHTMX(t *testing.T) {
	w := serve(true, func(c *gin.Context) { Redirect(c, "/accounts/login/") })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/accounts/login/", w.Header().Get("HX-Redirect"))
	assert.Empty(t, w.Header().Get("Location"))
}

func TestAlertEscapes(t *testing.T) {
	w := serve(false, func(c *gin.Context) { NotFound(c, "<script>x</script>") })

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
	assert.NotContains(t, w.Body.String(), "<script>")
}

func TestOK(t *testing.T) {
	w := serve(false, func(c *gin.Context) { OK(c, gin.H{"status": "ok"}) })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"status":"ok"}}`, w.Body.String())
}

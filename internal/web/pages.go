package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ConstructionNotice is shown on the home page.
const ConstructionNotice = "Please excuse our mess. This site is still under construction."

// About handles GET /about/.
func About(c *gin.Context) {
	Render(c, http.StatusOK, "about.html", gin.H{"Title": "About"})
}

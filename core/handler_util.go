package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// renderUnavailable shows the "cannot connect" page. Driver errors are logged, never rendered.
func renderUnavailable(c *gin.Context) {
	c.HTML(http.StatusServiceUnavailable, "unavailable.tmpl", gin.H{
		"title":   "Cannot connect",
		"message": "Cannot connect to the database right now. Please try again later.",
	})
}

func notFound(c *gin.Context) {
	c.Data(http.StatusNotFound, "text/plain; charset=utf-8", []byte("Not Found"))
}

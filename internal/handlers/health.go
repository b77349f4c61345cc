package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ConnectionCounter reports live connection totals for the health endpoint.
type ConnectionCounter interface {
	ConnectionCount() int
	OnlineCount() int
}

// Health returns process status and live connection counts.
func Health(counter ConnectionCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": counter.ConnectionCount(),
			"online":      counter.OnlineCount(),
		})
	}
}

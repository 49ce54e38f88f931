package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Health(c *gin.Context) {
	snap := h.registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"time":           time.Now().Unix(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"domains":        len(snap.Domains()),
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leozw/leadboard/internal/api/middleware"
)

// Theme serves the resolved tenant's branding so the frontend can paint
// itself before any data arrives.
func (h *Handler) Theme(c *gin.Context) {
	cfg, ok := middleware.ConfigFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal", "message": "tenant not resolved"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"client_name":     cfg.ClientName,
		"domain":          cfg.Domain,
		"theme":           cfg.Theme,
		"resolution_mode": middleware.ModeFrom(c),
	})
}

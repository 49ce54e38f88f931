package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/analytics"
	"github.com/leozw/leadboard/internal/api/middleware"
	"github.com/leozw/leadboard/internal/fetcher"
)

// dataset resolves the tenant and filters from the request and builds or
// fetches the cached dataset. A fetch failure is reported in the response
// body with status 200, keeping the dashboard shell rendered.
func (h *Handler) dataset(c *gin.Context) (*analytics.Dataset, bool) {
	cfg, ok := middleware.ConfigFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal", "message": "tenant not resolved"},
		})
		return nil, false
	}

	var filters analytics.Filters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "bad_request", "message": err.Error()},
		})
		return nil, false
	}

	ds, err := h.service.Dataset(c.Request.Context(), cfg, filters)
	if err != nil {
		h.logger.Warn("dataset unavailable",
			zap.String("domain", cfg.Domain),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"error": fetchErrorBody(err)})
		return nil, false
	}
	return ds, true
}

func fetchErrorBody(err error) gin.H {
	code := "source_error"
	switch {
	case errors.Is(err, fetcher.ErrSourceEmpty):
		code = "source_empty"
	case errors.Is(err, fetcher.ErrSourceMalformed):
		code = "source_malformed"
	case errors.Is(err, fetcher.ErrSourceUnreachable):
		code = "source_unreachable"
	}
	return gin.H{"code": code, "message": err.Error()}
}

func (h *Handler) Overview(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": ds.Overview, "filters_active": ds.FiltersActive})
}

func (h *Handler) TimeSeries(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"time_series": ds.TimeSeries})
}

func (h *Handler) Channels(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel_breakdown": ds.ChannelBreakdown})
}

func (h *Handler) Hours(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"hourly_histogram": ds.HourlyHistogram})
}

func (h *Handler) TopCities(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"top_cities": ds.TopCities})
}

func (h *Handler) TopProviders(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"top_providers": ds.TopProviders})
}

func (h *Handler) Leads(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": ds.Leads, "total": len(ds.Leads)})
}

// ExportCSV streams the filtered lead list as a CSV attachment.
func (h *Handler) ExportCSV(c *gin.Context) {
	ds, ok := h.dataset(c)
	if !ok {
		return
	}

	data, err := analytics.CSV(ds.Leads)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "internal", "message": err.Error()},
		})
		return
	}

	filename := fmt.Sprintf("leads-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

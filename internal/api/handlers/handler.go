package handlers

import (
	"time"

	"go.uber.org/zap"

	"github.com/leozw/leadboard/internal/dashboard"
	"github.com/leozw/leadboard/internal/registry"
)

type Handler struct {
	service  *dashboard.Service
	registry *registry.Registry
	logger   *zap.Logger
	started  time.Time
}

func NewHandler(service *dashboard.Service, reg *registry.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		registry: reg,
		logger:   logger,
		started:  time.Now(),
	}
}

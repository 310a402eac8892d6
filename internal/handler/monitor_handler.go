package handler

import (
	"net/http"

	"Chatline/internal/model"

	"github.com/gin-gonic/gin"
)

// StatsProvider is satisfied by hub.MonitorService.
type StatsProvider interface {
	GetStats() model.MonitorResponse
}

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetHubStats(c *gin.Context)
}

type monitorHandler struct {
	monitorService StatsProvider
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService StatsProvider) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
	}
}

// GetHubStats returns current hub statistics
// @Summary Get WebSocket hub statistics
// @Description Returns connected clients, session states and group rooms
// @Tags Monitor
// @Produce json
// @Success 200 {object} model.MonitorResponse
// @Router /chat/api/monitor/stats [get]
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	respond(c, http.StatusOK, h.monitorService.GetStats(), "Hub statistics retrieved successfully")
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// Pinger is any dependency that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	hub     *websocket.Hub
	checks  map[string]Pinger
	version string
}

func NewHealthHandler(hub *websocket.Hub, version string) *HealthHandler {
	return &HealthHandler{
		hub:     hub,
		checks:  make(map[string]Pinger),
		version: version,
	}
}

// AddCheck registers a named dependency. Call before serving.
func (h *HealthHandler) AddCheck(name string, p Pinger) {
	h.checks[name] = p
}

type healthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Checks  map[string]string  `json:"checks,omitempty"`
	Hub     websocket.HubStats `json:"hub"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Version: h.version,
		Checks:  make(map[string]string, len(h.checks)),
		Hub:     h.hub.Stats(),
	}
	status := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	if status != http.StatusOK {
		c.JSON(status, utils.APIResponse{
			Status:    utils.StatusError,
			Message:   "Service degraded",
			Data:      resp,
			Timestamp: time.Now(),
		})
		return
	}
	utils.SuccessResponse(c, "Service healthy", resp)
}

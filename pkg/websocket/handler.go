package websocket

import (
	"net/http"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type HandlerConfig struct {
	LinkSecret      string
	EnforceLinks    bool
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	AllowedOrigins  []string
}

type Handler struct {
	hub      *Hub
	cfg      HandlerConfig
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewHandler(hub *Hub, cfg HandlerConfig, log *logger.Logger) *Handler {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 1024
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = 1024
	}
	return &Handler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger: log.WithComponent("websocket"),
	}
}

// HandleWebSocket upgrades GET /ws?role=&access=. access is an optional
// signed tracking link; when links are enforced drivers and passengers
// must present one.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if role != "" && !role.IsValid() {
		utils.BadRequestResponse(c, "Unknown role")
		return
	}

	var claims *utils.LinkClaims
	if access := c.Query("access"); access != "" {
		if h.cfg.LinkSecret == "" {
			utils.UnauthorizedResponse(c)
			return
		}
		parsed, err := utils.ValidateLinkToken(access, h.cfg.LinkSecret)
		if err != nil {
			h.logger.LogSecurityEvent("invalid_tracking_link", "medium", map[string]interface{}{
				"remote_addr": c.ClientIP(),
				"error":       err.Error(),
			})
			utils.UnauthorizedResponse(c)
			return
		}
		claims = parsed
		if role == "" {
			role = models.Role(claims.Role)
		}
	}

	if h.cfg.EnforceLinks && claims == nil && (role == models.RoleDriver || role == models.RolePassenger) {
		utils.UnauthorizedResponse(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, role, claims, h.cfg.EnforceLinks, h.cfg.SendBuffer, h.logger)
	go client.Serve()
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

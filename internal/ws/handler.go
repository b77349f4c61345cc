package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-hub/internal/observability"
)

// Handler upgrades HTTP requests to websocket connections and hands them to
// the hub. Authentication happens on the socket itself via a join/auth
// event, so the upgrade is open to anyone.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers it, and starts its pumps.
func (h *Handler) Handle(c *gin.Context) {
	_, span := otel.Tracer("chat-hub/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, observability.IPFromRequest(c.Request))
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

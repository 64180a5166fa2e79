// Package handlers exposes the HTTP surface: WebSocket upgrade plus
// health/readiness probes. Everything past the upgrade is EventBus's
// concern; this package never touches room or game state.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/emmanuelzz0/queezy/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to configured origins before production rollout
	},
}

type WebSocketHandler struct {
	bus *eventbus.Bus
}

func NewWebSocketHandler(bus *eventbus.Bus) *WebSocketHandler {
	return &WebSocketHandler{bus: bus}
}

// HandleWebSocket upgrades the request and registers the resulting
// socket with the Bus. deviceId/type travel in the query string but
// role tagging itself only happens once the socket's first
// room:create/room:join succeeds — this handler doesn't need to read
// them.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	h.bus.Accept(conn)
}

// Health reports process liveness unconditionally.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the process has finished wiring its
// dependencies. cmd/server flips readiness once Redis/Postgres/RabbitMQ
// connections succeed at startup.
func Ready(isReady func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isReady() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

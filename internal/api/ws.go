package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/events/bus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler mirrors a session's event stream over WebSocket by bridging
// the event bus subject for that session.
type WSHandler struct {
	bus    bus.EventBus
	logger *logger.Logger
}

// NewWSHandler creates a WebSocket mirror handler. bus may be nil when no
// event bus is configured; the endpoint then reports unavailability.
func NewWSHandler(eventBus bus.EventBus, log *logger.Logger) *WSHandler {
	return &WSHandler{
		bus:    eventBus,
		logger: log.WithFields(zap.String("component", "ws_handler")),
	}
}

// StreamSession handles WebSocket connections mirroring one session
// WS /api/v1/sessions/:sessionId/events
func (h *WSHandler) StreamSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":    "SERVICE_UNAVAILABLE",
				"message": "event streaming is not configured",
			},
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}

	log := h.logger.WithSessionID(sessionID)
	log.Info("WebSocket mirror established")

	send := make(chan *bus.Event, 64)
	subject := "agentd.sessions." + sessionID + ".events"
	sub, err := h.bus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
		select {
		case send <- event:
		default:
			log.Warn("mirror client too slow, dropping event")
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to subscribe to event subject", zap.Error(err))
		conn.Close()
		return
	}

	done := make(chan struct{})

	// Read pump detects client disconnects; inbound frames are ignored.
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn("WebSocket read error", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.Unsubscribe()
		conn.Close()
		log.Info("WebSocket mirror closed")
	}()

	for {
		select {
		case event := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				log.Warn("WebSocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

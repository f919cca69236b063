package api

import (
	"github.com/gin-gonic/gin"

	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/events/bus"
	"github.com/agentd/agentd/internal/session"
)

// SetupRoutes configures the session API routes
// router should be the /api/v1 group
func SetupRoutes(
	router *gin.RouterGroup,
	svc *session.Service,
	eventBus bus.EventBus,
	log *logger.Logger,
) {
	handler := NewHandler(svc, log)
	ws := NewWSHandler(eventBus, log)

	sessions := router.Group("/sessions")
	{
		sessions.POST("", handler.CreateSession)
		sessions.GET("", handler.ListSessions)
		sessions.GET("/:sessionId", handler.GetSession)
		sessions.DELETE("/:sessionId", handler.DeleteSession)

		// Turn protocol endpoints; responses stream as SSE
		sessions.POST("/:sessionId/messages", handler.SendMessage)
		sessions.POST("/:sessionId/decisions", handler.SubmitDecisions)

		// Read-only event mirror over WebSocket
		sessions.GET("/:sessionId/events", ws.StreamSession)
	}

	router.GET("/models", handler.ListModels)
}

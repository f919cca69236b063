package api

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agentd/agentd/internal/common/errors"
	"github.com/agentd/agentd/internal/common/logger"
	"github.com/agentd/agentd/internal/model"
	"github.com/agentd/agentd/internal/session"
	v1 "github.com/agentd/agentd/pkg/api/v1"
)

// Handler contains HTTP handlers for the session API
type Handler struct {
	service *session.Service
	logger  *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc *session.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  log.WithFields(zap.String("component", "session-api")),
	}
}

// CreateSession creates a new session
// POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	sess, err := h.service.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		Model:        req.Model,
		Capabilities: req.Capabilities,
		HITL:         req.HITL,
		Sandboxed:    req.Sandboxed,
	})
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sess.View())
}

// ListSessions returns all live sessions
// GET /api/v1/sessions
func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.service.ListSessions()

	views := make([]v1.Session, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sess.View())
	}

	c.JSON(http.StatusOK, SessionsListResponse{
		Sessions: views,
		Total:    len(views),
	})
}

// GetSession returns one session with its transcript and pending state
// GET /api/v1/sessions/:sessionId
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.service.GetSession(c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := SessionResponse{
		Session:    sess.View(),
		Transcript: sess.Transcript(),
	}
	if pending := sess.Pending(); pending != nil {
		resp.Pending = pending.Requests
		resp.Reviews = pending.Reviews
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteSession removes a session and tears down its backend
// DELETE /api/v1/sessions/:sessionId
func (h *Handler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if err := h.service.DeleteSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

// SendMessage runs one turn and streams its events as SSE
// POST /api/v1/sessions/:sessionId/messages
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	sessionID := c.Param("sessionId")
	err := h.service.SendMessage(c.Request.Context(), sessionID, req.Content, h.sseSender(c))
	if err != nil {
		h.logger.Warn("message rejected",
			zap.String("session_id", sessionID),
			zap.Error(err))
		respondError(c, err)
	}
}

// SubmitDecisions resumes an interrupted turn and streams its events as SSE
// POST /api/v1/sessions/:sessionId/decisions
func (h *Handler) SubmitDecisions(c *gin.Context) {
	var req DecisionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	sessionID := c.Param("sessionId")
	err := h.service.SubmitDecisions(c.Request.Context(), sessionID, req.Decisions, h.sseSender(c))
	if err != nil {
		h.logger.Warn("decisions rejected",
			zap.String("session_id", sessionID),
			zap.Error(err))
		respondError(c, err)
	}
}

// ListModels returns the model catalog
// GET /api/v1/models
func (h *Handler) ListModels(c *gin.Context) {
	catalog := h.service.Models()

	models := make([]ModelResponse, 0, len(catalog))
	for _, info := range catalog {
		models = append(models, ModelResponse{
			Alias:       info.Alias,
			ProviderID:  info.ProviderID,
			DisplayName: info.DisplayName,
			Default:     info.Alias == model.DefaultAlias,
		})
	}

	c.JSON(http.StatusOK, ModelsListResponse{
		Models: models,
		Total:  len(models),
	})
}

// HealthCheck returns health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// sseSender returns an event sink writing SSE frames. Headers are written
// lazily so a rejected request can still respond with a JSON error.
func (h *Handler) sseSender(c *gin.Context) func(v1.Event) {
	started := false
	return func(ev v1.Event) {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}
		c.SSEvent(string(ev.EventType()), ev)
		c.Writer.Flush()
	}
}

func respondError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.InternalError("internal server error", err)
	}
	c.JSON(appErr.HTTPStatus, appErr)
}

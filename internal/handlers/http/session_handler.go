package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
	"collabstream/internal/infrastructure/middleware"
	apperrors "collabstream/pkg/errors"
)

type SessionHandler struct {
	service ports.CollabService
}

func NewSessionHandler(service ports.CollabService) *SessionHandler {
	return &SessionHandler{
		service: service,
	}
}

// SetupRoutes registers the session API. Mutating routes run behind requireAuth.
func (h *SessionHandler) SetupRoutes(router *gin.Engine, requireAuth gin.HandlerFunc) {
	api := router.Group("/api/v1/sessions")
	{
		api.GET("", h.ListSessions)
		api.GET("/:id", h.GetSession)
		api.GET("/:id/live", h.LiveInfo)

		api.POST("", requireAuth, h.CreateSession)
		api.POST("/:id/match", requireAuth, h.MatchSession)
		api.POST("/:id/refresh", requireAuth, h.RefreshSession)
		api.DELETE("/:id", requireAuth, h.DeleteSession)
	}
}

type CreateSessionRequest struct {
	StreamURL   string `json:"stream_url" binding:"required,max=2048"`
	Description string `json:"description"`
	// MaxPartners defaults to 1 when omitted.
	MaxPartners *int `json:"max_partners"`
}

type MatchRequest struct {
	StreamURL   string `json:"stream_url" binding:"required,max=2048"`
	Description string `json:"description"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	maxPartners := domain.MinPartners
	if req.MaxPartners != nil {
		maxPartners = *req.MaxPartners
	}

	session, err := h.service.CreateSession(c.Request.Context(), ports.CreateSessionInput{
		Creator:     user,
		StreamURL:   strings.TrimSpace(req.StreamURL),
		Description: req.Description,
		MaxPartners: maxPartners,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

// ListSessions accepts a comma separated status filter, for example ?status=open,setting_up.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	var statuses []domain.SessionStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.SessionStatus(s))
			}
		}
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), statuses...)
	if err != nil {
		c.Error(err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *SessionHandler) MatchSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	session, err := h.service.MatchSession(c.Request.Context(), ports.MatchInput{
		SessionID:   domain.SessionID(c.Param("id")),
		User:        user,
		StreamURL:   strings.TrimSpace(req.StreamURL),
		Description: req.Description,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) RefreshSession(c *gin.Context) {
	session, err := h.service.RefreshSession(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": session,
	})
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	if err := h.service.DeleteSession(c.Request.Context(), domain.SessionID(c.Param("id")), user); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// LiveInfo returns fresh per-slot stream info for display. Empty slots are null.
func (h *SessionHandler) LiveInfo(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))
	slots, err := h.service.LiveInfo(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"slots":      slots,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/romanzh1/course-player/internal/service"
	"github.com/romanzh1/course-player/internal/service/bridge"
	"github.com/romanzh1/course-player/internal/service/navigation"
	"go.uber.org/zap"
)

const userIDHeader = "X-User-ID"

type Service interface {
	OpenSession(ctx context.Context, p service.OpenParams) (navigation.Snapshot, error)
	Snapshot(sessionID string, userID int64) (navigation.Snapshot, error)
	PushEvent(ctx context.Context, sessionID string, userID int64, msg bridge.Message) (bool, error)
	Navigate(ctx context.Context, sessionID string, userID, moduleID, chapterID int64) (navigation.Snapshot, error)
	CommitNavigation(ctx context.Context, sessionID string, userID int64) (navigation.Snapshot, error)
	Confirm(sessionID string, userID int64, accept bool) error
	CloseSession(sessionID string, userID int64) error

	ConfirmFromChat(sessionID string, chatID int64, accept bool) error
	ChatSessions(chatID int64) []navigation.Snapshot
}

type HTTPHandler struct {
	service Service
}

func NewHTTPHandler(service Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// NewRouter wires the player API. allowOrigins is the CORS allow list for the
// host page.
func NewRouter(h *HTTPHandler, allowOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", userIDHeader},
		AllowCredentials: true,
	}))

	router.GET("/healthz", HealthCheck)

	api := router.Group("/api")
	api.Use(requireUser())
	{
		api.POST("/courses/:course_id/sessions", h.OpenSession)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.CloseSession)
		api.POST("/sessions/:id/events", h.PushEvent)
		api.POST("/sessions/:id/navigate", h.Navigate)
		api.POST("/sessions/:id/navigate/commit", h.CommitNavigation)
		api.POST("/sessions/:id/confirm", h.Confirm)
	}

	return router
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type openSessionRequest struct {
	TelegramChatID int64 `json:"telegram_chat_id"`
}

func (h *HTTPHandler) OpenSession(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("course_id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	var req openSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	snap, err := h.service.OpenSession(c.Request.Context(), service.OpenParams{
		UserID:         userID(c),
		CourseID:       courseID,
		Query:          c.Request.URL.Query(),
		TelegramChatID: req.TelegramChatID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snap)
}

func (h *HTTPHandler) GetSession(c *gin.Context) {
	snap, err := h.service.Snapshot(c.Param("id"), userID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, snap)
}

func (h *HTTPHandler) CloseSession(c *gin.Context) {
	if err := h.service.CloseSession(c.Param("id"), userID(c)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PushEvent relays a content-surface message. The host page forwards the
// message body; the origin is the Origin header unless the body names the
// origin the message came from. The forwarding page is trusted to copy that
// origin from the browser event unchanged.
func (h *HTTPHandler) PushEvent(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	origin := c.GetHeader("Origin")
	var envelope struct {
		Origin string `json:"origin"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Origin != "" {
		origin = envelope.Origin
	}

	delivered, err := h.service.PushEvent(c.Request.Context(), c.Param("id"), userID(c), bridge.Message{Origin: origin, Data: raw})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"delivered": delivered})
}

type navigateRequest struct {
	ModuleID  int64 `json:"module_id" binding:"required"`
	ChapterID int64 `json:"chapter_id" binding:"required"`
}

func (h *HTTPHandler) Navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	snap, err := h.service.Navigate(c.Request.Context(), c.Param("id"), userID(c), req.ModuleID, req.ChapterID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, snap)
}

func (h *HTTPHandler) CommitNavigation(c *gin.Context) {
	snap, err := h.service.CommitNavigation(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, snap)
}

type confirmRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

func (h *HTTPHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.service.Confirm(c.Param("id"), userID(c), *req.Accept); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requireUser trusts the user id set by the auth proxy in front of the player.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(userIDHeader)), 10, 64)
		if err != nil || id <= 0 {
			RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing or invalid "+userIDHeader))
			c.Abort()
			return
		}
		c.Set(userIDHeader, id)
		c.Next()
	}
}

func userID(c *gin.Context) int64 {
	return c.GetInt64(userIDHeader)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zap.L().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/trendyard/internal/models"
	"github.com/zulandar/trendyard/internal/session"
	"go.uber.org/zap"
)

type handlers struct {
	sessions         Sessions
	defaultPlatforms []string
	defaultMode      models.Mode
	log              *zap.Logger
}

func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", h.health)
	router.POST("/generate", h.generate)
	router.POST("/approve", h.approve)

	sessions := router.Group("/sessions/:id")
	sessions.GET("", h.getSession)
	sessions.POST("/reset", h.resetSession)
	sessions.GET("/approval", h.getApproval)
}

type generateRequest struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
	SessionID string   `json:"session_id"`
	Persona   string   `json:"persona"`
	Mode      string   `json:"mode"`
}

type approveRequest struct {
	SessionID  string `json:"session_id"`
	Action     string `json:"action"`
	Refinement string `json:"refinement"`
}

type resetRequest struct {
	Query string `json:"query"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Platforms) == 0 {
		req.Platforms = h.defaultPlatforms
	}
	mode := models.Mode(req.Mode)
	if mode == "" {
		mode = h.defaultMode
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	c.Header("X-Session-ID", req.SessionID)

	s := &stream{c: c}
	err := h.sessions.StartRun(c.Request.Context(), session.StartRequest{
		SessionID: req.SessionID,
		Query:     req.Query,
		Platforms: req.Platforms,
		Persona:   models.Persona(req.Persona),
		Mode:      mode,
	}, s.send)
	s.finish(err)
}

func (h *handlers) approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	action, err := session.ParseAction(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}

	s := &stream{c: c}
	err = h.sessions.Decide(c.Request.Context(), session.DecideRequest{
		SessionID: req.SessionID,
		Action:    action,
		Text:      req.Refinement,
	}, s.send)
	s.finish(err)
}

func (h *handlers) getSession(c *gin.Context) {
	sess, msgs, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "messages": msgs})
}

func (h *handlers) resetSession(c *gin.Context) {
	var req resetRequest
	// The body is optional.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	sess, err := h.sessions.Reset(c.Request.Context(), c.Param("id"), req.Query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handlers) getApproval(c *gin.Context) {
	rec, err := h.sessions.PendingApproval(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

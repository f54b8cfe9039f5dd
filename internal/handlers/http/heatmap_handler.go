package http

import (
	"net/http"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/internal/infrastructure/hub"
	"campuspulse/internal/infrastructure/stream"
	"campuspulse/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HeatmapHandler struct {
	engine   ports.AggregationService
	streams  *stream.Manager
	hub      *hub.Hub
	defaults domain.AggregationConfig
	logger   *zap.SugaredLogger
}

func NewHeatmapHandler(
	engine ports.AggregationService,
	streams *stream.Manager,
	h *hub.Hub,
	defaults domain.AggregationConfig,
	logger *zap.SugaredLogger,
) *HeatmapHandler {
	return &HeatmapHandler{
		engine:   engine,
		streams:  streams,
		hub:      h,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *HeatmapHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/heatmap", h.GetHeatmap)
	api.GET("/streams/heatmap", h.StreamHeatmap)
	api.GET("/streams/issues", h.StreamIssues)
	api.GET("/realtime/stats", h.RealtimeStats)
}

// GetHeatmap computes one heatmap frame synchronously.
func (h *HeatmapHandler) GetHeatmap(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if filter.OrganizationID == "" {
		c.Error(errors.NewInvalidInputError("organizationId is required"))
		return
	}

	cfg, err := configFromQuery(c, h.defaults)
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	frame, err := h.engine.AggregateFiltered(c.Request.Context(), filter, cfg)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeInternal, "aggregation failed", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, frame)
}

// ginFrameSender adapts the gin SSE writer to the session manager.
type ginFrameSender struct {
	c *gin.Context
}

func (s ginFrameSender) Send(frame stream.Frame) error {
	s.c.SSEvent(frame.Event, frame.Data)
	s.c.Writer.Flush()
	if s.c.Writer.Status() >= http.StatusBadRequest {
		return errors.NewInternalError("sse write failed")
	}
	return nil
}

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// StreamHeatmap runs a long-lived heatmap SSE session until the client
// disconnects.
func (h *HeatmapHandler) StreamHeatmap(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.OrganizationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizationId is required"})
		return
	}

	cfg, err := configFromQuery(c, h.defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval, err := intervalFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sseHeaders(c)

	session := h.streams.OpenHeatmapSession(filter, cfg, interval)
	if err := session.Run(c.Request.Context(), ginFrameSender{c: c}); err != nil {
		h.logger.Debugw("heatmap stream ended", "session_id", session.ID(), "reason", err)
	}
}

// StreamIssues runs a long-lived issue-list SSE session.
func (h *HeatmapHandler) StreamIssues(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.OrganizationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizationId is required"})
		return
	}

	interval, err := intervalFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sseHeaders(c)

	session := h.streams.OpenIssueSession(filter, interval)
	if err := session.Run(c.Request.Context(), ginFrameSender{c: c}); err != nil {
		h.logger.Debugw("issue stream ended", "session_id", session.ID(), "reason", err)
	}
}

// RealtimeStats reports current room membership and live session counts.
func (h *HeatmapHandler) RealtimeStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"hub":      h.hub.Stats(),
		"sessions": h.streams.Stats(),
	})
}

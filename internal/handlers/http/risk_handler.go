package http

import (
	"net/http"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/pkg/errors"

	"github.com/gin-gonic/gin"
)

// RiskHandler proxies the external building risk score.
type RiskHandler struct {
	scorer ports.RiskScorer
}

func NewRiskHandler(scorer ports.RiskScorer) *RiskHandler {
	return &RiskHandler{scorer: scorer}
}

func (h *RiskHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/buildings/:id/risk", h.BuildingRisk)
}

func (h *RiskHandler) BuildingRisk(c *gin.Context) {
	if h.scorer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk scoring is disabled"})
		return
	}

	building := domain.BuildingID(c.Param("id"))
	org := domain.OrganizationID(c.Query("organizationId"))
	if org == "" {
		if v, ok := c.Get("organization_id"); ok {
			if id, ok := v.(domain.OrganizationID); ok {
				org = id
			}
		}
	}
	if org == "" {
		c.Error(errors.NewInvalidInputError("organizationId is required"))
		return
	}

	score, err := h.scorer.BuildingRisk(c.Request.Context(), org, building)
	if err != nil {
		c.Error(errors.WrapError(err, errors.ErrCodeServiceUnavailable, "risk service unavailable", http.StatusServiceUnavailable))
		return
	}

	c.JSON(http.StatusOK, gin.H{"risk": score})
}

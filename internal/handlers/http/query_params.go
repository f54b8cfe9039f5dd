package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"campuspulse/internal/core/domain"

	"github.com/gin-gonic/gin"
)

// filterFromQuery builds an issue filter from query parameters shared by the
// list, heatmap and streaming endpoints.
func filterFromQuery(c *gin.Context) (*domain.IssueFilter, error) {
	filter := &domain.IssueFilter{
		OrganizationID: domain.OrganizationID(c.Query("organizationId")),
		CampusID:       domain.CampusID(c.Query("campusId")),
	}

	for _, id := range splitList(c.Query("buildingIds")) {
		filter.BuildingIDs = append(filter.BuildingIDs, domain.BuildingID(id))
	}
	if id := c.Query("buildingId"); id != "" {
		filter.BuildingIDs = append(filter.BuildingIDs, domain.BuildingID(id))
	}
	for _, cat := range splitList(c.Query("categories")) {
		filter.Categories = append(filter.Categories, domain.IssueCategory(cat))
	}
	for _, p := range splitList(c.Query("priorities")) {
		filter.Priorities = append(filter.Priorities, domain.IssuePriority(p))
	}
	for _, s := range splitList(c.Query("statuses")) {
		filter.Statuses = append(filter.Statuses, domain.IssueStatus(s))
	}

	if v := c.Query("createdAfter"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid createdAfter: %v", err)
		}
		filter.CreatedAfter = &t
	}
	if v := c.Query("createdBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid createdBefore: %v", err)
		}
		filter.CreatedBefore = &t
	}

	return filter, nil
}

// configFromQuery overlays caller-supplied aggregation parameters onto the
// server defaults. Malformed values are rejected, never clamped.
func configFromQuery(c *gin.Context, defaults domain.AggregationConfig) (domain.AggregationConfig, error) {
	cfg := defaults

	if v := c.Query("gridSizeMeters"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid gridSizeMeters: %v", err)
		}
		cfg.GridSizeMeters = f
	}
	if v := c.Query("severityWeightMultiplier"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid severityWeightMultiplier: %v", err)
		}
		cfg.SeverityMultiplier = f
	}
	if v := c.Query("timeDecayFactor"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid timeDecayFactor: %v", err)
		}
		cfg.TimeDecayFactor = f
	}
	if v := c.Query("maxAgeHours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid maxAgeHours: %v", err)
		}
		cfg.MaxAge = time.Duration(hours * float64(time.Hour))
	}
	if v := c.Query("normalizeWeights"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid normalizeWeights: %v", err)
		}
		cfg.NormalizeWeights = b
	}
	if v := c.Query("clusterRadius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid clusterRadius: %v", err)
		}
		cfg.ClusterRadius = f
	}
	if v := c.Query("minClusterSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid minClusterSize: %v", err)
		}
		cfg.MinClusterSize = n
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// intervalFromQuery reads updateIntervalMs; zero means "use the default".
func intervalFromQuery(c *gin.Context) (time.Duration, error) {
	v := c.Query("updateIntervalMs")
	if v == "" {
		return 0, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid updateIntervalMs: %s", v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

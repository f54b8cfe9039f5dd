package domain

import (
	"fmt"
	"time"
)

// HeatmapPoint is one grid-cell centroid of the computed intensity surface.
// Points are recomputed on every aggregation call and carry no identity
// across frames.
type HeatmapPoint struct {
	Lat           float64         `json:"lat"`
	Lng           float64         `json:"lng"`
	Weight        float64         `json:"weight"`
	IssueCount    int             `json:"issue_count"`
	AvgSeverity   float64         `json:"avg_severity"`
	CriticalCount int             `json:"critical_count"`
	HighCount     int             `json:"high_count"`
	MediumCount   int             `json:"medium_count"`
	LowCount      int             `json:"low_count"`
	OldestIssue   time.Time       `json:"oldest_issue"`
	NewestIssue   time.Time       `json:"newest_issue"`
	Categories    []IssueCategory `json:"categories"`
}

// GeoBounds is the bounding box of all points in a frame.
type GeoBounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// HeatmapMetadata describes a computed frame.
type HeatmapMetadata struct {
	TotalIssues int       `json:"total_issues"`
	Bounds      GeoBounds `json:"bounds"`
	GeneratedAt time.Time `json:"generated_at"`
}

// HeatmapFrame is one complete aggregation result.
type HeatmapFrame struct {
	Points   []HeatmapPoint  `json:"points"`
	Metadata HeatmapMetadata `json:"metadata"`
}

// AggregationConfig controls a single aggregation call. Immutable per call.
type AggregationConfig struct {
	GridSizeMeters     float64       `json:"grid_size_meters"`
	SeverityMultiplier float64       `json:"severity_multiplier"`
	TimeDecayFactor    float64       `json:"time_decay_factor"`
	MaxAge             time.Duration `json:"max_age"`
	NormalizeWeights   bool          `json:"normalize_weights"`
	ClusterRadius      float64       `json:"cluster_radius"`
	MinClusterSize     int           `json:"min_cluster_size"`
}

// DefaultAggregationConfig returns the configuration used when a caller
// supplies no overrides.
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		GridSizeMeters:     50,
		SeverityMultiplier: 2.0,
		TimeDecayFactor:    0.5,
		MaxAge:             0,
		NormalizeWeights:   true,
	}
}

// Validate rejects malformed configurations before any computation runs.
func (c AggregationConfig) Validate() error {
	if c.GridSizeMeters <= 0 {
		return fmt.Errorf("grid_size_meters must be > 0, got %f", c.GridSizeMeters)
	}
	if c.SeverityMultiplier < 0 {
		return fmt.Errorf("severity_multiplier must be >= 0, got %f", c.SeverityMultiplier)
	}
	if c.TimeDecayFactor < 0 {
		return fmt.Errorf("time_decay_factor must be >= 0, got %f", c.TimeDecayFactor)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age must be >= 0, got %s", c.MaxAge)
	}
	if c.ClusterRadius < 0 {
		return fmt.Errorf("cluster_radius must be >= 0, got %f", c.ClusterRadius)
	}
	if c.MinClusterSize < 0 {
		return fmt.Errorf("min_cluster_size must be >= 0, got %d", c.MinClusterSize)
	}
	return nil
}

// Signature returns a stable cache-key component for the config.
func (c AggregationConfig) Signature() string {
	return fmt.Sprintf("g%.2f:s%.3f:d%.3f:a%d:n%t:c%.2f:m%d",
		c.GridSizeMeters, c.SeverityMultiplier, c.TimeDecayFactor,
		int64(c.MaxAge/time.Second), c.NormalizeWeights, c.ClusterRadius, c.MinClusterSize)
}

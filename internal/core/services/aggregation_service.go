package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/pkg/cache"
	"campuspulse/pkg/geo"

	"go.uber.org/zap"
)

// decayWindow is the fixed horizon used to normalize issue age before
// applying exponential decay. It is intentionally decoupled from the
// caller-supplied max-age filter, which is a hard cutoff applied beforehand.
const decayWindow = 90 * 24 * time.Hour

// priorityBoost scales the severity score per priority level.
var priorityBoost = map[domain.IssuePriority]float64{
	domain.PriorityCritical: 4.0,
	domain.PriorityHigh:     2.5,
	domain.PriorityMedium:   1.5,
	domain.PriorityLow:      1.0,
}

type aggregationMetrics interface {
	ObserveAggregation(duration time.Duration, points int)
}

// AggregationEngine computes heatmap frames from issue snapshots. The engine
// itself is stateless per call; the only state it owns is a read-through
// cache of computed frames keyed by (filter, config, data version).
type AggregationEngine struct {
	repo     ports.IssueRepository
	frames   *cache.Cache
	cacheTTL time.Duration
	metrics  aggregationMetrics
	logger   *zap.SugaredLogger

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewAggregationEngine creates an engine backed by the given issue store.
// metrics may be nil.
func NewAggregationEngine(repo ports.IssueRepository, cacheTTL time.Duration, metrics aggregationMetrics, logger *zap.SugaredLogger) *AggregationEngine {
	return &AggregationEngine{
		repo:     repo,
		frames:   cache.New(cacheTTL),
		cacheTTL: cacheTTL,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Close releases the frame cache.
func (e *AggregationEngine) Close() {
	e.frames.Stop()
}

type cellKey struct {
	x int64
	y int64
}

type cellAccumulator struct {
	issues []*domain.IssueRecord
	sumLat float64
	sumLng float64
}

// Aggregate converts a snapshot of issue records into a heatmap frame.
// Filtering by organization/building/date is the caller's responsibility;
// the engine only applies the config's hard max-age cutoff. The input is
// never mutated and the call is safe from concurrent goroutines.
func (e *AggregationEngine) Aggregate(issues []domain.IssueRecord, cfg domain.AggregationConfig) *domain.HeatmapFrame {
	started := e.now()
	now := started

	cells := make(map[cellKey]*cellAccumulator)
	considered := 0

	for i := range issues {
		issue := &issues[i]
		// Issues without a location never appear on the heatmap.
		if issue.Location == nil {
			continue
		}
		if cfg.MaxAge > 0 && now.Sub(issue.CreatedAt) > cfg.MaxAge {
			continue
		}
		considered++

		x, y := geo.CellIndex(issue.Location.Lat, issue.Location.Lng, cfg.GridSizeMeters)
		key := cellKey{x: x, y: y}
		acc, ok := cells[key]
		if !ok {
			acc = &cellAccumulator{}
			cells[key] = acc
		}
		acc.issues = append(acc.issues, issue)
		acc.sumLat += issue.Location.Lat
		acc.sumLng += issue.Location.Lng
	}

	points := make([]domain.HeatmapPoint, 0, len(cells))
	for _, acc := range cells {
		points = append(points, e.cellPoint(acc, cfg, now))
	}

	// Map iteration order is random; sort for deterministic output.
	sort.Slice(points, func(i, j int) bool {
		if points[i].Lat != points[j].Lat {
			return points[i].Lat < points[j].Lat
		}
		return points[i].Lng < points[j].Lng
	})

	if cfg.ClusterRadius > 0 {
		points = clusterPoints(points, cfg.ClusterRadius, cfg.MinClusterSize)
	}

	if cfg.NormalizeWeights {
		normalizeWeights(points)
	}

	frame := &domain.HeatmapFrame{
		Points: points,
		Metadata: domain.HeatmapMetadata{
			TotalIssues: considered,
			Bounds:      computeBounds(points),
			GeneratedAt: now,
		},
	}

	if e.metrics != nil {
		e.metrics.ObserveAggregation(e.now().Sub(started), len(points))
	}
	return frame
}

// cellPoint collapses one grid cell's issues into a weighted point.
func (e *AggregationEngine) cellPoint(acc *cellAccumulator, cfg domain.AggregationConfig, now time.Time) domain.HeatmapPoint {
	n := len(acc.issues)
	point := domain.HeatmapPoint{
		Lat:        acc.sumLat / float64(n),
		Lng:        acc.sumLng / float64(n),
		IssueCount: n,
	}

	var severitySum float64
	var severityWeightSum float64
	var decaySum float64
	categories := make(map[domain.IssueCategory]struct{})

	for i, issue := range acc.issues {
		severitySum += float64(issue.Severity)

		boost, ok := priorityBoost[issue.Priority]
		if !ok {
			boost = 1.0
		}
		severityWeightSum += float64(issue.Severity) / 10.0 * boost

		age := now.Sub(issue.CreatedAt)
		if age < 0 {
			age = 0
		}
		normalizedAge := math.Min(float64(age)/float64(decayWindow), 1.0)
		decaySum += math.Exp(-cfg.TimeDecayFactor * normalizedAge)

		switch issue.Priority {
		case domain.PriorityCritical:
			point.CriticalCount++
		case domain.PriorityHigh:
			point.HighCount++
		case domain.PriorityMedium:
			point.MediumCount++
		case domain.PriorityLow:
			point.LowCount++
		}

		categories[issue.Category] = struct{}{}

		if i == 0 || issue.CreatedAt.Before(point.OldestIssue) {
			point.OldestIssue = issue.CreatedAt
		}
		if i == 0 || issue.CreatedAt.After(point.NewestIssue) {
			point.NewestIssue = issue.CreatedAt
		}
	}

	point.AvgSeverity = severitySum / float64(n)

	rawWeight := float64(n)
	avgSeverityWeight := severityWeightSum / float64(n)
	weighted := rawWeight * (1 + avgSeverityWeight*cfg.SeverityMultiplier)
	avgDecay := decaySum / float64(n)
	point.Weight = weighted * avgDecay

	point.Categories = make([]domain.IssueCategory, 0, len(categories))
	for c := range categories {
		point.Categories = append(point.Categories, c)
	}
	sort.Slice(point.Categories, func(i, j int) bool {
		return point.Categories[i] < point.Categories[j]
	})

	return point
}

// clusterPoints repeatedly merges the closest pair of points within radius
// until no pair qualifies, then drops clusters below minSize.
func clusterPoints(points []domain.HeatmapPoint, radiusMeters float64, minSize int) []domain.HeatmapPoint {
	merged := make([]domain.HeatmapPoint, len(points))
	copy(merged, points)

	for len(merged) > 1 {
		bestI, bestJ := -1, -1
		bestDist := radiusMeters

		for i := 0; i < len(merged); i++ {
			for j := i + 1; j < len(merged); j++ {
				d := geo.HaversineMeters(merged[i].Lat, merged[i].Lng, merged[j].Lat, merged[j].Lng)
				if d < bestDist {
					bestDist = d
					bestI, bestJ = i, j
				}
			}
		}

		if bestI < 0 {
			break
		}

		merged[bestI] = mergePoints(merged[bestI], merged[bestJ])
		merged = append(merged[:bestJ], merged[bestJ+1:]...)
	}

	if minSize > 1 {
		kept := merged[:0]
		for _, p := range merged {
			if p.IssueCount >= minSize {
				kept = append(kept, p)
			}
		}
		merged = kept
	}

	return merged
}

func mergePoints(a, b domain.HeatmapPoint) domain.HeatmapPoint {
	totalWeight := a.Weight + b.Weight
	totalCount := a.IssueCount + b.IssueCount

	out := domain.HeatmapPoint{
		Weight:        totalWeight,
		IssueCount:    totalCount,
		CriticalCount: a.CriticalCount + b.CriticalCount,
		HighCount:     a.HighCount + b.HighCount,
		MediumCount:   a.MediumCount + b.MediumCount,
		LowCount:      a.LowCount + b.LowCount,
	}

	// Weighted centroid so the merged marker tracks the heavier cluster.
	if totalWeight > 0 {
		out.Lat = (a.Lat*a.Weight + b.Lat*b.Weight) / totalWeight
		out.Lng = (a.Lng*a.Weight + b.Lng*b.Weight) / totalWeight
	} else {
		out.Lat = (a.Lat + b.Lat) / 2
		out.Lng = (a.Lng + b.Lng) / 2
	}

	out.AvgSeverity = (a.AvgSeverity*float64(a.IssueCount) + b.AvgSeverity*float64(b.IssueCount)) / float64(totalCount)

	out.OldestIssue = a.OldestIssue
	if b.OldestIssue.Before(a.OldestIssue) {
		out.OldestIssue = b.OldestIssue
	}
	out.NewestIssue = a.NewestIssue
	if b.NewestIssue.After(a.NewestIssue) {
		out.NewestIssue = b.NewestIssue
	}

	seen := make(map[domain.IssueCategory]struct{})
	for _, c := range a.Categories {
		seen[c] = struct{}{}
	}
	for _, c := range b.Categories {
		seen[c] = struct{}{}
	}
	out.Categories = make([]domain.IssueCategory, 0, len(seen))
	for c := range seen {
		out.Categories = append(out.Categories, c)
	}
	sort.Slice(out.Categories, func(i, j int) bool {
		return out.Categories[i] < out.Categories[j]
	})

	return out
}

// normalizeWeights rescales weights linearly into [0,1]. When all weights
// are equal every point maps to 1, so a lone maximum is never flattened.
func normalizeWeights(points []domain.HeatmapPoint) {
	if len(points) == 0 {
		return
	}

	minW, maxW := points[0].Weight, points[0].Weight
	for _, p := range points[1:] {
		if p.Weight < minW {
			minW = p.Weight
		}
		if p.Weight > maxW {
			maxW = p.Weight
		}
	}

	if maxW == minW {
		for i := range points {
			points[i].Weight = 1.0
		}
		return
	}

	span := maxW - minW
	for i := range points {
		points[i].Weight = (points[i].Weight - minW) / span
	}
}

func computeBounds(points []domain.HeatmapPoint) domain.GeoBounds {
	if len(points) == 0 {
		return domain.GeoBounds{}
	}

	b := domain.GeoBounds{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLng: points[0].Lng, MaxLng: points[0].Lng,
	}
	for _, p := range points[1:] {
		if p.Lat < b.MinLat {
			b.MinLat = p.Lat
		}
		if p.Lat > b.MaxLat {
			b.MaxLat = p.Lat
		}
		if p.Lng < b.MinLng {
			b.MinLng = p.Lng
		}
		if p.Lng > b.MaxLng {
			b.MaxLng = p.Lng
		}
	}
	return b
}

// AggregateFiltered queries the issue store with the filter and aggregates
// the result, consulting the frame cache first. The cache key includes the
// store's data version, so any mutation naturally misses.
func (e *AggregationEngine) AggregateFiltered(ctx context.Context, filter *domain.IssueFilter, cfg domain.AggregationConfig) (*domain.HeatmapFrame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregation config: %w", err)
	}

	version, err := e.repo.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store version: %w", err)
	}

	key := fmt.Sprintf("frame:%s|%s|v%d", filter.Signature(), cfg.Signature(), version)
	value, err := e.frames.GetOrCompute(ctx, key, e.cacheTTL, func(ctx context.Context) (interface{}, error) {
		issues, err := e.repo.Query(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("issue query failed: %w", err)
		}

		snapshot := make([]domain.IssueRecord, len(issues))
		for i, issue := range issues {
			snapshot[i] = *issue
		}

		frame := e.Aggregate(snapshot, cfg)
		e.logger.Debugw("computed heatmap frame",
			"issues", frame.Metadata.TotalIssues,
			"points", len(frame.Points),
			"version", version,
		)
		return frame, nil
	})
	if err != nil {
		return nil, err
	}

	return value.(*domain.HeatmapFrame), nil
}

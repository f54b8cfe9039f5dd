package services

import (
	"context"
	"testing"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T) *AggregationEngine {
	t.Helper()
	engine := NewAggregationEngine(nil, time.Second, nil, zaptest.NewLogger(t).Sugar())
	t.Cleanup(engine.Close)
	return engine
}

func testIssue(id string, lat, lng float64, severity int, priority domain.IssuePriority, age time.Duration, now time.Time) domain.IssueRecord {
	return domain.IssueRecord{
		ID:             domain.IssueID(id),
		OrganizationID: "org-1",
		Title:          "test issue " + id,
		Location:       &domain.GeoPoint{Lat: lat, Lng: lng},
		Category:       domain.CategoryPlumbing,
		Severity:       severity,
		Priority:       priority,
		Status:         domain.StatusOpen,
		CreatedAt:      now.Add(-age),
		UpdatedAt:      now.Add(-age),
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestAggregate_EmptyInput(t *testing.T) {
	engine := newTestEngine(t)

	frame := engine.Aggregate(nil, domain.DefaultAggregationConfig())

	require.NotNil(t, frame)
	assert.Empty(t, frame.Points)
	assert.Equal(t, 0, frame.Metadata.TotalIssues)
	assert.Equal(t, domain.GeoBounds{}, frame.Metadata.Bounds)
}

func TestAggregate_SkipsIssuesWithoutLocation(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	located := testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now)
	unlocated := located
	unlocated.ID = "b"
	unlocated.Location = nil

	frame := engine.Aggregate([]domain.IssueRecord{located, unlocated}, domain.DefaultAggregationConfig())

	require.Len(t, frame.Points, 1)
	assert.Equal(t, 1, frame.Points[0].IssueCount)
	assert.Equal(t, 1, frame.Metadata.TotalIssues)
}

func TestAggregate_SpatialBinning(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	issues := []domain.IssueRecord{
		// Two issues a couple of meters apart share a 50m cell.
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
		testIssue("b", 10.00003, 20.00001, 5, domain.PriorityMedium, time.Hour, now),
		// A third issue roughly a kilometer north lands elsewhere.
		testIssue("c", 10.01, 20.0, 5, domain.PriorityMedium, time.Hour, now),
	}

	frame := engine.Aggregate(issues, domain.DefaultAggregationConfig())

	require.Len(t, frame.Points, 2)
	counts := []int{frame.Points[0].IssueCount, frame.Points[1].IssueCount}
	assert.ElementsMatch(t, []int{2, 1}, counts)
	assert.Equal(t, 3, frame.Metadata.TotalIssues)
}

func TestAggregate_CentroidIsMeanOfMembers(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	issues := []domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
		testIssue("b", 10.00003, 20.00002, 5, domain.PriorityMedium, time.Hour, now),
	}

	frame := engine.Aggregate(issues, domain.DefaultAggregationConfig())

	require.Len(t, frame.Points, 1)
	assert.InDelta(t, 10.00002, frame.Points[0].Lat, 1e-9)
	assert.InDelta(t, 20.00001, frame.Points[0].Lng, 1e-9)
}

func TestAggregate_MergedCellAveragesSeverityAndOutweighsMembers(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	// Two fresh issues a few meters apart share one 50m cell.
	critical := testIssue("a", 10.00001, 20.0, 9, domain.PriorityCritical, 0, now)
	low := testIssue("b", 10.00003, 20.00001, 2, domain.PriorityLow, 0, now)

	cfg := domain.DefaultAggregationConfig()
	cfg.NormalizeWeights = false

	merged := engine.Aggregate([]domain.IssueRecord{critical, low}, cfg)
	require.Len(t, merged.Points, 1)
	point := merged.Points[0]

	assert.Equal(t, 2, point.IssueCount)
	assert.InDelta(t, 5.5, point.AvgSeverity, 1e-9)
	assert.Equal(t, 1, point.CriticalCount)
	assert.Equal(t, 1, point.LowCount)

	// The merged cell outweighs either issue aggregated on its own.
	aloneCritical := engine.Aggregate([]domain.IssueRecord{critical}, cfg)
	aloneLow := engine.Aggregate([]domain.IssueRecord{low}, cfg)
	require.Len(t, aloneCritical.Points, 1)
	require.Len(t, aloneLow.Points, 1)
	assert.Greater(t, point.Weight, aloneCritical.Points[0].Weight)
	assert.Greater(t, point.Weight, aloneLow.Points[0].Weight)
}

func TestAggregate_NormalizationBounds(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	issues := []domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 9, domain.PriorityCritical, time.Hour, now),
		testIssue("b", 10.01, 20.0, 3, domain.PriorityLow, 48*time.Hour, now),
		testIssue("c", 10.02, 20.0, 6, domain.PriorityMedium, 12*time.Hour, now),
	}

	cfg := domain.DefaultAggregationConfig()
	cfg.NormalizeWeights = true

	frame := engine.Aggregate(issues, cfg)

	require.Len(t, frame.Points, 3)
	sawMax := false
	for _, p := range frame.Points {
		assert.GreaterOrEqual(t, p.Weight, 0.0)
		assert.LessOrEqual(t, p.Weight, 1.0)
		if p.Weight == 1.0 {
			sawMax = true
		}
	}
	assert.True(t, sawMax, "at least one point must normalize to exactly 1")
}

func TestAggregate_SinglePointNormalizesToOne(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	// A lone critical severity-10 issue is both min and max.
	issues := []domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 10, domain.PriorityCritical, time.Hour, now),
	}

	frame := engine.Aggregate(issues, domain.DefaultAggregationConfig())

	require.Len(t, frame.Points, 1)
	assert.Equal(t, 1.0, frame.Points[0].Weight)
}

func TestAggregate_DecayIsMonotonic(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	cfg := domain.DefaultAggregationConfig()
	cfg.NormalizeWeights = false

	fresh := engine.Aggregate([]domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
	}, cfg)
	stale := engine.Aggregate([]domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, 60*24*time.Hour, now),
	}, cfg)

	require.Len(t, fresh.Points, 1)
	require.Len(t, stale.Points, 1)
	assert.Greater(t, fresh.Points[0].Weight, stale.Points[0].Weight)
	// Exponential decay never reaches zero.
	assert.Greater(t, stale.Points[0].Weight, 0.0)
}

func TestAggregate_SeverityIsMonotonic(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	cfg := domain.DefaultAggregationConfig()
	cfg.NormalizeWeights = false

	low := engine.Aggregate([]domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 2, domain.PriorityMedium, time.Hour, now),
	}, cfg)
	high := engine.Aggregate([]domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 9, domain.PriorityMedium, time.Hour, now),
	}, cfg)

	require.Len(t, low.Points, 1)
	require.Len(t, high.Points, 1)
	assert.Greater(t, high.Points[0].Weight, low.Points[0].Weight)
}

func TestAggregate_PriorityBoostsWeight(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	cfg := domain.DefaultAggregationConfig()
	cfg.NormalizeWeights = false

	lowPri := engine.Aggregate([]domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityLow, time.Hour, now),
	}, cfg)
	critical := engine.Aggregate([]domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityCritical, time.Hour, now),
	}, cfg)

	assert.Greater(t, critical.Points[0].Weight, lowPri.Points[0].Weight)
}

func TestAggregate_MaxAgeIsHardCutoff(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	cfg := domain.DefaultAggregationConfig()
	cfg.MaxAge = 24 * time.Hour

	issues := []domain.IssueRecord{
		testIssue("fresh", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
		testIssue("expired", 10.01, 20.0, 5, domain.PriorityMedium, 48*time.Hour, now),
	}

	frame := engine.Aggregate(issues, cfg)

	require.Len(t, frame.Points, 1)
	assert.Equal(t, 1, frame.Metadata.TotalIssues)
}

func TestAggregate_Deterministic(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	issues := []domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 9, domain.PriorityCritical, time.Hour, now),
		testIssue("b", 10.01, 20.0, 3, domain.PriorityLow, 48*time.Hour, now),
		testIssue("c", 10.02, 20.0, 6, domain.PriorityMedium, 12*time.Hour, now),
		testIssue("d", 10.02001, 20.0, 7, domain.PriorityHigh, 6*time.Hour, now),
	}

	first := engine.Aggregate(issues, domain.DefaultAggregationConfig())
	second := engine.Aggregate(issues, domain.DefaultAggregationConfig())

	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, first.Metadata.TotalIssues, second.Metadata.TotalIssues)
	assert.Equal(t, first.Metadata.Bounds, second.Metadata.Bounds)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	issues := []domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
	}
	snapshot := issues[0]

	engine.Aggregate(issues, domain.DefaultAggregationConfig())

	assert.Equal(t, snapshot, issues[0])
}

func TestAggregate_PerPriorityCounts(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	issues := []domain.IssueRecord{
		testIssue("a", 10.00001, 20.0, 9, domain.PriorityCritical, time.Hour, now),
		testIssue("b", 10.00002, 20.0, 7, domain.PriorityHigh, time.Hour, now),
		testIssue("c", 10.00003, 20.0, 5, domain.PriorityMedium, time.Hour, now),
	}

	frame := engine.Aggregate(issues, domain.DefaultAggregationConfig())

	require.Len(t, frame.Points, 1)
	p := frame.Points[0]
	assert.Equal(t, 1, p.CriticalCount)
	assert.Equal(t, 1, p.HighCount)
	assert.Equal(t, 1, p.MediumCount)
	assert.Equal(t, 0, p.LowCount)
	assert.InDelta(t, 7.0, p.AvgSeverity, 1e-9)
	assert.Equal(t, []domain.IssueCategory{domain.CategoryPlumbing}, p.Categories)
}

func TestAggregate_Clustering(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	cfg := domain.DefaultAggregationConfig()
	cfg.NormalizeWeights = false
	// Two cells about 110m apart merge under a 200m radius.
	cfg.ClusterRadius = 200

	issues := []domain.IssueRecord{
		testIssue("a", 10.0001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
		testIssue("b", 10.0011, 20.0, 5, domain.PriorityMedium, time.Hour, now),
	}

	unclustered := engine.Aggregate(issues, domain.DefaultAggregationConfig())
	require.Len(t, unclustered.Points, 2)

	frame := engine.Aggregate(issues, cfg)
	require.Len(t, frame.Points, 1)
	assert.Equal(t, 2, frame.Points[0].IssueCount)
}

func TestAggregate_ClusteringMinSizeDropsSmallClusters(t *testing.T) {
	engine := newTestEngine(t)
	now := fixedNow()
	engine.now = func() time.Time { return now }

	cfg := domain.DefaultAggregationConfig()
	cfg.ClusterRadius = 200
	cfg.MinClusterSize = 2

	issues := []domain.IssueRecord{
		testIssue("a", 10.0001, 20.0, 5, domain.PriorityMedium, time.Hour, now),
		testIssue("b", 10.0011, 20.0, 5, domain.PriorityMedium, time.Hour, now),
		// Far away and alone, below the cluster size floor.
		testIssue("c", 10.5, 20.0, 5, domain.PriorityMedium, time.Hour, now),
	}

	frame := engine.Aggregate(issues, cfg)

	require.Len(t, frame.Points, 1)
	assert.Equal(t, 2, frame.Points[0].IssueCount)
}

func TestAggregateFiltered_CacheInvalidatesOnMutation(t *testing.T) {
	repo := memory.NewMemoryIssueRepository()
	engine := NewAggregationEngine(repo, time.Minute, nil, zaptest.NewLogger(t).Sugar())
	defer engine.Close()

	ctx := context.Background()
	now := time.Now()

	first := testIssue("a", 10.00001, 20.0, 5, domain.PriorityMedium, time.Hour, now)
	require.NoError(t, repo.Create(ctx, &first))

	filter := &domain.IssueFilter{OrganizationID: "org-1"}
	cfg := domain.DefaultAggregationConfig()

	frame1, err := engine.AggregateFiltered(ctx, filter, cfg)
	require.NoError(t, err)
	require.Len(t, frame1.Points, 1)

	// Same version: served from cache, same frame pointer.
	frame2, err := engine.AggregateFiltered(ctx, filter, cfg)
	require.NoError(t, err)
	assert.Same(t, frame1, frame2)

	// A mutation bumps the store version and forces a recompute.
	second := testIssue("b", 10.01, 20.0, 5, domain.PriorityMedium, time.Hour, now)
	require.NoError(t, repo.Create(ctx, &second))

	frame3, err := engine.AggregateFiltered(ctx, filter, cfg)
	require.NoError(t, err)
	assert.Len(t, frame3.Points, 2)
}

func TestAggregateFiltered_RejectsInvalidConfig(t *testing.T) {
	repo := memory.NewMemoryIssueRepository()
	engine := NewAggregationEngine(repo, time.Minute, nil, zaptest.NewLogger(t).Sugar())
	defer engine.Close()

	cfg := domain.DefaultAggregationConfig()
	cfg.GridSizeMeters = -1

	_, err := engine.AggregateFiltered(context.Background(), &domain.IssueFilter{OrganizationID: "org-1"}, cfg)
	assert.Error(t, err)
}

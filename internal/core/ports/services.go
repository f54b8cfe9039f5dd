package ports

import (
	"context"
	"time"

	"campuspulse/internal/core/domain"
)

// AggregationService converts issue snapshots into heatmap frames.
type AggregationService interface {
	// Aggregate is pure: it never mutates its input and is safe to call
	// concurrently with different configs.
	Aggregate(issues []domain.IssueRecord, cfg domain.AggregationConfig) *domain.HeatmapFrame

	// AggregateFiltered queries the issue store with the filter and runs
	// Aggregate over the result, consulting the frame cache first.
	AggregateFiltered(ctx context.Context, filter *domain.IssueFilter, cfg domain.AggregationConfig) (*domain.HeatmapFrame, error)
}

// EventSink receives domain events from the change notifier. Delivery is
// fire-and-forget; implementations must never block the caller.
type EventSink interface {
	Notify(env *domain.EventEnvelope)
}

// EventPublisher fans a validated event out to subscribers.
type EventPublisher interface {
	Publish(env *domain.EventEnvelope) error
}

// StatsService computes running per-organization issue counters.
type StatsService interface {
	OrgStats(ctx context.Context, org domain.OrganizationID) (domain.OrgStats, error)
}

// RiskScorer is the opaque ML risk-score lookup.
type RiskScorer interface {
	BuildingRisk(ctx context.Context, org domain.OrganizationID, building domain.BuildingID) (*domain.RiskScore, error)
}

// AuthService issues and validates identity tokens for both the HTTP surface
// and the websocket authenticate handshake.
type AuthService interface {
	GenerateToken(userID domain.UserID, username string, org domain.OrganizationID) (string, error)
	GenerateRefreshToken(userID domain.UserID) (string, error)
	ValidateToken(tokenString string) (*AuthClaims, error)
}

// AuthClaims is the decoded identity carried by a token.
type AuthClaims struct {
	UserID         domain.UserID
	Username       string
	OrganizationID domain.OrganizationID
	ExpiresAt      time.Time
}

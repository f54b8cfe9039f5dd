package risk

import (
	"context"
	"fmt"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/pkg/circuitbreaker"
	"campuspulse/pkg/retry"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client calls the external ML risk-scoring service. The score is opaque to
// this system; the client only shields callers from a flaky downstream with
// retries and a circuit breaker.
type Client struct {
	http    *resty.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	logger  *zap.SugaredLogger
}

// NewClient creates a risk scorer talking to the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.SugaredLogger) ports.RiskScorer {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 2

	return &Client{
		http:    httpClient,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		retry:   retryCfg,
		logger:  logger,
	}
}

type riskResponse struct {
	BuildingID  string    `json:"building_id"`
	Score       float64   `json:"score"`
	Level       string    `json:"level"`
	ComputedAt  time.Time `json:"computed_at"`
	ModelSource string    `json:"model_source"`
}

// BuildingRisk fetches the current risk score for one building.
func (c *Client) BuildingRisk(ctx context.Context, org domain.OrganizationID, building domain.BuildingID) (*domain.RiskScore, error) {
	var out riskResponse

	call := func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("org", string(org)).
			SetPathParam("building", string(building)).
			SetResult(&out).
			Get("/api/v1/organizations/{org}/buildings/{building}/risk")
		if err != nil {
			return fmt.Errorf("risk service request failed: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("risk service returned %d", resp.StatusCode())
		}
		return nil
	}

	err := c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retry, call)
	})
	if err != nil {
		c.logger.Warnw("risk score lookup failed",
			"organization_id", org,
			"building_id", building,
			"error", err,
		)
		return nil, err
	}

	return &domain.RiskScore{
		BuildingID:  building,
		Score:       out.Score,
		Level:       out.Level,
		ComputedAt:  out.ComputedAt,
		ModelSource: out.ModelSource,
	}, nil
}

package domain

import "time"

// RiskScore is the opaque result of the external ML scoring service.
type RiskScore struct {
	BuildingID  BuildingID `json:"building_id"`
	Score       float64    `json:"score"`
	Level       string     `json:"level"`
	ComputedAt  time.Time  `json:"computed_at"`
	ModelSource string     `json:"model_source,omitempty"`
}

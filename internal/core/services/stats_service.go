package services

import (
	"context"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
)

type statsService struct {
	repo ports.IssueRepository
}

// NewStatsService computes running per-organization issue counters from the
// issue store.
func NewStatsService(repo ports.IssueRepository) ports.StatsService {
	return &statsService{repo: repo}
}

func (s *statsService) OrgStats(ctx context.Context, org domain.OrganizationID) (domain.OrgStats, error) {
	issues, err := s.repo.Query(ctx, &domain.IssueFilter{OrganizationID: org})
	if err != nil {
		return domain.OrgStats{}, err
	}

	var stats domain.OrgStats
	for _, issue := range issues {
		switch issue.Status {
		case domain.StatusOpen:
			stats.TotalOpen++
			if issue.Priority == domain.PriorityCritical {
				stats.CriticalOpen++
			}
		case domain.StatusInProgress:
			stats.TotalInProgress++
			if issue.Priority == domain.PriorityCritical {
				stats.CriticalOpen++
			}
		case domain.StatusResolved, domain.StatusClosed:
			stats.TotalResolved++
		}
	}
	return stats, nil
}

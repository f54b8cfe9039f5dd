package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisIssueRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisIssueRepository(client *redis.Client) ports.IssueRepository {
	return &RedisIssueRepository{
		client: client,
		prefix: "campuspulse:issue:",
	}
}

func (r *RedisIssueRepository) issueKey(id domain.IssueID) string {
	return r.prefix + string(id)
}

func (r *RedisIssueRepository) orgIssuesKey(org domain.OrganizationID) string {
	return fmt.Sprintf("campuspulse:org:%s:issues", org)
}

const versionKey = "campuspulse:issues:version"

func (r *RedisIssueRepository) Create(ctx context.Context, issue *domain.IssueRecord) error {
	data, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("failed to marshal issue: %w", err)
	}

	key := r.issueKey(issue.ID)
	set, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set issue in Redis: %w", err)
	}
	if !set {
		return domain.ErrIssueExists
	}

	// Index by organization for filtered queries
	orgKey := r.orgIssuesKey(issue.OrganizationID)
	if err := r.client.SAdd(ctx, orgKey, string(issue.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add issue to org set: %w", err)
	}

	return r.bumpVersion(ctx)
}

func (r *RedisIssueRepository) GetByID(ctx context.Context, id domain.IssueID) (*domain.IssueRecord, error) {
	data, err := r.client.Get(ctx, r.issueKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrIssueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue from Redis: %w", err)
	}

	var issue domain.IssueRecord
	if err := json.Unmarshal([]byte(data), &issue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issue: %w", err)
	}

	return &issue, nil
}

func (r *RedisIssueRepository) Update(ctx context.Context, issue *domain.IssueRecord) error {
	data, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("failed to marshal issue: %w", err)
	}

	key := r.issueKey(issue.ID)
	set, err := r.client.SetXX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update issue in Redis: %w", err)
	}
	if !set {
		return domain.ErrIssueNotFound
	}

	return r.bumpVersion(ctx)
}

func (r *RedisIssueRepository) Delete(ctx context.Context, id domain.IssueID) error {
	// Get issue to find its organization index
	issue, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	orgKey := r.orgIssuesKey(issue.OrganizationID)
	if err := r.client.SRem(ctx, orgKey, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove issue from org set: %w", err)
	}

	if err := r.client.Del(ctx, r.issueKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete issue from Redis: %w", err)
	}

	return r.bumpVersion(ctx)
}

func (r *RedisIssueRepository) Query(ctx context.Context, filter *domain.IssueFilter) ([]*domain.IssueRecord, error) {
	var issues []*domain.IssueRecord

	if filter != nil && filter.OrganizationID != "" {
		ids, err := r.client.SMembers(ctx, r.orgIssuesKey(filter.OrganizationID)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get org issues from Redis: %w", err)
		}
		for _, id := range ids {
			issue, err := r.GetByID(ctx, domain.IssueID(id))
			if err != nil {
				// Skip issues that no longer exist
				continue
			}
			if filter.Matches(issue) {
				issues = append(issues, issue)
			}
		}
	} else {
		iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			data, err := r.client.Get(ctx, iter.Val()).Result()
			if err != nil {
				continue
			}
			var issue domain.IssueRecord
			if err := json.Unmarshal([]byte(data), &issue); err != nil {
				continue
			}
			if filter == nil || filter.Matches(&issue) {
				issues = append(issues, &issue)
			}
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan issues in Redis: %w", err)
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.Before(issues[j].CreatedAt)
		}
		return issues[i].ID < issues[j].ID
	})

	return issues, nil
}

func (r *RedisIssueRepository) Version(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get data version from Redis: %w", err)
	}
	return version, nil
}

func (r *RedisIssueRepository) bumpVersion(ctx context.Context) error {
	if err := r.client.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("failed to bump data version: %w", err)
	}
	return nil
}

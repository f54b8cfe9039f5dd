package memory

import (
	"context"
	"testing"
	"time"

	"campuspulse/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoIssue(id string, org domain.OrganizationID, priority domain.IssuePriority, createdAt time.Time) *domain.IssueRecord {
	return &domain.IssueRecord{
		ID:             domain.IssueID(id),
		OrganizationID: org,
		Title:          "issue " + id,
		Category:       domain.CategoryElectrical,
		Severity:       5,
		Priority:       priority,
		Status:         domain.StatusOpen,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestMemoryIssueRepository_CRUD(t *testing.T) {
	repo := NewMemoryIssueRepository()
	ctx := context.Background()
	now := time.Now()

	issue := repoIssue("a", "org-1", domain.PriorityHigh, now)
	require.NoError(t, repo.Create(ctx, issue))

	assert.ErrorIs(t, repo.Create(ctx, issue), domain.ErrIssueExists)

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, issue.Title, got.Title)

	got.Title = "changed"
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "changed", updated.Title)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.GetByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)

	assert.ErrorIs(t, repo.Update(ctx, issue), domain.ErrIssueNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "a"), domain.ErrIssueNotFound)
}

func TestMemoryIssueRepository_VersionBumpsOnEveryMutation(t *testing.T) {
	repo := NewMemoryIssueRepository()
	ctx := context.Background()

	v0, err := repo.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v0)

	issue := repoIssue("a", "org-1", domain.PriorityHigh, time.Now())
	require.NoError(t, repo.Create(ctx, issue))
	require.NoError(t, repo.Update(ctx, issue))
	require.NoError(t, repo.Delete(ctx, "a"))

	v3, err := repo.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v3)
}

func TestMemoryIssueRepository_QueryFiltersAndSorts(t *testing.T) {
	repo := NewMemoryIssueRepository()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, repo.Create(ctx, repoIssue("newer", "org-1", domain.PriorityCritical, base.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, repoIssue("older", "org-1", domain.PriorityLow, base)))
	require.NoError(t, repo.Create(ctx, repoIssue("other", "org-2", domain.PriorityLow, base)))

	issues, err := repo.Query(ctx, &domain.IssueFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, domain.IssueID("older"), issues[0].ID)
	assert.Equal(t, domain.IssueID("newer"), issues[1].ID)

	critical, err := repo.Query(ctx, &domain.IssueFilter{
		OrganizationID: "org-1",
		Priorities:     []domain.IssuePriority{domain.PriorityCritical},
	})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, domain.IssueID("newer"), critical[0].ID)
}

func TestMemoryIssueRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryIssueRepository()
	ctx := context.Background()

	issue := repoIssue("a", "org-1", domain.PriorityHigh, time.Now())
	require.NoError(t, repo.Create(ctx, issue))

	got, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	got.Title = "mutated by caller"

	fresh, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "issue a", fresh.Title)
}

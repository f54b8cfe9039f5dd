package memory

import (
	"context"
	"sort"
	"sync"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
)

type MemoryIssueRepository struct {
	issues  map[domain.IssueID]*domain.IssueRecord
	version int64
	mu      sync.RWMutex
}

func NewMemoryIssueRepository() ports.IssueRepository {
	return &MemoryIssueRepository{
		issues: make(map[domain.IssueID]*domain.IssueRecord),
	}
}

func (r *MemoryIssueRepository) Create(ctx context.Context, issue *domain.IssueRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.issues[issue.ID]; exists {
		return domain.ErrIssueExists
	}

	stored := *issue
	r.issues[issue.ID] = &stored
	r.version++
	return nil
}

func (r *MemoryIssueRepository) GetByID(ctx context.Context, id domain.IssueID) (*domain.IssueRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, exists := r.issues[id]
	if !exists {
		return nil, domain.ErrIssueNotFound
	}

	out := *issue
	return &out, nil
}

func (r *MemoryIssueRepository) Update(ctx context.Context, issue *domain.IssueRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.issues[issue.ID]; !exists {
		return domain.ErrIssueNotFound
	}

	stored := *issue
	r.issues[issue.ID] = &stored
	r.version++
	return nil
}

func (r *MemoryIssueRepository) Delete(ctx context.Context, id domain.IssueID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.issues[id]; !exists {
		return domain.ErrIssueNotFound
	}

	delete(r.issues, id)
	r.version++
	return nil
}

func (r *MemoryIssueRepository) Query(ctx context.Context, filter *domain.IssueFilter) ([]*domain.IssueRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.IssueRecord
	for _, issue := range r.issues {
		if filter == nil || filter.Matches(issue) {
			out := *issue
			matched = append(matched, &out)
		}
	}

	// Stable order for callers and cache fingerprints.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return matched, nil
}

func (r *MemoryIssueRepository) Version(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version, nil
}

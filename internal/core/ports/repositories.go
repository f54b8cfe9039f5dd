package ports

import (
	"context"

	"campuspulse/internal/core/domain"
)

// IssueRepository is the persistent issue store. The aggregation core treats
// it as an external collaborator: simple CRUD plus a filtered query.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.IssueRecord) error
	GetByID(ctx context.Context, id domain.IssueID) (*domain.IssueRecord, error)
	Update(ctx context.Context, issue *domain.IssueRecord) error
	Delete(ctx context.Context, id domain.IssueID) error
	Query(ctx context.Context, filter *domain.IssueFilter) ([]*domain.IssueRecord, error)

	// Version returns a monotonically increasing data version, bumped on
	// every mutation. Used to key the aggregation frame cache.
	Version(ctx context.Context) (int64, error)
}

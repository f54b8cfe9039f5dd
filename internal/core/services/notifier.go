package services

import (
	"context"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"

	"go.uber.org/zap"
)

// ChangeNotifier packages issue mutations into domain events and hands them
// to the registered sinks (broadcast hub, streaming session manager).
// Delivery is fire-and-forget: enqueueing never blocks the mutation path,
// and a full queue drops the event rather than stalling a write.
type ChangeNotifier struct {
	sinks  []ports.EventSink
	stats  ports.StatsService
	events chan *domain.EventEnvelope
	done   chan struct{}
	logger *zap.SugaredLogger
}

// NewChangeNotifier creates a notifier fanning out to the given sinks.
// stats may be nil; when set, a stats:updated event follows every lifecycle
// event.
func NewChangeNotifier(stats ports.StatsService, logger *zap.SugaredLogger, sinks ...ports.EventSink) *ChangeNotifier {
	return &ChangeNotifier{
		sinks:  sinks,
		stats:  stats,
		events: make(chan *domain.EventEnvelope, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start launches the dispatch goroutine.
func (n *ChangeNotifier) Start() {
	go n.dispatch()
}

// Stop terminates dispatching. Events already enqueued are drained first.
func (n *ChangeNotifier) Stop() {
	close(n.events)
	<-n.done
}

func (n *ChangeNotifier) dispatch() {
	defer close(n.done)
	for env := range n.events {
		n.fanOut(env)
		// Stats ride behind the surface invalidation so the mutation
		// path never waits on a repository query.
		if env.Type == domain.EventHeatmapInvalidated && n.stats != nil {
			n.fanOutStats(env.OrganizationID)
		}
	}
}

func (n *ChangeNotifier) fanOut(env *domain.EventEnvelope) {
	for _, sink := range n.sinks {
		sink.Notify(env)
	}
}

func (n *ChangeNotifier) fanOutStats(org domain.OrganizationID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stats, err := n.stats.OrgStats(ctx, org)
	if err != nil {
		n.logger.Warnw("failed to compute org stats for event", "error", err)
		return
	}
	n.fanOut(&domain.EventEnvelope{
		Type:           domain.EventStatsChanged,
		OrganizationID: org,
		Timestamp:      time.Now(),
		Payload:        domain.StatsChangedPayload{Stats: stats},
	})
}

func (n *ChangeNotifier) enqueue(env *domain.EventEnvelope) {
	env.Timestamp = time.Now()
	select {
	case n.events <- env:
	default:
		n.logger.Warnw("event queue full, dropping event",
			"type", env.Type,
			"organization_id", env.OrganizationID,
		)
	}
}

func (n *ChangeNotifier) emitDerived(issue *domain.IssueRecord, change domain.HeatmapChangeType) {
	var region *domain.GeoBounds
	if issue.Location != nil {
		region = &domain.GeoBounds{
			MinLat: issue.Location.Lat, MaxLat: issue.Location.Lat,
			MinLng: issue.Location.Lng, MaxLng: issue.Location.Lng,
		}
	}
	n.enqueue(&domain.EventEnvelope{
		Type:           domain.EventHeatmapInvalidated,
		OrganizationID: issue.OrganizationID,
		CampusID:       issue.CampusID,
		BuildingID:     issue.BuildingID,
		Priority:       issue.Priority,
		Payload: domain.HeatmapInvalidatedPayload{
			ChangeType:     change,
			AffectedRegion: region,
		},
	})
}

// IssueCreated notifies sinks of a newly created issue.
func (n *ChangeNotifier) IssueCreated(issue *domain.IssueRecord) {
	n.enqueue(&domain.EventEnvelope{
		Type:           domain.EventIssueCreated,
		OrganizationID: issue.OrganizationID,
		CampusID:       issue.CampusID,
		BuildingID:     issue.BuildingID,
		Priority:       issue.Priority,
		Payload:        domain.IssueCreatedPayload{Issue: *issue},
	})
	n.emitDerived(issue, domain.HeatmapChangeCreated)
}

// IssueUpdated notifies sinks of an updated issue with a field-level diff.
func (n *ChangeNotifier) IssueUpdated(issue *domain.IssueRecord, changes []domain.FieldChange) {
	n.enqueue(&domain.EventEnvelope{
		Type:           domain.EventIssueUpdated,
		OrganizationID: issue.OrganizationID,
		CampusID:       issue.CampusID,
		BuildingID:     issue.BuildingID,
		Priority:       issue.Priority,
		Payload:        domain.IssueUpdatedPayload{Issue: *issue, Changes: changes},
	})
	n.emitDerived(issue, domain.HeatmapChangeUpdated)
}

// IssueResolved notifies sinks of a resolved issue.
func (n *ChangeNotifier) IssueResolved(issue *domain.IssueRecord, resolvedBy domain.UserID) {
	resolvedAt := time.Now()
	if issue.ResolvedAt != nil {
		resolvedAt = *issue.ResolvedAt
	}
	n.enqueue(&domain.EventEnvelope{
		Type:           domain.EventIssueResolved,
		OrganizationID: issue.OrganizationID,
		CampusID:       issue.CampusID,
		BuildingID:     issue.BuildingID,
		Priority:       issue.Priority,
		Payload: domain.IssueResolvedPayload{
			IssueID:    issue.ID,
			ResolvedBy: resolvedBy,
			ResolvedAt: resolvedAt,
		},
	})
	n.emitDerived(issue, domain.HeatmapChangeResolved)
}

// IssueDeleted notifies sinks of a deleted issue.
func (n *ChangeNotifier) IssueDeleted(issue *domain.IssueRecord) {
	n.enqueue(&domain.EventEnvelope{
		Type:           domain.EventIssueDeleted,
		OrganizationID: issue.OrganizationID,
		CampusID:       issue.CampusID,
		BuildingID:     issue.BuildingID,
		Priority:       issue.Priority,
		Payload:        domain.IssueDeletedPayload{IssueID: issue.ID},
	})
	n.emitDerived(issue, domain.HeatmapChangeDeleted)
}

// IssueAssigned notifies sinks of an assignment change.
func (n *ChangeNotifier) IssueAssigned(issue *domain.IssueRecord) {
	n.enqueue(&domain.EventEnvelope{
		Type:           domain.EventIssueAssigned,
		OrganizationID: issue.OrganizationID,
		CampusID:       issue.CampusID,
		BuildingID:     issue.BuildingID,
		Priority:       issue.Priority,
		Payload: domain.IssueAssignedPayload{
			IssueID:    issue.ID,
			AssigneeID: issue.AssigneeID,
		},
	})
}

package domain

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventIssueCreated       EventType = "issue:created"
	EventIssueUpdated       EventType = "issue:updated"
	EventIssueResolved      EventType = "issue:resolved"
	EventIssueDeleted       EventType = "issue:deleted"
	EventIssueAssigned      EventType = "issue:assigned"
	EventHeatmapInvalidated EventType = "heatmap:updated"
	EventStatsChanged       EventType = "stats:updated"
)

// EventPayload is implemented by exactly one concrete shape per event type.
// The closed set keeps subscribers and tests working against enumerable
// payloads instead of ad hoc JSON bags.
type EventPayload interface {
	eventPayload()
}

// FieldChange records one changed field on an updated issue.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

type IssueCreatedPayload struct {
	Issue IssueRecord `json:"issue"`
}

type IssueUpdatedPayload struct {
	Issue   IssueRecord   `json:"issue"`
	Changes []FieldChange `json:"changes"`
}

type IssueResolvedPayload struct {
	IssueID    IssueID   `json:"issue_id"`
	ResolvedBy UserID    `json:"resolved_by,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type IssueDeletedPayload struct {
	IssueID IssueID `json:"issue_id"`
}

type IssueAssignedPayload struct {
	IssueID    IssueID `json:"issue_id"`
	AssigneeID UserID  `json:"assignee_id"`
}

// HeatmapChangeType tags what kind of mutation invalidated the surface.
type HeatmapChangeType string

const (
	HeatmapChangeCreated  HeatmapChangeType = "issue_created"
	HeatmapChangeUpdated  HeatmapChangeType = "issue_updated"
	HeatmapChangeResolved HeatmapChangeType = "issue_resolved"
	HeatmapChangeDeleted  HeatmapChangeType = "issue_deleted"
)

type HeatmapInvalidatedPayload struct {
	ChangeType     HeatmapChangeType `json:"change_type"`
	AffectedRegion *GeoBounds        `json:"affected_region,omitempty"`
}

// OrgStats is the running per-organization issue counter set.
type OrgStats struct {
	TotalOpen       int `json:"total_open"`
	TotalInProgress int `json:"total_in_progress"`
	TotalResolved   int `json:"total_resolved"`
	CriticalOpen    int `json:"critical_open"`
}

type StatsChangedPayload struct {
	Stats OrgStats `json:"stats"`
}

func (IssueCreatedPayload) eventPayload()       {}
func (IssueUpdatedPayload) eventPayload()       {}
func (IssueResolvedPayload) eventPayload()      {}
func (IssueDeletedPayload) eventPayload()       {}
func (IssueAssignedPayload) eventPayload()      {}
func (HeatmapInvalidatedPayload) eventPayload() {}
func (StatsChangedPayload) eventPayload()       {}

// EventEnvelope carries one domain event. Routing looks only at the
// organization/campus/building identifiers; the payload is opaque to the hub.
type EventEnvelope struct {
	Type           EventType      `json:"type"`
	OrganizationID OrganizationID `json:"organization_id"`
	CampusID       CampusID       `json:"campus_id,omitempty"`
	BuildingID     BuildingID     `json:"building_id,omitempty"`
	Priority       IssuePriority  `json:"priority,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Payload        EventPayload   `json:"payload"`
}

// Validate checks the envelope at the hub boundary: identifiers present and
// the payload shape matching the declared type.
func (e *EventEnvelope) Validate() error {
	if e.OrganizationID == "" {
		return fmt.Errorf("event organization_id is required")
	}
	if e.Payload == nil {
		return fmt.Errorf("event payload is required")
	}
	ok := false
	switch e.Type {
	case EventIssueCreated:
		_, ok = e.Payload.(IssueCreatedPayload)
	case EventIssueUpdated:
		_, ok = e.Payload.(IssueUpdatedPayload)
	case EventIssueResolved:
		_, ok = e.Payload.(IssueResolvedPayload)
	case EventIssueDeleted:
		_, ok = e.Payload.(IssueDeletedPayload)
	case EventIssueAssigned:
		_, ok = e.Payload.(IssueAssignedPayload)
	case EventHeatmapInvalidated:
		_, ok = e.Payload.(HeatmapInvalidatedPayload)
	case EventStatsChanged:
		_, ok = e.Payload.(StatsChangedPayload)
	default:
		return fmt.Errorf("unknown event type: %s", e.Type)
	}
	if !ok {
		return fmt.Errorf("payload shape does not match event type %s", e.Type)
	}
	return nil
}

// HeatmapRelevant reports whether the event implies the intensity surface
// changed.
func (e *EventEnvelope) HeatmapRelevant() bool {
	switch e.Type {
	case EventIssueCreated, EventIssueUpdated, EventIssueResolved,
		EventIssueDeleted, EventHeatmapInvalidated:
		return true
	}
	return false
}

// Urgent reports whether streaming sessions should recompute immediately
// instead of waiting for the next tick.
func (e *EventEnvelope) Urgent() bool {
	return e.Priority == PriorityCritical
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventEnvelope_Validate(t *testing.T) {
	valid := &EventEnvelope{
		Type:           EventIssueCreated,
		OrganizationID: "org-1",
		Timestamp:      time.Now(),
		Payload:        IssueCreatedPayload{},
	}
	assert.NoError(t, valid.Validate())

	noOrg := &EventEnvelope{Type: EventIssueCreated, Payload: IssueCreatedPayload{}}
	assert.Error(t, noOrg.Validate())

	noPayload := &EventEnvelope{Type: EventIssueCreated, OrganizationID: "org-1"}
	assert.Error(t, noPayload.Validate())

	mismatch := &EventEnvelope{
		Type:           EventIssueCreated,
		OrganizationID: "org-1",
		Payload:        IssueDeletedPayload{IssueID: "issue-1"},
	}
	assert.Error(t, mismatch.Validate())

	unknown := &EventEnvelope{
		Type:           "issue:archived",
		OrganizationID: "org-1",
		Payload:        IssueCreatedPayload{},
	}
	assert.Error(t, unknown.Validate())
}

func TestEventEnvelope_Urgent(t *testing.T) {
	assert.True(t, (&EventEnvelope{Priority: PriorityCritical}).Urgent())
	assert.False(t, (&EventEnvelope{Priority: PriorityHigh}).Urgent())
	assert.False(t, (&EventEnvelope{}).Urgent())
}

func TestEventEnvelope_HeatmapRelevant(t *testing.T) {
	relevant := []EventType{
		EventIssueCreated, EventIssueUpdated, EventIssueResolved,
		EventIssueDeleted, EventHeatmapInvalidated,
	}
	for _, et := range relevant {
		assert.True(t, (&EventEnvelope{Type: et}).HeatmapRelevant(), string(et))
	}
	assert.False(t, (&EventEnvelope{Type: EventIssueAssigned}).HeatmapRelevant())
	assert.False(t, (&EventEnvelope{Type: EventStatsChanged}).HeatmapRelevant())
}

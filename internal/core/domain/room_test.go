package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomEvent(eventType EventType, org OrganizationID, campus CampusID, building BuildingID) *EventEnvelope {
	env := &EventEnvelope{
		Type:           eventType,
		OrganizationID: org,
		CampusID:       campus,
		BuildingID:     building,
		Timestamp:      time.Now(),
	}
	switch eventType {
	case EventIssueAssigned:
		env.Payload = IssueAssignedPayload{IssueID: "issue-1", AssigneeID: "user-1"}
	case EventStatsChanged:
		env.Payload = StatsChangedPayload{}
	default:
		env.Payload = IssueCreatedPayload{}
	}
	return env
}

func TestRoomKey_StringParseRoundtrip(t *testing.T) {
	keys := []RoomKey{
		OrganizationRoom("org-1"),
		CampusRoom("org-1", "north"),
		BuildingRoom("org-1", "bldg-7"),
		HeatmapRoom("org-1"),
	}
	for _, key := range keys {
		parsed, err := ParseRoomKey(key.String())
		require.NoError(t, err, key.String())
		assert.Equal(t, key, parsed)
	}
}

func TestParseRoomKey_RejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "org", "campus:org-1", "floor:org-1:x", "org:a:b"} {
		_, err := ParseRoomKey(s)
		assert.Error(t, err, s)
	}
}

func TestRoomKey_Validate(t *testing.T) {
	assert.NoError(t, OrganizationRoom("org-1").Validate())
	assert.NoError(t, HeatmapRoom("org-1").Validate())
	assert.NoError(t, CampusRoom("org-1", "north").Validate())
	assert.NoError(t, BuildingRoom("org-1", "bldg-7").Validate())

	assert.Error(t, OrganizationRoom("").Validate())
	assert.Error(t, RoomKey{Kind: RoomCampus, OrganizationID: "org-1"}.Validate())
	assert.Error(t, RoomKey{Kind: RoomBuilding, OrganizationID: "org-1"}.Validate())
	assert.Error(t, RoomKey{Kind: "floor", OrganizationID: "org-1"}.Validate())
}

func TestRoomKey_Matches(t *testing.T) {
	event := roomEvent(EventIssueCreated, "org-1", "north", "bldg-7")

	assert.True(t, OrganizationRoom("org-1").Matches(event))
	assert.False(t, OrganizationRoom("org-2").Matches(event))

	assert.True(t, CampusRoom("org-1", "north").Matches(event))
	assert.False(t, CampusRoom("org-1", "south").Matches(event))

	assert.True(t, BuildingRoom("org-1", "bldg-7").Matches(event))
	assert.False(t, BuildingRoom("org-1", "bldg-8").Matches(event))

	// Lifecycle mutations change the surface, assignment does not.
	assert.True(t, HeatmapRoom("org-1").Matches(event))
	assert.False(t, HeatmapRoom("org-1").Matches(roomEvent(EventIssueAssigned, "org-1", "", "")))
}

func TestRoomsForEvent_TargetSet(t *testing.T) {
	full := roomEvent(EventIssueCreated, "org-1", "north", "bldg-7")
	assert.ElementsMatch(t, []RoomKey{
		OrganizationRoom("org-1"),
		CampusRoom("org-1", "north"),
		BuildingRoom("org-1", "bldg-7"),
		HeatmapRoom("org-1"),
	}, RoomsForEvent(full))

	// Assignments route to scope rooms only.
	assigned := roomEvent(EventIssueAssigned, "org-1", "", "bldg-7")
	assert.ElementsMatch(t, []RoomKey{
		OrganizationRoom("org-1"),
		BuildingRoom("org-1", "bldg-7"),
	}, RoomsForEvent(assigned))

	minimal := roomEvent(EventStatsChanged, "org-1", "", "")
	assert.Equal(t, []RoomKey{OrganizationRoom("org-1")}, RoomsForEvent(minimal))
}

package domain

import (
	"fmt"
	"strings"
)

type RoomKind string

const (
	RoomOrganization RoomKind = "org"
	RoomCampus       RoomKind = "campus"
	RoomBuilding     RoomKind = "building"
	RoomHeatmap      RoomKind = "heatmap"
)

// RoomKey identifies one topic room in the broadcast hierarchy. Rooms form a
// small explicit tree: organization owns optional campus and building
// children, plus a parallel heatmap-only leaf.
type RoomKey struct {
	Kind           RoomKind       `json:"kind"`
	OrganizationID OrganizationID `json:"organization_id"`
	CampusID       CampusID       `json:"campus_id,omitempty"`
	BuildingID     BuildingID     `json:"building_id,omitempty"`
}

func OrganizationRoom(org OrganizationID) RoomKey {
	return RoomKey{Kind: RoomOrganization, OrganizationID: org}
}

func CampusRoom(org OrganizationID, campus CampusID) RoomKey {
	return RoomKey{Kind: RoomCampus, OrganizationID: org, CampusID: campus}
}

func BuildingRoom(org OrganizationID, building BuildingID) RoomKey {
	return RoomKey{Kind: RoomBuilding, OrganizationID: org, BuildingID: building}
}

func HeatmapRoom(org OrganizationID) RoomKey {
	return RoomKey{Kind: RoomHeatmap, OrganizationID: org}
}

// String renders the canonical wire form of the room key.
func (r RoomKey) String() string {
	switch r.Kind {
	case RoomCampus:
		return fmt.Sprintf("campus:%s:%s", r.OrganizationID, r.CampusID)
	case RoomBuilding:
		return fmt.Sprintf("building:%s:%s", r.OrganizationID, r.BuildingID)
	case RoomHeatmap:
		return fmt.Sprintf("heatmap:%s", r.OrganizationID)
	default:
		return fmt.Sprintf("org:%s", r.OrganizationID)
	}
}

// ParseRoomKey parses the wire form produced by String.
func ParseRoomKey(s string) (RoomKey, error) {
	parts := strings.Split(s, ":")
	switch {
	case len(parts) == 2 && parts[0] == string(RoomOrganization):
		return OrganizationRoom(OrganizationID(parts[1])), nil
	case len(parts) == 2 && parts[0] == string(RoomHeatmap):
		return HeatmapRoom(OrganizationID(parts[1])), nil
	case len(parts) == 3 && parts[0] == string(RoomCampus):
		return CampusRoom(OrganizationID(parts[1]), CampusID(parts[2])), nil
	case len(parts) == 3 && parts[0] == string(RoomBuilding):
		return BuildingRoom(OrganizationID(parts[1]), BuildingID(parts[2])), nil
	}
	return RoomKey{}, fmt.Errorf("malformed room key: %q", s)
}

// Validate checks that the key's identifiers are complete for its kind.
func (r RoomKey) Validate() error {
	if r.OrganizationID == "" {
		return fmt.Errorf("room organization_id is required")
	}
	switch r.Kind {
	case RoomOrganization, RoomHeatmap:
		return nil
	case RoomCampus:
		if r.CampusID == "" {
			return fmt.Errorf("campus room requires campus_id")
		}
		return nil
	case RoomBuilding:
		if r.BuildingID == "" {
			return fmt.Errorf("building room requires building_id")
		}
		return nil
	}
	return fmt.Errorf("unknown room kind: %s", r.Kind)
}

// Matches reports whether an event's identifiers fall inside this room's
// scope. Matching walks the hierarchy explicitly instead of comparing key
// prefixes.
func (r RoomKey) Matches(e *EventEnvelope) bool {
	if e.OrganizationID != r.OrganizationID {
		return false
	}
	switch r.Kind {
	case RoomOrganization:
		return true
	case RoomCampus:
		return e.CampusID == r.CampusID
	case RoomBuilding:
		return e.BuildingID == r.BuildingID
	case RoomHeatmap:
		return e.HeatmapRelevant()
	}
	return false
}

// RoomsForEvent computes the target room set for a publish: always the
// organization room, campus/building rooms when those identifiers are set,
// and the heatmap room when the event implies a surface change.
func RoomsForEvent(e *EventEnvelope) []RoomKey {
	rooms := []RoomKey{OrganizationRoom(e.OrganizationID)}
	if e.CampusID != "" {
		rooms = append(rooms, CampusRoom(e.OrganizationID, e.CampusID))
	}
	if e.BuildingID != "" {
		rooms = append(rooms, BuildingRoom(e.OrganizationID, e.BuildingID))
	}
	if e.HeatmapRelevant() {
		rooms = append(rooms, HeatmapRoom(e.OrganizationID))
	}
	return rooms
}

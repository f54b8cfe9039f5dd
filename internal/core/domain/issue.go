package domain

import (
	"fmt"
	"strings"
	"time"
)

type IssueID string
type OrganizationID string
type CampusID string
type BuildingID string
type UserID string

type IssueCategory string

const (
	CategoryStructural  IssueCategory = "structural"
	CategoryElectrical  IssueCategory = "electrical"
	CategoryPlumbing    IssueCategory = "plumbing"
	CategoryHVAC        IssueCategory = "hvac"
	CategorySafety      IssueCategory = "safety"
	CategoryMaintenance IssueCategory = "maintenance"
	CategoryCleanliness IssueCategory = "cleanliness"
	CategoryNetwork     IssueCategory = "network"
	CategoryFurniture   IssueCategory = "furniture"
	CategoryOther       IssueCategory = "other"
)

type IssuePriority string

const (
	PriorityCritical IssuePriority = "critical"
	PriorityHigh     IssuePriority = "high"
	PriorityMedium   IssuePriority = "medium"
	PriorityLow      IssuePriority = "low"
)

type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within coordinate bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// IssueRecord is a single reported facility issue. Location is optional; an
// issue without a location never contributes to the heatmap.
type IssueRecord struct {
	ID             IssueID        `json:"id"`
	OrganizationID OrganizationID `json:"organization_id"`
	CampusID       CampusID       `json:"campus_id,omitempty"`
	BuildingID     BuildingID     `json:"building_id,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Location       *GeoPoint      `json:"location,omitempty"`
	Category       IssueCategory  `json:"category"`
	Severity       int            `json:"severity"`
	Priority       IssuePriority  `json:"priority"`
	Status         IssueStatus    `json:"status"`
	AssigneeID     UserID         `json:"assignee_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// Validate checks the invariants every stored issue must satisfy.
func (i *IssueRecord) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("issue id is required")
	}
	if i.OrganizationID == "" {
		return fmt.Errorf("organization_id is required")
	}
	if i.Severity < 1 || i.Severity > 10 {
		return fmt.Errorf("severity must be between 1 and 10, got %d", i.Severity)
	}
	if !validCategory(i.Category) {
		return fmt.Errorf("unknown category: %s", i.Category)
	}
	if !validPriority(i.Priority) {
		return fmt.Errorf("unknown priority: %s", i.Priority)
	}
	if !validStatus(i.Status) {
		return fmt.Errorf("unknown status: %s", i.Status)
	}
	if i.Location != nil && !i.Location.Valid() {
		return fmt.Errorf("location out of range: lat=%f lng=%f", i.Location.Lat, i.Location.Lng)
	}
	return nil
}

func validCategory(c IssueCategory) bool {
	switch c {
	case CategoryStructural, CategoryElectrical, CategoryPlumbing, CategoryHVAC,
		CategorySafety, CategoryMaintenance, CategoryCleanliness, CategoryNetwork,
		CategoryFurniture, CategoryOther:
		return true
	}
	return false
}

func validPriority(p IssuePriority) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func validStatus(s IssueStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// IssueFilter narrows a query over the issue store. Zero-value fields match
// everything; list fields match any element.
type IssueFilter struct {
	OrganizationID OrganizationID  `json:"organization_id"`
	CampusID       CampusID        `json:"campus_id,omitempty"`
	BuildingIDs    []BuildingID    `json:"building_ids,omitempty"`
	Categories     []IssueCategory `json:"categories,omitempty"`
	Priorities     []IssuePriority `json:"priorities,omitempty"`
	Statuses       []IssueStatus   `json:"statuses,omitempty"`
	CreatedAfter   *time.Time      `json:"created_after,omitempty"`
	CreatedBefore  *time.Time      `json:"created_before,omitempty"`
}

// Matches reports whether the issue satisfies every set filter field.
func (f *IssueFilter) Matches(issue *IssueRecord) bool {
	if f.OrganizationID != "" && issue.OrganizationID != f.OrganizationID {
		return false
	}
	if f.CampusID != "" && issue.CampusID != f.CampusID {
		return false
	}
	if len(f.BuildingIDs) > 0 && !containsBuilding(f.BuildingIDs, issue.BuildingID) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, issue.Category) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, issue.Priority) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, issue.Status) {
		return false
	}
	if f.CreatedAfter != nil && issue.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && issue.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

// Signature returns a stable cache-key component for the filter.
func (f *IssueFilter) Signature() string {
	var b strings.Builder
	fmt.Fprintf(&b, "o=%s;c=%s;b=", f.OrganizationID, f.CampusID)
	for _, id := range f.BuildingIDs {
		fmt.Fprintf(&b, "%s,", id)
	}
	b.WriteString(";cat=")
	for _, c := range f.Categories {
		fmt.Fprintf(&b, "%s,", c)
	}
	b.WriteString(";pri=")
	for _, p := range f.Priorities {
		fmt.Fprintf(&b, "%s,", p)
	}
	b.WriteString(";st=")
	for _, s := range f.Statuses {
		fmt.Fprintf(&b, "%s,", s)
	}
	if f.CreatedAfter != nil {
		fmt.Fprintf(&b, ";after=%d", f.CreatedAfter.Unix())
	}
	if f.CreatedBefore != nil {
		fmt.Fprintf(&b, ";before=%d", f.CreatedBefore.Unix())
	}
	return b.String()
}

func containsBuilding(list []BuildingID, v BuildingID) bool {
	for _, b := range list {
		if b == v {
			return true
		}
	}
	return false
}

func containsCategory(list []IssueCategory, v IssueCategory) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func containsPriority(list []IssuePriority, v IssuePriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func containsStatus(list []IssueStatus, v IssueStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

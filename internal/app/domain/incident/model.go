package incident

import (
	"strings"
	"time"
)

// Statuses.
const (
	StatusReported   = "REPORTED"
	StatusInProgress = "IN_PROGRESS"
	StatusClosed     = "CLOSED"
)

// Priorities.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Incident is a problem reported inside a building.
type Incident struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	UnitID      *int64    `json:"unitId,omitempty" db:"unit_id"`
	BuildingID  int64     `json:"buildingId" db:"building_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Priority    string    `json:"priority" db:"priority"`
	Status      string    `json:"status" db:"status"`
	AssignedTo  *int64    `json:"assignedToUserId,omitempty" db:"assigned_to"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Filter narrows incident listings. Zero times are open bounds.
type Filter struct {
	BuildingID int64
	UserID     int64
	From       time.Time
	To         time.Time
}

// NormalizeStatus maps free text onto a known status, defaulting to REPORTED.
func NormalizeStatus(status string) string {
	switch s := strings.ToUpper(strings.TrimSpace(status)); s {
	case StatusReported, StatusInProgress, StatusClosed:
		return s
	default:
		return StatusReported
	}
}

// NormalizePriority maps free text onto a known priority, defaulting to MEDIUM.
func NormalizePriority(priority string) string {
	switch p := strings.ToUpper(strings.TrimSpace(priority)); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

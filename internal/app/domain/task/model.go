package task

import (
	"strings"
	"time"
)

// Statuses.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Task is a job assigned to building staff.
type Task struct {
	ID          int64      `json:"id" db:"id"`
	BuildingID  int64      `json:"buildingId" db:"building_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	AssigneeIDs []int64    `json:"assigneeIds" db:"-"`
	Status      string     `json:"status" db:"status"`
	Priority    string     `json:"priority" db:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty" db:"due_date"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	CreatedBy   *int64     `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// NormalizeStatus defaults unknown values to PENDING.
func NormalizeStatus(status string) string {
	switch s := strings.ToUpper(strings.TrimSpace(status)); s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return s
	default:
		return StatusPending
	}
}

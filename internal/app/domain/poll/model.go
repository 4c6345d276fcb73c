package poll

import "time"

// Statuses.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Poll is a building-wide vote.
type Poll struct {
	ID          int64      `json:"id" db:"id"`
	BuildingID  int64      `json:"buildingId" db:"building_id"`
	CreatedBy   int64      `json:"createdBy" db:"created_by"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	ClosesAt    time.Time  `json:"closesAt" db:"closes_at"`
	Status      string     `json:"status" db:"status"`
	ClosedAt    *time.Time `json:"closedAt,omitempty" db:"closed_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// Expired reports an open poll past its closing time.
func (p Poll) Expired(now time.Time) bool {
	return p.Status == StatusOpen && !p.ClosesAt.After(now)
}

// Option is one choice of a poll.
type Option struct {
	ID       int64  `json:"id" db:"id"`
	PollID   int64  `json:"pollId" db:"poll_id"`
	Label    string `json:"label" db:"label"`
	Position int    `json:"position" db:"position"`
}

// Vote is a user's single choice on a poll.
type Vote struct {
	ID        int64     `json:"id" db:"id"`
	PollID    int64     `json:"pollId" db:"poll_id"`
	OptionID  int64     `json:"optionId" db:"option_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

package building

import "time"

// Request statuses.
const (
	RequestPending  = "PENDING"
	RequestApproved = "APPROVED"
	RequestRejected = "REJECTED"
)

// Building is a managed community.
type Building struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Commune   string    `json:"commune,omitempty" db:"commune"`
	City      string    `json:"city,omitempty" db:"city"`
	Latitude  *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Request is a community registration awaiting administrator review.
type Request struct {
	ID          int64      `json:"id" db:"id"`
	RequestedBy *int64     `json:"requestedBy,omitempty" db:"requested_by"`
	Name        string     `json:"name" db:"name"`
	Address     string     `json:"address" db:"address"`
	Commune     string     `json:"commune,omitempty" db:"commune"`
	City        string     `json:"city,omitempty" db:"city"`
	Latitude    *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64   `json:"longitude,omitempty" db:"longitude"`
	ProofText   string     `json:"proofText" db:"proof_text"`
	Status      string     `json:"status" db:"status"`
	ReviewedBy  *int64     `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewNotes string     `json:"reviewNotes,omitempty" db:"review_notes"`
	BuildingID  *int64     `json:"buildingId,omitempty" db:"building_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty" db:"reviewed_at"`
}

package parcel

import "time"

// Statuses.
const (
	StatusPending   = "PENDING"
	StatusCollected = "COLLECTED"
)

// Parcel is a delivery held at the concierge desk.
type Parcel struct {
	ID          int64      `json:"id" db:"id"`
	BuildingID  int64      `json:"buildingId" db:"building_id"`
	UnitID      int64      `json:"unitId" db:"unit_id"`
	UnitNumber  string     `json:"unitNumber" db:"unit_number"`
	UnitTower   string     `json:"unitTower,omitempty" db:"unit_tower"`
	UnitFloor   string     `json:"unitFloor,omitempty" db:"unit_floor"`
	ReceivedBy  int64      `json:"receivedByUserId" db:"received_by"`
	RetrievedBy *int64     `json:"retrievedByUserId,omitempty" db:"retrieved_by"`
	Sender      string     `json:"sender" db:"sender"`
	Description string     `json:"description" db:"description"`
	Status      string     `json:"status" db:"status"`
	ReceivedAt  time.Time  `json:"receivedAt" db:"received_at"`
	RetrievedAt *time.Time `json:"retrievedAt,omitempty" db:"retrieved_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// Filter narrows parcel listings; empty fields match everything.
type Filter struct {
	BuildingID int64
	UnitID     int64
	Status     string
}

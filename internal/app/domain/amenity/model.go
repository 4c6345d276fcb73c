package amenity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Amenity statuses.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Reservation statuses.
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
)

// Amenity is a bookable common space.
type Amenity struct {
	ID          int64           `json:"id" db:"id"`
	BuildingID  int64           `json:"buildingId" db:"building_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	MaxCapacity *int            `json:"maxCapacity,omitempty" db:"max_capacity"`
	CostPerSlot decimal.Decimal `json:"costPerSlot" db:"cost_per_slot"`
	Rules       string          `json:"rules,omitempty" db:"rules"`
	ImageURL    string          `json:"imageUrl,omitempty" db:"image_url"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// TimeSlot is a weekly bookable window. DayOfWeek runs 1 (Monday) to 7
// (Sunday); times are "HH:mm".
type TimeSlot struct {
	ID        int64  `json:"id" db:"id"`
	AmenityID int64  `json:"amenityId" db:"amenity_id"`
	DayOfWeek int    `json:"dayOfWeek" db:"day_of_week"`
	StartTime string `json:"startTime" db:"start_time"`
	EndTime   string `json:"endTime" db:"end_time"`
	Active    bool   `json:"active" db:"active"`
}

// Reservation books a slot on a date.
type Reservation struct {
	ID          int64      `json:"id" db:"id"`
	AmenityID   int64      `json:"amenityId" db:"amenity_id"`
	UserID      int64      `json:"userId" db:"user_id"`
	TimeSlotID  int64      `json:"timeSlotId" db:"time_slot_id"`
	Date        time.Time  `json:"date" db:"reservation_date"`
	StartTime   string     `json:"startTime" db:"start_time"`
	EndTime     string     `json:"endTime" db:"end_time"`
	Status      string     `json:"status" db:"status"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// ISODayOfWeek converts Go's Sunday-first weekday to 1..7 Monday-first.
func ISODayOfWeek(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

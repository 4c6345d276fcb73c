package visit

import (
	"strings"
	"time"
)

// Authorization statuses.
const (
	StatusScheduled = "SCHEDULED"
	StatusCheckedIn = "CHECKED_IN"
	StatusExpired   = "EXPIRED"
)

// DefaultVisitorType is used when none is given.
const DefaultVisitorType = "VISIT"

// Visit is a visitor authorization for a unit and time window.
type Visit struct {
	ID              int64      `json:"id" db:"id"`
	CreatedBy       int64      `json:"createdBy" db:"created_by"`
	UnitID          int64      `json:"unitId" db:"unit_id"`
	BuildingID      int64      `json:"buildingId" db:"building_id"`
	VisitorName     string     `json:"visitorName" db:"visitor_name"`
	VisitorDocument string     `json:"visitorDocument,omitempty" db:"visitor_document"`
	VisitorType     string     `json:"visitorType" db:"visitor_type"`
	Company         string     `json:"company,omitempty" db:"company"`
	ValidFrom       time.Time  `json:"validFrom" db:"valid_from"`
	ValidUntil      time.Time  `json:"validUntil" db:"valid_until"`
	Status          string     `json:"status" db:"status"`
	CheckInAt       *time.Time `json:"checkInAt,omitempty" db:"check_in_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
}

// DerivedStatus reports the status as seen at now: check-ins are final,
// windows in the past are expired.
func (v Visit) DerivedStatus(now time.Time) string {
	if strings.EqualFold(v.Status, StatusCheckedIn) {
		return StatusCheckedIn
	}
	if v.ValidUntil.Before(now) {
		return StatusExpired
	}
	return StatusScheduled
}

// AccessLog records a physical entry.
type AccessLog struct {
	ID           int64     `json:"id" db:"id"`
	VisitID      int64     `json:"visitId" db:"visit_id"`
	OccurredAt   time.Time `json:"occurredAt" db:"occurred_at"`
	Gate         string    `json:"gate" db:"gate"`
	RegisteredBy int64     `json:"registeredBy" db:"registered_by"`
	Kind         string    `json:"kind" db:"kind"`
}

// Contact is a frequent visitor saved by a user.
type Contact struct {
	ID              int64     `json:"id" db:"id"`
	OwnerID         int64     `json:"ownerId" db:"owner_id"`
	VisitorName     string    `json:"visitorName" db:"visitor_name"`
	VisitorDocument string    `json:"visitorDocument,omitempty" db:"visitor_document"`
	UnitID          *int64    `json:"unitId,omitempty" db:"unit_id"`
	Alias           string    `json:"alias,omitempty" db:"alias"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// NormalizeDocument strips dots and spaces and upper-cases an identity
// document number.
func NormalizeDocument(document string) string {
	document = strings.ReplaceAll(document, ".", "")
	document = strings.ReplaceAll(document, " ", "")
	return strings.ToUpper(document)
}

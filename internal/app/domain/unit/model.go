package unit

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Unit statuses. Deleted units are kept for history.
const (
	StatusActive  = "ACTIVE"
	StatusDeleted = "DELETED"
)

// Unit is an apartment or house inside a building.
type Unit struct {
	ID           int64           `json:"id" db:"id"`
	BuildingID   int64           `json:"buildingId" db:"building_id"`
	Number       string          `json:"number" db:"number"`
	Tower        string          `json:"tower" db:"tower"`
	Floor        string          `json:"floor" db:"floor"`
	Aliquot      decimal.Decimal `json:"aliquot" db:"aliquot"`
	SquareMeters decimal.Decimal `json:"squareMeters" db:"square_meters"`
	Status       string          `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// Label renders "Torre T Depto N - Piso F", omitting blank parts.
func (u Unit) Label() string {
	var b strings.Builder
	if tower := strings.TrimSpace(u.Tower); tower != "" {
		b.WriteString("Torre ")
		b.WriteString(tower)
		b.WriteString(" ")
	}
	b.WriteString("Depto ")
	b.WriteString(strings.TrimSpace(u.Number))
	if floor := strings.TrimSpace(u.Floor); floor != "" {
		b.WriteString(" - Piso ")
		b.WriteString(floor)
	}
	return strings.TrimSpace(b.String())
}

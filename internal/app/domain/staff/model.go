package staff

import "time"

// Member is a building employee (cleaning, security, maintenance).
type Member struct {
	ID         int64     `json:"id" db:"id"`
	BuildingID int64     `json:"buildingId" db:"building_id"`
	UserID     *int64    `json:"userId,omitempty" db:"user_id"`
	FirstName  string    `json:"firstName" db:"first_name"`
	LastName   string    `json:"lastName" db:"last_name"`
	RUT        string    `json:"rut" db:"rut"`
	Email      string    `json:"email,omitempty" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	Position   string    `json:"position" db:"position"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

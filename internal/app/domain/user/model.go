package user

import "time"

// Role identifiers as stored in the roles table.
const (
	RoleAdmin     int64 = 1
	RoleResident  int64 = 2
	RoleConcierge int64 = 3
	RoleStaff     int64 = 4
)

// Account statuses.
const (
	StatusActive   = "ACTIVE"
	StatusPending  = "PENDING"
	StatusInactive = "INACTIVE"
)

// User is a person with a login: administrator, concierge, resident or staff.
type User struct {
	ID             int64      `json:"id" db:"id"`
	UnitID         *int64     `json:"unitId" db:"unit_id"`
	RoleID         int64      `json:"roleId" db:"role_id"`
	FirstName      string     `json:"firstName" db:"first_name"`
	LastName       string     `json:"lastName" db:"last_name"`
	BirthDate      *time.Time `json:"birthDate,omitempty" db:"birth_date"`
	Email          string     `json:"email" db:"email"`
	Phone          string     `json:"phone" db:"phone"`
	DocumentNumber string     `json:"documentNumber" db:"document_number"`
	Resident       bool       `json:"resident" db:"resident"`
	PasswordHash   string     `json:"-" db:"password_hash"`
	Status         string     `json:"status" db:"status"`
	AvatarURL      string     `json:"avatarUrl,omitempty" db:"avatar_url"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsAdmin reports the administrator role.
func (u User) IsAdmin() bool { return u.RoleID == RoleAdmin }

// IsConcierge reports the concierge role.
func (u User) IsConcierge() bool { return u.RoleID == RoleConcierge }

// IsManager reports administrators and concierges.
func (u User) IsManager() bool { return u.IsAdmin() || u.IsConcierge() }

// FullName joins first and last name.
func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// TokenKind distinguishes one-time tokens.
type TokenKind string

const (
	TokenConfirmation  TokenKind = "CONFIRMATION"
	TokenPasswordReset TokenKind = "PASSWORD_RESET"
)

// Token is a single-use secret mailed to a user.
type Token struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"userId" db:"user_id"`
	Kind      TokenKind  `json:"kind" db:"kind"`
	Value     string     `json:"-" db:"value"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
}

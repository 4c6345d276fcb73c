package users

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/staff"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/auth"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages user profiles and administrator-created accounts.
type Service struct {
	users     storage.UserStore
	units     storage.UnitStore
	staff     storage.StaffStore
	auth      *auth.Service
	buildings *buildings.Service
	log       *logger.Logger
}

// New constructs a user service.
func New(users storage.UserStore, units storage.UnitStore, staffStore storage.StaffStore, authSvc *auth.Service, b *buildings.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		users:     users,
		units:     units,
		staff:     staffStore,
		auth:      authSvc,
		buildings: b,
		log:       log,
	}
}

// ProfileInput holds editable profile fields.
type ProfileInput struct {
	FirstName      string
	LastName       string
	Phone          string
	DocumentNumber string
	BirthDate      *time.Time
	AvatarURL      string
}

// CreateInput is an administrator-created account.
type CreateInput struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	DocumentNumber string
	RoleID         int64
	UnitID         *int64
	Resident       bool
	Position       string
}

// Resident is a user linked to a unit of the building.
type Resident struct {
	user.User
	UnitNumber string `json:"unitNumber"`
	UnitTower  string `json:"unitTower,omitempty"`
}

// PublicProfile is what neighbours can see of each other.
type PublicProfile struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	UnitNumber string `json:"unitNumber,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
}

// Me returns the caller with building membership.
func (s *Service) Me(ctx context.Context, u user.User) (auth.Profile, error) {
	return s.auth.Profile(ctx, u)
}

// MyUnit returns the caller's unit.
func (s *Service) MyUnit(ctx context.Context, u user.User) (unit.Unit, error) {
	if u.UnitID == nil {
		return unit.Unit{}, apperrors.NotFound("user has no unit")
	}
	un, err := s.units.GetUnit(ctx, *u.UnitID)
	return un, apperrors.FromStore(err, "unit not found")
}

// UpdateProfile replaces the caller's personal data.
func (s *Service) UpdateProfile(ctx context.Context, u user.User, in ProfileInput) (user.User, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	phone := strings.TrimSpace(in.Phone)
	document := strings.TrimSpace(in.DocumentNumber)
	if first == "" || last == "" || phone == "" || document == "" {
		return user.User{}, apperrors.Validation("first name, last name, phone and document are required")
	}
	current, err := s.users.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, apperrors.FromStore(err, "user not found")
	}
	current.FirstName = first
	current.LastName = last
	current.Phone = phone
	current.DocumentNumber = document
	current.BirthDate = in.BirthDate
	if avatar := strings.TrimSpace(in.AvatarURL); avatar != "" {
		current.AvatarURL = avatar
	}
	updated, err := s.users.UpdateUser(ctx, current)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("profile updated")
	return updated, nil
}

// ChangePassword verifies the current password before replacing it.
func (s *Service) ChangePassword(ctx context.Context, u user.User, current, next string) error {
	stored, err := s.users.GetUser(ctx, u.ID)
	if err != nil {
		return apperrors.FromStore(err, "user not found")
	}
	if !auth.CheckPassword(stored.PasswordHash, current) {
		return apperrors.Validation("current password is incorrect")
	}
	if err := auth.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := s.auth.HashPassword(next)
	if err != nil {
		return err
	}
	stored.PasswordHash = hash
	if _, err := s.users.UpdateUser(ctx, stored); err != nil {
		return err
	}
	s.log.WithField("user_id", u.ID).Info("password changed")
	return nil
}

// AdminCreateUser creates a pending account in the selected building and
// mails its confirmation link. Non-resident employees also get a staff record.
func (s *Service) AdminCreateUser(ctx context.Context, actor user.Actor, in CreateInput) (user.User, error) {
	if !actor.User.IsAdmin() {
		return user.User{}, apperrors.Forbidden("only administrators can create users")
	}
	if !actor.HasBuilding() {
		return user.User{}, apperrors.BuildingRequired()
	}
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" || last == "" {
		return user.User{}, apperrors.Validation("first and last name are required")
	}
	email, err := auth.NormalizeEmail(in.Email)
	if err != nil {
		return user.User{}, err
	}
	role := in.RoleID
	if role == 0 {
		role = user.RoleResident
	}
	if role < user.RoleAdmin || role > user.RoleStaff {
		return user.User{}, apperrors.Validation("unknown role %d", role)
	}
	if in.UnitID != nil {
		un, err := s.units.GetUnit(ctx, *in.UnitID)
		if err != nil {
			return user.User{}, apperrors.FromStore(err, "unit not found")
		}
		if un.BuildingID != actor.BuildingID {
			return user.User{}, apperrors.Validation("unit does not belong to the selected building")
		}
	}

	hash, err := s.auth.HashPassword(auth.RandomPassword())
	if err != nil {
		return user.User{}, err
	}
	created, err := s.users.CreateUser(ctx, user.User{
		UnitID:         in.UnitID,
		RoleID:         role,
		FirstName:      first,
		LastName:       last,
		Email:          email,
		Phone:          strings.TrimSpace(in.Phone),
		DocumentNumber: strings.TrimSpace(in.DocumentNumber),
		Resident:       in.Resident,
		PasswordHash:   hash,
		Status:         user.StatusPending,
	})
	if err != nil {
		return user.User{}, err
	}
	if err := s.buildings.GrantAccess(ctx, created.ID, actor.BuildingID); err != nil {
		return user.User{}, err
	}
	if !in.Resident && role != user.RoleAdmin && role != user.RoleResident {
		if err := s.createStaffRecord(ctx, created, actor.BuildingID, in.Position); err != nil {
			return user.User{}, err
		}
	}
	if err := s.auth.Invite(ctx, created); err != nil {
		s.log.WithError(err).WithField("user_id", created.ID).Warn("invitation mail failed")
	}

	s.log.WithField("user_id", created.ID).
		WithField("building_id", actor.BuildingID).
		WithField("created_by", actor.ID()).
		Info("user created by administrator")
	return created, nil
}

func (s *Service) createStaffRecord(ctx context.Context, u user.User, buildingID int64, position string) error {
	if s.staff == nil {
		return nil
	}
	position = strings.TrimSpace(position)
	if position == "" {
		position = "Conserje"
		if u.RoleID == user.RoleStaff {
			position = "Personal"
		}
	}
	userID := u.ID
	_, err := s.staff.CreateStaff(ctx, staff.Member{
		BuildingID: buildingID,
		UserID:     &userID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		RUT:        u.DocumentNumber,
		Email:      u.Email,
		Phone:      u.Phone,
		Position:   position,
		Active:     true,
	})
	return err
}

// ListResidents returns users linked to units of the selected building.
func (s *Service) ListResidents(ctx context.Context, actor user.Actor) ([]Resident, error) {
	if !actor.User.IsManager() {
		return nil, apperrors.Forbidden("only building managers can list residents")
	}
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	units, err := s.units.ListUnits(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	var result []Resident
	for _, un := range units {
		linked, err := s.users.ListUsersByUnit(ctx, un.ID)
		if err != nil {
			return nil, err
		}
		for _, u := range linked {
			result = append(result, Resident{User: u, UnitNumber: un.Number, UnitTower: un.Tower})
		}
	}
	return result, nil
}

// PublicProfile returns a neighbour's card when they share the building.
func (s *Service) PublicProfile(ctx context.Context, actor user.Actor, id int64) (PublicProfile, error) {
	if !actor.HasBuilding() {
		return PublicProfile{}, apperrors.BuildingRequired()
	}
	target, err := s.users.GetUser(ctx, id)
	if err != nil {
		return PublicProfile{}, apperrors.FromStore(err, "user not found")
	}
	ok, err := s.buildings.HasAccess(ctx, target, actor.BuildingID)
	if err != nil {
		return PublicProfile{}, err
	}
	if !ok {
		return PublicProfile{}, apperrors.NotFound("user not found")
	}
	p := PublicProfile{
		ID:        target.ID,
		FirstName: target.FirstName,
		LastName:  target.LastName,
		AvatarURL: target.AvatarURL,
	}
	if target.UnitID != nil {
		if un, err := s.units.GetUnit(ctx, *target.UnitID); err == nil {
			p.UnitNumber = un.Number
		}
	}
	return p, nil
}

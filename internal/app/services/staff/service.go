package staff

import (
	"context"
	"strings"

	"github.com/domu-platform/domu/internal/app/domain/staff"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages the staff roster of a building.
type Service struct {
	store storage.StaffStore
	log   *logger.Logger
}

// New constructs a staff service.
func New(store storage.StaffStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("staff")
	}
	return &Service{store: store, log: log}
}

// Input creates or updates a staff member.
type Input struct {
	UserID    *int64
	FirstName string
	LastName  string
	RUT       string
	Email     string
	Phone     string
	Position  string
	Active    *bool
}

func normalizeRUT(rut string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(rut), ".", ""))
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return apperrors.Validation("firstName is required")
	case strings.TrimSpace(in.LastName) == "":
		return apperrors.Validation("lastName is required")
	case normalizeRUT(in.RUT) == "":
		return apperrors.Validation("rut is required")
	case strings.TrimSpace(in.Position) == "":
		return apperrors.Validation("position is required")
	}
	return nil
}

func requireAdmin(actor user.Actor) error {
	if !actor.User.IsAdmin() {
		return apperrors.Forbidden("only administrators can manage staff")
	}
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	return nil
}

// checkUnique rejects a RUT or email already used by another member.
func (s *Service) checkUnique(ctx context.Context, rut, email string, selfID int64) error {
	existing, err := s.store.FindStaffByRUT(ctx, rut)
	switch {
	case err == nil && existing.ID != selfID:
		return apperrors.Conflict("a staff member with RUT " + rut + " already exists")
	case err != nil && !apperrors.IsNotFound(err):
		return err
	}
	if email == "" {
		return nil
	}
	existing, err = s.store.FindStaffByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return apperrors.Conflict("a staff member with email " + email + " already exists")
	case err != nil && !apperrors.IsNotFound(err):
		return err
	}
	return nil
}

// Create adds a staff member to the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in Input) (staff.Member, error) {
	if err := requireAdmin(actor); err != nil {
		return staff.Member{}, err
	}
	if err := in.validate(); err != nil {
		return staff.Member{}, err
	}
	rut := normalizeRUT(in.RUT)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.checkUnique(ctx, rut, email, 0); err != nil {
		return staff.Member{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	m, err := s.store.CreateStaff(ctx, staff.Member{
		BuildingID: actor.BuildingID,
		UserID:     in.UserID,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		RUT:        rut,
		Email:      email,
		Phone:      strings.TrimSpace(in.Phone),
		Position:   strings.TrimSpace(in.Position),
		Active:     active,
	})
	if err != nil {
		return staff.Member{}, err
	}
	s.log.WithField("staff_id", m.ID).WithField("building_id", m.BuildingID).Info("staff member created")
	return m, nil
}

// Update replaces the editable fields of a member.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, in Input) (staff.Member, error) {
	m, err := s.load(ctx, actor, id)
	if err != nil {
		return staff.Member{}, err
	}
	if err := in.validate(); err != nil {
		return staff.Member{}, err
	}
	rut := normalizeRUT(in.RUT)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.checkUnique(ctx, rut, email, m.ID); err != nil {
		return staff.Member{}, err
	}
	m.UserID = in.UserID
	m.FirstName = strings.TrimSpace(in.FirstName)
	m.LastName = strings.TrimSpace(in.LastName)
	m.RUT = rut
	m.Email = email
	m.Phone = strings.TrimSpace(in.Phone)
	m.Position = strings.TrimSpace(in.Position)
	if in.Active != nil {
		m.Active = *in.Active
	}
	return s.store.UpdateStaff(ctx, m)
}

// Delete removes a member and unassigns them from tasks.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteStaff(ctx, id); err != nil {
		return err
	}
	s.log.WithField("staff_id", id).Info("staff member deleted")
	return nil
}

// Get returns one member of the selected building.
func (s *Service) Get(ctx context.Context, actor user.Actor, id int64) (staff.Member, error) {
	return s.load(ctx, actor, id)
}

// List returns the whole roster of the selected building.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]staff.Member, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListStaff(ctx, actor.BuildingID, false)
}

// ListActive returns active members. Managers use it to pick task assignees.
func (s *Service) ListActive(ctx context.Context, actor user.Actor) ([]staff.Member, error) {
	if !actor.User.IsManager() {
		return nil, apperrors.Forbidden("only building managers can list staff")
	}
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	return s.store.ListStaff(ctx, actor.BuildingID, true)
}

// Me returns the staff record linked to the caller's account.
func (s *Service) Me(ctx context.Context, actor user.Actor) (staff.Member, error) {
	m, err := s.store.FindStaffByUser(ctx, actor.ID())
	if err != nil {
		return staff.Member{}, apperrors.FromStore(err, "no staff record is linked to this account")
	}
	return m, nil
}

func (s *Service) load(ctx context.Context, actor user.Actor, id int64) (staff.Member, error) {
	if err := requireAdmin(actor); err != nil {
		return staff.Member{}, err
	}
	m, err := s.store.GetStaff(ctx, id)
	if err != nil {
		return staff.Member{}, apperrors.FromStore(err, "staff member not found")
	}
	if m.BuildingID != actor.BuildingID {
		return staff.Member{}, apperrors.NotFound("staff member not found")
	}
	return m, nil
}

package units

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages housing units and resident links.
type Service struct {
	units     storage.UnitStore
	users     storage.UserStore
	buildings *buildings.Service
	log       *logger.Logger
}

// New constructs a unit service.
func New(units storage.UnitStore, users storage.UserStore, b *buildings.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("units")
	}
	return &Service{units: units, users: users, buildings: b, log: log}
}

// Input holds the editable unit fields.
type Input struct {
	Number       string
	Tower        string
	Floor        string
	Aliquot      decimal.Decimal
	SquareMeters decimal.Decimal
}

// Detail is a unit with its linked residents.
type Detail struct {
	unit.Unit
	Residents []user.User `json:"residents"`
}

func requireAdmin(actor user.Actor) error {
	if !actor.User.IsAdmin() {
		return apperrors.Forbidden("only administrators can manage units")
	}
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	return nil
}

func (in Input) normalize() (Input, error) {
	in.Number = strings.TrimSpace(in.Number)
	in.Tower = strings.TrimSpace(in.Tower)
	in.Floor = strings.TrimSpace(in.Floor)
	if in.Number == "" || in.Tower == "" || in.Floor == "" {
		return Input{}, apperrors.Validation("number, tower and floor are required")
	}
	if in.Aliquot.IsNegative() {
		return Input{}, apperrors.Validation("aliquot cannot be negative")
	}
	if !in.SquareMeters.IsPositive() {
		return Input{}, apperrors.Validation("square meters must be positive")
	}
	return in, nil
}

// Create adds a unit to the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in Input) (unit.Unit, error) {
	if err := requireAdmin(actor); err != nil {
		return unit.Unit{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return unit.Unit{}, err
	}
	if err := s.ensureUniqueNumber(ctx, actor.BuildingID, in.Number, 0); err != nil {
		return unit.Unit{}, err
	}
	created, err := s.units.CreateUnit(ctx, unit.Unit{
		BuildingID:   actor.BuildingID,
		Number:       in.Number,
		Tower:        in.Tower,
		Floor:        in.Floor,
		Aliquot:      in.Aliquot,
		SquareMeters: in.SquareMeters,
		Status:       unit.StatusActive,
	})
	if err != nil {
		return unit.Unit{}, err
	}
	s.log.WithField("unit_id", created.ID).
		WithField("building_id", created.BuildingID).
		Info("unit created")
	return created, nil
}

// Update edits a unit of the selected building.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, in Input) (unit.Unit, error) {
	if err := requireAdmin(actor); err != nil {
		return unit.Unit{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return unit.Unit{}, err
	}
	current, err := s.load(ctx, actor, id)
	if err != nil {
		return unit.Unit{}, err
	}
	if err := s.ensureUniqueNumber(ctx, actor.BuildingID, in.Number, id); err != nil {
		return unit.Unit{}, err
	}
	current.Number = in.Number
	current.Tower = in.Tower
	current.Floor = in.Floor
	current.Aliquot = in.Aliquot
	current.SquareMeters = in.SquareMeters
	return s.units.UpdateUnit(ctx, current)
}

// List returns active units of the selected building with their residents.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]Detail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	list, err := s.units.ListUnits(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	out := make([]Detail, 0, len(list))
	for _, un := range list {
		residents, err := s.users.ListUsersByUnit(ctx, un.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Detail{Unit: un, Residents: residents})
	}
	return out, nil
}

// Get returns one unit with its residents.
func (s *Service) Get(ctx context.Context, actor user.Actor, id int64) (Detail, error) {
	if err := requireAdmin(actor); err != nil {
		return Detail{}, err
	}
	un, err := s.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	residents, err := s.users.ListUsersByUnit(ctx, un.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Unit: un, Residents: residents}, nil
}

// Delete soft-deletes a unit without residents.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	un, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	residents, err := s.users.ListUsersByUnit(ctx, id)
	if err != nil {
		return err
	}
	if len(residents) > 0 {
		return apperrors.Validation("unit still has linked residents")
	}
	un.Status = unit.StatusDeleted
	if _, err := s.units.UpdateUnit(ctx, un); err != nil {
		return err
	}
	s.log.WithField("unit_id", id).Info("unit deleted")
	return nil
}

// LinkResident assigns the unit to a user with access to its building.
func (s *Service) LinkResident(ctx context.Context, actor user.Actor, unitID, userID int64) (user.User, error) {
	if err := requireAdmin(actor); err != nil {
		return user.User{}, err
	}
	un, err := s.load(ctx, actor, unitID)
	if err != nil {
		return user.User{}, err
	}
	target, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, apperrors.FromStore(err, "user not found")
	}
	ok, err := s.buildings.HasAccess(ctx, target, un.BuildingID)
	if err != nil {
		return user.User{}, err
	}
	if !ok {
		return user.User{}, apperrors.Validation("user has no access to the unit's building")
	}
	target.UnitID = &un.ID
	target.Resident = true
	updated, err := s.users.UpdateUser(ctx, target)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("unit_id", un.ID).
		WithField("user_id", userID).
		Info("resident linked")
	return updated, nil
}

// UnlinkResident clears the user's unit when it is this one.
func (s *Service) UnlinkResident(ctx context.Context, actor user.Actor, unitID, userID int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if _, err := s.load(ctx, actor, unitID); err != nil {
		return err
	}
	target, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return apperrors.FromStore(err, "user not found")
	}
	if target.UnitID == nil || *target.UnitID != unitID {
		return apperrors.Validation("user is not linked to this unit")
	}
	target.UnitID = nil
	if _, err := s.users.UpdateUser(ctx, target); err != nil {
		return err
	}
	s.log.WithField("unit_id", unitID).
		WithField("user_id", userID).
		Info("resident unlinked")
	return nil
}

func (s *Service) load(ctx context.Context, actor user.Actor, id int64) (unit.Unit, error) {
	un, err := s.units.GetUnit(ctx, id)
	if err != nil {
		return unit.Unit{}, apperrors.FromStore(err, "unit not found")
	}
	if un.BuildingID != actor.BuildingID || un.Status == unit.StatusDeleted {
		return unit.Unit{}, apperrors.NotFound("unit not found")
	}
	return un, nil
}

func (s *Service) ensureUniqueNumber(ctx context.Context, buildingID int64, number string, self int64) error {
	list, err := s.units.ListUnits(ctx, buildingID)
	if err != nil {
		return err
	}
	for _, un := range list {
		if un.ID != self && strings.EqualFold(un.Number, number) {
			return apperrors.Conflict("unit number already exists in this building")
		}
	}
	return nil
}

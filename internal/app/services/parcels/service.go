package parcels

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/parcel"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages parcels received at the concierge desk.
type Service struct {
	store storage.ParcelStore
	units storage.UnitStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a parcel service.
func New(store storage.ParcelStore, units storage.UnitStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("parcels")
	}
	return &Service{store: store, units: units, log: log, now: time.Now}
}

// Input describes a parcel as entered by the concierge.
type Input struct {
	UnitID      int64
	Sender      string
	Description string
	ReceivedAt  *time.Time
}

func (in Input) validate() error {
	switch {
	case in.UnitID <= 0:
		return apperrors.Validation("unitId is required")
	case strings.TrimSpace(in.Sender) == "":
		return apperrors.Validation("sender is required")
	case strings.TrimSpace(in.Description) == "":
		return apperrors.Validation("description is required")
	}
	return nil
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func requireManager(actor user.Actor) error {
	if !actor.User.IsManager() {
		return apperrors.Forbidden("only building managers can manage parcels")
	}
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	return nil
}

func (s *Service) unitInBuilding(ctx context.Context, unitID, buildingID int64) (unit.Unit, error) {
	u, err := s.units.GetUnit(ctx, unitID)
	if err != nil {
		return unit.Unit{}, apperrors.FromStore(err, "unit not found")
	}
	if u.BuildingID != buildingID {
		return unit.Unit{}, apperrors.Validation("the unit does not belong to the selected building")
	}
	return u, nil
}

func (s *Service) parcelInBuilding(ctx context.Context, id, buildingID int64) (parcel.Parcel, error) {
	p, err := s.store.GetParcel(ctx, id)
	if err != nil {
		return parcel.Parcel{}, apperrors.FromStore(err, "parcel not found")
	}
	if p.BuildingID != buildingID {
		return parcel.Parcel{}, apperrors.NotFound("parcel not found")
	}
	return p, nil
}

// Create registers a parcel for a unit of the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in Input) (parcel.Parcel, error) {
	if err := requireManager(actor); err != nil {
		return parcel.Parcel{}, err
	}
	if err := in.validate(); err != nil {
		return parcel.Parcel{}, err
	}
	u, err := s.unitInBuilding(ctx, in.UnitID, actor.BuildingID)
	if err != nil {
		return parcel.Parcel{}, err
	}
	receivedAt := s.now().UTC()
	if in.ReceivedAt != nil {
		receivedAt = in.ReceivedAt.UTC()
	}
	p, err := s.store.CreateParcel(ctx, parcel.Parcel{
		BuildingID:  actor.BuildingID,
		UnitID:      u.ID,
		UnitNumber:  u.Number,
		UnitTower:   u.Tower,
		UnitFloor:   u.Floor,
		ReceivedBy:  actor.ID(),
		Sender:      strings.TrimSpace(in.Sender),
		Description: strings.TrimSpace(in.Description),
		Status:      parcel.StatusPending,
		ReceivedAt:  receivedAt,
	})
	if err != nil {
		return parcel.Parcel{}, err
	}
	s.log.WithField("parcel_id", p.ID).WithField("unit_id", u.ID).Info("parcel received")
	return p, nil
}

// List returns the parcels of the selected building, optionally narrowed by
// status and unit.
func (s *Service) List(ctx context.Context, actor user.Actor, status string, unitID int64) ([]parcel.Parcel, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if unitID > 0 {
		if _, err := s.unitInBuilding(ctx, unitID, actor.BuildingID); err != nil {
			return nil, err
		}
	}
	return s.list(ctx, parcel.Filter{BuildingID: actor.BuildingID, UnitID: unitID, Status: normalizeStatus(status)})
}

// MyParcels returns the parcels addressed to the caller's unit.
func (s *Service) MyParcels(ctx context.Context, actor user.Actor, status string) ([]parcel.Parcel, error) {
	if actor.User.UnitID == nil {
		return nil, apperrors.Validation("the user has no unit")
	}
	u, err := s.units.GetUnit(ctx, *actor.User.UnitID)
	if err != nil {
		return nil, apperrors.FromStore(err, "unit not found")
	}
	return s.list(ctx, parcel.Filter{BuildingID: u.BuildingID, UnitID: u.ID, Status: normalizeStatus(status)})
}

func (s *Service) list(ctx context.Context, filter parcel.Filter) ([]parcel.Parcel, error) {
	list, err := s.store.ListParcels(ctx, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []parcel.Parcel{}
	}
	return list, nil
}

// Update edits a parcel, keeping its status and retrieval data.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, in Input) (parcel.Parcel, error) {
	if err := requireManager(actor); err != nil {
		return parcel.Parcel{}, err
	}
	if err := in.validate(); err != nil {
		return parcel.Parcel{}, err
	}
	existing, err := s.parcelInBuilding(ctx, id, actor.BuildingID)
	if err != nil {
		return parcel.Parcel{}, err
	}
	u, err := s.unitInBuilding(ctx, in.UnitID, actor.BuildingID)
	if err != nil {
		return parcel.Parcel{}, err
	}
	existing.UnitID = u.ID
	existing.UnitNumber = u.Number
	existing.UnitTower = u.Tower
	existing.UnitFloor = u.Floor
	existing.Sender = strings.TrimSpace(in.Sender)
	existing.Description = strings.TrimSpace(in.Description)
	if in.ReceivedAt != nil {
		existing.ReceivedAt = in.ReceivedAt.UTC()
	}
	return s.store.UpdateParcel(ctx, existing)
}

// Delete removes a parcel of the selected building.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	if _, err := s.parcelInBuilding(ctx, id, actor.BuildingID); err != nil {
		return err
	}
	if err := s.store.DeleteParcel(ctx, id); err != nil {
		return err
	}
	s.log.WithField("parcel_id", id).Info("parcel deleted")
	return nil
}

// UpdateStatus marks a parcel as collected. Collecting twice is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, actor user.Actor, id int64, status string) (parcel.Parcel, error) {
	if err := requireManager(actor); err != nil {
		return parcel.Parcel{}, err
	}
	if normalizeStatus(status) != parcel.StatusCollected {
		return parcel.Parcel{}, apperrors.Validation("the only allowed status is COLLECTED")
	}
	existing, err := s.parcelInBuilding(ctx, id, actor.BuildingID)
	if err != nil {
		return parcel.Parcel{}, err
	}
	if strings.EqualFold(existing.Status, parcel.StatusCollected) {
		return existing, nil
	}
	now := s.now().UTC()
	collector := actor.ID()
	existing.Status = parcel.StatusCollected
	existing.RetrievedBy = &collector
	existing.RetrievedAt = &now
	updated, err := s.store.UpdateParcel(ctx, existing)
	if err != nil {
		return parcel.Parcel{}, err
	}
	s.log.WithField("parcel_id", id).WithField("retrieved_by", collector).Info("parcel collected")
	return updated, nil
}

package amenities

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// Service manages common spaces, their weekly schedule and reservations.
type Service struct {
	store storage.AmenityStore
	users storage.UserStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an amenity service.
func New(store storage.AmenityStore, users storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("amenities")
	}
	return &Service{store: store, users: users, log: log, now: time.Now}
}

// Input creates or replaces an amenity's attributes.
type Input struct {
	Name        string
	Description string
	MaxCapacity *int
	CostPerSlot *decimal.Decimal
	Rules       string
	ImageURL    string
	Status      string
}

// Detail is an amenity with its weekly slots.
type Detail struct {
	amenity.Amenity
	Slots []amenity.TimeSlot `json:"timeSlots"`
}

func requireManager(actor user.Actor) error {
	if !actor.User.IsManager() {
		return apperrors.Forbidden("only building managers can manage amenities")
	}
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	return nil
}

func normalizeStatus(status string) (string, error) {
	switch s := strings.ToUpper(strings.TrimSpace(status)); s {
	case "":
		return amenity.StatusActive, nil
	case amenity.StatusActive, amenity.StatusInactive:
		return s, nil
	default:
		return "", apperrors.Validation("status must be ACTIVE or INACTIVE")
	}
}

func (in Input) apply(a *amenity.Amenity) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperrors.Validation("name is required")
	}
	status, err := normalizeStatus(in.Status)
	if err != nil {
		return err
	}
	cost := decimal.Zero
	if in.CostPerSlot != nil {
		cost = *in.CostPerSlot
	}
	if cost.IsNegative() {
		return apperrors.Validation("costPerSlot cannot be negative")
	}
	if in.MaxCapacity != nil && *in.MaxCapacity <= 0 {
		return apperrors.Validation("maxCapacity must be positive")
	}
	a.Name = name
	a.Description = strings.TrimSpace(in.Description)
	a.MaxCapacity = in.MaxCapacity
	a.CostPerSlot = cost.Round(2)
	a.Rules = strings.TrimSpace(in.Rules)
	a.ImageURL = strings.TrimSpace(in.ImageURL)
	a.Status = status
	return nil
}

// Create adds an amenity to the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in Input) (Detail, error) {
	if err := requireManager(actor); err != nil {
		return Detail{}, err
	}
	a := amenity.Amenity{BuildingID: actor.BuildingID}
	if err := in.apply(&a); err != nil {
		return Detail{}, err
	}
	created, err := s.store.CreateAmenity(ctx, a)
	if err != nil {
		return Detail{}, err
	}
	s.log.WithField("amenity_id", created.ID).WithField("building_id", created.BuildingID).Info("amenity created")
	return Detail{Amenity: created, Slots: []amenity.TimeSlot{}}, nil
}

// Update replaces an amenity's attributes.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, in Input) (Detail, error) {
	if err := requireManager(actor); err != nil {
		return Detail{}, err
	}
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	if err := in.apply(&a); err != nil {
		return Detail{}, err
	}
	updated, err := s.store.UpdateAmenity(ctx, a)
	if err != nil {
		return Detail{}, err
	}
	return s.detail(ctx, updated)
}

// Delete removes an amenity together with its slots and reservations.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteAmenity(ctx, id); err != nil {
		return err
	}
	s.log.WithField("amenity_id", id).Info("amenity deleted")
	return nil
}

// Get returns an amenity of the selected building.
func (s *Service) Get(ctx context.Context, actor user.Actor, id int64) (Detail, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	return s.detail(ctx, a)
}

// List returns the amenities of the selected building. Only managers may
// include inactive ones.
func (s *Service) List(ctx context.Context, actor user.Actor, includeInactive bool) ([]Detail, error) {
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	if includeInactive && !actor.User.IsManager() {
		return nil, apperrors.Forbidden("only building managers can list inactive amenities")
	}
	list, err := s.store.ListAmenities(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	out := make([]Detail, 0, len(list))
	for _, a := range list {
		if !includeInactive && a.Status != amenity.StatusActive {
			continue
		}
		d, err := s.detail(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, actor user.Actor, id int64) (amenity.Amenity, error) {
	if !actor.HasBuilding() {
		return amenity.Amenity{}, apperrors.BuildingRequired()
	}
	a, err := s.store.GetAmenity(ctx, id)
	if err != nil {
		return amenity.Amenity{}, apperrors.FromStore(err, "amenity not found")
	}
	if a.BuildingID != actor.BuildingID {
		return amenity.Amenity{}, apperrors.Forbidden("you do not have access to this amenity")
	}
	return a, nil
}

func (s *Service) detail(ctx context.Context, a amenity.Amenity) (Detail, error) {
	slots, err := s.store.ListTimeSlots(ctx, a.ID)
	if err != nil {
		return Detail{}, err
	}
	if slots == nil {
		slots = []amenity.TimeSlot{}
	}
	return Detail{Amenity: a, Slots: slots}, nil
}

// today is the current UTC date at midnight.
func (s *Service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(raw string) (time.Time, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperrors.Validation("invalid date, use YYYY-MM-DD")
	}
	return date, nil
}

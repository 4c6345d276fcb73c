package buildings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages buildings, registration requests and building selection.
type Service struct {
	store storage.BuildingStore
	units storage.UnitStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a building service.
func New(store storage.BuildingStore, units storage.UnitStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("buildings")
	}
	return &Service{store: store, units: units, log: log, now: time.Now}
}

// RequestInput describes a community registration.
type RequestInput struct {
	Name      string
	Address   string
	Commune   string
	City      string
	Latitude  *float64
	Longitude *float64
	ProofText string
}

// Membership lists the buildings a user may act in and the default one.
type Membership struct {
	Buildings        []building.Building `json:"buildings"`
	ActiveBuildingID *int64              `json:"activeBuildingId,omitempty"`
}

// SubmitRequest records a registration request. requester may be nil for
// anonymous submissions.
func (s *Service) SubmitRequest(ctx context.Context, requester *user.User, in RequestInput) (building.Request, error) {
	name := strings.TrimSpace(in.Name)
	address := strings.TrimSpace(in.Address)
	proof := strings.TrimSpace(in.ProofText)
	if name == "" || address == "" {
		return building.Request{}, apperrors.Validation("name and address are required")
	}
	if proof == "" {
		return building.Request{}, apperrors.Validation("proofText is required")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return building.Request{}, apperrors.Validation("latitude must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return building.Request{}, apperrors.Validation("longitude must be between -180 and 180")
	}

	req := building.Request{
		Name:      name,
		Address:   address,
		Commune:   strings.TrimSpace(in.Commune),
		City:      strings.TrimSpace(in.City),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		ProofText: proof,
		Status:    building.RequestPending,
		CreatedAt: s.now().UTC(),
	}
	if requester != nil {
		id := requester.ID
		req.RequestedBy = &id
	}
	req, err := s.store.CreateBuildingRequest(ctx, req)
	if err != nil {
		return building.Request{}, err
	}
	s.log.WithField("request_id", req.ID).
		WithField("name", req.Name).
		Info("building request submitted")
	return req, nil
}

// ListRequests returns requests, optionally filtered by status.
func (s *Service) ListRequests(ctx context.Context, status string) ([]building.Request, error) {
	return s.store.ListBuildingRequests(ctx, strings.ToUpper(strings.TrimSpace(status)))
}

// ApproveRequest creates the building and grants the reviewer and requester
// access to it.
func (s *Service) ApproveRequest(ctx context.Context, reviewer user.User, id int64, notes string) (building.Request, error) {
	req, err := s.pendingRequest(ctx, id)
	if err != nil {
		return building.Request{}, err
	}

	b, err := s.store.CreateBuilding(ctx, building.Building{
		Name:      req.Name,
		Address:   req.Address,
		Commune:   req.Commune,
		City:      req.City,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return building.Request{}, err
	}
	if err := s.store.GrantBuildingAccess(ctx, reviewer.ID, b.ID); err != nil {
		return building.Request{}, err
	}
	if req.RequestedBy != nil && *req.RequestedBy != reviewer.ID {
		if err := s.store.GrantBuildingAccess(ctx, *req.RequestedBy, b.ID); err != nil {
			return building.Request{}, err
		}
	}

	req.BuildingID = &b.ID
	req, err = s.review(ctx, req, reviewer, building.RequestApproved, notes)
	if err != nil {
		return building.Request{}, err
	}
	s.log.WithField("request_id", req.ID).
		WithField("building_id", b.ID).
		WithField("reviewer_id", reviewer.ID).
		Info("building request approved")
	return req, nil
}

// RejectRequest closes a pending request without creating a building.
func (s *Service) RejectRequest(ctx context.Context, reviewer user.User, id int64, notes string) (building.Request, error) {
	req, err := s.pendingRequest(ctx, id)
	if err != nil {
		return building.Request{}, err
	}
	req, err = s.review(ctx, req, reviewer, building.RequestRejected, notes)
	if err != nil {
		return building.Request{}, err
	}
	s.log.WithField("request_id", req.ID).
		WithField("reviewer_id", reviewer.ID).
		Info("building request rejected")
	return req, nil
}

func (s *Service) pendingRequest(ctx context.Context, id int64) (building.Request, error) {
	req, err := s.store.GetBuildingRequest(ctx, id)
	if err != nil {
		return building.Request{}, apperrors.FromStore(err, "building request not found")
	}
	if req.Status != building.RequestPending {
		return building.Request{}, apperrors.Validation("request is already %s", strings.ToLower(req.Status))
	}
	return req, nil
}

func (s *Service) review(ctx context.Context, req building.Request, reviewer user.User, status, notes string) (building.Request, error) {
	now := s.now().UTC()
	reviewerID := reviewer.ID
	req.Status = status
	req.ReviewedBy = &reviewerID
	req.ReviewNotes = strings.TrimSpace(notes)
	req.ReviewedAt = &now
	return s.store.UpdateBuildingRequest(ctx, req)
}

// Get returns a building.
func (s *Service) Get(ctx context.Context, id int64) (building.Building, error) {
	b, err := s.store.GetBuilding(ctx, id)
	return b, apperrors.FromStore(err, "building not found")
}

// MyBuildings lists the buildings the user has access to, including the one
// of their unit.
func (s *Service) MyBuildings(ctx context.Context, u user.User) ([]building.Building, error) {
	list, err := s.store.ListBuildingsForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	unitBuilding, err := s.unitBuilding(ctx, u)
	if err != nil {
		return nil, err
	}
	if unitBuilding == 0 {
		return list, nil
	}
	for _, b := range list {
		if b.ID == unitBuilding {
			return list, nil
		}
	}
	b, err := s.store.GetBuilding(ctx, unitBuilding)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return list, nil
		}
		return nil, err
	}
	return append(list, b), nil
}

// Membership returns the user's buildings and the one selected by default.
func (s *Service) Membership(ctx context.Context, u user.User) (Membership, error) {
	list, err := s.MyBuildings(ctx, u)
	if err != nil {
		return Membership{}, err
	}
	active, err := s.Resolve(ctx, u, "")
	if err != nil {
		return Membership{}, err
	}
	m := Membership{Buildings: list}
	if active > 0 {
		m.ActiveBuildingID = &active
	}
	return m, nil
}

// HasAccess reports whether the user was granted the building or lives in it.
func (s *Service) HasAccess(ctx context.Context, u user.User, buildingID int64) (bool, error) {
	if buildingID <= 0 {
		return false, nil
	}
	ok, err := s.store.HasBuildingAccess(ctx, u.ID, buildingID)
	if err != nil || ok {
		return ok, err
	}
	unitBuilding, err := s.unitBuilding(ctx, u)
	if err != nil {
		return false, err
	}
	return unitBuilding == buildingID, nil
}

// Resolve picks the building for a request. An explicit selection must be
// accessible to the user. Without one, the unit's building wins, then the
// only accessible building. Zero means none.
func (s *Service) Resolve(ctx context.Context, u user.User, selected string) (int64, error) {
	selected = strings.TrimSpace(selected)
	if selected != "" {
		id, err := strconv.ParseInt(selected, 10, 64)
		if err != nil || id <= 0 {
			return 0, apperrors.Validation("invalid building id %q", selected)
		}
		ok, err := s.HasAccess(ctx, u, id)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, apperrors.Forbidden("no access to the selected building")
		}
		return id, nil
	}

	unitBuilding, err := s.unitBuilding(ctx, u)
	if err != nil {
		return 0, err
	}
	if unitBuilding > 0 {
		return unitBuilding, nil
	}
	list, err := s.store.ListBuildingsForUser(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	if len(list) == 1 {
		return list[0].ID, nil
	}
	return 0, nil
}

// GrantAccess gives a user access to a building.
func (s *Service) GrantAccess(ctx context.Context, userID, buildingID int64) error {
	return s.store.GrantBuildingAccess(ctx, userID, buildingID)
}

func (s *Service) unitBuilding(ctx context.Context, u user.User) (int64, error) {
	if u.UnitID == nil || s.units == nil {
		return 0, nil
	}
	un, err := s.units.GetUnit(ctx, *u.UnitID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return un.BuildingID, nil
}

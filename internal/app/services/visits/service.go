package visits

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/domain/visit"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

const (
	defaultValidMinutes = 120
	maxValidMinutes     = 24 * 60

	mainGate    = "MAIN_DOOR"
	kindCheckIn = "CHECK_IN"
)

// Service manages visitor authorizations and saved contacts.
type Service struct {
	store storage.VisitStore
	units storage.UnitStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a visit service.
func New(store storage.VisitStore, units storage.UnitStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("visits")
	}
	return &Service{store: store, units: units, log: log, now: time.Now}
}

// CreateInput registers a visitor. ValidUntil wins over ValidForMinutes.
type CreateInput struct {
	VisitorName     string
	VisitorDocument string
	VisitorType     string
	Company         string
	UnitID          *int64
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	ValidForMinutes *int
}

// Lists splits the caller's visits by derived status.
type Lists struct {
	Upcoming []visit.Visit `json:"upcoming"`
	Past     []visit.Visit `json:"past"`
}

func isManager(u user.User) bool { return u.IsManager() }

// Create schedules a visit. Residents register visits for their own unit;
// managers name the unit.
func (s *Service) Create(ctx context.Context, actor user.Actor, in CreateInput) (visit.Visit, error) {
	name := strings.TrimSpace(in.VisitorName)
	if name == "" {
		return visit.Visit{}, apperrors.Validation("visitorName is required")
	}
	unitID, buildingID, err := s.resolveUnit(ctx, actor, in.UnitID)
	if err != nil {
		return visit.Visit{}, err
	}

	now := s.now().UTC()
	from := now
	if in.ValidFrom != nil && !in.ValidFrom.IsZero() {
		from = in.ValidFrom.UTC()
	}
	until := resolveValidUntil(in, from)
	if until.Before(from) {
		return visit.Visit{}, apperrors.Validation("validUntil must be after validFrom")
	}

	v, err := s.store.CreateVisit(ctx, visit.Visit{
		CreatedBy:       actor.ID(),
		UnitID:          unitID,
		BuildingID:      buildingID,
		VisitorName:     name,
		VisitorDocument: visit.NormalizeDocument(in.VisitorDocument),
		VisitorType:     normalizeVisitorType(in.VisitorType),
		Company:         strings.TrimSpace(in.Company),
		ValidFrom:       from,
		ValidUntil:      until,
		Status:          visit.StatusScheduled,
	})
	if err != nil {
		return visit.Visit{}, err
	}
	s.log.WithField("visit_id", v.ID).
		WithField("unit_id", unitID).
		WithField("created_by", actor.ID()).
		Info("visit scheduled")
	return s.derive(v, now), nil
}

func (s *Service) resolveUnit(ctx context.Context, actor user.Actor, requested *int64) (int64, int64, error) {
	u := actor.User
	if u.Resident && !isManager(u) {
		if u.UnitID == nil {
			return 0, 0, apperrors.Validation("the user has no unit")
		}
		un, err := s.units.GetUnit(ctx, *u.UnitID)
		if err != nil {
			return 0, 0, apperrors.FromStore(err, "unit not found")
		}
		return un.ID, un.BuildingID, nil
	}
	if isManager(u) {
		if requested == nil || *requested <= 0 {
			return 0, 0, apperrors.Validation("unitId is required to register visits for others")
		}
		un, err := s.units.GetUnit(ctx, *requested)
		if err != nil {
			return 0, 0, apperrors.FromStore(err, "unit not found")
		}
		if actor.HasBuilding() && un.BuildingID != actor.BuildingID {
			return 0, 0, apperrors.Validation("unit does not belong to the selected building")
		}
		return un.ID, un.BuildingID, nil
	}
	return 0, 0, apperrors.Forbidden("you are not allowed to register visits")
}

func resolveValidUntil(in CreateInput, from time.Time) time.Time {
	if in.ValidUntil != nil && !in.ValidUntil.IsZero() {
		return in.ValidUntil.UTC()
	}
	minutes := defaultValidMinutes
	if in.ValidForMinutes != nil && *in.ValidForMinutes > 0 {
		minutes = *in.ValidForMinutes
		if minutes > maxValidMinutes {
			minutes = maxValidMinutes
		}
	}
	return from.Add(time.Duration(minutes) * time.Minute)
}

func normalizeVisitorType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return visit.DefaultVisitorType
	}
	return t
}

func (s *Service) derive(v visit.Visit, now time.Time) visit.Visit {
	v.Status = v.DerivedStatus(now)
	return v
}

func (s *Service) ensureCanList(u user.User) error {
	if u.Resident && !isManager(u) {
		if u.UnitID == nil {
			return apperrors.Validation("the user has no unit")
		}
		return nil
	}
	if isManager(u) {
		return nil
	}
	return apperrors.Forbidden("you are not allowed to view visits")
}

// MyVisits returns the visits the caller registered, split into upcoming and
// past.
func (s *Service) MyVisits(ctx context.Context, actor user.Actor) (Lists, error) {
	if err := s.ensureCanList(actor.User); err != nil {
		return Lists{}, err
	}
	list, err := s.store.ListVisitsByCreator(ctx, actor.ID())
	if err != nil {
		return Lists{}, err
	}
	now := s.now()
	out := Lists{Upcoming: []visit.Visit{}, Past: []visit.Visit{}}
	for _, v := range list {
		v = s.derive(v, now)
		if v.Status == visit.StatusScheduled {
			out.Upcoming = append(out.Upcoming, v)
		} else {
			out.Past = append(out.Past, v)
		}
	}
	return out, nil
}

// History returns finished visits, optionally filtered by visitor name or
// document.
func (s *Service) History(ctx context.Context, actor user.Actor, search string) ([]visit.Visit, error) {
	if err := s.ensureCanList(actor.User); err != nil {
		return nil, err
	}
	list, err := s.store.ListVisitsByCreator(ctx, actor.ID())
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))
	normalized := visit.NormalizeDocument(search)
	now := s.now()
	out := []visit.Visit{}
	for _, v := range list {
		v = s.derive(v, now)
		if v.Status == visit.StatusScheduled {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.VisitorName), search) &&
			!strings.Contains(v.VisitorDocument, normalized) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// CheckIn registers the visitor's entry. Residents may only check in their
// own visits; managers any visit of the selected building.
func (s *Service) CheckIn(ctx context.Context, actor user.Actor, id int64) (visit.Visit, error) {
	v, err := s.store.GetVisit(ctx, id)
	if err != nil {
		return visit.Visit{}, apperrors.FromStore(err, "visit not found")
	}
	switch {
	case isManager(actor.User):
		if actor.HasBuilding() && v.BuildingID != actor.BuildingID {
			return visit.Visit{}, apperrors.NotFound("visit not found")
		}
	case actor.User.Resident:
		if v.CreatedBy != actor.ID() {
			return visit.Visit{}, apperrors.Forbidden("you cannot check in another resident's visit")
		}
	default:
		return visit.Visit{}, apperrors.Forbidden("you are not allowed to register entries")
	}
	return s.checkIn(ctx, actor, v)
}

func (s *Service) checkIn(ctx context.Context, actor user.Actor, v visit.Visit) (visit.Visit, error) {
	now := s.now().UTC()
	if v.Status == visit.StatusCheckedIn {
		return v, nil
	}
	if v.ValidUntil.Before(now) {
		v.Status = visit.StatusExpired
		if _, err := s.store.UpdateVisit(ctx, v); err != nil {
			return visit.Visit{}, err
		}
		return visit.Visit{}, apperrors.Validation("the visit has expired")
	}
	if _, err := s.store.CreateAccessLog(ctx, visit.AccessLog{
		VisitID:      v.ID,
		OccurredAt:   now,
		Gate:         mainGate,
		RegisteredBy: actor.ID(),
		Kind:         kindCheckIn,
	}); err != nil {
		return visit.Visit{}, err
	}
	v.Status = visit.StatusCheckedIn
	v.CheckInAt = &now
	v, err := s.store.UpdateVisit(ctx, v)
	if err != nil {
		return visit.Visit{}, err
	}
	s.log.WithField("visit_id", v.ID).
		WithField("registered_by", actor.ID()).
		Info("visitor checked in")
	return v, nil
}

// QRCheck finds the active authorization for a scanned identity document in
// the selected building and checks it in.
func (s *Service) QRCheck(ctx context.Context, actor user.Actor, run string) (visit.Visit, error) {
	if !isManager(actor.User) {
		return visit.Visit{}, apperrors.Forbidden("only building managers can validate visitors")
	}
	if !actor.HasBuilding() {
		return visit.Visit{}, apperrors.BuildingRequired()
	}
	document := visit.NormalizeDocument(strings.TrimSpace(run))
	if document == "" {
		return visit.Visit{}, apperrors.Validation("run is required")
	}
	list, err := s.store.ListVisitsByDocument(ctx, actor.BuildingID, document)
	if err != nil {
		return visit.Visit{}, err
	}
	now := s.now()
	var active []visit.Visit
	for _, v := range list {
		if v.DerivedStatus(now) == visit.StatusScheduled && !v.ValidFrom.After(now) {
			active = append(active, v)
		}
	}
	if len(active) == 0 {
		return visit.Visit{}, apperrors.NotFound("no active authorization for this visitor")
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ValidUntil.Before(active[j].ValidUntil) })
	return s.checkIn(ctx, actor, active[0])
}

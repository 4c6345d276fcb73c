package incidents

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/incident"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages incident reports.
type Service struct {
	store storage.IncidentStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an incident service.
func New(store storage.IncidentStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("incidents")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// CreateInput reports an incident.
type CreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Status      string
}

// Grouped buckets incidents by status.
type Grouped struct {
	Reported   []incident.Incident `json:"reported"`
	InProgress []incident.Incident `json:"inProgress"`
	Closed     []incident.Incident `json:"closed"`
}

// Create reports an incident in the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in CreateInput) (incident.Incident, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	switch {
	case title == "":
		return incident.Incident{}, apperrors.Validation("title is required")
	case description == "":
		return incident.Incident{}, apperrors.Validation("description is required")
	case category == "":
		return incident.Incident{}, apperrors.Validation("category is required")
	}
	if !actor.HasBuilding() {
		return incident.Incident{}, apperrors.BuildingRequired()
	}

	created, err := s.store.CreateIncident(ctx, incident.Incident{
		UserID:      actor.ID(),
		UnitID:      actor.User.UnitID,
		BuildingID:  actor.BuildingID,
		Title:       title,
		Description: description,
		Category:    category,
		Priority:    incident.NormalizePriority(in.Priority),
		Status:      incident.NormalizeStatus(in.Status),
	})
	if err != nil {
		return incident.Incident{}, err
	}
	s.log.WithField("incident_id", created.ID).
		WithField("building_id", created.BuildingID).
		WithField("priority", created.Priority).
		Info("incident reported")
	return created, nil
}

// List returns incidents grouped by status. Managers see every incident of the
// selected building; everyone else sees their own reports. from and to are
// inclusive dates.
func (s *Service) List(ctx context.Context, actor user.Actor, from, to *time.Time) (Grouped, error) {
	filter := incident.Filter{}
	if actor.User.IsManager() {
		if !actor.HasBuilding() {
			return Grouped{}, apperrors.BuildingRequired()
		}
		filter.BuildingID = actor.BuildingID
	} else {
		filter.UserID = actor.ID()
	}
	if from != nil {
		filter.From = startOfDay(*from)
	}
	if to != nil {
		filter.To = startOfDay(*to).Add(24*time.Hour - time.Nanosecond)
	}

	list, err := s.store.ListIncidents(ctx, filter)
	if err != nil {
		return Grouped{}, err
	}
	out := Grouped{
		Reported:   []incident.Incident{},
		InProgress: []incident.Incident{},
		Closed:     []incident.Incident{},
	}
	for _, item := range list {
		switch strings.ToUpper(item.Status) {
		case incident.StatusInProgress:
			out.InProgress = append(out.InProgress, item)
		case incident.StatusClosed:
			out.Closed = append(out.Closed, item)
		default:
			out.Reported = append(out.Reported, item)
		}
	}
	return out, nil
}

// UpdateStatus moves an incident of the selected building to a new status.
func (s *Service) UpdateStatus(ctx context.Context, actor user.Actor, id int64, status string) (incident.Incident, error) {
	existing, err := s.managed(ctx, actor, id)
	if err != nil {
		return incident.Incident{}, err
	}
	existing.Status = incident.NormalizeStatus(status)
	updated, err := s.store.UpdateIncident(ctx, existing)
	if err != nil {
		return incident.Incident{}, err
	}
	s.log.WithField("incident_id", id).WithField("status", updated.Status).Info("incident status updated")
	return updated, nil
}

// Assign sets or clears the user responsible for an incident.
func (s *Service) Assign(ctx context.Context, actor user.Actor, id int64, assignee *int64) (incident.Incident, error) {
	existing, err := s.managed(ctx, actor, id)
	if err != nil {
		return incident.Incident{}, err
	}
	existing.AssignedTo = assignee
	updated, err := s.store.UpdateIncident(ctx, existing)
	if err != nil {
		return incident.Incident{}, err
	}
	s.log.WithField("incident_id", id).WithField("assigned_to", assignee).Info("incident assigned")
	return updated, nil
}

func (s *Service) managed(ctx context.Context, actor user.Actor, id int64) (incident.Incident, error) {
	if !actor.User.IsManager() {
		return incident.Incident{}, apperrors.Forbidden("only building managers can update incidents")
	}
	if !actor.HasBuilding() {
		return incident.Incident{}, apperrors.BuildingRequired()
	}
	existing, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return incident.Incident{}, apperrors.FromStore(err, "incident not found")
	}
	if existing.BuildingID != actor.BuildingID {
		return incident.Incident{}, apperrors.Forbidden("the incident does not belong to the selected building")
	}
	return existing, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

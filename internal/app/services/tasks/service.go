package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/task"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

// Priorities.
const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
)

// Service manages staff tasks.
type Service struct {
	store storage.TaskStore
	staff storage.StaffStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs a task service.
func New(store storage.TaskStore, staff storage.StaffStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Service{store: store, staff: staff, log: log, now: time.Now}
}

// Input creates or updates a task.
type Input struct {
	Title       string
	Description string
	AssigneeIDs []int64
	Status      string
	Priority    string
	DueDate     *time.Time
}

func normalizePriority(p string) (string, error) {
	switch v := strings.ToUpper(strings.TrimSpace(p)); v {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return v, nil
	default:
		return "", apperrors.Validation("priority must be LOW, MEDIUM or HIGH")
	}
}

// assignees de-duplicates ids and checks they belong to the building staff.
func (s *Service) assignees(ctx context.Context, buildingID int64, ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		m, err := s.staff.GetStaff(ctx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.Validation("staff member %d not found", id)
			}
			return nil, err
		}
		if m.BuildingID != buildingID {
			return nil, apperrors.Validation("staff member %d does not work in this building", id)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *Service) apply(ctx context.Context, t *task.Task, in Input) error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.Validation("title is required")
	}
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return err
	}
	ids, err := s.assignees(ctx, t.BuildingID, in.AssigneeIDs)
	if err != nil {
		return err
	}
	status := task.NormalizeStatus(in.Status)
	switch {
	case status == task.StatusCompleted && t.CompletedAt == nil:
		now := s.now().UTC()
		t.CompletedAt = &now
	case status != task.StatusCompleted:
		t.CompletedAt = nil
	}
	t.Title = strings.TrimSpace(in.Title)
	t.Description = strings.TrimSpace(in.Description)
	t.AssigneeIDs = ids
	t.Status = status
	t.Priority = priority
	t.DueDate = in.DueDate
	return nil
}

func requireBuilding(actor user.Actor) error {
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	return nil
}

// Create adds a task to the selected building.
func (s *Service) Create(ctx context.Context, actor user.Actor, in Input) (task.Task, error) {
	if err := requireBuilding(actor); err != nil {
		return task.Task{}, err
	}
	createdBy := actor.ID()
	t := task.Task{BuildingID: actor.BuildingID, CreatedBy: &createdBy}
	if err := s.apply(ctx, &t, in); err != nil {
		return task.Task{}, err
	}
	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithField("task_id", created.ID).
		WithField("building_id", created.BuildingID).
		WithField("assignees", len(created.AssigneeIDs)).
		Info("task created")
	return created, nil
}

// Update replaces a task of the selected building.
func (s *Service) Update(ctx context.Context, actor user.Actor, id int64, in Input) (task.Task, error) {
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.apply(ctx, &t, in); err != nil {
		return task.Task{}, err
	}
	return s.store.UpdateTask(ctx, t)
}

// Delete removes a task of the selected building.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id int64) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, id)
}

// List returns the tasks of the selected building.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]task.Task, error) {
	if err := requireBuilding(actor); err != nil {
		return nil, err
	}
	all, err := s.store.ListTasks(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []task.Task{}
	}
	return all, nil
}

// Assigned returns the tasks of the building assigned to the caller's staff
// record.
func (s *Service) Assigned(ctx context.Context, actor user.Actor) ([]task.Task, error) {
	all, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	me, err := s.staff.FindStaffByUser(ctx, actor.ID())
	if err != nil {
		return nil, apperrors.FromStore(err, "no staff record is linked to this account")
	}
	mine := []task.Task{}
	for _, t := range all {
		for _, a := range t.AssigneeIDs {
			if a == me.ID {
				mine = append(mine, t)
				break
			}
		}
	}
	return mine, nil
}

func (s *Service) load(ctx context.Context, actor user.Actor, id int64) (task.Task, error) {
	if err := requireBuilding(actor); err != nil {
		return task.Task{}, err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, apperrors.FromStore(err, "task not found")
	}
	if t.BuildingID != actor.BuildingID {
		return task.Task{}, apperrors.NotFound("task not found")
	}
	return t, nil
}

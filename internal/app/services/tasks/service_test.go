package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/staff"
	"github.com/domu-platform/domu/internal/app/domain/task"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil)
	fixed := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	workerUser := int64(61)
	worker, err := store.CreateStaff(ctx, staff.Member{BuildingID: 2, UserID: &workerUser, FirstName: "Luis", LastName: "Rojas", RUT: "1-1", Position: "Mantención", Active: true})
	if err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	outsider, _ := store.CreateStaff(ctx, staff.Member{BuildingID: 8, FirstName: "Eva", LastName: "Díaz", RUT: "2-2", Position: "Aseo", Active: true})

	concierge := user.Actor{User: user.User{ID: 60, RoleID: user.RoleConcierge}, BuildingID: 2}
	staffActor := user.Actor{User: user.User{ID: workerUser, RoleID: user.RoleStaff}, BuildingID: 2}
	resident := user.Actor{User: user.User{ID: 62, RoleID: user.RoleResident}, BuildingID: 2}

	if _, err := svc.Create(ctx, user.Actor{User: resident.User}, Input{Title: "x"}); err == nil {
		t.Fatalf("a building must be selected")
	}
	if _, err := svc.Create(ctx, concierge, Input{Title: "x", Priority: "URGENT"}); err == nil {
		t.Fatalf("expected priority validation")
	}
	if _, err := svc.Create(ctx, concierge, Input{Title: "x", AssigneeIDs: []int64{outsider.ID}}); err == nil {
		t.Fatalf("expected foreign assignee to be rejected")
	}

	created, err := svc.Create(ctx, concierge, Input{Title: "Cambiar ampolleta", AssigneeIDs: []int64{worker.ID, worker.ID}, Status: "bogus"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != task.StatusPending || created.Priority != PriorityMedium || len(created.AssigneeIDs) != 1 {
		t.Fatalf("unexpected task: %+v", created)
	}

	done, err := svc.Update(ctx, concierge, created.ID, Input{Title: "Cambiar ampolleta", AssigneeIDs: []int64{worker.ID}, Status: "completed", Priority: "high"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(fixed) || done.Priority != PriorityHigh {
		t.Fatalf("expected completion stamp: %+v", done)
	}
	reopened, err := svc.Update(ctx, concierge, created.ID, Input{Title: "Cambiar ampolleta", Status: "IN_PROGRESS"})
	if err != nil || reopened.CompletedAt != nil {
		t.Fatalf("reopen should clear completedAt: %v %+v", err, reopened)
	}

	if _, err := svc.Create(ctx, concierge, Input{Title: "Podar", AssigneeIDs: []int64{worker.ID}}); err != nil {
		t.Fatalf("second task: %v", err)
	}

	mine, err := svc.Assigned(ctx, staffActor)
	if err != nil || len(mine) != 1 {
		t.Fatalf("staff should only see assigned tasks: %v %d", err, len(mine))
	}
	all, err := svc.List(ctx, resident)
	if err != nil || len(all) != 2 {
		t.Fatalf("building members see every task: %v %d", err, len(all))
	}
	if _, err := svc.Assigned(ctx, resident); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found without a staff record, got %v", err)
	}

	other := user.Actor{User: user.User{ID: 63, RoleID: user.RoleAdmin}, BuildingID: 8}
	if err := svc.Delete(ctx, other, created.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found from another building, got %v", err)
	}
	if err := svc.Delete(ctx, concierge, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

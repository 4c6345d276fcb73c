package incidents

import (
	"context"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/incident"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

func TestService_CreateAndList(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)

	resident := user.Actor{User: user.User{ID: 10, RoleID: user.RoleResident}, BuildingID: 7}
	neighbour := user.Actor{User: user.User{ID: 11, RoleID: user.RoleResident}, BuildingID: 7}
	admin := user.Actor{User: user.User{ID: 1, RoleID: user.RoleAdmin}, BuildingID: 7}

	if _, err := svc.Create(ctx, resident, CreateInput{Title: "Fuga", Description: "Agua en el pasillo"}); err == nil {
		t.Fatalf("expected validation error without category")
	}
	noBuilding := user.Actor{User: resident.User}
	if _, err := svc.Create(ctx, noBuilding, CreateInput{Title: "a", Description: "b", Category: "c"}); err == nil {
		t.Fatalf("expected building required")
	}

	created, err := svc.Create(ctx, resident, CreateInput{Title: " Fuga ", Description: "Agua", Category: "Gasfitería", Priority: "high", Status: "weird"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "Fuga" || created.Priority != incident.PriorityHigh || created.Status != incident.StatusReported {
		t.Fatalf("unexpected incident: %+v", created)
	}
	if _, err := svc.Create(ctx, neighbour, CreateInput{Title: "Ruido", Description: "Fiesta", Category: "Convivencia", Status: "in_progress"}); err != nil {
		t.Fatalf("create neighbour: %v", err)
	}

	mine, err := svc.List(ctx, resident, nil, nil)
	if err != nil {
		t.Fatalf("list resident: %v", err)
	}
	if len(mine.Reported) != 1 || len(mine.InProgress) != 0 {
		t.Fatalf("resident should only see own incidents: %+v", mine)
	}

	all, err := svc.List(ctx, admin, nil, nil)
	if err != nil {
		t.Fatalf("list admin: %v", err)
	}
	if len(all.Reported) != 1 || len(all.InProgress) != 1 || len(all.Closed) != 0 {
		t.Fatalf("unexpected grouping: %+v", all)
	}

	future := time.Now().Add(48 * time.Hour)
	empty, err := svc.List(ctx, admin, &future, nil)
	if err != nil {
		t.Fatalf("list with range: %v", err)
	}
	if len(empty.Reported)+len(empty.InProgress) != 0 {
		t.Fatalf("expected range to exclude everything")
	}

	if _, err := svc.List(ctx, user.Actor{User: admin.User}, nil, nil); err == nil {
		t.Fatalf("managers must select a building")
	}
}

func TestService_UpdateStatusAndAssign(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.New(), nil)

	resident := user.Actor{User: user.User{ID: 10, RoleID: user.RoleResident}, BuildingID: 7}
	concierge := user.Actor{User: user.User{ID: 3, RoleID: user.RoleConcierge}, BuildingID: 7}
	otherBuilding := user.Actor{User: concierge.User, BuildingID: 8}

	created, err := svc.Create(ctx, resident, CreateInput{Title: "Luz", Description: "Ampolleta", Category: "Eléctrico"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, resident, created.ID, incident.StatusClosed)
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, otherBuilding, created.ID, incident.StatusClosed); err == nil {
		t.Fatalf("expected failure outside the incident building")
	}

	updated, err := svc.UpdateStatus(ctx, concierge, created.ID, "closed")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != incident.StatusClosed {
		t.Fatalf("unexpected status %s", updated.Status)
	}

	assignee := int64(42)
	assigned, err := svc.Assign(ctx, concierge, created.ID, &assignee)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedTo == nil || *assigned.AssignedTo != 42 {
		t.Fatalf("assignment not stored: %+v", assigned)
	}
	if _, err := svc.Assign(ctx, concierge, 9999, nil); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

package staff

import (
	"context"
	"testing"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

func TestService_Roster(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, nil)

	admin := user.Actor{User: user.User{ID: 900, RoleID: user.RoleAdmin}, BuildingID: 4}
	resident := user.Actor{User: user.User{ID: 901, RoleID: user.RoleResident}, BuildingID: 4}
	foreignAdmin := user.Actor{User: user.User{ID: 902, RoleID: user.RoleAdmin}, BuildingID: 5}

	if _, err := svc.Create(ctx, resident, Input{FirstName: "a", LastName: "b", RUT: "1-9", Position: "x"}); err == nil {
		t.Fatalf("residents must not manage staff")
	}
	if _, err := svc.Create(ctx, admin, Input{FirstName: "Juan", RUT: "1-9", Position: "Conserje"}); err == nil {
		t.Fatalf("expected validation error")
	}

	linked := int64(901)
	juan, err := svc.Create(ctx, admin, Input{UserID: &linked, FirstName: "Juan", LastName: "Soto", RUT: "12.345.678-k", Email: "Juan@Example.com", Position: "Conserje"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if juan.RUT != "12345678-K" || juan.Email != "juan@example.com" || !juan.Active {
		t.Fatalf("unexpected member: %+v", juan)
	}

	_, err = svc.Create(ctx, admin, Input{FirstName: "Otro", LastName: "Soto", RUT: "12345678-K", Position: "Aseo"})
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected RUT conflict, got %v", err)
	}
	_, err = svc.Create(ctx, admin, Input{FirstName: "Otro", LastName: "Soto", RUT: "9-9", Email: "juan@example.com", Position: "Aseo"})
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected email conflict, got %v", err)
	}

	inactive := false
	ana, err := svc.Create(ctx, admin, Input{FirstName: "Ana", LastName: "Paz", RUT: "9-9", Position: "Aseo", Active: &inactive})
	if err != nil {
		t.Fatalf("create inactive: %v", err)
	}

	active, err := svc.ListActive(ctx, admin)
	if err != nil || len(active) != 1 || active[0].ID != juan.ID {
		t.Fatalf("list active: %v %+v", err, active)
	}
	all, err := svc.List(ctx, admin)
	if err != nil || len(all) != 2 {
		t.Fatalf("list: %v %d", err, len(all))
	}

	// Keeping its own RUT is not a conflict.
	updated, err := svc.Update(ctx, admin, juan.ID, Input{UserID: &linked, FirstName: "Juan", LastName: "Soto", RUT: "12345678-K", Email: "juan@example.com", Position: "Mayordomo"})
	if err != nil || updated.Position != "Mayordomo" {
		t.Fatalf("update: %v %+v", err, updated)
	}

	if _, err := svc.Get(ctx, foreignAdmin, ana.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("other buildings must not see the member, got %v", err)
	}

	me, err := svc.Me(ctx, resident)
	if err != nil || me.ID != juan.ID {
		t.Fatalf("me: %v %+v", err, me)
	}
	if _, err := svc.Me(ctx, admin); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found for unlinked account, got %v", err)
	}

	if err := svc.Delete(ctx, admin, ana.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, admin, ana.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected deleted member to be gone")
	}
}

package units

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage/memory"
)

func TestService_UnitLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, buildings.New(store, store, nil), nil)

	bld, _ := store.CreateBuilding(ctx, building.Building{Name: "B"})
	admin, _ := store.CreateUser(ctx, user.User{Email: "admin@example.com", RoleID: user.RoleAdmin})
	actor := user.Actor{User: admin, BuildingID: bld.ID}

	in := Input{Number: "101", Tower: "A", Floor: "1", Aliquot: decimal.NewFromInt(1), SquareMeters: decimal.NewFromInt(55)}
	if _, err := svc.Create(ctx, actor, Input{Number: "101", Tower: "A", Floor: "1"}); err == nil {
		t.Fatalf("expected square meters validation")
	}
	created, err := svc.Create(ctx, actor, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, actor, in); err == nil {
		t.Fatalf("expected duplicate number conflict")
	}
	other := in
	other.Number = "102"
	second, err := svc.Create(ctx, actor, other)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := svc.Update(ctx, actor, second.ID, in); err == nil {
		t.Fatalf("expected conflict renaming onto an existing number")
	}
	in.Floor = "2"
	if _, err := svc.Update(ctx, actor, created.ID, in); err != nil {
		t.Fatalf("update keeping own number: %v", err)
	}

	neighbour, _ := store.CreateUser(ctx, user.User{Email: "n@example.com", RoleID: user.RoleResident})
	if _, err := svc.LinkResident(ctx, actor, created.ID, neighbour.ID); err == nil {
		t.Fatalf("expected link to fail without building access")
	}
	_ = store.GrantBuildingAccess(ctx, neighbour.ID, bld.ID)
	if _, err := svc.LinkResident(ctx, actor, created.ID, neighbour.ID); err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := svc.Delete(ctx, actor, created.ID); err == nil {
		t.Fatalf("expected delete to be refused with residents")
	}
	if err := svc.UnlinkResident(ctx, actor, second.ID, neighbour.ID); err == nil {
		t.Fatalf("expected unlink from the wrong unit to fail")
	}
	if err := svc.UnlinkResident(ctx, actor, created.ID, neighbour.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if err := svc.Delete(ctx, actor, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := svc.List(ctx, actor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("expected only the remaining unit, got %#v", list)
	}
	if _, err := svc.Get(ctx, actor, created.ID); err == nil {
		t.Fatalf("expected deleted unit to be hidden")
	}
}

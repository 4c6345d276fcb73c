package buildings

import (
	"context"
	"strconv"
	"testing"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

func TestService_RequestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil)

	requester, err := store.CreateUser(ctx, user.User{Email: "owner@example.com", RoleID: user.RoleResident})
	if err != nil {
		t.Fatalf("create requester: %v", err)
	}
	admin, err := store.CreateUser(ctx, user.User{Email: "admin@example.com", RoleID: user.RoleAdmin})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	badLat := 91.0
	if _, err := svc.SubmitRequest(ctx, nil, RequestInput{Name: "Torres", Address: "Av 1", ProofText: "x", Latitude: &badLat}); err == nil {
		t.Fatalf("expected latitude validation error")
	}
	if _, err := svc.SubmitRequest(ctx, nil, RequestInput{Name: "Torres", Address: "Av 1"}); err == nil {
		t.Fatalf("expected proof text validation error")
	}

	req, err := svc.SubmitRequest(ctx, &requester, RequestInput{Name: " Torres ", Address: "Av 1", ProofText: "deed"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if req.Status != building.RequestPending || req.RequestedBy == nil || *req.RequestedBy != requester.ID {
		t.Fatalf("unexpected request: %#v", req)
	}

	approved, err := svc.ApproveRequest(ctx, admin, req.ID, "ok")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != building.RequestApproved || approved.BuildingID == nil {
		t.Fatalf("request not approved: %#v", approved)
	}
	for _, u := range []user.User{admin, requester} {
		ok, err := svc.HasAccess(ctx, u, *approved.BuildingID)
		if err != nil || !ok {
			t.Fatalf("user %d lacks access: %v", u.ID, err)
		}
	}

	if _, err := svc.RejectRequest(ctx, admin, req.ID, "late"); err == nil {
		t.Fatalf("expected error rejecting a reviewed request")
	}

	pending, err := svc.ListRequests(ctx, "pending")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %d", len(pending))
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store, store, nil)

	home, _ := store.CreateBuilding(ctx, building.Building{Name: "Home"})
	other, _ := store.CreateBuilding(ctx, building.Building{Name: "Other"})
	foreign, _ := store.CreateBuilding(ctx, building.Building{Name: "Foreign"})
	apt, err := store.CreateUnit(ctx, unit.Unit{BuildingID: home.ID, Number: "101"})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}

	resident, _ := store.CreateUser(ctx, user.User{Email: "r@example.com", UnitID: &apt.ID})
	if err := store.GrantBuildingAccess(ctx, resident.ID, other.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	id, err := svc.Resolve(ctx, resident, "")
	if err != nil || id != home.ID {
		t.Fatalf("expected unit building %d, got %d (%v)", home.ID, id, err)
	}

	id, err = svc.Resolve(ctx, resident, strconv.FormatInt(other.ID, 10))
	if err != nil || id != other.ID {
		t.Fatalf("expected explicit building %d, got %d (%v)", other.ID, id, err)
	}

	_, err = svc.Resolve(ctx, resident, strconv.FormatInt(foreign.ID, 10))
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden for building %d, got %v", foreign.ID, err)
	}

	if _, err := svc.Resolve(ctx, resident, "abc"); err == nil {
		t.Fatalf("expected invalid id error")
	}

	lone, _ := store.CreateUser(ctx, user.User{Email: "c@example.com"})
	if id, _ := svc.Resolve(ctx, lone, ""); id != 0 {
		t.Fatalf("expected no building, got %d", id)
	}
	_ = store.GrantBuildingAccess(ctx, lone.ID, other.ID)
	if id, _ := svc.Resolve(ctx, lone, ""); id != other.ID {
		t.Fatalf("expected single accessible building, got %d", id)
	}

	m, err := svc.Membership(ctx, resident)
	if err != nil {
		t.Fatalf("membership: %v", err)
	}
	if len(m.Buildings) != 2 || m.ActiveBuildingID == nil || *m.ActiveBuildingID != home.ID {
		t.Fatalf("unexpected membership: %#v", m)
	}
}

package users

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/auth"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/internal/platform/mailer"
)

type fixture struct {
	svc   *Service
	auth  *auth.Service
	store *memory.Store
	mail  *mailer.LogMailer
	admin user.Actor
	apt   unit.Unit
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	mail := mailer.NewLogMailer(nil)
	b := buildings.New(store, store, nil)
	authSvc := auth.New(store, store, b, mail, config.AuthConfig{JWTSecret: "k", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, "http://front", nil)

	bld, err := store.CreateBuilding(ctx, building.Building{Name: "Condominio"})
	if err != nil {
		t.Fatalf("create building: %v", err)
	}
	apt, err := store.CreateUnit(ctx, unit.Unit{BuildingID: bld.ID, Number: "101", Tower: "A"})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	admin, err := store.CreateUser(ctx, user.User{Email: "admin@example.com", RoleID: user.RoleAdmin, Status: user.StatusActive})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if err := store.GrantBuildingAccess(ctx, admin.ID, bld.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	return fixture{
		svc:   New(store, store, store, authSvc, b, nil),
		auth:  authSvc,
		store: store,
		mail:  mail,
		admin: user.Actor{User: admin, BuildingID: bld.ID},
		apt:   apt,
	}
}

func TestService_AdminCreateUser(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	resident := user.Actor{User: user.User{ID: 99, RoleID: user.RoleResident}, BuildingID: f.admin.BuildingID}
	if _, err := f.svc.AdminCreateUser(ctx, resident, CreateInput{FirstName: "A", LastName: "B", Email: "a@b.cl"}); err == nil {
		t.Fatalf("expected forbidden for residents")
	}

	created, err := f.svc.AdminCreateUser(ctx, f.admin, CreateInput{
		FirstName: "Pedro",
		LastName:  "Soto",
		Email:     "pedro@example.com",
		UnitID:    &f.apt.ID,
		Resident:  true,
	})
	if err != nil {
		t.Fatalf("create resident: %v", err)
	}
	if created.Status != user.StatusPending {
		t.Fatalf("expected pending user, got %s", created.Status)
	}
	if len(f.mail.Sent()) != 1 {
		t.Fatalf("expected invitation mail")
	}
	ok, _ := f.store.HasBuildingAccess(ctx, created.ID, f.admin.BuildingID)
	if !ok {
		t.Fatalf("expected building access to be granted")
	}

	concierge, err := f.svc.AdminCreateUser(ctx, f.admin, CreateInput{
		FirstName:      "Luis",
		LastName:       "Mora",
		Email:          "luis@example.com",
		DocumentNumber: "12345678-9",
		RoleID:         user.RoleConcierge,
	})
	if err != nil {
		t.Fatalf("create concierge: %v", err)
	}
	member, err := f.store.FindStaffByUser(ctx, concierge.ID)
	if err != nil {
		t.Fatalf("expected staff record: %v", err)
	}
	if member.Position != "Conserje" || member.BuildingID != f.admin.BuildingID {
		t.Fatalf("unexpected staff member: %#v", member)
	}

	residents, err := f.svc.ListResidents(ctx, f.admin)
	if err != nil {
		t.Fatalf("list residents: %v", err)
	}
	if len(residents) != 1 || residents[0].UnitNumber != "101" {
		t.Fatalf("unexpected residents: %#v", residents)
	}

	card, err := f.svc.PublicProfile(ctx, f.admin, created.ID)
	if err != nil {
		t.Fatalf("public profile: %v", err)
	}
	if card.FirstName != "Pedro" || card.UnitNumber != "101" {
		t.Fatalf("unexpected profile: %#v", card)
	}
}

func TestService_ProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	u, err := f.auth.Register(ctx, auth.RegisterInput{
		FirstName: "Ana", LastName: "Rojas", Phone: "1", DocumentNumber: "2",
		Email: "ana@example.com", Password: "initialpass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.svc.UpdateProfile(ctx, u, ProfileInput{FirstName: "Ana"}); err == nil {
		t.Fatalf("expected validation error")
	}
	updated, err := f.svc.UpdateProfile(ctx, u, ProfileInput{FirstName: "Ana María", LastName: "Rojas", Phone: "3", DocumentNumber: "2"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FirstName != "Ana María" || updated.Phone != "3" {
		t.Fatalf("profile not updated: %#v", updated)
	}

	if err := f.svc.ChangePassword(ctx, u, "wrongpassword", "newpassword1"); err == nil {
		t.Fatalf("expected wrong current password")
	}
	if err := f.svc.ChangePassword(ctx, u, "initialpass", "short"); err == nil {
		t.Fatalf("expected short password error")
	}
	if err := f.svc.ChangePassword(ctx, u, "initialpass", "newpassword1"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.auth.Login(ctx, "ana@example.com", "newpassword1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	if _, err := f.svc.MyUnit(ctx, u); err == nil {
		t.Fatalf("expected not found for user without unit")
	}
}

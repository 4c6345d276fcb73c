package visits

import (
	"context"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/domain/visit"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

type fixture struct {
	svc       *Service
	store     *memory.Store
	resident  user.Actor
	concierge user.Actor
	apt       unit.Unit
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	bld, err := store.CreateBuilding(ctx, building.Building{Name: "Edificio Central"})
	if err != nil {
		t.Fatalf("create building: %v", err)
	}
	apt, err := store.CreateUnit(ctx, unit.Unit{BuildingID: bld.ID, Number: "1203", Tower: "B"})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	resident, err := store.CreateUser(ctx, user.User{Email: "res@example.com", RoleID: user.RoleResident, UnitID: &apt.ID, Resident: true})
	if err != nil {
		t.Fatalf("create resident: %v", err)
	}
	concierge, err := store.CreateUser(ctx, user.User{Email: "con@example.com", RoleID: user.RoleConcierge})
	if err != nil {
		t.Fatalf("create concierge: %v", err)
	}

	f := &fixture{
		svc:       New(store, store, nil),
		store:     store,
		resident:  user.Actor{User: resident, BuildingID: bld.ID},
		concierge: user.Actor{User: concierge, BuildingID: bld.ID},
		apt:       apt,
		now:       time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestService_CreateDefaults(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	v, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: " Ana Pérez ", VisitorDocument: "12.345.678-k"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.UnitID != f.apt.ID || v.BuildingID != f.apt.BuildingID {
		t.Fatalf("visit not bound to the resident unit: %+v", v)
	}
	if v.VisitorDocument != "12345678-K" {
		t.Fatalf("document not normalised: %q", v.VisitorDocument)
	}
	if v.VisitorType != visit.DefaultVisitorType {
		t.Fatalf("unexpected visitor type %q", v.VisitorType)
	}
	if got := v.ValidUntil.Sub(v.ValidFrom); got != 120*time.Minute {
		t.Fatalf("expected default window of 120 minutes, got %s", got)
	}

	long := 5000
	v, err = f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "Luis", VisitorType: "delivery", ValidForMinutes: &long})
	if err != nil {
		t.Fatalf("create capped: %v", err)
	}
	if got := v.ValidUntil.Sub(v.ValidFrom); got != 24*time.Hour {
		t.Fatalf("expected window capped at one day, got %s", got)
	}
	if v.VisitorType != "DELIVERY" {
		t.Fatalf("visitor type not upper-cased: %q", v.VisitorType)
	}

	before := f.now.Add(-time.Hour)
	if _, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "X", ValidUntil: &before}); err == nil {
		t.Fatalf("expected validation error for inverted window")
	}
	if _, err := f.svc.Create(ctx, f.resident, CreateInput{}); err == nil {
		t.Fatalf("expected validation error for missing name")
	}
}

func TestService_CreateByConciergeNeedsUnit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.Create(ctx, f.concierge, CreateInput{VisitorName: "Técnico"}); err == nil {
		t.Fatalf("expected validation error without unit")
	}
	v, err := f.svc.Create(ctx, f.concierge, CreateInput{VisitorName: "Técnico", UnitID: &f.apt.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.CreatedBy != f.concierge.ID() {
		t.Fatalf("unexpected creator %d", v.CreatedBy)
	}
}

func TestService_MyVisitsAndHistory(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	past := f.now.Add(-3 * time.Hour)
	if _, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "Old Friend", ValidFrom: &past}); err != nil {
		t.Fatalf("create past: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "New Friend"}); err != nil {
		t.Fatalf("create upcoming: %v", err)
	}

	lists, err := f.svc.MyVisits(ctx, f.resident)
	if err != nil {
		t.Fatalf("my visits: %v", err)
	}
	if len(lists.Upcoming) != 1 || len(lists.Past) != 1 {
		t.Fatalf("unexpected split: %d upcoming, %d past", len(lists.Upcoming), len(lists.Past))
	}
	if lists.Past[0].Status != visit.StatusExpired {
		t.Fatalf("expected derived EXPIRED, got %s", lists.Past[0].Status)
	}

	history, err := f.svc.History(ctx, f.resident, "old")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].VisitorName != "Old Friend" {
		t.Fatalf("unexpected history: %+v", history)
	}
	history, _ = f.svc.History(ctx, f.resident, "nobody")
	if len(history) != 0 {
		t.Fatalf("expected empty search result")
	}
}

func TestService_CheckIn(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	v, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "Ana"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stranger := user.Actor{User: user.User{ID: 999, RoleID: user.RoleResident, Resident: true}, BuildingID: f.resident.BuildingID}
	if _, err := f.svc.CheckIn(ctx, stranger, v.ID); err == nil {
		t.Fatalf("expected forbidden for another resident")
	}

	checked, err := f.svc.CheckIn(ctx, f.concierge, v.ID)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	if checked.Status != visit.StatusCheckedIn || checked.CheckInAt == nil {
		t.Fatalf("visit not checked in: %+v", checked)
	}
	again, err := f.svc.CheckIn(ctx, f.resident, v.ID)
	if err != nil {
		t.Fatalf("second check in should be idempotent: %v", err)
	}
	if !again.CheckInAt.Equal(*checked.CheckInAt) {
		t.Fatalf("check-in time changed")
	}
}

func TestService_CheckInExpired(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	v, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "Late"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.now = f.now.Add(5 * time.Hour)

	_, err = f.svc.CheckIn(ctx, f.resident, v.ID)
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := f.store.GetVisit(ctx, v.ID)
	if stored.Status != visit.StatusExpired {
		t.Fatalf("expected stored status EXPIRED, got %s", stored.Status)
	}
}

func TestService_QRCheck(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.Create(ctx, f.resident, CreateInput{VisitorName: "Ana", VisitorDocument: "11.111.111-1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.QRCheck(ctx, f.resident, "11111111-1"); err == nil {
		t.Fatalf("expected forbidden for residents")
	}
	_, err := f.svc.QRCheck(ctx, f.concierge, "22.222.222-2")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	v, err := f.svc.QRCheck(ctx, f.concierge, "11.111.111-1")
	if err != nil {
		t.Fatalf("qr check: %v", err)
	}
	if v.Status != visit.StatusCheckedIn {
		t.Fatalf("expected checked in, got %s", v.Status)
	}
}

func TestService_Contacts(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	c, err := f.svc.CreateContact(ctx, f.resident, ContactInput{VisitorName: "Mamá", VisitorDocument: "9.876.543-2", Alias: "familia"})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	if c.UnitID == nil || *c.UnitID != f.apt.ID {
		t.Fatalf("contact should default to the owner's unit")
	}
	if _, err := f.svc.CreateContact(ctx, f.resident, ContactInput{}); err == nil {
		t.Fatalf("expected validation error")
	}

	list, err := f.svc.ListContacts(ctx, f.resident, "fam", 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list contacts: %v %d", err, len(list))
	}
	others, _ := f.svc.ListContacts(ctx, f.concierge, "", 100)
	if len(others) != 0 {
		t.Fatalf("contacts leaked across owners")
	}

	v, err := f.svc.RegisterFromContact(ctx, f.resident, c.ID, CreateInput{})
	if err != nil {
		t.Fatalf("register from contact: %v", err)
	}
	if v.VisitorName != "Mamá" || v.VisitorDocument != "9876543-2" {
		t.Fatalf("unexpected visit from contact: %+v", v)
	}

	if err := f.svc.DeleteContact(ctx, f.concierge, c.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
	if err := f.svc.DeleteContact(ctx, f.resident, c.ID); err != nil {
		t.Fatalf("delete contact: %v", err)
	}
}

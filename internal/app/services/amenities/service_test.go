package amenities

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

type fixture struct {
	svc      *Service
	admin    user.Actor
	resident user.Actor
	now      time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	resident, err := store.CreateUser(ctx, user.User{FirstName: "Carla", LastName: "Muñoz", Email: "carla@example.com", RoleID: user.RoleResident})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f := &fixture{
		svc:      New(store, store, nil),
		admin:    user.Actor{User: user.User{ID: 900, RoleID: user.RoleAdmin}, BuildingID: 5},
		resident: user.Actor{User: resident, BuildingID: 5},
		// Monday.
		now: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) quincho(t *testing.T) Detail {
	t.Helper()
	ctx := context.Background()
	cost := decimal.RequireFromString("15000")
	a, err := f.svc.Create(ctx, f.admin, Input{Name: "Quincho", CostPerSlot: &cost})
	if err != nil {
		t.Fatalf("create amenity: %v", err)
	}
	off := false
	d, err := f.svc.ReplaceSlots(ctx, f.admin, a.ID, []SlotInput{
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "14:00"},
		{DayOfWeek: 1, StartTime: "15:00", EndTime: "19:00"},
		{DayOfWeek: 1, StartTime: "20:00", EndTime: "23:00", Active: &off},
		{DayOfWeek: 6, StartTime: "12:00", EndTime: "18:00"},
	})
	if err != nil {
		t.Fatalf("replace slots: %v", err)
	}
	return d
}

func TestService_AmenityCRUD(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.Create(ctx, f.resident, Input{Name: "Gym"}); err == nil {
		t.Fatalf("expected forbidden for residents")
	}
	negative := decimal.NewFromInt(-1)
	if _, err := f.svc.Create(ctx, f.admin, Input{Name: "Gym", CostPerSlot: &negative}); err == nil {
		t.Fatalf("expected negative cost to be rejected")
	}
	if _, err := f.svc.Create(ctx, f.admin, Input{Name: "Gym", Status: "broken"}); err == nil {
		t.Fatalf("expected invalid status to be rejected")
	}

	gym, err := f.svc.Create(ctx, f.admin, Input{Name: " Gym "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if gym.Status != amenity.StatusActive || !gym.CostPerSlot.IsZero() || gym.Name != "Gym" {
		t.Fatalf("unexpected defaults: %+v", gym.Amenity)
	}
	if _, err := f.svc.Update(ctx, f.admin, gym.ID, Input{Name: "Gym", Status: "inactive"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	visible, err := f.svc.List(ctx, f.resident, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("inactive amenity visible to residents")
	}
	if _, err := f.svc.List(ctx, f.resident, true); err == nil {
		t.Fatalf("expected forbidden listing of inactive amenities")
	}
	all, _ := f.svc.List(ctx, f.admin, true)
	if len(all) != 1 {
		t.Fatalf("expected the inactive amenity for managers")
	}

	if err := f.svc.Delete(ctx, f.admin, gym.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.admin, gym.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestService_ReplaceSlotsValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.quincho(t)

	bad := [][]SlotInput{
		nil,
		{{DayOfWeek: 0, StartTime: "10:00", EndTime: "11:00"}},
		{{DayOfWeek: 8, StartTime: "10:00", EndTime: "11:00"}},
		{{DayOfWeek: 2, StartTime: "10am", EndTime: "11:00"}},
		{{DayOfWeek: 2, StartTime: "12:00", EndTime: "11:00"}},
	}
	for i, slots := range bad {
		if _, err := f.svc.ReplaceSlots(ctx, f.admin, a.ID, slots); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if len(a.Slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(a.Slots))
	}
}

func TestService_ReserveAndAvailability(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.quincho(t)
	morning := a.Slots[0]
	saturday := a.Slots[3]

	if _, err := f.svc.Availability(ctx, f.resident, a.ID, "2025-06-01"); err == nil {
		t.Fatalf("expected past date to be rejected")
	}

	r, err := f.svc.Reserve(ctx, f.resident, a.ID, morning.ID, "2025-06-09")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if r.Status != amenity.ReservationConfirmed || r.StartTime != "10:00" {
		t.Fatalf("unexpected reservation: %+v", r)
	}

	_, err = f.svc.Reserve(ctx, f.admin, a.ID, morning.ID, "2025-06-09")
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := f.svc.Reserve(ctx, f.resident, a.ID, saturday.ID, "2025-06-09"); err == nil {
		t.Fatalf("expected weekday mismatch")
	}
	if _, err := f.svc.Reserve(ctx, f.resident, a.ID, a.Slots[2].ID, "2025-06-09"); err == nil {
		t.Fatalf("expected inactive slot to be rejected")
	}
	if _, err := f.svc.Reserve(ctx, f.resident, a.ID, morning.ID, "2025-05-26"); err == nil {
		t.Fatalf("expected past date to be rejected")
	}

	avail, err := f.svc.Availability(ctx, f.resident, a.ID, "2025-06-09")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail.DayOfWeek != 1 || len(avail.Slots) != 2 {
		t.Fatalf("unexpected availability: %+v", avail)
	}
	if avail.Slots[0].Available || avail.Slots[0].ReservedBy != "Carla Muñoz" || !avail.Slots[1].Available {
		t.Fatalf("unexpected slot state: %+v", avail.Slots)
	}

	mine, _ := f.svc.MyReservations(ctx, f.resident)
	if len(mine) != 1 {
		t.Fatalf("expected one reservation, got %d", len(mine))
	}
	if _, err := f.svc.ReservationsByAmenity(ctx, f.resident, a.ID); err == nil {
		t.Fatalf("expected forbidden for residents")
	}
	byAmenity, err := f.svc.ReservationsByAmenity(ctx, f.admin, a.ID)
	if err != nil || len(byAmenity) != 1 {
		t.Fatalf("reservations by amenity: %v %d", err, len(byAmenity))
	}
}

func TestService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.quincho(t)

	r, err := f.svc.Reserve(ctx, f.resident, a.ID, a.Slots[1].ID, "2025-06-16")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	stranger := user.Actor{User: user.User{ID: 4242, RoleID: user.RoleResident}, BuildingID: 5}
	if _, err := f.svc.Cancel(ctx, stranger, r.ID); err == nil {
		t.Fatalf("expected forbidden for strangers")
	}
	cancelled, err := f.svc.Cancel(ctx, f.admin, r.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != amenity.ReservationCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("reservation not cancelled: %+v", cancelled)
	}
	if _, err := f.svc.Cancel(ctx, f.resident, r.ID); err == nil {
		t.Fatalf("expected error cancelling twice")
	}

	// The slot is free again.
	if _, err := f.svc.Reserve(ctx, f.resident, a.ID, a.Slots[1].ID, "2025-06-16"); err != nil {
		t.Fatalf("re-reserve after cancel: %v", err)
	}
}

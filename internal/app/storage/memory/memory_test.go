package memory

import (
	"context"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/chat"
	"github.com/domu-platform/domu/internal/app/domain/poll"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

func TestStoreUsersAndAccess(t *testing.T) {
	ctx := context.Background()
	store := New()

	b, err := store.CreateBuilding(ctx, building.Building{Name: "Edificio Sol", Address: "Av. Uno 100"})
	if err != nil {
		t.Fatalf("create building: %v", err)
	}
	un, err := store.CreateUnit(ctx, unit.Unit{BuildingID: b.ID, Number: "101"})
	if err != nil {
		t.Fatalf("create unit: %v", err)
	}
	u, err := store.CreateUser(ctx, user.User{Email: "Ana@Example.com", UnitID: &un.ID, RoleID: user.RoleResident})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "ana@example.com" {
		t.Fatalf("expected lower-cased email, got %s", u.Email)
	}
	if _, err := store.CreateUser(ctx, user.User{Email: "ana@example.com"}); apperrors.GetServiceError(err) == nil {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, "ANA@example.com"); err != nil {
		t.Fatalf("lookup by email: %v", err)
	}

	members, err := store.ListUsersByBuilding(ctx, b.ID)
	if err != nil || len(members) != 1 {
		t.Fatalf("expected unit resident in building listing, got %d (%v)", len(members), err)
	}

	if ok, _ := store.HasBuildingAccess(ctx, u.ID, b.ID); ok {
		t.Fatalf("unit link is not an explicit grant")
	}
	if err := store.GrantBuildingAccess(ctx, u.ID, b.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	buildings, _ := store.ListBuildingsForUser(ctx, u.ID)
	if len(buildings) != 1 || buildings[0].ID != b.ID {
		t.Fatalf("unexpected buildings %+v", buildings)
	}

	if _, err := store.GetUser(ctx, 9999); !apperrors.IsNotFound(apperrors.FromStore(err, "user not found")) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreTokensPurge(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()

	old, _ := store.CreateToken(ctx, user.Token{UserID: 1, Kind: user.TokenConfirmation, Value: "old", ExpiresAt: now.Add(-48 * time.Hour)})
	fresh, _ := store.CreateToken(ctx, user.Token{UserID: 1, Kind: user.TokenPasswordReset, Value: "fresh", ExpiresAt: now.Add(time.Hour)})

	purged, err := store.PurgeTokens(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged token, got %d", purged)
	}
	if _, err := store.GetToken(ctx, old.Kind, old.Value); err == nil {
		t.Fatalf("old token should be gone")
	}
	if _, err := store.GetToken(ctx, fresh.Kind, fresh.Value); err != nil {
		t.Fatalf("fresh token should remain: %v", err)
	}
}

func TestStorePollVotesAreUnique(t *testing.T) {
	ctx := context.Background()
	store := New()

	p, opts, err := store.CreatePoll(ctx, poll.Poll{BuildingID: 1, Title: "Pintura", Status: poll.StatusOpen, ClosesAt: time.Now().Add(time.Hour)}, []string{"Blanco", "Gris"})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	if len(opts) != 2 || opts[1].Position != 1 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if _, err := store.CreateVote(ctx, poll.Vote{PollID: p.ID, OptionID: opts[0].ID, UserID: 7}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	_, err = store.CreateVote(ctx, poll.Vote{PollID: p.ID, OptionID: opts[1].ID, UserID: 7})
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStoreReservationConflict(t *testing.T) {
	ctx := context.Background()
	store := New()

	a, _ := store.CreateAmenity(ctx, amenity.Amenity{BuildingID: 1, Name: "Quincho", Status: amenity.StatusActive})
	slots, err := store.ReplaceTimeSlots(ctx, a.ID, []amenity.TimeSlot{{DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00", Active: true}})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	date := time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)
	first, err := store.CreateReservation(ctx, amenity.Reservation{AmenityID: a.ID, UserID: 1, TimeSlotID: slots[0].ID, Date: date, Status: amenity.ReservationConfirmed})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.CreateReservation(ctx, amenity.Reservation{AmenityID: a.ID, UserID: 2, TimeSlotID: slots[0].ID, Date: date, Status: amenity.ReservationConfirmed}); err == nil {
		t.Fatalf("expected conflict for double booking")
	}

	first.Status = amenity.ReservationCancelled
	if _, err := store.UpdateReservation(ctx, first); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := store.CreateReservation(ctx, amenity.Reservation{AmenityID: a.ID, UserID: 2, TimeSlotID: slots[0].ID, Date: date, Status: amenity.ReservationConfirmed}); err != nil {
		t.Fatalf("cancelled slot should be bookable: %v", err)
	}
}

func TestStoreChatRoomsAndMessages(t *testing.T) {
	ctx := context.Background()
	store := New()

	room, err := store.CreateRoom(ctx, chat.Room{BuildingID: 3}, []int64{10, 11})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if found, err := store.FindDirectRoom(ctx, 11, 10, 3); err != nil || found.ID != room.ID {
		t.Fatalf("expected direct room, got %+v (%v)", found, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.CreateMessage(ctx, chat.Message{RoomID: room.ID, SenderID: 10, Content: "hola", Type: chat.MessageText}); err != nil {
			t.Fatalf("message: %v", err)
		}
	}
	msgs, _ := store.ListMessages(ctx, room.ID, 2)
	if len(msgs) != 2 || msgs[0].ID > msgs[1].ID {
		t.Fatalf("expected the two newest messages oldest first, got %+v", msgs)
	}

	if err := store.SetRoomHidden(ctx, room.ID, 11, true); err != nil {
		t.Fatalf("hide: %v", err)
	}
	rooms, _ := store.ListRoomsForUser(ctx, 11, 3)
	if len(rooms) != 0 {
		t.Fatalf("hidden room should not be listed")
	}
	rooms, _ = store.ListRoomsForUser(ctx, 10, 3)
	if len(rooms) != 1 || rooms[0].LastMessageAt == nil {
		t.Fatalf("expected room with last message time, got %+v", rooms)
	}
}

func TestStoreSeedsForumCategories(t *testing.T) {
	store := New()
	cats, _ := store.ListCategories(context.Background())
	if len(cats) != 5 || cats[0].Name != "General" {
		t.Fatalf("unexpected categories %+v", cats)
	}
	if _, err := store.GetCategoryByName(context.Background(), "seguridad"); err != nil {
		t.Fatalf("category lookup should ignore case: %v", err)
	}
}

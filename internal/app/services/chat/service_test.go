package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/domu-platform/domu/internal/app/domain/building"
	domain "github.com/domu-platform/domu/internal/app/domain/chat"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

type published struct {
	recipients []int64
	event      Event
}

type spyNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *spyNotifier) Publish(_ context.Context, recipients []int64, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{recipients: append([]int64(nil), recipients...), event: ev})
	return nil
}

func (n *spyNotifier) Online(context.Context) ([]int64, error) { return []int64{7}, nil }

func (n *spyNotifier) last() published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	notifier *spyNotifier
	ana      user.Actor
	beto     user.Actor
	outsider user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	bld, _ := store.CreateBuilding(ctx, building.Building{Name: "Parque"})
	other, _ := store.CreateBuilding(ctx, building.Building{Name: "Lejano"})
	u1, _ := store.CreateUnit(ctx, unit.Unit{BuildingID: bld.ID, Number: "11"})
	u2, _ := store.CreateUnit(ctx, unit.Unit{BuildingID: bld.ID, Number: "12"})
	u3, _ := store.CreateUnit(ctx, unit.Unit{BuildingID: other.ID, Number: "99"})

	ana, _ := store.CreateUser(ctx, user.User{FirstName: "Ana", LastName: "Rojas", Email: "ana@example.com", RoleID: user.RoleResident, UnitID: &u1.ID})
	beto, _ := store.CreateUser(ctx, user.User{FirstName: "Beto", Email: "beto@example.com", RoleID: user.RoleResident, UnitID: &u2.ID})
	outsider, _ := store.CreateUser(ctx, user.User{FirstName: "Zoe", Email: "zoe@example.com", RoleID: user.RoleResident, UnitID: &u3.ID})

	notifier := &spyNotifier{}
	return &fixture{
		svc:      New(store, store, store, buildings.New(store, store, nil), notifier, nil),
		store:    store,
		notifier: notifier,
		ana:      user.Actor{User: ana, BuildingID: bld.ID},
		beto:     user.Actor{User: beto, BuildingID: bld.ID},
		outsider: outsider,
	}
}

func TestService_ConversationFlow(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.StartConversation(ctx, f.ana, f.outsider.ID); err == nil {
		t.Fatalf("expected users of another building to be rejected")
	}
	room, err := f.svc.StartConversation(ctx, f.ana, f.beto.ID())
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	again, err := f.svc.StartConversation(ctx, f.beto, f.ana.ID())
	if err != nil || again.ID != room.ID {
		t.Fatalf("expected the existing room to be reused: %v", err)
	}

	if _, err := f.svc.SendMessage(ctx, f.ana, room.ID, "   ", ""); err == nil {
		t.Fatalf("expected empty content to be rejected")
	}
	msg, err := f.svc.SendMessage(ctx, f.ana, room.ID, "Hola vecino", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Type != domain.MessageText {
		t.Fatalf("expected TEXT message, got %s", msg.Type)
	}
	pushed := f.notifier.last()
	if pushed.event.Type != EventNewMessage || pushed.event.RoomID != room.ID || pushed.event.Message.ID != msg.ID {
		t.Fatalf("unexpected push: %+v", pushed.event)
	}
	if len(pushed.recipients) != 2 {
		t.Fatalf("expected both participants as recipients, got %v", pushed.recipients)
	}

	stranger := user.Actor{User: f.outsider, BuildingID: f.ana.BuildingID}
	_, err = f.svc.Messages(ctx, stranger, room.ID, 0)
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden for non participants, got %v", err)
	}
	history, err := f.svc.Messages(ctx, f.beto, room.ID, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("messages: %v %d", err, len(history))
	}

	rooms, err := f.svc.MyRooms(ctx, f.beto)
	if err != nil || len(rooms) != 1 {
		t.Fatalf("my rooms: %v %d", err, len(rooms))
	}
	if rooms[0].LastMessage == nil || rooms[0].LastMessage.Content != "Hola vecino" || len(rooms[0].Participants) != 2 {
		t.Fatalf("unexpected summary: %+v", rooms[0])
	}

	if err := f.svc.HideRoom(ctx, f.beto, room.ID); err != nil {
		t.Fatalf("hide: %v", err)
	}
	if rooms, _ := f.svc.MyRooms(ctx, f.beto); len(rooms) != 0 {
		t.Fatalf("hidden room still listed")
	}
	if _, err := f.svc.SendMessage(ctx, f.ana, room.ID, "¿Estás?", "text"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rooms, _ := f.svc.MyRooms(ctx, f.beto); len(rooms) != 1 {
		t.Fatalf("new message should unhide the room")
	}
}

func TestService_TypingRelay(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	room, err := f.svc.StartConversation(ctx, f.ana, f.beto.ID())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.svc.HandleInbound(ctx, f.ana.ID(), Inbound{Type: "typing", RoomID: room.ID})
	pushed := f.notifier.last()
	if pushed.event.Type != EventTyping || pushed.event.UserID != f.ana.ID() {
		t.Fatalf("unexpected typing event: %+v", pushed.event)
	}
	if len(pushed.recipients) != 1 || pushed.recipients[0] != f.beto.ID() {
		t.Fatalf("typing should go to the other participant only: %v", pushed.recipients)
	}

	before := len(f.notifier.events)
	f.svc.HandleInbound(ctx, f.outsider.ID, Inbound{Type: EventTyping, RoomID: room.ID})
	if len(f.notifier.events) != before {
		t.Fatalf("typing from a non participant must be ignored")
	}

	online, err := f.svc.Online(ctx)
	if err != nil || len(online) != 1 {
		t.Fatalf("online: %v %v", err, online)
	}
}

func TestService_Requests(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	if _, err := f.svc.CreateRequest(ctx, f.ana, f.ana.ID(), "hola"); err == nil {
		t.Fatalf("expected self request to be rejected")
	}
	if _, err := f.svc.CreateRequest(ctx, f.ana, f.outsider.ID, "hola"); err == nil {
		t.Fatalf("expected request outside the building to be rejected")
	}
	req, err := f.svc.CreateRequest(ctx, f.ana, f.beto.ID(), " ¿Conversamos? ")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := f.svc.CreateRequest(ctx, f.beto, f.ana.ID(), "dup"); err == nil {
		t.Fatalf("expected duplicate request between the pair to be rejected")
	}

	pending, err := f.svc.PendingRequests(ctx, f.beto)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending: %v %d", err, len(pending))
	}

	if _, err := f.svc.RespondRequest(ctx, f.ana, req.ID, domain.RequestApproved); err == nil {
		t.Fatalf("only the receiver may answer")
	}
	if _, err := f.svc.RespondRequest(ctx, f.beto, req.ID, "maybe"); err == nil {
		t.Fatalf("expected invalid status")
	}
	approved, err := f.svc.RespondRequest(ctx, f.beto, req.ID, "approved")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.RequestApproved {
		t.Fatalf("unexpected status %s", approved.Status)
	}
	if _, err := f.svc.RespondRequest(ctx, f.beto, req.ID, domain.RequestRejected); err == nil {
		t.Fatalf("expected answered request to be final")
	}

	rooms, err := f.svc.MyRooms(ctx, f.beto)
	if err != nil || len(rooms) != 1 {
		t.Fatalf("approval should open a room: %v %d", err, len(rooms))
	}
	if rooms[0].LastMessage == nil || rooms[0].LastMessage.Content != "¿Conversamos?" || rooms[0].LastMessage.SenderID != f.ana.ID() {
		t.Fatalf("initial message not posted: %+v", rooms[0].LastMessage)
	}
}

func TestService_Neighbors(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	list, err := f.svc.Neighbors(ctx, f.ana)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(list) != 1 || list[0].ID != f.beto.ID() || list[0].UnitNumber != "12" {
		t.Fatalf("unexpected neighbours: %+v", list)
	}
	if _, err := f.svc.Neighbors(ctx, user.Actor{User: f.ana.User}); err == nil {
		t.Fatalf("expected building required")
	}
}

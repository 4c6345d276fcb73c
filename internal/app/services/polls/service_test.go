package polls

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/poll"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

type fixture struct {
	svc   *Service
	admin user.Actor
	alice user.Actor
	bob   user.Actor
	now   time.Time
}

func setup() *fixture {
	f := &fixture{
		svc:   New(memory.New(), nil),
		admin: user.Actor{User: user.User{ID: 1, RoleID: user.RoleAdmin}, BuildingID: 40},
		alice: user.Actor{User: user.User{ID: 2, RoleID: user.RoleResident}, BuildingID: 40},
		bob:   user.Actor{User: user.User{ID: 3, RoleID: user.RoleResident}, BuildingID: 40},
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := setup()
	closes := f.now.Add(24 * time.Hour)

	cases := []struct {
		name  string
		actor user.Actor
		in    CreateInput
	}{
		{"resident", f.alice, CreateInput{Title: "t", ClosesAt: closes, Options: []string{"a", "b"}}},
		{"no title", f.admin, CreateInput{ClosesAt: closes, Options: []string{"a", "b"}}},
		{"past close", f.admin, CreateInput{Title: "t", ClosesAt: f.now.Add(-time.Minute), Options: []string{"a", "b"}}},
		{"blank options", f.admin, CreateInput{Title: "t", ClosesAt: closes, Options: []string{"a", "  "}}},
		{"no building", user.Actor{User: f.admin.User}, CreateInput{Title: "t", ClosesAt: closes, Options: []string{"a", "b"}}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, tc.actor, tc.in); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestService_VoteAndTally(t *testing.T) {
	ctx := context.Background()
	f := setup()

	created, err := f.svc.Create(ctx, f.admin, CreateInput{
		Title:    "¿Pintamos el hall?",
		ClosesAt: f.now.Add(48 * time.Hour),
		Options:  []string{" Sí ", "No", "Abstención"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.Options) != 3 || created.Options[0].Label != "Sí" {
		t.Fatalf("unexpected options: %+v", created.Options)
	}
	yes, no := created.Options[0].ID, created.Options[1].ID

	if _, err := f.svc.Vote(ctx, f.alice, created.ID, yes); err != nil {
		t.Fatalf("alice vote: %v", err)
	}
	_, err = f.svc.Vote(ctx, f.alice, created.ID, no)
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict on second vote, got %v", err)
	}
	if _, err := f.svc.Vote(ctx, f.bob, created.ID, 123456); err == nil {
		t.Fatalf("expected invalid option")
	}
	if _, err := f.svc.Vote(ctx, f.bob, created.ID, yes); err != nil {
		t.Fatalf("bob vote: %v", err)
	}
	res, err := f.svc.Vote(ctx, f.admin, created.ID, no)
	if err != nil {
		t.Fatalf("admin vote: %v", err)
	}
	if res.TotalVotes != 3 {
		t.Fatalf("expected 3 votes, got %d", res.TotalVotes)
	}
	if res.Options[0].Percentage != 66.7 || res.Options[1].Percentage != 33.3 || res.Options[2].Percentage != 0 {
		t.Fatalf("unexpected percentages: %+v", res.Options)
	}

	got, err := f.svc.Get(ctx, f.alice, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasVoted || got.SelectedOptionID == nil || *got.SelectedOptionID != yes {
		t.Fatalf("alice vote not reflected: %+v", got)
	}

	outsider := user.Actor{User: user.User{ID: 9, RoleID: user.RoleResident}, BuildingID: 41}
	if _, err := f.svc.Get(ctx, outsider, created.ID); err == nil {
		t.Fatalf("expected forbidden outside the building")
	}
}

func TestService_ExpiryClosesPolls(t *testing.T) {
	ctx := context.Background()
	f := setup()

	first, err := f.svc.Create(ctx, f.admin, CreateInput{Title: "A", ClosesAt: f.now.Add(time.Hour), Options: []string{"x", "y"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.admin, CreateInput{Title: "B", ClosesAt: f.now.Add(72 * time.Hour), Options: []string{"x", "y"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	if _, err := f.svc.Vote(ctx, f.alice, first.ID, first.Options[0].ID); err == nil {
		t.Fatalf("expected expired poll to refuse votes")
	}

	lists, err := f.svc.List(ctx, f.alice, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lists.Open) != 1 || len(lists.Closed) != 1 {
		t.Fatalf("unexpected split: %d open / %d closed", len(lists.Open), len(lists.Closed))
	}
	if lists.Closed[0].Status != poll.StatusClosed || lists.Closed[0].ClosedAt == nil {
		t.Fatalf("expired poll not closed: %+v", lists.Closed[0].Poll)
	}

	onlyOpen, _ := f.svc.List(ctx, f.alice, "open")
	if len(onlyOpen.Closed) != 0 || len(onlyOpen.Open) != 1 {
		t.Fatalf("status filter ignored")
	}
}

func TestService_CloseAndExport(t *testing.T) {
	ctx := context.Background()
	f := setup()

	created, err := f.svc.Create(ctx, f.admin, CreateInput{Title: `Horario "piscina"`, ClosesAt: f.now.Add(time.Hour), Options: []string{"Mañana", "Tarde"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Vote(ctx, f.alice, created.ID, created.Options[1].ID); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := f.svc.Close(ctx, f.alice, created.ID); err == nil {
		t.Fatalf("expected forbidden close for residents")
	}
	closed, err := f.svc.Close(ctx, f.admin, created.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != poll.StatusClosed {
		t.Fatalf("poll still open")
	}
	if _, err := f.svc.Vote(ctx, f.bob, created.ID, created.Options[0].ID); err == nil {
		t.Fatalf("expected closed poll to refuse votes")
	}

	data, err := f.svc.ExportCSV(ctx, f.admin, created.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	want := []string{
		"Pregunta,Estado,Cierra en,Total votos",
		`"Horario ""piscina""","CLOSED","2025-06-01T13:00:00Z","1"`,
		"",
		"Opción,Votos",
		`"Mañana","0"`,
		`"Tarde","1"`,
		"",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected csv:\n%s", data)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, lines[i], want[i])
		}
	}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/poll"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/platform/migrations"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateUserNormalisesEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(nil, user.RoleResident, "Ana", "Soto", nil, "ana@example.com", "", "", true, "hash", user.StatusActive, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	u, err := store.CreateUser(context.Background(), user.User{
		RoleID: user.RoleResident, FirstName: "Ana", LastName: "Soto", Email: " Ana@Example.com ",
		Resident: true, PasswordHash: "hash", Status: user.StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUser(context.Background(), 7)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBuildingRequestMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE building_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateBuildingRequest(context.Background(), building.Request{ID: 3, Status: building.RequestApproved})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPaymentsByChargesExpandsIn(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM common_payments WHERE charge_id IN \(\$1, \$2\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "charge_id", "amount", "status"}).
			AddRow(int64(9), int64(2), "15000.50", "CONFIRMED"))

	payments, err := store.ListPaymentsByCharges(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "15000.5", payments[0].Amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())

	none, err := store.ListPaymentsByCharges(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestCreatePollInsertsOptionsInTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO polls").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectQuery("INSERT INTO poll_options").WithArgs(int64(5), "Si", 0).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	mock.ExpectQuery("INSERT INTO poll_options").WithArgs(int64(5), "No", 1).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	p, opts, err := store.CreatePoll(context.Background(), poll.Poll{BuildingID: 1, CreatedBy: 2, Title: "Piscina", ClosesAt: time.Now().Add(time.Hour), Status: poll.StatusOpen}, []string{"Si", "No"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ID)
	require.Len(t, opts, 2)
	assert.Equal(t, int64(11), opts[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeTokensReportsRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM user_tokens").WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.PurgeTokens(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := New(db)

	b, err := store.CreateBuilding(ctx, building.Building{Name: "Integración", Address: "Calle 1"})
	if err != nil {
		t.Fatalf("create building: %v", err)
	}
	email := "it-" + time.Now().Format("150405.000000") + "@example.com"
	u, err := store.CreateUser(ctx, user.User{RoleID: user.RoleAdmin, FirstName: "It", Email: email, PasswordHash: "x", Status: user.StatusActive})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.GrantBuildingAccess(ctx, u.ID, b.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ok, err := store.HasBuildingAccess(ctx, u.ID, b.ID)
	if err != nil || !ok {
		t.Fatalf("expected access, got %v (%v)", ok, err)
	}

	p, opts, err := store.CreatePoll(ctx, poll.Poll{BuildingID: b.ID, CreatedBy: u.ID, Title: "IT", ClosesAt: time.Now().Add(time.Hour), Status: poll.StatusOpen}, []string{"A", "B"})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	if _, err := store.CreateVote(ctx, poll.Vote{PollID: p.ID, OptionID: opts[0].ID, UserID: u.ID}); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := store.CreateVote(ctx, poll.Vote{PollID: p.ID, OptionID: opts[1].ID, UserID: u.ID}); err == nil {
		t.Fatalf("expected unique violation on second vote")
	}
}

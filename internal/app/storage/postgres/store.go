package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	"github.com/jmoiron/sqlx"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)
var _ storage.BuildingStore = (*Store)(nil)
var _ storage.UnitStore = (*Store)(nil)
var _ storage.FinanceStore = (*Store)(nil)
var _ storage.VisitStore = (*Store)(nil)
var _ storage.IncidentStore = (*Store)(nil)
var _ storage.ParcelStore = (*Store)(nil)
var _ storage.PollStore = (*Store)(nil)
var _ storage.AmenityStore = (*Store)(nil)
var _ storage.ChatStore = (*Store)(nil)
var _ storage.ForumStore = (*Store)(nil)
var _ storage.StaffStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.LibraryStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- UserStore --------------------------------------------------------------

const userColumns = `id, unit_id, role_id, first_name, last_name, birth_date, email, phone,
	document_number, resident, password_hash, status, avatar_url, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now
	u.UpdatedAt = now

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (unit_id, role_id, first_name, last_name, birth_date, email, phone,
			document_number, resident, password_hash, status, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`, u.UnitID, u.RoleID, u.FirstName, u.LastName, u.BirthDate, u.Email, u.Phone,
		u.DocumentNumber, u.Resident, u.PasswordHash, u.Status, u.AvatarURL, u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET unit_id = $2, role_id = $3, first_name = $4, last_name = $5, birth_date = $6,
			email = $7, phone = $8, document_number = $9, resident = $10, password_hash = $11,
			status = $12, avatar_url = $13, updated_at = $14
		WHERE id = $1
	`, u.ID, u.UnitID, u.RoleID, u.FirstName, u.LastName, u.BirthDate, u.Email, u.Phone,
		u.DocumentNumber, u.Resident, u.PasswordHash, u.Status, u.AvatarURL, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if err := checkAffected(result); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return u, err
}

func (s *Store) ListUsersByUnit(ctx context.Context, unitID int64) ([]user.User, error) {
	var result []user.User
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+userColumns+` FROM users WHERE unit_id = $1 ORDER BY id
	`, unitID)
	return result, err
}

func (s *Store) ListUsersByBuilding(ctx context.Context, buildingID int64) ([]user.User, error) {
	var result []user.User
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT user_id FROM user_buildings WHERE building_id = $1)
		   OR unit_id IN (SELECT id FROM housing_units WHERE building_id = $1)
		ORDER BY id
	`, buildingID)
	return result, err
}

// --- TokenStore -------------------------------------------------------------

func (s *Store) CreateToken(ctx context.Context, t user.Token) (user.Token, error) {
	t.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO user_tokens (user_id, kind, value, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, t.UserID, t.Kind, t.Value, t.ExpiresAt.UTC(), t.UsedAt, t.CreatedAt).Scan(&t.ID)
	if err != nil {
		return user.Token{}, err
	}
	return t, nil
}

func (s *Store) GetToken(ctx context.Context, kind user.TokenKind, value string) (user.Token, error) {
	var t user.Token
	err := s.db.GetContext(ctx, &t, `
		SELECT id, user_id, kind, value, expires_at, used_at, created_at
		FROM user_tokens
		WHERE kind = $1 AND value = $2
	`, kind, value)
	return t, err
}

func (s *Store) MarkTokenUsed(ctx context.Context, id int64, usedAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE user_tokens SET used_at = $2 WHERE id = $1`, id, usedAt.UTC())
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (s *Store) PurgeTokens(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM user_tokens
		WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $1)
	`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- BuildingStore ----------------------------------------------------------

const buildingColumns = `id, name, address, commune, city, latitude, longitude, created_at`

func (s *Store) CreateBuilding(ctx context.Context, b building.Building) (building.Building, error) {
	b.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO buildings (name, address, commune, city, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, b.Name, b.Address, b.Commune, b.City, b.Latitude, b.Longitude, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return building.Building{}, err
	}
	return b, nil
}

func (s *Store) GetBuilding(ctx context.Context, id int64) (building.Building, error) {
	var b building.Building
	err := s.db.GetContext(ctx, &b, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1`, id)
	return b, err
}

func (s *Store) ListBuildingsForUser(ctx context.Context, userID int64) ([]building.Building, error) {
	var result []building.Building
	err := s.db.SelectContext(ctx, &result, `
		SELECT b.id, b.name, b.address, b.commune, b.city, b.latitude, b.longitude, b.created_at
		FROM buildings b
		JOIN user_buildings ub ON ub.building_id = b.id
		WHERE ub.user_id = $1
		ORDER BY b.id
	`, userID)
	return result, err
}

func (s *Store) GrantBuildingAccess(ctx context.Context, userID, buildingID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_buildings (user_id, building_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, buildingID)
	return err
}

func (s *Store) HasBuildingAccess(ctx context.Context, userID, buildingID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM user_buildings WHERE user_id = $1 AND building_id = $2)
	`, userID, buildingID)
	return exists, err
}

const requestColumns = `id, requested_by, name, address, commune, city, latitude, longitude,
	proof_text, status, reviewed_by, review_notes, building_id, created_at, reviewed_at`

func (s *Store) CreateBuildingRequest(ctx context.Context, r building.Request) (building.Request, error) {
	r.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO building_requests (requested_by, name, address, commune, city, latitude, longitude,
			proof_text, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, r.RequestedBy, r.Name, r.Address, r.Commune, r.City, r.Latitude, r.Longitude,
		r.ProofText, r.Status, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return building.Request{}, err
	}
	return r, nil
}

func (s *Store) UpdateBuildingRequest(ctx context.Context, r building.Request) (building.Request, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE building_requests
		SET status = $2, reviewed_by = $3, review_notes = $4, building_id = $5, reviewed_at = $6
		WHERE id = $1
	`, r.ID, r.Status, r.ReviewedBy, r.ReviewNotes, r.BuildingID, r.ReviewedAt)
	if err != nil {
		return building.Request{}, err
	}
	if err := checkAffected(result); err != nil {
		return building.Request{}, err
	}
	return s.GetBuildingRequest(ctx, r.ID)
}

func (s *Store) GetBuildingRequest(ctx context.Context, id int64) (building.Request, error) {
	var r building.Request
	err := s.db.GetContext(ctx, &r, `SELECT `+requestColumns+` FROM building_requests WHERE id = $1`, id)
	return r, err
}

func (s *Store) ListBuildingRequests(ctx context.Context, status string) ([]building.Request, error) {
	var result []building.Request
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+requestColumns+` FROM building_requests
		WHERE ($1 = '' OR status = UPPER($1))
		ORDER BY created_at DESC, id DESC
	`, status)
	return result, err
}

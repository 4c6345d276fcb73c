package memory

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == email {
			return user.User{}, apperrors.Conflict("email already registered")
		}
	}
	now := time.Now().UTC()
	u.ID = s.nextIDLocked()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, notFound("user", email)
}

func (s *Store) ListUsersByUnit(_ context.Context, unitID int64) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, u := range s.users {
		if u.UnitID != nil && *u.UnitID == unitID {
			result = append(result, u)
		}
	}
	sortByID(result, func(u user.User) int64 { return u.ID })
	return result, nil
}

func (s *Store) ListUsersByBuilding(_ context.Context, buildingID int64) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, u := range s.users {
		if _, ok := s.access[u.ID][buildingID]; ok {
			result = append(result, u)
			continue
		}
		if u.UnitID != nil {
			if un, ok := s.units[*u.UnitID]; ok && un.BuildingID == buildingID {
				result = append(result, u)
			}
		}
	}
	sortByID(result, func(u user.User) int64 { return u.ID })
	return result, nil
}

// TokenStore implementation --------------------------------------------------

func (s *Store) CreateToken(_ context.Context, t user.Token) (user.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextIDLocked()
	t.CreatedAt = time.Now().UTC()
	s.tokens[t.ID] = t
	return t, nil
}

func (s *Store) GetToken(_ context.Context, kind user.TokenKind, value string) (user.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.Kind == kind && t.Value == value {
			return t, nil
		}
	}
	return user.Token{}, notFound("token", kind)
}

func (s *Store) MarkTokenUsed(_ context.Context, id int64, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok {
		return notFound("token", id)
	}
	usedAt = usedAt.UTC()
	t.UsedAt = &usedAt
	s.tokens[id] = t
	return nil
}

func (s *Store) PurgeTokens(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, t := range s.tokens {
		used := t.UsedAt != nil && t.UsedAt.Before(before)
		if used || t.ExpiresAt.Before(before) {
			delete(s.tokens, id)
			purged++
		}
	}
	return purged, nil
}

// BuildingStore implementation -----------------------------------------------

func (s *Store) CreateBuilding(_ context.Context, b building.Building) (building.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.nextIDLocked()
	b.CreatedAt = time.Now().UTC()
	s.buildings[b.ID] = b
	return b, nil
}

func (s *Store) GetBuilding(_ context.Context, id int64) (building.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.buildings[id]
	if !ok {
		return building.Building{}, notFound("building", id)
	}
	return b, nil
}

func (s *Store) ListBuildingsForUser(_ context.Context, userID int64) ([]building.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []building.Building
	for id := range s.access[userID] {
		if b, ok := s.buildings[id]; ok {
			result = append(result, b)
		}
	}
	sortByID(result, func(b building.Building) int64 { return b.ID })
	return result, nil
}

func (s *Store) GrantBuildingAccess(_ context.Context, userID, buildingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buildings[buildingID]; !ok {
		return notFound("building", buildingID)
	}
	set, ok := s.access[userID]
	if !ok {
		set = make(map[int64]struct{})
		s.access[userID] = set
	}
	set[buildingID] = struct{}{}
	return nil
}

func (s *Store) HasBuildingAccess(_ context.Context, userID, buildingID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.access[userID][buildingID]
	return ok, nil
}

func (s *Store) CreateBuildingRequest(_ context.Context, r building.Request) (building.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextIDLocked()
	r.CreatedAt = time.Now().UTC()
	s.buildingReqs[r.ID] = r
	return r, nil
}

func (s *Store) UpdateBuildingRequest(_ context.Context, r building.Request) (building.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.buildingReqs[r.ID]
	if !ok {
		return building.Request{}, notFound("building request", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	s.buildingReqs[r.ID] = r
	return r, nil
}

func (s *Store) GetBuildingRequest(_ context.Context, id int64) (building.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.buildingReqs[id]
	if !ok {
		return building.Request{}, notFound("building request", id)
	}
	return r, nil
}

func (s *Store) ListBuildingRequests(_ context.Context, status string) ([]building.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []building.Request
	for _, r := range s.buildingReqs {
		if status == "" || strings.EqualFold(r.Status, status) {
			result = append(result, r)
		}
	}
	// newest first
	sortByID(result, func(r building.Request) int64 { return -r.ID })
	return result, nil
}

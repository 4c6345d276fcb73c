package memory

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/chat"
)

// ChatStore implementation ---------------------------------------------------

func (s *Store) CreateRoom(_ context.Context, r chat.Room, participantIDs []int64) (chat.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextIDLocked()
	r.CreatedAt = time.Now().UTC()
	s.rooms[r.ID] = r

	parts := make([]chat.Participant, 0, len(participantIDs))
	for _, id := range participantIDs {
		parts = append(parts, chat.Participant{RoomID: r.ID, UserID: id})
	}
	s.participants[r.ID] = parts
	return r, nil
}

func (s *Store) GetRoom(_ context.Context, id int64) (chat.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return chat.Room{}, notFound("room", id)
	}
	return r, nil
}

func (s *Store) ListRoomsForUser(_ context.Context, userID, buildingID int64) ([]chat.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []chat.Room
	for id, r := range s.rooms {
		if r.BuildingID != buildingID {
			continue
		}
		for _, p := range s.participants[id] {
			if p.UserID == userID && !p.Hidden {
				result = append(result, r)
				break
			}
		}
	}
	// most recent activity first
	sortByID(result, func(r chat.Room) int64 {
		if r.LastMessageAt != nil {
			return -r.LastMessageAt.UnixNano()
		}
		return -r.CreatedAt.UnixNano()
	})
	return result, nil
}

func (s *Store) ListParticipants(_ context.Context, roomID int64) ([]chat.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, notFound("room", roomID)
	}
	return append([]chat.Participant(nil), s.participants[roomID]...), nil
}

func (s *Store) SetRoomHidden(_ context.Context, roomID, userID int64, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := s.participants[roomID]
	for i := range parts {
		if parts[i].UserID == userID {
			parts[i].Hidden = hidden
			return nil
		}
	}
	return notFound("participant", userID)
}

func (s *Store) FindDirectRoom(_ context.Context, userA, userB, buildingID int64) (chat.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, r := range s.rooms {
		if r.BuildingID != buildingID {
			continue
		}
		var hasA, hasB bool
		for _, p := range s.participants[id] {
			hasA = hasA || p.UserID == userA
			hasB = hasB || p.UserID == userB
		}
		if hasA && hasB {
			return r, nil
		}
	}
	return chat.Room{}, notFound("room", buildingID)
}

func (s *Store) CreateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[m.RoomID]
	if !ok {
		return chat.Message{}, notFound("room", m.RoomID)
	}
	m.ID = s.nextIDLocked()
	m.CreatedAt = time.Now().UTC()
	s.messages[m.ID] = m

	at := m.CreatedAt
	r.LastMessageAt = &at
	s.rooms[r.ID] = r
	return m, nil
}

func (s *Store) ListMessages(_ context.Context, roomID int64, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []chat.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			result = append(result, m)
		}
	}
	sortByID(result, func(m chat.Message) int64 { return m.ID })
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (s *Store) CreateChatRequest(_ context.Context, r chat.Request) (chat.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	r.ID = s.nextIDLocked()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.chatRequests[r.ID] = r
	return r, nil
}

func (s *Store) UpdateChatRequest(_ context.Context, r chat.Request) (chat.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.chatRequests[r.ID]
	if !ok {
		return chat.Request{}, notFound("chat request", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.chatRequests[r.ID] = r
	return r, nil
}

func (s *Store) GetChatRequest(_ context.Context, id int64) (chat.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.chatRequests[id]
	if !ok {
		return chat.Request{}, notFound("chat request", id)
	}
	return r, nil
}

func (s *Store) ListPendingChatRequests(_ context.Context, receiverID, buildingID int64) ([]chat.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []chat.Request
	for _, r := range s.chatRequests {
		if r.ReceiverID == receiverID && r.BuildingID == buildingID && r.Status == chat.RequestPending {
			result = append(result, r)
		}
	}
	sortByID(result, func(r chat.Request) int64 { return -r.ID })
	return result, nil
}

func (s *Store) ChatRequestExists(_ context.Context, userA, userB, buildingID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.chatRequests {
		if r.BuildingID != buildingID {
			continue
		}
		pair := (r.SenderID == userA && r.ReceiverID == userB) || (r.SenderID == userB && r.ReceiverID == userA)
		if pair && (strings.EqualFold(r.Status, chat.RequestPending) || strings.EqualFold(r.Status, chat.RequestApproved)) {
			return true, nil
		}
	}
	return false, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/chat"
)

// --- ChatStore --------------------------------------------------------------

const chatRequestColumns = `id, sender_id, receiver_id, building_id, initial_message, status, created_at, updated_at`

func (s *Store) CreateRoom(ctx context.Context, r chat.Room, participantIDs []int64) (chat.Room, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return chat.Room{}, err
	}
	defer func() { _ = tx.Rollback() }()

	r.CreatedAt = time.Now().UTC()
	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO chat_rooms (building_id, created_at) VALUES ($1, $2) RETURNING id
	`, r.BuildingID, r.CreatedAt).Scan(&r.ID); err != nil {
		return chat.Room{}, err
	}
	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_participants (room_id, user_id) VALUES ($1, $2)
		`, r.ID, userID); err != nil {
			return chat.Room{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return chat.Room{}, err
	}
	return r, nil
}

func (s *Store) GetRoom(ctx context.Context, id int64) (chat.Room, error) {
	var r chat.Room
	err := s.db.GetContext(ctx, &r, `
		SELECT id, building_id, created_at, last_message_at FROM chat_rooms WHERE id = $1
	`, id)
	return r, err
}

func (s *Store) ListRoomsForUser(ctx context.Context, userID, buildingID int64) ([]chat.Room, error) {
	var result []chat.Room
	err := s.db.SelectContext(ctx, &result, `
		SELECT r.id, r.building_id, r.created_at, r.last_message_at
		FROM chat_rooms r
		JOIN chat_participants p ON p.room_id = r.id
		WHERE p.user_id = $1 AND r.building_id = $2 AND NOT p.hidden
		ORDER BY COALESCE(r.last_message_at, r.created_at) DESC
	`, userID, buildingID)
	return result, err
}

func (s *Store) ListParticipants(ctx context.Context, roomID int64) ([]chat.Participant, error) {
	var result []chat.Participant
	err := s.db.SelectContext(ctx, &result, `
		SELECT room_id, user_id, hidden FROM chat_participants WHERE room_id = $1 ORDER BY user_id
	`, roomID)
	return result, err
}

func (s *Store) SetRoomHidden(ctx context.Context, roomID, userID int64, hidden bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chat_participants SET hidden = $3 WHERE room_id = $1 AND user_id = $2
	`, roomID, userID, hidden)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (s *Store) FindDirectRoom(ctx context.Context, userA, userB, buildingID int64) (chat.Room, error) {
	var r chat.Room
	err := s.db.GetContext(ctx, &r, `
		SELECT r.id, r.building_id, r.created_at, r.last_message_at
		FROM chat_rooms r
		JOIN chat_participants a ON a.room_id = r.id AND a.user_id = $1
		JOIN chat_participants b ON b.room_id = r.id AND b.user_id = $2
		WHERE r.building_id = $3
		ORDER BY r.id
		LIMIT 1
	`, userA, userB, buildingID)
	return r, err
}

func (s *Store) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return chat.Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	m.CreatedAt = time.Now().UTC()
	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO chat_messages (room_id, sender_id, content, type, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, m.RoomID, m.SenderID, m.Content, m.Type, m.CreatedAt).Scan(&m.ID); err != nil {
		return chat.Message{}, err
	}
	result, err := tx.ExecContext(ctx, `UPDATE chat_rooms SET last_message_at = $2 WHERE id = $1`, m.RoomID, m.CreatedAt)
	if err != nil {
		return chat.Message{}, err
	}
	if err := checkAffected(result); err != nil {
		return chat.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, roomID int64, limit int) ([]chat.Message, error) {
	var result []chat.Message
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, room_id, sender_id, content, type, created_at FROM (
			SELECT id, room_id, sender_id, content, type, created_at
			FROM chat_messages
			WHERE room_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id
	`, roomID, limit)
	return result, err
}

func (s *Store) CreateChatRequest(ctx context.Context, r chat.Request) (chat.Request, error) {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO chat_requests (sender_id, receiver_id, building_id, initial_message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, r.SenderID, r.ReceiverID, r.BuildingID, r.InitialMessage, r.Status, r.CreatedAt, r.UpdatedAt).Scan(&r.ID)
	if err != nil {
		return chat.Request{}, err
	}
	return r, nil
}

func (s *Store) UpdateChatRequest(ctx context.Context, r chat.Request) (chat.Request, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE chat_requests SET status = $2, updated_at = $3 WHERE id = $1
	`, r.ID, r.Status, time.Now().UTC())
	if err != nil {
		return chat.Request{}, err
	}
	if err := checkAffected(result); err != nil {
		return chat.Request{}, err
	}
	return s.GetChatRequest(ctx, r.ID)
}

func (s *Store) GetChatRequest(ctx context.Context, id int64) (chat.Request, error) {
	var r chat.Request
	err := s.db.GetContext(ctx, &r, `SELECT `+chatRequestColumns+` FROM chat_requests WHERE id = $1`, id)
	return r, err
}

func (s *Store) ListPendingChatRequests(ctx context.Context, receiverID, buildingID int64) ([]chat.Request, error) {
	var result []chat.Request
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+chatRequestColumns+` FROM chat_requests
		WHERE receiver_id = $1 AND building_id = $2 AND status = $3
		ORDER BY created_at DESC
	`, receiverID, buildingID, chat.RequestPending)
	return result, err
}

func (s *Store) ChatRequestExists(ctx context.Context, userA, userB, buildingID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM chat_requests
			WHERE building_id = $3
			  AND status IN ($4, $5)
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		)
	`, userA, userB, buildingID, chat.RequestPending, chat.RequestApproved)
	return exists, err
}

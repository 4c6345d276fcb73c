package chat

import "time"

// Message types.
const (
	MessageText  = "TEXT"
	MessageAudio = "AUDIO"
)

// Request statuses.
const (
	RequestPending  = "PENDING"
	RequestApproved = "APPROVED"
	RequestRejected = "REJECTED"
)

// Room is a private conversation inside a building.
type Room struct {
	ID            int64      `json:"id" db:"id"`
	BuildingID    int64      `json:"buildingId" db:"building_id"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty" db:"last_message_at"`
}

// Participant links a user to a room. Hidden rooms are omitted from listings
// until a new message arrives.
type Participant struct {
	RoomID int64 `json:"roomId" db:"room_id"`
	UserID int64 `json:"userId" db:"user_id"`
	Hidden bool  `json:"hidden" db:"hidden"`
}

// Message is a chat line.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	RoomID    int64     `json:"roomId" db:"room_id"`
	SenderID  int64     `json:"senderId" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	Type      string    `json:"type" db:"type"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Request asks a neighbour to open a conversation.
type Request struct {
	ID             int64     `json:"id" db:"id"`
	SenderID       int64     `json:"senderId" db:"sender_id"`
	ReceiverID     int64     `json:"receiverId" db:"receiver_id"`
	BuildingID     int64     `json:"buildingId" db:"building_id"`
	InitialMessage string    `json:"initialMessage,omitempty" db:"initial_message"`
	Status         string    `json:"status" db:"status"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

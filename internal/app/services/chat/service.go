package chat

import (
	"context"
	"strings"
	"time"

	domain "github.com/domu-platform/domu/internal/app/domain/chat"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

const defaultMessageLimit = 50

// Service manages private conversations between neighbours.
type Service struct {
	store     storage.ChatStore
	users     storage.UserStore
	units     storage.UnitStore
	buildings *buildings.Service
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

// New constructs a chat service. notifier may be nil when no realtime
// delivery is wanted.
func New(store storage.ChatStore, users storage.UserStore, units storage.UnitStore, b *buildings.Service, notifier Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("chat")
	}
	return &Service{
		store:     store,
		users:     users,
		units:     units,
		buildings: b,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// Member is a participant summary.
type Member struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	UnitNumber string `json:"unitNumber,omitempty"`
	AvatarURL  string `json:"photoUrl,omitempty"`
}

// RoomSummary is a room with its participants and latest message.
type RoomSummary struct {
	domain.Room
	Participants []Member        `json:"participants"`
	LastMessage  *domain.Message `json:"lastMessage,omitempty"`
}

// MyRooms lists the caller's visible rooms in the selected building.
func (s *Service) MyRooms(ctx context.Context, actor user.Actor) ([]RoomSummary, error) {
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	rooms, err := s.store.ListRoomsForUser(ctx, actor.ID(), actor.BuildingID)
	if err != nil {
		return nil, err
	}
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summary, err := s.summarize(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, r domain.Room) (RoomSummary, error) {
	parts, err := s.store.ListParticipants(ctx, r.ID)
	if err != nil {
		return RoomSummary{}, err
	}
	summary := RoomSummary{Room: r, Participants: make([]Member, 0, len(parts))}
	for _, p := range parts {
		summary.Participants = append(summary.Participants, s.member(ctx, p.UserID))
	}
	last, err := s.store.ListMessages(ctx, r.ID, 1)
	if err != nil {
		return RoomSummary{}, err
	}
	if len(last) == 1 {
		summary.LastMessage = &last[0]
	}
	return summary, nil
}

func (s *Service) member(ctx context.Context, id int64) Member {
	m := Member{ID: id}
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return m
	}
	m.Name = u.FullName()
	m.AvatarURL = u.AvatarURL
	if u.UnitID != nil {
		if un, err := s.units.GetUnit(ctx, *u.UnitID); err == nil {
			m.UnitNumber = un.Number
		}
	}
	return m
}

// StartConversation opens, or reopens, the direct room with another user of
// the selected building.
func (s *Service) StartConversation(ctx context.Context, actor user.Actor, otherID int64) (domain.Room, error) {
	if !actor.HasBuilding() {
		return domain.Room{}, apperrors.BuildingRequired()
	}
	if otherID <= 0 || otherID == actor.ID() {
		return domain.Room{}, apperrors.Validation("a different user is required")
	}
	if err := s.ensureBothInBuilding(ctx, actor, otherID); err != nil {
		return domain.Room{}, err
	}
	room, err := s.findOrCreateRoom(ctx, actor.BuildingID, actor.ID(), otherID)
	if err != nil {
		return domain.Room{}, err
	}
	if err := s.store.SetRoomHidden(ctx, room.ID, actor.ID(), false); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *Service) ensureBothInBuilding(ctx context.Context, actor user.Actor, otherID int64) error {
	other, err := s.users.GetUser(ctx, otherID)
	if err != nil {
		return apperrors.FromStore(err, "user not found")
	}
	for _, u := range []user.User{actor.User, other} {
		ok, err := s.buildings.HasAccess(ctx, u, actor.BuildingID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Validation("both users must belong to the selected building")
		}
	}
	return nil
}

func (s *Service) findOrCreateRoom(ctx context.Context, buildingID, a, b int64) (domain.Room, error) {
	room, err := s.store.FindDirectRoom(ctx, a, b, buildingID)
	if err == nil {
		return room, nil
	}
	if !apperrors.IsNotFound(err) {
		return domain.Room{}, err
	}
	room, err = s.store.CreateRoom(ctx, domain.Room{BuildingID: buildingID}, []int64{a, b})
	if err != nil {
		return domain.Room{}, err
	}
	s.log.WithField("room_id", room.ID).WithField("building_id", buildingID).Info("chat room created")
	return room, nil
}

// Messages returns up to limit recent messages of a room, oldest first.
func (s *Service) Messages(ctx context.Context, actor user.Actor, roomID int64, limit int) ([]domain.Message, error) {
	if _, _, err := s.roomFor(ctx, actor, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultMessageLimit {
		limit = defaultMessageLimit
	}
	list, err := s.store.ListMessages(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Message{}
	}
	return list, nil
}

// HideRoom removes a room from the caller's listing until the next message.
func (s *Service) HideRoom(ctx context.Context, actor user.Actor, roomID int64) error {
	if _, _, err := s.participantRoom(ctx, actor.ID(), roomID); err != nil {
		return err
	}
	return s.store.SetRoomHidden(ctx, roomID, actor.ID(), true)
}

// SendMessage posts a message and pushes it to every participant's sessions.
func (s *Service) SendMessage(ctx context.Context, actor user.Actor, roomID int64, content, kind string) (domain.Message, error) {
	_, parts, err := s.roomFor(ctx, actor, roomID)
	if err != nil {
		return domain.Message{}, err
	}
	kind = strings.ToUpper(strings.TrimSpace(kind))
	if kind == "" {
		kind = domain.MessageText
	}
	if kind != domain.MessageText && kind != domain.MessageAudio {
		return domain.Message{}, apperrors.Validation("unsupported message type %s", kind)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, apperrors.Validation("content is required")
	}
	return s.post(ctx, roomID, actor.ID(), content, kind, parts)
}

func (s *Service) post(ctx context.Context, roomID, senderID int64, content, kind string, parts []domain.Participant) (domain.Message, error) {
	msg, err := s.store.CreateMessage(ctx, domain.Message{RoomID: roomID, SenderID: senderID, Content: content, Type: kind})
	if err != nil {
		return domain.Message{}, err
	}
	recipients := make([]int64, 0, len(parts))
	for _, p := range parts {
		recipients = append(recipients, p.UserID)
		if p.UserID != senderID && p.Hidden {
			if err := s.store.SetRoomHidden(ctx, roomID, p.UserID, false); err != nil {
				s.log.WithError(err).WithField("room_id", roomID).Warn("unhide chat room failed")
			}
		}
	}
	s.notify(ctx, recipients, Event{Type: EventNewMessage, RoomID: roomID, Message: &msg})
	return msg, nil
}

func (s *Service) notify(ctx context.Context, recipients []int64, ev Event) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}
	if err := s.notifier.Publish(ctx, recipients, ev); err != nil {
		s.log.WithError(err).WithField("room_id", ev.RoomID).Warn("chat event delivery failed")
	}
}

// HandleInbound reacts to a websocket frame from userID.
func (s *Service) HandleInbound(ctx context.Context, userID int64, in Inbound) {
	switch strings.ToUpper(in.Type) {
	case EventTyping:
		_, parts, err := s.participantRoom(ctx, userID, in.RoomID)
		if err != nil {
			return
		}
		others := make([]int64, 0, len(parts))
		for _, p := range parts {
			if p.UserID != userID {
				others = append(others, p.UserID)
			}
		}
		s.notify(ctx, others, Event{Type: EventTyping, RoomID: in.RoomID, UserID: userID})
	default:
		s.log.WithField("type", in.Type).Debug("ignoring unknown chat frame")
	}
}

// Online returns the users currently connected to the chat socket.
func (s *Service) Online(ctx context.Context) ([]int64, error) {
	if s.notifier == nil {
		return []int64{}, nil
	}
	return s.notifier.Online(ctx)
}

// Neighbor is another user of the building.
type Neighbor struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	UnitNumber string `json:"unitNumber,omitempty"`
	AvatarURL  string `json:"photoUrl,omitempty"`
}

// Neighbors lists the other users of the selected building.
func (s *Service) Neighbors(ctx context.Context, actor user.Actor) ([]Neighbor, error) {
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	list, err := s.users.ListUsersByBuilding(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, len(list))
	for _, u := range list {
		if u.ID == actor.ID() {
			continue
		}
		n := Neighbor{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, AvatarURL: u.AvatarURL}
		if u.UnitID != nil {
			if un, err := s.units.GetUnit(ctx, *u.UnitID); err == nil {
				n.UnitNumber = un.Number
			}
		}
		out = append(out, n)
	}
	return out, nil
}

// roomFor loads a room of the selected building where the caller takes part.
func (s *Service) roomFor(ctx context.Context, actor user.Actor, roomID int64) (domain.Room, []domain.Participant, error) {
	if !actor.HasBuilding() {
		return domain.Room{}, nil, apperrors.BuildingRequired()
	}
	room, parts, err := s.participantRoom(ctx, actor.ID(), roomID)
	if err != nil {
		return domain.Room{}, nil, err
	}
	if room.BuildingID != actor.BuildingID {
		return domain.Room{}, nil, apperrors.Forbidden("the room does not belong to the selected building")
	}
	return room, parts, nil
}

func (s *Service) participantRoom(ctx context.Context, userID, roomID int64) (domain.Room, []domain.Participant, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.Room{}, nil, apperrors.FromStore(err, "room not found")
	}
	parts, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return domain.Room{}, nil, err
	}
	for _, p := range parts {
		if p.UserID == userID {
			return room, parts, nil
		}
	}
	return domain.Room{}, nil, apperrors.Forbidden("you are not a participant of this room")
}

package chat

import (
	"context"
	"strings"

	domain "github.com/domu-platform/domu/internal/app/domain/chat"
	"github.com/domu-platform/domu/internal/app/domain/user"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// PendingRequests lists conversation requests the caller received.
func (s *Service) PendingRequests(ctx context.Context, actor user.Actor) ([]domain.Request, error) {
	if !actor.HasBuilding() {
		return nil, apperrors.BuildingRequired()
	}
	list, err := s.store.ListPendingChatRequests(ctx, actor.ID(), actor.BuildingID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Request{}
	}
	return list, nil
}

// CreateRequest asks a neighbour to open a conversation.
func (s *Service) CreateRequest(ctx context.Context, actor user.Actor, receiverID int64, message string) (domain.Request, error) {
	if !actor.HasBuilding() {
		return domain.Request{}, apperrors.BuildingRequired()
	}
	if receiverID <= 0 {
		return domain.Request{}, apperrors.Validation("receiverId is required")
	}
	if receiverID == actor.ID() {
		return domain.Request{}, apperrors.Validation("you cannot send a request to yourself")
	}
	if err := s.ensureBothInBuilding(ctx, actor, receiverID); err != nil {
		return domain.Request{}, err
	}
	exists, err := s.store.ChatRequestExists(ctx, actor.ID(), receiverID, actor.BuildingID)
	if err != nil {
		return domain.Request{}, err
	}
	if exists {
		return domain.Request{}, apperrors.Validation("a chat request with this neighbour already exists")
	}
	if _, err := s.store.FindDirectRoom(ctx, actor.ID(), receiverID, actor.BuildingID); err == nil {
		return domain.Request{}, apperrors.Validation("you already have a conversation with this neighbour")
	} else if !apperrors.IsNotFound(err) {
		return domain.Request{}, err
	}

	req, err := s.store.CreateChatRequest(ctx, domain.Request{
		SenderID:       actor.ID(),
		ReceiverID:     receiverID,
		BuildingID:     actor.BuildingID,
		InitialMessage: strings.TrimSpace(message),
		Status:         domain.RequestPending,
	})
	if err != nil {
		return domain.Request{}, err
	}
	s.log.WithField("request_id", req.ID).
		WithField("sender_id", req.SenderID).
		WithField("receiver_id", req.ReceiverID).
		Info("chat request created")
	return req, nil
}

// RespondRequest approves or rejects a pending request. Approval opens the
// room and posts the initial message.
func (s *Service) RespondRequest(ctx context.Context, actor user.Actor, requestID int64, status string) (domain.Request, error) {
	if !actor.HasBuilding() {
		return domain.Request{}, apperrors.BuildingRequired()
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case "":
		return domain.Request{}, apperrors.Validation("status is required")
	case domain.RequestApproved, domain.RequestRejected:
	default:
		return domain.Request{}, apperrors.Validation("invalid status %s", status)
	}

	req, err := s.store.GetChatRequest(ctx, requestID)
	if err != nil {
		return domain.Request{}, apperrors.FromStore(err, "chat request not found")
	}
	if req.BuildingID != actor.BuildingID {
		return domain.Request{}, apperrors.Forbidden("you do not have access to this request")
	}
	if req.ReceiverID != actor.ID() {
		return domain.Request{}, apperrors.Forbidden("only the receiver can answer this request")
	}
	if req.Status != domain.RequestPending {
		return domain.Request{}, apperrors.Validation("the request was already answered")
	}

	req.Status = status
	updated, err := s.store.UpdateChatRequest(ctx, req)
	if err != nil {
		return domain.Request{}, err
	}
	if status == domain.RequestApproved {
		room, err := s.findOrCreateRoom(ctx, req.BuildingID, req.SenderID, req.ReceiverID)
		if err != nil {
			return domain.Request{}, err
		}
		if req.InitialMessage != "" {
			parts, err := s.store.ListParticipants(ctx, room.ID)
			if err != nil {
				return domain.Request{}, err
			}
			if _, err := s.post(ctx, room.ID, req.SenderID, req.InitialMessage, domain.MessageText, parts); err != nil {
				return domain.Request{}, err
			}
		}
	}
	s.log.WithField("request_id", req.ID).WithField("status", status).Info("chat request answered")
	return updated, nil
}

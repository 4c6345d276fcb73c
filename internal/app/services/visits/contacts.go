package visits

import (
	"context"
	"strings"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/domain/visit"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

const (
	defaultContactLimit = 20
	maxContactLimit     = 50
)

// ContactInput saves a frequent visitor.
type ContactInput struct {
	VisitorName     string
	VisitorDocument string
	UnitID          *int64
	Alias           string
}

// CreateContact stores a frequent visitor for the caller.
func (s *Service) CreateContact(ctx context.Context, actor user.Actor, in ContactInput) (visit.Contact, error) {
	name := strings.TrimSpace(in.VisitorName)
	if name == "" {
		return visit.Contact{}, apperrors.Validation("visitorName is required")
	}
	unitID := in.UnitID
	if unitID == nil && actor.User.UnitID != nil {
		id := *actor.User.UnitID
		unitID = &id
	}
	c, err := s.store.CreateContact(ctx, visit.Contact{
		OwnerID:         actor.ID(),
		VisitorName:     name,
		VisitorDocument: visit.NormalizeDocument(in.VisitorDocument),
		UnitID:          unitID,
		Alias:           strings.TrimSpace(in.Alias),
	})
	if err != nil {
		return visit.Contact{}, err
	}
	s.log.WithField("contact_id", c.ID).WithField("owner_id", actor.ID()).Debug("visit contact saved")
	return c, nil
}

// ListContacts returns the caller's contacts matching search.
func (s *Service) ListContacts(ctx context.Context, actor user.Actor, search string, limit int) ([]visit.Contact, error) {
	switch {
	case limit <= 0:
		limit = defaultContactLimit
	case limit > maxContactLimit:
		limit = maxContactLimit
	}
	list, err := s.store.ListContacts(ctx, actor.ID(), strings.TrimSpace(search), limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []visit.Contact{}
	}
	return list, nil
}

// DeleteContact removes one of the caller's contacts.
func (s *Service) DeleteContact(ctx context.Context, actor user.Actor, id int64) error {
	if _, err := s.store.GetContact(ctx, id, actor.ID()); err != nil {
		return apperrors.FromStore(err, "contact not found")
	}
	return s.store.DeleteContact(ctx, id, actor.ID())
}

// RegisterFromContact schedules a visit for a saved contact. Window fields in
// in override the defaults; visitor fields come from the contact.
func (s *Service) RegisterFromContact(ctx context.Context, actor user.Actor, contactID int64, in CreateInput) (visit.Visit, error) {
	c, err := s.store.GetContact(ctx, contactID, actor.ID())
	if err != nil {
		return visit.Visit{}, apperrors.FromStore(err, "contact not found")
	}
	in.VisitorName = c.VisitorName
	in.VisitorDocument = c.VisitorDocument
	if in.UnitID == nil {
		in.UnitID = c.UnitID
	}
	return s.Create(ctx, actor, in)
}

package memory

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/incident"
	"github.com/domu-platform/domu/internal/app/domain/parcel"
	"github.com/domu-platform/domu/internal/app/domain/visit"
)

// VisitStore implementation --------------------------------------------------

func (s *Store) CreateVisit(_ context.Context, v visit.Visit) (visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.ID = s.nextIDLocked()
	v.CreatedAt = time.Now().UTC()
	s.visits[v.ID] = v
	return v, nil
}

func (s *Store) UpdateVisit(_ context.Context, v visit.Visit) (visit.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.visits[v.ID]
	if !ok {
		return visit.Visit{}, notFound("visit", v.ID)
	}
	v.CreatedAt = original.CreatedAt
	s.visits[v.ID] = v
	return v, nil
}

func (s *Store) GetVisit(_ context.Context, id int64) (visit.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.visits[id]
	if !ok {
		return visit.Visit{}, notFound("visit", id)
	}
	return v, nil
}

func (s *Store) ListVisitsByCreator(_ context.Context, userID int64) ([]visit.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []visit.Visit
	for _, v := range s.visits {
		if v.CreatedBy == userID {
			result = append(result, v)
		}
	}
	sortByID(result, func(v visit.Visit) int64 { return -v.ID })
	return result, nil
}

func (s *Store) ListVisitsByDocument(_ context.Context, buildingID int64, document string) ([]visit.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []visit.Visit
	for _, v := range s.visits {
		if v.BuildingID == buildingID && v.VisitorDocument == document {
			result = append(result, v)
		}
	}
	sortByID(result, func(v visit.Visit) int64 { return -v.ID })
	return result, nil
}

func (s *Store) ExpireVisits(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int64
	for id, v := range s.visits {
		if v.Status == visit.StatusScheduled && v.ValidUntil.Before(now) {
			v.Status = visit.StatusExpired
			s.visits[id] = v
			expired++
		}
	}
	return expired, nil
}

func (s *Store) CreateAccessLog(_ context.Context, l visit.AccessLog) (visit.AccessLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visits[l.VisitID]; !ok {
		return visit.AccessLog{}, notFound("visit", l.VisitID)
	}
	l.ID = s.nextIDLocked()
	if l.OccurredAt.IsZero() {
		l.OccurredAt = time.Now().UTC()
	}
	s.accessLogs[l.ID] = l
	return l, nil
}

func (s *Store) CreateContact(_ context.Context, c visit.Contact) (visit.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c.ID = s.nextIDLocked()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.contacts[c.ID] = c
	return c, nil
}

func (s *Store) GetContact(_ context.Context, id, ownerID int64) (visit.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return visit.Contact{}, notFound("contact", id)
	}
	return c, nil
}

func (s *Store) ListContacts(_ context.Context, ownerID int64, search string, limit int) ([]visit.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	var result []visit.Contact
	for _, c := range s.contacts {
		if c.OwnerID != ownerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.VisitorName), search) &&
			!strings.Contains(strings.ToLower(c.VisitorDocument), search) &&
			!strings.Contains(strings.ToLower(c.Alias), search) {
			continue
		}
		result = append(result, c)
	}
	sortByID(result, func(c visit.Contact) int64 { return -c.ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DeleteContact(_ context.Context, id, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return notFound("contact", id)
	}
	delete(s.contacts, id)
	return nil
}

// IncidentStore implementation -----------------------------------------------

func (s *Store) CreateIncident(_ context.Context, i incident.Incident) (incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	i.ID = s.nextIDLocked()
	i.CreatedAt = now
	i.UpdatedAt = now
	s.incidents[i.ID] = i
	return i, nil
}

func (s *Store) UpdateIncident(_ context.Context, i incident.Incident) (incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.incidents[i.ID]
	if !ok {
		return incident.Incident{}, notFound("incident", i.ID)
	}
	i.CreatedAt = original.CreatedAt
	i.UpdatedAt = time.Now().UTC()
	s.incidents[i.ID] = i
	return i, nil
}

func (s *Store) GetIncident(_ context.Context, id int64) (incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.incidents[id]
	if !ok {
		return incident.Incident{}, notFound("incident", id)
	}
	return i, nil
}

func (s *Store) ListIncidents(_ context.Context, filter incident.Filter) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []incident.Incident
	for _, i := range s.incidents {
		if filter.BuildingID != 0 && i.BuildingID != filter.BuildingID {
			continue
		}
		if filter.UserID != 0 && i.UserID != filter.UserID {
			continue
		}
		if !filter.From.IsZero() && i.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && i.CreatedAt.After(filter.To) {
			continue
		}
		result = append(result, i)
	}
	sortByID(result, func(i incident.Incident) int64 { return -i.ID })
	return result, nil
}

// ParcelStore implementation -------------------------------------------------

func (s *Store) CreateParcel(_ context.Context, p parcel.Parcel) (parcel.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p.ID = s.nextIDLocked()
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	s.parcels[p.ID] = p
	return p, nil
}

func (s *Store) UpdateParcel(_ context.Context, p parcel.Parcel) (parcel.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.parcels[p.ID]
	if !ok {
		return parcel.Parcel{}, notFound("parcel", p.ID)
	}
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.parcels[p.ID] = p
	return p, nil
}

func (s *Store) GetParcel(_ context.Context, id int64) (parcel.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parcels[id]
	if !ok {
		return parcel.Parcel{}, notFound("parcel", id)
	}
	return p, nil
}

func (s *Store) ListParcels(_ context.Context, filter parcel.Filter) ([]parcel.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []parcel.Parcel
	for _, p := range s.parcels {
		if filter.BuildingID != 0 && p.BuildingID != filter.BuildingID {
			continue
		}
		if filter.UnitID != 0 && p.UnitID != filter.UnitID {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(p.Status, filter.Status) {
			continue
		}
		result = append(result, p)
	}
	sortByID(result, func(p parcel.Parcel) int64 { return -p.ID })
	return result, nil
}

func (s *Store) DeleteParcel(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.parcels[id]; !ok {
		return notFound("parcel", id)
	}
	delete(s.parcels, id)
	return nil
}

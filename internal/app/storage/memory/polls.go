package memory

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/poll"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// PollStore implementation ---------------------------------------------------

func (s *Store) CreatePoll(_ context.Context, p poll.Poll, options []string) (poll.Poll, []poll.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextIDLocked()
	p.CreatedAt = time.Now().UTC()
	s.polls[p.ID] = p

	created := make([]poll.Option, 0, len(options))
	for i, label := range options {
		opt := poll.Option{ID: s.nextIDLocked(), PollID: p.ID, Label: label, Position: i}
		s.pollOptions[opt.ID] = opt
		created = append(created, opt)
	}
	return p, created, nil
}

func (s *Store) UpdatePoll(_ context.Context, p poll.Poll) (poll.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.polls[p.ID]
	if !ok {
		return poll.Poll{}, notFound("poll", p.ID)
	}
	p.CreatedAt = original.CreatedAt
	s.polls[p.ID] = p
	return p, nil
}

func (s *Store) GetPoll(_ context.Context, id int64) (poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.polls[id]
	if !ok {
		return poll.Poll{}, notFound("poll", id)
	}
	return p, nil
}

func (s *Store) ListPolls(_ context.Context, buildingID int64) ([]poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []poll.Poll
	for _, p := range s.polls {
		if p.BuildingID == buildingID {
			result = append(result, p)
		}
	}
	sortByID(result, func(p poll.Poll) int64 { return -p.ID })
	return result, nil
}

func (s *Store) ListPollsDue(_ context.Context, now time.Time) ([]poll.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []poll.Poll
	for _, p := range s.polls {
		if p.Expired(now) {
			result = append(result, p)
		}
	}
	sortByID(result, func(p poll.Poll) int64 { return p.ID })
	return result, nil
}

func (s *Store) ListOptions(_ context.Context, pollID int64) ([]poll.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []poll.Option
	for _, o := range s.pollOptions {
		if o.PollID == pollID {
			result = append(result, o)
		}
	}
	sortByID(result, func(o poll.Option) int64 { return int64(o.Position) })
	return result, nil
}

func (s *Store) CreateVote(_ context.Context, v poll.Vote) (poll.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.votes {
		if existing.PollID == v.PollID && existing.UserID == v.UserID {
			return poll.Vote{}, apperrors.Conflict("user already voted on this poll")
		}
	}
	v.ID = s.nextIDLocked()
	v.CreatedAt = time.Now().UTC()
	s.votes[v.ID] = v
	return v, nil
}

func (s *Store) ListVotes(_ context.Context, pollID int64) ([]poll.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []poll.Vote
	for _, v := range s.votes {
		if v.PollID == pollID {
			result = append(result, v)
		}
	}
	sortByID(result, func(v poll.Vote) int64 { return v.ID })
	return result, nil
}

// AmenityStore implementation ------------------------------------------------

func (s *Store) CreateAmenity(_ context.Context, a amenity.Amenity) (amenity.Amenity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	a.ID = s.nextIDLocked()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.amenities[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAmenity(_ context.Context, a amenity.Amenity) (amenity.Amenity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.amenities[a.ID]
	if !ok {
		return amenity.Amenity{}, notFound("amenity", a.ID)
	}
	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.amenities[a.ID] = a
	return a, nil
}

func (s *Store) GetAmenity(_ context.Context, id int64) (amenity.Amenity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.amenities[id]
	if !ok {
		return amenity.Amenity{}, notFound("amenity", id)
	}
	return a, nil
}

func (s *Store) ListAmenities(_ context.Context, buildingID int64) ([]amenity.Amenity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []amenity.Amenity
	for _, a := range s.amenities {
		if a.BuildingID == buildingID {
			result = append(result, a)
		}
	}
	sortByID(result, func(a amenity.Amenity) int64 { return a.ID })
	return result, nil
}

func (s *Store) DeleteAmenity(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.amenities[id]; !ok {
		return notFound("amenity", id)
	}
	delete(s.amenities, id)
	for slotID, slot := range s.timeSlots {
		if slot.AmenityID == id {
			delete(s.timeSlots, slotID)
		}
	}
	for resID, r := range s.reservations {
		if r.AmenityID == id {
			delete(s.reservations, resID)
		}
	}
	return nil
}

func (s *Store) ReplaceTimeSlots(_ context.Context, amenityID int64, slots []amenity.TimeSlot) ([]amenity.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.amenities[amenityID]; !ok {
		return nil, notFound("amenity", amenityID)
	}
	for id, slot := range s.timeSlots {
		if slot.AmenityID == amenityID {
			delete(s.timeSlots, id)
		}
	}
	created := make([]amenity.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		slot.ID = s.nextIDLocked()
		slot.AmenityID = amenityID
		s.timeSlots[slot.ID] = slot
		created = append(created, slot)
	}
	return created, nil
}

func (s *Store) ListTimeSlots(_ context.Context, amenityID int64) ([]amenity.TimeSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []amenity.TimeSlot
	for _, slot := range s.timeSlots {
		if slot.AmenityID == amenityID {
			result = append(result, slot)
		}
	}
	sortByID(result, func(t amenity.TimeSlot) int64 { return t.ID })
	return result, nil
}

func (s *Store) GetTimeSlot(_ context.Context, id int64) (amenity.TimeSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.timeSlots[id]
	if !ok {
		return amenity.TimeSlot{}, notFound("time slot", id)
	}
	return slot, nil
}

func (s *Store) CreateReservation(_ context.Context, r amenity.Reservation) (amenity.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reservations {
		if existing.TimeSlotID == r.TimeSlotID &&
			sameDay(existing.Date, r.Date) &&
			!strings.EqualFold(existing.Status, amenity.ReservationCancelled) {
			return amenity.Reservation{}, apperrors.Conflict("slot already reserved for that date")
		}
	}
	r.ID = s.nextIDLocked()
	r.CreatedAt = time.Now().UTC()
	s.reservations[r.ID] = r
	return r, nil
}

func (s *Store) UpdateReservation(_ context.Context, r amenity.Reservation) (amenity.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.reservations[r.ID]
	if !ok {
		return amenity.Reservation{}, notFound("reservation", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	s.reservations[r.ID] = r
	return r, nil
}

func (s *Store) GetReservation(_ context.Context, id int64) (amenity.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return amenity.Reservation{}, notFound("reservation", id)
	}
	return r, nil
}

func (s *Store) ListReservationsByAmenity(_ context.Context, amenityID int64) ([]amenity.Reservation, error) {
	return s.filterReservations(func(r amenity.Reservation) bool { return r.AmenityID == amenityID }), nil
}

func (s *Store) ListReservationsByUser(_ context.Context, userID int64) ([]amenity.Reservation, error) {
	return s.filterReservations(func(r amenity.Reservation) bool { return r.UserID == userID }), nil
}

func (s *Store) ListReservationsOnDate(_ context.Context, amenityID int64, date time.Time) ([]amenity.Reservation, error) {
	return s.filterReservations(func(r amenity.Reservation) bool {
		return r.AmenityID == amenityID && sameDay(r.Date, date)
	}), nil
}

func (s *Store) filterReservations(match func(amenity.Reservation) bool) []amenity.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []amenity.Reservation
	for _, r := range s.reservations {
		if match(r) {
			result = append(result, r)
		}
	}
	sortByID(result, func(r amenity.Reservation) int64 { return r.ID })
	return result
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

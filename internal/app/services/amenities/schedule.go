package amenities

import (
	"context"
	"strings"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/metrics"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// SlotInput is one weekly window.
type SlotInput struct {
	DayOfWeek int
	StartTime string
	EndTime   string
	Active    *bool
}

// SlotAvailability reports whether a slot is free on a date.
type SlotAvailability struct {
	SlotID     int64  `json:"timeSlotId"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Available  bool   `json:"available"`
	ReservedBy string `json:"reservedBy,omitempty"`
}

// Availability is the schedule of an amenity on one date.
type Availability struct {
	AmenityID   int64              `json:"amenityId"`
	AmenityName string             `json:"amenityName"`
	Date        string             `json:"date"`
	DayOfWeek   int                `json:"dayOfWeek"`
	Slots       []SlotAvailability `json:"slots"`
}

// ReplaceSlots swaps the whole weekly schedule of an amenity.
func (s *Service) ReplaceSlots(ctx context.Context, actor user.Actor, id int64, in []SlotInput) (Detail, error) {
	if err := requireManager(actor); err != nil {
		return Detail{}, err
	}
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	if len(in) == 0 {
		return Detail{}, apperrors.Validation("at least one time slot is required")
	}
	slots := make([]amenity.TimeSlot, 0, len(in))
	for _, item := range in {
		slot, err := item.toSlot()
		if err != nil {
			return Detail{}, err
		}
		slots = append(slots, slot)
	}
	saved, err := s.store.ReplaceTimeSlots(ctx, a.ID, slots)
	if err != nil {
		return Detail{}, err
	}
	s.log.WithField("amenity_id", a.ID).WithField("slots", len(saved)).Info("amenity schedule replaced")
	return Detail{Amenity: a, Slots: saved}, nil
}

func (in SlotInput) toSlot() (amenity.TimeSlot, error) {
	if in.DayOfWeek < 1 || in.DayOfWeek > 7 {
		return amenity.TimeSlot{}, apperrors.Validation("dayOfWeek must be between 1 (Monday) and 7 (Sunday)")
	}
	startRaw, endRaw := strings.TrimSpace(in.StartTime), strings.TrimSpace(in.EndTime)
	if startRaw == "" || endRaw == "" {
		return amenity.TimeSlot{}, apperrors.Validation("startTime and endTime are required")
	}
	start, errStart := time.Parse(clockLayout, startRaw)
	end, errEnd := time.Parse(clockLayout, endRaw)
	if errStart != nil || errEnd != nil {
		return amenity.TimeSlot{}, apperrors.Validation("invalid time, use HH:mm")
	}
	if !start.Before(end) {
		return amenity.TimeSlot{}, apperrors.Validation("startTime must be before endTime")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return amenity.TimeSlot{
		DayOfWeek: in.DayOfWeek,
		StartTime: start.Format(clockLayout),
		EndTime:   end.Format(clockLayout),
		Active:    active,
	}, nil
}

// Availability lists the active slots of the date's weekday and whether each
// is booked.
func (s *Service) Availability(ctx context.Context, actor user.Actor, id int64, rawDate string) (Availability, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return Availability{}, err
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return Availability{}, err
	}
	if date.Before(s.today()) {
		return Availability{}, apperrors.Validation("cannot check availability for past dates")
	}
	day := amenity.ISODayOfWeek(date)

	slots, err := s.store.ListTimeSlots(ctx, a.ID)
	if err != nil {
		return Availability{}, err
	}
	reservations, err := s.store.ListReservationsOnDate(ctx, a.ID, date)
	if err != nil {
		return Availability{}, err
	}
	bookedBy := make(map[int64]int64)
	for _, r := range reservations {
		if r.Status != amenity.ReservationCancelled {
			bookedBy[r.TimeSlotID] = r.UserID
		}
	}

	out := Availability{
		AmenityID:   a.ID,
		AmenityName: a.Name,
		Date:        date.Format(dateLayout),
		DayOfWeek:   day,
		Slots:       []SlotAvailability{},
	}
	for _, slot := range slots {
		if !slot.Active || slot.DayOfWeek != day {
			continue
		}
		entry := SlotAvailability{SlotID: slot.ID, StartTime: slot.StartTime, EndTime: slot.EndTime, Available: true}
		if userID, ok := bookedBy[slot.ID]; ok {
			entry.Available = false
			entry.ReservedBy = s.userName(ctx, userID)
		}
		out.Slots = append(out.Slots, entry)
	}
	return out, nil
}

func (s *Service) userName(ctx context.Context, id int64) string {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return ""
	}
	return u.FullName()
}

// Reserve books a slot on a date for the caller.
func (s *Service) Reserve(ctx context.Context, actor user.Actor, id, slotID int64, rawDate string) (amenity.Reservation, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return amenity.Reservation{}, err
	}
	if a.Status != amenity.StatusActive {
		return amenity.Reservation{}, apperrors.Validation("the amenity is not available for reservations")
	}
	if slotID <= 0 {
		return amenity.Reservation{}, apperrors.Validation("timeSlotId is required")
	}
	if strings.TrimSpace(rawDate) == "" {
		return amenity.Reservation{}, apperrors.Validation("reservationDate is required")
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return amenity.Reservation{}, err
	}
	if date.Before(s.today()) {
		return amenity.Reservation{}, apperrors.Validation("cannot book past dates")
	}

	slot, err := s.store.GetTimeSlot(ctx, slotID)
	if err != nil || slot.AmenityID != a.ID {
		return amenity.Reservation{}, apperrors.Validation("the time slot does not belong to this amenity")
	}
	if !slot.Active {
		return amenity.Reservation{}, apperrors.Validation("the time slot is not active")
	}
	if slot.DayOfWeek != amenity.ISODayOfWeek(date) {
		return amenity.Reservation{}, apperrors.Validation("the time slot is not offered on that weekday")
	}

	r, err := s.store.CreateReservation(ctx, amenity.Reservation{
		AmenityID:  a.ID,
		UserID:     actor.ID(),
		TimeSlotID: slot.ID,
		Date:       date,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		Status:     amenity.ReservationConfirmed,
	})
	if err != nil {
		return amenity.Reservation{}, err
	}
	metrics.RecordReservation("create")
	s.log.WithField("reservation_id", r.ID).
		WithField("amenity_id", a.ID).
		WithField("date", r.Date.Format(dateLayout)).
		Info("amenity reserved")
	return r, nil
}

// Cancel cancels a future reservation. Owners and managers may cancel.
func (s *Service) Cancel(ctx context.Context, actor user.Actor, reservationID int64) (amenity.Reservation, error) {
	r, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return amenity.Reservation{}, apperrors.FromStore(err, "reservation not found")
	}
	if r.UserID != actor.ID() && !actor.User.IsManager() {
		return amenity.Reservation{}, apperrors.Forbidden("you cannot cancel this reservation")
	}
	if r.Status == amenity.ReservationCancelled {
		return amenity.Reservation{}, apperrors.Validation("the reservation is already cancelled")
	}
	if r.Date.Before(s.today()) {
		return amenity.Reservation{}, apperrors.Validation("past reservations cannot be cancelled")
	}
	now := s.now().UTC()
	r.Status = amenity.ReservationCancelled
	r.CancelledAt = &now
	updated, err := s.store.UpdateReservation(ctx, r)
	if err != nil {
		return amenity.Reservation{}, err
	}
	metrics.RecordReservation("cancel")
	s.log.WithField("reservation_id", r.ID).WithField("cancelled_by", actor.ID()).Info("reservation cancelled")
	return updated, nil
}

// MyReservations lists the caller's reservations.
func (s *Service) MyReservations(ctx context.Context, actor user.Actor) ([]amenity.Reservation, error) {
	list, err := s.store.ListReservationsByUser(ctx, actor.ID())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []amenity.Reservation{}
	}
	return list, nil
}

// ReservationsByAmenity lists every reservation of an amenity.
func (s *Service) ReservationsByAmenity(ctx context.Context, actor user.Actor, id int64) ([]amenity.Reservation, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	list, err := s.store.ListReservationsByAmenity(ctx, id)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []amenity.Reservation{}
	}
	return list, nil
}

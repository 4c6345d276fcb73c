package postgres

import (
	"context"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/amenity"
	"github.com/domu-platform/domu/internal/app/domain/poll"
)

// --- PollStore --------------------------------------------------------------

const pollColumns = `id, building_id, created_by, title, description, closes_at, status, closed_at, created_at`

func (s *Store) CreatePoll(ctx context.Context, p poll.Poll, options []string) (poll.Poll, []poll.Option, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return poll.Poll{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p.CreatedAt = time.Now().UTC()
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO polls (building_id, created_by, title, description, closes_at, status, closed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, p.BuildingID, p.CreatedBy, p.Title, p.Description, p.ClosesAt.UTC(), p.Status, p.ClosedAt, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return poll.Poll{}, nil, err
	}

	created := make([]poll.Option, 0, len(options))
	for i, label := range options {
		opt := poll.Option{PollID: p.ID, Label: label, Position: i}
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO poll_options (poll_id, label, position) VALUES ($1, $2, $3) RETURNING id
		`, opt.PollID, opt.Label, opt.Position).Scan(&opt.ID); err != nil {
			return poll.Poll{}, nil, err
		}
		created = append(created, opt)
	}
	if err := tx.Commit(); err != nil {
		return poll.Poll{}, nil, err
	}
	return p, created, nil
}

func (s *Store) UpdatePoll(ctx context.Context, p poll.Poll) (poll.Poll, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE polls SET title = $2, description = $3, closes_at = $4, status = $5, closed_at = $6
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.ClosesAt.UTC(), p.Status, p.ClosedAt)
	if err != nil {
		return poll.Poll{}, err
	}
	if err := checkAffected(result); err != nil {
		return poll.Poll{}, err
	}
	return s.GetPoll(ctx, p.ID)
}

func (s *Store) GetPoll(ctx context.Context, id int64) (poll.Poll, error) {
	var p poll.Poll
	err := s.db.GetContext(ctx, &p, `SELECT `+pollColumns+` FROM polls WHERE id = $1`, id)
	return p, err
}

func (s *Store) ListPolls(ctx context.Context, buildingID int64) ([]poll.Poll, error) {
	var result []poll.Poll
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+pollColumns+` FROM polls WHERE building_id = $1 ORDER BY created_at DESC, id DESC
	`, buildingID)
	return result, err
}

func (s *Store) ListPollsDue(ctx context.Context, now time.Time) ([]poll.Poll, error) {
	var result []poll.Poll
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+pollColumns+` FROM polls WHERE status = $1 AND closes_at <= $2 ORDER BY id
	`, poll.StatusOpen, now.UTC())
	return result, err
}

func (s *Store) ListOptions(ctx context.Context, pollID int64) ([]poll.Option, error) {
	var result []poll.Option
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, poll_id, label, position FROM poll_options WHERE poll_id = $1 ORDER BY position
	`, pollID)
	return result, err
}

func (s *Store) CreateVote(ctx context.Context, v poll.Vote) (poll.Vote, error) {
	v.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO poll_votes (poll_id, option_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, v.PollID, v.OptionID, v.UserID, v.CreatedAt).Scan(&v.ID)
	if err != nil {
		return poll.Vote{}, err
	}
	return v, nil
}

func (s *Store) ListVotes(ctx context.Context, pollID int64) ([]poll.Vote, error) {
	var result []poll.Vote
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, poll_id, option_id, user_id, created_at FROM poll_votes WHERE poll_id = $1 ORDER BY id
	`, pollID)
	return result, err
}

// --- AmenityStore -----------------------------------------------------------

const amenityColumns = `id, building_id, name, description, max_capacity, cost_per_slot, rules,
	image_url, status, created_at, updated_at`

const reservationColumns = `id, amenity_id, user_id, time_slot_id, reservation_date, start_time,
	end_time, status, cancelled_at, created_at`

func (s *Store) CreateAmenity(ctx context.Context, a amenity.Amenity) (amenity.Amenity, error) {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO amenities (building_id, name, description, max_capacity, cost_per_slot, rules,
			image_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, a.BuildingID, a.Name, a.Description, a.MaxCapacity, a.CostPerSlot, a.Rules,
		a.ImageURL, a.Status, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		return amenity.Amenity{}, err
	}
	return a, nil
}

func (s *Store) UpdateAmenity(ctx context.Context, a amenity.Amenity) (amenity.Amenity, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE amenities
		SET name = $2, description = $3, max_capacity = $4, cost_per_slot = $5, rules = $6,
			image_url = $7, status = $8, updated_at = $9
		WHERE id = $1
	`, a.ID, a.Name, a.Description, a.MaxCapacity, a.CostPerSlot, a.Rules, a.ImageURL, a.Status, time.Now().UTC())
	if err != nil {
		return amenity.Amenity{}, err
	}
	if err := checkAffected(result); err != nil {
		return amenity.Amenity{}, err
	}
	return s.GetAmenity(ctx, a.ID)
}

func (s *Store) GetAmenity(ctx context.Context, id int64) (amenity.Amenity, error) {
	var a amenity.Amenity
	err := s.db.GetContext(ctx, &a, `SELECT `+amenityColumns+` FROM amenities WHERE id = $1`, id)
	return a, err
}

func (s *Store) ListAmenities(ctx context.Context, buildingID int64) ([]amenity.Amenity, error) {
	var result []amenity.Amenity
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+amenityColumns+` FROM amenities WHERE building_id = $1 ORDER BY id
	`, buildingID)
	return result, err
}

func (s *Store) DeleteAmenity(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM amenities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

func (s *Store) ReplaceTimeSlots(ctx context.Context, amenityID int64, slots []amenity.TimeSlot) ([]amenity.TimeSlot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM amenity_time_slots WHERE amenity_id = $1`, amenityID); err != nil {
		return nil, err
	}
	created := make([]amenity.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		slot.AmenityID = amenityID
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO amenity_time_slots (amenity_id, day_of_week, start_time, end_time, active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, slot.AmenityID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.Active).Scan(&slot.ID); err != nil {
			return nil, err
		}
		created = append(created, slot)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListTimeSlots(ctx context.Context, amenityID int64) ([]amenity.TimeSlot, error) {
	var result []amenity.TimeSlot
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, amenity_id, day_of_week, start_time, end_time, active
		FROM amenity_time_slots WHERE amenity_id = $1
		ORDER BY day_of_week, start_time
	`, amenityID)
	return result, err
}

func (s *Store) GetTimeSlot(ctx context.Context, id int64) (amenity.TimeSlot, error) {
	var slot amenity.TimeSlot
	err := s.db.GetContext(ctx, &slot, `
		SELECT id, amenity_id, day_of_week, start_time, end_time, active
		FROM amenity_time_slots WHERE id = $1
	`, id)
	return slot, err
}

func (s *Store) CreateReservation(ctx context.Context, r amenity.Reservation) (amenity.Reservation, error) {
	r.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO amenity_reservations (amenity_id, user_id, time_slot_id, reservation_date, start_time,
			end_time, status, cancelled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, r.AmenityID, r.UserID, r.TimeSlotID, r.Date, r.StartTime, r.EndTime, r.Status, r.CancelledAt, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return amenity.Reservation{}, err
	}
	return r, nil
}

func (s *Store) UpdateReservation(ctx context.Context, r amenity.Reservation) (amenity.Reservation, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE amenity_reservations SET status = $2, cancelled_at = $3 WHERE id = $1
	`, r.ID, r.Status, r.CancelledAt)
	if err != nil {
		return amenity.Reservation{}, err
	}
	if err := checkAffected(result); err != nil {
		return amenity.Reservation{}, err
	}
	return s.GetReservation(ctx, r.ID)
}

func (s *Store) GetReservation(ctx context.Context, id int64) (amenity.Reservation, error) {
	var r amenity.Reservation
	err := s.db.GetContext(ctx, &r, `SELECT `+reservationColumns+` FROM amenity_reservations WHERE id = $1`, id)
	return r, err
}

func (s *Store) ListReservationsByAmenity(ctx context.Context, amenityID int64) ([]amenity.Reservation, error) {
	var result []amenity.Reservation
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+reservationColumns+` FROM amenity_reservations
		WHERE amenity_id = $1 ORDER BY reservation_date DESC, start_time
	`, amenityID)
	return result, err
}

func (s *Store) ListReservationsByUser(ctx context.Context, userID int64) ([]amenity.Reservation, error) {
	var result []amenity.Reservation
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+reservationColumns+` FROM amenity_reservations
		WHERE user_id = $1 ORDER BY reservation_date DESC, start_time
	`, userID)
	return result, err
}

func (s *Store) ListReservationsOnDate(ctx context.Context, amenityID int64, date time.Time) ([]amenity.Reservation, error) {
	var result []amenity.Reservation
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+reservationColumns+` FROM amenity_reservations
		WHERE amenity_id = $1 AND reservation_date = $2::date
		ORDER BY start_time
	`, amenityID, date.Format("2006-01-02"))
	return result, err
}

package postgres

import (
	"context"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/incident"
	"github.com/domu-platform/domu/internal/app/domain/parcel"
	"github.com/domu-platform/domu/internal/app/domain/visit"
)

// --- VisitStore -------------------------------------------------------------

const visitColumns = `id, created_by, unit_id, building_id, visitor_name, visitor_document, visitor_type,
	company, valid_from, valid_until, status, check_in_at, created_at`

const contactColumns = `id, owner_id, visitor_name, visitor_document, unit_id, alias, created_at, updated_at`

func (s *Store) CreateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error) {
	v.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO visits (created_by, unit_id, building_id, visitor_name, visitor_document, visitor_type,
			company, valid_from, valid_until, status, check_in_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, v.CreatedBy, v.UnitID, v.BuildingID, v.VisitorName, v.VisitorDocument, v.VisitorType,
		v.Company, v.ValidFrom.UTC(), v.ValidUntil.UTC(), v.Status, v.CheckInAt, v.CreatedAt).Scan(&v.ID)
	if err != nil {
		return visit.Visit{}, err
	}
	return v, nil
}

func (s *Store) UpdateVisit(ctx context.Context, v visit.Visit) (visit.Visit, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE visits
		SET visitor_name = $2, visitor_document = $3, visitor_type = $4, company = $5,
			valid_from = $6, valid_until = $7, status = $8, check_in_at = $9
		WHERE id = $1
	`, v.ID, v.VisitorName, v.VisitorDocument, v.VisitorType, v.Company,
		v.ValidFrom.UTC(), v.ValidUntil.UTC(), v.Status, v.CheckInAt)
	if err != nil {
		return visit.Visit{}, err
	}
	if err := checkAffected(result); err != nil {
		return visit.Visit{}, err
	}
	return s.GetVisit(ctx, v.ID)
}

func (s *Store) GetVisit(ctx context.Context, id int64) (visit.Visit, error) {
	var v visit.Visit
	err := s.db.GetContext(ctx, &v, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id)
	return v, err
}

func (s *Store) ListVisitsByCreator(ctx context.Context, userID int64) ([]visit.Visit, error) {
	var result []visit.Visit
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+visitColumns+` FROM visits WHERE created_by = $1 ORDER BY id DESC
	`, userID)
	return result, err
}

func (s *Store) ListVisitsByDocument(ctx context.Context, buildingID int64, document string) ([]visit.Visit, error) {
	var result []visit.Visit
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+visitColumns+` FROM visits
		WHERE building_id = $1 AND visitor_document = $2
		ORDER BY id DESC
	`, buildingID, document)
	return result, err
}

func (s *Store) ExpireVisits(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE visits SET status = $1 WHERE status = $2 AND valid_until < $3
	`, visit.StatusExpired, visit.StatusScheduled, now.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) CreateAccessLog(ctx context.Context, l visit.AccessLog) (visit.AccessLog, error) {
	if l.OccurredAt.IsZero() {
		l.OccurredAt = time.Now().UTC()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO access_logs (visit_id, occurred_at, gate, registered_by, kind)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, l.VisitID, l.OccurredAt, l.Gate, l.RegisteredBy, l.Kind).Scan(&l.ID)
	if err != nil {
		return visit.AccessLog{}, err
	}
	return l, nil
}

func (s *Store) CreateContact(ctx context.Context, c visit.Contact) (visit.Contact, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO visit_contacts (owner_id, visitor_name, visitor_document, unit_id, alias, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, c.OwnerID, c.VisitorName, c.VisitorDocument, c.UnitID, c.Alias, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return visit.Contact{}, err
	}
	return c, nil
}

func (s *Store) GetContact(ctx context.Context, id, ownerID int64) (visit.Contact, error) {
	var c visit.Contact
	err := s.db.GetContext(ctx, &c, `
		SELECT `+contactColumns+` FROM visit_contacts WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	return c, err
}

func (s *Store) ListContacts(ctx context.Context, ownerID int64, search string, limit int) ([]visit.Contact, error) {
	var result []visit.Contact
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+contactColumns+` FROM visit_contacts
		WHERE owner_id = $1
		  AND ($2 = '' OR visitor_name ILIKE '%' || $2 || '%'
		       OR visitor_document ILIKE '%' || $2 || '%'
		       OR alias ILIKE '%' || $2 || '%')
		ORDER BY id DESC
		LIMIT $3
	`, ownerID, search, limit)
	return result, err
}

func (s *Store) DeleteContact(ctx context.Context, id, ownerID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM visit_contacts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// --- IncidentStore ----------------------------------------------------------

const incidentColumns = `id, user_id, unit_id, building_id, title, description, category, priority,
	status, assigned_to, created_at, updated_at`

func (s *Store) CreateIncident(ctx context.Context, i incident.Incident) (incident.Incident, error) {
	now := time.Now().UTC()
	i.CreatedAt = now
	i.UpdatedAt = now
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO incidents (user_id, unit_id, building_id, title, description, category, priority,
			status, assigned_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, i.UserID, i.UnitID, i.BuildingID, i.Title, i.Description, i.Category, i.Priority,
		i.Status, i.AssignedTo, i.CreatedAt, i.UpdatedAt).Scan(&i.ID)
	if err != nil {
		return incident.Incident{}, err
	}
	return i, nil
}

func (s *Store) UpdateIncident(ctx context.Context, i incident.Incident) (incident.Incident, error) {
	i.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE incidents
		SET title = $2, description = $3, category = $4, priority = $5, status = $6,
			assigned_to = $7, updated_at = $8
		WHERE id = $1
	`, i.ID, i.Title, i.Description, i.Category, i.Priority, i.Status, i.AssignedTo, i.UpdatedAt)
	if err != nil {
		return incident.Incident{}, err
	}
	if err := checkAffected(result); err != nil {
		return incident.Incident{}, err
	}
	return s.GetIncident(ctx, i.ID)
}

func (s *Store) GetIncident(ctx context.Context, id int64) (incident.Incident, error) {
	var i incident.Incident
	err := s.db.GetContext(ctx, &i, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	return i, err
}

func (s *Store) ListIncidents(ctx context.Context, filter incident.Filter) ([]incident.Incident, error) {
	var from, to *time.Time
	if !filter.From.IsZero() {
		f := filter.From.UTC()
		from = &f
	}
	if !filter.To.IsZero() {
		t := filter.To.UTC()
		to = &t
	}
	var result []incident.Incident
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+incidentColumns+` FROM incidents
		WHERE ($1 = 0 OR building_id = $1)
		  AND ($2 = 0 OR user_id = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY created_at DESC, id DESC
	`, filter.BuildingID, filter.UserID, from, to)
	return result, err
}

// --- ParcelStore ------------------------------------------------------------

const parcelSelect = `
	SELECT p.id, p.building_id, p.unit_id, u.number AS unit_number, u.tower AS unit_tower,
		u.floor AS unit_floor, p.received_by, p.retrieved_by, p.sender, p.description, p.status,
		p.received_at, p.retrieved_at, p.created_at, p.updated_at
	FROM parcels p
	JOIN housing_units u ON u.id = p.unit_id`

func (s *Store) CreateParcel(ctx context.Context, p parcel.Parcel) (parcel.Parcel, error) {
	now := time.Now().UTC()
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = now
	}
	var id int64
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO parcels (building_id, unit_id, received_by, retrieved_by, sender, description, status,
			received_at, retrieved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id
	`, p.BuildingID, p.UnitID, p.ReceivedBy, p.RetrievedBy, p.Sender, p.Description, p.Status,
		p.ReceivedAt.UTC(), p.RetrievedAt, now).Scan(&id)
	if err != nil {
		return parcel.Parcel{}, err
	}
	return s.GetParcel(ctx, id)
}

func (s *Store) UpdateParcel(ctx context.Context, p parcel.Parcel) (parcel.Parcel, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE parcels
		SET unit_id = $2, sender = $3, description = $4, status = $5, retrieved_by = $6,
			retrieved_at = $7, updated_at = $8
		WHERE id = $1
	`, p.ID, p.UnitID, p.Sender, p.Description, p.Status, p.RetrievedBy, p.RetrievedAt, time.Now().UTC())
	if err != nil {
		return parcel.Parcel{}, err
	}
	if err := checkAffected(result); err != nil {
		return parcel.Parcel{}, err
	}
	return s.GetParcel(ctx, p.ID)
}

func (s *Store) GetParcel(ctx context.Context, id int64) (parcel.Parcel, error) {
	var p parcel.Parcel
	err := s.db.GetContext(ctx, &p, parcelSelect+` WHERE p.id = $1`, id)
	return p, err
}

func (s *Store) ListParcels(ctx context.Context, filter parcel.Filter) ([]parcel.Parcel, error) {
	var result []parcel.Parcel
	err := s.db.SelectContext(ctx, &result, parcelSelect+`
		WHERE ($1 = 0 OR p.building_id = $1)
		  AND ($2 = 0 OR p.unit_id = $2)
		  AND ($3 = '' OR p.status = UPPER($3))
		ORDER BY p.received_at DESC, p.id DESC
	`, filter.BuildingID, filter.UnitID, filter.Status)
	return result, err
}

func (s *Store) DeleteParcel(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM parcels WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

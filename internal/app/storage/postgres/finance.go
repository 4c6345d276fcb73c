package postgres

import (
	"context"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/finance"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/jmoiron/sqlx"
)

// --- UnitStore --------------------------------------------------------------

const unitColumns = `id, building_id, number, tower, floor, aliquot, square_meters, status, created_at, updated_at`

func (s *Store) CreateUnit(ctx context.Context, u unit.Unit) (unit.Unit, error) {
	now := time.Now().UTC()
	if u.Status == "" {
		u.Status = unit.StatusActive
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO housing_units (building_id, number, tower, floor, aliquot, square_meters, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, u.BuildingID, u.Number, u.Tower, u.Floor, u.Aliquot, u.SquareMeters, u.Status, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		return unit.Unit{}, err
	}
	return u, nil
}

func (s *Store) UpdateUnit(ctx context.Context, u unit.Unit) (unit.Unit, error) {
	u.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE housing_units
		SET number = $2, tower = $3, floor = $4, aliquot = $5, square_meters = $6, status = $7, updated_at = $8
		WHERE id = $1
	`, u.ID, u.Number, u.Tower, u.Floor, u.Aliquot, u.SquareMeters, u.Status, u.UpdatedAt)
	if err != nil {
		return unit.Unit{}, err
	}
	if err := checkAffected(result); err != nil {
		return unit.Unit{}, err
	}
	return s.GetUnit(ctx, u.ID)
}

func (s *Store) GetUnit(ctx context.Context, id int64) (unit.Unit, error) {
	var u unit.Unit
	err := s.db.GetContext(ctx, &u, `SELECT `+unitColumns+` FROM housing_units WHERE id = $1`, id)
	return u, err
}

func (s *Store) ListUnits(ctx context.Context, buildingID int64) ([]unit.Unit, error) {
	var result []unit.Unit
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+unitColumns+` FROM housing_units
		WHERE building_id = $1 AND status <> $2
		ORDER BY id
	`, buildingID, unit.StatusDeleted)
	return result, err
}

// --- FinanceStore -----------------------------------------------------------

const periodColumns = `id, building_id, year, month, generated_at, due_date, reserve_amount,
	total_amount, status, created_by, updated_at`

const chargeColumns = `id, period_id, unit_id, description, amount, type, origin, prorateable,
	payer_type, receipt_text, receipt_key, receipt_file_name, receipt_mime_type, created_at`

const paymentColumns = `id, unit_id, charge_id, user_id, issued_at, amount, payment_method,
	reference, status, receipt_text, created_at`

func (s *Store) CreatePeriod(ctx context.Context, p finance.Period) (finance.Period, error) {
	now := time.Now().UTC()
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = now
	}
	p.UpdatedAt = now

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO common_expense_periods (building_id, year, month, generated_at, due_date,
			reserve_amount, total_amount, status, created_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, p.BuildingID, p.Year, p.Month, p.GeneratedAt, p.DueDate, p.ReserveAmount,
		p.TotalAmount, p.Status, p.CreatedBy, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return finance.Period{}, err
	}
	return p, nil
}

func (s *Store) UpdatePeriod(ctx context.Context, p finance.Period) (finance.Period, error) {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE common_expense_periods
		SET due_date = $2, reserve_amount = $3, total_amount = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.DueDate, p.ReserveAmount, p.TotalAmount, p.Status, p.UpdatedAt)
	if err != nil {
		return finance.Period{}, err
	}
	if err := checkAffected(result); err != nil {
		return finance.Period{}, err
	}
	return s.GetPeriod(ctx, p.ID)
}

func (s *Store) GetPeriod(ctx context.Context, id int64) (finance.Period, error) {
	var p finance.Period
	err := s.db.GetContext(ctx, &p, `SELECT `+periodColumns+` FROM common_expense_periods WHERE id = $1`, id)
	return p, err
}

func (s *Store) FindPeriod(ctx context.Context, buildingID int64, year, month int) (finance.Period, error) {
	var p finance.Period
	err := s.db.GetContext(ctx, &p, `
		SELECT `+periodColumns+` FROM common_expense_periods
		WHERE building_id = $1 AND year = $2 AND month = $3
	`, buildingID, year, month)
	return p, err
}

func (s *Store) ListPeriods(ctx context.Context, buildingID int64) ([]finance.Period, error) {
	var result []finance.Period
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+periodColumns+` FROM common_expense_periods
		WHERE building_id = $1
		ORDER BY year DESC, month DESC
	`, buildingID)
	return result, err
}

func (s *Store) CreateCharges(ctx context.Context, charges []finance.Charge) ([]finance.Charge, error) {
	now := time.Now().UTC()
	created := make([]finance.Charge, 0, len(charges))
	for _, c := range charges {
		c.CreatedAt = now
		err := s.db.QueryRowxContext(ctx, `
			INSERT INTO common_charges (period_id, unit_id, description, amount, type, origin, prorateable,
				payer_type, receipt_text, receipt_key, receipt_file_name, receipt_mime_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`, c.PeriodID, c.UnitID, c.Description, c.Amount, c.Type, c.Origin, c.Prorateable,
			c.PayerType, c.ReceiptText, c.ReceiptKey, c.ReceiptFileName, c.ReceiptMimeType, c.CreatedAt).Scan(&c.ID)
		if err != nil {
			return nil, err
		}
		created = append(created, c)
	}
	return created, nil
}

func (s *Store) UpdateCharge(ctx context.Context, c finance.Charge) (finance.Charge, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE common_charges
		SET description = $2, amount = $3, type = $4, origin = $5, payer_type = $6, receipt_text = $7,
			receipt_key = $8, receipt_file_name = $9, receipt_mime_type = $10
		WHERE id = $1
	`, c.ID, c.Description, c.Amount, c.Type, c.Origin, c.PayerType, c.ReceiptText,
		c.ReceiptKey, c.ReceiptFileName, c.ReceiptMimeType)
	if err != nil {
		return finance.Charge{}, err
	}
	if err := checkAffected(result); err != nil {
		return finance.Charge{}, err
	}
	return s.GetCharge(ctx, c.ID)
}

func (s *Store) GetCharge(ctx context.Context, id int64) (finance.Charge, error) {
	var c finance.Charge
	err := s.db.GetContext(ctx, &c, `SELECT `+chargeColumns+` FROM common_charges WHERE id = $1`, id)
	return c, err
}

func (s *Store) ListChargesByPeriod(ctx context.Context, periodID int64) ([]finance.Charge, error) {
	var result []finance.Charge
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+chargeColumns+` FROM common_charges WHERE period_id = $1 ORDER BY id
	`, periodID)
	return result, err
}

func (s *Store) ListChargesByUnit(ctx context.Context, unitID int64) ([]finance.Charge, error) {
	var result []finance.Charge
	err := s.db.SelectContext(ctx, &result, `
		SELECT `+chargeColumns+` FROM common_charges WHERE unit_id = $1 ORDER BY id
	`, unitID)
	return result, err
}

func (s *Store) CreatePayment(ctx context.Context, p finance.Payment) (finance.Payment, error) {
	now := time.Now().UTC()
	if p.IssuedAt.IsZero() {
		p.IssuedAt = now
	}
	p.CreatedAt = now

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO common_payments (unit_id, charge_id, user_id, issued_at, amount, payment_method,
			reference, status, receipt_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, p.UnitID, p.ChargeID, p.UserID, p.IssuedAt, p.Amount, p.PaymentMethod,
		p.Reference, p.Status, p.ReceiptText, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return finance.Payment{}, err
	}
	return p, nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (finance.Payment, error) {
	var p finance.Payment
	err := s.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM common_payments WHERE id = $1`, id)
	return p, err
}

func (s *Store) ListPaymentsByCharges(ctx context.Context, chargeIDs []int64) ([]finance.Payment, error) {
	if len(chargeIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+paymentColumns+` FROM common_payments WHERE charge_id IN (?) ORDER BY id`, chargeIDs)
	if err != nil {
		return nil, err
	}
	var result []finance.Payment
	err = s.db.SelectContext(ctx, &result, s.db.Rebind(query), args...)
	return result, err
}

func (s *Store) CreateRevision(ctx context.Context, r finance.Revision) (finance.Revision, error) {
	r.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO common_revisions (period_id, created_by, action, note, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, r.PeriodID, r.CreatedBy, r.Action, r.Note, r.Changes, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return finance.Revision{}, err
	}
	return r, nil
}

func (s *Store) ListRevisions(ctx context.Context, periodID int64) ([]finance.Revision, error) {
	var result []finance.Revision
	err := s.db.SelectContext(ctx, &result, `
		SELECT id, period_id, created_by, action, note, changes, created_at
		FROM common_revisions
		WHERE period_id = $1
		ORDER BY created_at DESC, id DESC
	`, periodID)
	return result, err
}

package memory

import (
	"context"
	"time"

	"github.com/domu-platform/domu/internal/app/domain/finance"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// UnitStore implementation ---------------------------------------------------

func (s *Store) CreateUnit(_ context.Context, u unit.Unit) (unit.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	u.ID = s.nextIDLocked()
	if u.Status == "" {
		u.Status = unit.StatusActive
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	s.units[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUnit(_ context.Context, u unit.Unit) (unit.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.units[u.ID]
	if !ok {
		return unit.Unit{}, notFound("unit", u.ID)
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.units[u.ID] = u
	return u, nil
}

func (s *Store) GetUnit(_ context.Context, id int64) (unit.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.units[id]
	if !ok {
		return unit.Unit{}, notFound("unit", id)
	}
	return u, nil
}

func (s *Store) ListUnits(_ context.Context, buildingID int64) ([]unit.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []unit.Unit
	for _, u := range s.units {
		if u.BuildingID == buildingID && u.Status != unit.StatusDeleted {
			result = append(result, u)
		}
	}
	sortByID(result, func(u unit.Unit) int64 { return u.ID })
	return result, nil
}

// FinanceStore implementation ------------------------------------------------

func (s *Store) CreatePeriod(_ context.Context, p finance.Period) (finance.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.periods {
		if existing.BuildingID == p.BuildingID && existing.Year == p.Year && existing.Month == p.Month {
			return finance.Period{}, apperrors.Conflict("a period already exists for that month")
		}
	}
	now := time.Now().UTC()
	p.ID = s.nextIDLocked()
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = now
	}
	p.UpdatedAt = now
	s.periods[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePeriod(_ context.Context, p finance.Period) (finance.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.periods[p.ID]
	if !ok {
		return finance.Period{}, notFound("period", p.ID)
	}
	p.GeneratedAt = original.GeneratedAt
	p.UpdatedAt = time.Now().UTC()
	s.periods[p.ID] = p
	return p, nil
}

func (s *Store) GetPeriod(_ context.Context, id int64) (finance.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[id]
	if !ok {
		return finance.Period{}, notFound("period", id)
	}
	return p, nil
}

func (s *Store) FindPeriod(_ context.Context, buildingID int64, year, month int) (finance.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.periods {
		if p.BuildingID == buildingID && p.Year == year && p.Month == month {
			return p, nil
		}
	}
	return finance.Period{}, notFound("period", buildingID)
}

func (s *Store) ListPeriods(_ context.Context, buildingID int64) ([]finance.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []finance.Period
	for _, p := range s.periods {
		if p.BuildingID == buildingID {
			result = append(result, p)
		}
	}
	// newest month first
	sortByID(result, func(p finance.Period) int64 { return -int64(p.Year*100 + p.Month) })
	return result, nil
}

func (s *Store) CreateCharges(_ context.Context, charges []finance.Charge) ([]finance.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	created := make([]finance.Charge, 0, len(charges))
	for _, c := range charges {
		if _, ok := s.periods[c.PeriodID]; !ok {
			return nil, notFound("period", c.PeriodID)
		}
		c.ID = s.nextIDLocked()
		c.CreatedAt = now
		s.charges[c.ID] = c
		created = append(created, c)
	}
	return created, nil
}

func (s *Store) UpdateCharge(_ context.Context, c finance.Charge) (finance.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.charges[c.ID]
	if !ok {
		return finance.Charge{}, notFound("charge", c.ID)
	}
	c.CreatedAt = original.CreatedAt
	s.charges[c.ID] = c
	return c, nil
}

func (s *Store) GetCharge(_ context.Context, id int64) (finance.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.charges[id]
	if !ok {
		return finance.Charge{}, notFound("charge", id)
	}
	return c, nil
}

func (s *Store) ListChargesByPeriod(_ context.Context, periodID int64) ([]finance.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []finance.Charge
	for _, c := range s.charges {
		if c.PeriodID == periodID {
			result = append(result, c)
		}
	}
	sortByID(result, func(c finance.Charge) int64 { return c.ID })
	return result, nil
}

func (s *Store) ListChargesByUnit(_ context.Context, unitID int64) ([]finance.Charge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []finance.Charge
	for _, c := range s.charges {
		if c.UnitID == unitID {
			result = append(result, c)
		}
	}
	sortByID(result, func(c finance.Charge) int64 { return c.ID })
	return result, nil
}

func (s *Store) CreatePayment(_ context.Context, p finance.Payment) (finance.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.charges[p.ChargeID]; !ok {
		return finance.Payment{}, notFound("charge", p.ChargeID)
	}
	now := time.Now().UTC()
	p.ID = s.nextIDLocked()
	if p.IssuedAt.IsZero() {
		p.IssuedAt = now
	}
	p.CreatedAt = now
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) GetPayment(_ context.Context, id int64) (finance.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return finance.Payment{}, notFound("payment", id)
	}
	return p, nil
}

func (s *Store) ListPaymentsByCharges(_ context.Context, chargeIDs []int64) ([]finance.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(chargeIDs))
	for _, id := range chargeIDs {
		wanted[id] = struct{}{}
	}
	var result []finance.Payment
	for _, p := range s.payments {
		if _, ok := wanted[p.ChargeID]; ok {
			result = append(result, p)
		}
	}
	sortByID(result, func(p finance.Payment) int64 { return p.ID })
	return result, nil
}

func (s *Store) CreateRevision(_ context.Context, r finance.Revision) (finance.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextIDLocked()
	r.CreatedAt = time.Now().UTC()
	s.revisions[r.ID] = r
	return r, nil
}

func (s *Store) ListRevisions(_ context.Context, periodID int64) ([]finance.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []finance.Revision
	for _, r := range s.revisions {
		if r.PeriodID == periodID {
			result = append(result, r)
		}
	}
	sortByID(result, func(r finance.Revision) int64 { return -r.ID })
	return result, nil
}

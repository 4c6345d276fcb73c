package finance

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/finance"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/metrics"
	apperrors "github.com/domu-platform/domu/internal/errors"
)

// UnitPeriod is a period as seen by one unit.
type UnitPeriod struct {
	PeriodID int64           `json:"periodId"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	DueDate  time.Time       `json:"dueDate"`
	Total    decimal.Decimal `json:"totalAmount"`
	Paid     decimal.Decimal `json:"paidAmount"`
	Pending  decimal.Decimal `json:"pendingAmount"`
	Status   string          `json:"status"`
}

// ChargeLine is a charge with its payment balance.
type ChargeLine struct {
	finance.Charge
	Paid             decimal.Decimal `json:"paidAmount"`
	Pending          decimal.Decimal `json:"pendingAmount"`
	Status           string          `json:"status"`
	ReceiptAvailable bool            `json:"receiptAvailable"`
}

// PeriodDetail is everything a resident sees about one period.
type PeriodDetail struct {
	finance.Period
	UnitTotal   decimal.Decimal    `json:"unitTotal"`
	UnitPaid    decimal.Decimal    `json:"unitPaid"`
	UnitPending decimal.Decimal    `json:"unitPending"`
	Building    building.Building  `json:"building"`
	UnitLabel   string             `json:"unitLabel"`
	Charges     []ChargeLine       `json:"charges"`
	Payments    []finance.Payment  `json:"payments"`
	Revisions   []finance.Revision `json:"revisions"`
}

// PaymentResult reports a payment and what is still owed on the charge.
type PaymentResult struct {
	ChargeID int64           `json:"chargeId"`
	Pending  decimal.Decimal `json:"pendingAmount"`
	Payment  finance.Payment `json:"payment"`
}

// PaymentInput is a resident payment on a charge.
type PaymentInput struct {
	Amount        decimal.Decimal
	PaymentMethod string
	Reference     string
	ReceiptText   string
}

func (s *Service) residentUnit(ctx context.Context, u user.User) (unit.Unit, error) {
	if u.UnitID == nil {
		return unit.Unit{}, apperrors.Validation("the user has no unit")
	}
	un, err := s.units.GetUnit(ctx, *u.UnitID)
	return un, apperrors.FromStore(err, "unit not found")
}

// chargeLines returns the unit's charges with their balances, skipping those
// billed to the construction company.
func (s *Service) chargeLines(ctx context.Context, charges []finance.Charge) ([]ChargeLine, []finance.Payment, error) {
	var visible []finance.Charge
	ids := make([]int64, 0, len(charges))
	for _, c := range charges {
		if strings.EqualFold(c.PayerType, finance.PayerConstruction) {
			continue
		}
		visible = append(visible, c)
		ids = append(ids, c.ID)
	}
	if len(visible) == 0 {
		return nil, nil, nil
	}
	payments, err := s.store.ListPaymentsByCharges(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	paid := make(map[int64]decimal.Decimal, len(visible))
	for _, p := range payments {
		if p.Status == finance.PaymentConfirmed {
			paid[p.ChargeID] = paid[p.ChargeID].Add(p.Amount)
		}
	}
	lines := make([]ChargeLine, 0, len(visible))
	for _, c := range visible {
		pd := paid[c.ID]
		lines = append(lines, ChargeLine{
			Charge:           c,
			Paid:             pd,
			Pending:          c.Amount.Sub(pd),
			Status:           finance.BalanceStatus(c.Amount, pd),
			ReceiptAvailable: c.HasReceipt(),
		})
	}
	return lines, payments, nil
}

func totals(lines []ChargeLine) (total, paid decimal.Decimal) {
	for _, l := range lines {
		total = total.Add(l.Amount)
		paid = paid.Add(l.Paid)
	}
	return total, paid
}

// MyPeriods summarizes every period with charges for the caller's unit.
func (s *Service) MyPeriods(ctx context.Context, actor user.Actor, from, to *int) ([]UnitPeriod, error) {
	un, err := s.residentUnit(ctx, actor.User)
	if err != nil {
		return nil, err
	}
	periods, err := s.store.ListPeriods(ctx, un.BuildingID)
	if err != nil {
		return nil, err
	}
	charges, err := s.store.ListChargesByUnit(ctx, un.ID)
	if err != nil {
		return nil, err
	}
	byPeriod := make(map[int64][]finance.Charge)
	for _, c := range charges {
		byPeriod[c.PeriodID] = append(byPeriod[c.PeriodID], c)
	}

	var out []UnitPeriod
	for _, p := range filterPeriods(periods, from, to) {
		lines, _, err := s.chargeLines(ctx, byPeriod[p.ID])
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			continue
		}
		total, paid := totals(lines)
		out = append(out, UnitPeriod{
			PeriodID: p.ID,
			Year:     p.Year,
			Month:    p.Month,
			DueDate:  p.DueDate,
			Total:    total,
			Paid:     paid,
			Pending:  total.Sub(paid),
			Status:   finance.BalanceStatus(total, paid),
		})
	}
	return out, nil
}

// PeriodDetail returns the caller's charges, payments and the period history.
func (s *Service) PeriodDetail(ctx context.Context, actor user.Actor, periodID int64) (PeriodDetail, error) {
	un, err := s.residentUnit(ctx, actor.User)
	if err != nil {
		return PeriodDetail{}, err
	}
	buildingID := actor.BuildingID
	if buildingID == 0 {
		buildingID = un.BuildingID
	}
	period, err := s.periodInBuilding(ctx, periodID, buildingID)
	if err != nil {
		return PeriodDetail{}, err
	}
	all, err := s.store.ListChargesByUnit(ctx, un.ID)
	if err != nil {
		return PeriodDetail{}, err
	}
	var charges []finance.Charge
	for _, c := range all {
		if c.PeriodID == period.ID {
			charges = append(charges, c)
		}
	}
	lines, payments, err := s.chargeLines(ctx, charges)
	if err != nil {
		return PeriodDetail{}, err
	}
	revisions, err := s.store.ListRevisions(ctx, period.ID)
	if err != nil {
		return PeriodDetail{}, err
	}
	b, err := s.buildings.GetBuilding(ctx, period.BuildingID)
	if err != nil && !apperrors.IsNotFound(err) {
		return PeriodDetail{}, err
	}
	total, paid := totals(lines)
	return PeriodDetail{
		Period:      period,
		UnitTotal:   total,
		UnitPaid:    paid,
		UnitPending: total.Sub(paid),
		Building:    b,
		UnitLabel:   un.Label(),
		Charges:     lines,
		Payments:    payments,
		Revisions:   revisions,
	}, nil
}

// MyCharges lists every resident charge of the caller's unit.
func (s *Service) MyCharges(ctx context.Context, actor user.Actor) ([]ChargeLine, error) {
	un, err := s.residentUnit(ctx, actor.User)
	if err != nil {
		return nil, err
	}
	charges, err := s.store.ListChargesByUnit(ctx, un.ID)
	if err != nil {
		return nil, err
	}
	lines, _, err := s.chargeLines(ctx, charges)
	return lines, err
}

// PayCharge records a confirmed payment of up to the pending amount.
func (s *Service) PayCharge(ctx context.Context, actor user.Actor, chargeID int64, in PaymentInput) (PaymentResult, error) {
	amount := normalizeAmount(in.Amount)
	if !amount.IsPositive() {
		return PaymentResult{}, apperrors.Validation("amount must be greater than zero")
	}
	charge, err := s.store.GetCharge(ctx, chargeID)
	if err != nil {
		return PaymentResult{}, apperrors.FromStore(err, "charge not found")
	}
	if strings.EqualFold(charge.PayerType, finance.PayerResident) {
		if actor.User.UnitID == nil || *actor.User.UnitID != charge.UnitID {
			return PaymentResult{}, apperrors.Forbidden("you cannot pay charges of another unit")
		}
	}
	payments, err := s.store.ListPaymentsByCharges(ctx, []int64{charge.ID})
	if err != nil {
		return PaymentResult{}, err
	}
	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == finance.PaymentConfirmed {
			paid = paid.Add(p.Amount)
		}
	}
	pending := charge.Amount.Sub(paid)
	if !pending.IsPositive() {
		return PaymentResult{}, apperrors.Validation("the charge is already paid")
	}
	if amount.GreaterThan(pending) {
		return PaymentResult{}, apperrors.Validation("amount exceeds the pending balance")
	}

	payment, err := s.store.CreatePayment(ctx, finance.Payment{
		UnitID:        charge.UnitID,
		ChargeID:      charge.ID,
		UserID:        actor.ID(),
		IssuedAt:      s.now().UTC(),
		Amount:        amount,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Reference:     strings.TrimSpace(in.Reference),
		Status:        finance.PaymentConfirmed,
		ReceiptText:   strings.TrimSpace(in.ReceiptText),
	})
	if err != nil {
		return PaymentResult{}, err
	}
	metrics.RecordPayment()
	s.log.WithField("payment_id", payment.ID).
		WithField("charge_id", charge.ID).
		WithField("user_id", actor.ID()).
		WithField("amount", amount.String()).
		Info("common charge paid")
	return PaymentResult{ChargeID: charge.ID, Pending: pending.Sub(amount), Payment: payment}, nil
}

// PaymentReceipt renders a PDF receipt for the payer or an administrator.
func (s *Service) PaymentReceipt(ctx context.Context, actor user.Actor, paymentID int64) ([]byte, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, apperrors.FromStore(err, "payment not found")
	}
	charge, err := s.store.GetCharge(ctx, payment.ChargeID)
	if err != nil {
		return nil, apperrors.FromStore(err, "charge not found")
	}
	period, err := s.store.GetPeriod(ctx, charge.PeriodID)
	if err != nil {
		return nil, apperrors.FromStore(err, "period not found")
	}
	if payment.UserID != actor.ID() {
		if !actor.User.IsAdmin() || (actor.HasBuilding() && actor.BuildingID != period.BuildingID) {
			return nil, apperrors.Forbidden("you cannot access this receipt")
		}
	}
	b, err := s.buildings.GetBuilding(ctx, period.BuildingID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	label := ""
	if un, err := s.units.GetUnit(ctx, charge.UnitID); err == nil {
		label = un.Label()
	}
	return renderPaymentReceipt(receiptData{
		Building:  b,
		Period:    period,
		Charge:    charge,
		Payment:   payment,
		UnitLabel: label,
	})
}

// PeriodPDF renders the caller's period detail as a PDF.
func (s *Service) PeriodPDF(ctx context.Context, actor user.Actor, periodID int64) ([]byte, error) {
	detail, err := s.PeriodDetail(ctx, actor, periodID)
	if err != nil {
		return nil, err
	}
	return renderPeriodDetail(detail)
}

// Package finance manages monthly common expenses: periods, prorated
// charges, resident payments and receipts.
package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/domu-platform/domu/internal/app/domain/finance"
	"github.com/domu-platform/domu/internal/app/domain/unit"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/platform/filestore"
	"github.com/domu-platform/domu/pkg/logger"
)

// Service manages common expense periods and payments.
type Service struct {
	store     storage.FinanceStore
	units     storage.UnitStore
	users     storage.UserStore
	buildings storage.BuildingStore
	files     filestore.Store
	log       *logger.Logger
	now       func() time.Time
}

// New constructs a finance service. files may be nil when receipts are not
// supported.
func New(store storage.FinanceStore, units storage.UnitStore, users storage.UserStore, buildings storage.BuildingStore, files filestore.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("finance")
	}
	return &Service{
		store:     store,
		units:     units,
		users:     users,
		buildings: buildings,
		files:     files,
		log:       log,
		now:       time.Now,
	}
}

// ChargeInput describes one charge line. Prorateable charges are split over
// every unit of the building; others target UnitID.
type ChargeInput struct {
	UnitID      *int64
	Description string
	Amount      decimal.Decimal
	Type        string
	Origin      string
	Prorateable bool
	ReceiptText string
}

// PeriodInput opens a month of common expenses.
type PeriodInput struct {
	Year          int
	Month         int
	DueDate       time.Time
	ReserveAmount decimal.Decimal
	Charges       []ChargeInput
	Note          string
}

// PeriodResult is a period with the number of charges just created.
type PeriodResult struct {
	finance.Period
	ChargesCount int `json:"chargesCount"`
}

// PeriodSummary is a period row for administrators.
type PeriodSummary struct {
	finance.Period
	ChargesCount   int        `json:"chargesCount"`
	RevisionsCount int        `json:"revisionsCount"`
	LastRevisionAt *time.Time `json:"lastRevisionAt,omitempty"`
}

// unitShare is a unit's weight in a prorated charge.
type unitShare struct {
	unitID  int64
	weight  decimal.Decimal
	hasUser bool
}

func requireAdmin(actor user.Actor) error {
	if !actor.User.IsAdmin() {
		return apperrors.Forbidden("only administrators can manage common expenses")
	}
	if !actor.HasBuilding() {
		return apperrors.BuildingRequired()
	}
	return nil
}

// normalizeAmount rounds half-up to two decimals.
func normalizeAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CreatePeriod opens a period for the selected building and expands its
// charges over the units.
func (s *Service) CreatePeriod(ctx context.Context, actor user.Actor, in PeriodInput) (PeriodResult, error) {
	if err := requireAdmin(actor); err != nil {
		return PeriodResult{}, err
	}
	if in.Year < 2000 || in.Year > 2100 {
		return PeriodResult{}, apperrors.Validation("year must be between 2000 and 2100")
	}
	if in.Month < 1 || in.Month > 12 {
		return PeriodResult{}, apperrors.Validation("month must be between 1 and 12")
	}
	if in.DueDate.IsZero() {
		return PeriodResult{}, apperrors.Validation("dueDate is required")
	}
	if _, err := s.store.FindPeriod(ctx, actor.BuildingID, in.Year, in.Month); err == nil {
		return PeriodResult{}, apperrors.Conflict("a period already exists for that building and month")
	} else if !apperrors.IsNotFound(err) {
		return PeriodResult{}, err
	}
	shares, err := s.unitShares(ctx, actor.BuildingID)
	if err != nil {
		return PeriodResult{}, err
	}
	reserve := normalizeAmount(in.ReserveAmount)
	if reserve.IsNegative() {
		return PeriodResult{}, apperrors.Validation("reserveAmount cannot be negative")
	}

	var charges []finance.Charge
	if reserve.IsPositive() {
		charges = append(charges, prorate(ChargeInput{
			Description: finance.ReserveDescription,
			Origin:      finance.ReserveDescription,
			Amount:      reserve,
			Type:        finance.ChargeReserve,
			Prorateable: true,
		}, shares)...)
	}
	expanded, err := expandCharges(in.Charges, shares)
	if err != nil {
		return PeriodResult{}, err
	}
	charges = append(charges, expanded...)

	creator := actor.ID()
	period, err := s.store.CreatePeriod(ctx, finance.Period{
		BuildingID:    actor.BuildingID,
		Year:          in.Year,
		Month:         in.Month,
		GeneratedAt:   s.now().UTC(),
		DueDate:       in.DueDate,
		ReserveAmount: reserve,
		TotalAmount:   decimal.Zero,
		Status:        finance.PeriodOpen,
		CreatedBy:     &creator,
	})
	if err != nil {
		return PeriodResult{}, err
	}
	saved, err := s.saveCharges(ctx, period.ID, charges)
	if err != nil {
		return PeriodResult{}, err
	}
	period.TotalAmount = sumCharges(saved)
	period, err = s.store.UpdatePeriod(ctx, period)
	if err != nil {
		return PeriodResult{}, err
	}
	s.revise(ctx, period.ID, creator, finance.RevisionCreated, in.Note, fmt.Sprintf("charges=%d", len(saved)))

	s.log.WithField("period_id", period.ID).
		WithField("building_id", period.BuildingID).
		WithField("total", period.TotalAmount.String()).
		Info("common expense period created")
	return PeriodResult{Period: period, ChargesCount: len(saved)}, nil
}

// AddCharges appends charges to an existing period and updates its total.
func (s *Service) AddCharges(ctx context.Context, actor user.Actor, periodID int64, charges []ChargeInput, note string) (PeriodResult, error) {
	if err := requireAdmin(actor); err != nil {
		return PeriodResult{}, err
	}
	if len(charges) == 0 {
		return PeriodResult{}, apperrors.Validation("at least one charge is required")
	}
	period, err := s.periodInBuilding(ctx, periodID, actor.BuildingID)
	if err != nil {
		return PeriodResult{}, err
	}
	shares, err := s.unitShares(ctx, period.BuildingID)
	if err != nil {
		return PeriodResult{}, err
	}
	expanded, err := expandCharges(charges, shares)
	if err != nil {
		return PeriodResult{}, err
	}
	saved, err := s.saveCharges(ctx, period.ID, expanded)
	if err != nil {
		return PeriodResult{}, err
	}
	period.TotalAmount = period.TotalAmount.Add(sumCharges(saved))
	period, err = s.store.UpdatePeriod(ctx, period)
	if err != nil {
		return PeriodResult{}, err
	}
	s.revise(ctx, period.ID, actor.ID(), finance.RevisionUpdated, note, fmt.Sprintf("charges_added=%d", len(saved)))

	s.log.WithField("period_id", period.ID).
		WithField("charges_added", len(saved)).
		Info("common expense charges added")
	return PeriodResult{Period: period, ChargesCount: len(saved)}, nil
}

// ListPeriods returns the building's periods newest first. from and to are
// optional year*100+month bounds, inclusive.
func (s *Service) ListPeriods(ctx context.Context, actor user.Actor, from, to *int) ([]PeriodSummary, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	periods, err := s.store.ListPeriods(ctx, actor.BuildingID)
	if err != nil {
		return nil, err
	}
	out := make([]PeriodSummary, 0, len(periods))
	for _, p := range filterPeriods(periods, from, to) {
		charges, err := s.store.ListChargesByPeriod(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		revisions, err := s.store.ListRevisions(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		summary := PeriodSummary{Period: p, ChargesCount: len(charges), RevisionsCount: len(revisions)}
		for _, r := range revisions {
			if summary.LastRevisionAt == nil || r.CreatedAt.After(*summary.LastRevisionAt) {
				at := r.CreatedAt
				summary.LastRevisionAt = &at
			}
		}
		out = append(out, summary)
	}
	return out, nil
}

func filterPeriods(periods []finance.Period, from, to *int) []finance.Period {
	if from == nil && to == nil {
		return periods
	}
	var out []finance.Period
	for _, p := range periods {
		index := p.Year*100 + p.Month
		if from != nil && index < *from {
			continue
		}
		if to != nil && index > *to {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) periodInBuilding(ctx context.Context, periodID, buildingID int64) (finance.Period, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return finance.Period{}, apperrors.FromStore(err, "period not found")
	}
	if period.BuildingID != buildingID {
		return finance.Period{}, apperrors.Validation("period does not belong to the selected building")
	}
	return period, nil
}

func (s *Service) unitShares(ctx context.Context, buildingID int64) ([]unitShare, error) {
	units, err := s.units.ListUnits(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, apperrors.Validation("the building has no units to prorate over")
	}
	shares := make([]unitShare, 0, len(units))
	for _, un := range units {
		if un.Status == unit.StatusDeleted {
			continue
		}
		residents, err := s.users.ListUsersByUnit(ctx, un.ID)
		if err != nil {
			return nil, err
		}
		shares = append(shares, unitShare{unitID: un.ID, weight: un.Aliquot, hasUser: len(residents) > 0})
	}
	return shares, nil
}

func (s *Service) saveCharges(ctx context.Context, periodID int64, charges []finance.Charge) ([]finance.Charge, error) {
	if len(charges) == 0 {
		return nil, nil
	}
	for i := range charges {
		charges[i].PeriodID = periodID
	}
	return s.store.CreateCharges(ctx, charges)
}

func (s *Service) revise(ctx context.Context, periodID, userID int64, action, note, changes string) {
	by := userID
	if _, err := s.store.CreateRevision(ctx, finance.Revision{
		PeriodID:  periodID,
		CreatedBy: &by,
		Action:    action,
		Note:      strings.TrimSpace(note),
		Changes:   changes,
	}); err != nil {
		s.log.WithError(err).WithField("period_id", periodID).Warn("record revision failed")
	}
}

func expandCharges(inputs []ChargeInput, shares []unitShare) ([]finance.Charge, error) {
	var out []finance.Charge
	for _, in := range inputs {
		in.Description = strings.TrimSpace(in.Description)
		in.Type = strings.TrimSpace(in.Type)
		in.Amount = normalizeAmount(in.Amount)
		if in.Description == "" {
			return nil, apperrors.Validation("description is required")
		}
		if !in.Amount.IsPositive() {
			return nil, apperrors.Validation("amount must be greater than zero")
		}
		if in.Type == "" {
			return nil, apperrors.Validation("type is required")
		}
		if in.Prorateable {
			out = append(out, prorate(in, shares)...)
			continue
		}
		if in.UnitID == nil {
			return nil, apperrors.Validation("unitId is required when the charge is not prorateable")
		}
		share, ok := findShare(shares, *in.UnitID)
		if !ok {
			return nil, apperrors.Validation("unit does not belong to the period's building")
		}
		out = append(out, newCharge(in, share, in.Amount, false))
	}
	return out, nil
}

func findShare(shares []unitShare, unitID int64) (unitShare, bool) {
	for _, sh := range shares {
		if sh.unitID == unitID {
			return sh, true
		}
	}
	return unitShare{}, false
}

// prorate splits in.Amount by unit weight. Non-positive weights count as one
// and the last unit absorbs rounding so the shares sum to the amount.
func prorate(in ChargeInput, shares []unitShare) []finance.Charge {
	weight := func(sh unitShare) decimal.Decimal {
		if sh.weight.IsPositive() {
			return sh.weight
		}
		return decimal.NewFromInt(1)
	}
	total := decimal.Zero
	for _, sh := range shares {
		total = total.Add(weight(sh))
	}
	remaining := in.Amount
	out := make([]finance.Charge, 0, len(shares))
	for i, sh := range shares {
		amount := in.Amount.Mul(weight(sh)).Div(total).Round(2)
		if i == len(shares)-1 {
			amount = remaining
		}
		remaining = remaining.Sub(amount)
		out = append(out, newCharge(in, sh, amount, true))
	}
	return out
}

func newCharge(in ChargeInput, sh unitShare, amount decimal.Decimal, prorateable bool) finance.Charge {
	payer := finance.PayerConstruction
	if sh.hasUser {
		payer = finance.PayerResident
	}
	return finance.Charge{
		UnitID:      sh.unitID,
		Description: in.Description,
		Amount:      amount,
		Type:        in.Type,
		Origin:      strings.TrimSpace(in.Origin),
		Prorateable: prorateable,
		PayerType:   payer,
		ReceiptText: strings.TrimSpace(in.ReceiptText),
	}
}

func sumCharges(charges []finance.Charge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.Amount)
	}
	return total
}

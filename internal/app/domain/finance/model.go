package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients expect numeric JSON amounts.
	decimal.MarshalJSONWithoutQuotes = true
}

// Period statuses.
const (
	PeriodOpen   = "OPEN"
	PeriodClosed = "CLOSED"
)

// Charge types and payer types.
const (
	ChargeReserve = "RESERVE"

	PayerResident     = "RESIDENT"
	PayerConstruction = "CONSTRUCTION"
)

// Payment statuses.
const (
	PaymentConfirmed = "CONFIRMED"
)

// Balance statuses derived from totals and payments.
const (
	BalancePaid    = "PAID"
	BalancePartial = "PARTIAL"
	BalancePending = "PENDING"
)

// Revision actions.
const (
	RevisionCreated         = "CREATED"
	RevisionUpdated         = "UPDATED"
	RevisionReceiptUploaded = "RECEIPT_UPLOADED"
)

// ReserveDescription labels the prorated reserve fund charge.
const ReserveDescription = "Fondo de reserva"

// Period is one month of common expenses for a building.
type Period struct {
	ID            int64           `json:"id" db:"id"`
	BuildingID    int64           `json:"buildingId" db:"building_id"`
	Year          int             `json:"year" db:"year"`
	Month         int             `json:"month" db:"month"`
	GeneratedAt   time.Time       `json:"generatedAt" db:"generated_at"`
	DueDate       time.Time       `json:"dueDate" db:"due_date"`
	ReserveAmount decimal.Decimal `json:"reserveAmount" db:"reserve_amount"`
	TotalAmount   decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Status        string          `json:"status" db:"status"`
	CreatedBy     *int64          `json:"createdBy,omitempty" db:"created_by"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// Charge is one line owed by a unit within a period.
type Charge struct {
	ID              int64           `json:"id" db:"id"`
	PeriodID        int64           `json:"periodId" db:"period_id"`
	UnitID          int64           `json:"unitId" db:"unit_id"`
	Description     string          `json:"description" db:"description"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Type            string          `json:"type" db:"type"`
	Origin          string          `json:"origin,omitempty" db:"origin"`
	Prorateable     bool            `json:"prorateable" db:"prorateable"`
	PayerType       string          `json:"payerType" db:"payer_type"`
	ReceiptText     string          `json:"receiptText,omitempty" db:"receipt_text"`
	ReceiptKey      string          `json:"-" db:"receipt_key"`
	ReceiptFileName string          `json:"receiptFileName,omitempty" db:"receipt_file_name"`
	ReceiptMimeType string          `json:"-" db:"receipt_mime_type"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// HasReceipt reports whether a receipt file is attached.
func (c Charge) HasReceipt() bool { return c.ReceiptKey != "" }

// Payment settles part or all of a charge.
type Payment struct {
	ID            int64           `json:"id" db:"id"`
	UnitID        int64           `json:"unitId" db:"unit_id"`
	ChargeID      int64           `json:"chargeId" db:"charge_id"`
	UserID        int64           `json:"userId" db:"user_id"`
	IssuedAt      time.Time       `json:"issuedAt" db:"issued_at"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod string          `json:"paymentMethod,omitempty" db:"payment_method"`
	Reference     string          `json:"reference,omitempty" db:"reference"`
	Status        string          `json:"status" db:"status"`
	ReceiptText   string          `json:"receiptText,omitempty" db:"receipt_text"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// Revision is an audit entry on a period.
type Revision struct {
	ID        int64     `json:"id" db:"id"`
	PeriodID  int64     `json:"periodId" db:"period_id"`
	CreatedBy *int64    `json:"createdBy,omitempty" db:"created_by"`
	Action    string    `json:"action" db:"action"`
	Note      string    `json:"note,omitempty" db:"note"`
	Changes   string    `json:"changes,omitempty" db:"changes"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// BalanceStatus classifies an amount against what has been paid.
func BalanceStatus(total, paid decimal.Decimal) string {
	pending := total.Sub(paid)
	switch {
	case !pending.IsPositive():
		return BalancePaid
	case paid.IsPositive():
		return BalancePartial
	default:
		return BalancePending
	}
}

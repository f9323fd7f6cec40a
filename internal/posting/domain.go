package posting

import (
	"errors"
	"time"
)

// Direction distinguishes purchase receipts from sales shipments.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// TxKey is the identity of a source inventory transaction.
type TxKey struct {
	BizUnit string
	Date    time.Time
	Number  int64
	Time    string
}

// InventoryTransaction is the committed inventory movement handed over by the
// order/purchase/sales module. It is immutable except for the active flag,
// which flips to false when the source transaction is voided.
type InventoryTransaction struct {
	BizUnit      string
	Category     string
	Detail       string
	Date         time.Time
	Number       int64
	Time         string
	Direction    Direction
	Qty          int64
	UnitPrice    int64
	VATAmount    int64
	Counterparty string
	Memo         string
	Active       bool
}

// Key returns the transaction identity.
func (t InventoryTransaction) Key() TxKey {
	return TxKey{BizUnit: t.BizUnit, Date: t.Date, Number: t.Number, Time: t.Time}
}

// Validate applies the ingestion contract. Voided records and records missing
// a counterparty never reach posting.
func (t InventoryTransaction) Validate() error {
	if !t.Active {
		return ErrInactiveTransaction
	}
	if t.Counterparty == "" {
		return ErrMissingCounterparty
	}
	if t.Direction != DirectionInbound && t.Direction != DirectionOutbound {
		return ErrUnknownDirection
	}
	if t.Date.IsZero() || t.Number <= 0 {
		return errors.New("posting: transaction date and number required")
	}
	return nil
}

// Amounts carries the VAT split of one transaction line. Values are integer
// won. VAT is taken verbatim from the source record; upstream capture already
// determined it and recomputing from a rate would mask manual corrections.
type Amounts struct {
	Supply int64
	VAT    int64
	Total  int64
}

// SplitAmounts derives supply and total from quantity, unit price, and the
// stored VAT amount.
func SplitAmounts(qty, unitPrice, vat int64) (Amounts, error) {
	supply := qty * unitPrice
	if supply < 0 || vat < 0 {
		return Amounts{}, ErrNegativeAmount
	}
	return Amounts{Supply: supply, VAT: vat, Total: supply + vat}, nil
}

// Side marks a voucher line as debit or credit.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// VoucherLine debits or credits a single account. Exactly one of the two
// amounts is non-zero.
type VoucherLine struct {
	ID        int64
	VoucherID int64
	Account   string
	Debit     int64
	Credit    int64
}

// Voucher is the balanced double-entry record produced for one transaction.
// The voucher number is unique within its date; the reference string is the
// traceability link back to the source transaction.
type Voucher struct {
	ID           int64
	Number       int64
	Date         time.Time
	Reference    string
	Direction    Direction
	BizUnit      string
	Counterparty string
	TxTime       string
	Memo         string
	CreatedAt    time.Time
	Lines        []VoucherLine
}

// Balanced reports whether debits equal credits across the voucher lines.
func (v Voucher) Balanced() bool {
	var debit, credit int64
	for _, line := range v.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit == credit
}

var (
	// ErrInactiveTransaction indicates a voided record reached ingestion.
	ErrInactiveTransaction = errors.New("posting: transaction is not active")
	// ErrMissingCounterparty indicates a blank counterparty code.
	ErrMissingCounterparty = errors.New("posting: counterparty required")
	// ErrNegativeAmount indicates a negative supply or VAT amount.
	ErrNegativeAmount = errors.New("posting: negative amount")
	// ErrUnknownDirection indicates a direction outside inbound/outbound.
	ErrUnknownDirection = errors.New("posting: unknown direction")
	// ErrUnbalancedVoucher indicates debits != credits. This can only come
	// from a defect in the split or rule table and aborts the whole posting.
	ErrUnbalancedVoucher = errors.New("posting: voucher does not balance")
	// ErrVoucherNotFound indicates a missing voucher.
	ErrVoucherNotFound = errors.New("posting: voucher not found")
	// ErrTransientConflict indicates lock contention that survived retries.
	ErrTransientConflict = errors.New("posting: transient conflict, retry later")
)

package ledger

import (
	"errors"
	"time"
)

// Kind selects the receivables or payables ledger.
type Kind string

const (
	KindReceivable Kind = "RECEIVABLE"
	KindPayable    Kind = "PAYABLE"
)

// Scope identifies one counterparty ledger. All balance chaining and closing
// happens within a single scope.
type Scope struct {
	Kind         Kind
	BizUnit      string
	Counterparty string
}

// SortKey orders entries chronologically within a scope. Transaction numbers
// restart per date; the capture time breaks ties for equal numbers from
// different source feeds.
type SortKey struct {
	Date   time.Time
	Number int64
	Time   string
}

// Compare returns -1, 0, or 1 ordering k against other.
func (k SortKey) Compare(other SortKey) int {
	kd, od := k.Date.Truncate(24*time.Hour), other.Date.Truncate(24*time.Hour)
	switch {
	case kd.Before(od):
		return -1
	case kd.After(od):
		return 1
	}
	switch {
	case k.Number < other.Number:
		return -1
	case k.Number > other.Number:
		return 1
	}
	switch {
	case k.Time < other.Time:
		return -1
	case k.Time > other.Time:
		return 1
	}
	return 0
}

// Less reports whether k sorts before other.
func (k SortKey) Less(other SortKey) bool { return k.Compare(other) < 0 }

// Entry is one row of a counterparty ledger with its running balance.
type Entry struct {
	ID           int64
	Kind         Kind
	BizUnit      string
	Counterparty string
	Date         time.Time
	Number       int64
	TxTime       string
	Amount       int64
	Balance      int64
	Closed       bool
	CreatedAt    time.Time
}

// Scope returns the ledger scope of the entry.
func (e Entry) Scope() Scope {
	return Scope{Kind: e.Kind, BizUnit: e.BizUnit, Counterparty: e.Counterparty}
}

// Key returns the chronological sort key of the entry.
func (e Entry) Key() SortKey {
	return SortKey{Date: e.Date, Number: e.Number, Time: e.TxTime}
}

var (
	// ErrClosedPeriod indicates a write at or before a closing boundary.
	ErrClosedPeriod = errors.New("ledger: period closed for this counterparty")
	// ErrEntryNotFound indicates a missing ledger entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrInvalidScope indicates a malformed scope or statement range from the
	// caller, as opposed to a repository failure.
	ErrInvalidScope = errors.New("ledger: invalid scope")
)

// Rechain recomputes running balances for entries already in chronological
// order, starting from the given opening balance. It returns the same slice
// with balances rewritten.
func Rechain(entries []Entry, opening int64) []Entry {
	balance := opening
	for i := range entries {
		balance += entries[i].Amount
		entries[i].Balance = balance
	}
	return entries
}

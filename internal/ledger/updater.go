package ledger

import (
	"context"
	"time"
)

// TxRepository exposes the ledger operations that must run inside the posting
// transaction. The caller owns transaction boundaries and scope locking.
type TxRepository interface {
	LatestBefore(ctx context.Context, scope Scope, key SortKey) (*Entry, error)
	ListAfter(ctx context.Context, scope Scope, key SortKey) ([]Entry, error)
	Insert(ctx context.Context, entry Entry) (Entry, error)
	Delete(ctx context.Context, scope Scope, date time.Time, number int64) (*Entry, error)
	UpdateBalance(ctx context.Context, id int64, balance int64) error
	SnapshotCovers(ctx context.Context, scope Scope, date time.Time) (bool, error)
}

// Updater maintains the running-balance chain of a counterparty ledger.
// Append and Remove assume the caller holds the exclusive scope lock for the
// entry's (business unit, counterparty) pair.
type Updater struct{}

// Append inserts an entry at its chronological position and recomputes the
// balances of every later entry in the scope. Entries landing at or before a
// closing boundary are rejected with ErrClosedPeriod.
func (Updater) Append(ctx context.Context, tx TxRepository, entry Entry) (Entry, error) {
	scope := entry.Scope()
	closed, err := tx.SnapshotCovers(ctx, scope, entry.Date)
	if err != nil {
		return Entry{}, err
	}
	if closed {
		return Entry{}, ErrClosedPeriod
	}
	prior, err := tx.LatestBefore(ctx, scope, entry.Key())
	if err != nil {
		return Entry{}, err
	}
	var opening int64
	if prior != nil {
		opening = prior.Balance
	}
	entry.Balance = opening + entry.Amount
	inserted, err := tx.Insert(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	if err := rechainAfter(ctx, tx, scope, inserted.Key(), inserted.Balance); err != nil {
		return Entry{}, err
	}
	return inserted, nil
}

// Remove deletes the entry for (date, number) and recomputes later balances.
func (Updater) Remove(ctx context.Context, tx TxRepository, scope Scope, date time.Time, number int64) (*Entry, error) {
	closed, err := tx.SnapshotCovers(ctx, scope, date)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrClosedPeriod
	}
	removed, err := tx.Delete(ctx, scope, date, number)
	if err != nil {
		return nil, err
	}
	if removed == nil {
		return nil, ErrEntryNotFound
	}
	prior, err := tx.LatestBefore(ctx, scope, removed.Key())
	if err != nil {
		return nil, err
	}
	var opening int64
	if prior != nil {
		opening = prior.Balance
	}
	if err := rechainAfter(ctx, tx, scope, removed.Key(), opening); err != nil {
		return nil, err
	}
	return removed, nil
}

func rechainAfter(ctx context.Context, tx TxRepository, scope Scope, key SortKey, opening int64) error {
	later, err := tx.ListAfter(ctx, scope, key)
	if err != nil {
		return err
	}
	balance := opening
	for _, entry := range later {
		balance += entry.Amount
		if balance == entry.Balance {
			continue
		}
		if err := tx.UpdateBalance(ctx, entry.ID, balance); err != nil {
			return err
		}
	}
	return nil
}

// KindFor maps a posting direction string to the ledger side it touches.
// Inbound purchases accrue payables; outbound sales accrue receivables.
func KindFor(inbound bool) Kind {
	if inbound {
		return KindPayable
	}
	return KindReceivable
}

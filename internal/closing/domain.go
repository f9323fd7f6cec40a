package closing

import (
	"errors"
	"time"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// Snapshot freezes a counterparty ledger balance at a period boundary.
// Entries at or before the boundary become immutable once it exists.
type Snapshot struct {
	ID           int64
	Period       shared.Period
	Kind         ledger.Kind
	BizUnit      string
	Counterparty string
	Balance      int64
	EntryCount   int64
	TakenAt      time.Time
}

// Scope returns the ledger scope the snapshot covers.
func (s Snapshot) Scope() ledger.Scope {
	return ledger.Scope{Kind: s.Kind, BizUnit: s.BizUnit, Counterparty: s.Counterparty}
}

var (
	// ErrAlreadyClosed indicates a snapshot already exists for the
	// (counterparty, period) pair. Reopening is a separately-authorized
	// operation and never happens here.
	ErrAlreadyClosed = errors.New("closing: period already closed for counterparty")
	// ErrSnapshotNotFound indicates a missing snapshot.
	ErrSnapshotNotFound = errors.New("closing: snapshot not found")
)

// CloseInput scopes one closing run.
type CloseInput struct {
	Period       string
	Kind         ledger.Kind
	BizUnit      string
	Counterparty string
	ActorID      int64
}

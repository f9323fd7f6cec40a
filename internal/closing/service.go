package closing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// TxRepository exposes transactional closing operations.
type TxRepository interface {
	AcquireScope(ctx context.Context, bizUnit, counterparty string) error
	LastEntryAtOrBefore(ctx context.Context, scope ledger.Scope, boundary time.Time) (*ledger.Entry, error)
	MarkClosedThrough(ctx context.Context, scope ledger.Scope, boundary time.Time) (int64, error)
	InsertSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error)
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSnapshot(ctx context.Context, scope ledger.Scope, period shared.Period) (Snapshot, error)
	ListSnapshots(ctx context.Context, counterparty string) ([]Snapshot, error)
}

// AuditPort records closing events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service freezes counterparty ledgers at period boundaries. It runs outside
// the per-transaction posting path but competes for the same counterparty
// scope: the Redis lease blocks new postings into the period while the
// snapshot is computed, and the advisory lock inside the transaction closes
// the remaining race window.
type Service struct {
	repo  RepositoryPort
	locks *shared.ScopeLock
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the closing service. locks and audit may be nil.
func NewService(repo RepositoryPort, locks *shared.ScopeLock, audit AuditPort) *Service {
	return &Service{repo: repo, locks: locks, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Close takes the closing snapshot for one counterparty and period and marks
// the covered entries closed.
func (s *Service) Close(ctx context.Context, input CloseInput) (Snapshot, error) {
	period, err := shared.ParsePeriod(input.Period)
	if err != nil {
		return Snapshot{}, err
	}
	if input.Counterparty == "" {
		return Snapshot{}, errors.New("closing: counterparty required")
	}
	if input.Kind != ledger.KindReceivable && input.Kind != ledger.KindPayable {
		return Snapshot{}, fmt.Errorf("closing: unknown ledger kind %q", input.Kind)
	}
	scope := ledger.Scope{Kind: input.Kind, BizUnit: input.BizUnit, Counterparty: input.Counterparty}

	if s.locks != nil {
		release, err := s.locks.Acquire(ctx, shared.LedgerLockKey(input.BizUnit, input.Counterparty))
		if err != nil {
			return Snapshot{}, err
		}
		defer release()
	}

	var snap Snapshot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AcquireScope(ctx, input.BizUnit, input.Counterparty); err != nil {
			return err
		}
		boundary := period.End()
		last, err := tx.LastEntryAtOrBefore(ctx, scope, boundary)
		if err != nil {
			return err
		}
		var balance int64
		if last != nil {
			balance = last.Balance
		}
		count, err := tx.MarkClosedThrough(ctx, scope, boundary)
		if err != nil {
			return err
		}
		snap, err = tx.InsertSnapshot(ctx, Snapshot{
			Period:       period,
			Kind:         input.Kind,
			BizUnit:      input.BizUnit,
			Counterparty: input.Counterparty,
			Balance:      balance,
			EntryCount:   count,
			TakenAt:      s.now(),
		})
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "closing.close",
			Entity:   "closing_snapshot",
			EntityID: fmt.Sprintf("%s:%s:%s", input.Counterparty, input.Kind, period),
			Meta: map[string]any{
				"balance":     snap.Balance,
				"entry_count": snap.EntryCount,
				"biz_unit":    input.BizUnit,
			},
			At: s.now(),
		})
	}
	return snap, nil
}

// GetSnapshot looks up the snapshot for a counterparty and period.
func (s *Service) GetSnapshot(ctx context.Context, scope ledger.Scope, rawPeriod string) (Snapshot, error) {
	period, err := shared.ParsePeriod(rawPeriod)
	if err != nil {
		return Snapshot{}, err
	}
	return s.repo.GetSnapshot(ctx, scope, period)
}

// ListSnapshots returns every snapshot taken for a counterparty.
func (s *Service) ListSnapshots(ctx context.Context, counterparty string) ([]Snapshot, error) {
	if counterparty == "" {
		return nil, errors.New("closing: counterparty required")
	}
	return s.repo.ListSnapshots(ctx, counterparty)
}

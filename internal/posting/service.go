package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/platform/db"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// TxRepository exposes transactional posting operations. Ledger() returns the
// ledger operations bound to the same transaction so a posting and its ledger
// entry commit or roll back together.
type TxRepository interface {
	AcquireScope(ctx context.Context, bizUnit, counterparty string) error
	VoucherByReference(ctx context.Context, ref string) (Voucher, error)
	NextVoucherNumber(ctx context.Context, date time.Time) (int64, error)
	InsertVoucher(ctx context.Context, v Voucher) (Voucher, error)
	DeleteVoucher(ctx context.Context, id int64) error
	Ledger() ledger.TxRepository
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	VoucherByReference(ctx context.Context, ref string) (Voucher, error)
	VoucherByNumber(ctx context.Context, date time.Time, number int64) (Voucher, error)
}

// AuditPort records posting events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posting outcomes.
type MetricsPort interface {
	VoucherPosted(direction string)
	VoucherVoided(direction string)
	UnbalancedVoucher()
	PostingRetried()
}

// BalanceInvalidator drops cached counterparty balances after a write.
type BalanceInvalidator interface {
	InvalidateBalance(ctx context.Context, scope ledger.Scope)
}

const maxPostAttempts = 3

// Service runs the posting pipeline: ingest, VAT split, rule resolution,
// voucher assembly, and ledger update, all inside one transaction.
type Service struct {
	repo     RepositoryPort
	updater  ledger.Updater
	audit    AuditPort
	metrics  MetricsPort
	balances BalanceInvalidator
	logger   *slog.Logger
	now      func() time.Time
	resolve  func(Direction, Amounts) ([]PostingLine, error)
}

// NewService constructs the posting service. audit, metrics, and balances may
// be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, balances BalanceInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, balances: balances, logger: logger, now: time.Now, resolve: Resolve}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post turns one committed inventory transaction into a balanced voucher and
// a counterparty ledger entry. Re-posting an already-active transaction
// returns the existing voucher unchanged.
func (s *Service) Post(ctx context.Context, txn InventoryTransaction, actorID int64) (Voucher, error) {
	if err := txn.Validate(); err != nil {
		return Voucher{}, err
	}
	amounts, err := SplitAmounts(txn.Qty, txn.UnitPrice, txn.VATAmount)
	if err != nil {
		return Voucher{}, err
	}
	lines, err := s.resolve(txn.Direction, amounts)
	if err != nil {
		return Voucher{}, err
	}
	ref := NewReference(txn).String()

	var voucher Voucher
	var existed bool
	err = s.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		existed = false
		if err := tx.AcquireScope(ctx, txn.BizUnit, txn.Counterparty); err != nil {
			return err
		}
		current, err := tx.VoucherByReference(ctx, ref)
		if err == nil {
			voucher = current
			existed = true
			return nil
		}
		if !errors.Is(err, ErrVoucherNotFound) {
			return err
		}
		number, err := tx.NextVoucherNumber(ctx, txn.Date)
		if err != nil {
			return err
		}
		draft := Voucher{
			Number:       number,
			Date:         txn.Date,
			Reference:    ref,
			Direction:    txn.Direction,
			BizUnit:      txn.BizUnit,
			Counterparty: txn.Counterparty,
			TxTime:       txn.Time,
			Memo:         txn.Memo,
			Lines:        toVoucherLines(lines),
		}
		if !draft.Balanced() {
			s.logger.Error("unbalanced voucher rejected",
				slog.String("reference", ref),
				slog.String("direction", string(txn.Direction)),
				slog.Int64("supply", amounts.Supply),
				slog.Int64("vat", amounts.VAT))
			if s.metrics != nil {
				s.metrics.UnbalancedVoucher()
			}
			return ErrUnbalancedVoucher
		}
		inserted, err := tx.InsertVoucher(ctx, draft)
		if err != nil {
			return err
		}
		entry := ledger.Entry{
			Kind:         ledger.KindFor(txn.Direction == DirectionInbound),
			BizUnit:      txn.BizUnit,
			Counterparty: txn.Counterparty,
			Date:         txn.Date,
			Number:       txn.Number,
			TxTime:       txn.Time,
			Amount:       amounts.Total,
		}
		if _, err := s.updater.Append(ctx, tx.Ledger(), entry); err != nil {
			return err
		}
		voucher = inserted
		return nil
	})
	if err != nil {
		return Voucher{}, err
	}
	if existed {
		return voucher, nil
	}
	s.afterWrite(ctx, txn.Direction, txn.BizUnit, txn.Counterparty)
	if s.metrics != nil {
		s.metrics.VoucherPosted(string(txn.Direction))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "posting.post",
			Entity:   "voucher",
			EntityID: ref,
			Meta: map[string]any{
				"voucher_number": voucher.Number,
				"voucher_date":   voucher.Date.Format("2006-01-02"),
				"total":          amounts.Total,
			},
			At: s.now(),
		})
	}
	return voucher, nil
}

// VoidInput identifies the voided source transaction.
type VoidInput struct {
	Direction Direction
	Date      time.Time
	Number    int64
	ActorID   int64
	Reason    string
}

// Void cascades a source-transaction void: the voucher is deleted and the
// counterparty ledger entry removed, with later balances recomputed.
func (s *Service) Void(ctx context.Context, input VoidInput) error {
	if input.Direction != DirectionInbound && input.Direction != DirectionOutbound {
		return ErrUnknownDirection
	}
	ref := Reference{Direction: input.Direction, Date: input.Date, Number: input.Number}.String()

	var voucher Voucher
	err := s.withRetry(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.VoucherByReference(ctx, ref)
		if err != nil {
			return err
		}
		if err := tx.AcquireScope(ctx, current.BizUnit, current.Counterparty); err != nil {
			return err
		}
		scope := ledger.Scope{
			Kind:         ledger.KindFor(input.Direction == DirectionInbound),
			BizUnit:      current.BizUnit,
			Counterparty: current.Counterparty,
		}
		if _, err := s.updater.Remove(ctx, tx.Ledger(), scope, input.Date, input.Number); err != nil {
			return err
		}
		if err := tx.DeleteVoucher(ctx, current.ID); err != nil {
			return err
		}
		voucher = current
		return nil
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, input.Direction, voucher.BizUnit, voucher.Counterparty)
	if s.metrics != nil {
		s.metrics.VoucherVoided(string(input.Direction))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "posting.void",
			Entity:   "voucher",
			EntityID: ref,
			Meta: map[string]any{
				"voucher_number": voucher.Number,
				"reason":         input.Reason,
			},
			At: s.now(),
		})
	}
	return nil
}

// GetVoucherByReference resolves a voucher from its reference string.
func (s *Service) GetVoucherByReference(ctx context.Context, raw string) (Voucher, error) {
	if _, err := ParseReference(raw); err != nil {
		return Voucher{}, err
	}
	return s.repo.VoucherByReference(ctx, raw)
}

// GetVoucherByNumber resolves a voucher from its date and number.
func (s *Service) GetVoucherByNumber(ctx context.Context, date time.Time, number int64) (Voucher, error) {
	return s.repo.VoucherByNumber(ctx, date, number)
}

// withRetry reruns the transaction on serialization conflicts with a fresh
// read of the balance chain, then surfaces the contention as transient.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	var lastErr error
	for attempt := 0; attempt < maxPostAttempts; attempt++ {
		lastErr = s.repo.WithTx(ctx, fn)
		if lastErr == nil || !db.IsSerializationFailure(lastErr) {
			return lastErr
		}
		if s.metrics != nil {
			s.metrics.PostingRetried()
		}
		s.logger.Warn("posting retry after serialization conflict",
			slog.Int("attempt", attempt+1), slog.Any("error", lastErr))
	}
	return fmt.Errorf("%w: %v", ErrTransientConflict, lastErr)
}

func (s *Service) afterWrite(ctx context.Context, direction Direction, bizUnit, counterparty string) {
	if s.balances == nil {
		return
	}
	s.balances.InvalidateBalance(ctx, ledger.Scope{
		Kind:         ledger.KindFor(direction == DirectionInbound),
		BizUnit:      bizUnit,
		Counterparty: counterparty,
	})
}

func toVoucherLines(lines []PostingLine) []VoucherLine {
	out := make([]VoucherLine, 0, len(lines))
	for _, line := range lines {
		vl := VoucherLine{Account: line.Account}
		if line.Side == SideDebit {
			vl.Debit = line.Amount
		} else {
			vl.Credit = line.Amount
		}
		out = append(out, vl)
	}
	return out
}

package closing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/platform/db"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for closing snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const snapshotColumns = `id, period, kind, biz_unit, counterparty, balance, entry_count, taken_at`

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var s Snapshot
	var period string
	err := row.Scan(&s.ID, &period, &s.Kind, &s.BizUnit, &s.Counterparty,
		&s.Balance, &s.EntryCount, &s.TakenAt)
	if err != nil {
		return Snapshot{}, err
	}
	s.Period = shared.Period(period)
	return s, nil
}

// GetSnapshot looks up one snapshot.
func (r *Repository) GetSnapshot(ctx context.Context, scope ledger.Scope, period shared.Period) (Snapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+`
		 FROM closing_snapshots
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3 AND period = $4`,
		scope.Kind, scope.BizUnit, scope.Counterparty, period.String())
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return snap, err
}

// ListSnapshots returns snapshots for a counterparty, newest period first.
func (r *Repository) ListSnapshots(ctx context.Context, counterparty string) ([]Snapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+snapshotColumns+`
		 FROM closing_snapshots
		 WHERE counterparty = $1
		 ORDER BY period DESC, kind, biz_unit`, counterparty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) AcquireScope(ctx context.Context, bizUnit, counterparty string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		shared.LedgerLockKey(bizUnit, counterparty))
	return err
}

func (t *txRepo) LastEntryAtOrBefore(ctx context.Context, scope ledger.Scope, boundary time.Time) (*ledger.Entry, error) {
	var e ledger.Entry
	err := t.tx.QueryRow(ctx,
		`SELECT id, kind, biz_unit, counterparty, tx_date, tx_number, tx_time, amount, balance, closed, created_at
		 FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3 AND tx_date <= $4
		 ORDER BY tx_date DESC, tx_number DESC, tx_time DESC
		 LIMIT 1`,
		scope.Kind, scope.BizUnit, scope.Counterparty, boundary,
	).Scan(&e.ID, &e.Kind, &e.BizUnit, &e.Counterparty, &e.Date, &e.Number,
		&e.TxTime, &e.Amount, &e.Balance, &e.Closed, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *txRepo) MarkClosedThrough(ctx context.Context, scope ledger.Scope, boundary time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE ledger_entries SET closed = TRUE
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3 AND tx_date <= $4 AND NOT closed`,
		scope.Kind, scope.BizUnit, scope.Counterparty, boundary)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) InsertSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO closing_snapshots
			(period, period_end, kind, biz_unit, counterparty, balance, entry_count, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		snap.Period.String(), snap.Period.End(), snap.Kind, snap.BizUnit,
		snap.Counterparty, snap.Balance, snap.EntryCount, snap.TakenAt).Scan(&snap.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Snapshot{}, ErrAlreadyClosed
		}
		return Snapshot{}, err
	}
	return snap, nil
}

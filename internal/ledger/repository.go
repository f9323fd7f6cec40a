package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// Repository provides PostgreSQL backed reads over ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, kind, biz_unit, counterparty, tx_date, tx_number, tx_time, amount, balance, closed, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Kind, &e.BizUnit, &e.Counterparty, &e.Date, &e.Number,
		&e.TxTime, &e.Amount, &e.Balance, &e.Closed, &e.CreatedAt)
	return e, err
}

// List returns entries for a counterparty scope in chronological order.
func (r *Repository) List(ctx context.Context, scope Scope, page shared.Page) ([]Entry, error) {
	page = page.Clamp(100, 1000)
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3
		 ORDER BY tx_date, tx_number, tx_time
		 LIMIT $4 OFFSET $5`,
		scope.Kind, scope.BizUnit, scope.Counterparty, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// LatestBalance returns the running balance after the newest entry in the
// scope, or zero when the ledger is empty.
func (r *Repository) LatestBalance(ctx context.Context, scope Scope) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx,
		`SELECT balance FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3
		 ORDER BY tx_date DESC, tx_number DESC, tx_time DESC
		 LIMIT 1`,
		scope.Kind, scope.BizUnit, scope.Counterparty).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// Range returns the entries dated within [from, to] plus the opening balance
// immediately before the range.
func (r *Repository) Range(ctx context.Context, scope Scope, from, to time.Time) (int64, []Entry, error) {
	var opening int64
	err := r.pool.QueryRow(ctx,
		`SELECT balance FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3 AND tx_date < $4
		 ORDER BY tx_date DESC, tx_number DESC, tx_time DESC
		 LIMIT 1`,
		scope.Kind, scope.BizUnit, scope.Counterparty, from).Scan(&opening)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3
		   AND tx_date >= $4 AND tx_date <= $5
		 ORDER BY tx_date, tx_number, tx_time`,
		scope.Kind, scope.BizUnit, scope.Counterparty, from, to)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	entries, err := collectEntries(rows)
	return opening, entries, err
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Transaction Support ---

type pgTxRepo struct {
	tx pgx.Tx
}

// NewTxRepository binds the ledger operations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &pgTxRepo{tx: tx}
}

func (t *pgTxRepo) LatestBefore(ctx context.Context, scope Scope, key SortKey) (*Entry, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3
		   AND (tx_date, tx_number, tx_time) < ($4, $5, $6)
		 ORDER BY tx_date DESC, tx_number DESC, tx_time DESC
		 LIMIT 1`,
		scope.Kind, scope.BizUnit, scope.Counterparty, key.Date, key.Number, key.Time)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTxRepo) ListAfter(ctx context.Context, scope Scope, key SortKey) ([]Entry, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+entryColumns+`
		 FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3
		   AND (tx_date, tx_number, tx_time) > ($4, $5, $6)
		 ORDER BY tx_date, tx_number, tx_time`,
		scope.Kind, scope.BizUnit, scope.Counterparty, key.Date, key.Number, key.Time)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (t *pgTxRepo) Insert(ctx context.Context, entry Entry) (Entry, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO ledger_entries
			(kind, biz_unit, counterparty, tx_date, tx_number, tx_time, amount, balance, closed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, NOW())
		 RETURNING id, created_at`,
		entry.Kind, entry.BizUnit, entry.Counterparty, entry.Date, entry.Number,
		entry.TxTime, entry.Amount, entry.Balance).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (t *pgTxRepo) Delete(ctx context.Context, scope Scope, date time.Time, number int64) (*Entry, error) {
	row := t.tx.QueryRow(ctx,
		`DELETE FROM ledger_entries
		 WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3
		   AND tx_date = $4 AND tx_number = $5
		 RETURNING `+entryColumns,
		scope.Kind, scope.BizUnit, scope.Counterparty, date, number)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTxRepo) UpdateBalance(ctx context.Context, id int64, balance int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE ledger_entries SET balance = $2 WHERE id = $1`, id, balance)
	return err
}

func (t *pgTxRepo) SnapshotCovers(ctx context.Context, scope Scope, date time.Time) (bool, error) {
	var covered bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM closing_snapshots
			WHERE kind = $1 AND biz_unit = $2 AND counterparty = $3 AND period_end >= $4
		 )`,
		scope.Kind, scope.BizUnit, scope.Counterparty, date).Scan(&covered)
	return covered, err
}

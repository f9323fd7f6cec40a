package posting

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
	"github.com/jangbu-erp/jangbu-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for vouchers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const voucherColumns = `id, number, voucher_date, reference, direction, biz_unit, counterparty, tx_time, memo, created_at`

func getVoucher(ctx context.Context, q querier, where string, args ...any) (Voucher, error) {
	var v Voucher
	err := q.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE `+where, args...,
	).Scan(&v.ID, &v.Number, &v.Date, &v.Reference, &v.Direction, &v.BizUnit,
		&v.Counterparty, &v.TxTime, &v.Memo, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrVoucherNotFound
	}
	if err != nil {
		return Voucher{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, voucher_id, account, debit, credit
		 FROM voucher_lines WHERE voucher_id = $1 ORDER BY id`, v.ID)
	if err != nil {
		return Voucher{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line VoucherLine
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.Account, &line.Debit, &line.Credit); err != nil {
			return Voucher{}, err
		}
		v.Lines = append(v.Lines, line)
	}
	return v, rows.Err()
}

// VoucherByReference finds an active voucher by its reference string.
func (r *Repository) VoucherByReference(ctx context.Context, ref string) (Voucher, error) {
	return getVoucher(ctx, r.pool, `reference = $1`, ref)
}

// VoucherByNumber finds a voucher by voucher date and number.
func (r *Repository) VoucherByNumber(ctx context.Context, date time.Time, number int64) (Voucher, error) {
	return getVoucher(ctx, r.pool, `voucher_date = $1 AND number = $2`, date, number)
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
	if err := fn(ctx, &txRepo{tx: tx, ledger: ledger.NewTxRepository(tx)}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct {
	tx     pgx.Tx
	ledger ledger.TxRepository
}

// AcquireScope serializes the balance read-compute-write for one counterparty
// ledger. The advisory lock is transaction scoped and released on commit or
// rollback.
func (t *txRepo) AcquireScope(ctx context.Context, bizUnit, counterparty string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		shared.LedgerLockKey(bizUnit, counterparty))
	return err
}

func (t *txRepo) VoucherByReference(ctx context.Context, ref string) (Voucher, error) {
	return getVoucher(ctx, t.tx, `reference = $1`, ref)
}

// NextVoucherNumber assigns the next monotone number for a voucher date via a
// per-date sequence row.
func (t *txRepo) NextVoucherNumber(ctx context.Context, date time.Time) (int64, error) {
	var number int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO voucher_sequences (voucher_date, last_number)
		 VALUES ($1, 1)
		 ON CONFLICT (voucher_date)
		 DO UPDATE SET last_number = voucher_sequences.last_number + 1
		 RETURNING last_number`, date).Scan(&number)
	return number, err
}

func (t *txRepo) InsertVoucher(ctx context.Context, v Voucher) (Voucher, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO vouchers
			(number, voucher_date, reference, direction, biz_unit, counterparty, tx_time, memo, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 RETURNING id, created_at`,
		v.Number, v.Date, v.Reference, v.Direction, v.BizUnit, v.Counterparty,
		v.TxTime, v.Memo).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return Voucher{}, err
	}
	for i := range v.Lines {
		line := &v.Lines[i]
		line.VoucherID = v.ID
		err := t.tx.QueryRow(ctx,
			`INSERT INTO voucher_lines (voucher_id, account, debit, credit)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			line.VoucherID, line.Account, line.Debit, line.Credit).Scan(&line.ID)
		if err != nil {
			return Voucher{}, err
		}
	}
	return v, nil
}

func (t *txRepo) DeleteVoucher(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM voucher_lines WHERE voucher_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM vouchers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

func (t *txRepo) Ledger() ledger.TxRepository {
	return t.ledger
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerIntegrityJob re-walks every counterparty balance chain and reports
// entries whose stored running balance drifted from the recomputed one. It is
// a detection net only; it never repairs data.
type LedgerIntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedgerIntegrityJob constructs the job.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{pool: pool, logger: logger}
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	rows, err := j.pool.Query(ctx,
		`SELECT kind, biz_unit, counterparty, tx_date, tx_number, amount, balance
		 FROM ledger_entries
		 ORDER BY kind, biz_unit, counterparty, tx_date, tx_number, tx_time`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type scopeKey struct{ kind, bizUnit, counterparty string }
	running := make(map[scopeKey]int64)
	var drift int

	for rows.Next() {
		var key scopeKey
		var txDate time.Time
		var txNumber, amount, balance int64
		if err := rows.Scan(&key.kind, &key.bizUnit, &key.counterparty,
			&txDate, &txNumber, &amount, &balance); err != nil {
			return err
		}
		running[key] += amount
		if running[key] != balance {
			drift++
			j.logger.Error("ledger balance drift",
				slog.String("counterparty", key.counterparty),
				slog.String("kind", key.kind),
				slog.String("tx_date", txDate.Format("2006-01-02")),
				slog.Int64("tx_number", txNumber),
				slog.Int64("stored", balance),
				slog.Int64("recomputed", running[key]))
			// Resync so one drifted entry is reported once, not cascaded.
			running[key] = balance
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if drift > 0 {
		return fmt.Errorf("jobs: ledger integrity check found %d drifted entries", drift)
	}
	j.logger.Info("ledger integrity check passed")
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/jangbu-erp/jangbu-erp/internal/closing"
	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPeriodClose freezes one counterparty ledger at a period boundary.
	TaskPeriodClose = "closing:period"
	// TaskLedgerIntegrity verifies running-balance chains across all scopes.
	TaskLedgerIntegrity = "ledger:integrity"
)

// PeriodClosePayload describes one closing run.
type PeriodClosePayload struct {
	Period       string `json:"period"`
	Kind         string `json:"kind"`
	BizUnit      string `json:"biz_unit"`
	Counterparty string `json:"counterparty"`
	ActorID      int64  `json:"actor_id"`
}

// NewPeriodCloseTask constructs an Asynq task.
func NewPeriodCloseTask(payload PeriodClosePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPeriodClose, data), nil
}

// PeriodCloseJob runs closing snapshots from the queue.
type PeriodCloseJob struct {
	service *closing.Service
	logger  *slog.Logger
}

// NewPeriodCloseJob constructs the job.
func NewPeriodCloseJob(service *closing.Service, logger *slog.Logger) *PeriodCloseJob {
	return &PeriodCloseJob{service: service, logger: logger}
}

// Handle processes TaskPeriodClose tasks. A period that is already closed is
// treated as success so redeliveries stay idempotent.
func (j *PeriodCloseJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PeriodClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	kind := ledger.KindReceivable
	if payload.Kind == "payable" {
		kind = ledger.KindPayable
	}
	snap, err := j.service.Close(ctx, closing.CloseInput{
		Period:       payload.Period,
		Kind:         kind,
		BizUnit:      payload.BizUnit,
		Counterparty: payload.Counterparty,
		ActorID:      payload.ActorID,
	})
	if errors.Is(err, closing.ErrAlreadyClosed) {
		j.logger.Info("period already closed",
			slog.String("counterparty", payload.Counterparty),
			slog.String("period", payload.Period))
		return nil
	}
	if err != nil {
		return err
	}
	j.logger.Info("period closed",
		slog.String("counterparty", payload.Counterparty),
		slog.String("period", payload.Period),
		slog.Int64("balance", snap.Balance))
	return nil
}

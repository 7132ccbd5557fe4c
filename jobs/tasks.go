package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/openbooks/openbooks/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerRecalculate rebuilds running balances for one account.
	TaskLedgerRecalculate = "ledger:recalculate"
	// TaskReportsWarmup pre-generates the all-time trial balance.
	TaskReportsWarmup = "reports:warmup"
)

const dateLayout = "2006-01-02"

// RecalculatePayload identifies the account and the date the forward walk
// starts from. An empty From recomputes the whole history.
type RecalculatePayload struct {
	AccountID int64  `json:"account_id"`
	From      string `json:"from,omitempty"`
}

// NewRecalculateTask constructs an Asynq task for a balance recalculation.
func NewRecalculateTask(payload RecalculatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerRecalculate, data), nil
}

// NewReportsWarmupTask constructs the report warmup task, typically cron-fed.
func NewReportsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportsWarmup, nil)
}

// LedgerRecalculator is the slice of the ledger service the job needs.
type LedgerRecalculator interface {
	Recalculate(ctx context.Context, accountID int64, from time.Time) (int, error)
}

// RecalculateJob processes TaskLedgerRecalculate tasks.
type RecalculateJob struct {
	ledger  LedgerRecalculator
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRecalculateJob constructs the recalculation job handler.
func NewRecalculateJob(ledger LedgerRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecalculateJob {
	return &RecalculateJob{ledger: ledger, logger: logger, metrics: metrics}
}

// Handle runs one recalculation. Malformed payloads are dropped rather than
// retried; infrastructure failures surface to Asynq's retry policy.
func (j *RecalculateJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RecalculatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.AccountID <= 0 {
		return asynq.SkipRetry
	}
	var from time.Time
	if payload.From != "" {
		parsed, err := time.Parse(dateLayout, payload.From)
		if err != nil {
			return asynq.SkipRetry
		}
		from = parsed
	}
	tracker := j.metrics.Track("ledger_recalculate")
	lines, err := j.ledger.Recalculate(ctx, payload.AccountID, from)
	if err != nil {
		j.logger.Error("recalculate job failed",
			slog.Int64("account_id", payload.AccountID),
			slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("recalculated account",
		slog.Int64("account_id", payload.AccountID),
		slog.Int("lines", lines))
	return tracker.End(nil)
}

// ReportWarmer is the slice of the report service the warmup job needs.
type ReportWarmer interface {
	Warmup(ctx context.Context) error
}

// WarmupJob processes TaskReportsWarmup tasks.
type WarmupJob struct {
	reports ReportWarmer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewWarmupJob constructs the warmup job handler.
func NewWarmupJob(reports ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmupJob {
	return &WarmupJob{reports: reports, logger: logger, metrics: metrics}
}

// Handle regenerates the cached all-time trial balance.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("reports_warmup")
	if err := j.reports.Warmup(ctx); err != nil {
		j.logger.Error("report warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}

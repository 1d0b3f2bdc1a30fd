package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/palisade-io/palisade/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurgeIdempotency removes idempotency keys past their retention.
	TaskPurgeIdempotency = "maintenance:purge_idempotency"
	// TaskPurgeAudit removes audit records past their retention.
	TaskPurgeAudit = "maintenance:purge_audit"
)

// PurgePayload carries the retention window for a purge task.
type PurgePayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewPurgeIdempotencyTask constructs an Asynq task.
func NewPurgeIdempotencyTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PurgePayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeIdempotency, data), nil
}

// NewPurgeAuditTask constructs an Asynq task.
func NewPurgeAuditTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(PurgePayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeAudit, data), nil
}

// NewPurgeIdempotencyHandler processes TaskPurgeIdempotency tasks.
func NewPurgeIdempotencyHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := store.Cleanup(ctx, payload.OlderThan)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("idempotency keys purged", slog.Int64("removed", removed))
		}
		return nil
	}
}

// NewPurgeAuditHandler processes TaskPurgeAudit tasks.
func NewPurgeAuditHandler(audit *shared.AuditLogger, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := audit.Purge(ctx, payload.OlderThan)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("audit records purged", slog.Int64("removed", removed))
		}
		return nil
	}
}

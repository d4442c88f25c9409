package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/model"
)

// SubmitProcessor runs one queued submission.
type SubmitProcessor interface {
	Process(ctx context.Context, task *model.SubmitTaskPayload) error
}

// SubmitWorker processes submission tasks
type SubmitWorker struct {
	processor SubmitProcessor
	logger    zerolog.Logger
}

// NewSubmitWorker creates a new submit worker
func NewSubmitWorker(processor SubmitProcessor) *SubmitWorker {
	return &SubmitWorker{
		processor: processor,
		logger:    log.WithComponent("submit_worker"),
	}
}

// ProcessTask handles submission task processing. Failures are archived,
// never retried by the queue.
func (w *SubmitWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.SubmitTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	w.logger.Info().Str("job_id", payload.JobID).Str("session_id", payload.SessionID).Msg("starting submission")

	if err := w.processor.Process(ctx, &payload); err != nil {
		return fmt.Errorf("submission %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}
	return nil
}

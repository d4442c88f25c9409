package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/tuneedit/api/internal/bridge"
	"github.com/tuneedit/api/internal/client"
	"github.com/tuneedit/api/internal/editor"
	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/metrics"
	"github.com/tuneedit/api/internal/model"
)

// Task types
const (
	TaskTypeSubmit = "submit:process"
	QueueSubmit    = "submit"
)

// TaskEnqueuer is the part of *asynq.Client the service needs.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobNotifier pushes job events to the pages of a session.
type JobNotifier interface {
	BroadcastProgress(sessionID, jobID string, status model.JobStatus)
	BroadcastComplete(sessionID, jobID string)
	BroadcastError(sessionID, jobID, code, message string)
}

// SubmitService runs the submission pipeline. At most one submission per
// session is in flight; the flag is released whatever the outcome.
type SubmitService struct {
	store     *RedisSessionStore
	enqueuer  TaskEnqueuer
	submitter client.EditSubmitter
	bridge    bridge.HostBridge
	notifier  JobNotifier
	hold      time.Duration
	logger    zerolog.Logger
}

// NewSubmitService wires the pipeline. hold bounds how long the submitting
// flag survives a crashed worker and must exceed the worst-case submission
// time.
func NewSubmitService(store *RedisSessionStore, enqueuer TaskEnqueuer, submitter client.EditSubmitter, hostBridge bridge.HostBridge, notifier JobNotifier, hold time.Duration) *SubmitService {
	if hostBridge == nil {
		hostBridge = bridge.Noop{}
	}
	return &SubmitService{
		store:     store,
		enqueuer:  enqueuer,
		submitter: submitter,
		bridge:    hostBridge,
		notifier:  notifier,
		hold:      hold,
		logger:    log.WithComponent("submit_service"),
	}
}

// Start takes the submitting flag, snapshots the form into a payload and
// queues the send. Edits made after Start do not affect this submission.
func (s *SubmitService) Start(ctx context.Context, sessionID string) (*model.Job, error) {
	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	acquired, err := s.store.AcquireSubmitting(ctx, sessionID, s.hold)
	if err != nil {
		return nil, fmt.Errorf("failed to set submitting flag: %w", err)
	}
	if !acquired {
		return nil, ErrSubmitInFlight
	}

	job, err := s.enqueue(ctx, sess)
	if err != nil {
		s.release(ctx, sessionID)
		return nil, err
	}
	return job, nil
}

func (s *SubmitService) enqueue(ctx context.Context, sess *model.Session) (*model.Job, error) {
	if !sess.Form.IsChanged() {
		return nil, ErrNothingToSubmit
	}

	payload, err := editor.BuildPayload(&sess.Form, sess.Launch)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      model.JobTypeSubmit,
		SessionID: sess.ID,
		Status:    model.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	data, err := json.Marshal(model.SubmitTaskPayload{
		JobID:     job.ID,
		SessionID: sess.ID,
		Payload:   *payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Retries happen at the transport, on 511 only.
	_, err = s.enqueuer.Enqueue(asynq.NewTask(TaskTypeSubmit, data),
		asynq.Queue(QueueSubmit),
		asynq.MaxRetry(0),
		asynq.Timeout(s.hold),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info().Str("session_id", sess.ID).Str("job_id", job.ID).Msg("submission queued")
	return job, nil
}

// Process sends a queued payload. On success the host is asked to close the
// view; on failure the form stays as it is so the user can try again.
func (s *SubmitService) Process(ctx context.Context, task *model.SubmitTaskPayload) error {
	defer s.release(context.WithoutCancel(ctx), task.SessionID)

	started := time.Now()
	s.updateJob(ctx, task.JobID, model.JobStatusRunning, "")
	s.notify(func(n JobNotifier) { n.BroadcastProgress(task.SessionID, task.JobID, model.JobStatusRunning) })

	if err := s.submitter.SubmitEdit(ctx, &task.Payload); err != nil {
		s.logger.Error().Err(err).
			Str("session_id", task.SessionID).
			Str("job_id", task.JobID).
			Msg("submission failed")

		metrics.RecordSubmission(string(model.JobStatusFailed), time.Since(started))
		s.updateJob(context.WithoutCancel(ctx), task.JobID, model.JobStatusFailed, err.Error())
		s.notify(func(n JobNotifier) { n.BroadcastError(task.SessionID, task.JobID, "SUBMIT_FAILED", err.Error()) })
		return err
	}

	metrics.RecordSubmission(string(model.JobStatusSucceeded), time.Since(started))
	s.updateJob(ctx, task.JobID, model.JobStatusSucceeded, "")
	s.notify(func(n JobNotifier) { n.BroadcastComplete(task.SessionID, task.JobID) })

	if err := s.bridge.Close(ctx, task.SessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", task.SessionID).Msg("failed to close host view")
	}

	s.logger.Info().
		Str("session_id", task.SessionID).
		Str("job_id", task.JobID).
		Dur("elapsed", time.Since(started)).
		Msg("submission succeeded")
	return nil
}

// Status returns a job of the session.
func (s *SubmitService) Status(ctx context.Context, sessionID, jobID string) (*model.Job, error) {
	job, err := s.store.LoadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.SessionID != sessionID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (s *SubmitService) updateJob(ctx context.Context, jobID string, status model.JobStatus, errMsg string) {
	job, err := s.store.LoadJob(ctx, jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to load job")
		return
	}

	now := time.Now().UTC()
	job.Status = status
	switch status {
	case model.JobStatusRunning:
		job.StartedAt = &now
	case model.JobStatusSucceeded, model.JobStatusFailed:
		job.CompletedAt = &now
	}
	if errMsg != "" {
		job.Error = &errMsg
	}

	if err := s.store.SaveJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to save job")
	}
}

func (s *SubmitService) notify(fn func(JobNotifier)) {
	if s.notifier != nil {
		fn(s.notifier)
	}
}

func (s *SubmitService) release(ctx context.Context, sessionID string) {
	if err := s.store.ReleaseSubmitting(ctx, sessionID); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to clear submitting flag")
	}
}

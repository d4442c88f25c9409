package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneedit/api/internal/model"
	"github.com/tuneedit/api/internal/thumbnail"
)

func taskPayload(t *testing.T, f *fixture, i int) *model.SubmitTaskPayload {
	t.Helper()
	require.Greater(t, len(f.enqueuer.tasks), i)
	task := f.enqueuer.tasks[i]
	assert.Equal(t, TaskTypeSubmit, task.Type())
	var p model.SubmitTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	return &p
}

func TestStartRequiresChange(t *testing.T) {
	f := newFixture(t, false)
	sess := f.launch(t, launchQuery)
	ctx := context.Background()

	_, err := f.submits.Start(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNothingToSubmit)

	submitting, err := f.store.IsSubmitting(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, submitting, "flag must be released")
	assert.Empty(t, f.enqueuer.tasks)
}

func TestStartUnknownSession(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.submits.Start(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStartQueuesSnapshot(t *testing.T) {
	f := newFixture(t, false)
	sess := f.launch(t, launchQuery)
	ctx := context.Background()

	_, err := f.sessions.SetTitle(ctx, sess.ID, "New")
	require.NoError(t, err)

	job, err := f.submits.Start(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)

	p := taskPayload(t, f, 0)
	assert.Equal(t, job.ID, p.JobID)
	assert.Equal(t, "42", p.Payload.ChatID)
	assert.Equal(t, "F9", p.Payload.FileID)
	assert.Equal(t, "New", p.Payload.Title)
	assert.Equal(t, "Band", p.Payload.Artist)
	assert.Equal(t, "", p.Payload.Thumbnail)
	assert.Equal(t, "TF1", p.Payload.ThumbnailFileID)
	assert.Equal(t, 125, p.Payload.Duration)

	// edits after Start do not leak into the queued payload
	_, err = f.sessions.SetTitle(ctx, sess.ID, "Later")
	require.NoError(t, err)
	assert.Equal(t, "New", taskPayload(t, f, 0).Payload.Title)
}

func TestStartIsNotReentrant(t *testing.T) {
	f := newFixture(t, false)
	sess := f.launch(t, launchQuery)
	ctx := context.Background()
	_, err := f.sessions.SetArtist(ctx, sess.ID, "Someone")
	require.NoError(t, err)

	_, err = f.submits.Start(ctx, sess.ID)
	require.NoError(t, err)

	_, err = f.submits.Start(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.Len(t, f.enqueuer.tasks, 1)
}

func TestStartReleasesFlagWhenEnqueueFails(t *testing.T) {
	f := newFixture(t, false)
	sess := f.launch(t, launchQuery)
	ctx := context.Background()
	_, err := f.sessions.SetTitle(ctx, sess.ID, "x")
	require.NoError(t, err)

	f.enqueuer.err = errors.New("queue down")
	_, err = f.submits.Start(ctx, sess.ID)
	assert.Error(t, err)

	submitting, err := f.store.IsSubmitting(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, submitting)
}

func TestProcessSuccessClosesView(t *testing.T) {
	f := newFixture(t, false)
	sess := f.launch(t, launchQuery)
	ctx := context.Background()

	_, err := f.sessions.StageThumbnail(ctx, sess.ID, []thumbnail.Candidate{jpegCandidate(100, 100)})
	require.NoError(t, err)
	job, err := f.submits.Start(ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, f.submits.Process(ctx, taskPayload(t, f, 0)))

	require.Len(t, f.submitter.payloads, 1)
	sent := f.submitter.payloads[0]
	assert.NotEmpty(t, sent.Thumbnail)
	assert.Equal(t, "", sent.ThumbnailFileID)
	assert.Zero(t, len(sent.Thumbnail)%4)

	assert.Equal(t, []string{sess.ID}, f.bridge.closed)
	assert.Equal(t, []string{"progress:running", "complete"}, f.notifier.events)

	stored, err := f.submits.Status(ctx, sess.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusSucceeded, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)

	submitting, err := f.store.IsSubmitting(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, submitting)
}

func TestProcessFailureKeepsForm(t *testing.T) {
	f := newFixture(t, false)
	sess := f.launch(t, launchQuery)
	ctx := context.Background()

	_, err := f.sessions.ClearThumbnail(ctx, sess.ID)
	require.NoError(t, err)
	job, err := f.submits.Start(ctx, sess.ID)
	require.NoError(t, err)

	p := taskPayload(t, f, 0)
	assert.Equal(t, "", p.Payload.Thumbnail)
	assert.Equal(t, "", p.Payload.ThumbnailFileID)

	f.submitter.err = errBackend
	err = f.submits.Process(ctx, p)
	assert.ErrorIs(t, err, errBackend)

	assert.Empty(t, f.bridge.closed)
	assert.Equal(t, []string{"progress:running", "error:SUBMIT_FAILED"}, f.notifier.events)

	stored, err := f.submits.Status(ctx, sess.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "backend exploded")

	sessAfter, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, sessAfter.Form.Override.ThumbnailCleared)
	assert.True(t, sessAfter.Form.IsChanged())

	// the user may retry
	_, err = f.submits.Start(ctx, sess.ID)
	assert.NoError(t, err)
}

func TestStatusOfOtherSession(t *testing.T) {
	f := newFixture(t, false)
	a := f.launch(t, launchQuery)
	b := f.launch(t, launchQuery)
	ctx := context.Background()
	_, err := f.sessions.SetTitle(ctx, a.ID, "x")
	require.NoError(t, err)

	job, err := f.submits.Start(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.submits.Status(ctx, b.ID, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = f.submits.Status(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

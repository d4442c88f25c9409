package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tuneedit/api/internal/auth"
	"github.com/tuneedit/api/internal/editor"
	"github.com/tuneedit/api/internal/model"
)

type fixture struct {
	mr        *miniredis.Miniredis
	store     *RedisSessionStore
	issuer    *auth.Issuer
	bridge    *fakeBridge
	storage   *fakeStorage
	enqueuer  *fakeEnqueuer
	submitter *fakeSubmitter
	notifier  *fakeNotifier
	sessions  *SessionService
	submits   *SubmitService
}

func newFixture(t *testing.T, withStorage bool) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		mr:        mr,
		store:     NewRedisSessionStore(rdb, time.Hour),
		issuer:    auth.NewIssuer("test-secret", time.Hour),
		bridge:    &fakeBridge{},
		enqueuer:  &fakeEnqueuer{},
		submitter: &fakeSubmitter{},
		notifier:  &fakeNotifier{},
	}
	var storage *fakeStorage
	if withStorage {
		storage = newFakeStorage()
		f.storage = storage
		f.sessions = NewSessionService(f.store, f.issuer, storage, f.bridge)
	} else {
		f.sessions = NewSessionService(f.store, f.issuer, nil, f.bridge)
	}
	f.submits = NewSubmitService(f.store, f.enqueuer, f.submitter, f.bridge, f.notifier, 20*time.Minute)
	return f
}

func (f *fixture) launch(t *testing.T, query string) *model.Session {
	t.Helper()
	q, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("bad query: %v", err)
	}
	res, err := f.sessions.Launch(context.Background(), q, model.Theme{})
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	return res.Session
}

type fakeBridge struct {
	mu       sync.Mutex
	expanded []string
	closed   []string
}

func (b *fakeBridge) Expand(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expanded = append(b.expanded, sessionID)
	return nil
}

func (b *fakeBridge) Close(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, sessionID)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) GetSignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://previews.test/%s?ttl=%d", key, int(expiry.Seconds())), nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(e.tasks)), Type: task.Type()}, nil
}

type fakeSubmitter struct {
	mu       sync.Mutex
	err      error
	payloads []editor.SubmissionPayload
}

func (s *fakeSubmitter) SubmitEdit(_ context.Context, p *editor.SubmissionPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, *p)
	return s.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) record(e string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *fakeNotifier) BroadcastProgress(_, _ string, status model.JobStatus) {
	n.record("progress:" + string(status))
}

func (n *fakeNotifier) BroadcastComplete(_, _ string) { n.record("complete") }

func (n *fakeNotifier) BroadcastError(_, _, code, _ string) { n.record("error:" + code) }

var errBackend = errors.New("backend exploded")

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/tuneedit/api/internal/auth"
	"github.com/tuneedit/api/internal/bridge"
	"github.com/tuneedit/api/internal/client"
	"github.com/tuneedit/api/internal/config"
	"github.com/tuneedit/api/internal/server"
	"github.com/tuneedit/api/internal/service"
	ws "github.com/tuneedit/api/internal/websocket"
	"github.com/tuneedit/api/internal/worker"
)

const testSessionSecret = "test-secret-for-e2e"

// launchQuery is what the bot puts into the Mini App URL.
const launchQuery = "duration=125&title=Song&artist=Band&thumbnail=https%3A%2F%2Fcdn.test%2Ft.jpg&thumbnailFileId=TF1&chatId=42&fileId=F9"

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	hub      *ws.Hub
	queue    *recordingQueue
	mux      *asynq.ServeMux
	backend  *fakeBackend
	issuer   *auth.Issuer
	redis    *miniredis.Miniredis
	sessions *service.SessionService
}

// setupApp builds the same app as main.go on top of miniredis, a recording
// queue and a fake bot backend.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	backend := newFakeBackend(t)

	cfg := &config.Config{
		Server:  config.ServerConfig{Port: "0", Env: "test", LogLevel: "error", WebAppOrigin: "*"},
		Session: config.SessionConfig{Secret: testSessionSecret, TTLHours: 1},
		// Use very high rate limits so tests don't get blocked
		RateLimit: config.RateLimitConfig{LaunchPerMin: 10000, ThumbnailPerMin: 10000, SubmitPerHour: 10000},
		Backend:   config.BackendConfig{URL: backend.server.URL, Timeout: 5, MaxRetries: 3, RetryDelayMs: 1},
	}

	hub := ws.NewHub()
	go hub.Run()
	hostBridge := bridge.NewHubBridge(hub)

	issuer := auth.NewIssuer(cfg.Session.Secret, time.Hour)
	store := service.NewRedisSessionStore(redisClient, time.Hour)
	backendClient := client.NewBackendClient(&cfg.Backend)
	queue := &recordingQueue{}

	// r2 = nil → inline previews
	sessions := service.NewSessionService(store, issuer, nil, hostBridge)
	submits := service.NewSubmitService(store, queue, backendClient, hostBridge, hub, time.Minute)

	app := server.New(server.Deps{
		Config:            cfg,
		Redis:             redisClient,
		Hub:               hub,
		Issuer:            issuer,
		Sessions:          sessions,
		Submits:           submits,
		BackendConfigured: backendClient.IsConfigured(),
	})

	return &testApp{
		app:      app,
		hub:      hub,
		queue:    queue,
		mux:      worker.NewServeMux(service.TaskTypeSubmit, worker.NewSubmitWorker(submits)),
		backend:  backend,
		issuer:   issuer,
		redis:    mr,
		sessions: sessions,
	}
}

// recordingQueue stands in for the asynq client.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (q *recordingQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(q.tasks)), Type: task.Type()}, nil
}

// drain runs every queued task through the worker mux, like the asynq server.
func (ta *testApp) drain(t *testing.T) []error {
	t.Helper()
	ta.queue.mu.Lock()
	tasks := ta.queue.tasks
	ta.queue.tasks = nil
	ta.queue.mu.Unlock()

	var errs []error
	for _, task := range tasks {
		errs = append(errs, ta.mux.ProcessTask(context.Background(), task))
	}
	return errs
}

// fakeBackend answers with a scripted status sequence, then 200.
type fakeBackend struct {
	server   *httptest.Server
	mu       sync.Mutex
	statuses []int
	requests []backendRequest
}

type backendRequest struct {
	Header http.Header
	Body   map[string]interface{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.requests = append(b.requests, backendRequest{Header: r.Header.Clone(), Body: body})
		status := http.StatusOK
		if len(b.statuses) > 0 {
			status = b.statuses[0]
			b.statuses = b.statuses[1:]
		}
		b.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) respond(statuses ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = statuses
}

func (b *fakeBackend) calls() []backendRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendRequest(nil), b.requests...)
}

// launch starts a session and returns its ID and token.
func (ta *testApp) launch(t *testing.T, query string) (string, string) {
	t.Helper()
	resp, err := doRequest(ta.app, http.MethodPost, "/api/sessions?"+query, "", nil)
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	body := parseJSON(t, resp)
	return body["sessionId"].(string), body["token"].(string)
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request with the session token.
func doAuthRequest(app *fiber.App, token, method, path, body string) (*http.Response, error) {
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

type uploadFile struct {
	name        string
	contentType string
	data        []byte
}

// doUpload posts files as the multipart "file" field.
func doUpload(app *fiber.App, token, path string, files ...uploadFile) (*http.Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// field walks nested JSON objects.
func field(m map[string]interface{}, path ...string) interface{} {
	var cur interface{} = m
	for _, p := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

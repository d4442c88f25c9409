package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/tuneedit/api/internal/config"
	"github.com/tuneedit/api/internal/editor"
	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/metrics"
)

// StatusRetry is what the bot backend answers while it cannot take the
// edit yet. Only this status is retried.
const StatusRetry = http.StatusNetworkAuthenticationRequired

const (
	defaultBackendTimeout = 15 * time.Minute
	defaultMaxRetries     = 3
	defaultRetryDelay     = 500 * time.Millisecond
)

// EditSubmitter sends edited metadata to the bot backend.
type EditSubmitter interface {
	SubmitEdit(ctx context.Context, payload *editor.SubmissionPayload) error
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// BackendClient implements EditSubmitter over HTTP.
type BackendClient struct {
	httpClient *http.Client
	url        string
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewBackendClient creates a client for the configured backend URL. The
// timeout applies to each attempt.
func NewBackendClient(cfg *config.BackendConfig) *BackendClient {
	timeout := defaultBackendTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	maxRetries := defaultMaxRetries
	if cfg.MaxRetries >= 0 {
		maxRetries = cfg.MaxRetries
	}
	delay := defaultRetryDelay
	if cfg.RetryDelayMs > 0 {
		delay = time.Duration(cfg.RetryDelayMs) * time.Millisecond
	}

	return &BackendClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        strings.TrimSpace(cfg.URL),
		maxRetries: maxRetries,
		retryDelay: delay,
		logger:     log.WithComponent("backend_client"),
	}
}

// Budget is the longest SubmitEdit can run: every attempt timing out plus
// the waits between them.
func (c *BackendClient) Budget() time.Duration {
	attempts := time.Duration(c.maxRetries + 1)
	return attempts*c.httpClient.Timeout + time.Duration(c.maxRetries)*c.retryDelay
}

// SubmitEdit posts the payload. A 511 answer is retried up to maxRetries
// more times; every other failure is returned as is.
func (c *BackendClient) SubmitEdit(ctx context.Context, payload *editor.SubmissionPayload) error {
	if c.url == "" {
		return errors.New("backend URL not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewConstant(c.retryDelay))
	attempt := 0

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.post(ctx, body)
		if err == nil {
			c.logger.Info().Str("chat_id", payload.ChatID).Int("attempt", attempt).Msg("edit accepted")
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == StatusRetry {
			c.logger.Warn().Str("chat_id", payload.ChatID).Int("attempt", attempt).Msg("backend asked to retry")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *BackendClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The backend sits behind a tunnel that otherwise serves a warning page.
	req.Header.Set("Bypass-Tunnel-Reminder", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendAttempt("error")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendAttempt(strconv.Itoa(resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// IsConfigured returns true if the client has a backend URL
func (c *BackendClient) IsConfigured() bool {
	return c.url != ""
}

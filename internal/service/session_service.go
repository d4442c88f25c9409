package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuneedit/api/internal/auth"
	"github.com/tuneedit/api/internal/bridge"
	"github.com/tuneedit/api/internal/client"
	"github.com/tuneedit/api/internal/editor"
	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/internal/metrics"
	"github.com/tuneedit/api/internal/model"
	"github.com/tuneedit/api/internal/thumbnail"
)

// S3 presigned URLs cannot live longer than a week.
const maxPreviewExpiry = 7 * 24 * time.Hour

// LaunchResult is a freshly created session and its access token.
type LaunchResult struct {
	Session   *model.Session
	Token     string
	ExpiresAt time.Time
}

// SessionService owns the form state of each editor launch.
type SessionService struct {
	store   *RedisSessionStore
	issuer  *auth.Issuer
	storage client.PreviewStorage
	bridge  bridge.HostBridge
	logger  zerolog.Logger
}

// NewSessionService wires the service. storage may be nil, in which case
// previews are returned inline as data URLs.
func NewSessionService(store *RedisSessionStore, issuer *auth.Issuer, storage client.PreviewStorage, hostBridge bridge.HostBridge) *SessionService {
	if hostBridge == nil {
		hostBridge = bridge.Noop{}
	}
	return &SessionService{
		store:   store,
		issuer:  issuer,
		storage: storage,
		bridge:  hostBridge,
		logger:  log.WithComponent("session_service"),
	}
}

// Launch resolves the launch query once and stores the new session.
func (s *SessionService) Launch(ctx context.Context, query url.Values, theme model.Theme) (*LaunchResult, error) {
	sess := &model.Session{
		ID:        uuid.New().String(),
		Launch:    editor.ResolveLaunchParams(query),
		Form:      *editor.NewForm(editor.ResolveInitialState(query)),
		Theme:     theme,
		CreatedAt: time.Now().UTC(),
	}

	token, expiresAt, err := s.issuer.Issue(sess.ID, sess.Launch.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.RecordSessionLaunched()
	s.logger.Info().
		Str("session_id", sess.ID).
		Str("chat_id", sess.Launch.ChatID).
		Int("duration", sess.Form.Initial.DurationSeconds).
		Msg("session launched")

	return &LaunchResult{Session: sess, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *SessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.store.Load(ctx, sessionID)
}

// IsSubmitting reports whether a submission is in flight for the session.
func (s *SessionService) IsSubmitting(ctx context.Context, sessionID string) (bool, error) {
	return s.store.IsSubmitting(ctx, sessionID)
}

func (s *SessionService) SetTitle(ctx context.Context, sessionID, title string) (*model.Session, error) {
	return s.store.Update(ctx, sessionID, func(sess *model.Session) error {
		sess.Form.SetTitle(title)
		return nil
	})
}

func (s *SessionService) SetArtist(ctx context.Context, sessionID, artist string) (*model.Session, error) {
	return s.store.Update(ctx, sessionID, func(sess *model.Session) error {
		sess.Form.SetArtist(artist)
		return nil
	})
}

// StageThumbnail runs the picker guard and the validator over the selection
// and stages the file when it passes. A rejection comes back as a
// *thumbnail.Rejection and leaves the form as it was. When another pick
// started while this one was validating, ErrStaleValidation is returned and
// nothing is staged. An empty selection is a no-op.
func (s *SessionService) StageThumbnail(ctx context.Context, sessionID string, files []thumbnail.Candidate) (*model.Session, error) {
	if rej := thumbnail.CheckSelection(files); rej != nil {
		metrics.RecordThumbnailOutcome(string(rej.Reason))
		return nil, rej
	}
	if len(files) == 0 {
		return s.store.Load(ctx, sessionID)
	}

	if _, err := s.store.Load(ctx, sessionID); err != nil {
		return nil, err
	}

	pick, err := s.store.NextPick(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to start pick: %w", err)
	}

	file := files[0]
	outcome, err := thumbnail.Validate(ctx, file.Data)
	if err != nil {
		return nil, err
	}
	if !outcome.IsAccepted() {
		metrics.RecordThumbnailOutcome(string(outcome.Reason))
		s.logger.Info().
			Str("session_id", sessionID).
			Str("reason", string(outcome.Reason)).
			Int64("size", file.Size()).
			Msg("thumbnail rejected")
		return nil, outcome.Err()
	}
	metrics.RecordThumbnailOutcome("accepted")

	staged := editor.ThumbnailFile{
		Name:        file.Name,
		ContentType: "image/jpeg",
		Size:        file.Size(),
		Width:       outcome.Width,
		Data:        file.Data,
	}
	if err := s.preparePreview(ctx, sessionID, &staged); err != nil {
		return nil, err
	}

	var replaced *editor.ThumbnailFile
	sess, err := s.store.UpdateForPick(ctx, sessionID, pick, func(sess *model.Session) error {
		replaced = sess.Form.StageThumbnail(staged)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleValidation) {
			metrics.RecordStaleValidation()
			s.releasePreview(ctx, staged.StorageKey)
		}
		return nil, err
	}

	if replaced != nil {
		s.releasePreview(ctx, replaced.StorageKey)
	}
	return sess, nil
}

// ClearThumbnail discards any staged file and hides the original. It also
// supersedes any pick still being validated.
func (s *SessionService) ClearThumbnail(ctx context.Context, sessionID string) (*model.Session, error) {
	if _, err := s.store.Load(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := s.store.NextPick(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to start pick: %w", err)
	}

	var discarded *editor.ThumbnailFile
	sess, err := s.store.Update(ctx, sessionID, func(sess *model.Session) error {
		discarded = sess.Form.ClearThumbnail()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if discarded != nil {
		s.releasePreview(ctx, discarded.StorageKey)
	}
	return sess, nil
}

// Attach is called when a page opens the session websocket. The first
// attach of a session asks the host to expand the view.
func (s *SessionService) Attach(ctx context.Context, sessionID string) error {
	first, err := s.store.MarkExpanded(ctx, sessionID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	return s.bridge.Expand(ctx, sessionID)
}

func (s *SessionService) preparePreview(ctx context.Context, sessionID string, file *editor.ThumbnailFile) error {
	if s.storage == nil {
		file.PreviewURL = thumbnail.DataURL(file.Data)
		return nil
	}

	key := fmt.Sprintf("previews/%s/%s.jpg", sessionID, uuid.New().String())
	if err := s.storage.Upload(ctx, key, bytes.NewReader(file.Data), file.ContentType); err != nil {
		return fmt.Errorf("failed to store preview: %w", err)
	}

	expiry := s.store.TTL()
	if expiry <= 0 || expiry > maxPreviewExpiry {
		expiry = maxPreviewExpiry
	}
	previewURL, err := s.storage.GetSignedURL(ctx, key, expiry)
	if err != nil {
		s.releasePreview(ctx, key)
		return fmt.Errorf("failed to sign preview URL: %w", err)
	}

	file.PreviewURL = previewURL
	file.StorageKey = key
	return nil
}

func (s *SessionService) releasePreview(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete preview")
	}
}

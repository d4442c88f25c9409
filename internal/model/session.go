package model

import (
	"time"

	"github.com/tuneedit/api/internal/editor"
)

// Theme carries the host's colors. The service only stores and echoes it.
type Theme struct {
	BgColor         string `json:"bg_color,omitempty" validate:"omitempty,max=32"`
	TextColor       string `json:"text_color,omitempty" validate:"omitempty,max=32"`
	ButtonColor     string `json:"button_color,omitempty" validate:"omitempty,max=32"`
	ButtonTextColor string `json:"button_text_color,omitempty" validate:"omitempty,max=32"`
}

// LaunchRequest is the optional JSON body of POST /api/sessions. The launch
// parameters themselves travel in the query string.
type LaunchRequest struct {
	Theme Theme `json:"theme"`
}

// LaunchResponse represents the response for session launch
type LaunchResponse struct {
	SessionID string               `json:"sessionId"`
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	State     SessionStateResponse `json:"state"`
}

// SessionStateResponse is what the page renders.
type SessionStateResponse struct {
	SessionID  string                `json:"sessionId"`
	Initial    editor.InitialState   `json:"initial"`
	Effective  editor.EffectiveState `json:"effective"`
	IsChanged  bool                  `json:"isChanged"`
	Submitting bool                  `json:"submitting"`
	Theme      Theme                 `json:"theme"`
}

// UpdateTextRequest sets the title or the artist.
type UpdateTextRequest struct {
	Value *string `json:"value" validate:"required"`
}

// ThumbnailRejection details a refused upload.
type ThumbnailRejection struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// SubmitStartResponse represents the response for submit
type SubmitStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SubmissionStatusResponse represents a submission job's status
type SubmissionStatusResponse struct {
	JobID       string     `json:"jobId"`
	SessionID   string     `json:"sessionId"`
	Status      JobStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Session is the stored state of one editor launch.
type Session struct {
	ID        string              `json:"id"`
	Launch    editor.LaunchParams `json:"launch"`
	Form      editor.Form         `json:"form"`
	Theme     Theme               `json:"theme"`
	CreatedAt time.Time           `json:"createdAt"`
}

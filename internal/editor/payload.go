package editor

import (
	"bytes"
	"fmt"

	"github.com/tuneedit/api/internal/thumbnail"
)

// SubmissionPayload is the body sent to the bot backend.
type SubmissionPayload struct {
	ChatID          string `json:"chatId"`
	FileID          string `json:"fileId"`
	Title           string `json:"titleValue"`
	Artist          string `json:"artistValue"`
	Thumbnail       string `json:"thumbnail"`
	ThumbnailFileID string `json:"thumbnailFileId"`
	Duration        int    `json:"duration"`
}

// BuildPayload serializes the effective state. With a staged file the image
// travels inline and the old reference is dropped; otherwise the initial
// reference is kept. A cleared thumbnail without replacement leaves both
// fields empty, which the backend reads as "remove".
func BuildPayload(f *Form, launch LaunchParams) (*SubmissionPayload, error) {
	eff := f.Effective()
	p := &SubmissionPayload{
		ChatID:   launch.ChatID,
		FileID:   launch.FileID,
		Title:    eff.Title,
		Artist:   eff.Artist,
		Duration: f.Initial.DurationSeconds,
	}

	if staged := f.Override.Thumbnail; staged != nil {
		encoded, err := thumbnail.Encode(bytes.NewReader(staged.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		p.Thumbnail = encoded
		return p, nil
	}

	if !f.Override.ThumbnailCleared {
		p.ThumbnailFileID = f.Initial.ThumbnailFileReference
	}
	return p, nil
}

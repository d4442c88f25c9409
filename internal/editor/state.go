// Package editor holds the form logic of the metadata editor: the launch-time
// initial state, the user's overrides layered on top of it, and the payload
// built from both on submit. Nothing here touches HTTP, redis or the host.
package editor

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Launch parameter names, as the bot puts them into the Mini App URL.
const (
	ParamDuration        = "duration"
	ParamTitle           = "title"
	ParamArtist          = "artist"
	ParamThumbnail       = "thumbnail"
	ParamThumbnailFileID = "thumbnailFileId"
	ParamChatID          = "chatId"
	ParamFileID          = "fileId"
)

// InitialState is the snapshot of the audio file's metadata taken once at
// launch. It is never mutated afterwards.
type InitialState struct {
	DurationSeconds        int    `json:"durationSeconds"`
	Title                  string `json:"title"`
	Artist                 string `json:"artist"`
	ThumbnailURL           string `json:"thumbnailUrl"`
	ThumbnailFileReference string `json:"thumbnailFileId"`
}

// LaunchParams identifies the message the edit applies to.
type LaunchParams struct {
	ChatID string `json:"chatId"`
	FileID string `json:"fileId"`
}

// ResolveInitialState reads the launch parameters. Malformed or missing
// values degrade to zero values; it never fails.
func ResolveInitialState(params url.Values) InitialState {
	return InitialState{
		DurationSeconds:        parseDuration(params.Get(ParamDuration)),
		Title:                  params.Get(ParamTitle),
		Artist:                 params.Get(ParamArtist),
		ThumbnailURL:           params.Get(ParamThumbnail),
		ThumbnailFileReference: params.Get(ParamThumbnailFileID),
	}
}

// ResolveLaunchParams reads the chat and file identifiers.
func ResolveLaunchParams(params url.Values) LaunchParams {
	return LaunchParams{
		ChatID: params.Get(ParamChatID),
		FileID: params.Get(ParamFileID),
	}
}

func parseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds / 60) % 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

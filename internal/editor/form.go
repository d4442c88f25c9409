package editor

// ThumbnailFile is a staged replacement thumbnail. Data holds the raw JPEG
// bytes; PreviewURL is what the page shows in place of the original.
type ThumbnailFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Width       int    `json:"width"`
	Data        []byte `json:"data"`
	PreviewURL  string `json:"previewUrl"`
	// StorageKey is set when the preview lives in object storage.
	StorageKey string `json:"storageKey,omitempty"`
}

// FormOverride holds the user's edits. A nil field means "untouched, use
// the initial value".
type FormOverride struct {
	Title            *string        `json:"title,omitempty"`
	Artist           *string        `json:"artist,omitempty"`
	Thumbnail        *ThumbnailFile `json:"thumbnail,omitempty"`
	ThumbnailCleared bool           `json:"thumbnailCleared"`
}

// EffectiveState is what the page displays and what gets submitted.
type EffectiveState struct {
	Title              string `json:"title"`
	Artist             string `json:"artist"`
	ThumbnailPreview   string `json:"thumbnailPreview"`
	HasStagedThumbnail bool   `json:"hasStagedThumbnail"`
	DurationSeconds    int    `json:"durationSeconds"`
	DurationText       string `json:"durationText"`
}

// Form is the initial state plus the overrides on top of it.
type Form struct {
	Initial  InitialState `json:"initial"`
	Override FormOverride `json:"override"`
}

// NewForm starts a form with no edits.
func NewForm(initial InitialState) *Form {
	return &Form{Initial: initial}
}

func (f *Form) SetTitle(v string) {
	f.Override.Title = &v
}

func (f *Form) SetArtist(v string) {
	f.Override.Artist = &v
}

// StageThumbnail replaces whatever thumbnail is shown with file. It returns
// the previously staged file, if any, so the caller can release its storage.
func (f *Form) StageThumbnail(file ThumbnailFile) *ThumbnailFile {
	prev := f.Override.Thumbnail
	f.Override.Thumbnail = &file
	return prev
}

// ClearThumbnail drops the staged file and hides the original thumbnail.
// Like StageThumbnail it hands back the discarded file.
func (f *Form) ClearThumbnail() *ThumbnailFile {
	prev := f.Override.Thumbnail
	f.Override.Thumbnail = nil
	f.Override.ThumbnailCleared = true
	return prev
}

// Effective computes the displayed values. It reads only Initial and
// Override.
func (f *Form) Effective() EffectiveState {
	st := EffectiveState{
		Title:           f.Initial.Title,
		Artist:          f.Initial.Artist,
		DurationSeconds: f.Initial.DurationSeconds,
		DurationText:    FormatDuration(f.Initial.DurationSeconds),
	}
	if f.Override.Title != nil {
		st.Title = *f.Override.Title
	}
	if f.Override.Artist != nil {
		st.Artist = *f.Override.Artist
	}
	switch {
	case f.Override.Thumbnail != nil:
		st.ThumbnailPreview = f.Override.Thumbnail.PreviewURL
		st.HasStagedThumbnail = true
	case f.Override.ThumbnailCleared:
		st.ThumbnailPreview = ""
	default:
		st.ThumbnailPreview = f.Initial.ThumbnailURL
	}
	return st
}

// IsChanged reports whether submitting would change anything.
func (f *Form) IsChanged() bool {
	return IsChanged(f.Effective(), f.Initial)
}

// IsChanged compares an effective state against the initial one. A staged
// file always counts as a change; a cleared thumbnail counts only when there
// was one to clear.
func IsChanged(effective EffectiveState, initial InitialState) bool {
	if effective.Title != initial.Title || effective.Artist != initial.Artist {
		return true
	}
	if effective.HasStagedThumbnail {
		return true
	}
	return effective.ThumbnailPreview != initial.ThumbnailURL
}

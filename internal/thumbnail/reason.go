// Package thumbnail decides whether an uploaded image may become the audio
// file's thumbnail and turns accepted images into the inline text form the
// bot backend expects.
package thumbnail

import "fmt"

// Reason is the single rejection reason reported for a file.
type Reason string

const (
	ReasonWrongMediaType  Reason = "wrong-media-type"
	ReasonFileTooLarge    Reason = "file-too-large"
	ReasonTooManyFiles    Reason = "too-many-files"
	ReasonCorruptImage    Reason = "corrupt-image"
	ReasonNotSquare       Reason = "not-square"
	ReasonWidthOutOfRange Reason = "width-out-of-range"
)

// Thumbnail limits of the chat platform.
const (
	MinWidth = 64
	MaxWidth = 320
	MaxBytes = 200 * 1024
)

// Messages shown to the user, one per reason.
var messages = map[Reason]string{
	ReasonWrongMediaType:  "Файл должен быть изображением формата JPEG",
	ReasonFileTooLarge:    "Изображение больше чем 200КБ, пожалуйста попробуй компрессировать его",
	ReasonTooManyFiles:    "Можно загрузить только 1 файл",
	ReasonCorruptImage:    "Поврежденное JPEG изображение",
	ReasonNotSquare:       "Изображение должно быть квадратного размера (ширина равна высоте)",
	ReasonWidthOutOfRange: "Ширина изображение должна быть от 64 до 320 пикселей",
}

// Message returns the user-facing text for r.
func (r Reason) Message() string {
	if m, ok := messages[r]; ok {
		return m
	}
	return string(r)
}

// Outcome is the result of validating one file. A zero Reason means the
// file was accepted.
type Outcome struct {
	Reason Reason `json:"reason,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func Accepted(width, height int) Outcome {
	return Outcome{Width: width, Height: height}
}

func Rejected(r Reason) Outcome {
	return Outcome{Reason: r}
}

func (o Outcome) IsAccepted() bool {
	return o.Reason == ""
}

// Err returns the outcome as a *Rejection, or nil when accepted.
func (o Outcome) Err() error {
	if o.IsAccepted() {
		return nil
	}
	return &Rejection{Reason: o.Reason}
}

// Rejection is returned by callers that surface outcomes as errors.
type Rejection struct {
	Reason Reason
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("thumbnail rejected: %s", e.Reason)
}

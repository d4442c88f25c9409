package thumbnail

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
)

// Validate decodes data and checks it against the thumbnail limits. The
// first failing check wins: decode, square, width range, byte size. So an
// image with good geometry but too many bytes is only ever reported as
// file-too-large.
//
// The returned error is non-nil only when ctx is done before decoding.
func Validate(ctx context.Context, data []byte) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Rejected(ReasonCorruptImage), nil
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	if width != height {
		return Rejected(ReasonNotSquare), nil
	}
	if width < MinWidth || width > MaxWidth {
		return Rejected(ReasonWidthOutOfRange), nil
	}
	if len(data) > MaxBytes {
		return Rejected(ReasonFileTooLarge), nil
	}
	return Accepted(width, height), nil
}

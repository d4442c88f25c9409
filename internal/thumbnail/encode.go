package thumbnail

import (
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var dataURLPrefix = regexp.MustCompile(`^data:(.*,)?`)

// Encode reads r to the end and returns its contents as padded base64,
// without any data-URL prefix. Empty input yields "" and no error so an odd
// file never blocks a submission; read errors are returned.
func Encode(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read thumbnail: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	return PadBase64(StripDataURL(DataURL(data))), nil
}

// DataURL renders data as a data: URL with its sniffed media type.
func DataURL(data []byte) string {
	mediaType := mimetype.Detect(data).String()
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// StripDataURL removes a leading "data:...," prefix.
func StripDataURL(s string) string {
	return dataURLPrefix.ReplaceAllString(s, "")
}

// PadBase64 appends '=' until len(s) is a multiple of 4.
func PadBase64(s string) string {
	if rem := len(s) % 4; rem > 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}

package thumbnail

import (
	"testing"

	"github.com/tuneedit/api/internal/thumbnail/thumbtest"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	return thumbtest.JPEG(w, h)
}

func inflateJPEG(t *testing.T, data []byte, size int) []byte {
	t.Helper()
	return thumbtest.Inflate(data, size)
}

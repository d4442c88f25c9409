// Package thumbtest builds JPEG fixtures for tests.
package thumbtest

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

// JPEG encodes a w×h gradient.
func JPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Inflate inserts COM segments after SOI until the file holds at least size
// bytes. Decoders skip comments, so geometry is unchanged.
func Inflate(data []byte, size int) []byte {
	out := append([]byte{}, data[:2]...)
	for len(out)+len(data)-2 < size {
		n := 60000
		out = append(out, 0xFF, 0xFE, byte((n+2)>>8), byte((n+2)&0xFF))
		out = append(out, bytes.Repeat([]byte{'x'}, n)...)
	}
	return append(out, data[2:]...)
}

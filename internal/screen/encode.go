// Package screen grabs the desktop and encodes it for upload and live view.
package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Encoder turns a grabbed image into the full-size upload JPEG and the
// reduced live-view preview.
type Encoder struct {
	FullQuality    int
	PreviewQuality int
	PreviewWidth   int
	PreviewHeight  int
}

// DefaultEncoder matches the backend's expectations: quality 70 uploads and
// 960x540 previews at quality 60.
func DefaultEncoder() Encoder {
	return Encoder{FullQuality: 70, PreviewQuality: 60, PreviewWidth: 960, PreviewHeight: 540}
}

// Encode returns both renditions of img.
func (e Encoder) Encode(img image.Image) (full, preview []byte, err error) {
	full, err = encodeJPEG(img, e.FullQuality)
	if err != nil {
		return nil, nil, fmt.Errorf("encode full: %w", err)
	}
	preview, err = e.EncodePreview(img)
	if err != nil {
		return nil, nil, err
	}
	return full, preview, nil
}

// EncodePreview returns only the reduced rendition.
func (e Encoder) EncodePreview(img image.Image) ([]byte, error) {
	thumb := Thumbnail(img, e.PreviewWidth, e.PreviewHeight)
	out, err := encodeJPEG(thumb, e.PreviewQuality)
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return out, nil
}

// Thumbnail scales img down to fit within maxW x maxH, keeping its aspect
// ratio. Images that already fit are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return img
	}

	// Scale by the tighter of the two ratios.
	nw, nh := maxW, h*maxW/w
	if nh > maxH {
		nw, nh = w*maxH/h, maxH
	}
	nw, nh = max(nw, 1), max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

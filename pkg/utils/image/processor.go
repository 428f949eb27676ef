package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/chai2010/webp"
)

const (
	Quality = 85
	// MaxDimension bounds the longest side of a stored image.
	MaxDimension = 1600
)

// ToWebP decodes a JPEG, PNG or WebP image and re-encodes it as lossy WebP.
func ToWebP(r io.Reader) (io.Reader, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("could not decode image: %w", err)
	}
	switch format {
	case "jpeg", "png", "webp":
	default:
		return nil, "", fmt.Errorf("unsupported image format: %s", format)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, shrink(img), &webp.Options{Lossless: false, Quality: Quality}); err != nil {
		return nil, "", fmt.Errorf("could not encode image: %w", err)
	}
	return buf, "image/webp", nil
}

// shrink scales img down by an integer factor until it fits MaxDimension.
func shrink(img image.Image) image.Image {
	b := img.Bounds()
	factor := 1
	for b.Dx()/factor > MaxDimension || b.Dy()/factor > MaxDimension {
		factor++
	}
	if factor == 1 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()/factor, b.Dy()/factor))
	for y := 0; y < dst.Bounds().Dy(); y++ {
		for x := 0; x < dst.Bounds().Dx(); x++ {
			dst.Set(x, y, img.At(b.Min.X+x*factor, b.Min.Y+y*factor))
		}
	}
	return dst
}

// Package image prepares uploaded site photos for the vision model: EXIF
// orientation is baked into the pixels and oversized photos are downscaled,
// since model accuracy does not improve past ~1 megapixel but cost does.
package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

const (
	maxImageDimension = 1024 // Maximum width or height in pixels for model input
	jpegQuality       = 80
)

// Orientation extracts the EXIF orientation from JPEG data. Returns 1
// (upright) when the tag is absent or unreadable.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	val, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return val
}

// CaptureTime extracts the EXIF capture timestamp from JPEG data. Used for
// logging only; photo ordering always follows submission order.
func CaptureTime(data []byte) (time.Time, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return time.Time{}, false
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// swapped reports whether the orientation exchanges width and height.
func swapped(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

// sourcePoint maps a destination pixel back to its source coordinate for the
// given EXIF orientation. w and h are the source dimensions.
func sourcePoint(orientation, dx, dy, w, h int) (int, int) {
	switch orientation {
	case 2: // flip horizontal
		return w - 1 - dx, dy
	case 3: // rotate 180
		return w - 1 - dx, h - 1 - dy
	case 4: // flip vertical
		return dx, h - 1 - dy
	case 5: // transpose
		return dy, dx
	case 6: // rotate 90 clockwise
		return dy, h - 1 - dx
	case 7: // transverse
		return w - 1 - dy, h - 1 - dx
	case 8: // rotate 90 counter-clockwise
		return w - 1 - dy, dx
	default:
		return dx, dy
	}
}

// ApplyOrientation rewrites the image so its pixels are upright regardless of
// how the camera was held.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	dw, dh := w, h
	if swapped(orientation) {
		dw, dh = h, w
	}

	out := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for dy := 0; dy < dh; dy++ {
		for dx := 0; dx < dw; dx++ {
			sx, sy := sourcePoint(orientation, dx, dy, w, h)
			out.Set(dx, dy, img.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}
	return out
}

// Compress orients and downscales a photo to fit within maxImageDimension,
// preserving aspect ratio, and re-encodes as JPEG.
func Compress(imageData []byte) ([]byte, error) {
	orientation := Orientation(imageData)

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if orientation != 1 {
		img = ApplyOrientation(img, orientation)
		log.Infof("Applied orientation correction: %d", orientation)
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	if orientation == 1 && originalWidth <= maxImageDimension && originalHeight <= maxImageDimension {
		// Already upright and within limits, return as-is
		return imageData, nil
	}

	scale := 1.0
	if originalWidth > maxImageDimension || originalHeight > maxImageDimension {
		scaleX := float64(maxImageDimension) / float64(originalWidth)
		scaleY := float64(maxImageDimension) / float64(originalHeight)
		scale = scaleX
		if scaleY < scaleX {
			scale = scaleY
		}
	}

	newWidth := int(float64(originalWidth) * scale)
	newHeight := int(float64(originalHeight) * scale)
	if newWidth > maxImageDimension {
		newWidth = maxImageDimension
	}
	if newHeight > maxImageDimension {
		newHeight = maxImageDimension
	}

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode compressed image: %w", err)
	}

	compressed := buf.Bytes()
	log.Infof("Photo normalized: %d bytes -> %d bytes (scale: %.2f, original: %dx%d, new: %dx%d, orientation: %d)",
		len(imageData), len(compressed), scale, originalWidth, originalHeight, newWidth, newHeight, orientation)

	return compressed, nil
}

// Normalize is the error-tolerant entry point used by the pipeline: if the
// photo cannot be decoded or re-encoded it returns the original bytes, leaving
// the model to cope.
func Normalize(imageData []byte) []byte {
	out, err := Compress(imageData)
	if err != nil {
		log.WithError(err).Warn("photo normalization failed, passing original bytes through")
		return imageData
	}
	return out
}

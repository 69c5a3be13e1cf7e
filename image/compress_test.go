package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// createTestImage creates a test JPEG image with specified dimensions
func createTestImage(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a simple pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x + y) % 256),
				G: uint8((x * 2) % 256),
				B: uint8((y * 2) % 256),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95})
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func TestCompressLargeImage(t *testing.T) {
	originalData, err := createTestImage(2048, 1536)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}

	compressedData, err := Compress(originalData)
	if err != nil {
		t.Fatalf("Failed to compress image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(compressedData))
	if err != nil {
		t.Fatalf("Failed to decode compressed image: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageDimension || bounds.Dy() > maxImageDimension {
		t.Errorf("Compressed dimensions %dx%d exceed max %d", bounds.Dx(), bounds.Dy(), maxImageDimension)
	}

	// 2048x1536 scaled to fit 1024 -> 1024x768 (4:3 preserved)
	if bounds.Dx() != 1024 || bounds.Dy() != 768 {
		t.Errorf("Compressed dimensions = %dx%d, want 1024x768", bounds.Dx(), bounds.Dy())
	}
}

func TestCompressSmallImagePassthrough(t *testing.T) {
	originalData, err := createTestImage(640, 480)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}

	compressedData, err := Compress(originalData)
	if err != nil {
		t.Fatalf("Failed to compress image: %v", err)
	}

	if !bytes.Equal(compressedData, originalData) {
		t.Error("Small upright image should pass through unchanged")
	}
}

func TestNormalizeBadDataReturnsOriginal(t *testing.T) {
	garbage := []byte("definitely not a jpeg")
	out := Normalize(garbage)
	if !bytes.Equal(out, garbage) {
		t.Error("Normalize must return original bytes when decoding fails")
	}
}

func TestOrientationNoExif(t *testing.T) {
	data, err := createTestImage(100, 100)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	if got := Orientation(data); got != 1 {
		t.Errorf("Orientation = %d, want 1 for image without EXIF", got)
	}
}

func TestApplyOrientationSwapsDimensions(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))

	for _, orientation := range []int{5, 6, 7, 8} {
		out := ApplyOrientation(img, orientation)
		bounds := out.Bounds()
		if bounds.Dx() != 2 || bounds.Dy() != 4 {
			t.Errorf("orientation %d: dimensions = %dx%d, want 2x4", orientation, bounds.Dx(), bounds.Dy())
		}
	}

	for _, orientation := range []int{1, 2, 3, 4} {
		out := ApplyOrientation(img, orientation)
		bounds := out.Bounds()
		if bounds.Dx() != 4 || bounds.Dy() != 2 {
			t.Errorf("orientation %d: dimensions = %dx%d, want 4x2", orientation, bounds.Dx(), bounds.Dy())
		}
	}
}

func TestApplyOrientationRotate180(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})

	out := ApplyOrientation(img, 3)

	r, _, _, _ := out.At(1, 1).RGBA()
	if r == 0 {
		t.Error("rotate 180 should move top-left pixel to bottom-right")
	}
	_, _, b, _ := out.At(0, 0).RGBA()
	if b == 0 {
		t.Error("rotate 180 should move bottom-right pixel to top-left")
	}
}

func TestCaptureTimeNoExif(t *testing.T) {
	data, err := createTestImage(50, 50)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	if _, ok := CaptureTime(data); ok {
		t.Error("CaptureTime should report absent for image without EXIF")
	}
}

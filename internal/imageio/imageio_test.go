package imageio

import (
	"image"
	"math"
	"testing"

	"stable-render/internal/tensor"
)

func TestFrameImageRoundTrip(t *testing.T) {
	f := tensor.NewFrame(1, 3, 4, 4)
	for c := 0; c < 3; c++ {
		plane := f.Plane(0, c)
		for i := range plane {
			plane[i] = float32(i%16) / 15
		}
	}

	img, err := FrameImage(f, 0, 0, 1)
	if err != nil {
		t.Fatalf("FrameImage returned error: %v", err)
	}
	back := ImageFrame(img, 0, 1)

	// 8-bit quantization bounds the round-trip error.
	const tolerance = 1.0 / 255
	for c := 0; c < 3; c++ {
		src := f.Plane(0, c)
		dst := back.Plane(0, c)
		for i := range src {
			if math.Abs(float64(src[i]-dst[i])) > tolerance {
				t.Errorf("channel %d sample %d drifted: %v vs %v", c, i, src[i], dst[i])
			}
		}
	}
}

func TestFrameImageClampsRange(t *testing.T) {
	f := tensor.NewFrame(1, 1, 1, 2)
	f.Set(0, 0, 0, 0, -5)
	f.Set(0, 0, 0, 1, 5)

	img, err := FrameImage(f, 0, 0, 1)
	if err != nil {
		t.Fatalf("FrameImage returned error: %v", err)
	}
	if img.Pix[0] != 0 {
		t.Errorf("below-range sample rendered as %d, want 0", img.Pix[0])
	}
	if img.Pix[4] != 255 {
		t.Errorf("above-range sample rendered as %d, want 255", img.Pix[4])
	}
}

func TestFrameImageValidation(t *testing.T) {
	f := tensor.NewFrame(1, 3, 2, 2)
	if _, err := FrameImage(f, 2, 0, 1); err == nil {
		t.Errorf("FrameImage accepted an out-of-range batch")
	}
	if _, err := FrameImage(f, 0, 1, 0); err == nil {
		t.Errorf("FrameImage accepted an inverted sample range")
	}
}

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	thumb := Thumbnail(img, 50)
	bounds := thumb.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 25 {
		t.Errorf("thumbnail is %dx%d, want 50x25", bounds.Dx(), bounds.Dy())
	}

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if Thumbnail(small, 50) != small {
		t.Errorf("small image should be returned unchanged")
	}
}

package tensor

import (
	"math"
	"testing"
)

func rampFrame(h, w int) *Frame {
	f := NewFrame(1, 1, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(0, 0, y, x, float32(y*w+x))
		}
	}
	return f
}

func TestResizeSameSizeIsCopy(t *testing.T) {
	f := rampFrame(4, 4)
	out, err := ResizeFrame(f, 4, 4, ModeBilinear)
	if err != nil {
		t.Fatalf("ResizeFrame returned error: %v", err)
	}
	for i := range f.Data {
		if out.Data[i] != f.Data[i] {
			t.Fatalf("sample %d changed on identity resize", i)
		}
	}
	out.Set(0, 0, 0, 0, 99)
	if f.At(0, 0, 0, 0) == 99 {
		t.Errorf("identity resize shares storage with the input")
	}
}

func TestResizeNearestUpscale(t *testing.T) {
	f := NewFrame(1, 1, 2, 2)
	f.Data = []float32{1, 2, 3, 4}

	out, err := ResizeFrame(f, 4, 4, ModeNearest)
	if err != nil {
		t.Fatalf("ResizeFrame returned error: %v", err)
	}
	// Each source pixel expands to a 2x2 block.
	want := []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("sample %d = %v, want %v", i, out.Data[i], w)
		}
	}
}

func TestResizeBilinearAlignCornersEndpoints(t *testing.T) {
	// With corner alignment, the output corners equal the input corners
	// exactly and interior samples interpolate linearly.
	f := NewFrame(1, 1, 1, 3)
	f.Data = []float32{0, 5, 10}

	out, err := ResizeFrame(f, 5, 1, ModeBilinear)
	if err != nil {
		t.Fatalf("ResizeFrame returned error: %v", err)
	}
	want := []float32{0, 2.5, 5, 7.5, 10}
	for i, w := range want {
		if math.Abs(float64(out.Data[i]-w)) > 1e-5 {
			t.Errorf("sample %d = %v, want %v", i, out.Data[i], w)
		}
	}
}

func TestResizeBicubicPreservesConstant(t *testing.T) {
	f := NewFrame(1, 2, 3, 3)
	for i := range f.Data {
		f.Data[i] = 4
	}
	out, err := ResizeFrame(f, 7, 5, ModeBicubic)
	if err != nil {
		t.Fatalf("ResizeFrame returned error: %v", err)
	}
	for i, v := range out.Data {
		if math.Abs(float64(v-4)) > 1e-5 {
			t.Errorf("sample %d = %v, want 4", i, v)
		}
	}
}

func TestResizeRoundTripNearest(t *testing.T) {
	// Nearest up then down by the same integer factor restores the input.
	f := rampFrame(3, 3)
	up, err := ResizeFrame(f, 9, 9, ModeNearest)
	if err != nil {
		t.Fatalf("upscale returned error: %v", err)
	}
	down, err := ResizeFrame(up, 3, 3, ModeNearest)
	if err != nil {
		t.Fatalf("downscale returned error: %v", err)
	}
	for i := range f.Data {
		if down.Data[i] != f.Data[i] {
			t.Errorf("sample %d = %v, want %v", i, down.Data[i], f.Data[i])
		}
	}
}

func TestParseInterpMode(t *testing.T) {
	for _, s := range []string{"nearest", "linear", "bilinear", "bicubic", "trilinear"} {
		if _, err := ParseInterpMode(s); err != nil {
			t.Errorf("ParseInterpMode(%q) returned error: %v", s, err)
		}
	}
	if _, err := ParseInterpMode("lanczos"); err == nil {
		t.Errorf("ParseInterpMode accepted unknown mode")
	}

	if ModeNearest.AlignCorners() {
		t.Errorf("nearest mode should not align corners")
	}
	if !ModeBilinear.AlignCorners() {
		t.Errorf("bilinear mode should align corners")
	}
}

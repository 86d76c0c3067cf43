package tensor

import (
	"testing"
)

func TestFrameIndexing(t *testing.T) {
	f := NewFrame(2, 3, 4, 5)
	f.Set(1, 2, 3, 4, 7.5)
	if got := f.At(1, 2, 3, 4); got != 7.5 {
		t.Errorf("At(1,2,3,4) = %v, want 7.5", got)
	}
	if got := f.At(0, 0, 0, 0); got != 0 {
		t.Errorf("unwritten sample = %v, want 0", got)
	}

	plane := f.Plane(1, 2)
	if len(plane) != 20 {
		t.Fatalf("plane length = %d, want 20", len(plane))
	}
	if plane[3*5+4] != 7.5 {
		t.Errorf("plane alias did not observe Set")
	}
}

func TestStackShapeInvariant(t *testing.T) {
	a := NewFrame(1, 4, 8, 8)
	b := NewFrame(1, 4, 8, 8)
	if _, err := NewStack(a, b); err != nil {
		t.Fatalf("NewStack rejected equal shapes: %v", err)
	}

	c := NewFrame(1, 4, 8, 9)
	if _, err := NewStack(a, c); err == nil {
		t.Errorf("NewStack accepted mismatched shapes")
	}
	if _, err := NewStack(); err == nil {
		t.Errorf("NewStack accepted empty sequence")
	}
}

func TestStackCloneIsDeep(t *testing.T) {
	a := NewFrame(1, 1, 2, 2)
	a.Set(0, 0, 0, 0, 1)
	s, _ := NewStack(a)

	clone := s.Clone()
	clone.Frames[0].Set(0, 0, 0, 0, 99)

	if s.Frames[0].At(0, 0, 0, 0) != 1 {
		t.Errorf("Clone shares storage with the original")
	}
}

func TestMergeMasked(t *testing.T) {
	orig := NewFrame(1, 1, 2, 2)
	blend := NewFrame(1, 1, 2, 2)
	for i := range orig.Data {
		orig.Data[i] = 1
		blend.Data[i] = 5
	}
	os, _ := NewStack(orig)
	bs, _ := NewStack(blend)

	mask := NewMask(1, 2, 2)
	mask.Set(0, 0, 1)

	merged := MergeMasked(bs, os, mask)
	if got := merged.Frames[0].At(0, 0, 0, 1); got != 5 {
		t.Errorf("masked position = %v, want blended 5", got)
	}
	if got := merged.Frames[0].At(0, 0, 1, 0); got != 1 {
		t.Errorf("unmasked position = %v, want original 1", got)
	}
}

func TestMergeNonzero(t *testing.T) {
	orig := NewFrame(1, 1, 1, 3)
	orig.Data = []float32{1, 2, 3}
	blend := NewFrame(1, 1, 1, 3)
	blend.Data = []float32{0, 9, 0}

	os, _ := NewStack(orig)
	bs, _ := NewStack(blend)

	merged := MergeNonzero(bs, os)
	want := []float32{1, 9, 3}
	for i, w := range want {
		if merged.Frames[0].Data[i] != w {
			t.Errorf("sample %d = %v, want %v", i, merged.Frames[0].Data[i], w)
		}
	}
}

func TestMaskResizeStaysBinaryAndCovers(t *testing.T) {
	m := NewMask(1, 2, 2)
	m.Set(0, 0, 0)

	up := ResizeMask(m, 4, 4)
	// The top-left quadrant maps back to the written source pixel.
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if !up.At(0, y, x) {
				t.Errorf("upscaled mask missing (%d,%d)", y, x)
			}
		}
	}
	if up.At(0, 3, 3) {
		t.Errorf("upscaled mask wrote an unrelated quadrant")
	}
	if up.Count() != 4 {
		t.Errorf("upscaled mask count = %d, want 4", up.Count())
	}
}

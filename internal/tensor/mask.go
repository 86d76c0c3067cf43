package tensor

// Mask records which (frame, row, col) positions the orchestrator
// rewrote, so adapters can merge blended output against the original
// without inferring it from value equality.
type Mask struct {
	T      int
	Height int
	Width  int
	Bits   []bool
}

// NewMask allocates an all-false mask for T frames of height x width.
func NewMask(t, height, width int) *Mask {
	return &Mask{T: t, Height: height, Width: width, Bits: make([]bool, t*height*width)}
}

// Set marks one position as written.
func (m *Mask) Set(t, y, x int) {
	m.Bits[(t*m.Height+y)*m.Width+x] = true
}

// At reports whether a position was written.
func (m *Mask) At(t, y, x int) bool {
	return m.Bits[(t*m.Height+y)*m.Width+x]
}

// Count returns the number of written positions.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// ResizeMask scales the mask to a new spatial resolution using
// nearest-neighbor sampling so it stays binary.
func ResizeMask(m *Mask, width, height int) *Mask {
	out := NewMask(m.T, height, width)
	for t := 0; t < m.T; t++ {
		for y := 0; y < height; y++ {
			sy := nearestSource(y, height, m.Height)
			for x := 0; x < width; x++ {
				sx := nearestSource(x, width, m.Width)
				if m.At(t, sy, sx) {
					out.Set(t, y, x)
				}
			}
		}
	}
	return out
}

// MergeMasked returns a stack that takes blended samples wherever the
// mask marks the position as written, and original samples elsewhere.
// Blended and original must share one shape; the mask must match it.
func MergeMasked(blended, original *Stack, mask *Mask) *Stack {
	out := original.Clone()
	for t, f := range out.Frames {
		bf := blended.Frames[t]
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				if !mask.At(t, y, x) {
					continue
				}
				for b := 0; b < f.Batch; b++ {
					for c := 0; c < f.Channels; c++ {
						f.Set(b, c, y, x, bf.At(b, c, y, x))
					}
				}
			}
		}
	}
	return out
}

// MergeNonzero returns a stack that takes blended samples wherever
// they are nonzero and original samples elsewhere. This is the legacy
// sentinel rule; it is only reliable when zero cannot occur as a
// legitimate blended value. Prefer MergeMasked.
func MergeNonzero(blended, original *Stack) *Stack {
	out := original.Clone()
	for t, f := range out.Frames {
		bf := blended.Frames[t]
		for i, v := range bf.Data {
			if v != 0 {
				f.Data[i] = v
			}
		}
	}
	return out
}

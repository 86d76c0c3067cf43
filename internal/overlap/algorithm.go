package overlap

import (
	"fmt"

	"stable-render/internal/consensus"
	"stable-render/internal/tensor"
)

// Algorithm reconciles the gathered neighborhood values of one
// surface-element trace into one consensus value per occurrence. The
// returned block has the same shape as the input. Implementations are
// chosen at configuration time and must be safe for concurrent use.
type Algorithm interface {
	Reconcile(values *tensor.TraceValues, frames, xs, ys []int32) (*tensor.TraceValues, error)
}

// MeanAlgorithm reconciles a trace to the arithmetic mean of its
// occurrences, broadcast back to every occurrence. This is the default.
type MeanAlgorithm struct{}

// Reconcile implements Algorithm.
func (MeanAlgorithm) Reconcile(values *tensor.TraceValues, frames, xs, ys []int32) (*tensor.TraceValues, error) {
	out := tensor.NewTraceValues(values.Len, values.Batch, values.Channels)
	n := values.Batch * values.Channels

	mean := make([]float64, n)
	for i := 0; i < values.Len; i++ {
		row := values.Row(i)
		for k := 0; k < n; k++ {
			mean[k] += row[k]
		}
	}
	for k := 0; k < n; k++ {
		mean[k] /= float64(values.Len)
	}
	for i := 0; i < values.Len; i++ {
		copy(out.Row(i), mean)
	}
	return out, nil
}

// IdentityAlgorithm returns its input unchanged. Useful for pipelines
// that only want the scheduling and gather machinery, and for
// verifying that the blend is a no-op when consensus equals the
// original value.
type IdentityAlgorithm struct{}

// Reconcile implements Algorithm.
func (IdentityAlgorithm) Reconcile(values *tensor.TraceValues, frames, xs, ys []int32) (*tensor.TraceValues, error) {
	return values, nil
}

// SimilarityAlgorithm reconciles a trace through the
// similarity-weighted consensus kernel: every occurrence becomes one
// single-pixel cell whose identity tuple and contribution are sampled
// from the per-frame identity maps at the traced pixel.
//
// Maps holds one identity map per frame (pair index = frame index,
// pixel index = row*width + col); Contributions is the matching
// per-pixel weight block.
type SimilarityAlgorithm struct {
	Maps          *consensus.IdentityMaps
	Contributions []float32
	Width         int
}

// Reconcile implements Algorithm.
func (a *SimilarityAlgorithm) Reconcile(values *tensor.TraceValues, frames, xs, ys []int32) (*tensor.TraceValues, error) {
	if a.Maps == nil {
		return nil, fmt.Errorf("similarity algorithm has no identity maps")
	}
	if a.Width <= 0 {
		return nil, fmt.Errorf("similarity algorithm has invalid width %d", a.Width)
	}
	if want := a.Maps.Pairs * a.Maps.PixelsPerFrame; len(a.Contributions) != want {
		return nil, fmt.Errorf("similarity algorithm has %d contributions, want %d", len(a.Contributions), want)
	}

	channels := values.Batch * values.Channels
	ids := consensus.NewIdentityMaps(values.Len, 1)
	vals := consensus.NewCellValues(values.Len, 1, channels)
	contribs := make([]float32, values.Len)

	for i := 0; i < values.Len; i++ {
		f := int(frames[i])
		if f < 0 || f >= a.Maps.Pairs {
			return nil, fmt.Errorf("trace frame %d outside identity maps (%d frames)", f, a.Maps.Pairs)
		}
		pixel := int(ys[i])*a.Width + int(xs[i])
		if pixel < 0 || pixel >= a.Maps.PixelsPerFrame {
			return nil, fmt.Errorf("trace position (%d,%d) outside identity map pixel space", ys[i], xs[i])
		}

		off := (f*a.Maps.PixelsPerFrame + pixel) * consensus.IdentityComponents
		var tuple [consensus.IdentityComponents]int32
		copy(tuple[:], a.Maps.IDs[off:off+consensus.IdentityComponents])
		ids.SetPixel(i, 0, tuple)
		contribs[i] = a.Contributions[f*a.Maps.PixelsPerFrame+pixel]

		cell := vals.Cell(i, 0)
		for k, v := range values.Row(i) {
			cell[k] = float32(v)
		}
	}

	blended, err := consensus.CellsOverlap(ids, vals, contribs)
	if err != nil {
		return nil, err
	}

	out := tensor.NewTraceValues(values.Len, values.Batch, values.Channels)
	for i := 0; i < values.Len; i++ {
		row := out.Row(i)
		for k, v := range blended.Cell(i, 0) {
			row[k] = float64(v)
		}
	}
	return out, nil
}

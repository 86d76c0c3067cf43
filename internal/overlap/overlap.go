// Package overlap blends a sequence of independently generated frames
// at the screen positions where a correspondence map says they show
// the same surface element, removing per-frame flicker.
//
// The orchestrator walks the correspondence map, gathers each
// element's occurrence neighborhoods from the frame stack, asks a
// pluggable Algorithm for a consensus value, and mixes the consensus
// back into each frame by a scheduled blend strength. Adapters wrap
// the orchestrator to run the blend in a resized or decoded working
// space.
package overlap

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"stable-render/internal/corrmap"
	"stable-render/internal/schedule"
	"stable-render/internal/tensor"
)

// Overlap runs the correspondence-driven blend over a frame stack.
// Alpha schedules the blend strength, Radius the neighborhood radius.
// Log, when non-nil, receives per-pass diagnostics.
type Overlap struct {
	Alpha     *schedule.Scheduler
	Radius    *schedule.Scheduler
	Algorithm Algorithm
	Log       *slog.Logger
}

// Diagnostics reports per-pass counters. They are informational only
// and never gate success.
type Diagnostics struct {
	Alpha       float64
	Radius      int
	Singletons  int
	TraceCount  int
	AvgTraceLen float64
	Elapsed     time.Duration
}

// Result is one completed overlap pass.
type Result struct {
	Stack       *tensor.Stack
	Mask        *tensor.Mask
	Diagnostics Diagnostics
}

// Apply blends the frame stack at every traced position and returns a
// new stack; the input is never mutated. The stack's spatial
// dimensions must equal the correspondence map's declared dimensions.
// On any failure no partial stack is returned.
func (o *Overlap) Apply(stack *tensor.Stack, m *corrmap.Map, step int, timestep float64) (*Result, error) {
	batch, channels, height, width := stack.Shape()
	if height != m.Height || width != m.Width {
		return nil, fmt.Errorf("frame shape %dx%d does not match correspondence map shape %dx%d",
			width, height, m.Width, m.Height)
	}

	alpha, err := o.Alpha.Alpha(step, timestep)
	if err != nil {
		return nil, fmt.Errorf("alpha schedule: %w", err)
	}
	radius, err := o.Radius.Radius(step, timestep)
	if err != nil {
		return nil, fmt.Errorf("radius schedule: %w", err)
	}

	algo := o.Algorithm
	if algo == nil {
		algo = MeanAlgorithm{}
	}

	// Output starts as a full copy so unvisited positions stay
	// untouched and parallel scatters never race on initialization.
	out := stack.Clone()
	mask := tensor.NewMask(stack.Len(), height, width)
	lengths := make([]float64, m.Len())

	tic := time.Now()

	numWorkers := runtime.NumCPU()
	if numWorkers > m.Len() {
		numWorkers = m.Len()
	}
	perWorker := 0
	if numWorkers > 0 {
		perWorker = (m.Len() + numWorkers - 1) / numWorkers
	}
	errs := make([]error, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > m.Len() {
			end = m.Len()
		}
		if start >= m.Len() {
			break
		}

		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			for idx := start; idx < end; idx++ {
				id, tr := m.TraceAt(idx)
				if tr.Len() == 0 {
					errs[worker] = fmt.Errorf("surface element %d has an empty occurrence list", id)
					return
				}
				lengths[idx] = float64(tr.Len())
				if tr.Len() == 1 {
					// Nothing to reconcile for a single occurrence.
					continue
				}
				if err := o.blendTrace(out, stack, mask, tr, algo, alpha, radius, batch, channels); err != nil {
					errs[worker] = fmt.Errorf("surface element %d: %w", id, err)
					return
				}
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	diag := Diagnostics{
		Alpha:      alpha,
		Radius:     radius,
		TraceCount: m.Len(),
		Elapsed:    time.Since(tic),
	}
	for _, l := range lengths {
		if l == 1 {
			diag.Singletons++
		}
	}
	if len(lengths) > 0 {
		diag.AvgTraceLen = stat.Mean(lengths, nil)
	}

	if o.Log != nil {
		o.Log.Info("overlap pass",
			"alpha", alpha,
			"radius", radius,
			"traces", diag.TraceCount,
			"singletons", diag.Singletons,
			"avg_trace_len", diag.AvgTraceLen,
			"elapsed", diag.Elapsed)
	}

	return &Result{Stack: out, Mask: mask, Diagnostics: diag}, nil
}

// blendTrace gathers one trace's exact and windowed values, runs the
// consensus algorithm, and scatters the alpha blend back into out.
func (o *Overlap) blendTrace(out, stack *tensor.Stack, mask *tensor.Mask, tr corrmap.Trace, algo Algorithm, alpha float64, radius, batch, channels int) error {
	l := tr.Len()
	n := batch * channels
	height := stack.Frames[0].Height
	width := stack.Frames[0].Width

	exact := tensor.NewTraceValues(l, batch, channels)
	window := tensor.NewTraceValues(l, batch, channels)

	for i := 0; i < l; i++ {
		f := stack.Frames[tr.Frames[i]]
		y, x := int(tr.Ys[i]), int(tr.Xs[i])

		row := exact.Row(i)
		for b := 0; b < batch; b++ {
			for c := 0; c < channels; c++ {
				row[b*channels+c] = float64(f.At(b, c, y, x))
			}
		}

		// The extended trace offsets row and col by the same delta,
		// a diagonal line of nearby pixels in the same frame.
		wrow := window.Row(i)
		taps := 2*radius + 1
		for d := -radius; d <= radius; d++ {
			yy := clampInt(y+d, 0, height-1)
			xx := clampInt(x+d, 0, width-1)
			for b := 0; b < batch; b++ {
				for c := 0; c < channels; c++ {
					wrow[b*channels+c] += float64(f.At(b, c, yy, xx))
				}
			}
		}
		for k := 0; k < n; k++ {
			wrow[k] /= float64(taps)
		}
	}

	consensus, err := algo.Reconcile(window, tr.Frames, tr.Xs, tr.Ys)
	if err != nil {
		return err
	}
	if consensus.Len != l || consensus.Batch != batch || consensus.Channels != channels {
		return fmt.Errorf("consensus algorithm returned shape (%d,%d,%d), want (%d,%d,%d)",
			consensus.Len, consensus.Batch, consensus.Channels, l, batch, channels)
	}

	for i := 0; i < l; i++ {
		f := out.Frames[tr.Frames[i]]
		y, x := int(tr.Ys[i]), int(tr.Xs[i])
		crow := consensus.Row(i)
		erow := exact.Row(i)
		for b := 0; b < batch; b++ {
			for c := 0; c < channels; c++ {
				v := alpha*crow[b*channels+c] + (1-alpha)*erow[b*channels+c]
				f.Set(b, c, y, x, float32(v))
			}
		}
		mask.Set(int(tr.Frames[i]), y, x)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OverlapRate returns the fraction of samples in a stack that differ
// from the threshold, a debug measure of how much of the frame area a
// pass touched when blending into a zero-initialized buffer.
func OverlapRate(s *tensor.Stack, threshold float32) float64 {
	var nonzero, total int
	for _, f := range s.Frames {
		for _, v := range f.Data {
			if v != threshold {
				nonzero++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(nonzero) / float64(total)
}

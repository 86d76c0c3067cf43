package overlap

import (
	"fmt"

	"stable-render/internal/corrmap"
	"stable-render/internal/tensor"
)

// ResizeOverlap runs the blend in the correspondence map's pixel
// space: frames are resized to the map resolution, blended, resized
// back, and merged against the originals through the written mask.
type ResizeOverlap struct {
	Overlap
	Mode tensor.InterpMode
}

// Apply implements the resize adapter. A scheduled alpha of zero
// short-circuits and returns the input unchanged.
func (r *ResizeOverlap) Apply(stack *tensor.Stack, m *corrmap.Map, step int, timestep float64) (*Result, error) {
	alpha, err := r.Alpha.Alpha(step, timestep)
	if err != nil {
		return nil, fmt.Errorf("alpha schedule: %w", err)
	}

	_, _, nativeH, nativeW := stack.Shape()
	if alpha == 0 {
		return &Result{
			Stack:       stack,
			Mask:        tensor.NewMask(stack.Len(), nativeH, nativeW),
			Diagnostics: Diagnostics{TraceCount: m.Len()},
		}, nil
	}

	mode := r.Mode
	if mode == "" {
		mode = tensor.ModeNearest
	}
	mapW, mapH := m.Size()

	resized, err := tensor.ResizeStack(stack, mapW, mapH, mode)
	if err != nil {
		return nil, fmt.Errorf("resize to map space: %w", err)
	}

	res, err := r.Overlap.Apply(resized, m, step, timestep)
	if err != nil {
		return nil, err
	}

	back, err := tensor.ResizeStack(res.Stack, nativeW, nativeH, mode)
	if err != nil {
		return nil, fmt.Errorf("resize to native space: %w", err)
	}
	nativeMask := tensor.ResizeMask(res.Mask, nativeW, nativeH)

	// Resampling bleeds blended values into untouched neighborhoods;
	// the mask restores originals everywhere the pass never wrote.
	merged := tensor.MergeMasked(back, stack, nativeMask)

	return &Result{Stack: merged, Mask: nativeMask, Diagnostics: res.Diagnostics}, nil
}

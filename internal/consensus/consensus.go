// Package consensus implements the similarity-weighted cell overlap
// kernel: an exact all-pairs weighted average over (pair, cell)
// targets, where pairwise weight comes from equality of per-pixel
// 4-component identity tuples.
//
// The cost is O((pairs*cells)^2 * pixelsPerCell^2) per pass, which is
// inherent to the exact weighted mean; the kernel is data-parallel
// over target cells, so it is striped across all CPUs.
package consensus

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// IdentityComponents is the number of id components per pixel
// (surface-patch id, material id, map/view index, vertex id).
const IdentityComponents = 4

// IdentityMaps holds per-pixel identity tuples for every pair, shape
// (pairs, pixelsPerFrame, 4) flattened.
type IdentityMaps struct {
	Pairs          int
	PixelsPerFrame int
	IDs            []int32
}

// NewIdentityMaps allocates a zero-filled identity map block.
func NewIdentityMaps(pairs, pixelsPerFrame int) *IdentityMaps {
	return &IdentityMaps{
		Pairs:          pairs,
		PixelsPerFrame: pixelsPerFrame,
		IDs:            make([]int32, pairs*pixelsPerFrame*IdentityComponents),
	}
}

// SetPixel stores the identity tuple for one pixel of one pair.
func (m *IdentityMaps) SetPixel(pair, pixel int, tuple [IdentityComponents]int32) {
	off := (pair*m.PixelsPerFrame + pixel) * IdentityComponents
	copy(m.IDs[off:off+IdentityComponents], tuple[:])
}

// pixelEqual reports whether two pixels carry identical identity
// tuples; all components must match exactly.
func (m *IdentityMaps) pixelEqual(pairA, pixA, pairB, pixB int) bool {
	a := (pairA*m.PixelsPerFrame + pixA) * IdentityComponents
	b := (pairB*m.PixelsPerFrame + pixB) * IdentityComponents
	for k := 0; k < IdentityComponents; k++ {
		if m.IDs[a+k] != m.IDs[b+k] {
			return false
		}
	}
	return true
}

// CellValues holds one value vector per (pair, cell), shape
// (pairs, cells, channels) flattened.
type CellValues struct {
	Pairs    int
	Cells    int
	Channels int
	Data     []float32
}

// NewCellValues allocates a zero-filled value block.
func NewCellValues(pairs, cells, channels int) *CellValues {
	return &CellValues{
		Pairs:    pairs,
		Cells:    cells,
		Channels: channels,
		Data:     make([]float32, pairs*cells*channels),
	}
}

// Cell returns the channel vector for one (pair, cell), aliasing the
// block's storage.
func (v *CellValues) Cell(pair, cell int) []float32 {
	off := (pair*v.Cells + cell) * v.Channels
	return v.Data[off : off+v.Channels]
}

// CellsOverlap computes, for every target cell, the
// similarity-weighted average over all cells of all pairs and returns
// a new value block. Similarity between two cells is the sum over
// their pixel cross product of contribution products where the
// identity tuples match exactly; the self term always contributes
// weight 1.0, so the normalizing weight never reaches zero.
//
// contributions has one weight per pixel, shape (pairs, pixelsPerFrame)
// flattened. pixelsPerFrame must divide evenly into cells.
func CellsOverlap(ids *IdentityMaps, values *CellValues, contributions []float32) (*CellValues, error) {
	if ids.Pairs != values.Pairs {
		return nil, fmt.Errorf("identity maps cover %d pairs, values cover %d", ids.Pairs, values.Pairs)
	}
	if len(contributions) != ids.Pairs*ids.PixelsPerFrame {
		return nil, fmt.Errorf("got %d contributions, want %d", len(contributions), ids.Pairs*ids.PixelsPerFrame)
	}
	if values.Cells == 0 || ids.PixelsPerFrame%values.Cells != 0 {
		return nil, fmt.Errorf("%d pixels per frame does not divide into %d cells", ids.PixelsPerFrame, values.Cells)
	}
	cellPixels := ids.PixelsPerFrame / values.Cells

	out := NewCellValues(values.Pairs, values.Cells, values.Channels)
	targets := values.Pairs * values.Cells

	numWorkers := runtime.NumCPU()
	if numWorkers > targets {
		numWorkers = targets
	}
	perWorker := 0
	if numWorkers > 0 {
		perWorker = (targets + numWorkers - 1) / numWorkers
	}

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > targets {
			end = targets
		}
		if start >= targets {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			// Per-worker float64 scratch keeps the accumulation wide
			// enough for large pair*cell counts.
			acc := make([]float64, values.Channels)
			src := make([]float64, values.Channels)

			for t := start; t < end; t++ {
				p, i := t/values.Cells, t%values.Cells

				self := values.Cell(p, i)
				for k, v := range self {
					acc[k] = float64(v)
				}
				weight := 1.0

				for q := 0; q < values.Pairs; q++ {
					for j := 0; j < values.Cells; j++ {
						if q == p && j == i {
							continue
						}
						sim := cellSimilarity(ids, contributions, p, i, q, j, cellPixels)
						if sim == 0 {
							continue
						}
						weight += sim
						other := values.Cell(q, j)
						for k, v := range other {
							src[k] = float64(v)
						}
						floats.AddScaled(acc, sim, src)
					}
				}

				floats.Scale(1/weight, acc)
				dst := out.Cell(p, i)
				for k, v := range acc {
					dst[k] = float32(v)
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out, nil
}

// cellSimilarity sums contribution products over all pixel pairs of
// two cells whose identity tuples match exactly.
func cellSimilarity(ids *IdentityMaps, contributions []float32, p, i, q, j, cellPixels int) float64 {
	pStart := i * cellPixels
	qStart := j * cellPixels
	pBase := p * ids.PixelsPerFrame
	qBase := q * ids.PixelsPerFrame

	sim := 0.0
	for x := pStart; x < pStart+cellPixels; x++ {
		cx := float64(contributions[pBase+x])
		if cx == 0 {
			continue
		}
		for y := qStart; y < qStart+cellPixels; y++ {
			if ids.pixelEqual(p, x, q, y) {
				sim += cx * float64(contributions[qBase+y])
			}
		}
	}
	return sim
}

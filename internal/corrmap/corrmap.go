// Package corrmap holds the correspondence map: for each
// surface-element id, the ordered list of (frame, pixel position)
// occurrences across a frame sequence. The map is built once by the
// renderer side and consumed read-only by the overlap pass.
//
// Occurrences are stored in flat arena buffers with a per-id
// (offset, length) index, so traces can be handed out as slices
// without per-id allocations and ids can be dispatched to workers by
// position.
package corrmap

import "fmt"

type span struct {
	off int
	n   int
}

// Map is an immutable correspondence table. Height and Width declare
// the pixel space the map was built for.
type Map struct {
	Height int
	Width  int

	ids    []uint32
	index  map[uint32]span
	frames []int32
	ys     []int32
	xs     []int32
}

// Trace is the unzipped occurrence sequence for one surface-element
// id: parallel slices of equal length, aliasing the map's storage.
type Trace struct {
	Frames []int32
	Ys     []int32
	Xs     []int32
}

// Len returns the occurrence count.
func (t Trace) Len() int { return len(t.Frames) }

// Len returns the number of surface-element ids in the map.
func (m *Map) Len() int { return len(m.ids) }

// Size returns the declared (width, height) of the map's pixel space.
func (m *Map) Size() (width, height int) { return m.Width, m.Height }

// Trace returns the occurrence trace for one id.
func (m *Map) Trace(id uint32) (Trace, bool) {
	s, ok := m.index[id]
	if !ok {
		return Trace{}, false
	}
	return m.trace(s), true
}

// TraceAt returns the id and trace at insertion position i. Positions
// run from 0 to Len()-1 in the order ids were first added, which lets
// callers stripe the map across workers.
func (m *Map) TraceAt(i int) (uint32, Trace) {
	id := m.ids[i]
	return id, m.trace(m.index[id])
}

func (m *Map) trace(s span) Trace {
	return Trace{
		Frames: m.frames[s.off : s.off+s.n],
		Ys:     m.ys[s.off : s.off+s.n],
		Xs:     m.xs[s.off : s.off+s.n],
	}
}

// Builder accumulates occurrences and produces an arena-backed Map.
type Builder struct {
	height int
	width  int

	ids  []uint32
	occs map[uint32][]occ
}

type occ struct {
	frame int32
	y, x  int32
}

// NewBuilder creates a Builder for a map of the given pixel space.
func NewBuilder(height, width int) *Builder {
	return &Builder{height: height, width: width, occs: make(map[uint32][]occ)}
}

// Add records one occurrence of id at (frame, row, col). Occurrences
// for one id keep insertion order. The builder does not dedupe: the
// renderer contract is that two ids never claim the same
// (frame, position).
func (b *Builder) Add(id uint32, frame, y, x int) {
	if _, ok := b.occs[id]; !ok {
		b.ids = append(b.ids, id)
	}
	b.occs[id] = append(b.occs[id], occ{frame: int32(frame), y: int32(y), x: int32(x)})
}

// Build freezes the accumulated occurrences into a Map.
func (b *Builder) Build() *Map {
	total := 0
	for _, list := range b.occs {
		total += len(list)
	}

	m := &Map{
		Height: b.height,
		Width:  b.width,
		ids:    append([]uint32(nil), b.ids...),
		index:  make(map[uint32]span, len(b.ids)),
		frames: make([]int32, 0, total),
		ys:     make([]int32, 0, total),
		xs:     make([]int32, 0, total),
	}
	for _, id := range b.ids {
		list := b.occs[id]
		m.index[id] = span{off: len(m.frames), n: len(list)}
		for _, o := range list {
			m.frames = append(m.frames, o.frame)
			m.ys = append(m.ys, o.y)
			m.xs = append(m.xs, o.x)
		}
	}
	return m
}

// IdentityRaster is a per-frame surface-element id image: one id per
// pixel, negative values meaning no surface at that pixel.
type IdentityRaster struct {
	Height int
	Width  int
	IDs    []int32
}

// FromIdentityMaps builds a correspondence map from per-frame identity
// rasters: every pixel carrying the same non-negative id across frames
// becomes one occurrence list, ordered by frame.
func FromIdentityMaps(rasters []IdentityRaster) (*Map, error) {
	if len(rasters) == 0 {
		return nil, fmt.Errorf("no identity rasters given")
	}
	h, w := rasters[0].Height, rasters[0].Width
	for i, r := range rasters {
		if r.Height != h || r.Width != w {
			return nil, fmt.Errorf("raster %d is %dx%d, want %dx%d", i, r.Width, r.Height, w, h)
		}
		if len(r.IDs) != h*w {
			return nil, fmt.Errorf("raster %d has %d ids, want %d", i, len(r.IDs), h*w)
		}
	}

	b := NewBuilder(h, w)
	for f, r := range rasters {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				id := r.IDs[y*w+x]
				if id < 0 {
					continue
				}
				b.Add(uint32(id), f, y, x)
			}
		}
	}
	return b.Build(), nil
}

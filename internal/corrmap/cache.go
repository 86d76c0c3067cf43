package corrmap

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// cacheRecord is the CBOR form of a Map, keyed by a scene identity so
// a stale artifact is rejected rather than silently reused.
type cacheRecord struct {
	Scene  string   `cbor:"scene"`
	Height int      `cbor:"height"`
	Width  int      `cbor:"width"`
	IDs    []uint32 `cbor:"ids"`
	Counts []int32  `cbor:"counts"`
	Frames []int32  `cbor:"frames"`
	Ys     []int32  `cbor:"ys"`
	Xs     []int32  `cbor:"xs"`
}

// WriteCache persists a map as a CBOR artifact keyed by scene.
func WriteCache(w io.Writer, scene string, m *Map) error {
	rec := cacheRecord{
		Scene:  scene,
		Height: m.Height,
		Width:  m.Width,
		IDs:    m.ids,
		Counts: make([]int32, len(m.ids)),
		Frames: m.frames,
		Ys:     m.ys,
		Xs:     m.xs,
	}
	for i, id := range m.ids {
		rec.Counts[i] = int32(m.index[id].n)
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode correspondence map cache: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write correspondence map cache: %w", err)
	}
	return nil
}

// ReadCache loads a map from a CBOR artifact, verifying the scene key.
func ReadCache(r io.Reader, scene string) (*Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read correspondence map cache: %w", err)
	}
	var rec cacheRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode correspondence map cache: %w", err)
	}
	if rec.Scene != scene {
		return nil, fmt.Errorf("cache is for scene %q, want %q", rec.Scene, scene)
	}
	if len(rec.IDs) != len(rec.Counts) {
		return nil, fmt.Errorf("cache has %d ids but %d counts", len(rec.IDs), len(rec.Counts))
	}

	m := &Map{
		Height: rec.Height,
		Width:  rec.Width,
		ids:    rec.IDs,
		index:  make(map[uint32]span, len(rec.IDs)),
		frames: rec.Frames,
		ys:     rec.Ys,
		xs:     rec.Xs,
	}
	off := 0
	for i, id := range rec.IDs {
		n := int(rec.Counts[i])
		if n <= 0 || off+n > len(rec.Frames) {
			return nil, fmt.Errorf("cache occurrence counts are inconsistent")
		}
		m.index[id] = span{off: off, n: n}
		off += n
	}
	if off != len(rec.Frames) || len(rec.Ys) != len(rec.Frames) || len(rec.Xs) != len(rec.Frames) {
		return nil, fmt.Errorf("cache occurrence buffers are inconsistent")
	}
	return m, nil
}

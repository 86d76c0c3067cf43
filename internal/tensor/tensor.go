// Package tensor provides the multi-channel frame storage shared by
// the overlap pipeline: frames, frame stacks, trace value blocks, and
// the float-plane resize used by the resize adapter.
package tensor

import (
	"fmt"
)

// Frame is one multi-channel 2D array of shape
// (batch, channels, height, width) with flat row-major storage.
type Frame struct {
	Batch    int
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// NewFrame allocates a zero-filled frame.
func NewFrame(batch, channels, height, width int) *Frame {
	return &Frame{
		Batch:    batch,
		Channels: channels,
		Height:   height,
		Width:    width,
		Data:     make([]float32, batch*channels*height*width),
	}
}

// SameShape reports whether two frames have identical dimensions.
func (f *Frame) SameShape(o *Frame) bool {
	return f.Batch == o.Batch && f.Channels == o.Channels &&
		f.Height == o.Height && f.Width == o.Width
}

func (f *Frame) offset(b, c, y, x int) int {
	return ((b*f.Channels+c)*f.Height+y)*f.Width + x
}

// At returns the sample at (batch, channel, row, col).
func (f *Frame) At(b, c, y, x int) float32 {
	return f.Data[f.offset(b, c, y, x)]
}

// Set stores a sample at (batch, channel, row, col).
func (f *Frame) Set(b, c, y, x int, v float32) {
	f.Data[f.offset(b, c, y, x)] = v
}

// Plane returns the (height*width) slice for one batch/channel pair.
// The slice aliases the frame's storage.
func (f *Frame) Plane(b, c int) []float32 {
	start := (b*f.Channels + c) * f.Height * f.Width
	return f.Data[start : start+f.Height*f.Width]
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{Batch: f.Batch, Channels: f.Channels, Height: f.Height, Width: f.Width}
	out.Data = make([]float32, len(f.Data))
	copy(out.Data, f.Data)
	return out
}

// Scale multiplies every sample by s in place and returns the frame.
func (f *Frame) Scale(s float32) *Frame {
	for i := range f.Data {
		f.Data[i] *= s
	}
	return f
}

// Stack is an ordered sequence of equally shaped frames.
type Stack struct {
	Frames []*Frame
}

// NewStack validates that all frames share one shape and wraps them.
func NewStack(frames ...*Frame) (*Stack, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("frame stack is empty")
	}
	first := frames[0]
	for i, f := range frames[1:] {
		if !f.SameShape(first) {
			return nil, fmt.Errorf("frame %d shape (%d,%d,%d,%d) differs from frame 0 (%d,%d,%d,%d)",
				i+1, f.Batch, f.Channels, f.Height, f.Width,
				first.Batch, first.Channels, first.Height, first.Width)
		}
	}
	return &Stack{Frames: frames}, nil
}

// Len returns the number of frames.
func (s *Stack) Len() int { return len(s.Frames) }

// Shape returns the shared (batch, channels, height, width).
func (s *Stack) Shape() (batch, channels, height, width int) {
	f := s.Frames[0]
	return f.Batch, f.Channels, f.Height, f.Width
}

// Clone deep-copies every frame.
func (s *Stack) Clone() *Stack {
	out := &Stack{Frames: make([]*Frame, len(s.Frames))}
	for i, f := range s.Frames {
		out.Frames[i] = f.Clone()
	}
	return out
}

// TraceValues holds one gathered value block of shape
// (trace length, batch, channels) in float64 for stable accumulation.
type TraceValues struct {
	Len      int
	Batch    int
	Channels int
	Data     []float64
}

// NewTraceValues allocates a zero-filled block.
func NewTraceValues(length, batch, channels int) *TraceValues {
	return &TraceValues{
		Len:      length,
		Batch:    batch,
		Channels: channels,
		Data:     make([]float64, length*batch*channels),
	}
}

// Row returns the (batch*channels) slice for one trace position,
// aliasing the block's storage.
func (t *TraceValues) Row(i int) []float64 {
	n := t.Batch * t.Channels
	return t.Data[i*n : (i+1)*n]
}

// Clone returns a deep copy of the block.
func (t *TraceValues) Clone() *TraceValues {
	out := &TraceValues{Len: t.Len, Batch: t.Batch, Channels: t.Channels}
	out.Data = make([]float64, len(t.Data))
	copy(out.Data, t.Data)
	return out
}

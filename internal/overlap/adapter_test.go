package overlap

import (
	"fmt"
	"math"
	"testing"

	"stable-render/internal/corrmap"
	"stable-render/internal/tensor"
)

func TestResizeOverlapZeroAlphaShortCircuit(t *testing.T) {
	stack, m := threeFrameScene(t)
	alpha, radius := constSchedulers(0, 0)
	r := &ResizeOverlap{
		Overlap: Overlap{Alpha: alpha, Radius: radius, Algorithm: MeanAlgorithm{}},
		Mode:    tensor.ModeNearest,
	}

	res, err := r.Apply(stack, m, 0, 0)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if res.Stack != stack {
		t.Errorf("zero alpha should return the input stack unchanged")
	}
	if res.Mask.Count() != 0 {
		t.Errorf("zero alpha marked %d positions", res.Mask.Count())
	}
}

func TestResizeOverlapMatchesDirectAtMapResolution(t *testing.T) {
	// When frames already sit at the map resolution, the resize
	// adapter must agree with the direct orchestrator.
	stack, m := threeFrameScene(t)
	alpha, radius := constSchedulers(1, 0)

	direct := &Overlap{Alpha: alpha, Radius: radius, Algorithm: MeanAlgorithm{}}
	want, err := direct.Apply(stack, m, 0, 0)
	if err != nil {
		t.Fatalf("direct Apply returned error: %v", err)
	}

	r := &ResizeOverlap{Overlap: *direct, Mode: tensor.ModeNearest}
	got, err := r.Apply(stack, m, 0, 0)
	if err != nil {
		t.Fatalf("adapter Apply returned error: %v", err)
	}

	for ti := range want.Stack.Frames {
		for i := range want.Stack.Frames[ti].Data {
			if got.Stack.Frames[ti].Data[i] != want.Stack.Frames[ti].Data[i] {
				t.Fatalf("frame %d sample %d: adapter %v, direct %v",
					ti, i, got.Stack.Frames[ti].Data[i], want.Stack.Frames[ti].Data[i])
			}
		}
	}
}

func TestResizeOverlapRestoresUntouchedPositions(t *testing.T) {
	// Frames at half the map resolution: blended values come back
	// through two resizes, but positions the pass never wrote must
	// keep their original samples bit for bit.
	frames := make([]*tensor.Frame, 2)
	for i := range frames {
		f := tensor.NewFrame(1, 1, 2, 2)
		for j := range f.Data {
			f.Data[j] = float32(10*i + j + 1)
		}
		frames[i] = f
	}
	stack, _ := tensor.NewStack(frames...)

	// Map space is 4x4; one element traced at (0,0) in both frames.
	b := corrmap.NewBuilder(4, 4)
	b.Add(1, 0, 0, 0)
	b.Add(1, 1, 0, 0)
	m := b.Build()

	alpha, radius := constSchedulers(1, 0)
	r := &ResizeOverlap{
		Overlap: Overlap{Alpha: alpha, Radius: radius, Algorithm: MeanAlgorithm{}},
		Mode:    tensor.ModeNearest,
	}

	res, err := r.Apply(stack, m, 0, 0)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	// Map (0,0) folds back onto native (0,0); everything else must be
	// exactly the original.
	for ti := range frames {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				if y == 0 && x == 0 {
					continue
				}
				got := res.Stack.Frames[ti].At(0, 0, y, x)
				want := stack.Frames[ti].At(0, 0, y, x)
				if got != want {
					t.Errorf("frame %d (%d,%d) = %v, want original %v", ti, y, x, got, want)
				}
			}
		}
	}

	// The traced position carries the cross-frame mean (values 1 and 11).
	for ti := range frames {
		if got := res.Stack.Frames[ti].At(0, 0, 0, 0); math.Abs(float64(got-6)) > 1e-4 {
			t.Errorf("frame %d traced value = %v, want 6", ti, got)
		}
	}
}

// testCodec decodes 4-channel latents to 3-channel images by dropping
// the last channel and doubling, and encodes by halving with a zero
// fourth channel. Round trips are exact for latents whose fourth
// channel is zero.
type testCodec struct{}

func (testCodec) Decode(latent *tensor.Frame) (*tensor.Frame, error) {
	if latent.Channels != 4 {
		return nil, fmt.Errorf("latent has %d channels, want 4", latent.Channels)
	}
	img := tensor.NewFrame(latent.Batch, 3, latent.Height, latent.Width)
	for b := 0; b < latent.Batch; b++ {
		for c := 0; c < 3; c++ {
			src := latent.Plane(b, c)
			dst := img.Plane(b, c)
			for i, v := range src {
				dst[i] = v * 2
			}
		}
	}
	return img, nil
}

func (testCodec) Encode(img *tensor.Frame) (*tensor.Frame, error) {
	if img.Channels != 3 {
		return nil, fmt.Errorf("image has %d channels, want 3", img.Channels)
	}
	latent := tensor.NewFrame(img.Batch, 4, img.Height, img.Width)
	for b := 0; b < img.Batch; b++ {
		for c := 0; c < 3; c++ {
			src := img.Plane(b, c)
			dst := latent.Plane(b, c)
			for i, v := range src {
				dst[i] = v / 2
			}
		}
	}
	return latent, nil
}

func TestCodecOverlapBlendsInImageSpace(t *testing.T) {
	// Two 4-channel latent frames, one element traced at (0,0) in
	// both. Latent values 1 and 3 decode to 2 and 6; the image-space
	// mean 4 encodes back to latent 2.
	frames := make([]*tensor.Frame, 2)
	for i, v := range []float32{1, 3} {
		f := tensor.NewFrame(1, 4, 2, 2)
		for c := 0; c < 3; c++ {
			f.Set(0, c, 0, 0, v)
		}
		frames[i] = f
	}
	stack, _ := tensor.NewStack(frames...)

	b := corrmap.NewBuilder(2, 2)
	b.Add(1, 0, 0, 0)
	b.Add(1, 1, 0, 0)
	m := b.Build()

	alpha, radius := constSchedulers(1, 0)
	v := &CodecOverlap{
		Overlap: Overlap{Alpha: alpha, Radius: radius, Algorithm: MeanAlgorithm{}},
		Codec:   testCodec{},
	}

	res, err := v.Apply(stack, m, 0, 0)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	for ti := 0; ti < 2; ti++ {
		for c := 0; c < 3; c++ {
			if got := res.Stack.Frames[ti].At(0, c, 0, 0); math.Abs(float64(got-2)) > 1e-5 {
				t.Errorf("frame %d channel %d = %v, want 2", ti, c, got)
			}
		}
	}
}

func TestCodecOverlapZeroAlphaRoundTrip(t *testing.T) {
	// With alpha 0 the stack passes through decode and encode only;
	// the result must match the input within the codec round-trip
	// tolerance.
	const tolerance = 1e-6

	f := tensor.NewFrame(1, 4, 2, 2)
	for c := 0; c < 3; c++ {
		for i, v := range []float32{0.5, -1.25, 2, 0} {
			f.Plane(0, c)[i] = v
		}
	}
	stack, _ := tensor.NewStack(f, f.Clone())

	b := corrmap.NewBuilder(2, 2)
	b.Add(1, 0, 0, 0)
	b.Add(1, 1, 0, 0)
	m := b.Build()

	alpha, radius := constSchedulers(0, 0)
	v := &CodecOverlap{
		Overlap: Overlap{Alpha: alpha, Radius: radius, Algorithm: MeanAlgorithm{}},
		Codec:   testCodec{},
	}

	res, err := v.Apply(stack, m, 0, 0)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	for ti := range stack.Frames {
		for i := range stack.Frames[ti].Data {
			diff := math.Abs(float64(res.Stack.Frames[ti].Data[i] - stack.Frames[ti].Data[i]))
			if diff > tolerance {
				t.Errorf("frame %d sample %d drifted by %v", ti, i, diff)
			}
		}
	}
}

func TestScaledCodecAppliesFactor(t *testing.T) {
	inner := testCodec{}
	scaled := &ScaledCodec{Inner: inner, Factor: 0.5}

	latent := tensor.NewFrame(1, 4, 1, 1)
	latent.Set(0, 0, 0, 0, 1)

	// Decode divides by the factor first: 1/0.5 = 2, then doubles to 4.
	img, err := scaled.Decode(latent)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got := img.At(0, 0, 0, 0); got != 4 {
		t.Errorf("decoded value = %v, want 4", got)
	}

	// Encode halves to 2, then multiplies by the factor: 1.
	back, err := scaled.Encode(img)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if got := back.At(0, 0, 0, 0); got != 1 {
		t.Errorf("re-encoded value = %v, want 1", got)
	}
}

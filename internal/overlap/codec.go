package overlap

import (
	"fmt"

	"stable-render/internal/corrmap"
	"stable-render/internal/tensor"
)

// Codec is the external neural decode/encode pair. Decode maps one
// latent frame to image space (channel count may change, e.g. 4 to 3);
// Encode reverses it. Encoding does not preserve exact zeros, so
// merging must happen in image space, never between post-encode
// latents and original latents.
type Codec interface {
	Decode(latent *tensor.Frame) (*tensor.Frame, error)
	Encode(image *tensor.Frame) (*tensor.Frame, error)
}

// ScaledCodec applies the codec's scaling convention around an inner
// codec: latents are divided by Factor before decoding, and encoded
// latents are multiplied by Factor.
type ScaledCodec struct {
	Inner  Codec
	Factor float32
}

// Decode implements Codec.
func (s *ScaledCodec) Decode(latent *tensor.Frame) (*tensor.Frame, error) {
	return s.Inner.Decode(latent.Clone().Scale(1 / s.Factor))
}

// Encode implements Codec.
func (s *ScaledCodec) Encode(image *tensor.Frame) (*tensor.Frame, error) {
	latent, err := s.Inner.Encode(image)
	if err != nil {
		return nil, err
	}
	return latent.Scale(s.Factor), nil
}

// CodecOverlap runs the blend in decoded image space: each latent
// frame is decoded, the orchestrator blends the decoded stack, the
// result is merged against the decoded originals through the written
// mask, and every merged frame is encoded back to latent space.
//
// The codec call is treated as an opaque synchronous operation; on
// resource exhaustion the caller is expected to retry with a
// tiled/chunked codec, after which the merge logic is unchanged.
type CodecOverlap struct {
	Overlap
	Codec Codec
}

// Apply implements the decode/encode adapter. The returned mask is in
// decoded image space, where the merge happened.
func (v *CodecOverlap) Apply(stack *tensor.Stack, m *corrmap.Map, step int, timestep float64) (*Result, error) {
	if v.Codec == nil {
		return nil, fmt.Errorf("codec overlap has no codec")
	}

	decoded := make([]*tensor.Frame, stack.Len())
	for i, f := range stack.Frames {
		img, err := v.Codec.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		decoded[i] = img
	}
	pixStack, err := tensor.NewStack(decoded...)
	if err != nil {
		return nil, fmt.Errorf("decoded frames: %w", err)
	}

	res, err := v.Overlap.Apply(pixStack, m, step, timestep)
	if err != nil {
		return nil, err
	}

	merged := tensor.MergeMasked(res.Stack, pixStack, res.Mask)

	encoded := make([]*tensor.Frame, merged.Len())
	for i, f := range merged.Frames {
		latent, err := v.Codec.Encode(f)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		encoded[i] = latent
	}
	outStack, err := tensor.NewStack(encoded...)
	if err != nil {
		return nil, fmt.Errorf("encoded frames: %w", err)
	}

	return &Result{Stack: outStack, Mask: res.Mask, Diagnostics: res.Diagnostics}, nil
}

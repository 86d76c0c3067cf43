package tensor

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// InterpMode selects the resampling filter for frame resizing.
type InterpMode string

const (
	ModeNearest   InterpMode = "nearest"
	ModeLinear    InterpMode = "linear"
	ModeBilinear  InterpMode = "bilinear"
	ModeBicubic   InterpMode = "bicubic"
	ModeTrilinear InterpMode = "trilinear"
)

// ParseInterpMode converts a configuration string into an InterpMode.
func ParseInterpMode(s string) (InterpMode, error) {
	switch InterpMode(s) {
	case ModeNearest, ModeLinear, ModeBilinear, ModeBicubic, ModeTrilinear:
		return InterpMode(s), nil
	default:
		return "", fmt.Errorf("unknown interpolation mode %q", s)
	}
}

// AlignCorners reports whether the mode maps corner samples exactly
// onto each other. Disabled for nearest, enabled for smooth modes.
func (m InterpMode) AlignCorners() bool {
	return m != ModeNearest
}

// nearestSource maps a destination index to the nearest source index.
func nearestSource(dst, dstDim, srcDim int) int {
	s := int(float64(dst) * float64(srcDim) / float64(dstDim))
	if s > srcDim-1 {
		s = srcDim - 1
	}
	return s
}

// sourcePos maps a destination index to a fractional source position.
func sourcePos(dst, dstDim, srcDim int, alignCorners bool) float64 {
	if alignCorners {
		if dstDim <= 1 {
			return 0
		}
		return float64(dst) * float64(srcDim-1) / float64(dstDim-1)
	}
	scale := float64(srcDim) / float64(dstDim)
	p := (float64(dst)+0.5)*scale - 0.5
	if p < 0 {
		p = 0
	}
	if p > float64(srcDim-1) {
		p = float64(srcDim - 1)
	}
	return p
}

// ResizeFrame resamples every plane of a frame to width x height.
// Linear/bilinear/trilinear all resolve to the 2D bilinear filter on a
// single plane; bicubic uses a Catmull-Rom kernel.
func ResizeFrame(f *Frame, width, height int, mode InterpMode) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	if width == f.Width && height == f.Height {
		return f.Clone(), nil
	}

	out := NewFrame(f.Batch, f.Channels, height, width)
	align := mode.AlignCorners()

	var resample func(src, dst []float32, sw, sh int)
	switch mode {
	case ModeNearest:
		resample = func(src, dst []float32, sw, sh int) {
			resampleNearest(src, dst, sw, sh, width, height)
		}
	case ModeLinear, ModeBilinear, ModeTrilinear:
		resample = func(src, dst []float32, sw, sh int) {
			resampleBilinear(src, dst, sw, sh, width, height, align)
		}
	case ModeBicubic:
		resample = func(src, dst []float32, sw, sh int) {
			resampleBicubic(src, dst, sw, sh, width, height, align)
		}
	default:
		return nil, fmt.Errorf("unknown interpolation mode %q", mode)
	}

	// Parallelize across planes; each plane's output region is disjoint.
	planes := f.Batch * f.Channels
	numWorkers := runtime.NumCPU()
	if numWorkers > planes {
		numWorkers = planes
	}
	planeCh := make(chan int, planes)
	for p := 0; p < planes; p++ {
		planeCh <- p
	}
	close(planeCh)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range planeCh {
				b, c := p/f.Channels, p%f.Channels
				resample(f.Plane(b, c), out.Plane(b, c), f.Width, f.Height)
			}
		}()
	}
	wg.Wait()

	return out, nil
}

// ResizeStack resamples every frame of a stack.
func ResizeStack(s *Stack, width, height int, mode InterpMode) (*Stack, error) {
	frames := make([]*Frame, s.Len())
	for i, f := range s.Frames {
		r, err := ResizeFrame(f, width, height, mode)
		if err != nil {
			return nil, err
		}
		frames[i] = r
	}
	return NewStack(frames...)
}

func resampleNearest(src, dst []float32, sw, sh, dw, dh int) {
	for y := 0; y < dh; y++ {
		sy := nearestSource(y, dh, sh)
		row := src[sy*sw:]
		for x := 0; x < dw; x++ {
			dst[y*dw+x] = row[nearestSource(x, dw, sw)]
		}
	}
}

func resampleBilinear(src, dst []float32, sw, sh, dw, dh int, align bool) {
	for y := 0; y < dh; y++ {
		fy := sourcePos(y, dh, sh, align)
		y0 := int(math.Floor(fy))
		y1 := y0 + 1
		if y1 > sh-1 {
			y1 = sh - 1
		}
		wy := fy - float64(y0)
		for x := 0; x < dw; x++ {
			fx := sourcePos(x, dw, sw, align)
			x0 := int(math.Floor(fx))
			x1 := x0 + 1
			if x1 > sw-1 {
				x1 = sw - 1
			}
			wx := fx - float64(x0)

			top := float64(src[y0*sw+x0])*(1-wx) + float64(src[y0*sw+x1])*wx
			bot := float64(src[y1*sw+x0])*(1-wx) + float64(src[y1*sw+x1])*wx
			dst[y*dw+x] = float32(top*(1-wy) + bot*wy)
		}
	}
}

// cubicWeight is the Catmull-Rom kernel (a = -0.5).
func cubicWeight(t float64) float64 {
	const a = -0.5
	t = math.Abs(t)
	switch {
	case t <= 1:
		return (a+2)*t*t*t - (a+3)*t*t + 1
	case t < 2:
		return a*t*t*t - 5*a*t*t + 8*a*t - 4*a
	default:
		return 0
	}
}

func resampleBicubic(src, dst []float32, sw, sh, dw, dh int, align bool) {
	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}
	for y := 0; y < dh; y++ {
		fy := sourcePos(y, dh, sh, align)
		y0 := int(math.Floor(fy))
		for x := 0; x < dw; x++ {
			fx := sourcePos(x, dw, sw, align)
			x0 := int(math.Floor(fx))

			var sum, wsum float64
			for j := -1; j <= 2; j++ {
				sy := clamp(y0+j, sh-1)
				wy := cubicWeight(fy - float64(y0+j))
				for i := -1; i <= 2; i++ {
					sx := clamp(x0+i, sw-1)
					w := wy * cubicWeight(fx-float64(x0+i))
					sum += w * float64(src[sy*sw+sx])
					wsum += w
				}
			}
			if wsum != 0 {
				sum /= wsum
			}
			dst[y*dw+x] = float32(sum)
		}
	}
}

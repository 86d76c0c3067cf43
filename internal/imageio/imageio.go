// Package imageio bridges frame tensors to standard images and OpenCV
// mats for previews and debug maps.
package imageio

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"runtime"
	"sync"

	xdraw "golang.org/x/image/draw"

	"stable-render/internal/tensor"
)

// FrameImage renders one batch of a frame as an RGBA image, mapping
// the sample range [lo, hi] to [0, 255]. Frames with three or more
// channels use channels 0..2 as RGB; single-channel frames render as
// grayscale.
func FrameImage(f *tensor.Frame, batch int, lo, hi float32) (*image.RGBA, error) {
	if batch < 0 || batch >= f.Batch {
		return nil, fmt.Errorf("batch %d outside frame (%d batches)", batch, f.Batch)
	}
	if hi <= lo {
		return nil, fmt.Errorf("invalid sample range [%v, %v]", lo, hi)
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	stride := img.Stride
	scale := 255 / (hi - lo)

	channel := func(c, y, x int) uint8 {
		v := (f.At(batch, c, y, x) - lo) * scale
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}

	// Parallelize by horizontal stripes.
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (f.Height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > f.Height {
			endY = f.Height
		}
		if startY >= f.Height {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				rowOffset := y * stride
				for x := 0; x < f.Width; x++ {
					pixOffset := rowOffset + x*4
					if f.Channels >= 3 {
						img.Pix[pixOffset+0] = channel(0, y, x)
						img.Pix[pixOffset+1] = channel(1, y, x)
						img.Pix[pixOffset+2] = channel(2, y, x)
					} else {
						g := channel(0, y, x)
						img.Pix[pixOffset+0] = g
						img.Pix[pixOffset+1] = g
						img.Pix[pixOffset+2] = g
					}
					img.Pix[pixOffset+3] = 255
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return img, nil
}

// ImageFrame converts an image into a 1-batch, 3-channel frame with
// samples mapped from [0, 255] to [lo, hi].
func ImageFrame(img image.Image, lo, hi float32) *tensor.Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	f := tensor.NewFrame(1, 3, h, w)
	scale := (hi - lo) / 255

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			f.Set(0, 0, y, x, lo+float32(r>>8)*scale)
			f.Set(0, 1, y, x, lo+float32(g>>8)*scale)
			f.Set(0, 2, y, x, lo+float32(b>>8)*scale)
		}
	}
	return f
}

// Thumbnail scales an image down so its longest side is maxDim,
// preserving aspect ratio. Images already small enough are returned
// unchanged.
func Thumbnail(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var tw, th int
	if w >= h {
		tw = maxDim
		th = h * maxDim / w
	} else {
		th = maxDim
		tw = w * maxDim / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// WritePNG writes an image to path as PNG.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

package imageio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"stable-render/internal/tensor"
)

// FrameToMat converts one batch of a 3-channel frame to a BGR 8-bit
// Mat, mapping the sample range [lo, hi] to [0, 255]. The caller owns
// the returned Mat.
func FrameToMat(f *tensor.Frame, batch int, lo, hi float32) (gocv.Mat, error) {
	if f.Channels < 3 {
		return gocv.Mat{}, fmt.Errorf("frame has %d channels, want at least 3", f.Channels)
	}
	if batch < 0 || batch >= f.Batch {
		return gocv.Mat{}, fmt.Errorf("batch %d outside frame (%d batches)", batch, f.Batch)
	}
	if hi <= lo {
		return gocv.Mat{}, fmt.Errorf("invalid sample range [%v, %v]", lo, hi)
	}

	mat := gocv.NewMatWithSize(f.Height, f.Width, gocv.MatTypeCV8UC3)
	scale := 255 / (hi - lo)
	clamp := func(v float32) uint8 {
		if v < 0 {
			return 0
		}
		if v > 255 {
			return 255
		}
		return uint8(v)
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			// OpenCV uses BGR format.
			mat.SetUCharAt(y, x*3+0, clamp((f.At(batch, 2, y, x)-lo)*scale))
			mat.SetUCharAt(y, x*3+1, clamp((f.At(batch, 1, y, x)-lo)*scale))
			mat.SetUCharAt(y, x*3+2, clamp((f.At(batch, 0, y, x)-lo)*scale))
		}
	}
	return mat, nil
}

// MatToFrame converts a BGR 8-bit Mat into a 1-batch, 3-channel frame
// with samples mapped from [0, 255] to [lo, hi].
func MatToFrame(mat gocv.Mat, lo, hi float32) (*tensor.Frame, error) {
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("mat type %v is not 8UC3", mat.Type())
	}

	h, w := mat.Rows(), mat.Cols()
	f := tensor.NewFrame(1, 3, h, w)
	scale := (hi - lo) / 255

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(0, 0, y, x, lo+float32(mat.GetUCharAt(y, x*3+2))*scale)
			f.Set(0, 1, y, x, lo+float32(mat.GetUCharAt(y, x*3+1))*scale)
			f.Set(0, 2, y, x, lo+float32(mat.GetUCharAt(y, x*3+0))*scale)
		}
	}
	return f, nil
}

// GenerateCannyImages writes a Canny edge map next to every image in
// imagesPath, prefixed "canny_", into outputPath.
func GenerateCannyImages(imagesPath, outputPath string, lowerThreshold, upperThreshold float32) error {
	entries, err := os.ReadDir(imagesPath)
	if err != nil {
		return fmt.Errorf("read image directory: %w", err)
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isImageFile(entry.Name()) {
			continue
		}

		img := gocv.IMRead(filepath.Join(imagesPath, entry.Name()), gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			return fmt.Errorf("failed to read %s", entry.Name())
		}

		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

		edges := gocv.NewMat()
		gocv.Canny(gray, &edges, lowerThreshold, upperThreshold)

		ok := gocv.IMWrite(filepath.Join(outputPath, "canny_"+entry.Name()), edges)

		edges.Close()
		gray.Close()
		img.Close()

		if !ok {
			return fmt.Errorf("failed to write canny map for %s", entry.Name())
		}
	}
	return nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

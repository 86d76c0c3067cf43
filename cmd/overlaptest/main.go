// Command overlaptest runs overlap passes over a frame sequence and
// reports per-pass diagnostics. Frames are either synthesized (a
// flickering scene with stable surface ids) or loaded from a directory
// together with a cached correspondence map.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	_ "golang.org/x/image/tiff"

	"stable-render/internal/consensus"
	"stable-render/internal/corrmap"
	"stable-render/internal/imageio"
	"stable-render/internal/overlap"
	"stable-render/internal/schedule"
	"stable-render/internal/tensor"
)

type runConfig struct {
	Alpha     schedule.Config `yaml:"alpha"`
	Radius    schedule.Config `yaml:"radius"`
	Mode      string          `yaml:"mode"`
	Algorithm string          `yaml:"algorithm"`
	Verbose   bool            `yaml:"verbose"`
}

func main() {
	configPath := flag.String("config", "", "Path to YAML run config")
	framesDir := flag.String("frames", "", "Directory of frame images (PNG, JPEG, or TIFF); synthesized when empty")
	mapPath := flag.String("corrmap", "", "Cached correspondence map (required with -frames)")
	scene := flag.String("scene", "", "Scene key the cached map was written for")
	numFrames := flag.Int("n", 8, "Number of synthesized frames")
	width := flag.Int("width", 64, "Synthesized frame width")
	height := flag.Int("height", 64, "Synthesized frame height")
	steps := flag.Int("steps", 10, "Number of overlap passes")
	seed := flag.Int64("seed", 1, "Synthesis random seed")
	outDir := flag.String("out", "", "Directory for PNG previews (optional)")
	flag.Parse()

	cfg := runConfig{
		Alpha:  schedule.Config{Curve: "cosine", Start: 1, End: 0},
		Radius: schedule.Config{Curve: "linear", Start: 1, End: 0},
		Mode:   "nearest",
	}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Alpha.TotalSteps = *steps
	cfg.Radius.TotalSteps = *steps

	alphaSched, err := schedule.FromConfig(cfg.Alpha)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad alpha schedule: %v\n", err)
		os.Exit(1)
	}
	radiusSched, err := schedule.FromConfig(cfg.Radius)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad radius schedule: %v\n", err)
		os.Exit(1)
	}
	mode, err := tensor.ParseInterpMode(cfg.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad interpolation mode: %v\n", err)
		os.Exit(1)
	}

	var stack *tensor.Stack
	var m *corrmap.Map
	var rasters []corrmap.IdentityRaster

	if *framesDir != "" {
		if *mapPath == "" {
			fmt.Fprintln(os.Stderr, "-frames requires -corrmap")
			os.Exit(1)
		}
		stack, err = loadFrames(*framesDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load frames: %v\n", err)
			os.Exit(1)
		}
		f, err := os.Open(*mapPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open correspondence map: %v\n", err)
			os.Exit(1)
		}
		m, err = corrmap.ReadCache(f, *scene)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read correspondence map: %v\n", err)
			os.Exit(1)
		}
	} else {
		stack, rasters = synthesizeScene(*numFrames, *height, *width, *seed)
		m, err = corrmap.FromIdentityMaps(rasters)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build correspondence map: %v\n", err)
			os.Exit(1)
		}
	}

	algo, err := buildAlgorithm(cfg.Algorithm, rasters)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad algorithm: %v\n", err)
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	ovlp := &overlap.ResizeOverlap{
		Overlap: overlap.Overlap{
			Alpha:     alphaSched,
			Radius:    radiusSched,
			Algorithm: algo,
			Log:       logger,
		},
		Mode: mode,
	}

	_, _, h, w := stack.Shape()
	fmt.Printf("Frames: %d (%dx%d) | Map: %dx%d, %d surface elements\n",
		stack.Len(), w, h, m.Width, m.Height, m.Len())
	fmt.Printf("%-6s %8s %8s %12s %14s %12s\n",
		"Step", "Alpha", "Radius", "Singletons", "AvgTraceLen", "Elapsed")

	for step := 0; step < *steps; step++ {
		res, err := ovlp.Apply(stack, m, step, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Overlap failed at step %d: %v\n", step, err)
			os.Exit(1)
		}
		d := res.Diagnostics
		fmt.Printf("%-6d %8.3f %8d %12d %14.2f %12s\n",
			step, d.Alpha, d.Radius, d.Singletons, d.AvgTraceLen, d.Elapsed)
		stack = res.Stack
	}

	if *outDir != "" {
		if err := writePreviews(*outDir, stack); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write previews: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Previews written to %s\n", *outDir)
	}
}

// buildAlgorithm maps a config name to an Algorithm. The similarity
// algorithm needs identity rasters, so it is only available for
// synthesized scenes.
func buildAlgorithm(name string, rasters []corrmap.IdentityRaster) (overlap.Algorithm, error) {
	switch name {
	case "", "mean":
		return overlap.MeanAlgorithm{}, nil
	case "identity":
		return overlap.IdentityAlgorithm{}, nil
	case "similarity":
		if len(rasters) == 0 {
			return nil, fmt.Errorf("similarity algorithm requires a synthesized scene")
		}
		return similarityFromRasters(rasters), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", name)
	}
}

// synthesizeScene builds a sequence of frames showing a disk of stable
// surface ids drifting across a background, with per-frame noise that
// the overlap pass is supposed to cancel.
func synthesizeScene(frames, height, width int, seed int64) (*tensor.Stack, []corrmap.IdentityRaster) {
	rng := rand.New(rand.NewSource(seed))
	radius := height / 4

	out := make([]*tensor.Frame, frames)
	rasters := make([]corrmap.IdentityRaster, frames)

	for t := 0; t < frames; t++ {
		f := tensor.NewFrame(1, 3, height, width)
		raster := corrmap.IdentityRaster{Height: height, Width: width, IDs: make([]int32, height*width)}
		for i := range raster.IDs {
			raster.IDs[i] = -1
		}

		// Disk center drifts one pixel per frame.
		cy := height / 2
		cx := width/4 + t

		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dy*dy+dx*dx > radius*radius {
					continue
				}
				y, x := cy+dy, cx+dx
				if y < 0 || y >= height || x < 0 || x >= width {
					continue
				}
				// Stable id per disk-local position.
				id := int32((dy+radius)*(2*radius+1) + (dx + radius))
				raster.IDs[y*width+x] = id

				base := 0.2 + 0.6*float32(id%97)/97
				for c := 0; c < 3; c++ {
					noise := float32(rng.NormFloat64()) * 0.1
					f.Set(0, c, y, x, base+noise)
				}
			}
		}
		out[t] = f
		rasters[t] = raster
	}

	stack, _ := tensor.NewStack(out...)
	return stack, rasters
}

// similarityFromRasters builds the similarity algorithm's identity
// maps from the scene rasters: the vertex id doubles as the
// surface-patch id, a synthetic material id cycles over a small
// palette, and every pixel contributes weight 1.
func similarityFromRasters(rasters []corrmap.IdentityRaster) *overlap.SimilarityAlgorithm {
	h, w := rasters[0].Height, rasters[0].Width
	maps := consensus.NewIdentityMaps(len(rasters), h*w)
	contribs := make([]float32, len(rasters)*h*w)

	for t, r := range rasters {
		for p, id := range r.IDs {
			tuple := [4]int32{id, id % 7, 0, id}
			maps.SetPixel(t, p, tuple)
			contribs[t*h*w+p] = 1
		}
	}
	return &overlap.SimilarityAlgorithm{Maps: maps, Contributions: contribs, Width: w}
}

func loadFrames(dir string) (*tensor.Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var frames []*tensor.Frame
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		frames = append(frames, imageio.ImageFrame(img, 0, 1))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames in %s", dir)
	}
	return tensor.NewStack(frames...)
}

func writePreviews(dir string, stack *tensor.Stack) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for t, f := range stack.Frames {
		img, err := imageio.FrameImage(f, 0, 0, 1)
		if err != nil {
			return err
		}
		preview := imageio.Thumbnail(img, 512)
		if err := imageio.WritePNG(filepath.Join(dir, fmt.Sprintf("frame_%03d.png", t)), preview); err != nil {
			return err
		}
	}
	return nil
}

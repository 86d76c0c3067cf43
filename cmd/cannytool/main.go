// Command cannytool writes Canny edge maps for every image in a
// directory, a quick way to inspect the structure the renderer's color
// maps give the generative model.
package main

import (
	"flag"
	"fmt"
	"os"

	"stable-render/internal/imageio"
)

func main() {
	inDir := flag.String("in", "", "Directory of input images (PNG or JPEG)")
	outDir := flag.String("out", "", "Output directory for edge maps")
	lower := flag.Float64("low", 100, "Canny lower threshold")
	upper := flag.Float64("high", 200, "Canny upper threshold")
	flag.Parse()

	if *inDir == "" || *outDir == "" {
		fmt.Println("Usage: cannytool -in <dir> -out <dir> [-low 100] [-high 200]")
		os.Exit(1)
	}

	if err := imageio.GenerateCannyImages(*inDir, *outDir, float32(*lower), float32(*upper)); err != nil {
		fmt.Fprintf(os.Stderr, "Canny generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Edge maps written to %s\n", *outDir)
}

// Generates a directory of synthetic PNG images for exercising the
// batch pipeline and benchmark harness.
//
// Usage: go run scripts/genimages.go -out testdata/input -count 10 -size 512
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math/rand"
	"os"
	"path/filepath"
)

func main() {
	out := flag.String("out", "testdata/input", "output directory")
	count := flag.Int("count", 10, "number of images")
	size := flag.Int("size", 512, "image edge length in pixels")
	mixed := flag.Bool("mixed", false, "vary image sizes (size/4 .. size)")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("❌ %v", err)
	}

	for i := 0; i < *count; i++ {
		w, h := *size, *size
		if *mixed {
			w = *size/4 + rng.Intn(*size*3/4)
			h = *size/4 + rng.Intn(*size*3/4)
		}

		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		// Smooth gradient plus noise so the files are not trivially compressible.
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetNRGBA(x, y, color.NRGBA{
					R: uint8((x*255/w + rng.Intn(32)) & 0xff),
					G: uint8((y*255/h + rng.Intn(32)) & 0xff),
					B: uint8(((x + y) * 255 / (w + h)) & 0xff),
					A: 255,
				})
			}
		}

		path := filepath.Join(*out, fmt.Sprintf("img%03d.png", i))
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			log.Fatalf("❌ %v", err)
		}
		f.Close()
		log.Printf("🖼  %s (%dx%d)", path, w, h)
	}
	log.Printf("✅ Generated %d images under %s", *count, *out)
}

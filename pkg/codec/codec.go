// Package codec is the image container boundary: it decodes any
// registered format to interleaved RGB bytes and encodes greyscale bytes
// back out by file extension. The processing core never sees a container
// format.
package codec

import (
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // decode-only

	_ "image/gif"
)

// IOError reports a codec or filesystem failure for one path.
type IOError struct {
	Op   string // "decode", "encode", "scan"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Decode reads the image at path and returns its pixels as interleaved
// RGB bytes (width*height*3) plus the extent.
func Decode(path string) ([]byte, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, &IOError{Op: "decode", Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, 0, &IOError{Op: "decode", Path: path, Err: err}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba, ok := img.(*image.NRGBA)
	if !ok || !bounds.Min.Eq(image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
	}

	rgb := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := rgb[y*w*3:]
		for x := 0; x < w; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return rgb, w, h, nil
}

// Encode writes width*height greyscale bytes to path, picking the
// container from the extension (.png, .jpg/.jpeg, .bmp, .tif/.tiff;
// anything else is written as PNG).
func Encode(grey []byte, width, height int, path string) error {
	if len(grey) != width*height {
		return &IOError{Op: "encode", Path: path,
			Err: fmt.Errorf("have %d bytes for a %dx%d image", len(grey), width, height)}
	}
	img := &image.Gray{Pix: grey, Stride: width, Rect: image.Rect(0, 0, width, height)}

	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, nil)
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return &IOError{Op: "encode", Path: path, Err: err}
	}
	return nil
}

var decodeExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Supported reports whether path has a decodable image extension.
func Supported(path string) bool {
	return decodeExts[strings.ToLower(filepath.Ext(path))]
}

// ListImages returns the image files directly under dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &IOError{Op: "scan", Path: dir, Err: err}
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

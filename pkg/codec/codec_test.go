package codec

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, fill color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDecodeRGB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.png")
	writePNG(t, path, 5, 3, color.NRGBA{R: 255, A: 255})

	rgb, w, h, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 5, w)
	assert.Equal(t, 3, h)
	require.Len(t, rgb, 5*3*3)
	assert.Equal(t, byte(255), rgb[0])
	assert.Equal(t, byte(0), rgb[1])
	assert.Equal(t, byte(0), rgb[2])
}

func TestDecodeMissingFile(t *testing.T) {
	_, _, _, err := Decode(filepath.Join(t.TempDir(), "nope.png"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "decode", ioErr.Op)
}

func TestDecodeMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("this is not an image"), 0o644))

	_, _, _, err := Decode(path)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	grey := make([]byte, 8*4)
	for i := range grey {
		grey[i] = byte(i * 7)
	}

	for _, name := range []string{"out.png", "out.bmp", "out.tif"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Encode(grey, 8, 4, path))

		rgb, w, h, err := Decode(path)
		require.NoError(t, err, name)
		assert.Equal(t, 8, w)
		assert.Equal(t, 4, h)
		// Lossless formats must round-trip greyscale exactly (R=G=B=Y).
		for i := 0; i < len(grey); i++ {
			assert.Equal(t, grey[i], rgb[i*3], "%s pixel %d", name, i)
		}
	}
}

func TestEncodeSizeMismatch(t *testing.T) {
	err := Encode(make([]byte, 10), 8, 4, filepath.Join(t.TempDir(), "x.png"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "encode", ioErr.Op)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 2, 2, color.NRGBA{A: 255})
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2, color.NRGBA{A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	paths, err := ListImages(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "a.png", filepath.Base(paths[0]))
	assert.Equal(t, "b.png", filepath.Base(paths[1]))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("x.PNG"))
	assert.True(t, Supported("x.webp"))
	assert.False(t, Supported("x.txt"))
	assert.False(t, Supported("x"))
}

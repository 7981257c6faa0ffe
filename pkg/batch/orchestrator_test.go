package batch

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/bench"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/codec"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/device"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/kernel"
)

// captureWriter records written images and can be told to fail for
// specific identifiers.
type captureWriter struct {
	mu     sync.Mutex
	images map[string][]byte
	failID string
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{images: make(map[string][]byte)}
}

func (w *captureWriter) Write(id string, grey []byte, width, height int) error {
	if id == w.failID {
		return &codec.IOError{Op: "encode", Path: id, Err: fmt.Errorf("disk full")}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(grey))
	copy(cp, grey)
	w.images[id] = cp
	return nil
}

func testImage(t *testing.T, id string, width, height int) Image {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(len(id)*1000 + width)))
	px := make([]byte, width*height*3)
	_, err := rng.Read(px)
	require.NoError(t, err)
	return Image{ID: id, Pixels: px, Width: width, Height: height}
}

// reference computes the expected greyscale bytes on the host.
func reference(img Image) []byte {
	out := make([]byte, img.Width*img.Height)
	for i := range out {
		r := float64(img.Pixels[i*3])
		g := float64(img.Pixels[i*3+1])
		b := float64(img.Pixels[i*3+2])
		out[i] = byte(math.Round(0.299*r + 0.587*g + 0.114*b))
	}
	return out
}

func newTestOrchestrator(t *testing.T, memory uint64, opts Options, w Writer) (*Orchestrator, *device.Device) {
	t.Helper()
	dev, err := device.New(device.Options{MemoryBytes: memory, SMs: 4})
	require.NoError(t, err)
	t.Cleanup(dev.Close)

	disp, err := kernel.NewDispatcher(dev, kernel.SharedMemory, 16)
	require.NoError(t, err)

	return New(dev, disp, bench.New(), w, opts), dev
}

func TestProcessBatchAllSucceed(t *testing.T) {
	w := newCaptureWriter()
	orch, dev := newTestOrchestrator(t, device.DefaultMemoryBytes, Options{}, w)

	images := []Image{
		testImage(t, "a.png", 17, 17),
		testImage(t, "b.png", 64, 48),
		testImage(t, "c.png", 1, 1),
	}
	res := orch.ProcessBatch(images)

	assert.Equal(t, 3, res.Successes)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Samples, 3)
	for _, img := range images {
		assert.Equal(t, reference(img), w.images[img.ID], img.ID)
	}
	// Every buffer pair must be released by the end of the batch.
	assert.Equal(t, uint64(0), dev.MemoryUsed())
}

func TestProcessBatchSurvivesBadImage(t *testing.T) {
	w := newCaptureWriter()
	orch, dev := newTestOrchestrator(t, device.DefaultMemoryBytes, Options{}, w)

	bad := testImage(t, "bad.png", 32, 32)
	bad.Pixels = bad.Pixels[:10] // truncated host buffer → transfer fault

	res := orch.ProcessBatch([]Image{
		testImage(t, "ok1.png", 32, 32),
		bad,
		testImage(t, "ok2.png", 32, 32),
	})

	assert.Equal(t, 2, res.Successes)
	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, "bad.png", f.ImageID)
	assert.Equal(t, "transfer-in", f.Stage)
	assert.Equal(t, "transfer", f.Kind)
	assert.Equal(t, uint64(0), dev.MemoryUsed())
}

func TestProcessBatchAllocationFailure(t *testing.T) {
	w := newCaptureWriter()
	// Room for the small images only.
	orch, dev := newTestOrchestrator(t, 64*64*4, Options{}, w)

	res := orch.ProcessBatch([]Image{
		testImage(t, "small.png", 16, 16),
		testImage(t, "huge.png", 512, 512),
		testImage(t, "small2.png", 16, 16),
	})

	assert.Equal(t, 2, res.Successes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "huge.png", res.Failures[0].ImageID)
	assert.Equal(t, "allocate", res.Failures[0].Stage)
	assert.Equal(t, "allocation", res.Failures[0].Kind)
	assert.Equal(t, uint64(0), dev.MemoryUsed())
}

func TestProcessBatchWriterFailure(t *testing.T) {
	w := newCaptureWriter()
	w.failID = "b.png"
	orch, _ := newTestOrchestrator(t, device.DefaultMemoryBytes, Options{}, w)

	res := orch.ProcessBatch([]Image{
		testImage(t, "a.png", 8, 8),
		testImage(t, "b.png", 8, 8),
	})

	assert.Equal(t, 1, res.Successes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "encode", res.Failures[0].Stage)
	assert.Equal(t, "io", res.Failures[0].Kind)
}

func TestProcessBatchPipelined(t *testing.T) {
	w := newCaptureWriter()
	orch, dev := newTestOrchestrator(t, device.DefaultMemoryBytes, Options{Pipeline: true, Workers: 3}, w)

	var images []Image
	for i := 0; i < 12; i++ {
		images = append(images, testImage(t, fmt.Sprintf("img%02d.png", i), 16+i, 24))
	}
	res := orch.ProcessBatch(images)

	assert.Equal(t, 12, res.Successes)
	assert.Empty(t, res.Failures)
	assert.Len(t, res.Samples, 12)
	for _, img := range images {
		assert.Equal(t, reference(img), w.images[img.ID], img.ID)
	}
	assert.Equal(t, uint64(0), dev.MemoryUsed())
}

func TestProcessBatchNilHarness(t *testing.T) {
	dev, err := device.New(device.Options{MemoryBytes: device.DefaultMemoryBytes, SMs: 2})
	require.NoError(t, err)
	t.Cleanup(dev.Close)
	disp, err := kernel.NewDispatcher(dev, kernel.Naive, 16)
	require.NoError(t, err)

	w := newCaptureWriter()
	orch := New(dev, disp, nil, w, Options{})

	res := orch.ProcessBatch([]Image{testImage(t, "x.png", 20, 20)})
	assert.Equal(t, 1, res.Successes)
	assert.Empty(t, res.Samples)
}

// Package bench measures per-stage pipeline durations and aggregates
// batch throughput. All timings are completion-synchronized: a stage is
// timed from issue until its device event fires, never just until the
// host has queued it.
package bench

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/device"
)

// Stage names the three timed pipeline stages.
type Stage string

const (
	StageTransferIn  Stage = "transfer-in"
	StageCompute     Stage = "compute"
	StageTransferOut Stage = "transfer-out"
)

// Sample holds one image's stage timings. Samples are immutable once
// recorded.
type Sample struct {
	ImageID     string        `json:"image_id"`
	Bytes       int64         `json:"bytes"`
	TransferIn  time.Duration `json:"transfer_in_ns"`
	Compute     time.Duration `json:"compute_ns"`
	TransferOut time.Duration `json:"transfer_out_ns"`
}

// Total returns the sample's summed stage time.
func (s Sample) Total() time.Duration {
	return s.TransferIn + s.Compute + s.TransferOut
}

// Harness collects samples across a batch. A nil *Harness is valid and
// records nothing, so callers need no benchmark-mode branches.
type Harness struct {
	mu      sync.Mutex
	samples []Sample
	sink    func(Sample)
}

// New creates an empty harness.
func New() *Harness {
	return &Harness{}
}

// SetSink registers a callback invoked for every recorded sample, used to
// stream live results to watchers.
func (h *Harness) SetSink(fn func(Sample)) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.sink = fn
	h.mu.Unlock()
}

// TimeStage issues op and waits on its completion event, returning the
// device-observed elapsed time alongside the operation's result.
func (h *Harness) TimeStage(stage Stage, imageID string, op func() *device.Event) (time.Duration, error) {
	start := time.Now()
	err := op().Wait()
	return time.Since(start), err
}

// Record appends a completed image's sample.
func (h *Harness) Record(s Sample) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.samples = append(h.samples, s)
	sink := h.sink
	h.mu.Unlock()
	if sink != nil {
		sink(s)
	}
}

// Samples returns a copy of the recorded samples in completion order.
func (h *Harness) Samples() []Sample {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// StageStats holds aggregate statistics for one stage across a batch.
type StageStats struct {
	Total  time.Duration
	MeanMs float64
	StdMs  float64
}

// Summary is the batch-level roll-up.
type Summary struct {
	Images       int
	Bytes        int64
	Wall         time.Duration
	ImagesPerSec float64
	BytesPerSec  float64
	TransferIn   StageStats
	Compute      StageStats
	TransferOut  StageStats
}

// Summarize aggregates the recorded samples over the given wall time.
func (h *Harness) Summarize(wall time.Duration) Summary {
	samples := h.Samples()
	sum := Summary{Images: len(samples), Wall: wall}
	if len(samples) == 0 {
		return sum
	}

	in := make([]float64, len(samples))
	comp := make([]float64, len(samples))
	out := make([]float64, len(samples))
	for i, s := range samples {
		sum.Bytes += s.Bytes
		sum.TransferIn.Total += s.TransferIn
		sum.Compute.Total += s.Compute
		sum.TransferOut.Total += s.TransferOut
		in[i] = float64(s.TransferIn.Microseconds()) / 1000
		comp[i] = float64(s.Compute.Microseconds()) / 1000
		out[i] = float64(s.TransferOut.Microseconds()) / 1000
	}

	sum.TransferIn.MeanMs, sum.TransferIn.StdMs = meanStd(in)
	sum.Compute.MeanMs, sum.Compute.StdMs = meanStd(comp)
	sum.TransferOut.MeanMs, sum.TransferOut.StdMs = meanStd(out)

	if wall > 0 {
		secs := wall.Seconds()
		sum.ImagesPerSec = float64(sum.Images) / secs
		sum.BytesPerSec = float64(sum.Bytes) / secs
	}
	return sum
}

func meanStd(xs []float64) (float64, float64) {
	mean := stat.Mean(xs, nil)
	if len(xs) < 2 {
		return mean, 0
	}
	return mean, stat.StdDev(xs, nil)
}

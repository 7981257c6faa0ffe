// Package batch drives the per-image pipeline — allocate, transfer in,
// convert, transfer out, write — across one or many decoded images,
// recording per-image failures without ever aborting the whole batch.
package batch

import (
	"errors"
	"log"
	"time"

	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/bench"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/codec"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/device"
	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/kernel"
)

// Image is one decoded input: interleaved RGB bytes plus extent. The
// orchestrator treats Pixels as read-only.
type Image struct {
	ID     string
	Pixels []byte
	Width  int
	Height int
}

// Writer receives finished greyscale images keyed by identifier.
type Writer interface {
	Write(id string, grey []byte, width, height int) error
}

// Failure records one image that did not complete, with the stage that
// failed and the error kind for the batch summary.
type Failure struct {
	ImageID string
	Stage   string
	Kind    string
	Err     error
}

// Result is the batch outcome: counts, failure reasons, and the
// benchmark samples collected along the way.
type Result struct {
	Successes int
	Failures  []Failure
	Samples   []bench.Sample
	Wall      time.Duration
}

// Options tunes the orchestrator.
type Options struct {
	Pipeline bool // overlap adjacent images on per-image streams
	Workers  int  // in-flight images when pipelining; 0 = 2 (double buffering)
}

// Orchestrator owns the per-image pipeline. The kernel variant is fixed
// for the orchestrator's lifetime via the dispatcher.
type Orchestrator struct {
	dev     *device.Device
	disp    *kernel.Dispatcher
	harness *bench.Harness
	writer  Writer
	opts    Options
}

// New wires an orchestrator. harness may be nil when benchmarking is off.
func New(dev *device.Device, disp *kernel.Dispatcher, harness *bench.Harness, writer Writer, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	return &Orchestrator{dev: dev, disp: disp, harness: harness, writer: writer, opts: opts}
}

// ProcessBatch runs every image through the pipeline. One bad image never
// stops the rest: its failure is recorded and processing moves on.
func (o *Orchestrator) ProcessBatch(images []Image) *Result {
	start := time.Now()

	queue := NewJobQueue(o.opts.Pipeline)
	for _, img := range images {
		queue.Enqueue(img)
	}

	res := &Result{}
	if o.opts.Pipeline {
		o.runPipelined(queue, res)
	} else {
		o.runSequential(queue, res)
	}

	res.Samples = o.harness.Samples()
	res.Wall = time.Since(start)
	return res
}

func (o *Orchestrator) runSequential(queue *JobQueue, res *Result) {
	stream := o.dev.Stream()
	for {
		img, ok := queue.Dequeue()
		if !ok {
			return
		}
		if fail := o.processOne(stream, img); fail != nil {
			log.Printf("❌ %s failed at %s: %v", img.ID, fail.Stage, fail.Err)
			res.Failures = append(res.Failures, *fail)
		} else {
			res.Successes++
		}
	}
}

// processOne runs one image's pipeline on the given stream. The buffer
// pair is released on every exit path.
func (o *Orchestrator) processOne(stream *device.Stream, img Image) *Failure {
	fail := func(stage string, err error) *Failure {
		return &Failure{ImageID: img.ID, Stage: stage, Kind: kindOf(err), Err: err}
	}

	pair, err := o.dev.Allocate(img.Width, img.Height)
	if err != nil {
		return fail("allocate", err)
	}
	defer pair.Release()

	sample := bench.Sample{ImageID: img.ID, Bytes: int64(len(img.Pixels))}

	sample.TransferIn, err = o.harness.TimeStage(bench.StageTransferIn, img.ID, func() *device.Event {
		return o.dev.MemCopyH2D(stream, pair, img.Pixels)
	})
	if err != nil {
		return fail(string(bench.StageTransferIn), err)
	}

	sample.Compute, err = o.harness.TimeStage(bench.StageCompute, img.ID, func() *device.Event {
		return o.disp.Convert(stream, pair)
	})
	if err != nil {
		return fail(string(bench.StageCompute), err)
	}

	grey := make([]byte, img.Width*img.Height)
	sample.TransferOut, err = o.harness.TimeStage(bench.StageTransferOut, img.ID, func() *device.Event {
		return o.dev.MemCopyD2H(stream, grey, pair)
	})
	if err != nil {
		return fail(string(bench.StageTransferOut), err)
	}
	pair.Release()

	if err := o.writer.Write(img.ID, grey, img.Width, img.Height); err != nil {
		return fail("encode", err)
	}

	o.harness.Record(sample)
	return nil
}

// kindOf maps an error to its taxonomy kind for failure records.
func kindOf(err error) string {
	var ioErr *codec.IOError
	if errors.As(err, &ioErr) {
		return "io"
	}
	if k := device.Kind(err); k != "unknown" {
		return k
	}
	return "unknown"
}

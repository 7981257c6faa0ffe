// Package device models a CUDA-style compute device in process: a tracked
// device memory arena, ordered operation streams with completion events,
// and a bounded pool of block workers standing in for the streaming
// multiprocessors. Kernels queue work on a stream exactly as they would
// against a real driver; ordering within a stream and scoped buffer
// lifetimes carry the same guarantees.
package device

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Options configures a Device.
type Options struct {
	Name        string
	MemoryBytes uint64 // device memory budget; 0 = DefaultMemoryBytes
	SMs         int    // concurrent block workers; 0 = NumCPU
}

// DefaultMemoryBytes is the default device memory budget (1 GiB).
const DefaultMemoryBytes = 1 << 30

// Device is a single simulated GPU. All methods are safe for concurrent
// use by multiple streams.
type Device struct {
	name  string
	total uint64
	sms   int

	mu   sync.Mutex
	used uint64

	smSlots chan struct{} // SM occupancy semaphore, shared across streams

	stream *Stream // default stream

	// Counters read by telemetry.
	activeBlocks  atomic.Int32
	launchesTotal atomic.Int64
	bytesCopied   atomic.Int64

	telOnce sync.Once
	tel     *Telemetry

	closed atomic.Bool
}

// New creates a device with the given budget and SM count.
func New(opts Options) (*Device, error) {
	if opts.MemoryBytes == 0 {
		opts.MemoryBytes = DefaultMemoryBytes
	}
	if opts.SMs <= 0 {
		opts.SMs = runtime.NumCPU()
	}
	if opts.Name == "" {
		opts.Name = "sim-0"
	}
	d := &Device{
		name:    opts.Name,
		total:   opts.MemoryBytes,
		sms:     opts.SMs,
		smSlots: make(chan struct{}, opts.SMs),
	}
	d.stream = d.NewStream()
	return d, nil
}

// Name returns the device identifier.
func (d *Device) Name() string { return d.name }

// SMs returns the number of concurrent block workers.
func (d *Device) SMs() int { return d.sms }

// Stream returns the default stream.
func (d *Device) Stream() *Stream { return d.stream }

// MemoryTotal returns the device memory budget in bytes.
func (d *Device) MemoryTotal() uint64 { return d.total }

// MemoryUsed returns the bytes currently reserved.
func (d *Device) MemoryUsed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// malloc reserves size bytes from the arena.
func (d *Device) malloc(size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used+size > d.total {
		return nil, &AllocationError{Requested: size, Free: d.total - d.used}
	}
	d.used += size
	return make([]byte, size), nil
}

// free returns size bytes to the arena.
func (d *Device) free(size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size > d.used {
		size = d.used
	}
	d.used -= size
}

// Launch enqueues a kernel launch on s. The grid's blocks are fanned out
// over the SM pool; the returned event fires once every block has retired.
// A panic inside a block surfaces as a KernelError on the event.
func (d *Device) Launch(s *Stream, name string, gridX, gridY int, block func(bx, by int)) *Event {
	return s.enqueue("launch "+name, func() error {
		if gridX <= 0 || gridY <= 0 {
			return &KernelError{Kernel: name, Status: StatusInvalidConfiguration,
				Reason: fmt.Sprintf("grid %dx%d", gridX, gridY)}
		}
		d.launchesTotal.Add(1)

		var wg sync.WaitGroup
		var faultOnce sync.Once
		var fault error

		for by := 0; by < gridY; by++ {
			for bx := 0; bx < gridX; bx++ {
				d.smSlots <- struct{}{}
				wg.Add(1)
				go func(bx, by int) {
					d.activeBlocks.Add(1)
					defer func() {
						if r := recover(); r != nil {
							faultOnce.Do(func() {
								fault = &KernelError{Kernel: name, Status: StatusLaunchFailure,
									Reason: fmt.Sprint(r)}
							})
						}
						d.activeBlocks.Add(-1)
						<-d.smSlots
						wg.Done()
					}()
					block(bx, by)
				}(bx, by)
			}
		}
		wg.Wait()
		return fault
	})
}

// Close drains and stops the default stream and telemetry.
func (d *Device) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.stream.Close()
	if d.tel != nil {
		d.tel.stop()
	}
}

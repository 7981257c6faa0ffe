package device

import (
	"fmt"
	"sync"
)

// BufferPair is one image's device-resident working set: an interleaved
// RGB input buffer of width*height*3 bytes and a single-channel output
// buffer of width*height bytes. A pair is exclusively owned by the
// processing of one image; Release must run on every exit path.
type BufferPair struct {
	dev    *Device
	width  int
	height int

	in  []byte // W*H*3, filled by MemCopyH2D
	out []byte // W*H, written by kernel launches

	mu       sync.Mutex
	released bool
}

// Allocate reserves a buffer pair for a width×height RGB image. On
// exhaustion it returns an AllocationError and reserves nothing — a
// partially allocated pair is never handed out.
func (d *Device) Allocate(width, height int) (*BufferPair, error) {
	if width <= 0 || height <= 0 {
		return nil, &AllocationError{Requested: 0, Free: d.total - d.MemoryUsed()}
	}
	inSize := uint64(width) * uint64(height) * 3
	outSize := uint64(width) * uint64(height)

	in, err := d.malloc(inSize)
	if err != nil {
		return nil, err
	}
	out, err := d.malloc(outSize)
	if err != nil {
		d.free(inSize)
		return nil, err
	}
	return &BufferPair{dev: d, width: width, height: height, in: in, out: out}, nil
}

// Width returns the bound image width in pixels.
func (p *BufferPair) Width() int { return p.width }

// Height returns the bound image height in pixels.
func (p *BufferPair) Height() int { return p.height }

// Input exposes the device-resident input buffer to kernel code.
func (p *BufferPair) Input() []byte { return p.in }

// Output exposes the device-resident output buffer to kernel code.
func (p *BufferPair) Output() []byte { return p.out }

// Released reports whether the pair has been freed.
func (p *BufferPair) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Release frees both buffers. Safe to call more than once, so callers can
// both defer it and release eagerly on the happy path.
func (p *BufferPair) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	p.mu.Unlock()

	p.dev.free(uint64(p.width) * uint64(p.height) * 3)
	p.dev.free(uint64(p.width) * uint64(p.height))
	p.in = nil
	p.out = nil
}

// MemCopyH2D queues a copy of host pixel bytes into the pair's input
// buffer. The host slice must be exactly width*height*3 bytes.
func (d *Device) MemCopyH2D(s *Stream, p *BufferPair, host []byte) *Event {
	return s.enqueue("memcpy h2d", func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.released {
			return &TransferError{Dir: HostToDevice, Reason: "buffer pair already released"}
		}
		if len(host) != len(p.in) {
			return &TransferError{Dir: HostToDevice,
				Reason: fmt.Sprintf("host buffer is %d bytes, device input buffer is %d", len(host), len(p.in))}
		}
		copy(p.in, host)
		d.bytesCopied.Add(int64(len(host)))
		return nil
	})
}

// MemCopyD2H queues a copy of the pair's output buffer into dst. The dst
// slice must be exactly width*height bytes.
func (d *Device) MemCopyD2H(s *Stream, dst []byte, p *BufferPair) *Event {
	return s.enqueue("memcpy d2h", func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.released {
			return &TransferError{Dir: DeviceToHost, Reason: "buffer pair already released"}
		}
		if len(dst) != len(p.out) {
			return &TransferError{Dir: DeviceToHost,
				Reason: fmt.Sprintf("host buffer is %d bytes, device output buffer is %d", len(dst), len(p.out))}
		}
		copy(dst, p.out)
		d.bytesCopied.Add(int64(len(dst)))
		return nil
	})
}

package kernel

import (
	"fmt"

	"github.com/NadG17/cuda-rgb-greyscale-processor/pkg/device"
)

// Dispatcher binds one kernel variant and block shape for the lifetime of
// a batch and launches it against buffer pairs.
type Dispatcher struct {
	dev      *device.Device
	kern     Kernel
	blockDim int
}

// NewDispatcher selects the kernel for v once up front.
func NewDispatcher(dev *device.Device, v Variant, blockDim int) (*Dispatcher, error) {
	if blockDim == 0 {
		blockDim = DefaultBlockDim
	}
	if blockDim < 4 || blockDim > 32 || blockDim&(blockDim-1) != 0 {
		return nil, fmt.Errorf("block dimension must be a power of two in [4,32], got %d", blockDim)
	}
	return &Dispatcher{dev: dev, kern: ForVariant(v), blockDim: blockDim}, nil
}

// Name returns the bound kernel's variant name.
func (d *Dispatcher) Name() string { return d.kern.Name() }

// BlockDim returns the bound block edge length.
func (d *Dispatcher) BlockDim() int { return d.blockDim }

// Convert queues the greyscale kernel over p's full extent on s. The
// output lands in p's device-resident output buffer; the returned event
// fires when the launch retires.
func (d *Dispatcher) Convert(s *device.Stream, p *device.BufferPair) *device.Event {
	cfg := Configure(p.Width(), p.Height(), d.blockDim)
	args := Args{In: p.Input(), Out: p.Output(), Width: p.Width(), Height: p.Height()}
	return d.dev.Launch(s, d.kern.Name(), cfg.Grid.X, cfg.Grid.Y, func(bx, by int) {
		d.kern.RunBlock(args, cfg, bx, by)
	})
}

// Package kernel holds the RGB→greyscale device kernels and the
// dispatcher that launches them over a block grid.
package kernel

import (
	"fmt"
	"math"
	"strings"
)

// Variant selects a kernel implementation. The choice is made once per
// batch and threaded through the dispatcher, never branched per pixel.
type Variant int

const (
	// Naive reads every pixel's three input bytes straight from the
	// backing buffer, one worker per output pixel.
	Naive Variant = iota
	// SharedMemory stages each block's tile into a block-local buffer
	// before computing, cutting redundant reads of the backing store.
	// Output is byte-identical to Naive.
	SharedMemory
)

func (v Variant) String() string {
	if v == SharedMemory {
		return "shared-memory"
	}
	return "naive"
}

// ParseVariant parses a CLI mode string.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "naive", "":
		return Naive, nil
	case "shared", "shared-memory", "optimized":
		return SharedMemory, nil
	default:
		return Naive, fmt.Errorf("unknown kernel variant %q (want naive or shared)", s)
	}
}

// DefaultBlockDim is the edge length of a square worker block.
const DefaultBlockDim = 16

// Dim3 is a 2-D extent in the CUDA naming convention.
type Dim3 struct {
	X, Y int
}

// LaunchConfig fixes the block shape and derives the grid that covers
// every pixel of a width×height image, including partial edge blocks.
type LaunchConfig struct {
	Block Dim3
	Grid  Dim3
}

// Configure computes the launch configuration for an image. blockDim <= 0
// selects DefaultBlockDim.
func Configure(width, height, blockDim int) LaunchConfig {
	if blockDim <= 0 {
		blockDim = DefaultBlockDim
	}
	return LaunchConfig{
		Block: Dim3{X: blockDim, Y: blockDim},
		Grid: Dim3{
			X: (width + blockDim - 1) / blockDim,
			Y: (height + blockDim - 1) / blockDim,
		},
	}
}

// Args is the argument block handed to a kernel: the device-resident
// input (W×H×3 interleaved RGB) and output (W×H) buffers plus the image
// extent used for the bounds guard.
type Args struct {
	In     []byte
	Out    []byte
	Width  int
	Height int
}

// Kernel computes one block of output pixels. Implementations must no-op
// for any worker whose coordinates fall outside the image, and must all
// produce identical bytes for identical input.
type Kernel interface {
	// RunBlock executes block (bx,by) of the grid.
	RunBlock(a Args, cfg LaunchConfig, bx, by int)

	// Name returns the variant name for logging and error reporting.
	Name() string
}

// ForVariant returns the kernel implementation for v.
func ForVariant(v Variant) Kernel {
	if v == SharedMemory {
		return SharedMemoryKernel{}
	}
	return NaiveKernel{}
}

// luminance applies the ITU-R BT.601 weights with round-half-away
// rounding, clamped to [0,255]. Both kernel variants funnel through this
// one function so their outputs cannot drift apart.
func luminance(r, g, b byte) byte {
	l := math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
	if l > 255 {
		l = 255
	}
	return byte(l)
}

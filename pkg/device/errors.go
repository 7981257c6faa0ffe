package device

import (
	"errors"
	"fmt"
)

// Status codes carried by KernelError, numbered after the CUDA runtime
// codes they stand in for.
const (
	StatusInvalidConfiguration = 9
	StatusInvalidValue         = 11
	StatusLaunchFailure        = 719
)

// Direction of a host↔device transfer.
type Direction int

const (
	HostToDevice Direction = iota
	DeviceToHost
)

func (d Direction) String() string {
	if d == HostToDevice {
		return "host-to-device"
	}
	return "device-to-host"
}

// AllocationError reports device memory exhaustion. The requested buffer
// pair was not reserved; the caller must not proceed with the image.
type AllocationError struct {
	Requested uint64
	Free      uint64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("device out of memory: requested %d bytes, %d free", e.Requested, e.Free)
}

// TransferError reports a failed host↔device copy.
type TransferError struct {
	Dir    Direction
	Reason string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s transfer failed: %s", e.Dir, e.Reason)
}

// KernelError reports a kernel launch or execution fault together with the
// underlying device status code.
type KernelError struct {
	Kernel string
	Status int
	Reason string
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel %q failed (status %d): %s", e.Kernel, e.Status, e.Reason)
}

// Kind classifies an error from the device layer for failure reporting.
func Kind(err error) string {
	var ae *AllocationError
	var te *TransferError
	var ke *KernelError
	switch {
	case errors.As(err, &ae):
		return "allocation"
	case errors.As(err, &te):
		return "transfer"
	case errors.As(err, &ke):
		return "kernel"
	default:
		return "unknown"
	}
}

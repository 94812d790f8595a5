package gpu

import "errors"

var (
	// ErrNotAllocated is returned when buffers are used before Allocate.
	ErrNotAllocated = errors.New("particlert/gpu: buffers not allocated")

	// ErrKernelMissing is returned when a kernel source or pipeline is absent.
	ErrKernelMissing = errors.New("particlert/gpu: kernel missing")

	// ErrReadback is returned when mapping a readback buffer fails.
	ErrReadback = errors.New("particlert/gpu: readback failed")

	// ErrDispatchTooLarge is returned when a dispatch exceeds the per-dimension workgroup limit.
	ErrDispatchTooLarge = errors.New("particlert/gpu: dispatch exceeds workgroup limit")

	// ErrInvalidCapacity is returned for a zero particle capacity.
	ErrInvalidCapacity = errors.New("particlert/gpu: invalid capacity")
)

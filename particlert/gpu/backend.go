package gpu

import (
	"fmt"

	"github.com/gekko3d/gpuparticle/particlert/core"
)

// MaxWorkgroupsPerDimension is the WebGPU default limit on dispatch size.
const MaxWorkgroupsPerDimension = 65535

// Backend owns the particle buffers of one emitter and records kernel
// dispatches. Writes are visible to every dispatch recorded before the
// next Submit.
type Backend interface {
	// Allocate (re)creates every buffer for capacity particles, zeroes the
	// counter and seeds the update-dispatch arguments with {1,1,1}.
	Allocate(capacity uint32) error
	Release()

	WorkgroupSize(k Kernel) [3]uint32

	WriteEmitInfo(info core.EmitParticleInfo) error
	WriteParams(params core.KernelParams) error
	WriteDrawArgs(args core.IndirectArgumentBuffer) error

	Dispatch(k Kernel, groups [3]uint32) error
	// DispatchIndirect reads workgroup counts from the update-dispatch buffer.
	DispatchIndirect(k Kernel) error
	// SwapAliveLists exchanges the alive list with its secondary for every
	// later dispatch and draw.
	SwapAliveLists()

	Submit() error
	// Discard drops everything recorded since the last Submit.
	Discard()
	ReadCounter() (core.ParticleCounter, error)
}

// GroupsFor returns how many workgroups of size wg cover n invocations.
func GroupsFor(n, wg uint32) uint32 {
	if wg == 0 {
		wg = 1
	}
	groups := n / wg
	if n%wg != 0 {
		groups++
	}
	return groups
}

// CheckGroups rejects dispatches the device would refuse.
func CheckGroups(k Kernel, groups [3]uint32) error {
	for _, g := range groups {
		if g > MaxWorkgroupsPerDimension {
			return fmt.Errorf("%w: %s %v", ErrDispatchTooLarge, k, groups)
		}
	}
	return nil
}

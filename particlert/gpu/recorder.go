package gpu

import (
	"fmt"

	"github.com/gekko3d/gpuparticle/particlert/core"
)

type Op string

const (
	OpAllocate         Op = "allocate"
	OpRelease          Op = "release"
	OpWriteEmitInfo    Op = "write-emit-info"
	OpWriteParams      Op = "write-params"
	OpWriteDrawArgs    Op = "write-draw-args"
	OpDispatch         Op = "dispatch"
	OpDispatchIndirect Op = "dispatch-indirect"
	OpSwapAliveLists   Op = "swap-alive-lists"
	OpSubmit           Op = "submit"
	OpDiscard          Op = "discard"
	OpReadCounter      Op = "read-counter"
)

// Call is one recorded Backend call.
type Call struct {
	Op       Op
	Kernel   Kernel
	Groups   [3]uint32
	Capacity uint32
}

func (c Call) String() string {
	switch c.Op {
	case OpAllocate:
		return fmt.Sprintf("%s(%d)", c.Op, c.Capacity)
	case OpDispatch:
		return fmt.Sprintf("%s %s %v", c.Op, c.Kernel, c.Groups)
	case OpDispatchIndirect:
		return fmt.Sprintf("%s %s", c.Op, c.Kernel)
	}
	return string(c.Op)
}

// Recorder is a CPU Backend that records every call without running any
// kernel. It backs the emitter tests and dry runs.
type Recorder struct {
	// Workgroups overrides per-kernel workgroup sizes; zero entries report
	// FallbackWorkgroupSize.
	Workgroups [KernelCount][3]uint32
	// Counter is returned by ReadCounter. Allocate zeroes it.
	Counter core.ParticleCounter
	// FailOn makes the named operation return the error.
	FailOn map[Op]error

	Calls     []Call
	EmitInfos []core.EmitParticleInfo
	Params    []core.KernelParams
	DrawArgs  []core.IndirectArgumentBuffer

	capacity uint32
	alive    int
	pending  int
}

func NewRecorder() *Recorder {
	return &Recorder{FailOn: make(map[Op]error)}
}

func (r *Recorder) record(c Call) error {
	r.Calls = append(r.Calls, c)
	if err := r.FailOn[c.Op]; err != nil {
		return err
	}
	return nil
}

func (r *Recorder) Allocate(capacity uint32) error {
	if err := r.record(Call{Op: OpAllocate, Capacity: capacity}); err != nil {
		return err
	}
	if capacity == 0 {
		return ErrInvalidCapacity
	}
	r.capacity = capacity
	r.Counter = core.ParticleCounter{}
	r.alive = 0
	return nil
}

func (r *Recorder) Release() {
	r.Calls = append(r.Calls, Call{Op: OpRelease})
	r.capacity = 0
	r.pending = 0
}

func (r *Recorder) Capacity() uint32 { return r.capacity }

// AliveIndex is 0 or 1 depending on how many swaps have been recorded
// since the last Allocate.
func (r *Recorder) AliveIndex() int { return r.alive }

func (r *Recorder) WorkgroupSize(k Kernel) [3]uint32 {
	if k >= 0 && k < KernelCount && r.Workgroups[k] != ([3]uint32{}) {
		return r.Workgroups[k]
	}
	return FallbackWorkgroupSize
}

func (r *Recorder) WriteEmitInfo(info core.EmitParticleInfo) error {
	if err := r.record(Call{Op: OpWriteEmitInfo}); err != nil {
		return err
	}
	if r.capacity == 0 {
		return ErrNotAllocated
	}
	r.EmitInfos = append(r.EmitInfos, info)
	return nil
}

func (r *Recorder) WriteParams(params core.KernelParams) error {
	if err := r.record(Call{Op: OpWriteParams}); err != nil {
		return err
	}
	if r.capacity == 0 {
		return ErrNotAllocated
	}
	r.Params = append(r.Params, params)
	return nil
}

func (r *Recorder) WriteDrawArgs(args core.IndirectArgumentBuffer) error {
	if err := r.record(Call{Op: OpWriteDrawArgs}); err != nil {
		return err
	}
	if r.capacity == 0 {
		return ErrNotAllocated
	}
	r.DrawArgs = append(r.DrawArgs, args)
	return nil
}

func (r *Recorder) Dispatch(k Kernel, groups [3]uint32) error {
	if err := r.record(Call{Op: OpDispatch, Kernel: k, Groups: groups}); err != nil {
		return err
	}
	if r.capacity == 0 {
		return ErrNotAllocated
	}
	if k < 0 || k >= KernelCount {
		return fmt.Errorf("%w: %s", ErrKernelMissing, k)
	}
	if err := CheckGroups(k, groups); err != nil {
		r.pending = 0
		return err
	}
	r.pending++
	return nil
}

func (r *Recorder) DispatchIndirect(k Kernel) error {
	if err := r.record(Call{Op: OpDispatchIndirect, Kernel: k}); err != nil {
		return err
	}
	if r.capacity == 0 {
		return ErrNotAllocated
	}
	if k < 0 || k >= KernelCount {
		return fmt.Errorf("%w: %s", ErrKernelMissing, k)
	}
	r.pending++
	return nil
}

func (r *Recorder) SwapAliveLists() {
	r.Calls = append(r.Calls, Call{Op: OpSwapAliveLists})
	r.alive = 1 - r.alive
}

func (r *Recorder) Submit() error {
	if err := r.record(Call{Op: OpSubmit}); err != nil {
		return err
	}
	r.pending = 0
	return nil
}

func (r *Recorder) Discard() {
	r.Calls = append(r.Calls, Call{Op: OpDiscard})
	r.pending = 0
}

// Pending is the number of dispatches recorded since the last Submit or
// Discard.
func (r *Recorder) Pending() int { return r.pending }

func (r *Recorder) ReadCounter() (core.ParticleCounter, error) {
	if err := r.record(Call{Op: OpReadCounter}); err != nil {
		return core.ParticleCounter{}, err
	}
	if r.capacity == 0 {
		return core.ParticleCounter{}, ErrNotAllocated
	}
	return r.Counter, nil
}

// Dispatches returns the recorded direct and indirect dispatches in order.
func (r *Recorder) Dispatches() []Call {
	var out []Call
	for _, c := range r.Calls {
		if c.Op == OpDispatch || c.Op == OpDispatchIndirect {
			out = append(out, c)
		}
	}
	return out
}

// Ops lists the recorded operations in order.
func (r *Recorder) Ops() []Op {
	out := make([]Op, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.Op
	}
	return out
}

// Reset clears the recorded history but keeps the allocation state.
func (r *Recorder) Reset() {
	r.Calls = nil
	r.EmitInfos = nil
	r.Params = nil
	r.DrawArgs = nil
}

var _ Backend = (*Recorder)(nil)

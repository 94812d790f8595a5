package gpu

import (
	"errors"
	"math"
	"testing"

	"github.com/gekko3d/gpuparticle/particlert/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRequiresAllocation(t *testing.T) {
	r := NewRecorder()
	assert.ErrorIs(t, r.Dispatch(KernelEmitCount, [3]uint32{1, 1, 1}), ErrNotAllocated)
	assert.ErrorIs(t, r.DispatchIndirect(KernelUpdateParticle), ErrNotAllocated)
	assert.ErrorIs(t, r.WriteEmitInfo(core.EmitParticleInfo{}), ErrNotAllocated)
	_, err := r.ReadCounter()
	assert.ErrorIs(t, err, ErrNotAllocated)
	assert.ErrorIs(t, r.Allocate(0), ErrInvalidCapacity)
}

func TestRecorderRecordsCalls(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Allocate(128))
	require.NoError(t, r.WriteDrawArgs(core.DrawArgs(6)))
	require.NoError(t, r.Dispatch(KernelEmitCount, [3]uint32{1, 1, 1}))
	require.NoError(t, r.DispatchIndirect(KernelUpdateParticle))
	r.SwapAliveLists()
	require.NoError(t, r.Submit())

	assert.Equal(t, []Op{OpAllocate, OpWriteDrawArgs, OpDispatch, OpDispatchIndirect, OpSwapAliveLists, OpSubmit}, r.Ops())
	assert.Equal(t, uint32(128), r.Capacity())
	assert.Equal(t, 1, r.AliveIndex())
	require.Len(t, r.DrawArgs, 1)
	assert.Equal(t, uint32(6), r.DrawArgs[0].IndexCount())

	d := r.Dispatches()
	require.Len(t, d, 2)
	assert.Equal(t, "dispatch EmitCount [1 1 1]", d[0].String())
	assert.Equal(t, "dispatch-indirect UpdateParticle", d[1].String())

	r.Reset()
	assert.Empty(t, r.Calls)
	assert.Equal(t, uint32(128), r.Capacity())
}

func TestRecorderWorkgroupsAndFailures(t *testing.T) {
	r := NewRecorder()
	assert.Equal(t, FallbackWorkgroupSize, r.WorkgroupSize(KernelEmitParticle))
	r.Workgroups[KernelEmitParticle] = [3]uint32{64, 1, 1}
	assert.Equal(t, [3]uint32{64, 1, 1}, r.WorkgroupSize(KernelEmitParticle))

	boom := errors.New("device lost")
	r.FailOn[OpSubmit] = boom
	require.NoError(t, r.Allocate(8))
	assert.ErrorIs(t, r.Submit(), boom)
	assert.ErrorIs(t, r.Dispatch(KernelEmitParticle, [3]uint32{70000, 1, 1}), ErrDispatchTooLarge)

	r.Counter = core.ParticleCounter{AliveListCount: 3, DeadListCount: 5}
	c, err := r.ReadCounter()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), c.Total())
}

func TestRecorderDiscard(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Allocate(64))
	require.NoError(t, r.Dispatch(KernelEmitCount, [3]uint32{1, 1, 1}))
	assert.Equal(t, 1, r.Pending())
	r.Discard()
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, OpDiscard, r.Calls[len(r.Calls)-1].Op)

	require.NoError(t, r.Dispatch(KernelEmitCount, [3]uint32{1, 1, 1}))
	assert.ErrorIs(t, r.Dispatch(KernelEmitParticle, [3]uint32{MaxWorkgroupsPerDimension + 1, 1, 1}), ErrDispatchTooLarge)
	assert.Equal(t, 0, r.Pending())
}

func TestGroupsForDoesNotOverflow(t *testing.T) {
	assert.Equal(t, uint32(67108864), GroupsFor(math.MaxUint32, 64))
	assert.Equal(t, uint32(16777216), GroupsFor(math.MaxUint32-10, 256))
	assert.Equal(t, uint32(math.MaxUint32), GroupsFor(math.MaxUint32, 0))
	assert.ErrorIs(t, CheckGroups(KernelEmitParticle, [3]uint32{GroupsFor(math.MaxUint32, 64), 1, 1}), ErrDispatchTooLarge)
}

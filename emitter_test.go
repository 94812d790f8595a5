package gpuparticle

import (
	"errors"
	"math"
	"testing"

	"github.com/gekko3d/gpuparticle/particlert/core"
	"github.com/gekko3d/gpuparticle/particlert/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmitter(t *testing.T, mutate func(*EmitterConfig)) (*Emitter, *gpu.Recorder) {
	t.Helper()
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 1000
	cfg.EmitRate = 0
	if mutate != nil {
		mutate(&cfg)
	}
	rec := gpu.NewRecorder()
	rec.Workgroups[gpu.KernelInitDeadList] = [3]uint32{256, 1, 1}
	rec.Workgroups[gpu.KernelEmitParticle] = [3]uint32{64, 1, 1}

	e, err := NewEmitter(cfg, rec, nil)
	require.NoError(t, err)
	return e, rec
}

func TestStartSeedsDeadList(t *testing.T) {
	e, rec := newTestEmitter(t, nil)
	require.NoError(t, e.Start(NewTransform()))

	assert.Equal(t, []gpu.Op{gpu.OpAllocate, gpu.OpWriteParams, gpu.OpDispatch, gpu.OpSubmit}, rec.Ops())
	assert.Equal(t, uint32(1000), rec.Calls[0].Capacity)
	assert.Equal(t, gpu.KernelInitDeadList, rec.Calls[2].Kernel)
	assert.Equal(t, [3]uint32{4, 1, 1}, rec.Calls[2].Groups)
	assert.Equal(t, uint32(1000), rec.Params[0].MaxParticles)

	// Start is idempotent.
	require.NoError(t, e.Start(NewTransform()))
	assert.Len(t, rec.Calls, 4)
}

func TestStepDispatchOrder(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) {
		c.EmitRate = 20
		c.IndexCount = 36
	})
	require.NoError(t, e.Start(NewTransform()))
	rec.Reset()

	report, err := e.Step(0.25, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, StepReport{EmitCount: 5, EmitGroups: 1}, report)

	assert.Equal(t, []gpu.Op{
		gpu.OpWriteEmitInfo,
		gpu.OpWriteParams,
		gpu.OpDispatch,
		gpu.OpDispatch,
		gpu.OpWriteDrawArgs,
		gpu.OpDispatchIndirect,
		gpu.OpSwapAliveLists,
		gpu.OpDispatch,
		gpu.OpSubmit,
	}, rec.Ops())

	d := rec.Dispatches()
	require.Len(t, d, 4)
	assert.Equal(t, gpu.Call{Op: gpu.OpDispatch, Kernel: gpu.KernelEmitCount, Groups: [3]uint32{1, 1, 1}}, d[0])
	assert.Equal(t, gpu.Call{Op: gpu.OpDispatch, Kernel: gpu.KernelEmitParticle, Groups: [3]uint32{1, 1, 1}}, d[1])
	assert.Equal(t, gpu.Call{Op: gpu.OpDispatchIndirect, Kernel: gpu.KernelUpdateParticle}, d[2])
	assert.Equal(t, gpu.Call{Op: gpu.OpDispatch, Kernel: gpu.KernelSetDrawArgs, Groups: [3]uint32{1, 1, 1}}, d[3])

	require.Len(t, rec.DrawArgs, 1)
	assert.Equal(t, core.DrawArgs(36), rec.DrawArgs[0])
	assert.Equal(t, 1, rec.AliveIndex())
	require.Len(t, rec.Params, 1)
	assert.Equal(t, float32(0.25), rec.Params[0].Time)
}

func TestEmitGroupsRoundUp(t *testing.T) {
	e, rec := newTestEmitter(t, nil)
	require.NoError(t, e.Start(NewTransform()))
	rec.Reset()

	e.WantEmit(130)
	report, err := e.Step(0.1, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(130), report.EmitCount)
	assert.Equal(t, uint32(3), report.EmitGroups)
	assert.Equal(t, [3]uint32{3, 1, 1}, rec.Dispatches()[1].Groups)
}

func TestFractionalEmissionCarries(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) { c.EmitRate = 10 })
	require.NoError(t, e.Start(NewTransform()))

	r1, err := e.Step(0.25, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), r1.EmitCount)
	assert.InDelta(t, 0.5, e.Pending(), 1e-6)

	r2, err := e.Step(0.25, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(3), r2.EmitCount)
	assert.InDelta(t, 0, e.Pending(), 1e-6)

	require.Len(t, rec.EmitInfos, 2)
	assert.Equal(t, uint32(2), rec.EmitInfos[0].EmitCount)
	assert.Equal(t, uint32(3), rec.EmitInfos[1].EmitCount)
}

func TestNoEmitParticleWhenNothingDue(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) { c.EmitRate = 1 })
	require.NoError(t, e.Start(NewTransform()))
	rec.Reset()

	report, err := e.Step(0.25, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), report.EmitCount)
	for _, c := range rec.Dispatches() {
		assert.NotEqual(t, gpu.KernelEmitParticle, c.Kernel)
	}
	assert.Len(t, rec.Dispatches(), 3)
}

func TestWantEmitClampsToCapacity(t *testing.T) {
	e, _ := newTestEmitter(t, func(c *EmitterConfig) { c.MaxParticles = 100 })
	require.NoError(t, e.Start(NewTransform()))

	e.WantEmit(500)
	assert.Equal(t, float32(100), e.Pending())
	e.WantEmit(100)

	report, err := e.Step(0.1, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(100), report.EmitCount)
	// The whole part is consumed even when the request was clamped.
	assert.Equal(t, float32(0), e.Pending())
}

func TestEmitInfoFields(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) {
		c.ConeEmitDegree = 90
		c.BoxEmitSize = mgl32.Vec3{2, 4, 6}
		c.Lifespan = 3
		c.StartVelocity = 7
		c.Acceleration = mgl32.Vec3{0, -9.8, 0}
		c.ScaleRandomness = 0.25
		c.Radius = 1.5
		c.EmitKind = core.EmitBox
	})
	start := NewTransform()
	start.Position = mgl32.Vec3{1, 2, 3}
	require.NoError(t, e.Start(start))

	tr := NewTransform()
	tr.Position = mgl32.Vec3{4, 5, 6}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.Rotation = mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{1, 0, 0})
	_, err := e.Step(0.02, tr)
	require.NoError(t, err)

	info := rec.EmitInfos[0]
	assert.InDelta(t, math.Pi/2, info.ConeEmitAngle, 1e-6)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, info.BoxEmitSize)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, info.PrevPosition)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, info.OriginPos)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, info.Scale)
	assert.Equal(t, float32(0.02), info.Dt)
	assert.Equal(t, float32(3), info.Lifespan)
	assert.Equal(t, float32(7), info.StartVelocity)
	assert.Equal(t, float32(0.25), info.ScaleRandom)
	assert.Equal(t, float32(1.5), info.Radius)
	assert.Equal(t, core.EmitBox, info.EmitKind)
	assert.InDelta(t, 0, info.ForwardDir.X(), 1e-5)
	assert.InDelta(t, 0, info.ForwardDir.Y(), 1e-5)
	assert.InDelta(t, 1, info.ForwardDir.Z(), 1e-5)
	assert.True(t, info.Rotation.ApproxEqualThreshold(tr.Rotation, 1e-6))
	assert.Equal(t, info, e.LastEmitInfo())

	_, err = e.Step(0.02, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, rec.EmitInfos[1].PrevPosition)
}

func TestResetRebuildsPool(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) { c.EmitRate = 4 })
	require.NoError(t, e.Start(NewTransform()))
	rec.Reset()

	require.NoError(t, e.SetMaxParticles(50))
	report, err := e.Step(0.5, NewTransform())
	require.NoError(t, err)
	assert.True(t, report.Reset)
	assert.Equal(t, []gpu.Op{gpu.OpRelease, gpu.OpAllocate, gpu.OpWriteParams, gpu.OpDispatch, gpu.OpSubmit}, rec.Ops())
	assert.Equal(t, uint32(50), rec.Calls[1].Capacity)
	assert.Equal(t, [3]uint32{1, 1, 1}, rec.Calls[3].Groups)
	// Emission accumulated during the reset step is kept.
	assert.Equal(t, float32(2), e.Pending())

	rec.Reset()
	report, err = e.Step(0.5, NewTransform())
	require.NoError(t, err)
	assert.False(t, report.Reset)
	assert.Equal(t, uint32(4), report.EmitCount)

	e.WantReset()
	report, err = e.Step(0.5, NewTransform())
	require.NoError(t, err)
	assert.True(t, report.Reset)

	assert.ErrorIs(t, e.SetMaxParticles(0), ErrInvalidConfig)
}

func TestSetConfig(t *testing.T) {
	e, rec := newTestEmitter(t, nil)
	require.NoError(t, e.Start(NewTransform()))

	cfg := e.Config()
	cfg.Lifespan = 9
	require.NoError(t, e.SetConfig(cfg))
	rec.Reset()
	report, err := e.Step(0.1, NewTransform())
	require.NoError(t, err)
	assert.False(t, report.Reset)
	assert.Equal(t, float32(9), rec.EmitInfos[0].Lifespan)

	cfg.MaxParticles = 10
	require.NoError(t, e.SetConfig(cfg))
	report, err = e.Step(0.1, NewTransform())
	require.NoError(t, err)
	assert.True(t, report.Reset)

	cfg.ScaleRandomness = 2
	assert.ErrorIs(t, e.SetConfig(cfg), ErrInvalidConfig)
}

func TestEmitterLifecycleErrors(t *testing.T) {
	_, err := NewEmitter(EmitterConfig{}, gpu.NewRecorder(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewEmitter(DefaultEmitterConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	e, rec := newTestEmitter(t, nil)
	_, err = e.Step(0.1, NewTransform())
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = e.Counters()
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, e.Start(NewTransform()))
	rec.Counter = core.ParticleCounter{AliveListCount: 10, DeadListCount: 990}
	c, err := e.Counters()
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), c.Total())

	boom := errors.New("device lost")
	rec.FailOn[gpu.OpSubmit] = boom
	_, err = e.Step(0.1, NewTransform())
	assert.ErrorIs(t, err, boom)

	e.Close()
	e.Close()
	assert.Equal(t, gpu.OpRelease, rec.Calls[len(rec.Calls)-1].Op)
	_, err = e.Step(0.1, NewTransform())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, e.Start(NewTransform()), ErrClosed)
	_, err = e.Counters()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStartFailureIsReported(t *testing.T) {
	e, rec := newTestEmitter(t, nil)
	rec.FailOn[gpu.OpAllocate] = gpu.ErrInvalidCapacity
	err := e.Start(NewTransform())
	assert.ErrorIs(t, err, gpu.ErrInvalidCapacity)
	_, err = e.Step(0.1, NewTransform())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestEmitterLogs(t *testing.T) {
	log := &captureLogger{}
	e, err := NewEmitter(DefaultEmitterConfig(), gpu.NewRecorder(), log)
	require.NoError(t, err)
	require.NoError(t, e.Start(NewTransform()))
	e.WantReset()
	_, err = e.Step(0.1, NewTransform())
	require.NoError(t, err)

	lines := log.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO: emitter "+e.ID.String()[:8]+": started: 10000 particles, cone emission", lines[0])
	assert.Contains(t, lines[1], "rebuilding pool with 10000 particles")
}

func TestCapacityBeyondDispatchLimitIsRejected(t *testing.T) {
	rec := gpu.NewRecorder()
	rec.Workgroups[gpu.KernelInitDeadList] = [3]uint32{256, 1, 1}
	rec.Workgroups[gpu.KernelEmitParticle] = [3]uint32{64, 1, 1}
	limit := uint32(gpu.MaxWorkgroupsPerDimension * 64)

	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 5_000_000
	_, err := NewEmitter(cfg, rec, nil)
	assert.ErrorIs(t, err, gpu.ErrDispatchTooLarge)

	cfg.MaxParticles = limit
	e, err := NewEmitter(cfg, rec, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start(NewTransform()))

	assert.ErrorIs(t, e.SetMaxParticles(limit+1), gpu.ErrDispatchTooLarge)
	cfg.MaxParticles = limit + 1
	assert.ErrorIs(t, e.SetConfig(cfg), gpu.ErrDispatchTooLarge)
	assert.Equal(t, limit, e.Config().MaxParticles)

	e.WantEmit(limit)
	report, err := e.Step(0.02, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(gpu.MaxWorkgroupsPerDimension), report.EmitGroups)
}

func TestFailedStepIsDiscarded(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) { c.EmitRate = 10 })
	require.NoError(t, e.Start(NewTransform()))
	rec.Reset()

	boom := errors.New("device lost")
	rec.FailOn[gpu.OpSubmit] = boom
	moved := NewTransform()
	moved.Position = mgl32.Vec3{1, 0, 0}
	_, err := e.Step(0.25, moved)
	require.ErrorIs(t, err, boom)

	ops := rec.Ops()
	assert.Equal(t, gpu.OpDiscard, ops[len(ops)-1])
	assert.Equal(t, 0, rec.Pending())
	assert.Equal(t, 0, rec.AliveIndex())
	assert.InDelta(t, 2.5, e.Pending(), 1e-6)

	delete(rec.FailOn, gpu.OpSubmit)
	rec.Reset()
	report, err := e.Step(0.25, NewTransform())
	require.NoError(t, err)
	assert.Equal(t, uint32(5), report.EmitCount)
	assert.Equal(t, mgl32.Vec3{}, rec.EmitInfos[0].PrevPosition)
	assert.Equal(t, 1, rec.AliveIndex())
}

func TestPendingEmissionIsBounded(t *testing.T) {
	e, rec := newTestEmitter(t, func(c *EmitterConfig) { c.MaxParticles = 100 })
	require.NoError(t, e.Start(NewTransform()))
	rec.FailOn[gpu.OpWriteEmitInfo] = errors.New("lost")

	for i := 0; i < 3; i++ {
		e.WantEmit(100)
		_, err := e.Step(0.02, NewTransform())
		require.Error(t, err)
		assert.Equal(t, float32(100), e.Pending())
	}
}

// Package gpuparticle drives GPU particle emitters. The host side only
// fills the emission request, resets the draw arguments and records the
// kernel dispatches; spawning, simulation and compaction run in the
// compute kernels supplied to the backend.
package gpuparticle

import (
	"fmt"
	"math"

	"github.com/gekko3d/gpuparticle/particlert/core"
	"github.com/gekko3d/gpuparticle/particlert/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// StepReport describes what one Step recorded.
type StepReport struct {
	// Reset is set when the step rebuilt the buffers instead of simulating.
	Reset      bool
	EmitCount  uint32
	EmitGroups uint32
}

// Emitter owns one particle pool on a Backend. It is not safe for
// concurrent use.
type Emitter struct {
	ID uuid.UUID

	cfg     EmitterConfig
	backend gpu.Backend
	log     Logger

	started bool
	closed  bool
	reset   bool

	emitAcc      float32
	elapsed      float32
	prevPosition mgl32.Vec3
	lastInfo     core.EmitParticleInfo
}

func NewEmitter(cfg EmitterConfig, backend gpu.Backend, logger Logger) (*Emitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidConfig)
	}
	if err := checkCapacity(backend, cfg.MaxParticles); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	id := uuid.New()
	return &Emitter{
		ID:      id,
		cfg:     cfg,
		backend: backend,
		log:     WithPrefix(logger, "emitter "+id.String()[:8]),
	}, nil
}

// checkCapacity rejects pools whose dead-list seeding or full-pool emission
// would need more workgroups than one dispatch dimension allows.
func checkCapacity(backend gpu.Backend, capacity uint32) error {
	for _, k := range []gpu.Kernel{gpu.KernelInitDeadList, gpu.KernelEmitParticle} {
		wg := backend.WorkgroupSize(k)
		if groups := gpu.GroupsFor(capacity, wg[0]); groups > gpu.MaxWorkgroupsPerDimension {
			return fmt.Errorf("%w: %d particles need %d %s workgroups of %d", gpu.ErrDispatchTooLarge, capacity, groups, k, wg[0])
		}
	}
	return nil
}

func (e *Emitter) Config() EmitterConfig { return e.cfg }

// SetConfig replaces the config. A changed MaxParticles rebuilds the pool
// on the next Step; every other field applies from the next Step.
func (e *Emitter) SetConfig(cfg EmitterConfig) error {
	if e.closed {
		return ErrClosed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := checkCapacity(e.backend, cfg.MaxParticles); err != nil {
		return err
	}
	if cfg.MaxParticles != e.cfg.MaxParticles {
		e.reset = true
	}
	e.cfg = cfg
	return nil
}

// Start allocates the pool and seeds the dead list. The first Step uses
// tr.Position as the previous position.
func (e *Emitter) Start(tr Transform) error {
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	if err := e.allocate(); err != nil {
		return err
	}
	e.started = true
	e.prevPosition = tr.Position
	e.log.Infof("started: %d particles, %s emission", e.cfg.MaxParticles, e.cfg.EmitKind)
	return nil
}

func (e *Emitter) allocate() error {
	capacity := e.cfg.MaxParticles
	if err := checkCapacity(e.backend, capacity); err != nil {
		return err
	}
	if err := e.backend.Allocate(capacity); err != nil {
		return fmt.Errorf("allocate %d particles: %w", capacity, err)
	}
	if err := e.backend.WriteParams(e.params()); err != nil {
		return fmt.Errorf("init params: %w", err)
	}
	wg := e.backend.WorkgroupSize(gpu.KernelInitDeadList)
	groups := [3]uint32{gpu.GroupsFor(capacity, wg[0]), 1, 1}
	if err := e.backend.Dispatch(gpu.KernelInitDeadList, groups); err != nil {
		return fmt.Errorf("init dead list: %w", err)
	}
	if err := e.backend.Submit(); err != nil {
		return fmt.Errorf("init dead list: %w", err)
	}
	e.reset = false
	return nil
}

// WantEmit requests n extra particles on top of the emission rate. A single
// request never exceeds the pool capacity.
func (e *Emitter) WantEmit(n uint32) {
	if n > e.cfg.MaxParticles {
		n = e.cfg.MaxParticles
	}
	e.emitAcc += float32(n)
}

// WantReset drops every live particle on the next Step.
func (e *Emitter) WantReset() { e.reset = true }

// SetMaxParticles resizes the pool on the next Step.
func (e *Emitter) SetMaxParticles(n uint32) error {
	if n == 0 {
		return fmt.Errorf("%w: max_particles must be positive", ErrInvalidConfig)
	}
	if err := checkCapacity(e.backend, n); err != nil {
		return err
	}
	e.cfg.MaxParticles = n
	e.reset = true
	return nil
}

// Pending is the accumulated emission not yet handed to the kernels.
func (e *Emitter) Pending() float32 { return e.emitAcc }

// LastEmitInfo is the emission request written by the latest Step.
func (e *Emitter) LastEmitInfo() core.EmitParticleInfo { return e.lastInfo }

func (e *Emitter) params() core.KernelParams {
	return core.KernelParams{Time: e.elapsed, MaxParticles: e.cfg.MaxParticles}
}

func (e *Emitter) emitInfo(count uint32, dt float32, tr Transform) core.EmitParticleInfo {
	rot := tr.Rotation.Normalize()
	return core.EmitParticleInfo{
		EmitCount:     count,
		Lifespan:      e.cfg.Lifespan,
		Dt:            dt,
		Scale:         tr.Scale,
		StartVelocity: e.cfg.StartVelocity,
		OriginPos:     tr.Position,
		Radius:        e.cfg.Radius,
		ForwardDir:    tr.EmitDirection(),
		ScaleRandom:   e.cfg.ScaleRandomness,
		Acceleration:  e.cfg.Acceleration,
		ConeEmitAngle: mgl32.DegToRad(e.cfg.ConeEmitDegree),
		PrevPosition:  e.prevPosition,
		EmitKind:      e.cfg.EmitKind,
		Rotation:      rot,
		BoxEmitSize:   e.cfg.BoxEmitSize.Mul(0.5),
	}
}

// Step advances the simulation by dt seconds with the emitter at tr. A
// failed step discards whatever it recorded and keeps the pending emission
// for the next one.
func (e *Emitter) Step(dt float32, tr Transform) (StepReport, error) {
	if e.closed {
		return StepReport{}, ErrClosed
	}
	if !e.started {
		return StepReport{}, ErrNotStarted
	}
	e.emitAcc += e.cfg.EmitRate * dt
	if limit := float32(e.cfg.MaxParticles); e.emitAcc > limit {
		e.emitAcc = limit
	}
	e.elapsed += dt

	if e.reset {
		e.log.Debugf("rebuilding pool with %d particles", e.cfg.MaxParticles)
		e.backend.Release()
		if err := e.allocate(); err != nil {
			return StepReport{}, err
		}
		return StepReport{Reset: true}, nil
	}

	whole := float32(math.Floor(float64(e.emitAcc)))
	report, err := e.record(uint32(whole), dt, tr)
	if err != nil {
		e.backend.Discard()
		return report, err
	}
	e.prevPosition = tr.Position
	e.emitAcc -= whole
	return report, nil
}

// record writes one step's buffers and dispatches and submits them.
func (e *Emitter) record(count uint32, dt float32, tr Transform) (StepReport, error) {
	info := e.emitInfo(count, dt, tr)
	if err := e.backend.WriteEmitInfo(info); err != nil {
		return StepReport{}, fmt.Errorf("write emit info: %w", err)
	}
	if err := e.backend.WriteParams(e.params()); err != nil {
		return StepReport{}, fmt.Errorf("write params: %w", err)
	}
	e.lastInfo = info

	report := StepReport{EmitCount: count}
	if err := e.backend.Dispatch(gpu.KernelEmitCount, [3]uint32{1, 1, 1}); err != nil {
		return report, err
	}
	if count > 0 {
		wg := e.backend.WorkgroupSize(gpu.KernelEmitParticle)
		report.EmitGroups = gpu.GroupsFor(count, wg[0])
		if err := e.backend.Dispatch(gpu.KernelEmitParticle, [3]uint32{report.EmitGroups, 1, 1}); err != nil {
			return report, err
		}
	}

	if err := e.backend.WriteDrawArgs(core.DrawArgs(e.cfg.IndexCount)); err != nil {
		return report, fmt.Errorf("write draw args: %w", err)
	}
	if err := e.backend.DispatchIndirect(gpu.KernelUpdateParticle); err != nil {
		return report, err
	}
	// The lists swap back when the step is dropped after this point.
	e.backend.SwapAliveLists()
	if err := e.backend.Dispatch(gpu.KernelSetDrawArgs, [3]uint32{1, 1, 1}); err != nil {
		e.backend.SwapAliveLists()
		return report, err
	}
	if err := e.backend.Submit(); err != nil {
		e.backend.SwapAliveLists()
		return report, fmt.Errorf("submit: %w", err)
	}
	return report, nil
}

// Counters reads the particle counter back from the GPU. It blocks until
// every recorded step has run.
func (e *Emitter) Counters() (core.ParticleCounter, error) {
	if e.closed {
		return core.ParticleCounter{}, ErrClosed
	}
	if !e.started {
		return core.ParticleCounter{}, ErrNotStarted
	}
	return e.backend.ReadCounter()
}

// Close releases the pool. Further calls return ErrClosed.
func (e *Emitter) Close() {
	if e.closed {
		return
	}
	if e.started {
		e.backend.Release()
	}
	e.closed = true
	e.log.Debugf("closed")
}

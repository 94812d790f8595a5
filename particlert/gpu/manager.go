package gpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/gpuparticle/particlert/core"
	"github.com/gekko3d/gpuparticle/particlert/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"
)

// FallbackWorkgroupSize is used when a kernel's @workgroup_size cannot be
// reflected. It matches the WebGPU default invocation limit.
var FallbackWorkgroupSize = [3]uint32{256, 1, 1}

// Logger is the subset of the emitter logger the manager reports through.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Manager is the WebGPU Backend. Kernels bind the slots of the shared header
// through one bind group layout per BindingSet, and each dispatch runs in its
// own compute pass so storage writes are visible to the next one.
type Manager struct {
	Device *wgpu.Device
	Label  string

	EmitInfoBuf     *wgpu.Buffer
	CounterBuf      *wgpu.Buffer
	PoolBuf         *wgpu.Buffer
	DeadListBuf     *wgpu.Buffer
	AliveBufs       [2]*wgpu.Buffer
	DrawArgsBuf     *wgpu.Buffer
	DispatchArgsBuf *wgpu.Buffer
	ParamsBuf       *wgpu.Buffer
	ReadbackBuf     *wgpu.Buffer

	log        Logger
	workgroups [KernelCount][3]uint32

	layouts         [BindingSetCount]*wgpu.BindGroupLayout
	pipelineLayouts [BindingSetCount]*wgpu.PipelineLayout
	pipelines       [KernelCount]*wgpu.ComputePipeline

	// bindGroups[set][i] binds AliveBufs[i] as the alive list and the other
	// as its secondary.
	bindGroups [BindingSetCount][2]*wgpu.BindGroup
	current    int

	capacity uint32
	encoder  *wgpu.CommandEncoder
}

// NewManager compiles every kernel against the shared header. Workgroup
// sizes are reflected from each kernel's entry point.
func NewManager(device *wgpu.Device, sources KernelSources, log Logger) (*Manager, error) {
	if err := sources.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = nopLogger{}
	}
	m := &Manager{
		Device: device,
		Label:  "particles-" + uuid.NewString()[:8],
		log:    log,
	}
	if err := m.createLayouts(); err != nil {
		m.Destroy()
		return nil, err
	}
	for k := Kernel(0); k < KernelCount; k++ {
		src := shaders.WithHeader(sources[k])
		m.workgroups[k] = reflectWorkgroup(k, src, log)
		if err := m.createPipeline(k, src); err != nil {
			m.Destroy()
			return nil, err
		}
	}
	return m, nil
}

func reflectWorkgroup(k Kernel, src string, log Logger) [3]uint32 {
	r, err := shaders.Reflect(src)
	if err == nil {
		var wg [3]uint32
		if wg, err = r.WorkgroupSize(k.EntryPoint()); err == nil {
			log.Debugf("kernel %s workgroup %v", k, wg)
			return wg
		}
	}
	log.Warnf("kernel %s: cannot reflect workgroup size (%v), assuming %v", k, err, FallbackWorkgroupSize)
	return FallbackWorkgroupSize
}

func (m *Manager) createLayouts() error {
	for set := BindingSet(0); set < BindingSetCount; set++ {
		var entries []wgpu.BindGroupLayoutEntry
		for _, b := range set.Bindings() {
			typ := wgpu.BufferBindingTypeStorage
			if b == shaders.BindingParams {
				typ = wgpu.BufferBindingTypeUniform
			}
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding:    b,
				Visibility: wgpu.ShaderStageCompute,
				Buffer:     wgpu.BufferBindingLayout{Type: typ},
			})
		}
		var err error
		m.layouts[set], err = m.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s BGL%d", m.Label, set),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("create bind group layout %d: %w", set, err)
		}
		m.pipelineLayouts[set], err = m.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            fmt.Sprintf("%s layout%d", m.Label, set),
			BindGroupLayouts: []*wgpu.BindGroupLayout{m.layouts[set]},
		})
		if err != nil {
			return fmt.Errorf("create pipeline layout %d: %w", set, err)
		}
	}
	return nil
}

func (m *Manager) createPipeline(k Kernel, src string) error {
	module, err := m.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          k.FileName(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return fmt.Errorf("compile %s: %w", k, err)
	}
	defer module.Release()

	m.pipelines[k], err = m.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  m.Label + " " + k.String(),
		Layout: m.pipelineLayouts[k.BindingSet()],
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: k.EntryPoint(),
		},
	})
	if err != nil {
		return fmt.Errorf("create pipeline %s: %w", k, err)
	}
	return nil
}

// ensureBuffer grows buf to at least size bytes and reports whether it was
// recreated. Contents are not preserved across growth.
func (m *Manager) ensureBuffer(name string, buf **wgpu.Buffer, size uint64, usage wgpu.BufferUsage) (bool, error) {
	if size%4 != 0 {
		size += 4 - size%4
	}
	current := *buf
	if current != nil && current.GetSize() >= size {
		return false, nil
	}
	if current != nil {
		current.Release()
	}
	newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            m.Label + " " + name,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		*buf = nil
		return false, fmt.Errorf("create buffer %s: %w", name, err)
	}
	*buf = newBuf
	return true, nil
}

func (m *Manager) write(name string, buf *wgpu.Buffer, data []byte) error {
	if err := m.Device.GetQueue().WriteBuffer(buf, 0, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Allocate implements Backend.
func (m *Manager) Allocate(capacity uint32) error {
	if capacity == 0 {
		return ErrInvalidCapacity
	}
	p := core.PackingWGSL
	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	listSize := uint64(capacity) * 4
	poolSize := uint64(capacity) * uint64(core.Particle{}.Size(p))

	specs := []struct {
		name  string
		buf   **wgpu.Buffer
		size  uint64
		usage wgpu.BufferUsage
	}{
		{"emit info", &m.EmitInfoBuf, uint64(core.EmitParticleInfo{}.Size(p)), storage},
		{"counter", &m.CounterBuf, uint64(core.ParticleCounter{}.Size(p)), storage | wgpu.BufferUsageCopySrc},
		{"pool", &m.PoolBuf, poolSize, storage | wgpu.BufferUsageVertex},
		{"deadlist", &m.DeadListBuf, listSize, storage},
		{"alivelist 0", &m.AliveBufs[0], listSize, storage},
		{"alivelist 1", &m.AliveBufs[1], listSize, storage},
		{"draw args", &m.DrawArgsBuf, uint64(core.IndirectArgumentBuffer{}.Size(p)), storage | wgpu.BufferUsageIndirect},
		{"dispatch args", &m.DispatchArgsBuf, uint64(core.IndirectDispatchBuffer{}.Size(p)), storage | wgpu.BufferUsageIndirect},
		{"params", &m.ParamsBuf, uint64(core.KernelParams{}.Size(p)), wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		{"readback", &m.ReadbackBuf, uint64(core.ParticleCounter{}.Size(p)), wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst},
	}
	for _, s := range specs {
		if _, err := m.ensureBuffer(s.name, s.buf, s.size, s.usage); err != nil {
			m.Release()
			return err
		}
	}

	// Buffers may be reused from a smaller pool, so reset what the kernels
	// read before InitDeadlist runs.
	var counter core.ParticleCounter
	unit := core.UnitDispatch()
	args := core.DrawArgs(0)
	err := errors.Join(
		m.write("counter", m.CounterBuf, counter.Marshal(p)),
		m.write("pool", m.PoolBuf, make([]byte, poolSize)),
		m.write("dispatch args", m.DispatchArgsBuf, unit.Marshal(p)),
		m.write("draw args", m.DrawArgsBuf, args.Marshal(p)),
	)
	if err == nil {
		err = m.createBindGroups()
	}
	if err != nil {
		m.Release()
		return err
	}
	m.capacity = capacity
	m.current = 0
	m.log.Debugf("%s: allocated %d particles (%d byte pool)", m.Label, capacity, poolSize)
	return nil
}

// bindingBuffer is the buffer bound at slot b when alive is the alive list.
func (m *Manager) bindingBuffer(b uint32, alive int) *wgpu.Buffer {
	switch b {
	case shaders.BindingEmitInfo:
		return m.EmitInfoBuf
	case shaders.BindingCounter:
		return m.CounterBuf
	case shaders.BindingPool:
		return m.PoolBuf
	case shaders.BindingDeadList:
		return m.DeadListBuf
	case shaders.BindingAliveList:
		return m.AliveBufs[alive]
	case shaders.BindingAliveListSec:
		return m.AliveBufs[1-alive]
	case shaders.BindingDrawArgs:
		return m.DrawArgsBuf
	case shaders.BindingUpdateDispatch:
		return m.DispatchArgsBuf
	case shaders.BindingParams:
		return m.ParamsBuf
	}
	return nil
}

func (m *Manager) releaseBindGroups() {
	for set := range m.bindGroups {
		for i := range m.bindGroups[set] {
			if m.bindGroups[set][i] != nil {
				m.bindGroups[set][i].Release()
				m.bindGroups[set][i] = nil
			}
		}
	}
}

func (m *Manager) createBindGroups() error {
	m.releaseBindGroups()
	for set := BindingSet(0); set < BindingSetCount; set++ {
		for i := range m.bindGroups[set] {
			var entries []wgpu.BindGroupEntry
			for _, b := range set.Bindings() {
				entries = append(entries, wgpu.BindGroupEntry{Binding: b, Buffer: m.bindingBuffer(b, i), Size: wgpu.WholeSize})
			}
			bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
				Label:   fmt.Sprintf("%s BG%d.%d", m.Label, set, i),
				Layout:  m.layouts[set],
				Entries: entries,
			})
			if err != nil {
				return fmt.Errorf("create bind group %d.%d: %w", set, i, err)
			}
			m.bindGroups[set][i] = bg
		}
	}
	return nil
}

// Release frees the particle buffers. Pipelines stay alive so the manager
// can be allocated again.
func (m *Manager) Release() {
	m.Discard()
	m.releaseBindGroups()
	for _, buf := range []**wgpu.Buffer{
		&m.EmitInfoBuf, &m.CounterBuf, &m.PoolBuf, &m.DeadListBuf,
		&m.AliveBufs[0], &m.AliveBufs[1], &m.DrawArgsBuf, &m.DispatchArgsBuf,
		&m.ParamsBuf, &m.ReadbackBuf,
	} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
	m.capacity = 0
}

// Destroy releases buffers, pipelines and layouts.
func (m *Manager) Destroy() {
	m.Release()
	for k := range m.pipelines {
		if m.pipelines[k] != nil {
			m.pipelines[k].Release()
			m.pipelines[k] = nil
		}
	}
	for set := range m.layouts {
		if m.pipelineLayouts[set] != nil {
			m.pipelineLayouts[set].Release()
			m.pipelineLayouts[set] = nil
		}
		if m.layouts[set] != nil {
			m.layouts[set].Release()
			m.layouts[set] = nil
		}
	}
}

func (m *Manager) Capacity() uint32 { return m.capacity }

func (m *Manager) WorkgroupSize(k Kernel) [3]uint32 {
	if k < 0 || k >= KernelCount {
		return FallbackWorkgroupSize
	}
	return m.workgroups[k]
}

func (m *Manager) WriteEmitInfo(info core.EmitParticleInfo) error {
	if m.capacity == 0 {
		return ErrNotAllocated
	}
	return m.write("emit info", m.EmitInfoBuf, info.Marshal(core.PackingWGSL))
}

func (m *Manager) WriteParams(params core.KernelParams) error {
	if m.capacity == 0 {
		return ErrNotAllocated
	}
	return m.write("params", m.ParamsBuf, params.Marshal(core.PackingWGSL))
}

func (m *Manager) WriteDrawArgs(args core.IndirectArgumentBuffer) error {
	if m.capacity == 0 {
		return ErrNotAllocated
	}
	return m.write("draw args", m.DrawArgsBuf, args.Marshal(core.PackingWGSL))
}

func (m *Manager) beginPass(k Kernel) (*wgpu.ComputePassEncoder, error) {
	if m.capacity == 0 {
		return nil, ErrNotAllocated
	}
	if k < 0 || k >= KernelCount || m.pipelines[k] == nil {
		return nil, fmt.Errorf("%w: %s", ErrKernelMissing, k)
	}
	if m.encoder == nil {
		enc, err := m.Device.CreateCommandEncoder(nil)
		if err != nil {
			return nil, fmt.Errorf("create command encoder: %w", err)
		}
		m.encoder = enc
	}
	pass := m.encoder.BeginComputePass(nil)
	pass.SetPipeline(m.pipelines[k])
	pass.SetBindGroup(0, m.bindGroups[k.BindingSet()][m.current], nil)
	return pass, nil
}

// Dispatch implements Backend. A failed dispatch discards everything
// recorded since the last Submit.
func (m *Manager) Dispatch(k Kernel, groups [3]uint32) error {
	if err := CheckGroups(k, groups); err != nil {
		m.Discard()
		return err
	}
	pass, err := m.beginPass(k)
	if err != nil {
		m.Discard()
		return err
	}
	defer pass.Release()
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	if err := pass.End(); err != nil {
		m.Discard()
		return fmt.Errorf("dispatch %s: %w", k, err)
	}
	return nil
}

func (m *Manager) DispatchIndirect(k Kernel) error {
	pass, err := m.beginPass(k)
	if err != nil {
		m.Discard()
		return err
	}
	defer pass.Release()
	pass.DispatchWorkgroupsIndirect(m.DispatchArgsBuf, 0)
	if err := pass.End(); err != nil {
		m.Discard()
		return fmt.Errorf("dispatch %s indirect: %w", k, err)
	}
	return nil
}

// Discard drops the passes recorded since the last Submit.
func (m *Manager) Discard() {
	if m.encoder != nil {
		m.encoder.Release()
		m.encoder = nil
	}
}

func (m *Manager) SwapAliveLists() { m.current = 1 - m.current }

// AliveList is the buffer currently bound as the alive list.
func (m *Manager) AliveList() *wgpu.Buffer { return m.AliveBufs[m.current] }

// Submit finishes the recorded passes and hands them to the queue.
func (m *Manager) Submit() error {
	if m.encoder == nil {
		return nil
	}
	enc := m.encoder
	m.encoder = nil
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	defer cmd.Release()
	m.Device.GetQueue().Submit(cmd)
	return nil
}

// ReadCounter submits pending work, copies the counter into the readback
// buffer and blocks until it is mapped.
func (m *Manager) ReadCounter() (core.ParticleCounter, error) {
	var counter core.ParticleCounter
	if m.capacity == 0 {
		return counter, ErrNotAllocated
	}
	if err := m.Submit(); err != nil {
		return counter, err
	}
	size := uint64(counter.Size(core.PackingWGSL))

	enc, err := m.Device.CreateCommandEncoder(nil)
	if err != nil {
		return counter, fmt.Errorf("create command encoder: %w", err)
	}
	enc.CopyBufferToBuffer(m.CounterBuf, 0, m.ReadbackBuf, 0, size)
	cmd, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return counter, fmt.Errorf("finish readback: %w", err)
	}
	m.Device.GetQueue().Submit(cmd)
	cmd.Release()

	var status wgpu.BufferMapAsyncStatus
	mapped := false
	err = m.ReadbackBuf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = true
	})
	if err != nil {
		return counter, fmt.Errorf("%w: %v", ErrReadback, err)
	}
	m.Device.Poll(true, nil)
	if !mapped || status != wgpu.BufferMapAsyncStatusSuccess {
		return counter, fmt.Errorf("%w: map status %v", ErrReadback, status)
	}
	data := m.ReadbackBuf.GetMappedRange(0, uint(size))
	buf := make([]byte, len(data))
	copy(buf, data)
	m.ReadbackBuf.Unmap()

	if err := counter.Unmarshal(core.PackingWGSL, buf); err != nil {
		return counter, fmt.Errorf("%w: %v", ErrReadback, err)
	}
	return counter, nil
}

// DrawIndirect draws the instanced mesh with the arguments the kernels
// produced. The caller binds its own pipeline and mesh buffers.
func (m *Manager) DrawIndirect(pass *wgpu.RenderPassEncoder) error {
	if m.capacity == 0 {
		return ErrNotAllocated
	}
	pass.DrawIndexedIndirect(m.DrawArgsBuf, 0)
	return nil
}

// CreateRenderBindGroup binds the pool (binding 0) and the current alive
// list (binding 1) for a render pipeline. Recreate it after each swap, or
// create one per list up front.
func (m *Manager) CreateRenderBindGroup(layout *wgpu.BindGroupLayout) (*wgpu.BindGroup, error) {
	if m.capacity == 0 {
		return nil, ErrNotAllocated
	}
	bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  m.Label + " render BG",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: m.PoolBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: m.AliveList(), Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render bind group: %w", err)
	}
	return bg, nil
}

var _ Backend = (*Manager)(nil)

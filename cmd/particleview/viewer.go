package main

import (
	"fmt"

	"github.com/gekko3d/gpuparticle"
	"github.com/gekko3d/gpuparticle/particlert/core"
	"github.com/gekko3d/gpuparticle/particlert/gpu"
	"github.com/gekko3d/gpuparticle/particlert/mesh"
	"github.com/gekko3d/gpuparticle/particlert/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Viewer draws one emitter with a user draw shader. The draw shader sees
// the shared structs and binds:
//
//	@group(0) @binding(0) particlePool: array<Particle>  (read)
//	@group(0) @binding(1) alivelist: array<u32>          (read)
//	@group(1) @binding(0) viewProj: mat4x4<f32>
//
// with vertex position at location 0 and entry points vs_main / fs_main.
type Viewer struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Camera    *Camera
	Manager   *gpu.Manager
	Emitter   *gpuparticle.Emitter
	Transform gpuparticle.Transform
	Clock     *gpuparticle.Clock
	Stepper   *gpuparticle.FixedStepper
	Paused    bool

	Mesh      *mesh.Mesh
	VertexBuf *wgpu.Buffer
	IndexBuf  *wgpu.Buffer
	CameraBuf *wgpu.Buffer

	particleLayout *wgpu.BindGroupLayout
	cameraLayout   *wgpu.BindGroupLayout
	Pipeline       *wgpu.RenderPipeline
	cameraBG       *wgpu.BindGroup
	particleBGs    map[*wgpu.Buffer]*wgpu.BindGroup

	log gpuparticle.Logger
}

func NewViewer(window *glfw.Window, logger gpuparticle.Logger) *Viewer {
	return &Viewer{
		Window:      window,
		Camera:      NewCamera(),
		Clock:       gpuparticle.NewClock(),
		particleBGs: make(map[*wgpu.Buffer]*wgpu.BindGroup),
		log:         logger,
	}
}

func (v *Viewer) Init(preset gpuparticle.Preset, kernels gpu.KernelSources, drawWGSL string, m *mesh.Mesh, hz float64) error {
	v.Instance = wgpu.CreateInstance(nil)
	v.Surface = v.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(v.Window))

	adapter, err := v.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: v.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	v.Adapter = adapter

	v.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	v.Queue = v.Device.GetQueue()

	width, height := v.Window.GetFramebufferSize()
	caps := v.Surface.GetCapabilities(adapter)
	v.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	v.Surface.Configure(adapter, v.Device, v.Config)

	v.Mesh = m
	if err := v.createMeshBuffers(); err != nil {
		return err
	}
	if err := v.createPipeline(drawWGSL); err != nil {
		return err
	}

	v.Manager, err = gpu.NewManager(v.Device, kernels, gpuparticle.WithPrefix(v.log, "gpu"))
	if err != nil {
		return err
	}
	cfg := preset.Emitter
	cfg.IndexCount = m.IndexCount()
	v.Emitter, err = gpuparticle.NewEmitter(cfg, v.Manager, v.log)
	if err != nil {
		return err
	}
	v.Transform = preset.Transform
	v.Stepper = gpuparticle.NewFixedStepper(hz)
	return v.Emitter.Start(v.Transform)
}

func (v *Viewer) createBuffer(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	size := uint64(len(data))
	if size%4 != 0 {
		size += 4 - size%4
	}
	buf, err := v.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if len(data) > 0 {
		v.Queue.WriteBuffer(buf, 0, data)
	}
	return buf, nil
}

func (v *Viewer) createMeshBuffers() error {
	var err error
	if v.VertexBuf, err = v.createBuffer("Mesh Vertices", v.Mesh.VertexBytes(), wgpu.BufferUsageVertex); err != nil {
		return err
	}
	if v.IndexBuf, err = v.createBuffer("Mesh Indices", v.Mesh.IndexBytes(), wgpu.BufferUsageIndex); err != nil {
		return err
	}
	v.CameraBuf, err = v.createBuffer("Camera", make([]byte, 64), wgpu.BufferUsageUniform)
	return err
}

func (v *Viewer) createPipeline(drawWGSL string) error {
	module, err := v.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Particle Draw",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.GenerateWGSL(core.Schemas()) + "\n" + drawWGSL},
	})
	if err != nil {
		return fmt.Errorf("compile draw shader: %w", err)
	}
	defer module.Release()

	readOnly := wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}
	v.particleLayout, err = v.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Particle Draw BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageVertex, Buffer: readOnly},
			{Binding: 1, Visibility: wgpu.ShaderStageVertex, Buffer: readOnly},
		},
	})
	if err != nil {
		return err
	}
	v.cameraLayout, err = v.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Camera BGL",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		}},
	})
	if err != nil {
		return err
	}
	v.cameraBG, err = v.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Camera BG",
		Layout:  v.cameraLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: v.CameraBuf, Size: wgpu.WholeSize}},
	})
	if err != nil {
		return err
	}

	layout, err := v.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{v.particleLayout, v.cameraLayout},
	})
	if err != nil {
		return err
	}
	v.Pipeline, err = v.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Particle Draw Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: 12,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{{
					Format:         wgpu.VertexFormatFloat32x3,
					Offset:         0,
					ShaderLocation: 0,
				}},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    v.Config.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						Operation: wgpu.BlendOperationAdd,
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOne,
					},
					Alpha: wgpu.BlendComponent{
						Operation: wgpu.BlendOperationAdd,
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					},
				},
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create draw pipeline: %w", err)
	}
	return nil
}

// particleBindGroup returns the draw bind group for the current alive list.
// There are two per allocation, one for each side of the swap.
func (v *Viewer) particleBindGroup() (*wgpu.BindGroup, error) {
	alive := v.Manager.AliveList()
	if bg, ok := v.particleBGs[alive]; ok {
		return bg, nil
	}
	bg, err := v.Manager.CreateRenderBindGroup(v.particleLayout)
	if err != nil {
		return nil, err
	}
	v.particleBGs[alive] = bg
	return bg, nil
}

func (v *Viewer) dropParticleBindGroups() {
	for k, bg := range v.particleBGs {
		bg.Release()
		delete(v.particleBGs, k)
	}
}

func (v *Viewer) Resize(w, h int) {
	if w > 0 && h > 0 {
		v.Config.Width = uint32(w)
		v.Config.Height = uint32(h)
		v.Surface.Configure(v.Adapter, v.Device, v.Config)
	}
}

// Update runs the fixed steps due since the last frame.
func (v *Viewer) Update() {
	dt := v.Clock.Tick()
	if v.Paused {
		return
	}
	steps := v.Stepper.Advance(dt)
	for i := 0; i < steps; i++ {
		report, err := v.Emitter.Step(v.Stepper.Seconds(), v.Transform)
		if err != nil {
			v.log.Errorf("step: %v", err)
			return
		}
		if report.Reset {
			v.dropParticleBindGroups()
		}
	}
}

func (v *Viewer) Render() {
	nextTexture, err := v.Surface.GetCurrentTexture()
	if err != nil {
		v.log.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		v.log.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	particles, err := v.particleBindGroup()
	if err != nil {
		v.log.Errorf("particle bind group: %v", err)
		return
	}

	aspect := float32(v.Config.Width) / float32(v.Config.Height)
	vp := v.Camera.ViewProj(aspect)
	v.Queue.WriteBuffer(v.CameraBuf, 0, matrixBytes(vp))

	encoder, err := v.Device.CreateCommandEncoder(nil)
	if err != nil {
		v.log.Errorf("CreateCommandEncoder failed: %v", err)
		return
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.02, G: 0.02, B: 0.04, A: 1},
		}},
	})
	rPass.SetPipeline(v.Pipeline)
	rPass.SetBindGroup(0, particles, nil)
	rPass.SetBindGroup(1, v.cameraBG, nil)
	rPass.SetVertexBuffer(0, v.VertexBuf, 0, v.VertexBuf.GetSize())
	rPass.SetIndexBuffer(v.IndexBuf, wgpu.IndexFormatUint32, 0, v.IndexBuf.GetSize())
	if err := v.Manager.DrawIndirect(rPass); err != nil {
		v.log.Errorf("draw: %v", err)
	}
	if err := rPass.End(); err != nil {
		v.log.Errorf("Render pass End failed: %v", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		v.log.Errorf("Encoder Finish failed: %v", err)
		return
	}
	v.Queue.Submit(cmd)
	v.Surface.Present()
}

// Close releases the emitter and every GPU object the viewer created.
func (v *Viewer) Close() {
	v.dropParticleBindGroups()
	if v.Emitter != nil {
		v.Emitter.Close()
	}
	if v.Manager != nil {
		v.Manager.Destroy()
	}
	for _, buf := range []*wgpu.Buffer{v.VertexBuf, v.IndexBuf, v.CameraBuf} {
		if buf != nil {
			buf.Release()
		}
	}
	if v.Pipeline != nil {
		v.Pipeline.Release()
	}
	if v.Device != nil {
		v.Device.Release()
	}
}

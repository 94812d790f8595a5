package shaders

import (
	"strings"
	"testing"

	"github.com/gekko3d/gpuparticle/particlert/core"

	"github.com/gogpu/naga/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderMatchesGoLayouts(t *testing.T) {
	r, err := Reflect(ParticleWGSL)
	require.NoError(t, err)
	require.NoError(t, r.CheckAll())

	counter := r.Structs["ParticleCounter"]
	require.Len(t, counter.Members, 3)
	for _, m := range counter.Members {
		assert.True(t, m.Atomic, m.Name)
	}

	args := r.Structs["IndirectArgumentBuffer"]
	require.Len(t, args.Members, 1)
	assert.Equal(t, uint32(5), args.Members[0].Count)
	assert.Equal(t, uint32(4), args.Members[0].Stride)
}

func TestGeneratedWGSLMatchesGoLayouts(t *testing.T) {
	src := GenerateWGSL(core.Schemas())
	r, err := Reflect(src)
	require.NoError(t, err)
	assert.NoError(t, r.CheckAll())
}

func TestCheckReportsMismatch(t *testing.T) {
	src := `
struct Particle {
    lifespan: f32,
    velocity: vec3<f32>,
    position: vec3<f32>,
    model: mat4x4<f32>,
    scale: vec3<f32>,
    quaternion: vec4<f32>,
}

struct ParticleCounter {
    alivelistCount: u32,
    deadlistCount: i32,
    updateParticleCount: u32,
}
`
	r, err := Reflect(src)
	require.NoError(t, err)

	err = r.Check(core.Layout(core.Particle{}.Schema(), core.PackingWGSL))
	require.ErrorIs(t, err, ErrLayoutMismatch)
	assert.Contains(t, err.Error(), `"velocity", want "position"`)

	err = r.Check(core.Layout(core.ParticleCounter{}.Schema(), core.PackingWGSL))
	require.ErrorIs(t, err, ErrLayoutMismatch)
	assert.Contains(t, err.Error(), "deadlistCount: kind i32, want u32")

	err = r.Check(core.Layout(core.EmitParticleInfo{}.Schema(), core.PackingWGSL))
	assert.ErrorIs(t, err, ErrNoStruct)
}

func TestKernelWorkgroupSize(t *testing.T) {
	kernel := `
@compute @workgroup_size(64, 2, 1)
fn EmitParticle() {
}
`
	r, err := Reflect(WithHeader(kernel))
	require.NoError(t, err)

	wg, err := r.WorkgroupSize("EmitParticle")
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{64, 2, 1}, wg)

	_, err = r.WorkgroupSize("UpdateParticle")
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestGenerateHLSL(t *testing.T) {
	out := GenerateHLSL(core.Schemas())
	assert.Contains(t, out, "struct EmitParticleInfo\n{\n\tuint emitCount;\n\tuint realEmitCount;\n\tfloat lifespan;\n\tfloat _dt;\n\tfloat3 scale;")
	assert.Contains(t, out, "\tint emitKind;\n\tfloat4 rotation;\n\tfloat3 boxEmitSize;\n};")
	assert.Contains(t, out, "\tfloat4x4 model;")
	assert.Contains(t, out, "\tuint arg[5];")
	assert.Contains(t, out, "\tint arg[3];")
}

func TestWithHeader(t *testing.T) {
	src := WithHeader("fn f() {}")
	assert.True(t, strings.HasPrefix(src, ParticleWGSL))
	assert.True(t, strings.HasSuffix(src, "fn f() {}"))
	assert.Equal(t, strings.Count(src, "\n"), HeaderLines())
}

func TestElementStride(t *testing.T) {
	u32 := ir.ScalarType{Kind: ir.ScalarUint, Width: 4}
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}

	assert.Equal(t, uint32(4), elementStride(u32))
	assert.Equal(t, uint32(4), elementStride(ir.AtomicType{Scalar: u32}))
	assert.Equal(t, uint32(8), elementStride(ir.VectorType{Size: ir.Vec2, Scalar: f32}))
	assert.Equal(t, uint32(16), elementStride(ir.VectorType{Size: ir.Vec3, Scalar: f32}))
	assert.Equal(t, uint32(64), elementStride(ir.MatrixType{Columns: ir.Vec4, Rows: ir.Vec4, Scalar: f32}))
	assert.Equal(t, uint32(48), elementStride(ir.MatrixType{Columns: ir.Vec3, Rows: ir.Vec3, Scalar: f32}))
}

func TestIndirectArraysHaveElementStride(t *testing.T) {
	r, err := Reflect(WithHeader("@compute @workgroup_size(64)\nfn EmitCount() {}"))
	require.NoError(t, err)
	for _, name := range []string{"IndirectArgumentBuffer", "IndirectDispatchBuffer"} {
		arg := r.Structs[name].Members[0]
		assert.Equal(t, uint32(4), arg.Stride, name)
	}
	assert.NoError(t, r.CheckAll())
}

package gpu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gekko3d/gpuparticle/particlert/shaders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKernels(t *testing.T, dir string, skip Kernel) {
	t.Helper()
	for k := Kernel(0); k < KernelCount; k++ {
		if k == skip {
			continue
		}
		src := "@compute @workgroup_size(64)\nfn " + k.EntryPoint() + "() {}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, k.FileName()), []byte(src), 0o644))
	}
}

func TestKernelNames(t *testing.T) {
	assert.Equal(t, "InitDeadlist", KernelInitDeadList.EntryPoint())
	assert.Equal(t, "InitParticleBuffer.wgsl", KernelInitDeadList.FileName())
	assert.Equal(t, "SetDrawBufferArg", KernelSetDrawArgs.String())
	assert.Equal(t, "UpdateParticle.wgsl", KernelUpdateParticle.FileName())
	assert.Equal(t, "Kernel(9)", Kernel(9).String())
	assert.Empty(t, Kernel(-1).FileName())
}

func TestLoadKernelDir(t *testing.T) {
	dir := t.TempDir()
	writeKernels(t, dir, KernelCount)

	src, err := LoadKernelDir(dir)
	require.NoError(t, err)
	require.NoError(t, src.Validate())
	assert.Contains(t, src[KernelEmitParticle], "fn EmitParticle()")
}

func TestLoadKernelDirMissing(t *testing.T) {
	dir := t.TempDir()
	writeKernels(t, dir, KernelUpdateParticle)

	_, err := LoadKernelDir(dir)
	require.ErrorIs(t, err, ErrKernelMissing)
	assert.Contains(t, err.Error(), "UpdateParticle")

	var src KernelSources
	assert.ErrorIs(t, src.Validate(), ErrKernelMissing)
}

func TestGroupsFor(t *testing.T) {
	assert.Equal(t, uint32(0), GroupsFor(0, 64))
	assert.Equal(t, uint32(1), GroupsFor(1, 64))
	assert.Equal(t, uint32(1), GroupsFor(64, 64))
	assert.Equal(t, uint32(2), GroupsFor(65, 64))
	assert.Equal(t, uint32(5), GroupsFor(5, 0))
}

func TestCheckGroups(t *testing.T) {
	assert.NoError(t, CheckGroups(KernelEmitParticle, [3]uint32{MaxWorkgroupsPerDimension, 1, 1}))
	err := CheckGroups(KernelEmitParticle, [3]uint32{MaxWorkgroupsPerDimension + 1, 1, 1})
	require.ErrorIs(t, err, ErrDispatchTooLarge)
	assert.Contains(t, err.Error(), "EmitParticle")
}

func TestUpdateParticleDoesNotBindItsIndirectArgs(t *testing.T) {
	for k := Kernel(0); k < KernelCount; k++ {
		bindings := k.BindingSet().Bindings()
		assert.Contains(t, bindings, shaders.BindingPool, k.String())
		assert.Contains(t, bindings, shaders.BindingParams, k.String())
		if k == KernelUpdateParticle {
			assert.NotContains(t, bindings, shaders.BindingUpdateDispatch)
			assert.Len(t, bindings, int(shaders.BindingCount)-1)
			continue
		}
		assert.Contains(t, bindings, shaders.BindingUpdateDispatch, k.String())
	}
	assert.Equal(t, BindingSetFull, KernelEmitCount.BindingSet())
}

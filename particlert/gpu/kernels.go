package gpu

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gekko3d/gpuparticle/particlert/shaders"
)

// Kernel identifies one of the particle compute kernels.
type Kernel int

const (
	KernelInitDeadList Kernel = iota
	KernelEmitCount
	KernelEmitParticle
	KernelUpdateParticle
	KernelSetDrawArgs

	KernelCount
)

var kernelEntries = [KernelCount]string{
	KernelInitDeadList:   "InitDeadlist",
	KernelEmitCount:      "EmitCount",
	KernelEmitParticle:   "EmitParticle",
	KernelUpdateParticle: "UpdateParticle",
	KernelSetDrawArgs:    "SetDrawBufferArg",
}

var kernelFiles = [KernelCount]string{
	KernelInitDeadList:   "InitParticleBuffer.wgsl",
	KernelEmitCount:      "EmitCount.wgsl",
	KernelEmitParticle:   "EmitParticle.wgsl",
	KernelUpdateParticle: "UpdateParticle.wgsl",
	KernelSetDrawArgs:    "SetDrawBufferArg.wgsl",
}

// EntryPoint is the WGSL function name the kernel is compiled from.
func (k Kernel) EntryPoint() string {
	if k < 0 || k >= KernelCount {
		return ""
	}
	return kernelEntries[k]
}

// FileName is the file LoadKernelDir reads the kernel from.
func (k Kernel) FileName() string {
	if k < 0 || k >= KernelCount {
		return ""
	}
	return kernelFiles[k]
}

func (k Kernel) String() string {
	if e := k.EntryPoint(); e != "" {
		return e
	}
	return fmt.Sprintf("Kernel(%d)", int(k))
}

// BindingSet is a variant of the group 0 layout.
type BindingSet int

const (
	// BindingSetFull binds every slot of the shared header.
	BindingSetFull BindingSet = iota
	// BindingSetIndirect leaves out the update-dispatch buffer. A dispatch
	// cannot read a buffer as its indirect argument while it is also bound
	// as writable storage.
	BindingSetIndirect

	BindingSetCount
)

// BindingSet is the layout variant the kernel runs with.
func (k Kernel) BindingSet() BindingSet {
	if k == KernelUpdateParticle {
		return BindingSetIndirect
	}
	return BindingSetFull
}

// Bindings lists the group 0 slots of the set in ascending order.
func (s BindingSet) Bindings() []uint32 {
	bindings := make([]uint32, 0, shaders.BindingCount)
	for b := uint32(0); b < shaders.BindingCount; b++ {
		if s == BindingSetIndirect && b == shaders.BindingUpdateDispatch {
			continue
		}
		bindings = append(bindings, b)
	}
	return bindings
}

// KernelSources holds WGSL kernel bodies, without the shared header.
type KernelSources [KernelCount]string

// Validate reports the first kernel without source.
func (s *KernelSources) Validate() error {
	for k := Kernel(0); k < KernelCount; k++ {
		if s[k] == "" {
			return fmt.Errorf("%w: %s", ErrKernelMissing, k)
		}
	}
	return nil
}

// LoadKernelDir reads one file per kernel from dir.
func LoadKernelDir(dir string) (KernelSources, error) {
	var src KernelSources
	for k := Kernel(0); k < KernelCount; k++ {
		path := filepath.Join(dir, k.FileName())
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return src, fmt.Errorf("%w: %s (%s)", ErrKernelMissing, k, path)
			}
			return src, fmt.Errorf("read kernel %s: %w", k, err)
		}
		src[k] = string(data)
	}
	return src, nil
}

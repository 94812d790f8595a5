package shaders

import (
	_ "embed"
	"strings"
)

// ParticleWGSL declares the shared structs and the group 0 binding table.
//
//go:embed particle.wgsl
var ParticleWGSL string

// Binding slots of ParticleWGSL in group 0.
const (
	BindingEmitInfo uint32 = iota
	BindingCounter
	BindingPool
	BindingDeadList
	BindingAliveList
	BindingAliveListSec
	BindingDrawArgs
	BindingUpdateDispatch
	BindingParams

	BindingCount
)

// WithHeader prepends ParticleWGSL to a kernel. WGSL has no include, so
// every kernel module is compiled with its own copy of the header.
func WithHeader(kernel string) string {
	var b strings.Builder
	b.Grow(len(ParticleWGSL) + len(kernel) + 1)
	b.WriteString(ParticleWGSL)
	b.WriteByte('\n')
	b.WriteString(kernel)
	return b.String()
}

// HeaderLines is the number of lines WithHeader adds in front of a kernel;
// subtract it from compiler line numbers to point into the kernel file.
func HeaderLines() int {
	return strings.Count(ParticleWGSL, "\n") + 1
}

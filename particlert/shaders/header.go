package shaders

import (
	"fmt"
	"strings"

	"github.com/gekko3d/gpuparticle/particlert/core"
)

func wgslType(f core.FieldShape) string {
	scalar := f.Kind.String()
	if f.Atomic {
		scalar = "atomic<" + scalar + ">"
	}
	switch {
	case f.Count > 0:
		return fmt.Sprintf("array<%s, %d>", scalar, f.Count)
	case f.Cols > 1:
		return fmt.Sprintf("mat%dx%d<%s>", f.Cols, f.Rows, scalar)
	case f.Rows > 1:
		return fmt.Sprintf("vec%d<%s>", f.Rows, scalar)
	}
	return scalar
}

func hlslType(f core.FieldShape) string {
	var scalar string
	switch f.Kind {
	case core.ScalarUint:
		scalar = "uint"
	case core.ScalarSint:
		scalar = "int"
	default:
		scalar = "float"
	}
	switch {
	case f.Cols > 1:
		return fmt.Sprintf("%s%dx%d", scalar, f.Rows, f.Cols)
	case f.Rows > 1:
		return fmt.Sprintf("%s%d", scalar, f.Rows)
	}
	return scalar
}

// GenerateWGSL writes WGSL declarations for the shared structs.
func GenerateWGSL(schemas []core.Schema) string {
	var b strings.Builder
	for i, s := range schemas {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "struct %s {\n", s.Name)
		for _, f := range s.Fields {
			fmt.Fprintf(&b, "    %s: %s,\n", f.Name, wgslType(f))
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// GenerateHLSL writes the same declarations for HLSL StructuredBuffer
// consumers. Counters are plain uint there; kernels use Interlocked*.
func GenerateHLSL(schemas []core.Schema) string {
	var b strings.Builder
	for i, s := range schemas {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "struct %s\n{\n", s.Name)
		for _, f := range s.Fields {
			if f.Count > 0 {
				fmt.Fprintf(&b, "\t%s %s[%d];\n", hlslType(f), f.Name, f.Count)
				continue
			}
			fmt.Fprintf(&b, "\t%s %s;\n", hlslType(f), f.Name)
		}
		b.WriteString("};\n")
	}
	return b.String()
}

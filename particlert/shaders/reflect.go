package shaders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gekko3d/gpuparticle/particlert/core"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

var (
	// ErrLayoutMismatch is returned when a WGSL struct disagrees with its Go layout.
	ErrLayoutMismatch = errors.New("particlert/shaders: layout mismatch")

	// ErrNoStruct is returned when a struct is not declared in the reflected source.
	ErrNoStruct = errors.New("particlert/shaders: struct not declared")

	// ErrNoEntryPoint is returned when a compute entry point is missing.
	ErrNoEntryPoint = errors.New("particlert/shaders: compute entry point not found")
)

// MemberInfo is one reflected struct member.
type MemberInfo struct {
	Name   string
	Kind   core.ScalarKind
	Rows   uint32
	Cols   uint32
	Count  uint32 // array length, 0 for non-arrays
	Stride uint32 // array stride
	Offset uint32
	Atomic bool
}

type StructInfo struct {
	Name    string
	Members []MemberInfo
	Span    uint32
}

func (s StructInfo) hasArray() bool {
	for _, m := range s.Members {
		if m.Count > 0 {
			return true
		}
	}
	return false
}

// Reflection is what the module-level declarations of a WGSL source say
// about struct layout and compute entry points.
type Reflection struct {
	Structs     map[string]StructInfo
	EntryPoints map[string][3]uint32 // compute entry -> workgroup size
}

// Reflect parses and lowers WGSL source.
func Reflect(source string) (*Reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}

	r := &Reflection{
		Structs:     make(map[string]StructInfo),
		EntryPoints: make(map[string][3]uint32),
	}
	for _, typ := range module.Types {
		st, ok := typ.Inner.(ir.StructType)
		if !ok || typ.Name == "" {
			continue
		}
		info := StructInfo{Name: typ.Name, Span: st.Span}
		for _, m := range st.Members {
			mi, err := describeMember(module, m)
			if err != nil {
				return nil, fmt.Errorf("struct %s: %w", typ.Name, err)
			}
			info.Members = append(info.Members, mi)
		}
		r.Structs[typ.Name] = info
	}
	for _, ep := range module.EntryPoints {
		if ep.Stage == ir.StageCompute {
			r.EntryPoints[ep.Name] = ep.Workgroup
		}
	}
	return r, nil
}

func scalarKind(s ir.ScalarType) (core.ScalarKind, error) {
	if s.Width != 4 {
		return 0, fmt.Errorf("unsupported scalar width %d", s.Width)
	}
	switch s.Kind {
	case ir.ScalarUint:
		return core.ScalarUint, nil
	case ir.ScalarSint:
		return core.ScalarSint, nil
	case ir.ScalarFloat:
		return core.ScalarFloat, nil
	}
	return 0, fmt.Errorf("unsupported scalar kind %d", s.Kind)
}

func describeMember(module *ir.Module, m ir.StructMember) (MemberInfo, error) {
	mi := MemberInfo{Name: m.Name, Offset: m.Offset, Rows: 1, Cols: 1}
	if int(m.Type) >= len(module.Types) {
		return mi, fmt.Errorf("member %s: bad type handle %d", m.Name, m.Type)
	}
	inner := module.Types[m.Type].Inner
	if arr, ok := inner.(ir.ArrayType); ok {
		if arr.Size.Constant == nil {
			return mi, fmt.Errorf("member %s: runtime-sized arrays are not allowed in shared structs", m.Name)
		}
		mi.Count = *arr.Size.Constant
		mi.Stride = arr.Stride
		inner = module.Types[arr.Base].Inner
		if mi.Stride == 0 {
			// Older naga releases leave fixed-array strides unset.
			mi.Stride = elementStride(inner)
		}
	}

	var err error
	switch t := inner.(type) {
	case ir.ScalarType:
		mi.Kind, err = scalarKind(t)
	case ir.AtomicType:
		mi.Atomic = true
		mi.Kind, err = scalarKind(t.Scalar)
	case ir.VectorType:
		mi.Rows = uint32(t.Size)
		mi.Kind, err = scalarKind(t.Scalar)
	case ir.MatrixType:
		mi.Rows = uint32(t.Rows)
		mi.Cols = uint32(t.Columns)
		mi.Kind, err = scalarKind(t.Scalar)
	default:
		err = fmt.Errorf("unsupported member type %T", inner)
	}
	if err != nil {
		return mi, fmt.Errorf("member %s: %w", m.Name, err)
	}
	return mi, nil
}

// elementStride is the WGSL storage array stride of an element type:
// its size rounded up to its alignment. Unknown types report 0.
func elementStride(inner ir.TypeInner) uint32 {
	var size, align uint32
	switch t := inner.(type) {
	case ir.ScalarType:
		size, align = uint32(t.Width), uint32(t.Width)
	case ir.AtomicType:
		size, align = uint32(t.Scalar.Width), uint32(t.Scalar.Width)
	case ir.VectorType:
		w := uint32(t.Scalar.Width)
		size = uint32(t.Size) * w
		align = size
		if t.Size == ir.Vec3 {
			align = 4 * w
		}
	case ir.MatrixType:
		w := uint32(t.Scalar.Width)
		align = uint32(t.Rows) * w
		if t.Rows == ir.Vec3 {
			align = 4 * w
		}
		size = uint32(t.Columns) * align
	default:
		return 0
	}
	if align == 0 {
		return 0
	}
	return (size + align - 1) / align * align
}

// WorkgroupSize returns the @workgroup_size of a compute entry point.
func (r *Reflection) WorkgroupSize(entry string) ([3]uint32, error) {
	wg, ok := r.EntryPoints[entry]
	if !ok {
		return [3]uint32{}, fmt.Errorf("%w: %s", ErrNoEntryPoint, entry)
	}
	return wg, nil
}

// Check compares a reflected struct with a Go layout under PackingWGSL and
// reports every disagreement in one error.
func (r *Reflection) Check(layout core.StructLayout) error {
	name := layout.Schema.Name
	info, ok := r.Structs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoStruct, name)
	}

	var problems []string
	if len(info.Members) != len(layout.Fields) {
		problems = append(problems, fmt.Sprintf("member count %d, want %d", len(info.Members), len(layout.Fields)))
	}
	for i := 0; i < len(info.Members) && i < len(layout.Fields); i++ {
		got, want := info.Members[i], layout.Fields[i]
		if got.Name != want.Name {
			problems = append(problems, fmt.Sprintf("member %d is %q, want %q", i, got.Name, want.Name))
			continue
		}
		if got.Kind != want.Kind {
			problems = append(problems, fmt.Sprintf("%s: kind %s, want %s", got.Name, got.Kind, want.Kind))
		}
		if got.Rows != want.Rows || got.Cols != want.Cols || got.Count != want.Count {
			problems = append(problems, fmt.Sprintf("%s: shape %dx%d[%d], want %dx%d[%d]",
				got.Name, got.Rows, got.Cols, got.Count, want.Rows, want.Cols, want.Count))
		}
		if got.Count > 0 {
			if got.Stride != want.Stride {
				problems = append(problems, fmt.Sprintf("%s: stride %d, want %d", got.Name, got.Stride, want.Stride))
			}
		} else if !info.hasArray() && got.Offset != want.Offset {
			// naga sizes fixed arrays with uniform-buffer rules, so offsets
			// are only compared in structs without array members.
			problems = append(problems, fmt.Sprintf("%s: offset %d, want %d", got.Name, got.Offset, want.Offset))
		}
	}
	if !info.hasArray() && len(problems) == 0 && info.Span != layout.Size {
		problems = append(problems, fmt.Sprintf("size %d, want %d", info.Span, layout.Size))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrLayoutMismatch, name, strings.Join(problems, "; "))
	}
	return nil
}

// CheckAll verifies every shared struct declared in the source.
func (r *Reflection) CheckAll() error {
	var errs []error
	for _, s := range core.Schemas() {
		if err := r.Check(core.Layout(s, core.PackingWGSL)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShortBuffer is returned when a byte slice is smaller than the struct it should hold.
	ErrShortBuffer = errors.New("particlert/core: buffer too short")

	// ErrUnknownPacking is returned for a Packing value outside the known rules.
	ErrUnknownPacking = errors.New("particlert/core: unknown packing")
)

type ScalarKind uint8

const (
	ScalarUint ScalarKind = iota
	ScalarSint
	ScalarFloat
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarUint:
		return "u32"
	case ScalarSint:
		return "i32"
	case ScalarFloat:
		return "f32"
	}
	return fmt.Sprintf("ScalarKind(%d)", uint8(k))
}

// FieldShape describes one struct member. Every scalar is 4 bytes wide.
// Rows=1,Cols=1 is a scalar, Rows=N,Cols=1 a vector, Rows=4,Cols=4 a matrix.
// Count > 0 makes the member a fixed-size array of scalars.
type FieldShape struct {
	Name   string
	Kind   ScalarKind
	Rows   uint32
	Cols   uint32
	Count  uint32
	Atomic bool // only affects WGSL declarations
}

// Components is the number of 32-bit words the member carries.
func (f FieldShape) Components() uint32 {
	n := f.Rows * f.Cols
	if f.Count > 0 {
		n *= f.Count
	}
	return n
}

func Scalar(name string, kind ScalarKind) FieldShape {
	return FieldShape{Name: name, Kind: kind, Rows: 1, Cols: 1}
}

func Vector(name string, kind ScalarKind, n uint32) FieldShape {
	return FieldShape{Name: name, Kind: kind, Rows: n, Cols: 1}
}

func Matrix4(name string) FieldShape {
	return FieldShape{Name: name, Kind: ScalarFloat, Rows: 4, Cols: 4}
}

func Array(name string, kind ScalarKind, count uint32) FieldShape {
	return FieldShape{Name: name, Kind: kind, Rows: 1, Cols: 1, Count: count}
}

// Schema is the ordered member list of a GPU struct.
type Schema struct {
	Name   string
	Fields []FieldShape
}

// Words returns the total number of 32-bit words in a flattened value.
func (s Schema) Words() int {
	n := 0
	for _, f := range s.Fields {
		n += int(f.Components())
	}
	return n
}

type Packing uint8

const (
	// PackingStructured is the HLSL StructuredBuffer / sequential host layout:
	// everything 4-byte aligned, vectors and matrices packed tight.
	PackingStructured Packing = iota
	// PackingWGSL is the WGSL storage-buffer layout: vec3, vec4 and mat4x4
	// align to 16 bytes and the struct size rounds up to its alignment.
	PackingWGSL
)

func (p Packing) String() string {
	switch p {
	case PackingStructured:
		return "structured"
	case PackingWGSL:
		return "wgsl"
	}
	return fmt.Sprintf("Packing(%d)", uint8(p))
}

// ParsePacking accepts the names printed by Packing.String.
func ParsePacking(s string) (Packing, error) {
	switch s {
	case "structured", "hlsl":
		return PackingStructured, nil
	case "wgsl":
		return PackingWGSL, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPacking, s)
}

type FieldLayout struct {
	FieldShape
	Offset uint32
	Size   uint32
	Stride uint32 // array element stride, 0 for non-arrays
}

type StructLayout struct {
	Schema  Schema
	Packing Packing
	Fields  []FieldLayout
	Size    uint32
	Align   uint32
}

// Field looks a member up by name.
func (l StructLayout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

// alignAndSize returns the member alignment and byte size under a packing.
func alignAndSize(f FieldShape, p Packing) (align, size, stride uint32) {
	if f.Count > 0 {
		// Scalar arrays are 4-byte strided in both layouts.
		return 4, 4 * f.Count, 4
	}
	if p == PackingStructured {
		return 4, 4 * f.Rows * f.Cols, 0
	}
	switch {
	case f.Cols == 1 && f.Rows == 1:
		return 4, 4, 0
	case f.Cols == 1 && f.Rows == 2:
		return 8, 8, 0
	case f.Cols == 1:
		return 16, 4 * f.Rows, 0
	default:
		// Column-major matrix, each column aligned as a vector.
		colAlign, colSize, _ := alignAndSize(Vector("", f.Kind, f.Rows), p)
		return colAlign, alignUp(colSize, colAlign) * f.Cols, 0
	}
}

// Layout computes member offsets and the struct size for a packing.
func Layout(s Schema, p Packing) StructLayout {
	l := StructLayout{Schema: s, Packing: p, Align: 4}
	var offset uint32
	for _, f := range s.Fields {
		align, size, stride := alignAndSize(f, p)
		if align > l.Align {
			l.Align = align
		}
		offset = alignUp(offset, align)
		l.Fields = append(l.Fields, FieldLayout{FieldShape: f, Offset: offset, Size: size, Stride: stride})
		offset += size
	}
	l.Size = alignUp(offset, l.Align)
	return l
}

// encodeWords places flattened member words at their layout offsets.
func encodeWords(l StructLayout, words []uint32, dst []byte) {
	i := 0
	for _, f := range l.Fields {
		switch {
		case f.Count > 0:
			for e := uint32(0); e < f.Count; e++ {
				binary.LittleEndian.PutUint32(dst[f.Offset+e*f.Stride:], words[i])
				i++
			}
		case f.Cols > 1:
			colStride := f.Size / f.Cols
			for c := uint32(0); c < f.Cols; c++ {
				for r := uint32(0); r < f.Rows; r++ {
					binary.LittleEndian.PutUint32(dst[f.Offset+c*colStride+r*4:], words[i])
					i++
				}
			}
		default:
			for r := uint32(0); r < f.Rows; r++ {
				binary.LittleEndian.PutUint32(dst[f.Offset+r*4:], words[i])
				i++
			}
		}
	}
}

func decodeWords(l StructLayout, src []byte) []uint32 {
	words := make([]uint32, 0, l.Schema.Words())
	for _, f := range l.Fields {
		switch {
		case f.Count > 0:
			for e := uint32(0); e < f.Count; e++ {
				words = append(words, binary.LittleEndian.Uint32(src[f.Offset+e*f.Stride:]))
			}
		case f.Cols > 1:
			colStride := f.Size / f.Cols
			for c := uint32(0); c < f.Cols; c++ {
				for r := uint32(0); r < f.Rows; r++ {
					words = append(words, binary.LittleEndian.Uint32(src[f.Offset+c*colStride+r*4:]))
				}
			}
		default:
			for r := uint32(0); r < f.Rows; r++ {
				words = append(words, binary.LittleEndian.Uint32(src[f.Offset+r*4:]))
			}
		}
	}
	return words
}

func marshal(s Schema, p Packing, words []uint32) []byte {
	l := Layout(s, p)
	buf := make([]byte, l.Size)
	encodeWords(l, words, buf)
	return buf
}

func unmarshal(s Schema, p Packing, src []byte) ([]uint32, error) {
	l := Layout(s, p)
	if uint32(len(src)) < l.Size {
		return nil, fmt.Errorf("%w: %s needs %d bytes (%s), got %d", ErrShortBuffer, s.Name, l.Size, p, len(src))
	}
	return decodeWords(l, src), nil
}

// word packing helpers

func f32(v float32) uint32     { return math.Float32bits(v) }
func fromF32(w uint32) float32 { return math.Float32frombits(w) }

type wordWriter struct{ w []uint32 }

func (ww *wordWriter) u(v uint32)     { ww.w = append(ww.w, v) }
func (ww *wordWriter) i(v int32)      { ww.w = append(ww.w, uint32(v)) }
func (ww *wordWriter) f(v ...float32) {
	for _, x := range v {
		ww.w = append(ww.w, f32(x))
	}
}

type wordReader struct {
	w   []uint32
	pos int
}

func (wr *wordReader) u() uint32 {
	v := wr.w[wr.pos]
	wr.pos++
	return v
}

func (wr *wordReader) i() int32   { return int32(wr.u()) }
func (wr *wordReader) f() float32 { return fromF32(wr.u()) }

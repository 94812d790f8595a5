// Package mesh loads the geometry each particle instance is drawn with.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var (
	ErrNoPositions = errors.New("particlert/mesh: primitive has no POSITION attribute")
	ErrNoMesh      = errors.New("particlert/mesh: mesh not found")
)

type Mesh struct {
	Name      string
	Positions [][3]float32
	Indices   []uint32
}

// IndexCount is the per-instance index count written into the draw arguments.
func (m *Mesh) IndexCount() uint32 { return uint32(len(m.Indices)) }

// VertexBytes packs positions as tightly packed float32x3.
func (m *Mesh) VertexBytes() []byte {
	out := make([]byte, 0, len(m.Positions)*12)
	for _, p := range m.Positions {
		for _, v := range p {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out
}

// IndexBytes packs indices as uint32, padded to a 4-byte multiple for upload.
func (m *Mesh) IndexBytes() []byte {
	out := make([]byte, 0, len(m.Indices)*4)
	for _, i := range m.Indices {
		out = binary.LittleEndian.AppendUint32(out, i)
	}
	return out
}

// Quad is a unit billboard in the XY plane facing +Z.
func Quad() *Mesh {
	return &Mesh{
		Name: "quad",
		Positions: [][3]float32{
			{-0.5, -0.5, 0},
			{0.5, -0.5, 0},
			{0.5, 0.5, 0},
			{-0.5, 0.5, 0},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// LoadGLTF reads the first primitive of mesh meshIndex from a .gltf or .glb file.
func LoadGLTF(path string, meshIndex int) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open %q: %w", path, err)
	}
	if meshIndex < 0 || meshIndex >= len(doc.Meshes) || len(doc.Meshes[meshIndex].Primitives) == 0 {
		return nil, fmt.Errorf("%w: %d in %q", ErrNoMesh, meshIndex, path)
	}
	gm := doc.Meshes[meshIndex]
	prim := gm.Primitives[0]

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("%w: %q mesh %d", ErrNoPositions, path, meshIndex)
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	name := gm.Name
	if name == "" {
		name = fmt.Sprintf("mesh_%d", meshIndex)
	}
	return &Mesh{Name: name, Positions: positions, Indices: indices}, nil
}

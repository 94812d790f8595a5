package mesh

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var triangle = [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

func saveDoc(t *testing.T, indexed bool, withPositions bool) string {
	t.Helper()
	doc := gltf.NewDocument()
	prim := &gltf.Primitive{Attributes: map[string]int{}}
	if withPositions {
		prim.Attributes[gltf.POSITION] = modeler.WritePosition(doc, triangle)
	}
	if indexed {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, []uint16{2, 1, 0}))
	}
	doc.Meshes = []*gltf.Mesh{{Name: "tri", Primitives: []*gltf.Primitive{prim}}}

	path := filepath.Join(t.TempDir(), "tri.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestLoadGLTFIndexed(t *testing.T) {
	m, err := LoadGLTF(saveDoc(t, true, true), 0)
	require.NoError(t, err)
	assert.Equal(t, "tri", m.Name)
	assert.Equal(t, triangle, m.Positions)
	assert.Equal(t, []uint32{2, 1, 0}, m.Indices)
	assert.Equal(t, uint32(3), m.IndexCount())
}

func TestLoadGLTFSequentialIndices(t *testing.T) {
	m, err := LoadGLTF(saveDoc(t, false, true), 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, m.Indices)
}

func TestLoadGLTFErrors(t *testing.T) {
	_, err := LoadGLTF(saveDoc(t, true, false), 0)
	assert.ErrorIs(t, err, ErrNoPositions)

	_, err = LoadGLTF(saveDoc(t, true, true), 3)
	assert.ErrorIs(t, err, ErrNoMesh)

	_, err = LoadGLTF(filepath.Join(t.TempDir(), "missing.glb"), 0)
	assert.Error(t, err)
}

func TestQuad(t *testing.T) {
	q := Quad()
	assert.Equal(t, uint32(6), q.IndexCount())
	assert.Len(t, q.VertexBytes(), 4*12)
	assert.Len(t, q.IndexBytes(), 6*4)
}

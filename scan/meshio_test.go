package scan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# a unit square split by fan triangulation
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`

func TestParseOBJQuadFanTriangulation(t *testing.T) {
	mesh, err := ParseOBJ(strings.NewReader(quadOBJ))
	require.NoError(t, err)

	assert.Len(t, mesh.Vertices, 4)
	require.Len(t, mesh.Triangles, 2)
	assert.Equal(t, [3]int{0, 1, 2}, mesh.Triangles[0])
	assert.Equal(t, [3]int{0, 2, 3}, mesh.Triangles[1])
}

func TestParseOBJIndexForms(t *testing.T) {
	// Texture/normal indices and negative (relative) indices are all
	// resolved to the same triangle.
	obj := `v 0 0 0
v 1 0 0
v 0 1 0
f 1/1 2/2/2 3//3
f -3 -2 -1
`
	mesh, err := ParseOBJ(strings.NewReader(obj))
	require.NoError(t, err)
	require.Len(t, mesh.Triangles, 2)
	assert.Equal(t, mesh.Triangles[0], mesh.Triangles[1])
}

func TestParseOBJRejectsMalformedInput(t *testing.T) {
	_, err := ParseOBJ(strings.NewReader("v 1 2\n"))
	assert.Error(t, err, "vertex with missing coordinate")

	_, err = ParseOBJ(strings.NewReader("v 0 0 0\nf 1 2\n"))
	assert.Error(t, err, "face with two vertices")

	_, err = ParseOBJ(strings.NewReader("v 0 0 0\nf 1 2 9\n"))
	assert.True(t, errors.Is(err, ErrInvalidMesh), "face referencing missing vertex")
}

func TestParseMeshJSON(t *testing.T) {
	data := []byte(`{
		"vertices": [[0,0,0],[1,0,0],[0,1,0]],
		"triangles": [[0,1,2]]
	}`)
	mesh, err := ParseMeshJSON(data)
	require.NoError(t, err)
	assert.Len(t, mesh.Vertices, 3)
	assert.Len(t, mesh.Triangles, 1)
	assert.Equal(t, 1.0, mesh.Vertices[1].X)

	_, err = ParseMeshJSON([]byte(`{"vertices": [], "triangles": [[0,1,2]]}`))
	assert.True(t, errors.Is(err, ErrInvalidMesh))

	_, err = ParseMeshJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadMeshFileByExtension(t *testing.T) {
	dir := t.TempDir()

	objPath := filepath.Join(dir, "square.obj")
	require.NoError(t, os.WriteFile(objPath, []byte(quadOBJ), 0o644))
	mesh, err := LoadMeshFile(objPath)
	require.NoError(t, err)
	assert.Len(t, mesh.Triangles, 2)

	jsonPath := filepath.Join(dir, "tri.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"vertices":[[0,0,0],[1,0,0],[0,1,0]],"triangles":[[0,1,2]]}`), 0o644))
	mesh, err = LoadMeshFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, mesh.Triangles, 1)

	_, err = LoadMeshFile(filepath.Join(dir, "missing.obj"))
	assert.Error(t, err)
}

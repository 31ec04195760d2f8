package scan

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

// unitCube returns a closed unit cube with outward-facing winding.
func unitCube() *Mesh {
	return &Mesh{
		Vertices: []r3.Vector{
			{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0},
			{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 0, Y: 1, Z: 1},
		},
		Triangles: [][3]int{
			{0, 2, 1}, {0, 3, 2}, // bottom
			{4, 5, 6}, {4, 6, 7}, // top
			{0, 1, 5}, {0, 5, 4}, // front
			{2, 3, 7}, {2, 7, 6}, // back
			{0, 4, 7}, {0, 7, 3}, // left
			{1, 2, 6}, {1, 6, 5}, // right
		},
	}
}

// icosahedron returns a closed regular icosahedron.
func icosahedron() *Mesh {
	phi := (1.0 + math.Sqrt(5.0)) / 2.0
	return &Mesh{
		Vertices: []r3.Vector{
			{X: -1, Y: phi}, {X: 1, Y: phi}, {X: -1, Y: -phi}, {X: 1, Y: -phi},
			{Y: -1, Z: phi}, {Y: 1, Z: phi}, {Y: -1, Z: -phi}, {Y: 1, Z: -phi},
			{X: phi, Z: -1}, {X: phi, Z: 1}, {X: -phi, Z: -1}, {X: -phi, Z: 1},
		},
		Triangles: [][3]int{
			{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
			{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
			{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
			{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
		},
	}
}

func TestTopologyClosedMeshes(t *testing.T) {
	for name, mesh := range map[string]*Mesh{
		"cube":        unitCube(),
		"icosahedron": icosahedron(),
	} {
		topo := AnalyzeTopology(mesh)
		assert.True(t, topo.IsWatertight, name)
		assert.Equal(t, 0, topo.BoundaryEdgeCount, name)
		assert.Equal(t, 0, topo.NonManifoldEdgeCount, name)
		assert.Equal(t, 0, topo.EstimatedHoleCount, name)
		assert.Equal(t, 2, topo.EulerCharacteristic, name, "sphere-topology Euler characteristic")
		assert.Equal(t, 1.0, topo.QualityScore, name)
	}
}

func TestTopologyDetectsHole(t *testing.T) {
	// Removing one triangle opens a 3-edge hole.
	mesh := icosahedron()
	mesh.Triangles = mesh.Triangles[:len(mesh.Triangles)-1]

	topo := AnalyzeTopology(mesh)
	assert.False(t, topo.IsWatertight)
	assert.Equal(t, 3, topo.BoundaryEdgeCount)
	assert.Equal(t, 1, topo.EstimatedHoleCount)
	assert.Less(t, topo.QualityScore, 1.0)
	assert.GreaterOrEqual(t, topo.QualityScore, 0.0)
}

func TestTopologyDetectsNonManifoldEdge(t *testing.T) {
	// A flap triangle reusing an interior edge makes it non-manifold.
	mesh := unitCube()
	mesh.Triangles = append(mesh.Triangles, [3]int{0, 1, 6})

	topo := AnalyzeTopology(mesh)
	assert.False(t, topo.IsWatertight)
	assert.Greater(t, topo.NonManifoldEdgeCount, 0)
}

func TestTopologyEmptyMesh(t *testing.T) {
	topo := AnalyzeTopology(&Mesh{})
	assert.False(t, topo.IsWatertight, "an empty mesh encloses nothing")
	assert.Equal(t, 0, topo.BoundaryEdgeCount)
	assert.Equal(t, 0.0, topo.QualityScore)
}

func TestEdgeKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, edgeKey(3, 7), edgeKey(7, 3))
	assert.NotEqual(t, edgeKey(1, 2), edgeKey(1, 3))
}

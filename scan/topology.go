package scan

// edgeKey is an undirected edge in canonical form: the smaller vertex
// index in the high 32 bits. Order-independent, so (a,b) and (b,a)
// collide as intended.
func edgeKey(a, b int) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(uint32(b))
}

// AnalyzeTopology determines whether a triangle mesh is closed
// (watertight) and scores its topological health.
//
// Every triangle registers its three undirected edges; edges seen exactly
// once are boundary edges, edges seen more than twice are non-manifold.
// A mesh is watertight when it has neither. The hole count heuristic
// assumes a boundary loop of roughly four edges per hole.
func AnalyzeTopology(m *Mesh) MeshTopologyResult {
	edges := make(map[uint64]int, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		edges[edgeKey(t[0], t[1])]++
		edges[edgeKey(t[1], t[2])]++
		edges[edgeKey(t[2], t[0])]++
	}

	var boundary, nonManifold int
	for _, count := range edges {
		switch {
		case count == 1:
			boundary++
		case count > 2:
			nonManifold++
		}
	}

	v := len(m.Vertices)
	e := len(edges)
	f := len(m.Triangles)

	result := MeshTopologyResult{
		BoundaryEdgeCount:    boundary,
		NonManifoldEdgeCount: nonManifold,
		EulerCharacteristic:  v - e + f,
		IsWatertight:         boundary == 0 && nonManifold == 0 && f > 0,
	}

	if boundary > 0 {
		result.EstimatedHoleCount = boundary / 4
		if result.EstimatedHoleCount < 1 {
			result.EstimatedHoleCount = 1
		}
	}

	if result.IsWatertight {
		result.QualityScore = 1.0
	} else if v > 0 && e > 0 {
		score := 1.0 - 10.0*float64(boundary)/float64(v) - 5.0*float64(nonManifold)/float64(e)
		if score < 0 {
			score = 0
		}
		result.QualityScore = score
	}

	return result
}

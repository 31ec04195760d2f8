package scan

import (
	"fmt"
	"log"

	"github.com/golang/geo/r3"
)

// Repairer closes holes in a non-watertight mesh. Implementations must
// return a new mesh and leave the input untouched; external repair
// backends (voxel remeshing, Poisson reconstruction) plug in here.
type Repairer interface {
	Repair(m *Mesh) (*Mesh, error)
}

// EnsureClosed analyzes the mesh and, when it is not watertight, runs the
// repairer and re-validates. Measurement is never blocked: when repair
// fails or remains incomplete, the best-effort mesh is returned together
// with its degraded topology result so downstream confidence reporting can
// reflect it.
func EnsureClosed(m *Mesh, repairer Repairer) (*Mesh, MeshTopologyResult) {
	topo := AnalyzeTopology(m)
	if topo.IsWatertight || repairer == nil {
		return m, topo
	}

	log.Printf("[MESH] not watertight: boundary=%d nonManifold=%d holes~%d; repairing",
		topo.BoundaryEdgeCount, topo.NonManifoldEdgeCount, topo.EstimatedHoleCount)

	repaired, err := repairer.Repair(m)
	if err != nil {
		log.Printf("[MESH] repair failed: %v; measuring best-effort mesh (quality=%.2f)", err, topo.QualityScore)
		return m, topo
	}

	repairedTopo := AnalyzeTopology(repaired)
	if !repairedTopo.IsWatertight {
		log.Printf("[MESH] repair incomplete: boundary=%d remains (quality=%.2f)",
			repairedTopo.BoundaryEdgeCount, repairedTopo.QualityScore)
	}
	return repaired, repairedTopo
}

// FanRepairer is a built-in best-effort hole filler: it extracts boundary
// loops from the edge map and caps each loop with a triangle fan around
// the loop centroid. It fixes simple holes only; non-manifold geometry is
// left alone.
type FanRepairer struct {
	// MaxLoopLength skips implausibly long boundary loops, which usually
	// indicate a torn mesh rather than a cappable hole. Zero means no
	// limit.
	MaxLoopLength int
}

// Repair implements Repairer.
func (fr *FanRepairer) Repair(m *Mesh) (*Mesh, error) {
	loops := boundaryLoops(m)
	if len(loops) == 0 {
		return m, nil
	}

	out := &Mesh{
		Vertices:  make([]r3.Vector, len(m.Vertices), len(m.Vertices)+len(loops)),
		Triangles: make([][3]int, len(m.Triangles), len(m.Triangles)+len(loops)*4),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Triangles, m.Triangles)

	capped := 0
	for _, loop := range loops {
		if len(loop) < 3 {
			continue
		}
		if fr.MaxLoopLength > 0 && len(loop) > fr.MaxLoopLength {
			log.Printf("[MESH] skipping boundary loop of %d edges (limit %d)", len(loop), fr.MaxLoopLength)
			continue
		}

		var centroid r3.Vector
		for _, vi := range loop {
			centroid = centroid.Add(out.Vertices[vi])
		}
		centroid = centroid.Mul(1.0 / float64(len(loop)))

		center := len(out.Vertices)
		out.Vertices = append(out.Vertices, centroid)

		// The loop follows boundary-edge direction, which is opposite to
		// the winding of the surviving triangles; fanning loop[i+1] ->
		// loop[i] -> center keeps the cap's outward orientation
		// consistent with the rest of the mesh.
		for i := range loop {
			a := loop[i]
			b := loop[(i+1)%len(loop)]
			out.Triangles = append(out.Triangles, [3]int{b, a, center})
		}
		capped++
	}

	if capped == 0 {
		return m, fmt.Errorf("fan repair: no cappable boundary loops among %d", len(loops))
	}
	log.Printf("[MESH] fan repair capped %d/%d boundary loops", capped, len(loops))
	return out, nil
}

// boundaryLoops extracts closed vertex loops from the mesh's boundary
// edges. Boundary edges keep their triangle direction, so each loop is
// walked by following the successor map until it returns to its start.
func boundaryLoops(m *Mesh) [][]int {
	undirected := make(map[uint64]int)
	for _, t := range m.Triangles {
		undirected[edgeKey(t[0], t[1])]++
		undirected[edgeKey(t[1], t[2])]++
		undirected[edgeKey(t[2], t[0])]++
	}

	// Directed successor map over boundary edges only.
	next := make(map[int]int)
	for _, t := range m.Triangles {
		for _, e := range [3][2]int{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}} {
			if undirected[edgeKey(e[0], e[1])] == 1 {
				next[e[0]] = e[1]
			}
		}
	}

	var loops [][]int
	visited := make(map[int]bool)
	for start := range next {
		if visited[start] {
			continue
		}
		var loop []int
		at := start
		for {
			loop = append(loop, at)
			visited[at] = true
			nxt, ok := next[at]
			if !ok {
				loop = nil // open chain, not a cappable loop
				break
			}
			if nxt == start {
				break
			}
			if visited[nxt] {
				loop = nil
				break
			}
			at = nxt
		}
		if len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

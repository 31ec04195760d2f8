package scan

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

// meshJSON is the wire format accepted by the measurement endpoint:
// {"vertices": [[x,y,z], ...], "triangles": [[a,b,c], ...]}.
type meshJSON struct {
	Vertices  [][3]float64 `json:"vertices"`
	Triangles [][3]int     `json:"triangles"`
}

// ParseMeshJSON parses a mesh from its JSON wire format.
func ParseMeshJSON(data []byte) (*Mesh, error) {
	var mj meshJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return nil, fmt.Errorf("parsing mesh JSON: %w", err)
	}
	m := &Mesh{
		Vertices:  make([]r3.Vector, len(mj.Vertices)),
		Triangles: mj.Triangles,
	}
	for i, v := range mj.Vertices {
		m.Vertices[i] = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	}
	return m, validateIndices(m)
}

// ParseOBJ parses a Wavefront OBJ stream, reading only v and f records.
// Faces with more than three vertices are fan-triangulated; texture and
// normal indices after '/' are ignored.
func ParseOBJ(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: vertex needs 3 coordinates", line)
			}
			var coords [3]float64
			for i := 0; i < 3; i++ {
				val, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				coords[i] = val
			}
			m.Vertices = append(m.Vertices, r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face needs at least 3 vertices", line)
			}
			idx := make([]int, 0, len(fields)-1)
			for _, f := range fields[1:] {
				// "v", "v/vt", "v//vn", "v/vt/vn" all start with the
				// vertex index.
				if slash := strings.IndexByte(f, '/'); slash >= 0 {
					f = f[:slash]
				}
				vi, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				if vi < 0 {
					vi = len(m.Vertices) + 1 + vi // negative indices count from the end
				}
				idx = append(idx, vi-1)
			}
			for i := 1; i+1 < len(idx); i++ {
				m.Triangles = append(m.Triangles, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading obj: %w", err)
	}
	return m, validateIndices(m)
}

// LoadMeshFile loads a mesh from disk, choosing the parser by extension:
// .obj is Wavefront OBJ, anything else is the JSON wire format.
func LoadMeshFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(strings.ToLower(path), ".obj") {
		return ParseOBJ(f)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading mesh file: %w", err)
	}
	return ParseMeshJSON(data)
}

// validateIndices rejects triangles that reference missing vertices.
func validateIndices(m *Mesh) error {
	for i, t := range m.Triangles {
		for _, vi := range t {
			if vi < 0 || vi >= len(m.Vertices) {
				return fmt.Errorf("triangle %d references vertex %d of %d: %w",
					i, vi, len(m.Vertices), ErrInvalidMesh)
			}
		}
	}
	return nil
}

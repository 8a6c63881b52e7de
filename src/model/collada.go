// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/xml"
	"errors"
	"fmt"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korumesh/src/utility/collada"
)

// ErrNoGeometry is returned for Collada documents without a mesh.
var ErrNoGeometry = errors.New("collada document has no geometry")

// ImportCollada converts the first geometry of a Collada document into
// an indexed Mesh. Triangle corners sharing position, normal and
// texture coordinate indices become one vertex.
func ImportCollada(fileContents []byte) (*Mesh, error) {
	var doc collada.Collada
	if err := xml.Unmarshal(fileContents, &doc); err != nil {
		return nil, err
	}
	if len(doc.Geometries) == 0 {
		return nil, ErrNoGeometry
	}

	mesh := &doc.Geometries[0].Mesh
	tris := &mesh.Triangles
	stride := tris.Stride()
	if stride == 0 || len(tris.Index) == 0 {
		return nil, ErrNoGeometry
	}
	if len(tris.Index)%(stride*3) != 0 {
		return nil, fmt.Errorf("triangle index list of %d is not a multiple of %d", len(tris.Index), stride*3)
	}

	var positions, normals, uvs *sourceReader
	for _, in := range tris.Inputs {
		switch in.Semantic {
		case "VERTEX":
			posID, err := positionSource(mesh, in.Source)
			if err != nil {
				return nil, err
			}
			if positions, err = newSourceReader(mesh, posID, int(in.Offset), 3); err != nil {
				return nil, err
			}
		case "NORMAL":
			var err error
			if normals, err = newSourceReader(mesh, in.Source, int(in.Offset), 3); err != nil {
				return nil, err
			}
		case "TEXCOORD":
			if uvs != nil {
				continue
			}
			var err error
			if uvs, err = newSourceReader(mesh, in.Source, int(in.Offset), 2); err != nil {
				return nil, err
			}
		}
	}
	if positions == nil {
		return nil, errors.New("triangles have no VERTEX input")
	}

	out := &Mesh{}
	seen := make(map[[3]int]uint32)
	for corner := 0; corner < len(tris.Index)/stride; corner++ {
		p := tris.Index[corner*stride : corner*stride+stride]
		key := [3]int{positions.index(p), normals.index(p), uvs.index(p)}
		if idx, ok := seen[key]; ok {
			out.Indices = append(out.Indices, idx)
			continue
		}

		var vert Vertex
		var err error
		if vert.Pos, err = positions.vec3(p); err != nil {
			return nil, err
		}
		if normals != nil {
			if vert.Normal, err = normals.vec3(p); err != nil {
				return nil, err
			}
		}
		if uvs != nil {
			uv, err := uvs.vec2(p)
			if err != nil {
				return nil, err
			}
			// Collada puts v=0 at the bottom, Vulkan samples top down.
			vert.UV = glm.Vec2{uv.X(), 1 - uv.Y()}
		}

		idx := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, vert)
		out.Indices = append(out.Indices, idx)
		seen[key] = idx
	}

	if normals == nil {
		out.computeNormals()
	}
	return out, nil
}

func positionSource(mesh *collada.Mesh, vertexSource string) (string, error) {
	for _, in := range mesh.Vertices.Inputs {
		if in.Semantic == "POSITION" {
			return in.Source, nil
		}
	}
	// Some exporters point VERTEX straight at the positions.
	if _, ok := mesh.FindSource(vertexSource); ok {
		return vertexSource, nil
	}
	return "", fmt.Errorf("vertices %s have no POSITION input", vertexSource)
}

type sourceReader struct {
	src    *collada.Source
	offset int
	width  int
}

func newSourceReader(mesh *collada.Mesh, id string, offset, width int) (*sourceReader, error) {
	src, ok := mesh.FindSource(id)
	if !ok {
		return nil, fmt.Errorf("source %s not found", id)
	}
	if src.Stride() < width {
		return nil, fmt.Errorf("source %s has stride %d, need %d", id, src.Stride(), width)
	}
	return &sourceReader{src: src, offset: offset, width: width}, nil
}

func (r *sourceReader) index(p []int) int {
	if r == nil {
		return -1
	}
	return p[r.offset]
}

func (r *sourceReader) floats(p []int) ([]float32, error) {
	start := p[r.offset] * r.src.Stride()
	if p[r.offset] < 0 || start+r.width > len(r.src.Floats.Data) {
		return nil, fmt.Errorf("index %d out of range for source %s", p[r.offset], r.src.ID)
	}
	return r.src.Floats.Data[start : start+r.width], nil
}

func (r *sourceReader) vec3(p []int) (glm.Vec3, error) {
	f, err := r.floats(p)
	if err != nil {
		return glm.Vec3{}, err
	}
	return glm.Vec3{f[0], f[1], f[2]}, nil
}

func (r *sourceReader) vec2(p []int) (glm.Vec2, error) {
	f, err := r.floats(p)
	if err != nil {
		return glm.Vec2{}, err
	}
	return glm.Vec2{f[0], f[1]}, nil
}

// computeNormals assigns area weighted face normals to every vertex.
func (m *Mesh) computeNormals() {
	for idx := range m.Vertices {
		m.Vertices[idx].Normal = glm.Vec3{}
	}
	for t := 0; t+2 < len(m.Indices); t += 3 {
		a, b, c := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		pa, pb, pc := m.Vertices[a].Pos, m.Vertices[b].Pos, m.Vertices[c].Pos
		n := pb.Sub(pa).Cross(pc.Sub(pa))
		m.Vertices[a].Normal = m.Vertices[a].Normal.Add(n)
		m.Vertices[b].Normal = m.Vertices[b].Normal.Add(n)
		m.Vertices[c].Normal = m.Vertices[c].Normal.Add(n)
	}
	for idx := range m.Vertices {
		if m.Vertices[idx].Normal.Len() > 0 {
			m.Vertices[idx].Normal = m.Vertices[idx].Normal.Normalize()
		}
	}
}

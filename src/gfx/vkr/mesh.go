// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// Mesh is an indexed triangle mesh resident in device memory.
// Indices are 32 bit.
type Mesh struct {
	VertexBuffer vk.Buffer
	IndexBuffer  vk.Buffer
	IndexCount   uint32
}

// UploadMesh copies packed vertex data and indices into new
// host visible vertex and index buffers.
func UploadMesh(dev Device, ma *MemoryAllocator, vertices []byte, indices []uint32) (*MeshBuffers, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("mesh has no vertices or no indices")
	}

	vertexBuffer, err := NewBuffer(dev, ma, uint(len(vertices)), vk.BufferUsageVertexBufferBit, HostVisible)
	if err != nil {
		return nil, err
	}
	if err := vertexBuffer.Write(vertices); err != nil {
		vertexBuffer.Release()
		return nil, err
	}

	indexBytes := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
	indexBuffer, err := NewBuffer(dev, ma, uint(len(indexBytes)), vk.BufferUsageIndexBufferBit, HostVisible)
	if err != nil {
		vertexBuffer.Release()
		return nil, err
	}
	if err := indexBuffer.Write(indexBytes); err != nil {
		vertexBuffer.Release()
		indexBuffer.Release()
		return nil, err
	}

	log.WithFields(log.Fields{
		"vertexBytes": len(vertices),
		"indices":     len(indices),
	}).Debug("mesh uploaded")

	return &MeshBuffers{
		vertices: vertexBuffer,
		indices:  indexBuffer,
		count:    uint32(len(indices)),
	}, nil
}

// MeshBuffers owns the buffers behind a Mesh.
type MeshBuffers struct {
	vertices Buffer
	indices  Buffer
	count    uint32
}

// Mesh returns the handles to draw with.
func (m *MeshBuffers) Mesh() Mesh {
	return Mesh{
		VertexBuffer: m.vertices.Get(),
		IndexBuffer:  m.indices.Get(),
		IndexCount:   m.count,
	}
}

// Release destroys both buffers.
func (m *MeshBuffers) Release() {
	m.vertices.Release()
	m.indices.Release()
	m.count = 0
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"
)

// ErrNoMemoryType is returned when no memory type of the device
// satisfies both the resource filter and the requested properties.
var ErrNoMemoryType = errors.New("suitable memory type not found")

// Memory defines a usable memory region.
type Memory struct {
	len, offset uint
	device      Device
	memory      vk.DeviceMemory
	mapped      []byte
}

// Len returns the length of assigned memory.
func (m *Memory) Len() uint {
	return m.len
}

// Offset returns the start location of assigned memory.
func (m *Memory) Offset() uint {
	return m.offset
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Mapped returns the current mapping, nil when unmapped.
func (m *Memory) Mapped() []byte {
	return m.mapped
}

// Map maps the entire available memory region. Mapping an
// already mapped region returns the existing mapping.
func (m *Memory) Map() ([]byte, error) {
	if m.mapped != nil {
		return m.mapped, nil
	}
	mapped, err := m.device.MapMemory(m.memory, vk.DeviceSize(m.offset), vk.DeviceSize(m.len))
	if err != nil {
		return nil, err
	}
	m.mapped = mapped
	return mapped, nil
}

// Unmap removes the memory mapping if it was mapped.
func (m *Memory) Unmap() {
	if m.mapped != nil {
		m.device.UnmapMemory(m.memory)
		m.mapped = nil
	}
}

// Release frees memory after unmapping it if previously mapped.
func (m *Memory) Release() {
	if m.memory == nil {
		return
	}
	m.Unmap()
	m.device.FreeMemory(m.memory)
	m.memory = nil
}

// NewMemoryAllocator creates a new memory allocator for the device.
// Memory properties of the device steer type selection.
func NewMemoryAllocator(device Device) *MemoryAllocator {
	return &MemoryAllocator{
		device:        device,
		memProperties: device.MemoryProperties(),
	}
}

// MemoryAllocator is responsible returning usable
// memory for any resources that may need it.
type MemoryAllocator struct {
	device        Device
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Malloc returns a usable memory chunk ready for use.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, err := ma.FindMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return Memory{}, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	memory, err := ma.device.AllocateMemory(&mai)
	if err != nil {
		return Memory{}, err
	}

	return Memory{
		offset: 0,
		len:    uint(req.Size),
		device: ma.device,
		memory: memory,
	}, nil
}

// FindMemoryType returns the first memory type index allowed
// by filter that carries every bit of prop.
func (ma *MemoryAllocator) FindMemoryType(filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < ma.memProperties.MemoryTypeCount; idx++ {
		if filter&(1<<idx) != 0 && (ma.memProperties.MemoryTypes[idx].PropertyFlags&prop) == prop {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("filter %#x, properties %#x: %w", filter, prop, ErrNoMemoryType)
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan resource primitives
// that draw units are assembled from.
package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/gfx"
)

// Memory property combinations used across the renderer.
const (
	HostVisible = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	DeviceLocal = vk.MemoryPropertyDeviceLocalBit
)

// NewBuffer creates, configures, allocates and binds a new buffer.
// Nothing is leaked when any of the steps fail.
func NewBuffer(dev Device, ma *MemoryAllocator, size uint, usage vk.BufferUsageFlagBits, props vk.MemoryPropertyFlagBits) (Buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	buffer, err := dev.CreateBuffer(&createInfo)
	if err != nil {
		return Buffer{}, err
	}

	memory, err := ma.Malloc(dev.BufferMemoryRequirements(buffer), props)
	if err != nil {
		dev.DestroyBuffer(buffer)
		return Buffer{}, err
	}

	if err := dev.BindBufferMemory(buffer, memory.Get(), vk.DeviceSize(memory.Offset())); err != nil {
		dev.DestroyBuffer(buffer)
		memory.Release()
		return Buffer{}, err
	}

	return Buffer{
		device: dev,
		buffer: buffer,
		size:   size,
		memory: memory,
	}, nil
}

// Buffer implements a generic vulkan buffer.
type Buffer struct {
	device Device
	buffer vk.Buffer
	size   uint

	memory Memory
}

// Mem returns the Memory that the buffer is based on.
func (b *Buffer) Mem() *Memory {
	return &b.memory
}

// Get returns the vulkan Buffer handle.
func (b *Buffer) Get() vk.Buffer {
	return b.buffer
}

// Size returns the requested size of the buffer in bytes.
func (b *Buffer) Size() uint {
	return b.size
}

// Write copies data to the start of a host visible buffer.
// The memory is mapped for the duration of the copy only,
// unless it was already mapped.
func (b *Buffer) Write(data []byte) error {
	if uint(len(data)) > b.size {
		return fmt.Errorf("write of %d bytes into %d byte buffer", len(data), b.size)
	}
	wasMapped := b.memory.Mapped() != nil
	mapped, err := b.memory.Map()
	if err != nil {
		return err
	}
	copy(mapped, data)
	if !wasMapped {
		b.memory.Unmap()
	}
	return nil
}

// Release destroys the buffer and memory asociated with it.
func (b *Buffer) Release() {
	if b.buffer == nil {
		return
	}
	b.device.DestroyBuffer(b.buffer)
	b.memory.Release()
	b.buffer = nil
}

// NewMappedBuffer creates a host visible, host coherent buffer of size
// bytes and maps it for its whole lifetime. Writes to Mapping are seen
// by the device without flushing.
func NewMappedBuffer(dev Device, ma *MemoryAllocator, size uint, usage vk.BufferUsageFlagBits) (*MappedBuffer, error) {
	buffer, err := NewBuffer(dev, ma, size, usage, HostVisible)
	if err != nil {
		return nil, err
	}
	mapped, err := buffer.Mem().Map()
	if err != nil {
		buffer.Release()
		return nil, err
	}
	if uint(len(mapped)) < size {
		buffer.Release()
		return nil, fmt.Errorf("mapped %d bytes, need %d", len(mapped), size)
	}

	log.WithFields(log.Fields{
		"size":  size,
		"usage": usage,
	}).Debug("mapped buffer created")

	return &MappedBuffer{
		Buffer:  buffer,
		Mapping: mapped[:size],
	}, nil
}

// MappedBuffer is a Buffer that stays mapped until released.
type MappedBuffer struct {
	Buffer

	// Mapping is the host view of the buffer contents.
	Mapping []byte
}

// Release unmaps, destroys and frees the buffer.
func (b *MappedBuffer) Release() {
	b.Mapping = nil
	b.Buffer.Release()
}

// ImageInfo describes a two dimensional image to create.
type ImageInfo struct {
	Extent    gfx.Extent3D
	Format    vk.Format
	MipLevels uint32
	Tiling    vk.ImageTiling
	Usage     vk.ImageUsageFlagBits
	Aspect    vk.ImageAspectFlagBits
}

// NewImage creates a vulkan image, backs it with memory of props
// and creates a view over every mip level.
func NewImage(dev Device, ma *MemoryAllocator, info ImageInfo, props vk.MemoryPropertyFlagBits) (Image, error) {
	if info.MipLevels == 0 {
		info.MipLevels = 1
	}
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  info.Extent.Depth,
		},
		MipLevels:     info.MipLevels,
		ArrayLayers:   1,
		Format:        info.Format,
		Tiling:        info.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	var rel gfx.Releaser
	defer rel.Release()

	image, err := dev.CreateImage(&createInfo)
	if err != nil {
		return Image{}, err
	}
	rel.PushFunc(func() { dev.DestroyImage(image) })

	memory, err := ma.Malloc(dev.ImageMemoryRequirements(image), props)
	if err != nil {
		return Image{}, err
	}
	rel.Push(&memory)

	if err := dev.BindImageMemory(image, memory.Get(), vk.DeviceSize(memory.Offset())); err != nil {
		return Image{}, err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   info.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(info.Aspect),
			LevelCount: info.MipLevels,
			LayerCount: 1,
		},
	}
	view, err := dev.CreateImageView(&viewInfo)
	if err != nil {
		return Image{}, err
	}

	rel.Keep()
	return Image{
		device: dev,
		image:  image,
		view:   view,
		info:   info,
		memory: memory,
	}, nil
}

// Image implements and abstracts vulkan image primitive.
type Image struct {
	device Device
	image  vk.Image
	view   vk.ImageView
	info   ImageInfo
	memory Memory
}

// Mem returns the underlying memory of the Image.
func (i *Image) Mem() *Memory {
	return &i.memory
}

// Get returns the vulkan Image handle.
func (i *Image) Get() vk.Image {
	return i.image
}

// View returns the view covering every mip level.
func (i *Image) View() vk.ImageView {
	return i.view
}

// Info returns the description the image was created with.
func (i *Image) Info() ImageInfo {
	return i.info
}

// Release destroys the view, the image and its memory.
func (i *Image) Release() {
	if i.image == nil {
		return
	}
	i.device.DestroyImageView(i.view)
	i.device.DestroyImage(i.image)
	i.memory.Release()
	i.image, i.view = nil, nil
}

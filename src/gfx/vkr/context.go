// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"

	"github.com/devblok/korumesh/src/gfx"
)

// Context is handed to draw units by the renderer that hosts them.
// Device, Allocator, DescriptorPool and Shaders live as long as the
// renderer. Commands and SurfaceExtent are refreshed every frame.
type Context struct {
	Device    Device
	Allocator *MemoryAllocator

	// Commands records into the current frame's command buffer.
	Commands CommandStream

	// DescriptorPool is where draw units allocate their sets from.
	DescriptorPool vk.DescriptorPool

	// SurfaceExtent is the current swapchain size in pixels.
	SurfaceExtent gfx.Extent2D

	// Shaders resolves compiled SPIR-V binaries by path.
	Shaders gfx.Source
}

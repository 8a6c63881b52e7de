// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"image"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/gfx/vkr"
	"github.com/devblok/korumesh/src/model"
)

// TextureFormat is the format textures are uploaded in.
const TextureFormat = vk.FormatR8g8b8a8Unorm

// SceneMesh returns the configured mesh, the unit cube when none is set.
func SceneMesh(scene SceneConfiguration, assets gfx.Source) (*model.Mesh, error) {
	if scene.Mesh == "" {
		return model.Cube(), nil
	}
	data, err := assets.Find(scene.Mesh)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", scene.Mesh, err)
	}
	mesh, err := model.ImportCollada(data)
	if err != nil {
		return nil, fmt.Errorf("mesh %s: %w", scene.Mesh, err)
	}
	return mesh, nil
}

// SceneTexture returns the configured texture, a checker board
// when none is set.
func SceneTexture(scene SceneConfiguration, assets gfx.Source) (image.Image, error) {
	if scene.Texture == "" {
		return Checkerboard(256, 8), nil
	}
	data, err := assets.Find(scene.Texture)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", scene.Texture, err)
	}
	img, err := DecodeTexture(data)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", scene.Texture, err)
	}
	return img, nil
}

func (v *VulkanRenderer) loadMesh() error {
	mesh, err := SceneMesh(v.scene, v.assets)
	if err != nil {
		return err
	}
	buffers, err := vkr.UploadMesh(v.device, v.allocator, mesh.VertexBytes(), mesh.Indices)
	if err != nil {
		return fmt.Errorf("mesh upload: %w", err)
	}
	v.mesh = buffers
	return nil
}

// loadTexture uploads the scene texture with its full mip chain
// into a device local image left in shader read layout.
func (v *VulkanRenderer) loadTexture() error {
	img, err := SceneTexture(v.scene, v.assets)
	if err != nil {
		return err
	}
	chain := GenerateMipChain(img)

	var total int
	for _, level := range chain {
		total += len(level.Pix)
	}
	pixels := make([]byte, 0, total)
	regions := make([]vk.BufferImageCopy, len(chain))
	for idx, level := range chain {
		regions[idx] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(len(pixels)),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:   uint32(idx),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{
				Width:  uint32(level.Bounds().Dx()),
				Height: uint32(level.Bounds().Dy()),
				Depth:  1,
			},
		}
		pixels = append(pixels, level.Pix...)
	}

	staging, err := vkr.NewBuffer(v.device, v.allocator, uint(len(pixels)), vk.BufferUsageTransferSrcBit, vkr.HostVisible)
	if err != nil {
		return fmt.Errorf("texture staging buffer: %w", err)
	}
	defer staging.Release()
	if err := staging.Write(pixels); err != nil {
		return fmt.Errorf("texture staging buffer: %w", err)
	}

	bounds := chain[0].Bounds()
	texture, err := vkr.NewImage(v.device, v.allocator, vkr.ImageInfo{
		Extent:    gfx.Extent3D{Width: uint32(bounds.Dx()), Height: uint32(bounds.Dy()), Depth: 1},
		Format:    TextureFormat,
		MipLevels: uint32(len(chain)),
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit,
		Aspect:    vk.ImageAspectColorBit,
	}, vkr.DeviceLocal)
	if err != nil {
		return fmt.Errorf("texture image: %w", err)
	}
	v.texture = texture

	err = v.singleTimeCommands(func(cmd vk.CommandBuffer) {
		v.transitionLayout(cmd, texture.Get(), uint32(len(chain)), vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		vk.CmdCopyBufferToImage(cmd, staging.Get(), texture.Get(), vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
		v.transitionLayout(cmd, texture.Get(), uint32(len(chain)), vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		return fmt.Errorf("texture upload: %w", err)
	}

	log.WithFields(log.Fields{
		"width":     bounds.Dx(),
		"height":    bounds.Dy(),
		"mipLevels": len(chain),
		"bytes":     len(pixels),
	}).Debug("texture uploaded")
	return nil
}

// singleTimeCommands records with record into a fresh command buffer,
// submits it and waits for the queue to finish.
func (v *VulkanRenderer) singleTimeCommands(record func(cmd vk.CommandBuffer)) error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		Level:              vk.CommandBufferLevelPrimary,
		CommandPool:        v.commandPool,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vk.CommandBuffer, 1)
	if err := vk.Error(vk.AllocateCommandBuffers(v.logicalDevice, &cbai, commandBuffers)); err != nil {
		return fmt.Errorf("vk.AllocateCommandBuffers(): %s", err)
	}
	defer vk.FreeCommandBuffers(v.logicalDevice, v.commandPool, 1, commandBuffers)

	cmd := vkr.NewCommandBuffer(commandBuffers[0])
	if err := cmd.Begin(vk.CommandBufferUsageOneTimeSubmitBit); err != nil {
		return err
	}
	record(cmd.Get())
	if err := cmd.End(); err != nil {
		return err
	}

	si := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}}
	if err := vk.Error(vk.QueueSubmit(v.deviceQueue, 1, si, nil)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %s", err)
	}
	if err := vk.Error(vk.QueueWaitIdle(v.deviceQueue)); err != nil {
		return fmt.Errorf("vk.QueueWaitIdle(): %s", err)
	}
	return nil
}

// transitionLayout records a barrier moving every mip level of a
// color image between the two layouts a texture upload goes through.
func (v *VulkanRenderer) transitionLayout(cmd vk.CommandBuffer, img vk.Image, levels uint32, old, new vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           old,
		NewLayout:           new,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: levels,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	if old == vk.ImageLayoutUndefined {
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	} else {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	}
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/gfx/drawmesh"
	"github.com/devblok/korumesh/src/gfx/vkr"
)

// DepthFormat is the format of the depth attachment.
const DepthFormat = vk.FormatD16Unorm

// ErrNoSuitableDevice is returned when no physical device can run the renderer.
var ErrNoSuitableDevice = errors.New("no suitable physical device")

var _ Renderer = (*VulkanRenderer)(nil)

// NewVulkanRenderer creates a not yet initialised Vulkan API renderer
// on the first physical device that passes DeviceIsSuitable.
// Shaders, meshes and textures are looked up in assets.
func NewVulkanRenderer(instance Instance, cfg RendererConfiguration, scene SceneConfiguration, assets gfx.Source) (*VulkanRenderer, error) {
	v := &VulkanRenderer{
		configuration: cfg,
		scene:         scene,
		assets:        assets,
		surface:       instance.Surface(),
		surfaceExtent: gfx.Extent2D{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight},
	}
	v.showTextureLOD.Store(scene.ShowTextureLOD)

	for idx, device := range instance.AvailableDevices() {
		ok, reason := v.DeviceIsSuitable(device)
		if ok {
			v.physicalDevice = device
			return v, nil
		}
		log.WithFields(log.Fields{
			"device": idx,
			"reason": reason,
		}).Info("skipping physical device")
	}
	return nil, ErrNoSuitableDevice
}

// VulkanRenderer draws one textured mesh with a drawmesh.Unit.
// One frame is in flight at a time, so the unit's single uniform
// buffer is never written while the device reads it.
type VulkanRenderer struct {
	configuration RendererConfiguration
	scene         SceneConfiguration
	assets        gfx.Source

	surface       vk.Surface
	surfaceExtent gfx.Extent2D

	physicalDevice     vk.PhysicalDevice
	logicalDevice      vk.Device
	deviceQueue        vk.Queue
	graphicsQueueIndex uint32

	device        *vkr.VulkanDevice
	allocator     *vkr.MemoryAllocator
	pipelineCache vk.PipelineCache

	imageFormat     vk.Format
	imageColorspace vk.ColorSpace

	swapchain           vk.Swapchain
	swapchainImages     []vk.Image
	swapchainImageViews []vk.ImageView
	framebuffers        []vk.Framebuffer
	// swapchainStale is set while the surface has no area.
	swapchainStale bool

	depth      vkr.Image
	renderPass vk.RenderPass

	commandPool    vk.CommandPool
	commandBuffers []*vkr.CommandBuffer

	imageFence              vk.Fence
	renderFinishedSemaphore vk.Semaphore
	imageAvailableSemaphore vk.Semaphore
	imageIndex              uint32
	frameSubmitted          bool

	descriptorPool vk.DescriptorPool
	textureSampler vk.Sampler
	texture        vkr.Image
	mesh           *vkr.MeshBuffers

	unit drawmesh.Unit
	ctx  vkr.Context

	showTextureLOD atomic.Bool
}

// Initialise implements interface
func (v *VulkanRenderer) Initialise() error {
	if err := v.createDevice(); err != nil {
		return err
	}
	if err := v.chooseSurfaceFormat(); err != nil {
		return err
	}
	if err := v.createPipelineCache(); err != nil {
		return err
	}

	v.device = vkr.NewDevice(v.physicalDevice, v.logicalDevice, v.pipelineCache)
	v.allocator = vkr.NewMemoryAllocator(v.device)

	if err := v.createSwapchain(nil); err != nil {
		return err
	}
	if v.swapchainStale {
		return errors.New("surface has no area")
	}
	if err := v.createRenderPass(); err != nil {
		return err
	}
	if err := v.createSwapchainResources(); err != nil {
		return err
	}
	if err := v.createCommandPool(); err != nil {
		return err
	}
	if err := v.allocateCommandBuffers(); err != nil {
		return err
	}
	if err := v.createSynchronization(); err != nil {
		return err
	}
	if err := v.prepareDescriptorPool(); err != nil {
		return err
	}
	if err := v.loadMesh(); err != nil {
		return err
	}
	if err := v.loadTexture(); err != nil {
		return err
	}
	if err := v.createTextureSampler(v.texture.Info().MipLevels); err != nil {
		return err
	}

	v.ctx = vkr.Context{
		Device:         v.device,
		Allocator:      v.allocator,
		DescriptorPool: v.descriptorPool,
		SurfaceExtent:  v.surfaceExtent,
		Shaders:        v.assets,
	}
	if err := v.unit.Create(&v.ctx, v.renderPass, v.texture.View(), v.textureSampler); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"width":     v.surfaceExtent.Width,
		"height":    v.surfaceExtent.Height,
		"images":    len(v.swapchainImages),
		"triangles": v.mesh.Mesh().IndexCount / 3,
		"mipLevels": v.texture.Info().MipLevels,
	}).Info("renderer initialised")
	return nil
}

// DeviceIsSuitable implements interface. A device needs the
// configured extensions, anisotropic sampling and one queue family
// that does both graphics and present to the surface.
func (v *VulkanRenderer) DeviceIsSuitable(device vk.PhysicalDevice) (bool, string) {
	available, err := deviceExtensions(device)
	if err != nil {
		return false, err.Error()
	}
	for _, ext := range v.requiredExtensions() {
		if !containsString(available, ext) {
			return false, "missing device extension " + ext
		}
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()
	if !features.SamplerAnisotropy.B() {
		return false, "no sampler anisotropy"
	}

	if _, ok := v.findQueueFamily(device); !ok {
		return false, "no queue family with graphics and present support"
	}
	return true, ""
}

func (v *VulkanRenderer) requiredExtensions() []string {
	exts := append([]string(nil), v.configuration.DeviceExtensions...)
	if !containsString(exts, vk.KhrSwapchainExtensionName) {
		exts = append(exts, vk.KhrSwapchainExtensionName)
	}
	return exts
}

func (v *VulkanRenderer) findQueueFamily(device vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	for idx := uint32(0); idx < count; idx++ {
		families[idx].Deref()
		if families[idx].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, idx, v.surface, &supportsPresent)
		if supportsPresent.B() {
			return idx, true
		}
	}
	return 0, false
}

func (v *VulkanRenderer) createDevice() error {
	queueIndex, ok := v.findQueueFamily(v.physicalDevice)
	if !ok {
		return errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no graphics queue with present support")
	}
	v.graphicsQueueIndex = queueIndex

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: v.graphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}

	extensions := v.requiredExtensions()
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},
	}

	var device vk.Device
	if err := vk.Error(vk.CreateDevice(v.physicalDevice, &dci, nil, &device)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	v.logicalDevice = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, v.graphicsQueueIndex, 0, &queue)
	v.deviceQueue = queue
	return nil
}

func (v *VulkanRenderer) chooseSurfaceFormat() error {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(v.physicalDevice, v.surface, &count, nil)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	if count == 0 {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): surface has no formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(v.physicalDevice, v.surface, &count, formats)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}

	chosen := formats[0]
	chosen.Deref()
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Unorm {
			chosen = f
			break
		}
	}
	if chosen.Format == vk.FormatUndefined {
		chosen.Format = vk.FormatB8g8r8a8Unorm
	}
	v.imageFormat = chosen.Format
	v.imageColorspace = chosen.ColorSpace
	return nil
}

func (v *VulkanRenderer) createPipelineCache() error {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	var pipelineCache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(v.logicalDevice, &pcci, nil, &pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	v.pipelineCache = pipelineCache
	return nil
}

func (v *VulkanRenderer) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: v.graphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(v.logicalDevice, &cpci, nil, &commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	v.commandPool = commandPool
	return nil
}

func (v *VulkanRenderer) allocateCommandBuffers() error {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        v.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(len(v.swapchainImages)),
	}
	raw := make([]vk.CommandBuffer, len(v.swapchainImages))
	if err := vk.Error(vk.AllocateCommandBuffers(v.logicalDevice, &cbai, raw)); err != nil {
		return errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}
	v.commandBuffers = make([]*vkr.CommandBuffer, len(raw))
	for idx, cmd := range raw {
		v.commandBuffers[idx] = vkr.NewCommandBuffer(cmd)
	}
	return nil
}

func (v *VulkanRenderer) freeCommandBuffers() {
	if len(v.commandBuffers) == 0 {
		return
	}
	raw := make([]vk.CommandBuffer, len(v.commandBuffers))
	for idx, cmd := range v.commandBuffers {
		raw[idx] = cmd.Get()
	}
	vk.FreeCommandBuffers(v.logicalDevice, v.commandPool, uint32(len(raw)), raw)
	v.commandBuffers = nil
}

func (v *VulkanRenderer) createSynchronization() error {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}

	var (
		imageAvailableSemaphore vk.Semaphore
		renderFinishedSemaphore vk.Semaphore
		fence                   vk.Fence
	)
	if err := vk.Error(vk.CreateSemaphore(v.logicalDevice, &sci, nil, &imageAvailableSemaphore)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	v.imageAvailableSemaphore = imageAvailableSemaphore
	if err := vk.Error(vk.CreateSemaphore(v.logicalDevice, &sci, nil, &renderFinishedSemaphore)); err != nil {
		return errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	v.renderFinishedSemaphore = renderFinishedSemaphore
	if err := vk.Error(vk.CreateFence(v.logicalDevice, &fci, nil, &fence)); err != nil {
		return errors.New("vk.CreateFence(): " + err.Error())
	}
	v.imageFence = fence
	return nil
}

// prepareDescriptorPool sizes the pool for the draw unit's one set.
func (v *VulkanRenderer) prepareDescriptorPool() error {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 1},
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var descriptorPool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(v.logicalDevice, &dpci, nil, &descriptorPool)); err != nil {
		return fmt.Errorf("vk.CreateDescriptorPool(): %s", err)
	}
	v.descriptorPool = descriptorPool
	return nil
}

func (v *VulkanRenderer) createTextureSampler(mipLevels uint32) error {
	sci := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           16,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  float32(mipLevels),
	}

	var textureSampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(v.logicalDevice, &sci, nil, &textureSampler)); err != nil {
		return fmt.Errorf("vk.CreateSampler(): %s", err)
	}
	v.textureSampler = textureSampler
	return nil
}

// Draw implements interface. It waits for the previous frame,
// writes the transforms and records and submits the next one.
// When the swapchain is out of date it is recreated and no frame
// is submitted.
func (v *VulkanRenderer) Draw(model, view glm.Mat3x4) error {
	v.frameSubmitted = false
	if v.swapchainStale {
		if err := v.recreateSwapchain(); err != nil || v.swapchainStale {
			return err
		}
	}

	fences := []vk.Fence{v.imageFence}
	if err := vk.Error(vk.WaitForFences(v.logicalDevice, 1, fences, vk.True, math.MaxUint64)); err != nil {
		return fmt.Errorf("vk.WaitForFences(): %s", err)
	}

	result := vk.AcquireNextImage(v.logicalDevice, v.swapchain, math.MaxUint64, v.imageAvailableSemaphore, nil, &v.imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		return v.recreateSwapchain()
	default:
		return fmt.Errorf("vk.AcquireNextImage(): %s", vk.Error(result))
	}

	cmd := v.commandBuffers[v.imageIndex]
	v.ctx.Commands = cmd
	v.ctx.SurfaceExtent = v.surfaceExtent
	v.unit.Update(&v.ctx, model, view)

	if err := v.recordFrame(cmd); err != nil {
		return err
	}

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{v.imageAvailableSemaphore},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.Get()},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{v.renderFinishedSemaphore},
	}}
	// Reset only once a submit follows, a failed frame must leave the fence signalled.
	if err := vk.Error(vk.ResetFences(v.logicalDevice, 1, fences)); err != nil {
		return fmt.Errorf("vk.ResetFences(): %s", err)
	}
	if err := vk.Error(vk.QueueSubmit(v.deviceQueue, 1, submit, v.imageFence)); err != nil {
		return fmt.Errorf("vk.QueueSubmit(): %s", err)
	}
	v.frameSubmitted = true
	return nil
}

func (v *VulkanRenderer) recordFrame(cmd *vkr.CommandBuffer) error {
	if err := cmd.Begin(vk.CommandBufferUsageOneTimeSubmitBit); err != nil {
		return err
	}

	extent := vk.Extent2D{Width: v.surfaceExtent.Width, Height: v.surfaceExtent.Height}
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{0.005, 0.005, 0.005, 1})
	clearValues[1].SetDepthStencil(1, 0)

	cmd.BeginRenderPass(&vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  v.renderPass,
		Framebuffer: v.framebuffers[v.imageIndex],
		RenderArea: vk.Rect2D{
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	})
	cmd.SetViewport(vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	cmd.SetScissor(vk.Rect2D{Extent: extent})

	v.unit.Dispatch(&v.ctx, v.mesh.Mesh(), v.ShowTextureLOD())

	cmd.EndRenderPass()
	return cmd.End()
}

// Present implements interface. It does nothing when the last
// Draw submitted no frame.
func (v *VulkanRenderer) Present() error {
	if !v.frameSubmitted {
		return nil
	}
	v.frameSubmitted = false

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{v.renderFinishedSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{v.swapchain},
		PImageIndices:      []uint32{v.imageIndex},
	}
	switch result := vk.QueuePresent(v.deviceQueue, &presentInfo); result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return v.recreateSwapchain()
	default:
		return errors.New("vk.QueuePresent(): " + vk.Error(result).Error())
	}
}

// SetShowTextureLOD implements interface. It is safe to call
// while another goroutine draws.
func (v *VulkanRenderer) SetShowTextureLOD(show bool) {
	v.showTextureLOD.Store(show)
}

// ShowTextureLOD implements interface
func (v *VulkanRenderer) ShowTextureLOD() bool {
	return v.showTextureLOD.Load()
}

// SurfaceExtent returns the current swapchain size.
func (v *VulkanRenderer) SurfaceExtent() gfx.Extent2D {
	return v.surfaceExtent
}

// Destroy implements interface. It copes with a renderer whose
// Initialise failed part way.
func (v *VulkanRenderer) Destroy() {
	if v.logicalDevice == nil {
		return
	}
	vk.DeviceWaitIdle(v.logicalDevice)

	v.unit.Destroy()
	if v.mesh != nil {
		v.mesh.Release()
		v.mesh = nil
	}
	v.texture.Release()
	vk.DestroySampler(v.logicalDevice, v.textureSampler, nil)
	vk.DestroyDescriptorPool(v.logicalDevice, v.descriptorPool, nil)

	vk.DestroySemaphore(v.logicalDevice, v.imageAvailableSemaphore, nil)
	vk.DestroySemaphore(v.logicalDevice, v.renderFinishedSemaphore, nil)
	vk.DestroyFence(v.logicalDevice, v.imageFence, nil)
	v.freeCommandBuffers()
	vk.DestroyCommandPool(v.logicalDevice, v.commandPool, nil)

	v.destroySwapchainResources()
	vk.DestroyRenderPass(v.logicalDevice, v.renderPass, nil)
	vk.DestroySwapchain(v.logicalDevice, v.swapchain, nil)
	vk.DestroyPipelineCache(v.logicalDevice, v.pipelineCache, nil)
	vk.DestroyDevice(v.logicalDevice, nil)
	v.logicalDevice = nil

	log.Debug("renderer destroyed")
}

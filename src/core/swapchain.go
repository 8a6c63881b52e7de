// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"math"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/gfx/vkr"
)

// createSwapchain builds a swapchain sized to the surface, falling
// back to the configured screen size when the surface leaves it to us.
// A zero sized surface marks the swapchain stale instead.
func (v *VulkanRenderer) createSwapchain(oldSwapchain vk.Swapchain) error {
	var surfaceCapabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(v.physicalDevice, v.surface, &surfaceCapabilities)); err != nil {
		return errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	surfaceCapabilities.Deref()
	surfaceCapabilities.CurrentExtent.Deref()
	surfaceCapabilities.MinImageExtent.Deref()
	surfaceCapabilities.MaxImageExtent.Deref()

	extent := surfaceExtent(surfaceCapabilities, gfx.Extent2D{
		Width:  v.configuration.ScreenWidth,
		Height: v.configuration.ScreenHeight,
	})
	if extent.Width == 0 || extent.Height == 0 {
		v.swapchainStale = true
		return nil
	}

	imageCount := v.configuration.SwapchainSize
	if imageCount < surfaceCapabilities.MinImageCount {
		imageCount = surfaceCapabilities.MinImageCount
	}
	if surfaceCapabilities.MaxImageCount > 0 && imageCount > surfaceCapabilities.MaxImageCount {
		imageCount = surfaceCapabilities.MaxImageCount
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if surfaceCapabilities.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         v.surface,
		MinImageCount:   imageCount,
		ImageFormat:     v.imageFormat,
		ImageColorSpace: v.imageColorspace,
		ImageExtent: vk.Extent2D{
			Width:  extent.Width,
			Height: extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     surfaceCapabilities.CurrentTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     oldSwapchain,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(v.logicalDevice, &scci, nil, &swapchain)); err != nil {
		return errors.New("vk.CreateSwapchain(): " + err.Error())
	}
	v.swapchain = swapchain
	v.surfaceExtent = extent
	v.swapchainStale = false

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(v.logicalDevice, v.swapchain, &numImages, nil)); err != nil {
		return errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	v.swapchainImages = make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(v.logicalDevice, v.swapchain, &numImages, v.swapchainImages)); err != nil {
		return errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}
	return nil
}

// surfaceExtent picks the swapchain size. A current extent of
// 0xFFFFFFFF means the surface takes whatever the swapchain has.
func surfaceExtent(caps vk.SurfaceCapabilities, fallback gfx.Extent2D) gfx.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return gfx.Extent2D{
			Width:  caps.CurrentExtent.Width,
			Height: caps.CurrentExtent.Height,
		}
	}
	return gfx.Extent2D{
		Width:  clampUint32(fallback.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(fallback.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clampUint32(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// createRenderPass builds a pass with a cleared color attachment
// that ends up presentable and a cleared depth attachment.
// It only depends on formats, so it outlives swapchain recreation.
func (v *VulkanRenderer) createRenderPass() error {
	attachments := []vk.AttachmentDescription{
		{
			Format:         v.imageFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorAttachmentRef)),
		PColorAttachments:       colorAttachmentRef,
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(v.logicalDevice, &rpci, nil, &renderPass)); err != nil {
		return errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	v.renderPass = renderPass
	return nil
}

// createSwapchainResources makes the image views, the depth image
// and the framebuffers for the current swapchain.
func (v *VulkanRenderer) createSwapchainResources() error {
	for idx, image := range v.swapchainImages {
		ivci := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   v.imageFormat,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var imageView vk.ImageView
		if err := vk.Error(vk.CreateImageView(v.logicalDevice, &ivci, nil, &imageView)); err != nil {
			return fmt.Errorf("vk.CreateImageView()[%d]: %s", idx, err)
		}
		v.swapchainImageViews = append(v.swapchainImageViews, imageView)
	}

	depth, err := vkr.NewImage(v.device, v.allocator, vkr.ImageInfo{
		Extent:    gfx.Extent3D{Width: v.surfaceExtent.Width, Height: v.surfaceExtent.Height, Depth: 1},
		Format:    DepthFormat,
		MipLevels: 1,
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageDepthStencilAttachmentBit,
		Aspect:    vk.ImageAspectDepthBit,
	}, vkr.DeviceLocal)
	if err != nil {
		return fmt.Errorf("depth image: %w", err)
	}
	v.depth = depth

	for idx, view := range v.swapchainImageViews {
		attachments := []vk.ImageView{view, v.depth.View()}
		fci := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      v.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           v.surfaceExtent.Width,
			Height:          v.surfaceExtent.Height,
			Layers:          1,
		}
		var framebuffer vk.Framebuffer
		if err := vk.Error(vk.CreateFramebuffer(v.logicalDevice, &fci, nil, &framebuffer)); err != nil {
			return fmt.Errorf("vk.CreateFramebuffer()[%d]: %s", idx, err)
		}
		v.framebuffers = append(v.framebuffers, framebuffer)
	}
	return nil
}

// destroySwapchainResources undoes createSwapchainResources.
// The swapchain images belong to the swapchain and are left alone.
func (v *VulkanRenderer) destroySwapchainResources() {
	for _, fb := range v.framebuffers {
		vk.DestroyFramebuffer(v.logicalDevice, fb, nil)
	}
	v.framebuffers = nil
	for _, iv := range v.swapchainImageViews {
		vk.DestroyImageView(v.logicalDevice, iv, nil)
	}
	v.swapchainImageViews = nil
	v.depth.Release()
}

// recreateSwapchain rebuilds the swapchain and what depends on its
// size. The render pass, pipeline and draw unit are kept; the new
// size reaches the unit through the context on the next Draw.
func (v *VulkanRenderer) recreateSwapchain() error {
	vk.DeviceWaitIdle(v.logicalDevice)

	imageCount := len(v.swapchainImages)
	v.destroySwapchainResources()

	old := v.swapchain
	if err := v.createSwapchain(old); err != nil {
		return err
	}
	if v.swapchainStale {
		log.Debug("surface has no area, swapchain recreation postponed")
		return nil
	}
	if old != nil {
		vk.DestroySwapchain(v.logicalDevice, old, nil)
	}

	if err := v.createSwapchainResources(); err != nil {
		return err
	}
	if len(v.swapchainImages) != imageCount {
		v.freeCommandBuffers()
		if err := v.allocateCommandBuffers(); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{
		"width":  v.surfaceExtent.Width,
		"height": v.surfaceExtent.Height,
		"images": len(v.swapchainImages),
	}).Info("swapchain recreated")
	return nil
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// Device is the subset of a logical device that resource
// primitives need. It exists so that resource lifetimes can be
// exercised without a GPU; NewDevice wraps a real vk.Device.
type Device interface {
	CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(buffer vk.Buffer)
	BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error

	CreateImage(info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(image vk.Image)
	ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements
	BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)

	// MemoryProperties returns the already dereferenced memory
	// properties of the physical device.
	MemoryProperties() vk.PhysicalDeviceMemoryProperties
	AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(memory vk.DeviceMemory)
	// MapMemory maps size bytes at offset and returns them as a slice
	// that stays valid until UnmapMemory.
	MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error)
	UnmapMemory(memory vk.DeviceMemory)

	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)

	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)
}

// NewDevice wraps a logical device created on phyDevice.
// Pipelines are created through cache, which may be nil.
func NewDevice(phyDevice vk.PhysicalDevice, device vk.Device, cache vk.PipelineCache) *VulkanDevice {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()
	for idx := uint32(0); idx < memProperties.MemoryTypeCount; idx++ {
		memProperties.MemoryTypes[idx].Deref()
	}

	return &VulkanDevice{
		device:        device,
		cache:         cache,
		memProperties: memProperties,
	}
}

// VulkanDevice implements Device on top of the vulkan bindings.
type VulkanDevice struct {
	device        vk.Device
	cache         vk.PipelineCache
	memProperties vk.PhysicalDeviceMemoryProperties
}

// Handle returns the raw logical device.
func (d *VulkanDevice) Handle() vk.Device {
	return d.device
}

// CreateBuffer implements Device.
func (d *VulkanDevice) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.device, info, nil, &buffer)); err != nil {
		return nil, fmt.Errorf("vk.CreateBuffer(): %s", err.Error())
	}
	return buffer, nil
}

// DestroyBuffer implements Device.
func (d *VulkanDevice) DestroyBuffer(buffer vk.Buffer) {
	vk.DestroyBuffer(d.device, buffer, nil)
}

// BufferMemoryRequirements implements Device.
func (d *VulkanDevice) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &req)
	req.Deref()
	return req
}

// BindBufferMemory implements Device.
func (d *VulkanDevice) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	if err := vk.Error(vk.BindBufferMemory(d.device, buffer, memory, offset)); err != nil {
		return fmt.Errorf("vk.BindBufferMemory(): %s", err.Error())
	}
	return nil
}

// CreateImage implements Device.
func (d *VulkanDevice) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, info, nil, &image)); err != nil {
		return nil, fmt.Errorf("vk.CreateImage(): %s", err.Error())
	}
	return image, nil
}

// DestroyImage implements Device.
func (d *VulkanDevice) DestroyImage(image vk.Image) {
	vk.DestroyImage(d.device, image, nil)
}

// ImageMemoryRequirements implements Device.
func (d *VulkanDevice) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()
	return req
}

// BindImageMemory implements Device.
func (d *VulkanDevice) BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	if err := vk.Error(vk.BindImageMemory(d.device, image, memory, offset)); err != nil {
		return fmt.Errorf("vk.BindImageMemory(): %s", err.Error())
	}
	return nil
}

// CreateImageView implements Device.
func (d *VulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, info, nil, &view)); err != nil {
		return nil, fmt.Errorf("vk.CreateImageView(): %s", err.Error())
	}
	return view, nil
}

// DestroyImageView implements Device.
func (d *VulkanDevice) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, nil)
}

// MemoryProperties implements Device.
func (d *VulkanDevice) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return d.memProperties
}

// AllocateMemory implements Device.
func (d *VulkanDevice) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(d.device, info, nil, &memory)); err != nil {
		return nil, fmt.Errorf("vk.AllocateMemory(): %s", err.Error())
	}
	return memory, nil
}

// FreeMemory implements Device.
func (d *VulkanDevice) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.device, memory, nil)
}

// MapMemory implements Device.
func (d *VulkanDevice) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	var mapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(d.device, memory, offset, size, 0, &mapped)); err != nil {
		return nil, fmt.Errorf("vk.MapMemory(): %s", err.Error())
	}
	return unsafe.Slice((*byte)(mapped), int(size)), nil
}

// UnmapMemory implements Device.
func (d *VulkanDevice) UnmapMemory(memory vk.DeviceMemory) {
	vk.UnmapMemory(d.device, memory)
}

// CreateDescriptorSetLayout implements Device.
func (d *VulkanDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(d.device, info, nil, &layout)); err != nil {
		return nil, fmt.Errorf("vk.CreateDescriptorSetLayout(): %s", err.Error())
	}
	return layout, nil
}

// DestroyDescriptorSetLayout implements Device.
func (d *VulkanDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.device, layout, nil)
}

// AllocateDescriptorSet implements Device.
func (d *VulkanDevice) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}

	var set vk.DescriptorSet
	if err := vk.Error(vk.AllocateDescriptorSets(d.device, &dsai, &set)); err != nil {
		return nil, fmt.Errorf("vk.AllocateDescriptorSets(): %s", err.Error())
	}
	return set, nil
}

// UpdateDescriptorSets implements Device.
func (d *VulkanDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
}

// CreatePipelineLayout implements Device.
func (d *VulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(d.device, info, nil, &layout)); err != nil {
		return nil, fmt.Errorf("vk.CreatePipelineLayout(): %s", err.Error())
	}
	return layout, nil
}

// DestroyPipelineLayout implements Device.
func (d *VulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(d.device, layout, nil)
}

// CreateShaderModule implements Device.
func (d *VulkanDevice) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(d.device, info, nil, &module)); err != nil {
		return nil, fmt.Errorf("vk.CreateShaderModule(): %s", err.Error())
	}
	return module, nil
}

// DestroyShaderModule implements Device.
func (d *VulkanDevice) DestroyShaderModule(module vk.ShaderModule) {
	vk.DestroyShaderModule(d.device, module, nil)
}

// CreateGraphicsPipeline implements Device.
func (d *VulkanDevice) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateGraphicsPipelines(d.device, d.cache, 1, []vk.GraphicsPipelineCreateInfo{*info}, nil, pipelines)); err != nil {
		return nil, fmt.Errorf("vk.CreateGraphicsPipelines(): %s", err.Error())
	}
	return pipelines[0], nil
}

// DestroyPipeline implements Device.
func (d *VulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(d.device, pipeline, nil)
}

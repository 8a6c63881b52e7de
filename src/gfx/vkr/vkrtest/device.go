// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkrtest provides fakes of the vkr device and command
// stream so that resource lifetimes and recorded commands can be
// checked without a GPU.
package vkrtest

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// Fake handles point into arenas of Go memory so they are real,
// unique pointers. They are only compared, never dereferenced.
const (
	handleArenaSize = 4096
	handleStride    = 16
)

var handles struct {
	sync.Mutex
	arena []byte
	next  int
}

func newHandle() unsafe.Pointer {
	handles.Lock()
	defer handles.Unlock()
	if handles.next == len(handles.arena) {
		// handles minted from the previous arena keep it alive
		handles.arena = make([]byte, handleArenaSize)
		handles.next = 0
	}
	h := unsafe.Pointer(&handles.arena[handles.next])
	handles.next += handleStride
	return h
}

// RenderPass mints a unique render pass handle.
func RenderPass() vk.RenderPass { return vk.RenderPass(newHandle()) }

// ImageView mints a unique image view handle.
func ImageView() vk.ImageView { return vk.ImageView(newHandle()) }

// Sampler mints a unique sampler handle.
func Sampler() vk.Sampler { return vk.Sampler(newHandle()) }

// DescriptorPool mints a unique descriptor pool handle.
func DescriptorPool() vk.DescriptorPool { return vk.DescriptorPool(newHandle()) }

// Buffer mints a unique buffer handle, unknown to any Device.
func Buffer() vk.Buffer { return vk.Buffer(newHandle()) }

// PipelineLayoutInfo is what a pipeline layout was created from.
type PipelineLayoutInfo struct {
	SetLayouts    []vk.DescriptorSetLayout
	PushConstants []vk.PushConstantRange
}

// SetInfo is what a descriptor set was allocated from.
type SetInfo struct {
	Pool   vk.DescriptorPool
	Layout vk.DescriptorSetLayout
}

// Device is a fake vkr.Device. Every created object gets a unique
// handle and is tracked until destroyed; destroying an unknown or
// already destroyed handle is recorded as an error. Mapped memory is
// ordinary Go memory.
type Device struct {
	mu sync.Mutex

	// Calls logs every method called, in order.
	Calls []string

	// Fail makes the named method return the given error.
	Fail map[string]error

	Buffers         map[vk.Buffer]vk.BufferCreateInfo
	BufferMemory    map[vk.Buffer]vk.DeviceMemory
	Images          map[vk.Image]vk.ImageCreateInfo
	SetLayouts      map[vk.DescriptorSetLayout][]vk.DescriptorSetLayoutBinding
	PipelineLayouts map[vk.PipelineLayout]PipelineLayoutInfo
	Pipelines       map[vk.Pipeline]vk.GraphicsPipelineCreateInfo
	ShaderModules   map[vk.ShaderModule][]uint32
	Sets            map[vk.DescriptorSet]SetInfo
	Writes          []vk.WriteDescriptorSet

	memory map[vk.DeviceMemory][]byte
	mapped map[vk.DeviceMemory]bool
	live   map[unsafe.Pointer]string
	errs   []error
}

// NewDevice returns an empty fake device.
func NewDevice() *Device {
	return &Device{
		Fail:            make(map[string]error),
		Buffers:         make(map[vk.Buffer]vk.BufferCreateInfo),
		BufferMemory:    make(map[vk.Buffer]vk.DeviceMemory),
		Images:          make(map[vk.Image]vk.ImageCreateInfo),
		SetLayouts:      make(map[vk.DescriptorSetLayout][]vk.DescriptorSetLayoutBinding),
		PipelineLayouts: make(map[vk.PipelineLayout]PipelineLayoutInfo),
		Pipelines:       make(map[vk.Pipeline]vk.GraphicsPipelineCreateInfo),
		ShaderModules:   make(map[vk.ShaderModule][]uint32),
		Sets:            make(map[vk.DescriptorSet]SetInfo),
		memory:          make(map[vk.DeviceMemory][]byte),
		mapped:          make(map[vk.DeviceMemory]bool),
		live:            make(map[unsafe.Pointer]string),
	}
}

// Live returns the kinds of all objects not yet destroyed, sorted.
func (d *Device) Live() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]string, 0, len(d.live))
	for _, kind := range d.live {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Errors returns misuse detected so far, such as double frees.
func (d *Device) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

// Memory returns the backing bytes of an allocation.
func (d *Device) Memory(memory vk.DeviceMemory) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory[memory]
}

// IsMapped reports whether memory is currently mapped.
func (d *Device) IsMapped(memory vk.DeviceMemory) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mapped[memory]
}

func (d *Device) call(name string) error {
	d.Calls = append(d.Calls, name)
	return d.Fail[name]
}

func (d *Device) create(kind string) unsafe.Pointer {
	h := newHandle()
	d.live[h] = kind
	return h
}

func (d *Device) destroy(kind string, h unsafe.Pointer) bool {
	if h == nil {
		return false
	}
	if got, ok := d.live[h]; !ok || got != kind {
		d.errs = append(d.errs, fmt.Errorf("destroy of unknown %s %p", kind, h))
		return false
	}
	delete(d.live, h)
	return true
}

// CreateBuffer implements vkr.Device.
func (d *Device) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateBuffer"); err != nil {
		return nil, err
	}
	buffer := vk.Buffer(d.create("buffer"))
	d.Buffers[buffer] = *info
	return buffer, nil
}

// DestroyBuffer implements vkr.Device.
func (d *Device) DestroyBuffer(buffer vk.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyBuffer")
	if d.destroy("buffer", unsafe.Pointer(buffer)) {
		delete(d.Buffers, buffer)
		delete(d.BufferMemory, buffer)
	}
}

// BufferMemoryRequirements implements vkr.Device.
func (d *Device) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("BufferMemoryRequirements")
	return vk.MemoryRequirements{
		Size:           d.Buffers[buffer].Size,
		Alignment:      16,
		MemoryTypeBits: 1,
	}
}

// BindBufferMemory implements vkr.Device.
func (d *Device) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("BindBufferMemory"); err != nil {
		return err
	}
	d.BufferMemory[buffer] = memory
	return nil
}

// CreateImage implements vkr.Device.
func (d *Device) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateImage"); err != nil {
		return nil, err
	}
	image := vk.Image(d.create("image"))
	d.Images[image] = *info
	return image, nil
}

// DestroyImage implements vkr.Device.
func (d *Device) DestroyImage(image vk.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImage")
	if d.destroy("image", unsafe.Pointer(image)) {
		delete(d.Images, image)
	}
}

// ImageMemoryRequirements implements vkr.Device.
func (d *Device) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("ImageMemoryRequirements")
	extent := d.Images[image].Extent
	return vk.MemoryRequirements{
		Size:           vk.DeviceSize(extent.Width * extent.Height * extent.Depth * 4),
		Alignment:      256,
		MemoryTypeBits: 1,
	}
}

// BindImageMemory implements vkr.Device.
func (d *Device) BindImageMemory(image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.call("BindImageMemory")
}

// CreateImageView implements vkr.Device.
func (d *Device) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateImageView"); err != nil {
		return nil, err
	}
	return vk.ImageView(d.create("image view")), nil
}

// DestroyImageView implements vkr.Device.
func (d *Device) DestroyImageView(view vk.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImageView")
	d.destroy("image view", unsafe.Pointer(view))
}

// MemoryProperties implements vkr.Device. The fake has a single
// memory type that is device local, host visible and host coherent.
func (d *Device) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 1
	props.MemoryTypes[0] = vk.MemoryType{
		PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit |
			vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
		HeapIndex: 0,
	}
	props.MemoryHeapCount = 1
	props.MemoryHeaps[0] = vk.MemoryHeap{Size: 1 << 30}
	return props
}

// AllocateMemory implements vkr.Device.
func (d *Device) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("AllocateMemory"); err != nil {
		return nil, err
	}
	memory := vk.DeviceMemory(d.create("memory"))
	d.memory[memory] = make([]byte, info.AllocationSize)
	return memory, nil
}

// FreeMemory implements vkr.Device.
func (d *Device) FreeMemory(memory vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("FreeMemory")
	if d.mapped[memory] {
		d.errs = append(d.errs, fmt.Errorf("free of mapped memory %p", memory))
	}
	if d.destroy("memory", unsafe.Pointer(memory)) {
		delete(d.memory, memory)
		delete(d.mapped, memory)
	}
}

// MapMemory implements vkr.Device.
func (d *Device) MapMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("MapMemory"); err != nil {
		return nil, err
	}
	data, ok := d.memory[memory]
	if !ok {
		return nil, fmt.Errorf("map of unknown memory %p", memory)
	}
	if d.mapped[memory] {
		return nil, fmt.Errorf("memory %p mapped twice", memory)
	}
	if offset+size > vk.DeviceSize(len(data)) {
		return nil, fmt.Errorf("map of %d bytes at %d past %d byte allocation", size, offset, len(data))
	}
	d.mapped[memory] = true
	return data[offset : offset+size], nil
}

// UnmapMemory implements vkr.Device.
func (d *Device) UnmapMemory(memory vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UnmapMemory")
	if !d.mapped[memory] {
		d.errs = append(d.errs, fmt.Errorf("unmap of unmapped memory %p", memory))
	}
	delete(d.mapped, memory)
}

// CreateDescriptorSetLayout implements vkr.Device.
func (d *Device) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	layout := vk.DescriptorSetLayout(d.create("descriptor set layout"))
	d.SetLayouts[layout] = append([]vk.DescriptorSetLayoutBinding(nil), info.PBindings...)
	return layout, nil
}

// DestroyDescriptorSetLayout implements vkr.Device.
func (d *Device) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDescriptorSetLayout")
	if d.destroy("descriptor set layout", unsafe.Pointer(layout)) {
		delete(d.SetLayouts, layout)
	}
}

// AllocateDescriptorSet implements vkr.Device. Sets belong to their
// pool and are not tracked as live objects.
func (d *Device) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("AllocateDescriptorSet"); err != nil {
		return nil, err
	}
	set := vk.DescriptorSet(newHandle())
	d.Sets[set] = SetInfo{Pool: pool, Layout: layout}
	return set, nil
}

// UpdateDescriptorSets implements vkr.Device.
func (d *Device) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UpdateDescriptorSets")
	d.Writes = append(d.Writes, writes...)
}

// CreatePipelineLayout implements vkr.Device.
func (d *Device) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	layout := vk.PipelineLayout(d.create("pipeline layout"))
	d.PipelineLayouts[layout] = PipelineLayoutInfo{
		SetLayouts:    append([]vk.DescriptorSetLayout(nil), info.PSetLayouts...),
		PushConstants: append([]vk.PushConstantRange(nil), info.PPushConstantRanges...),
	}
	return layout, nil
}

// DestroyPipelineLayout implements vkr.Device.
func (d *Device) DestroyPipelineLayout(layout vk.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyPipelineLayout")
	if d.destroy("pipeline layout", unsafe.Pointer(layout)) {
		delete(d.PipelineLayouts, layout)
	}
}

// CreateShaderModule implements vkr.Device.
func (d *Device) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateShaderModule"); err != nil {
		return nil, err
	}
	module := vk.ShaderModule(d.create("shader module"))
	d.ShaderModules[module] = append([]uint32(nil), info.PCode...)
	return module, nil
}

// DestroyShaderModule implements vkr.Device.
func (d *Device) DestroyShaderModule(module vk.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyShaderModule")
	d.destroy("shader module", unsafe.Pointer(module))
}

// CreateGraphicsPipeline implements vkr.Device.
func (d *Device) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	pipeline := vk.Pipeline(d.create("pipeline"))
	d.Pipelines[pipeline] = *info
	return pipeline, nil
}

// DestroyPipeline implements vkr.Device.
func (d *Device) DestroyPipeline(pipeline vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyPipeline")
	if d.destroy("pipeline", unsafe.Pointer(pipeline)) {
		delete(d.Pipelines, pipeline)
	}
}

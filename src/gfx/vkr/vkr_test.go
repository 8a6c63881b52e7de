// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr_test

import (
	"errors"
	"testing"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/packr"

	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/gfx/vkr"
	"github.com/devblok/korumesh/src/gfx/vkr/vkrtest"
)

var shaderBox = packr.NewBox("./testdata")

func assertClean(c *qt.C, dev *vkrtest.Device) {
	c.Helper()
	c.Assert(dev.Live(), qt.HasLen, 0)
	c.Assert(dev.Errors(), qt.HasLen, 0)
}

func TestMallocPicksMatchingType(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()
	ma := vkr.NewMemoryAllocator(dev)

	idx, err := ma.FindMemoryType(1, vk.MemoryPropertyFlags(vkr.HostVisible))
	c.Assert(err, qt.IsNil)
	c.Assert(idx, qt.Equals, uint32(0))

	_, err = ma.Malloc(vk.MemoryRequirements{Size: 64, MemoryTypeBits: 2}, vkr.HostVisible)
	c.Assert(errors.Is(err, vkr.ErrNoMemoryType), qt.IsTrue)

	mem, err := ma.Malloc(vk.MemoryRequirements{Size: 64, MemoryTypeBits: 1}, vkr.HostVisible)
	c.Assert(err, qt.IsNil)
	c.Assert(mem.Len(), qt.Equals, uint(64))
	mem.Release()
	mem.Release()
	assertClean(c, dev)
}

func TestNewBufferCleansUpOnBindFailure(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()
	dev.Fail["BindBufferMemory"] = errors.New("bind failed")

	_, err := vkr.NewBuffer(dev, vkr.NewMemoryAllocator(dev), 256, vk.BufferUsageVertexBufferBit, vkr.HostVisible)
	c.Assert(err, qt.ErrorMatches, "bind failed")
	assertClean(c, dev)
}

func TestBufferWrite(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	buf, err := vkr.NewBuffer(dev, vkr.NewMemoryAllocator(dev), 8, vk.BufferUsageTransferSrcBit, vkr.HostVisible)
	c.Assert(err, qt.IsNil)
	c.Assert(buf.Write([]byte{1, 2, 3, 4}), qt.IsNil)
	c.Assert(dev.Memory(buf.Mem().Get())[:4], qt.DeepEquals, []byte{1, 2, 3, 4})
	c.Assert(dev.IsMapped(buf.Mem().Get()), qt.IsFalse)

	c.Assert(buf.Write(make([]byte, 9)), qt.ErrorMatches, "write of 9 bytes into 8 byte buffer")

	buf.Release()
	buf.Release()
	assertClean(c, dev)
}

func TestMappedBufferStaysMapped(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	buf, err := vkr.NewMappedBuffer(dev, vkr.NewMemoryAllocator(dev), 128, vk.BufferUsageUniformBufferBit)
	c.Assert(err, qt.IsNil)
	c.Assert(buf.Mapping, qt.HasLen, 128)
	c.Assert(dev.IsMapped(buf.Mem().Get()), qt.IsTrue)
	c.Assert(dev.Buffers[buf.Get()].Usage, qt.Equals, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))

	buf.Mapping[127] = 0xAB
	c.Assert(dev.Memory(buf.Mem().Get())[127], qt.Equals, byte(0xAB))

	buf.Release()
	c.Assert(buf.Mapping, qt.IsNil)
	assertClean(c, dev)
}

func TestMappedBufferMapFailure(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()
	dev.Fail["MapMemory"] = errors.New("map failed")

	_, err := vkr.NewMappedBuffer(dev, vkr.NewMemoryAllocator(dev), 128, vk.BufferUsageUniformBufferBit)
	c.Assert(err, qt.ErrorMatches, "map failed")
	assertClean(c, dev)
}

func TestNewImage(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	img, err := vkr.NewImage(dev, vkr.NewMemoryAllocator(dev), vkr.ImageInfo{
		Extent:    gfx.Extent3D{Width: 64, Height: 32, Depth: 1},
		Format:    vk.FormatR8g8b8a8Unorm,
		MipLevels: 7,
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit,
		Aspect:    vk.ImageAspectColorBit,
	}, vkr.DeviceLocal)
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Images[img.Get()].MipLevels, qt.Equals, uint32(7))
	c.Assert(img.View(), qt.Not(qt.IsNil))

	img.Release()
	assertClean(c, dev)
}

func TestNewImageViewFailure(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()
	dev.Fail["CreateImageView"] = errors.New("no view")

	_, err := vkr.NewImage(dev, vkr.NewMemoryAllocator(dev), vkr.ImageInfo{
		Extent: gfx.Extent3D{Width: 4, Height: 4, Depth: 1},
		Format: vk.FormatD16Unorm,
		Usage:  vk.ImageUsageDepthStencilAttachmentBit,
		Aspect: vk.ImageAspectDepthBit,
	}, vkr.DeviceLocal)
	c.Assert(err, qt.ErrorMatches, "no view")
	assertClean(c, dev)
}

func TestNewDescriptorSetLayout(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	layout, err := vkr.NewDescriptorSetLayout(dev, []vkr.Binding{
		{Slot: 0, Type: vk.DescriptorTypeUniformBuffer, Stages: vk.ShaderStageVertexBit},
		{Slot: 2, Type: vk.DescriptorTypeSampler, Stages: vk.ShaderStageFragmentBit, Count: 3},
	})
	c.Assert(err, qt.IsNil)

	bindings := dev.SetLayouts[layout]
	c.Assert(bindings, qt.HasLen, 2)
	c.Assert(bindings[0].DescriptorCount, qt.Equals, uint32(1))
	c.Assert(bindings[0].StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageVertexBit))
	c.Assert(bindings[1].Binding, qt.Equals, uint32(2))
	c.Assert(bindings[1].DescriptorCount, qt.Equals, uint32(3))

	dev.DestroyDescriptorSetLayout(layout)
	assertClean(c, dev)
}

func TestNewDescriptorSetLayoutDuplicateSlot(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	_, err := vkr.NewDescriptorSetLayout(dev, []vkr.Binding{
		{Slot: 1, Type: vk.DescriptorTypeSampledImage, Stages: vk.ShaderStageFragmentBit},
		{Slot: 1, Type: vk.DescriptorTypeSampler, Stages: vk.ShaderStageFragmentBit},
	})
	c.Assert(err, qt.ErrorMatches, "descriptor slot 1 bound twice")
	c.Assert(dev.Calls, qt.HasLen, 0)
}

func TestNewPipelineLayout(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	setLayout, err := vkr.NewDescriptorSetLayout(dev, []vkr.Binding{
		{Slot: 0, Type: vk.DescriptorTypeUniformBuffer, Stages: vk.ShaderStageVertexBit},
	})
	c.Assert(err, qt.IsNil)

	_, err = vkr.NewPipelineLayout(dev, []vk.DescriptorSetLayout{setLayout}, []vkr.PushConstant{
		{Stages: vk.ShaderStageFragmentBit, Size: 3},
	})
	c.Assert(err, qt.ErrorMatches, "push constant range offset 0 size 3 is not a multiple of 4")

	layout, err := vkr.NewPipelineLayout(dev, []vk.DescriptorSetLayout{setLayout}, []vkr.PushConstant{
		{Stages: vk.ShaderStageFragmentBit, Size: 4},
	})
	c.Assert(err, qt.IsNil)

	info := dev.PipelineLayouts[layout]
	c.Assert(info.SetLayouts, qt.DeepEquals, []vk.DescriptorSetLayout{setLayout})
	c.Assert(info.PushConstants, qt.HasLen, 1)
	c.Assert(info.PushConstants[0].Size, qt.Equals, uint32(4))
	c.Assert(info.PushConstants[0].StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageFragmentBit))

	dev.DestroyPipelineLayout(layout)
	dev.DestroyDescriptorSetLayout(setLayout)
	assertClean(c, dev)
}

func TestWriteDescriptorSet(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()
	pool := vkrtest.DescriptorPool()

	set, err := vkr.AllocateDescriptorSet(dev, pool, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Sets[set].Pool, qt.Equals, pool)

	buffer, view, sampler := vkrtest.Buffer(), vkrtest.ImageView(), vkrtest.Sampler()
	vkr.WriteDescriptorSet(dev, set,
		vkr.BufferWrite{Slot: 0, Buffer: buffer, Range: 128},
		vkr.ImageWrite{Slot: 1, View: view, Layout: vk.ImageLayoutShaderReadOnlyOptimal},
		vkr.SamplerWrite{Slot: 2, Sampler: sampler},
	)

	c.Assert(dev.Writes, qt.HasLen, 3)
	c.Assert(dev.Writes[0].DescriptorType, qt.Equals, vk.DescriptorTypeUniformBuffer)
	c.Assert(dev.Writes[0].PBufferInfo[0].Buffer, qt.Equals, buffer)
	c.Assert(dev.Writes[0].PBufferInfo[0].Range, qt.Equals, vk.DeviceSize(128))
	c.Assert(dev.Writes[1].DescriptorType, qt.Equals, vk.DescriptorTypeSampledImage)
	c.Assert(dev.Writes[1].PImageInfo[0].ImageView, qt.Equals, view)
	c.Assert(dev.Writes[2].DescriptorType, qt.Equals, vk.DescriptorTypeSampler)
	c.Assert(dev.Writes[2].PImageInfo[0].Sampler, qt.Equals, sampler)
	for idx, w := range dev.Writes {
		c.Assert(w.DstSet, qt.Equals, set)
		c.Assert(w.DstBinding, qt.Equals, uint32(idx))
	}

	vkr.WriteDescriptorSet(dev, set)
	c.Assert(dev.Writes, qt.HasLen, 3)
}

func TestDefaultGraphicsPipelineState(t *testing.T) {
	c := qt.New(t)
	state := vkr.DefaultGraphicsPipelineState()
	info := state.CreateInfo(nil, vkrtest.RenderPass(), []vkr.ShaderStage{
		{Stage: vk.ShaderStageVertexBit},
		{Stage: vk.ShaderStageFragmentBit, Entry: "frag_main"},
	})

	c.Assert(info.PInputAssemblyState.Topology, qt.Equals, vk.PrimitiveTopologyTriangleList)
	c.Assert(info.PRasterizationState.PolygonMode, qt.Equals, vk.PolygonModeFill)
	c.Assert(info.PRasterizationState.CullMode, qt.Equals, vk.CullModeFlags(vk.CullModeBackBit))
	c.Assert(info.PRasterizationState.FrontFace, qt.Equals, vk.FrontFaceCounterClockwise)
	c.Assert(info.PDepthStencilState.DepthTestEnable, qt.Equals, vk.Bool32(vk.True))
	c.Assert(info.PDepthStencilState.DepthWriteEnable, qt.Equals, vk.Bool32(vk.True))
	c.Assert(info.PDepthStencilState.DepthCompareOp, qt.Equals, vk.CompareOpLess)
	c.Assert(info.PColorBlendState.PAttachments, qt.HasLen, 1)
	c.Assert(info.PColorBlendState.PAttachments[0].ColorWriteMask, qt.Equals, vk.ColorComponentFlags(0xF))
	c.Assert(info.PDynamicState.PDynamicStates, qt.DeepEquals, []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor})
	c.Assert(info.PStages, qt.HasLen, 2)
	c.Assert(info.PStages[0].PName, qt.Equals, "main\x00")
	c.Assert(info.PStages[1].PName, qt.Equals, "frag_main\x00")
}

func TestNewGraphicsPipelineNeedsStages(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()
	_, err := vkr.NewGraphicsPipeline(dev, vkr.DefaultGraphicsPipelineState(), nil, vkrtest.RenderPass())
	c.Assert(err, qt.ErrorMatches, "graphics pipeline needs at least one shader stage")
}

func TestLoadShaderModule(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	module, err := vkr.LoadShaderModule(dev, shaderBox, "spirv/minimal.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(dev.ShaderModules[module], qt.HasLen, 5)
	c.Assert(dev.ShaderModules[module][0], qt.Equals, uint32(vkr.SPIRVMagic))
	dev.DestroyShaderModule(module)

	_, err = vkr.LoadShaderModule(dev, shaderBox, "spirv/broken.spv")
	c.Assert(errors.Is(err, vkr.ErrInvalidSPIRV), qt.IsTrue)

	_, err = vkr.LoadShaderModule(dev, shaderBox, "spirv/missing.spv")
	c.Assert(err, qt.ErrorMatches, "(?s)shader spirv/missing.spv: .*")

	assertClean(c, dev)
}

func TestValidateSPIRV(t *testing.T) {
	c := qt.New(t)
	c.Assert(vkr.ValidateSPIRV(nil), qt.ErrorMatches, "length 0: not a SPIR-V binary")
	c.Assert(vkr.ValidateSPIRV([]byte{3, 2, 0x23, 7, 0}), qt.ErrorMatches, "length 5: not a SPIR-V binary")
	c.Assert(vkr.ValidateSPIRV([]byte{3, 2, 0x23, 7}), qt.IsNil)
}

func TestSliceUint32Unaligned(t *testing.T) {
	c := qt.New(t)
	data := []byte{0, 3, 2, 0x23, 7, 1, 0, 0, 0}
	c.Assert(vkr.SliceUint32(data[1:]), qt.DeepEquals, []uint32{vkr.SPIRVMagic, 1})
	c.Assert(vkr.SliceUint32(data[:3]), qt.IsNil)
}

func TestUploadMesh(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	mb, err := vkr.UploadMesh(dev, vkr.NewMemoryAllocator(dev), make([]byte, 96), []uint32{0, 1, 2})
	c.Assert(err, qt.IsNil)

	mesh := mb.Mesh()
	c.Assert(mesh.IndexCount, qt.Equals, uint32(3))
	c.Assert(dev.Buffers[mesh.VertexBuffer].Usage, qt.Equals, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	c.Assert(dev.Buffers[mesh.IndexBuffer].Usage, qt.Equals, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	c.Assert(dev.Memory(dev.BufferMemory[mesh.IndexBuffer])[4], qt.Equals, byte(1))

	mb.Release()
	assertClean(c, dev)

	_, err = vkr.UploadMesh(dev, vkr.NewMemoryAllocator(dev), nil, []uint32{0})
	c.Assert(err, qt.ErrorMatches, "mesh has no vertices or no indices")
}

func BenchmarkSliceUint32Small(b *testing.B) {
	data := make([]byte, 100)
	for idx := 0; idx < b.N; idx++ {
		vkr.SliceUint32(data)
	}
}

func BenchmarkSliceUint32Big(b *testing.B) {
	data := make([]byte, 100000)
	for idx := 0; idx < b.N; idx++ {
		vkr.SliceUint32(data)
	}
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package drawmesh draws one textured, lit mesh per frame. A Unit
// owns the pipeline, its layouts, a descriptor set and a persistently
// mapped uniform buffer holding the frame's transforms.
package drawmesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/gfx/vkr"
	"github.com/devblok/korumesh/src/gfx/xform"
	"github.com/devblok/korumesh/src/model"
)

// Shader binaries, looked up through vkr.Context.Shaders.
const (
	VertexShaderPath   = "spirv/raster_mesh.vert.spv"
	FragmentShaderPath = "spirv/raster_mesh.frag.spv"
)

// Projection parameters.
const (
	FieldOfView = float32(math.Pi / 4)
	NearPlane   = float32(0.1)
	FarPlane    = float32(50)
)

// PushConstantSize is the size of the fragment stage push constant,
// a single uint32 switching texture LOD visualisation.
const PushConstantSize = 4

// UniformsSize is the size of the uniform block in bytes.
const UniformsSize = 128

// Uniforms is the uniform block read by the vertex shader.
type Uniforms struct {
	ModelViewProjection glm.Mat4
	ModelView           glm.Mat4
}

var (
	_ [UniformsSize - unsafe.Sizeof(Uniforms{})]byte
	_ [unsafe.Sizeof(Uniforms{}) - UniformsSize]byte
)

// ErrAlreadyCreated is returned by Create on a unit that holds resources.
var ErrAlreadyCreated = errors.New("drawmesh: unit already created")

// Bindings is the descriptor set layout of the unit.
var Bindings = []vkr.Binding{
	{Slot: 0, Type: vk.DescriptorTypeUniformBuffer, Stages: vk.ShaderStageVertexBit},
	{Slot: 1, Type: vk.DescriptorTypeSampledImage, Stages: vk.ShaderStageFragmentBit},
	{Slot: 2, Type: vk.DescriptorTypeSampler, Stages: vk.ShaderStageFragmentBit},
}

var pushConstants = []vkr.PushConstant{
	{Stages: vk.ShaderStageFragmentBit, Offset: 0, Size: PushConstantSize},
}

// Unit is a mesh draw unit. The zero value is empty and ready for Create.
type Unit struct {
	device vkr.Device

	uniformBuffer *vkr.MappedBuffer
	uniforms      *Uniforms

	setLayout      vk.DescriptorSetLayout
	pipelineLayout vk.PipelineLayout
	pipeline       vk.Pipeline
	set            vk.DescriptorSet
}

// Create acquires every resource of the unit. On failure, whatever was
// acquired is released again and the unit stays empty.
func (u *Unit) Create(ctx *vkr.Context, renderPass vk.RenderPass, textureView vk.ImageView, sampler vk.Sampler) error {
	if !u.Empty() {
		return ErrAlreadyCreated
	}
	dev := ctx.Device
	var rel gfx.Releaser
	defer rel.Release()

	uniformBuffer, err := vkr.NewMappedBuffer(dev, ctx.Allocator, UniformsSize, vk.BufferUsageUniformBufferBit)
	if err != nil {
		return fmt.Errorf("drawmesh: create uniform buffer: %w", err)
	}
	rel.Push(uniformBuffer)
	uniforms, err := uniformView(uniformBuffer.Mapping)
	if err != nil {
		return fmt.Errorf("drawmesh: %w", err)
	}
	log.WithFields(log.Fields{
		"name": "raster_uniform_buffer",
		"size": UniformsSize,
	}).Debug("uniform buffer created")

	setLayout, err := vkr.NewDescriptorSetLayout(dev, Bindings)
	if err != nil {
		return fmt.Errorf("drawmesh: create descriptor set layout: %w", err)
	}
	rel.PushFunc(func() { dev.DestroyDescriptorSetLayout(setLayout) })
	log.WithField("name", "raster_set_layout").Debug("descriptor set layout created")

	pipelineLayout, err := vkr.NewPipelineLayout(dev, []vk.DescriptorSetLayout{setLayout}, pushConstants)
	if err != nil {
		return fmt.Errorf("drawmesh: create pipeline layout: %w", err)
	}
	rel.PushFunc(func() { dev.DestroyPipelineLayout(pipelineLayout) })
	log.WithField("name", "raster_pipeline_layout").Debug("pipeline layout created")

	pipeline, err := createPipeline(ctx, pipelineLayout, renderPass)
	if err != nil {
		return fmt.Errorf("drawmesh: create pipeline: %w", err)
	}
	rel.PushFunc(func() { dev.DestroyPipeline(pipeline) })

	set, err := vkr.AllocateDescriptorSet(dev, ctx.DescriptorPool, setLayout)
	if err != nil {
		return fmt.Errorf("drawmesh: allocate descriptor set: %w", err)
	}
	vkr.WriteDescriptorSet(dev, set,
		vkr.BufferWrite{Slot: 0, Buffer: uniformBuffer.Get(), Offset: 0, Range: UniformsSize},
		vkr.ImageWrite{Slot: 1, View: textureView, Layout: vk.ImageLayoutShaderReadOnlyOptimal},
		vkr.SamplerWrite{Slot: 2, Sampler: sampler},
	)

	rel.Keep()
	*u = Unit{
		device:         dev,
		uniformBuffer:  uniformBuffer,
		uniforms:       uniforms,
		setLayout:      setLayout,
		pipelineLayout: pipelineLayout,
		pipeline:       pipeline,
		set:            set,
	}
	return nil
}

// createPipeline builds the graphics pipeline. Shader modules are
// only needed while the pipeline is built.
func createPipeline(ctx *vkr.Context, layout vk.PipelineLayout, renderPass vk.RenderPass) (vk.Pipeline, error) {
	vert, err := vkr.LoadShaderModule(ctx.Device, ctx.Shaders, VertexShaderPath)
	if err != nil {
		return nil, err
	}
	defer ctx.Device.DestroyShaderModule(vert)

	frag, err := vkr.LoadShaderModule(ctx.Device, ctx.Shaders, FragmentShaderPath)
	if err != nil {
		return nil, err
	}
	defer ctx.Device.DestroyShaderModule(frag)

	state := vkr.DefaultGraphicsPipelineState()
	state.Vertex = vkr.VertexLayout{
		Bindings:   model.VertexBindingDescriptions(),
		Attributes: model.VertexAttributeDescriptions(),
	}
	return vkr.NewGraphicsPipeline(ctx.Device, state, layout, renderPass,
		vkr.ShaderStage{Stage: vk.ShaderStageVertexBit, Module: vert},
		vkr.ShaderStage{Stage: vk.ShaderStageFragmentBit, Module: frag},
	)
}

func uniformView(mapping []byte) (*Uniforms, error) {
	if len(mapping) != UniformsSize {
		return nil, fmt.Errorf("uniform mapping is %d bytes, want %d", len(mapping), UniformsSize)
	}
	if uintptr(unsafe.Pointer(&mapping[0]))%unsafe.Alignof(float32(0)) != 0 {
		return nil, errors.New("uniform mapping is not float32 aligned")
	}
	return (*Uniforms)(unsafe.Pointer(&mapping[0])), nil
}

// Destroy releases everything the unit owns and leaves it empty.
// The descriptor set goes back with its pool. Calling Destroy on
// an empty unit does nothing.
func (u *Unit) Destroy() {
	if u.Empty() {
		return
	}
	if u.uniformBuffer != nil {
		u.uniformBuffer.Release()
	}
	if u.setLayout != nil {
		u.device.DestroyDescriptorSetLayout(u.setLayout)
	}
	if u.pipelineLayout != nil {
		u.device.DestroyPipelineLayout(u.pipelineLayout)
	}
	if u.pipeline != nil {
		u.device.DestroyPipeline(u.pipeline)
	}
	*u = Unit{}
}

// Update writes this frame's transforms into the uniform buffer.
// The device must not be reading the buffer meanwhile.
func (u *Unit) Update(ctx *vkr.Context, model, view glm.Mat3x4) {
	if u.uniforms == nil {
		panic("drawmesh: Update on a unit that was not created")
	}
	projection := xform.PerspectiveZ01(FieldOfView, ctx.SurfaceExtent.Aspect(), NearPlane, FarPlane)
	modelView := xform.Affine(xform.Compose(view, model))

	u.uniforms.ModelViewProjection = projection.Mul4(modelView)
	u.uniforms.ModelView = modelView
}

// Dispatch records the draw of mesh into ctx.Commands.
func (u *Unit) Dispatch(ctx *vkr.Context, mesh vkr.Mesh, showTextureLOD bool) {
	cmd := ctx.Commands
	cmd.BindVertexBuffers(0, []vk.Buffer{mesh.VertexBuffer}, []vk.DeviceSize{0})
	cmd.BindIndexBuffer(mesh.IndexBuffer, 0, vk.IndexTypeUint32)

	var lod uint32
	if showTextureLOD {
		lod = 1
	}
	push := make([]byte, PushConstantSize)
	binary.NativeEndian.PutUint32(push, lod)
	cmd.PushConstants(u.pipelineLayout, vk.ShaderStageFragmentBit, 0, push)

	cmd.BindDescriptorSets(vk.PipelineBindPointGraphics, u.pipelineLayout, 0, []vk.DescriptorSet{u.set})
	cmd.BindPipeline(vk.PipelineBindPointGraphics, u.pipeline)
	cmd.DrawIndexed(mesh.IndexCount, 1, 0, 0, 0)
}

// Empty reports whether the unit holds no resources.
func (u *Unit) Empty() bool {
	return u.device == nil && u.uniformBuffer == nil && u.pipeline == nil
}

// Pipeline returns the graphics pipeline.
func (u *Unit) Pipeline() vk.Pipeline { return u.pipeline }

// PipelineLayout returns the pipeline layout.
func (u *Unit) PipelineLayout() vk.PipelineLayout { return u.pipelineLayout }

// DescriptorSetLayout returns the descriptor set layout.
func (u *Unit) DescriptorSetLayout() vk.DescriptorSetLayout { return u.setLayout }

// DescriptorSet returns the unit's descriptor set.
func (u *Unit) DescriptorSet() vk.DescriptorSet { return u.set }

// UniformBuffer returns the uniform buffer handle, nil when empty.
func (u *Unit) UniformBuffer() vk.Buffer {
	if u.uniformBuffer == nil {
		return nil
	}
	return u.uniformBuffer.Get()
}

// Uniforms returns a copy of the current uniform block.
func (u *Unit) Uniforms() Uniforms {
	if u.uniforms == nil {
		return Uniforms{}
	}
	return *u.uniforms
}

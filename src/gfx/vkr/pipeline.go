// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"errors"

	vk "github.com/devblok/vulkan"
)

// VertexLayout describes how vertex buffers feed the vertex stage.
type VertexLayout struct {
	Bindings   []vk.VertexInputBindingDescription
	Attributes []vk.VertexInputAttributeDescription
}

// GraphicsPipelineState holds the fixed function state of a graphics
// pipeline. Start from DefaultGraphicsPipelineState and override.
type GraphicsPipelineState struct {
	Vertex VertexLayout

	Topology    vk.PrimitiveTopology
	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlagBits
	FrontFace   vk.FrontFace

	DepthTest    bool
	DepthWrite   bool
	DepthCompare vk.CompareOp

	// ColorAttachments is the number of opaque, fully written
	// colour attachments of the subpass.
	ColorAttachments int

	DynamicStates []vk.DynamicState
}

// DefaultGraphicsPipelineState returns filled, back face culled
// triangle lists with depth testing and dynamic viewport and scissor.
func DefaultGraphicsPipelineState() GraphicsPipelineState {
	return GraphicsPipelineState{
		Topology:         vk.PrimitiveTopologyTriangleList,
		PolygonMode:      vk.PolygonModeFill,
		CullMode:         vk.CullModeBackBit,
		FrontFace:        vk.FrontFaceCounterClockwise,
		DepthTest:        true,
		DepthWrite:       true,
		DepthCompare:     vk.CompareOpLess,
		ColorAttachments: 1,
		DynamicStates: []vk.DynamicState{
			vk.DynamicStateViewport,
			vk.DynamicStateScissor,
		},
	}
}

// ShaderStage is one programmable stage of a pipeline.
type ShaderStage struct {
	Stage  vk.ShaderStageFlagBits
	Module vk.ShaderModule

	// Entry defaults to "main".
	Entry string
}

// CreateInfo assembles the vulkan create info for the state.
func (s GraphicsPipelineState) CreateInfo(layout vk.PipelineLayout, renderPass vk.RenderPass, stages []ShaderStage) vk.GraphicsPipelineCreateInfo {
	pipelineShaderStagesInfo := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for idx, stage := range stages {
		entry := stage.Entry
		if entry == "" {
			entry = "main"
		}
		pipelineShaderStagesInfo[idx] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage.Stage,
			Module: stage.Module,
			PName:  safeString(entry),
		}
	}

	attachments := make([]vk.PipelineColorBlendAttachmentState, s.ColorAttachments)
	for idx := range attachments {
		attachments[idx] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: 0xF,
			BlendEnable:    vk.False,
		}
	}

	keep := vk.StencilOpState{
		FailOp:    vk.StencilOpKeep,
		PassOp:    vk.StencilOpKeep,
		CompareOp: vk.CompareOpAlways,
	}

	return vk.GraphicsPipelineCreateInfo{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(pipelineShaderStagesInfo)),
		PStages:    pipelineShaderStagesInfo,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(s.Vertex.Bindings)),
			PVertexBindingDescriptions:      s.Vertex.Bindings,
			VertexAttributeDescriptionCount: uint32(len(s.Vertex.Attributes)),
			PVertexAttributeDescriptions:    s.Vertex.Attributes,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: s.Topology,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: s.PolygonMode,
			CullMode:    vk.CullModeFlags(s.CullMode),
			FrontFace:   s.FrontFace,
			LineWidth:   1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       vkBool(s.DepthTest),
			DepthWriteEnable:      vkBool(s.DepthWrite),
			DepthCompareOp:        s.DepthCompare,
			DepthBoundsTestEnable: vk.False,
			StencilTestEnable:     vk.False,
			Front:                 keep,
			Back:                  keep,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(s.DynamicStates)),
			PDynamicStates:    s.DynamicStates,
		},
		Layout:     layout,
		RenderPass: renderPass,
	}
}

// NewGraphicsPipeline creates a pipeline for subpass 0 of renderPass.
func NewGraphicsPipeline(dev Device, state GraphicsPipelineState, layout vk.PipelineLayout, renderPass vk.RenderPass, stages ...ShaderStage) (vk.Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("graphics pipeline needs at least one shader stage")
	}
	gpci := state.CreateInfo(layout, renderPass, stages)
	return dev.CreateGraphicsPipeline(&gpci)
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func safeString(s string) string {
	return s + "\x00"
}

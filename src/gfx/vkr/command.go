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

// CommandStream is the recording side of a command buffer, limited
// to what draw units record inside a render pass.
type CommandStream interface {
	BindVertexBuffers(firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset uint32, values []byte)
	BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet)
	BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	SetViewport(viewport vk.Viewport)
	SetScissor(scissor vk.Rect2D)
}

// NewCommandBuffer wraps cmd for recording.
func NewCommandBuffer(cmd vk.CommandBuffer) *CommandBuffer {
	return &CommandBuffer{cmd: cmd}
}

// CommandBuffer records into a vulkan command buffer.
type CommandBuffer struct {
	cmd vk.CommandBuffer
}

// Get returns the vulkan command buffer handle.
func (c *CommandBuffer) Get() vk.CommandBuffer {
	return c.cmd
}

// Begin resets the buffer and starts recording.
func (c *CommandBuffer) Begin(flags vk.CommandBufferUsageFlagBits) error {
	if err := vk.Error(vk.ResetCommandBuffer(c.cmd, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit))); err != nil {
		return fmt.Errorf("vk.ResetCommandBuffer(): %s", err.Error())
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(flags),
	}
	if err := vk.Error(vk.BeginCommandBuffer(c.cmd, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer(): %s", err.Error())
	}
	return nil
}

// End finishes recording.
func (c *CommandBuffer) End() error {
	if err := vk.Error(vk.EndCommandBuffer(c.cmd)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %s", err.Error())
	}
	return nil
}

// BeginRenderPass starts an inline render pass.
func (c *CommandBuffer) BeginRenderPass(info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(c.cmd, info, vk.SubpassContentsInline)
}

// EndRenderPass ends the current render pass.
func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.cmd)
}

// BindVertexBuffers implements CommandStream.
func (c *CommandBuffer) BindVertexBuffers(firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(c.cmd, firstBinding, uint32(len(buffers)), buffers, offsets)
}

// BindIndexBuffer implements CommandStream.
func (c *CommandBuffer) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(c.cmd, buffer, offset, indexType)
}

// PushConstants implements CommandStream.
func (c *CommandBuffer) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset uint32, values []byte) {
	if len(values) == 0 {
		return
	}
	vk.CmdPushConstants(c.cmd, layout, vk.ShaderStageFlags(stages), offset, uint32(len(values)), unsafe.Pointer(&values[0]))
}

// BindDescriptorSets implements CommandStream.
func (c *CommandBuffer) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(c.cmd, bindPoint, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

// BindPipeline implements CommandStream.
func (c *CommandBuffer) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(c.cmd, bindPoint, pipeline)
}

// DrawIndexed implements CommandStream.
func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// SetViewport implements CommandStream.
func (c *CommandBuffer) SetViewport(viewport vk.Viewport) {
	vk.CmdSetViewport(c.cmd, 0, 1, []vk.Viewport{viewport})
}

// SetScissor implements CommandStream.
func (c *CommandBuffer) SetScissor(scissor vk.Rect2D) {
	vk.CmdSetScissor(c.cmd, 0, 1, []vk.Rect2D{scissor})
}

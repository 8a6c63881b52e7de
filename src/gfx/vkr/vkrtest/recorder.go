// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkrtest

import (
	vk "github.com/devblok/vulkan"
)

// Command is one recorded command. Only the fields relevant to Op
// are set.
type Command struct {
	Op string

	FirstBinding uint32
	Buffers      []vk.Buffer
	Offsets      []vk.DeviceSize

	Buffer    vk.Buffer
	Offset    vk.DeviceSize
	IndexType vk.IndexType

	Layout     vk.PipelineLayout
	Stages     vk.ShaderStageFlagBits
	PushOffset uint32
	Values     []byte

	BindPoint vk.PipelineBindPoint
	FirstSet  uint32
	Sets      []vk.DescriptorSet
	Pipeline  vk.Pipeline

	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32

	Viewport vk.Viewport
	Scissor  vk.Rect2D
}

// Recorder is a vkr.CommandStream that keeps every command.
type Recorder struct {
	Commands []Command
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []string {
	ops := make([]string, len(r.Commands))
	for idx, cmd := range r.Commands {
		ops[idx] = cmd.Op
	}
	return ops
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.Commands = nil
}

// BindVertexBuffers implements vkr.CommandStream.
func (r *Recorder) BindVertexBuffers(firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	r.Commands = append(r.Commands, Command{
		Op:           "BindVertexBuffers",
		FirstBinding: firstBinding,
		Buffers:      append([]vk.Buffer(nil), buffers...),
		Offsets:      append([]vk.DeviceSize(nil), offsets...),
	})
}

// BindIndexBuffer implements vkr.CommandStream.
func (r *Recorder) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	r.Commands = append(r.Commands, Command{
		Op:        "BindIndexBuffer",
		Buffer:    buffer,
		Offset:    offset,
		IndexType: indexType,
	})
}

// PushConstants implements vkr.CommandStream.
func (r *Recorder) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset uint32, values []byte) {
	r.Commands = append(r.Commands, Command{
		Op:         "PushConstants",
		Layout:     layout,
		Stages:     stages,
		PushOffset: offset,
		Values:     append([]byte(nil), values...),
	})
}

// BindDescriptorSets implements vkr.CommandStream.
func (r *Recorder) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	r.Commands = append(r.Commands, Command{
		Op:        "BindDescriptorSets",
		BindPoint: bindPoint,
		Layout:    layout,
		FirstSet:  firstSet,
		Sets:      append([]vk.DescriptorSet(nil), sets...),
	})
}

// BindPipeline implements vkr.CommandStream.
func (r *Recorder) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	r.Commands = append(r.Commands, Command{
		Op:        "BindPipeline",
		BindPoint: bindPoint,
		Pipeline:  pipeline,
	})
}

// DrawIndexed implements vkr.CommandStream.
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.Commands = append(r.Commands, Command{
		Op:            "DrawIndexed",
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

// SetViewport implements vkr.CommandStream.
func (r *Recorder) SetViewport(viewport vk.Viewport) {
	r.Commands = append(r.Commands, Command{Op: "SetViewport", Viewport: viewport})
}

// SetScissor implements vkr.CommandStream.
func (r *Recorder) SetScissor(scissor vk.Rect2D) {
	r.Commands = append(r.Commands, Command{Op: "SetScissor", Scissor: scissor})
}

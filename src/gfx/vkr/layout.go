// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// Binding describes one slot of a descriptor set layout.
type Binding struct {
	Slot   uint32
	Type   vk.DescriptorType
	Stages vk.ShaderStageFlagBits

	// Count is the array size of the slot, zero means one.
	Count uint32
}

// LayoutBindings converts bindings into their vulkan form, rejecting
// duplicate slots.
func LayoutBindings(bindings []Binding) ([]vk.DescriptorSetLayoutBinding, error) {
	seen := make(map[uint32]bool, len(bindings))
	out := make([]vk.DescriptorSetLayoutBinding, 0, len(bindings))
	for _, b := range bindings {
		if seen[b.Slot] {
			return nil, fmt.Errorf("descriptor slot %d bound twice", b.Slot)
		}
		seen[b.Slot] = true

		count := b.Count
		if count == 0 {
			count = 1
		}
		out = append(out, vk.DescriptorSetLayoutBinding{
			Binding:         b.Slot,
			DescriptorType:  b.Type,
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		})
	}
	return out, nil
}

// NewDescriptorSetLayout creates a descriptor set layout from a
// plain list of bindings.
func NewDescriptorSetLayout(dev Device, bindings []Binding) (vk.DescriptorSetLayout, error) {
	layoutBindings, err := LayoutBindings(bindings)
	if err != nil {
		return nil, err
	}

	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	return dev.CreateDescriptorSetLayout(&dslci)
}

// PushConstant describes a push constant range.
type PushConstant struct {
	Stages vk.ShaderStageFlagBits
	Offset uint32
	Size   uint32
}

// NewPipelineLayout creates a pipeline layout over set layouts
// and push constant ranges.
func NewPipelineLayout(dev Device, setLayouts []vk.DescriptorSetLayout, ranges []PushConstant) (vk.PipelineLayout, error) {
	pcr := make([]vk.PushConstantRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Size == 0 || r.Size%4 != 0 || r.Offset%4 != 0 {
			return nil, fmt.Errorf("push constant range offset %d size %d is not a multiple of 4", r.Offset, r.Size)
		}
		pcr = append(pcr, vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		})
	}

	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pcr)),
		PPushConstantRanges:    pcr,
	}
	return dev.CreatePipelineLayout(&plci)
}

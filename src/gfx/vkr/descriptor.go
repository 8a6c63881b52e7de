// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
)

// Write is one descriptor update targeting a single slot.
type Write interface {
	descriptorWrite(set vk.DescriptorSet) vk.WriteDescriptorSet
}

// BufferWrite points a uniform buffer slot at a buffer range.
type BufferWrite struct {
	Slot   uint32
	Buffer vk.Buffer
	Offset vk.DeviceSize
	Range  vk.DeviceSize
}

func (w BufferWrite) descriptorWrite(set vk.DescriptorSet) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      w.Slot,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: w.Buffer,
			Offset: w.Offset,
			Range:  w.Range,
		}},
	}
}

// ImageWrite points a sampled image slot at an image view.
type ImageWrite struct {
	Slot   uint32
	View   vk.ImageView
	Layout vk.ImageLayout
}

func (w ImageWrite) descriptorWrite(set vk.DescriptorSet) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      w.Slot,
		DescriptorType:  vk.DescriptorTypeSampledImage,
		DescriptorCount: 1,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   w.View,
			ImageLayout: w.Layout,
		}},
	}
}

// SamplerWrite points a sampler slot at a sampler.
type SamplerWrite struct {
	Slot    uint32
	Sampler vk.Sampler
}

func (w SamplerWrite) descriptorWrite(set vk.DescriptorSet) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      w.Slot,
		DescriptorType:  vk.DescriptorTypeSampler,
		DescriptorCount: 1,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: w.Sampler,
		}},
	}
}

// AllocateDescriptorSet allocates a single set of layout from pool.
// The set belongs to the pool and is freed with it.
func AllocateDescriptorSet(dev Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	return dev.AllocateDescriptorSet(pool, layout)
}

// WriteDescriptorSet applies writes to set in a single update.
func WriteDescriptorSet(dev Device, set vk.DescriptorSet, writes ...Write) {
	if len(writes) == 0 {
		return
	}
	wds := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		wds = append(wds, w.descriptorWrite(set))
	}
	dev.UpdateDescriptorSets(wds)
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/korumesh/src/gfx"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

// ErrInvalidSPIRV is returned for data that is not a SPIR-V module.
var ErrInvalidSPIRV = errors.New("not a SPIR-V binary")

// ValidateSPIRV checks size and magic number of a shader binary.
func ValidateSPIRV(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return fmt.Errorf("length %d: %w", len(code), ErrInvalidSPIRV)
	}
	if binary.LittleEndian.Uint32(code) != SPIRVMagic {
		return fmt.Errorf("magic %#08x: %w", binary.LittleEndian.Uint32(code), ErrInvalidSPIRV)
	}
	return nil
}

// SliceUint32 reslices bytes into a uint32, that is used
// to sumbit vulkan shaders for processing. Unaligned input is copied.
func SliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	if uintptr(unsafe.Pointer(&data[0]))%4 == 0 {
		return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
	}
	words := make([]uint32, len(data)/4)
	for idx := range words {
		words[idx] = binary.LittleEndian.Uint32(data[idx*4:])
	}
	return words
}

// NewShaderModule creates a shader module from a SPIR-V binary.
func NewShaderModule(dev Device, code []byte) (vk.ShaderModule, error) {
	if err := ValidateSPIRV(code); err != nil {
		return nil, err
	}
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    SliceUint32(code),
	}
	return dev.CreateShaderModule(&smci)
}

// LoadShaderModule finds the named binary in src and creates
// a shader module from it.
func LoadShaderModule(dev Device, src gfx.Source, name string) (vk.ShaderModule, error) {
	code, err := src.Find(name)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	module, err := NewShaderModule(dev, code)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}

	log.WithFields(log.Fields{
		"shader": name,
		"size":   len(code),
	}).Debug("shader module created")
	return module, nil
}

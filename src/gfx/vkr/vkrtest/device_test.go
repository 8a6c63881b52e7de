// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkrtest_test

import (
	"runtime"
	"testing"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"

	"github.com/devblok/korumesh/src/gfx/vkr/vkrtest"
)

func TestHandlesUnique(t *testing.T) {
	c := qt.New(t)

	// enough to run through several arenas
	seen := make(map[vk.Buffer]bool)
	for i := 0; i < 1000; i++ {
		b := vkrtest.Buffer()
		c.Assert(b, qt.Not(qt.IsNil))
		c.Assert(seen[b], qt.IsFalse, qt.Commentf("handle %d minted twice", i))
		seen[b] = true
	}

	// earlier arenas are still referenced, so none of their slots return
	runtime.GC()
	c.Assert(seen[vkrtest.Buffer()], qt.IsFalse)
}

func TestDeviceTracksLifetimes(t *testing.T) {
	c := qt.New(t)
	dev := vkrtest.NewDevice()

	buf, err := dev.CreateBuffer(&vk.BufferCreateInfo{Size: 64})
	c.Assert(err, qt.IsNil)
	c.Assert(dev.Live(), qt.DeepEquals, []string{"buffer"})

	dev.DestroyBuffer(buf)
	c.Assert(dev.Live(), qt.HasLen, 0)
	c.Assert(dev.Errors(), qt.HasLen, 0)

	dev.DestroyBuffer(buf)
	c.Assert(dev.Errors(), qt.HasLen, 1)

	dev.DestroyBuffer(vkrtest.Buffer())
	c.Assert(dev.Errors(), qt.HasLen, 2)
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"testing"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
)

type fakeRenderer struct {
	lod bool
}

func (f *fakeRenderer) Initialise() error { return nil }
func (f *fakeRenderer) DeviceIsSuitable(vk.PhysicalDevice) (bool, string) { return true, "" }
func (f *fakeRenderer) Draw(model, view glm.Mat3x4) error { return nil }
func (f *fakeRenderer) Present() error { return nil }
func (f *fakeRenderer) SetShowTextureLOD(show bool) { f.lod = show }
func (f *fakeRenderer) ShowTextureLOD() bool { return f.lod }
func (f *fakeRenderer) Destroy() {}

func TestHandleKey(t *testing.T) {
	c := qt.New(t)
	cam := newOrbitCamera()
	r := &fakeRenderer{}

	c.Assert(handleKey(sdl.K_l, cam, r), qt.IsTrue)
	c.Assert(r.lod, qt.IsTrue)
	c.Assert(handleKey(sdl.K_l, cam, r), qt.IsTrue)
	c.Assert(r.lod, qt.IsFalse)

	c.Assert(handleKey(sdl.K_RIGHT, cam, r), qt.IsTrue)
	c.Assert(cam.yaw, qt.Equals, orbitStep)

	c.Assert(handleKey(sdl.K_MINUS, cam, r), qt.IsTrue)
	c.Assert(cam.distance, qt.Equals, 3+zoomStep)

	c.Assert(handleKey(sdl.K_SPACE, cam, r), qt.IsTrue)
	c.Assert(cam.paused, qt.IsTrue)

	c.Assert(handleKey(sdl.K_ESCAPE, cam, r), qt.IsFalse)
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korumesh/src/gfx/xform"
)

func TestOrbitCameraLimits(t *testing.T) {
	c := qt.New(t)
	cam := newOrbitCamera()

	for i := 0; i < 100; i++ {
		cam.orbit(0, orbitStep)
		cam.zoom(zoomStep)
	}
	c.Assert(cam.pitch, qt.Equals, maxPitch)
	c.Assert(cam.distance, qt.Equals, maxDistance)

	for i := 0; i < 200; i++ {
		cam.orbit(0, -orbitStep)
		cam.zoom(-zoomStep)
	}
	c.Assert(cam.pitch, qt.Equals, -maxPitch)
	c.Assert(cam.distance, qt.Equals, minDistance)
}

func TestOrbitCameraViewDistance(t *testing.T) {
	c := qt.New(t)
	cam := newOrbitCamera()
	cam.orbit(1.3, 0.2)

	_, view := cam.frame()
	eye := xform.Affine(view).Mul4x1(glm.Vec4{0, 0, 0, 1})
	c.Assert(glm.FloatEqualThreshold(eye.Vec3().Len(), 3, 1e-5), qt.IsTrue)
	c.Assert(glm.FloatEqualThreshold(eye.Z(), -3, 1e-5), qt.IsTrue)
}

func TestOrbitCameraSpin(t *testing.T) {
	c := qt.New(t)
	cam := newOrbitCamera()

	first, _ := cam.frame()
	second, _ := cam.frame()
	c.Assert(first.ApproxEqual(second), qt.IsFalse)

	cam.togglePause()
	third, _ := cam.frame()
	fourth, _ := cam.frame()
	c.Assert(third.ApproxEqual(fourth), qt.IsTrue)
}

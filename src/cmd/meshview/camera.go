// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"math"
	"sync"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/korumesh/src/gfx/xform"
)

// Camera limits.
const (
	orbitStep    = float32(math.Pi / 36)
	zoomStep     = float32(0.25)
	minDistance  = float32(1)
	maxDistance  = float32(20)
	maxPitch     = float32(math.Pi/2 - 0.01)
	spinPerFrame = float32(0.005)
)

// orbitCamera circles the origin. The event loop steers it while
// the draw loop reads it.
type orbitCamera struct {
	mu       sync.Mutex
	yaw      float32
	pitch    float32
	distance float32
	spin     float32
	paused   bool
}

func newOrbitCamera() *orbitCamera {
	return &orbitCamera{
		pitch:    float32(math.Pi / 8),
		distance: 3,
	}
}

func (c *orbitCamera) orbit(dYaw, dPitch float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.yaw += dYaw
	c.pitch = clamp(c.pitch+dPitch, -maxPitch, maxPitch)
}

func (c *orbitCamera) zoom(d float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.distance = clamp(c.distance+d, minDistance, maxDistance)
}

func (c *orbitCamera) togglePause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
}

// frame advances the model spin and returns this frame's
// model and view transforms.
func (c *orbitCamera) frame() (model, view glm.Mat3x4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.spin += spinPerFrame
	}

	model = xform.Rotate(c.spin, glm.Vec3{0, 1, 0})
	view = xform.Compose(
		xform.Translate(0, 0, -c.distance),
		xform.Compose(
			xform.Rotate(c.pitch, glm.Vec3{1, 0, 0}),
			xform.Rotate(-c.yaw, glm.Vec3{0, 1, 0}),
		),
	)
	return model, view
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

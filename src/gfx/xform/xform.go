// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package xform holds the transform helpers shared by the draw units.
// Matrices are mgl32 column-major values.
package xform

import (
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Identity returns the identity affine transform.
func Identity() glm.Mat3x4 {
	return glm.Mat3x4{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0, 0, 0,
	}
}

// Translate returns an affine transform moving points by (x, y, z).
func Translate(x, y, z float32) glm.Mat3x4 {
	m := Identity()
	m[9], m[10], m[11] = x, y, z
	return m
}

// Rotate returns an affine rotation of angle radians around axis.
func Rotate(angle float32, axis glm.Vec3) glm.Mat3x4 {
	r := glm.HomogRotate3D(angle, axis.Normalize())
	var m glm.Mat3x4
	for col := 0; col < 4; col++ {
		for row := 0; row < 3; row++ {
			m[col*3+row] = r[col*4+row]
		}
	}
	return m
}

// Affine promotes a 3x4 affine transform to a full 4x4 matrix
// by appending the (0, 0, 0, 1) row.
func Affine(m glm.Mat3x4) glm.Mat4 {
	var out glm.Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 3; row++ {
			out[col*4+row] = m[col*3+row]
		}
	}
	out[15] = 1
	return out
}

// Compose returns a∘b, the affine transform applying b first.
func Compose(a, b glm.Mat3x4) glm.Mat3x4 {
	p := Affine(a).Mul4(Affine(b))
	var out glm.Mat3x4
	for col := 0; col < 4; col++ {
		for row := 0; row < 3; row++ {
			out[col*3+row] = p[col*4+row]
		}
	}
	return out
}

// PerspectiveZ01 builds a right handed perspective projection for a
// camera looking down -Z. Depth lands in [0, 1] with the near plane at
// 0, and clip space Y points down as Vulkan expects.
func PerspectiveZ01(fovy, aspect, near, far float32) glm.Mat4 {
	f := float32(1 / math.Tan(float64(fovy)/2))
	var m glm.Mat4
	m[0] = f / aspect
	m[5] = -f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korumesh/src/gfx"
)

func TestReleaserReleasesInReverse(t *testing.T) {
	c := qt.New(t)

	var order []int
	var r gfx.Releaser
	for i := 0; i < 3; i++ {
		i := i
		r.PushFunc(func() { order = append(order, i) })
	}
	c.Assert(r.Len(), qt.Equals, 3)

	r.Release()
	c.Assert(order, qt.DeepEquals, []int{2, 1, 0})
	c.Assert(r.Len(), qt.Equals, 0)

	r.Release()
	c.Assert(order, qt.HasLen, 3)
}

func TestReleaserKeep(t *testing.T) {
	c := qt.New(t)

	released := false
	var r gfx.Releaser
	r.PushFunc(func() { released = true })
	r.Keep()
	r.Release()
	c.Assert(released, qt.IsFalse)
}

func TestExtentAspect(t *testing.T) {
	c := qt.New(t)
	c.Assert(gfx.Extent2D{Width: 800, Height: 600}.Aspect(), qt.Equals, float32(800)/600)
	c.Assert(gfx.Extent2D{Width: 800}.Aspect(), qt.Equals, float32(1))
}

func TestDirFind(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	c.Assert(os.MkdirAll(filepath.Join(dir, "spirv"), 0755), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "spirv", "a.spv"), []byte("abcd"), 0644), qt.IsNil)

	data, err := gfx.Dir(dir).Find("spirv/a.spv")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "abcd")

	_, err = gfx.Dir(dir).Find("spirv/missing.spv")
	c.Assert(errors.Is(err, os.ErrNotExist), qt.IsTrue)
}

func TestSourcesFallsThrough(t *testing.T) {
	c := qt.New(t)

	first, second := t.TempDir(), t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(second, "mesh.dae"), []byte("<COLLADA/>"), 0644), qt.IsNil)

	data, err := gfx.Sources{gfx.Dir(first), gfx.Dir(second)}.Find("mesh.dae")
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "<COLLADA/>")

	_, err = gfx.Sources{}.Find("mesh.dae")
	c.Assert(errors.Is(err, os.ErrNotExist), qt.IsTrue)
}

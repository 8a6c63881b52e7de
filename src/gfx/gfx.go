// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines rendering related features that renderers must implement.
package gfx

import (
	"os"
	"path/filepath"
)

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// ReleaseFunc adapts a plain function to Releasable.
type ReleaseFunc func()

// Release implements Releasable.
func (f ReleaseFunc) Release() {
	f()
}

// Releaser collects releasables while a composite object is
// being built. If construction fails half way, Release frees
// everything collected so far in reverse order. Once the object
// is complete, Keep hands ownership to the caller.
type Releaser struct {
	stack []Releasable
}

// Push adds r to the top of the release stack.
func (r *Releaser) Push(rel Releasable) {
	r.stack = append(r.stack, rel)
}

// PushFunc adds f to the top of the release stack.
func (r *Releaser) PushFunc(f func()) {
	r.Push(ReleaseFunc(f))
}

// Keep forgets every collected releasable without releasing it.
func (r *Releaser) Keep() {
	r.stack = nil
}

// Len returns the number of collected releasables.
func (r *Releaser) Len() int {
	return len(r.stack)
}

// Release releases everything collected, last in first out.
// Safe to call after Keep, it does nothing then.
func (r *Releaser) Release() {
	for i := len(r.stack) - 1; i >= 0; i-- {
		r.stack[i].Release()
	}
	r.stack = nil
}

// Extent2D is a width and height pair in pixels.
type Extent2D struct {
	Width, Height uint32
}

// Aspect returns width over height. Zero height yields 1.
func (e Extent2D) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Extent3D is a volume extent, used for images.
type Extent3D struct {
	Width, Height, Depth uint32
}

// Source describes an asset lookup mechanism. Shader binaries,
// meshes and textures are all found by a slash separated name.
type Source interface {

	// Find returns the complete contents of the named asset.
	Find(name string) ([]byte, error)
}

// Dir is a Source backed by a directory on disk.
type Dir string

// Find implements Source.
func (d Dir) Find(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)))
}

// Sources searches several sources in order, returning
// the first hit. The last error is returned when none match.
type Sources []Source

// Find implements Source.
func (s Sources) Find(name string) ([]byte, error) {
	err := os.ErrNotExist
	for _, src := range s {
		data, findErr := src.Find(name)
		if findErr == nil {
			return data, nil
		}
		err = findErr
	}
	return nil, err
}

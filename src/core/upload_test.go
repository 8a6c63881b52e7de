// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korumesh/src/core"
	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/model"
)

const triangle = `<COLLADA><library_geometries><geometry id="g"><mesh>
	<source id="pos"><float_array id="pos-array">0 0 0 1 0 0 0 1 0</float_array>
		<technique_common><accessor count="3" stride="3"/></technique_common></source>
	<vertices id="verts"><input semantic="POSITION" source="#pos"/></vertices>
	<triangles count="1"><input semantic="VERTEX" source="#verts" offset="0"/><p>0 1 2</p></triangles>
</mesh></geometry></library_geometries></COLLADA>`

func assetDir(c *qt.C) gfx.Dir {
	dir := c.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "triangle.dae"), []byte(triangle), 0o644), qt.IsNil)

	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, core.Checkerboard(32, 4)), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "checker.png"), buf.Bytes(), 0o644), qt.IsNil)
	return gfx.Dir(dir)
}

func TestSceneMesh(t *testing.T) {
	c := qt.New(t)
	assets := assetDir(c)

	mesh, err := core.SceneMesh(core.SceneConfiguration{}, assets)
	c.Assert(err, qt.IsNil)
	c.Assert(mesh.Triangles(), qt.Equals, model.Cube().Triangles())

	mesh, err = core.SceneMesh(core.SceneConfiguration{Mesh: "triangle.dae"}, assets)
	c.Assert(err, qt.IsNil)
	c.Assert(mesh.Triangles(), qt.Equals, 1)

	_, err = core.SceneMesh(core.SceneConfiguration{Mesh: "missing.dae"}, assets)
	c.Assert(err, qt.ErrorMatches, "mesh missing.dae: .*")

	_, err = core.SceneMesh(core.SceneConfiguration{Mesh: "checker.png"}, assets)
	c.Assert(err, qt.ErrorMatches, "mesh checker.png: .*")
}

func TestSceneTexture(t *testing.T) {
	c := qt.New(t)
	assets := assetDir(c)

	img, err := core.SceneTexture(core.SceneConfiguration{}, assets)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds().Dx(), qt.Equals, 256)

	img, err = core.SceneTexture(core.SceneConfiguration{Texture: "checker.png"}, assets)
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds().Dx(), qt.Equals, 32)

	_, err = core.SceneTexture(core.SceneConfiguration{Texture: "triangle.dae"}, assets)
	c.Assert(err, qt.ErrorMatches, "texture triangle.dae: texture decode failed: .*")
}

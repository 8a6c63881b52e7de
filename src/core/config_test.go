// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/envy"

	"github.com/devblok/korumesh/src/core"
)

func TestDefaultConfiguration(t *testing.T) {
	c := qt.New(t)
	cfg := core.DefaultConfiguration()
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(800))
	c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, uint32(600))
	c.Assert(cfg.Renderer.SwapchainSize, qt.Equals, uint32(3))
	c.Assert(cfg.Renderer.DeviceExtensions, qt.DeepEquals, []string{"VK_KHR_swapchain"})
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 144)
	c.Assert(cfg.Logging.Level, qt.Equals, "info")
	c.Assert(cfg.Scene, qt.Equals, core.SceneConfiguration{})
}

func writeConfig(c *qt.C, contents string) string {
	path := filepath.Join(c.TempDir(), "korumesh.yaml")
	c.Assert(os.WriteFile(path, []byte(contents), 0o644), qt.IsNil)
	return path
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		verify func(c *qt.C, cfg core.Configuration)
	}{{
		name: "empty file keeps defaults",
		yaml: "",
		verify: func(c *qt.C, cfg core.Configuration) {
			c.Assert(cfg, qt.DeepEquals, core.DefaultConfiguration())
		},
	}, {
		name: "partial override",
		yaml: `
renderer:
  width: 1280
  height: 720
scene:
  mesh: meshes/suzanne.dae
  show_texture_lod: true
`,
		verify: func(c *qt.C, cfg core.Configuration) {
			c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1280))
			c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, uint32(720))
			c.Assert(cfg.Renderer.SwapchainSize, qt.Equals, uint32(3))
			c.Assert(cfg.Scene.Mesh, qt.Equals, "meshes/suzanne.dae")
			c.Assert(cfg.Scene.ShowTextureLOD, qt.IsTrue)
			c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 144)
		},
	}, {
		name: "logging and time",
		yaml: `
time:
  fps: 0
  event_poll_delay: 10
logging:
  level: debug
  format: json
`,
		verify: func(c *qt.C, cfg core.Configuration) {
			c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 0)
			c.Assert(cfg.Time.EventPollDelay, qt.Equals, 10)
			c.Assert(cfg.Logging, qt.Equals, core.LoggingConfiguration{Level: "debug", Format: "json"})
		},
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := qt.New(t)
			cfg, err := core.LoadConfiguration(writeConfig(c, test.yaml))
			c.Assert(err, qt.IsNil)
			test.verify(c, cfg)
		})
	}
}

func TestLoadConfigurationNoFile(t *testing.T) {
	c := qt.New(t)
	cfg, err := core.LoadConfiguration("")
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(800))
}

func TestLoadConfigurationErrors(t *testing.T) {
	c := qt.New(t)

	_, err := core.LoadConfiguration(filepath.Join(c.TempDir(), "missing.yaml"))
	c.Assert(err, qt.ErrorMatches, "loading config from .*missing.yaml: .*")

	_, err = core.LoadConfiguration(writeConfig(c, "renderer: [1, 2"))
	c.Assert(err, qt.ErrorMatches, "loading config from .*: yaml: .*")

	_, err = core.LoadConfiguration(writeConfig(c, "renderer:\n  width: wide\n"))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestLoadConfigurationEnvironment(t *testing.T) {
	c := qt.New(t)
	path := writeConfig(c, "renderer:\n  width: 1280\nscene:\n  texture: bricks.png\n")

	envy.Temp(func() {
		envy.Set("KORU_WIDTH", "1920")
		envy.Set("KORU_MESH", "cube.dae")
		envy.Set("KORU_DEBUG", "true")
		envy.Set("KORU_LOG_LEVEL", "warn")

		cfg, err := core.LoadConfiguration(path)
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, uint32(1920))
		c.Assert(cfg.Renderer.Debug, qt.IsTrue)
		c.Assert(cfg.Scene.Mesh, qt.Equals, "cube.dae")
		c.Assert(cfg.Scene.Texture, qt.Equals, "bricks.png")
		c.Assert(cfg.Logging.Level, qt.Equals, "warn")
	})
}

func TestLoadConfigurationBadEnvironment(t *testing.T) {
	tests := []struct {
		key, value, err string
	}{
		{"KORU_FPS", "fast", `KORU_FPS="fast": not a non negative integer`},
		{"KORU_HEIGHT", "-1", `KORU_HEIGHT="-1": not a non negative integer`},
		{"KORU_DEBUG", "maybe", `KORU_DEBUG="maybe": .*invalid syntax`},
	}
	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			c := qt.New(t)
			envy.Temp(func() {
				envy.Set(test.key, test.value)
				_, err := core.LoadConfiguration("")
				c.Assert(err, qt.ErrorMatches, test.err)
			})
		})
	}
}

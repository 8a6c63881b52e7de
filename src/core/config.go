// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gobuffalo/envy"
	"gopkg.in/yaml.v3"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration     `yaml:"time"`
	Renderer RendererConfiguration `yaml:"renderer"`
	Scene    SceneConfiguration    `yaml:"scene"`
	Logging  LoggingConfiguration  `yaml:"logging"`
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int `yaml:"fps"`

	// EventPollDelay is the window event polling period in milliseconds.
	EventPollDelay int `yaml:"event_poll_delay"`
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize    uint32   `yaml:"swapchain_size"`
	DeviceExtensions []string `yaml:"device_extensions"`

	ScreenWidth  uint32 `yaml:"width"`
	ScreenHeight uint32 `yaml:"height"`

	// ShaderDirectory holds compiled shaders, it is searched
	// before the shaders built into the binary.
	ShaderDirectory string `yaml:"shader_directory"`

	// Debug loads the validation layers.
	Debug bool `yaml:"debug"`
}

// SceneConfiguration picks what is drawn.
type SceneConfiguration struct {
	// Archive is an optional kar archive searched for every asset.
	Archive string `yaml:"archive"`

	// Mesh is a Collada file, the built in cube when empty.
	Mesh string `yaml:"mesh"`

	// Texture is a PNG or JPEG file, a checker board when empty.
	Texture string `yaml:"texture"`

	ShowTextureLOD bool `yaml:"show_texture_lod"`
}

// LoggingConfiguration controls logrus output.
type LoggingConfiguration struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfiguration returns the configuration used when
// nothing else is given.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 144,
			EventPollDelay:  50,
		},
		Renderer: RendererConfiguration{
			ScreenWidth:   800,
			ScreenHeight:  600,
			SwapchainSize: 3,
			DeviceExtensions: []string{
				"VK_KHR_swapchain",
			},
			ShaderDirectory: "./shaders",
		},
		Logging: LoggingConfiguration{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfiguration builds the configuration with priority
// defaults < file at path < KORU_* environment variables.
// An empty path skips the file.
func LoadConfiguration(path string) (Configuration, error) {
	cfg := DefaultConfiguration()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Configuration{}, fmt.Errorf("loading config from %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Configuration{}, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	if err := applyEnvironment(&cfg); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func applyEnvironment(cfg *Configuration) error {
	ints := []struct {
		key string
		set func(int)
	}{
		{"KORU_FPS", func(v int) { cfg.Time.FramesPerSecond = v }},
		{"KORU_EVENT_POLL_DELAY", func(v int) { cfg.Time.EventPollDelay = v }},
		{"KORU_WIDTH", func(v int) { cfg.Renderer.ScreenWidth = uint32(v) }},
		{"KORU_HEIGHT", func(v int) { cfg.Renderer.ScreenHeight = uint32(v) }},
		{"KORU_SWAPCHAIN_SIZE", func(v int) { cfg.Renderer.SwapchainSize = uint32(v) }},
	}
	for _, e := range ints {
		raw := envy.Get(e.key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return fmt.Errorf("%s=%q: not a non negative integer", e.key, raw)
		}
		e.set(v)
	}

	bools := []struct {
		key string
		set func(bool)
	}{
		{"KORU_DEBUG", func(v bool) { cfg.Renderer.Debug = v }},
		{"KORU_SHOW_TEXTURE_LOD", func(v bool) { cfg.Scene.ShowTextureLOD = v }},
	}
	for _, e := range bools {
		raw := envy.Get(e.key, "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", e.key, raw, err)
		}
		e.set(v)
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"KORU_SHADERS", &cfg.Renderer.ShaderDirectory},
		{"KORU_ARCHIVE", &cfg.Scene.Archive},
		{"KORU_MESH", &cfg.Scene.Mesh},
		{"KORU_TEXTURE", &cfg.Scene.Texture},
		{"KORU_LOG_LEVEL", &cfg.Logging.Level},
		{"KORU_LOG_FORMAT", &cfg.Logging.Format},
	}
	for _, e := range strs {
		*e.dst = envy.Get(e.key, *e.dst)
	}
	return nil
}

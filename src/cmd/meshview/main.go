// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command meshview opens a window and draws a textured, spinning mesh.
//
// Keys: arrows orbit, +/- zoom, L toggles texture LOD colouring,
// space pauses the spin, escape quits.
package main

//go:generate glslangValidator -V ../../../shaders/raster_mesh.vert -o ../../../shaders/spirv/raster_mesh.vert.spv
//go:generate glslangValidator -V ../../../shaders/raster_mesh.frag -o ../../../shaders/spirv/raster_mesh.frag.spv

import (
	"context"
	"errors"
	"flag"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/gobuffalo/packr"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/korumesh/src/core"
	"github.com/devblok/korumesh/src/gfx"
	"github.com/devblok/korumesh/src/utility/kar"
)

func init() {
	runtime.LockOSThread()
}

var (
	configFile   = flag.String("config", "", "YAML configuration file")
	envFile      = flag.String("env", ".env", "dotenv file read before the configuration")
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

var frameCounter int64

func loadConfiguration() core.Configuration {
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Fatal("reading dotenv file")
	}
	envy.Reload()

	cfg, err := core.LoadConfiguration(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *debug {
		cfg.Renderer.Debug = true
	}
	if err := core.ConfigureLogging(cfg.Logging); err != nil {
		log.Fatal(err)
	}
	return cfg
}

// assetSources searches the archive first, then the shader directory,
// the shaders built into the binary and finally the working directory.
func assetSources(cfg core.Configuration) (gfx.Source, func()) {
	shaderBox := packr.NewBox("../../../shaders")
	sources := gfx.Sources{
		gfx.Dir(cfg.Renderer.ShaderDirectory),
		shaderBox,
		gfx.Dir("."),
	}
	if cfg.Scene.Archive == "" {
		return sources, func() {}
	}

	archive, err := kar.OpenFile(cfg.Scene.Archive)
	if err != nil {
		log.WithError(err).WithField("archive", cfg.Scene.Archive).Fatal("opening asset archive")
	}
	log.WithFields(log.Fields{
		"archive": cfg.Scene.Archive,
		"files":   len(archive.Names()),
		"author":  archive.Header().Author,
	}).Info("asset archive opened")
	return append(gfx.Sources{archive}, sources...), func() { archive.Close() }
}

func newWindow(cfg core.RendererConfiguration) *sdl.Window {
	window, err := sdl.CreateWindow("KoruMesh",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		log.Fatal(err)
	}
	return window
}

func main() {
	flag.Parse()
	cfg := loadConfiguration()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := trace.Start(f); err != nil {
			log.Fatal(err)
		}
		defer trace.Stop()
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.Fatal(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		log.Fatal(err)
	}
	defer sdl.VulkanUnloadLibrary()

	window := newWindow(cfg.Renderer)
	defer window.Destroy()

	instance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), core.InstanceConfiguration{
		DebugMode:  cfg.Renderer.Debug,
		Extensions: window.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer instance.Destroy()

	surface, err := window.VulkanCreateSurface(instance.Instance())
	if err != nil {
		log.Fatal(err)
	}
	instance.SetSurface(surface)

	assets, closeAssets := assetSources(cfg)
	defer closeAssets()

	renderer, err := core.NewVulkanRenderer(instance, cfg.Renderer, cfg.Scene, assets)
	if err != nil {
		log.Fatal(err)
	}
	if err := renderer.Initialise(); err != nil {
		renderer.Destroy()
		log.Fatal(err)
	}
	defer renderer.Destroy()

	run(cfg, renderer)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		f.Close()
	}
}

// run drives the draw loop on its own goroutine and polls window
// events on this one until the window closes.
func run(cfg core.Configuration, renderer core.Renderer) {
	timeService := core.NewTime(cfg.Time)
	defer timeService.Stop()

	camera := newOrbitCamera()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.WithFields(log.Fields{
					"fps":      atomic.SwapInt64(&frameCounter, 0),
					"cgoCalls": runtime.NumCgoCall(),
				}).Debug("frame stats")
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				log.Debug("draw loop exited")
				return
			case <-timeService.FpsTicker().C:
				model, view := camera.frame()
				if err := renderer.Draw(model, view); err != nil {
					log.WithError(err).Error("draw")
					continue
				}
				if err := renderer.Present(); err != nil {
					log.WithError(err).Error("present")
					continue
				}
				atomic.AddInt64(&frameCounter, 1)
			}
		}
	}()

EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case <-timeService.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Type != sdl.KEYDOWN {
						continue
					}
					if !handleKey(et.Keysym.Sym, camera, renderer) {
						cancel()
						continue EventLoop
					}
				case *sdl.QuitEvent:
					cancel()
					continue EventLoop
				}
			}
		}
	}

	wg.Wait()
}

// handleKey applies a key press and reports whether to keep running.
func handleKey(key sdl.Keycode, camera *orbitCamera, renderer core.Renderer) bool {
	switch key {
	case sdl.K_ESCAPE:
		return false
	case sdl.K_LEFT:
		camera.orbit(-orbitStep, 0)
	case sdl.K_RIGHT:
		camera.orbit(orbitStep, 0)
	case sdl.K_UP:
		camera.orbit(0, orbitStep)
	case sdl.K_DOWN:
		camera.orbit(0, -orbitStep)
	case sdl.K_PLUS, sdl.K_EQUALS, sdl.K_KP_PLUS:
		camera.zoom(-zoomStep)
	case sdl.K_MINUS, sdl.K_KP_MINUS:
		camera.zoom(zoomStep)
	case sdl.K_SPACE:
		camera.togglePause()
	case sdl.K_l:
		show := !renderer.ShowTextureLOD()
		renderer.SetShowTextureLOD(show)
		log.WithField("showTextureLOD", show).Info("texture LOD view toggled")
	}
	return true
}

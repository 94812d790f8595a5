// Command particleview runs an emitter preset in a window.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gekko3d/gpuparticle"
	"github.com/gekko3d/gpuparticle/particlert/gpu"
	"github.com/gekko3d/gpuparticle/particlert/mesh"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	presetPath := flag.String("preset", "", "emitter preset (JSON)")
	kernelDir := flag.String("kernels", "", "kernel directory (default: the preset's)")
	drawPath := flag.String("draw", "", "WGSL draw shader with vs_main and fs_main")
	meshPath := flag.String("mesh", "", "glTF mesh to instance (default: quad)")
	meshIndex := flag.Int("mesh-index", 0, "mesh index inside the glTF file")
	hz := flag.Float64("hz", 50, "fixed update rate")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	logger := gpuparticle.NewDefaultLogger("particleview", *debug)

	preset := gpuparticle.Preset{Emitter: gpuparticle.DefaultEmitterConfig(), Transform: gpuparticle.NewTransform()}
	if *presetPath != "" {
		var err error
		if preset, err = gpuparticle.LoadPreset(*presetPath); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		if *kernelDir == "" && preset.Kernels != "" {
			*kernelDir = filepath.Join(filepath.Dir(*presetPath), preset.Kernels)
		}
	}
	if *kernelDir == "" || *drawPath == "" {
		logger.Errorf("-kernels and -draw are required")
		flag.Usage()
		os.Exit(2)
	}

	kernels, err := gpu.LoadKernelDir(*kernelDir)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	drawSrc, err := os.ReadFile(*drawPath)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	m := mesh.Quad()
	if *meshPath != "" {
		if m, err = mesh.LoadGLTF(*meshPath, *meshIndex); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Particle View", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	viewer := NewViewer(window, logger)
	if err := viewer.Init(preset, kernels, string(drawSrc), m, *hz); err != nil {
		panic(err)
	}
	defer viewer.Close()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		viewer.Resize(width, height)
	})

	dragging := false
	var lastX, lastY float64
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft {
			dragging = action == glfw.Press
			lastX, lastY = w.GetCursorPos()
		}
	})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if dragging {
			dx := float32(xpos - lastX)
			dy := float32(ypos - lastY)
			viewer.Camera.Orbit(-dx*viewer.Camera.Sensitivity, dy*viewer.Camera.Sensitivity)
		}
		lastX, lastY = xpos, ypos
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if yoff > 0 {
			viewer.Camera.Zoom(0.9)
		} else if yoff < 0 {
			viewer.Camera.Zoom(1.1)
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			viewer.Emitter.WantEmit(viewer.Emitter.Config().MaxParticles / 10)
		case glfw.KeyR:
			viewer.Emitter.WantReset()
		case glfw.KeyP:
			viewer.Paused = !viewer.Paused
		case glfw.KeyC:
			c, err := viewer.Emitter.Counters()
			if err != nil {
				logger.Errorf("counters: %v", err)
				return
			}
			logger.Infof("alive %d, dead %d", c.AliveListCount, c.DeadListCount)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		viewer.Update()
		viewer.Render()
	}
}

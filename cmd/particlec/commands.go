package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gekko3d/gpuparticle"
	"github.com/gekko3d/gpuparticle/particlert/core"
	"github.com/gekko3d/gpuparticle/particlert/gpu"
	"github.com/gekko3d/gpuparticle/particlert/shaders"
)

func typeName(f core.FieldShape) string {
	var s string
	switch {
	case f.Cols > 1:
		s = fmt.Sprintf("mat%dx%d<%s>", f.Cols, f.Rows, f.Kind)
	case f.Rows > 1:
		s = fmt.Sprintf("vec%d<%s>", f.Rows, f.Kind)
	default:
		s = f.Kind.String()
	}
	if f.Count > 0 {
		s = fmt.Sprintf("array<%s, %d>", s, f.Count)
	}
	return s
}

func runLayout(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("layout", flag.ContinueOnError)
	fs.SetOutput(w)
	packing := fs.String("packing", "wgsl", "structured or wgsl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := core.ParsePacking(*packing)
	if err != nil {
		return err
	}
	for i, s := range core.Schemas() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		l := core.Layout(s, p)
		fmt.Fprintf(w, "%s (%s): size %d, align %d\n", s.Name, p, l.Size, l.Align)
		for _, f := range l.Fields {
			fmt.Fprintf(w, "  %4d %4d  %-20s %s\n", f.Offset, f.Size, f.Name, typeName(f.FieldShape))
		}
	}
	return nil
}

func runHeader(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("header", flag.ContinueOnError)
	fs.SetOutput(w)
	lang := fs.String("lang", "wgsl", "wgsl or hlsl")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch *lang {
	case "wgsl":
		_, err := io.WriteString(w, shaders.GenerateWGSL(core.Schemas()))
		return err
	case "hlsl":
		_, err := io.WriteString(w, shaders.GenerateHLSL(core.Schemas()))
		return err
	}
	return fmt.Errorf("unknown language %q", *lang)
}

func kernelForFile(path string) (gpu.Kernel, bool) {
	base := filepath.Base(path)
	for k := gpu.Kernel(0); k < gpu.KernelCount; k++ {
		if k.FileName() == base {
			return k, true
		}
	}
	return 0, false
}

// checkKernel reflects one kernel with the shared header prepended. Known
// kernel file names must declare their entry point.
func checkKernel(w io.Writer, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r, err := shaders.Reflect(shaders.WithHeader(string(src)))
	if err != nil {
		return fmt.Errorf("%s: %w (kernel lines start after header line %d)", path, err, shaders.HeaderLines())
	}
	if err := r.CheckAll(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if k, ok := kernelForFile(path); ok {
		if _, err := r.WorkgroupSize(k.EntryPoint()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	fmt.Fprintf(w, "%s: ok\n", path)
	names := make([]string, 0, len(r.EntryPoints))
	for name := range r.EntryPoints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		wg := r.EntryPoints[name]
		fmt.Fprintf(w, "  @compute %s workgroup %dx%dx%d\n", name, wg[0], wg[1], wg[2])
	}
	return nil
}

func runCheck(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(w)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no kernel files specified")
	}
	var errs []error
	for _, path := range fs.Args() {
		if err := checkKernel(w, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runEmitter(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(w)
	kernels := fs.String("kernels", "", "kernel directory (default: the preset's)")
	presetPath := fs.String("preset", "", "emitter preset (JSON)")
	steps := fs.Int("steps", 60, "number of fixed steps")
	hz := fs.Float64("hz", 50, "fixed step rate")
	debug := fs.Bool("debug", false, "debug logging")
	dry := fs.Bool("dry", false, "record dispatches without a GPU")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := gpuparticle.NewDefaultLogger("particlec", *debug)
	preset := gpuparticle.Preset{Emitter: gpuparticle.DefaultEmitterConfig(), Transform: gpuparticle.NewTransform()}
	if *presetPath != "" {
		var err error
		if preset, err = gpuparticle.LoadPreset(*presetPath); err != nil {
			return err
		}
		if *kernels == "" && preset.Kernels != "" {
			*kernels = filepath.Join(filepath.Dir(*presetPath), preset.Kernels)
		}
	}

	var backend gpu.Backend
	if *dry {
		backend = gpu.NewRecorder()
	} else {
		if *kernels == "" {
			return errors.New("-kernels is required")
		}
		sources, err := gpu.LoadKernelDir(*kernels)
		if err != nil {
			return err
		}
		dev, err := gpu.NewHeadlessDevice()
		if err != nil {
			return err
		}
		defer dev.Release()
		m, err := gpu.NewManager(dev.Device, sources, gpuparticle.WithPrefix(logger, "gpu"))
		if err != nil {
			return err
		}
		defer m.Destroy()
		backend = m
	}

	emitter, err := gpuparticle.NewEmitter(preset.Emitter, backend, logger)
	if err != nil {
		return err
	}
	defer emitter.Close()
	if err := emitter.Start(preset.Transform); err != nil {
		return err
	}

	dt := gpuparticle.NewFixedStepper(*hz).Seconds()
	for i := 0; i < *steps; i++ {
		report, err := emitter.Step(dt, preset.Transform)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if *debug {
			logger.Debugf("step %d: emit %d in %d groups", i, report.EmitCount, report.EmitGroups)
		}
	}

	c, err := emitter.Counters()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "after %d steps: alive %d, dead %d, updated %d\n", *steps, c.AliveListCount, c.DeadListCount, c.UpdateParticleCount)
	if rec, ok := backend.(*gpu.Recorder); ok {
		var calls []string
		for _, call := range rec.Dispatches() {
			calls = append(calls, call.String())
		}
		fmt.Fprintf(w, "%d dispatches recorded\n", len(calls))
		if *debug {
			fmt.Fprintln(w, strings.Join(calls, "\n"))
		}
	}
	return nil
}

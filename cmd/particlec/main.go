// Command particlec inspects the particle data layouts and kernels.
//
// Usage:
//
//	particlec layout [-packing structured|wgsl]
//	particlec header [-lang wgsl|hlsl]
//	particlec check <kernel.wgsl>...
//	particlec run -kernels <dir> [-preset file] [-steps n]
package main

import (
	"fmt"
	"io"
	"os"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: particlec <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  layout   print struct offsets for a packing")
	fmt.Fprintln(w, "  header   print the shared struct declarations")
	fmt.Fprintln(w, "  check    verify kernels against the shared layouts")
	fmt.Fprintln(w, "  run      step an emitter on a headless device")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "layout":
		err = runLayout(os.Stdout, args)
	case "header":
		err = runHeader(os.Stdout, args)
	case "check":
		err = runCheck(os.Stdout, args)
	case "run":
		err = runEmitter(os.Stdout, args)
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

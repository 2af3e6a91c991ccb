// Command rv32sim runs RV32 programs on a five-stage pipeline model or the
// reference emulator, and simulates caches from memory traces.
//
// Usage:
//
//	rv32sim run [flags] <program>
//	rv32sim emulate [flags] <program>
//	rv32sim cache [flags] <trace>
//	rv32sim bench [flags]
package main

import (
	"os"
)

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

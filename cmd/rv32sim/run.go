package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/loader"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

// programFlags holds the flags that select and place a program.
type programFlags struct {
	format  string
	entry   uint32
	memSize uint32
}

func (f *programFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", string(loader.FormatELF), "program format (elf, bin, hex)")
	flags.Uint32Var(&f.entry, "entry", 0, "load address and entry point of bin and hex images")
	flags.Uint32Var(&f.memSize, "mem-size", emu.DefaultMemorySize, "memory size in bytes")
}

func (f *programFlags) load(path string) (*loader.Program, error) {
	format, err := loader.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}

	prog, err := loader.LoadFile(path, format, f.entry)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	return prog, nil
}

func (a *app) newRunCmd() *cobra.Command {
	var (
		prog       programFlags
		caches     cacheFlags
		maxCycles  uint64
		traceRegs  bool
		traceCache bool
		cpuProfile string
	)

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program on the five-stage pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cacheConfig, err := caches.config(cmd)
			if err != nil {
				return err
			}

			program, err := prog.load(args[0])
			if err != nil {
				return err
			}

			opts := []pipeline.PipelineOption{
				pipeline.WithStdout(a.stdout),
				pipeline.WithLogger(a.logger),
			}
			if traceRegs {
				opts = append(opts, pipeline.WithRegisterTrace(a.stdout))
			}
			if traceCache {
				opts = append(opts, pipeline.WithAccessHook(func(e pipeline.AccessEvent) {
					kind := "L"
					if e.Store {
						kind = "S"
					}
					_, _ = fmt.Fprintf(a.stdout, "%s %x %s\n", kind, e.Addr, e.Result)
				}))
			}

			c, err := core.New(core.Config{
				MemorySize: prog.memSize,
				Cache:      cacheConfig,
				MaxCycles:  maxCycles,
			}, opts...)
			if err != nil {
				return err
			}

			if err := program.LoadInto(c.Memory()); err != nil {
				return err
			}
			c.SetPC(program.EntryPoint)

			a.logger.WithFields(logrus.Fields{
				"program":  args[0],
				"entry":    fmt.Sprintf("0x%08x", program.EntryPoint),
				"segments": len(program.Segments),
				"cache":    fmt.Sprintf("s=%d E=%d b=%d %s", cacheConfig.SetBits, cacheConfig.LinesPerSet, cacheConfig.BlockBits, cacheConfig.Policy),
			}).Info("Starting pipeline simulation")

			if cpuProfile != "" {
				stop, err := startProfile(cpuProfile)
				if err != nil {
					return err
				}
				defer stop()
			}

			_, runErr := c.Run()

			if err := c.WriteReport(a.stdout); err != nil {
				return err
			}

			return runErr
		},
	}

	prog.register(cmd)
	caches.register(cmd)
	flags := cmd.Flags()
	flags.Uint64Var(&maxCycles, "max-cycles", 0, "stop after this many cycles (0 = unlimited)")
	flags.BoolVar(&traceRegs, "trace-regs", false, "print the register file after every cycle")
	flags.BoolVar(&traceCache, "trace-cache", false, "print every data cache access")
	flags.StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this file")

	return cmd
}

func startProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "creating CPU profile")
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "starting CPU profile")
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}

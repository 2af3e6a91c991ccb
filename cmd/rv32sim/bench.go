package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rv32sim/benchmarks"
)

func (a *app) newBenchCmd() *cobra.Command {
	var (
		caches  cacheFlags
		csv     bool
		jsonOut bool
		cosim   bool
		core    bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the built-in benchmark programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cacheConfig, err := caches.config(cmd)
			if err != nil {
				return err
			}

			config := benchmarks.DefaultConfig()
			config.Core.Cache = cacheConfig
			config.Output = a.stdout
			config.Verbose = a.verbose

			harness := benchmarks.NewHarness(config)
			set := benchmarks.GetMicrobenchmarks()
			if core {
				set = benchmarks.GetCoreBenchmarks()
			}

			if cosim {
				return a.cosimulate(harness, set)
			}

			harness.AddBenchmarks(set)
			results := harness.RunAll()

			switch {
			case jsonOut:
				return harness.PrintJSON(results)
			case csv:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}
			return nil
		},
	}

	caches.register(cmd)
	flags := cmd.Flags()
	flags.BoolVar(&csv, "csv", false, "output results in CSV format")
	flags.BoolVar(&jsonOut, "json", false, "output results in JSON format")
	flags.BoolVar(&cosim, "cosim", false, "check every benchmark against the reference emulator")
	flags.BoolVar(&core, "core", false, "run only the core benchmark set")

	return cmd
}

func (a *app) cosimulate(harness *benchmarks.Harness, set []benchmarks.Benchmark) error {
	failed := 0
	for _, bench := range set {
		result, err := harness.Cosimulate(bench)
		if err != nil {
			return err
		}

		status := "ok"
		if len(result.Mismatches) > 0 {
			status = "MISMATCH"
			failed++
		}
		_, _ = fmt.Fprintf(a.stdout, "%-24s %-8s cycles=%d insts=%d\n",
			bench.Name, status, result.Pipeline.SimulatedCycles, result.EmulatorInstructions)
		for _, m := range result.Mismatches {
			_, _ = fmt.Fprintf(a.stdout, "    %s\n", m)
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d benchmarks mismatched", failed, len(set))
	}
	return nil
}

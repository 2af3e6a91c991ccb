// Package benchmarks provides timing benchmark infrastructure and
// co-simulation of the pipeline against the reference emulator.
package benchmarks

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/cache"
	"github.com/sarchlab/rv32sim/timing/core"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

// ProgramAddr is the address benchmark programs are loaded at.
const ProgramAddr uint32 = 0

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of load-use stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// TakenBranches counts taken branches and jumps
	TakenBranches uint64 `json:"taken_branches"`

	// PipelineFlushes is the number of pipeline flushes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// ForwardsEXMEM and ForwardsMEMWB count instructions that received an
	// operand over each forwarding path
	ForwardsEXMEM uint64 `json:"forwards_exmem"`
	ForwardsMEMWB uint64 `json:"forwards_memwb"`

	// DCache outcomes
	DCacheHits      uint64 `json:"dcache_hits"`
	DCacheMisses    uint64 `json:"dcache_misses"`
	DCacheEvictions uint64 `json:"dcache_evictions"`

	// ExitCode is the program's exit code
	ExitCode int64 `json:"exit_code"`

	// Stdout is what the program printed through syscalls
	Stdout string `json:"stdout,omitempty"`

	// Err is the error that stopped the simulation, if any
	Err string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the initial state (e.g., data in memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RV32 machine code to execute, loaded at ProgramAddr
	Program []byte

	// ExpectedRegs are register values that must hold at exit
	ExpectedRegs map[uint8]uint32

	// ExpectedMem are memory words that must hold at exit
	ExpectedMem map[uint32]uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Core describes the simulated machine
	Core core.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables per-cycle debug logging to Output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	config := core.DefaultConfig()
	config.MaxCycles = 1_000_000

	return HarnessConfig{
		Core:   config,
		Output: os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
	logger     *logrus.Logger
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(config.Output)
	logger.SetLevel(logrus.WarnLevel)
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
		logger:     logger,
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, _ := h.Run(bench)
		results = append(results, result)
	}

	return results
}

// Run executes a single benchmark on the pipeline and returns its result
// together with the core it ran on.
func (h *Harness) Run(bench Benchmark) (BenchmarkResult, *core.Core) {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	stdout := &bytes.Buffer{}
	c, err := core.New(h.config.Core,
		pipeline.WithStdout(stdout),
		pipeline.WithLogger(h.logger),
	)
	if err != nil {
		result.Err = err.Error()
		return result, nil
	}

	if bench.Setup != nil {
		bench.Setup(c.RegFile(), c.Memory())
	}

	if err := c.LoadProgram(ProgramAddr, bench.Program); err != nil {
		result.Err = err.Error()
		return result, c
	}

	start := time.Now()
	exitCode, err := c.Run()
	result.WallTime = time.Since(start)

	stats := c.Pipeline.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.TakenBranches = stats.Branches
	result.PipelineFlushes = stats.Flushes
	result.ForwardsEXMEM = stats.ForwardEXMEM
	result.ForwardsMEMWB = stats.ForwardMEMWB
	result.DCacheHits = stats.Cache.Hits
	result.DCacheMisses = stats.Cache.Misses
	result.DCacheEvictions = stats.Cache.Evictions
	result.ExitCode = exitCode
	result.Stdout = stdout.String()
	if err != nil {
		result.Err = err.Error()
	}

	return result, c
}

// Check verifies the expected registers and memory words of bench against
// the state left by a run.
func Check(bench Benchmark, regFile *emu.RegFile, memory *emu.Memory) error {
	for reg, want := range bench.ExpectedRegs {
		if got := regFile.ReadReg(reg); got != want {
			return errors.Errorf("%s: x%d = 0x%08x, want 0x%08x", bench.Name, reg, got, want)
		}
	}

	for addr, want := range bench.ExpectedMem {
		if got := memory.Read32(addr); got != want {
			return errors.Errorf("%s: mem[0x%08x] = 0x%08x, want 0x%08x", bench.Name, addr, got, want)
		}
	}

	return nil
}

// CosimResult compares a pipeline run with a run of the reference emulator.
type CosimResult struct {
	Pipeline BenchmarkResult

	// EmulatorInstructions is the number of instructions the emulator
	// executed.
	EmulatorInstructions uint64

	// EmulatorStdout is what the emulator printed.
	EmulatorStdout string

	// Mismatches lists the architectural differences found.
	Mismatches []string
}

// Cosimulate runs bench on both the pipeline and the reference emulator
// and compares the final register files, instruction counts and output.
func (h *Harness) Cosimulate(bench Benchmark) (CosimResult, error) {
	result, c := h.Run(bench)
	if c == nil || result.Err != "" {
		return CosimResult{Pipeline: result}, errors.Errorf("%s: pipeline: %s", bench.Name, result.Err)
	}

	stdout := &bytes.Buffer{}
	e := emu.NewEmulator(
		emu.WithStdout(stdout),
		emu.WithMemory(emu.NewMemoryOfSize(h.config.Core.MemorySize)),
		emu.WithMaxInstructions(h.config.Core.MaxCycles),
	)
	if bench.Setup != nil {
		bench.Setup(e.RegFile(), e.Memory())
	}
	if err := e.LoadProgram(ProgramAddr, bench.Program); err != nil {
		return CosimResult{Pipeline: result}, errors.Wrap(err, bench.Name)
	}
	if _, err := e.Run(); err != nil {
		return CosimResult{Pipeline: result}, errors.Wrapf(err, "%s: emulator", bench.Name)
	}

	cosim := CosimResult{
		Pipeline:             result,
		EmulatorInstructions: e.InstructionCount(),
		EmulatorStdout:       stdout.String(),
	}

	for reg := uint8(1); reg < 32; reg++ {
		p, r := c.RegFile().ReadReg(reg), e.RegFile().ReadReg(reg)
		if p != r {
			cosim.Mismatches = append(cosim.Mismatches,
				fmt.Sprintf("x%d: pipeline 0x%08x, emulator 0x%08x", reg, p, r))
		}
	}

	if result.InstructionsRetired != cosim.EmulatorInstructions {
		cosim.Mismatches = append(cosim.Mismatches,
			fmt.Sprintf("instructions: pipeline %d, emulator %d",
				result.InstructionsRetired, cosim.EmulatorInstructions))
	}

	if result.Stdout != cosim.EmulatorStdout {
		cosim.Mismatches = append(cosim.Mismatches,
			fmt.Sprintf("stdout: pipeline %q, emulator %q", result.Stdout, cosim.EmulatorStdout))
	}

	if err := Check(bench, c.RegFile(), c.Memory()); err != nil {
		cosim.Mismatches = append(cosim.Mismatches, err.Error())
	}

	return cosim, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== RV32 Pipeline Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Exit Code: %d\n", r.ExitCode)
		if r.Err != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Err)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Taken Branches:       %d\n", r.TakenBranches)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		_, _ = fmt.Fprintf(h.config.Output, "  Forwards EX/MEM:      %d\n", r.ForwardsEXMEM)
		_, _ = fmt.Fprintf(h.config.Output, "  Forwards MEM/WB:      %d\n", r.ForwardsMEMWB)

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:      %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses:    %d\n", r.DCacheMisses)
			_, _ = fmt.Fprintf(h.config.Output, "  Evictions: %d\n", r.DCacheEvictions)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,branches,flushes,fwd_exmem,fwd_memwb,dcache_hits,dcache_misses,dcache_evictions,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.TakenBranches,
			r.PipelineFlushes,
			r.ForwardsEXMEM,
			r.ForwardsMEMWB,
			r.DCacheHits,
			r.DCacheMisses,
			r.DCacheEvictions,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Cache is the data cache configuration used
	Cache cache.Config `json:"cache"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Cache:     h.config.Core.Cache,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// BuildProgram assembles instruction words into a byte slice.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 0, len(instrs)*4)
	for _, inst := range instrs {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, inst)
		program = append(program, buf...)
	}
	return program
}

// Exit returns the instruction words of the exit syscall.
func Exit() []uint32 {
	return []uint32{
		insts.Encode(insts.OpADDI, emu.RegA0, 0, 0, int32(emu.SyscallExit)),
		insts.EcallWord,
	}
}

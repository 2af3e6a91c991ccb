// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/timing/cache"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

// Config describes the machine a Core simulates.
type Config struct {
	// MemorySize is the size of the flat memory in bytes.
	MemorySize uint32 `json:"memory_size" yaml:"memory_size"`
	// Cache configures the data cache fed by the memory stage.
	Cache cache.Config `json:"cache" yaml:"cache"`
	// MaxCycles stops the simulation after this many cycles. 0 means no
	// limit.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`
}

// DefaultConfig returns a 1 MiB machine with the default data cache and no
// cycle limit.
func DefaultConfig() Config {
	return Config{
		MemorySize: emu.DefaultMemorySize,
		Cache:      cache.DefaultConfig(),
	}
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Branches is the number of taken branches and jumps.
	Branches uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// Cache holds data cache outcomes.
	Cache cache.Statistics
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a cycle-accurate CPU core model.
// It wraps a 5-stage pipeline and provides a simple interface for simulation.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core with the given register file and memory.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.PipelineOption) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// New builds a Core with its own register file, memory and data cache
// from config. Additional pipeline options are applied after the ones
// derived from config.
func New(config Config, opts ...pipeline.PipelineOption) (*Core, error) {
	if config.MemorySize == 0 {
		return nil, errors.New("memory size must be positive")
	}

	c, err := cache.New(config.Cache)
	if err != nil {
		return nil, errors.Wrap(err, "building data cache")
	}

	opts = append([]pipeline.PipelineOption{
		pipeline.WithCache(c),
		pipeline.WithMaxCycles(config.MaxCycles),
	}, opts...)

	return NewCore(&emu.RegFile{}, emu.NewMemoryOfSize(config.MemorySize), opts...), nil
}

// RegFile returns the architectural register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory returns the core's memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// LoadProgram copies program into memory at entry and points the pipeline
// at it.
func (c *Core) LoadProgram(entry uint32, program []byte) error {
	if err := c.memory.LoadProgram(entry, program); err != nil {
		return errors.Wrap(err, "loading program")
	}
	c.SetPC(entry)
	return nil
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() {
	c.Pipeline.Tick()
}

// Halted returns true if the core has halted (e.g., due to exit syscall).
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int64 {
	return c.Pipeline.ExitCode()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Branches:     pipeStats.Branches,
		Flushes:      pipeStats.Flushes,
		Cache:        pipeStats.Cache,
	}
}

// Run executes the core until it halts.
// Returns the exit code and the error that stopped the core, if any.
func (c *Core) Run() (int64, error) {
	return c.Pipeline.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}

// WriteReport prints the end-of-run summary.
func (c *Core) WriteReport(w io.Writer) error {
	s := c.Stats()
	_, err := fmt.Fprintf(w,
		"cycles: %d\ninstructions: %d\nCPI: %.3f\nstalls: %d\nbranches: %d\nflushes: %d\n"+
			"cache hits: %d\ncache misses: %d\ncache evictions: %d\n",
		s.Cycles, s.Instructions, s.CPI(), s.Stalls, s.Branches, s.Flushes,
		s.Cache.Hits, s.Cache.Misses, s.Cache.Evictions)
	return errors.Wrap(err, "writing report")
}

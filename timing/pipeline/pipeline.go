package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/timing/cache"
)

// ErrCycleLimit is returned when the cycle limit is reached before the
// program exits.
var ErrCycleLimit = errors.New("cycle limit reached")

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of load-use stall cycles.
	Stalls uint64
	// Branches is the number of taken branches and jumps.
	Branches uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// ForwardEXMEM counts instructions that received an operand from EX/MEM.
	ForwardEXMEM uint64
	// ForwardMEMWB counts instructions that received an operand from MEM/WB.
	ForwardMEMWB uint64
	// Cache holds the data cache outcomes of the memory stage.
	Cache cache.Statistics
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// AccessEvent describes one data memory access of the memory stage.
type AccessEvent struct {
	Cycle  uint64
	PC     uint32
	Addr   uint32
	Store  bool
	Result cache.AccessResult
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler emu.SyscallHandler) PipelineOption {
	return func(p *Pipeline) {
		p.syscallHandler = handler
	}
}

// WithStdout sets the writer of the default syscall handler.
func WithStdout(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// WithCache sets the data cache fed by the memory stage.
func WithCache(c *cache.Cache) PipelineOption {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithAccessHook registers a function called after every data access.
func WithAccessHook(hook func(AccessEvent)) PipelineOption {
	return func(p *Pipeline) {
		p.accessHook = hook
	}
}

// WithLogger sets the logger for cycle and cache tracing.
func WithLogger(logger *logrus.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMaxCycles stops the simulation with ErrCycleLimit after n cycles.
// A value of 0 means no limit.
func WithMaxCycles(n uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = n
	}
}

// WithRegisterTrace prints the register file to w after every cycle.
func WithRegisterTrace(w io.Writer) PipelineOption {
	return func(p *Pipeline) {
		p.registerTrace = w
	}
}

// Pipeline implements a 5-stage pipelined RV32 CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
type Pipeline struct {
	// Pipeline registers
	ifid  Latch[IFIDRegister]
	idex  Latch[IDEXRegister]
	exmem Latch[EXMEMRegister]
	memwb Latch[MEMWBRegister]

	wires Wires

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection
	hazardUnit *HazardUnit

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
	cache   *cache.Cache

	// Syscall handling
	syscallHandler emu.SyscallHandler
	stdout         io.Writer

	// Tracing
	logger        *logrus.Logger
	accessHook    func(AccessEvent)
	registerTrace io.Writer

	// Program counter of the next sequential fetch
	pc uint32

	stats     Statistics
	maxCycles uint64

	// Execution state
	halted   bool
	exitCode int64
	err      error
}

// NewPipeline creates a new 5-stage pipeline. Without WithCache the memory
// stage feeds a cache built from cache.DefaultConfig.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		regFile:    regFile,
		memory:     memory,
		hazardUnit: NewHazardUnit(),
		stdout:     os.Stdout,
		logger:     logrus.StandardLogger(),
		pc:         regFile.PC,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.cache == nil {
		p.cache = cache.MustNew(cache.DefaultConfig())
	}

	if p.syscallHandler == nil {
		p.syscallHandler = emu.NewDefaultSyscallHandler(regFile, memory, p.stdout)
	}

	p.fetchStage = NewFetchStage(memory)
	p.decodeStage = NewDecodeStage(regFile)
	p.executeStage = NewExecuteStage()
	p.memoryStage = NewMemoryStage(memory, p.cache)
	p.writebackStage = NewWritebackStage(regFile)

	p.clearLatches()

	return p
}

func (p *Pipeline) clearLatches() {
	p.ifid.Inp.Clear()
	p.ifid.Out.Clear()
	p.idex.Inp.Clear()
	p.idex.Out.Clear()
	p.exmem.Inp.Clear()
	p.exmem.Out.Clear()
	p.memwb.Inp.Clear()
	p.memwb.Out.Clear()
	p.wires = Wires{}
}

// PC returns the address of the next sequential fetch.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC sets the program counter.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.regFile.PC = pc
}

// GetIFID returns the IF/ID pipeline register pair.
func (p *Pipeline) GetIFID() *Latch[IFIDRegister] {
	return &p.ifid
}

// GetIDEX returns the ID/EX pipeline register pair.
func (p *Pipeline) GetIDEX() *Latch[IDEXRegister] {
	return &p.idex
}

// GetEXMEM returns the EX/MEM pipeline register pair.
func (p *Pipeline) GetEXMEM() *Latch[EXMEMRegister] {
	return &p.exmem
}

// GetMEMWB returns the MEM/WB pipeline register pair.
func (p *Pipeline) GetMEMWB() *Latch[MEMWBRegister] {
	return &p.memwb
}

// Wires returns the control signals of the last cycle.
func (p *Pipeline) Wires() Wires {
	return p.wires
}

// Cache returns the data cache model.
func (p *Pipeline) Cache() *cache.Cache {
	return p.cache
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Halted returns true if the pipeline has halted.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// ExitCode returns the exit code if the pipeline has halted.
func (p *Pipeline) ExitCode() int64 {
	return p.exitCode
}

// Err returns the error that halted the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// Run executes the pipeline until it halts.
// Returns the exit code and the error that stopped the simulation, if any.
func (p *Pipeline) Run() (int64, error) {
	for !p.halted {
		p.Tick()
	}
	return p.exitCode, p.err
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Tick executes one pipeline cycle.
//
// Hazard decisions are computed first from the output side of the latches.
// The stages then run in order IF, ID, EX, MEM, WB, each reading the
// output side of its input latch and writing the input side of its output
// latch. At the end of the cycle all latches advance together.
//
// Hazard handling:
//   - Data forwarding from EX/MEM and MEM/WB to the operands of execute
//   - Load-use stalls hold IF and ID for one cycle and send a bubble to EX
//   - A taken branch or jump in EX squashes the IF and ID outputs of the
//     cycle and redirects the next fetch (2-cycle penalty)
//
// The cycle ends by servicing an ecall or raising a trap that has reached
// MEM/WB, at which point every older instruction has committed.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	if p.maxCycles > 0 && p.stats.Cycles >= p.maxCycles {
		p.halt(-1, errors.Wrapf(ErrCycleLimit, "after %d cycles", p.stats.Cycles))
		return
	}

	p.stats.Cycles++

	hazards := p.hazardUnit.Detect(&p.ifid.Out, &p.idex.Out, &p.exmem.Out, &p.memwb.Out)
	p.wires.ForwardA = hazards.ForwardRs1
	p.wires.ForwardB = hazards.ForwardRs2
	p.wires.Stall = hazards.LoadUse
	p.wires.Flush = false

	p.fetch()
	p.decode()
	p.execute()
	p.memoryAccess()
	p.writeback()

	p.ifid.Advance()
	p.idex.Advance()
	p.exmem.Advance()
	p.memwb.Advance()

	p.logCycle()
	p.commit()
	p.traceRegisters()
}

func (p *Pipeline) fetch() {
	pc := p.pc
	if p.wires.PCSrc {
		pc = p.wires.PCSrc1
		p.wires.PCSrc = false
	}

	if p.wires.Stall {
		p.ifid.Inp = p.ifid.Out
		p.pc = pc
		p.stats.Stalls++
		return
	}

	p.ifid.Inp = p.fetchStage.Fetch(pc)
	p.wires.PCSrc0 = pc + 4
	p.pc = p.wires.PCSrc0
	p.regFile.PC = pc
}

func (p *Pipeline) decode() {
	if p.wires.Stall {
		p.idex.Inp.Clear()
		return
	}

	p.idex.Inp = p.decodeStage.Decode(p.ifid.Out, &p.memwb.Out)
}

func (p *Pipeline) execute() {
	idex := &p.idex.Out

	rs1 := p.hazardUnit.GetForwardedValue(
		p.wires.ForwardA, idex.Rs1Value, &p.exmem.Out, &p.memwb.Out)
	rs2 := p.hazardUnit.GetForwardedValue(
		p.wires.ForwardB, idex.Rs2Value, &p.exmem.Out, &p.memwb.Out)

	if p.wires.ForwardA == ForwardFromEXMEM || p.wires.ForwardB == ForwardFromEXMEM {
		p.stats.ForwardEXMEM++
	}
	if p.wires.ForwardA == ForwardFromMEMWB || p.wires.ForwardB == ForwardFromMEMWB {
		p.stats.ForwardMEMWB++
	}

	p.exmem.Inp = p.executeStage.Execute(*idex, rs1, rs2)

	if p.exmem.Inp.Valid && p.exmem.Inp.Trap == nil && p.exmem.Inp.BranchTaken {
		p.ifid.Inp.Clear()
		p.idex.Inp.Clear()

		p.wires.PCSrc = true
		p.wires.PCSrc1 = p.exmem.Inp.Target
		p.wires.Flush = true

		p.stats.Branches++
		p.stats.Flushes++
	}
}

func (p *Pipeline) memoryAccess() {
	result := p.memoryStage.Access(p.exmem.Out)
	p.memwb.Inp = result.MEMWBRegister

	if !result.Accessed || result.Cache == nil {
		return
	}

	p.stats.Cache.Record(*result.Cache)

	event := AccessEvent{
		Cycle:  p.stats.Cycles,
		PC:     result.PC,
		Addr:   result.ALUResult,
		Store:  result.MemWrite,
		Result: *result.Cache,
	}

	if p.logger.IsLevelEnabled(logrus.DebugLevel) {
		p.logger.WithFields(logrus.Fields{
			"cycle":        event.Cycle,
			"pc":           fmt.Sprintf("0x%08x", event.PC),
			"addr":         fmt.Sprintf("0x%08x", event.Addr),
			"status":       event.Result.Status.String(),
			"insert_block": fmt.Sprintf("0x%x", event.Result.InsertBlock),
			"victim_block": fmt.Sprintf("0x%x", event.Result.VictimBlock),
		}).Debug("Cache access")
	}

	if p.accessHook != nil {
		p.accessHook(event)
	}
}

func (p *Pipeline) writeback() {
	if p.writebackStage.Writeback(&p.memwb.Out) {
		p.stats.Instructions++
	}
}

// commit raises traps and services ecalls that have reached MEM/WB.
func (p *Pipeline) commit() {
	memwb := &p.memwb.Out
	if !memwb.Valid {
		return
	}

	if memwb.Trap != nil {
		p.logger.WithFields(logrus.Fields{
			"pc":   fmt.Sprintf("0x%08x", memwb.PC),
			"word": fmt.Sprintf("0x%08x", memwb.InstructionWord),
		}).Error(memwb.Trap)
		p.halt(-1, memwb.Trap)
		return
	}

	if !memwb.Inst.IsEcall() {
		return
	}

	result := p.syscallHandler.Handle()
	switch {
	case result.Err != nil:
		err := errors.Wrapf(result.Err, "pc 0x%08x", memwb.PC)
		p.logger.WithFields(logrus.Fields{
			"pc": fmt.Sprintf("0x%08x", memwb.PC),
			"a0": p.regFile.ReadReg(emu.RegA0),
		}).Error(err)
		p.halt(-1, err)
	case result.Exited:
		p.stats.Instructions++
		p.halt(result.ExitCode, nil)
	}
}

func (p *Pipeline) halt(exitCode int64, err error) {
	p.halted = true
	p.exitCode = exitCode
	p.err = err
}

func (p *Pipeline) logCycle() {
	if !p.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	p.logger.WithFields(logrus.Fields{
		"cycle": p.stats.Cycles,
		"pc":    fmt.Sprintf("0x%08x", p.ifid.Out.PC),
		"if":    fmt.Sprintf("0x%08x", p.ifid.Out.InstructionWord),
		"id":    p.idex.Out.Inst.Op.String(),
		"ex":    p.exmem.Out.Inst.Op.String(),
		"mem":   p.memwb.Out.Inst.Op.String(),
		"stall": p.wires.Stall,
		"flush": p.wires.Flush,
		"fwdA":  p.wires.ForwardA.String(),
		"fwdB":  p.wires.ForwardB.String(),
	}).Debug("Pipeline cycle")
}

func (p *Pipeline) traceRegisters() {
	if p.registerTrace == nil {
		return
	}

	_, _ = fmt.Fprintf(p.registerTrace, "cycle %d\n", p.stats.Cycles)
	for row := 0; row < 8; row++ {
		for col := 0; col < 4; col++ {
			reg := uint8(row*4 + col)
			_, _ = fmt.Fprintf(p.registerTrace, "x%-2d: 0x%08x  ", reg, p.regFile.ReadReg(reg))
		}
		_, _ = fmt.Fprintln(p.registerTrace)
	}
}

// Reset clears all pipeline registers, statistics and execution state. The
// register file and memory are left untouched.
func (p *Pipeline) Reset() {
	p.clearLatches()
	p.stats = Statistics{}
	p.halted = false
	p.exitCode = 0
	p.err = nil
	p.pc = p.regFile.PC
	p.cache.Reset()
}

package emu

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/insts"
)

// ErrInstructionLimit is returned when the instruction limit is reached.
var ErrInstructionLimit = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32 instructions one at a time without pipelining.
// It is the architectural reference the pipeline is checked against.
type Emulator struct {
	regFile        *RegFile
	memory         *Memory
	decoder        *insts.Decoder
	lsu            *LoadStoreUnit
	syscallHandler SyscallHandler

	stdout io.Writer

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) EmulatorOption {
	return func(e *Emulator) {
		e.syscallHandler = handler
	}
}

// WithMemory makes the emulator operate on an existing memory.
func WithMemory(memory *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new RV32 emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory()
	}

	e.lsu = NewLoadStoreUnit(e.memory)

	if e.syscallHandler == nil {
		e.syscallHandler = NewDefaultSyscallHandler(e.regFile, e.memory, e.stdout)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram copies program into memory at entry and sets the PC.
func (e *Emulator) LoadProgram(entry uint32, program []byte) error {
	if err := e.memory.LoadProgram(entry, program); err != nil {
		return err
	}
	e.regFile.PC = entry
	return nil
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrInstructionLimit}
	}

	pc := e.regFile.PC

	word, err := e.memory.Load(pc, AlignWord)
	if err != nil {
		return StepResult{Err: errors.Wrap(err, "fetch")}
	}

	inst, err := e.decoder.Decode(word)
	if err != nil {
		return StepResult{Err: errors.Wrapf(err, "pc 0x%08x", pc)}
	}

	result := e.execute(inst, pc)
	if result.Err == nil {
		e.instructionCount++
	}

	return result
}

// Run executes instructions until the program exits or an error occurs.
func (e *Emulator) Run() (int64, error) {
	for {
		result := e.Step()
		if result.Err != nil {
			return -1, result.Err
		}
		if result.Exited {
			return result.ExitCode, nil
		}
	}
}

func (e *Emulator) execute(inst *insts.Instruction, pc uint32) StepResult {
	if inst.IsEcall() {
		r := e.syscallHandler.Handle()
		if r.Err != nil {
			return StepResult{Err: errors.Wrapf(r.Err, "pc 0x%08x", pc)}
		}
		e.regFile.PC = pc + 4
		return StepResult{Exited: r.Exited, ExitCode: r.ExitCode}
	}

	rs1 := e.regFile.ReadReg(inst.Rs1())
	rs2 := e.regFile.ReadReg(inst.Rs2())

	a, b := ALUOperands(inst, pc, rs1, rs2)
	result := ExecuteALU(a, b, ALUOpFor(inst.Op))

	switch {
	case inst.IsLoad():
		value, err := e.lsu.Load(inst, result)
		if err != nil {
			return StepResult{Err: errors.Wrapf(err, "pc 0x%08x", pc)}
		}
		e.regFile.WriteReg(inst.Rd(), value)
	case inst.IsStore():
		if err := e.lsu.Store(inst, result, rs2); err != nil {
			return StepResult{Err: errors.Wrapf(err, "pc 0x%08x", pc)}
		}
	case inst.IsBranch():
	default:
		e.regFile.WriteReg(inst.Rd(), result)
	}

	next := pc + 4
	if taken, target := ControlTarget(inst, pc, rs1, rs2); taken {
		next = target
	}
	e.regFile.PC = next

	return StepResult{}
}

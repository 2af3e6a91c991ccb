// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// Latch is a double-buffered pipeline register. Inp is written by the
// producing stage during a cycle; Out is what the consuming stage reads.
type Latch[T any] struct {
	Inp T
	Out T
}

// Advance makes this cycle's input visible to the next stage.
func (l *Latch[T]) Advance() {
	l.Out = l.Inp
}

// Control holds the control signals derived from the opcode in decode.
type Control struct {
	RegWrite  bool // Writes rd
	MemRead   bool // Load
	MemWrite  bool // Store
	MemToReg  bool // Writeback value comes from memory
	Branch    bool // Conditional branch
	Jump      bool // jal or jalr
	ALUSrcImm bool // Second ALU operand is the immediate
	ALUOp     emu.ALUOp
}

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32

	// Trap is set if the fetch failed. It is raised when the instruction
	// commits.
	Trap error
}

// Clear resets the IF/ID register to a bubble.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{InstructionWord: insts.NopWord}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	IFIDRegister

	// Inst is the decoded instruction.
	Inst insts.Instruction

	// Control signals.
	Control

	// Register numbers for hazard detection. Registers a format does not
	// use are x0.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Register values read in decode.
	Rs1Value uint32
	Rs2Value uint32

	// Imm is the sign-extended immediate.
	Imm int32
}

// Clear resets the ID/EX register to a bubble.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{Inst: insts.Nop()}
	r.IFIDRegister.Clear()
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	IDEXRegister

	// ALUResult is the address for loads and stores, the link address for
	// jumps, and the result for everything else.
	ALUResult uint32

	// StoreValue is the (possibly forwarded) rs2 value for stores.
	StoreValue uint32

	// BranchTaken is set when a branch is taken or a jump executes.
	BranchTaken bool

	// Target is the control transfer target when BranchTaken is set.
	Target uint32
}

// Clear resets the EX/MEM register to a bubble.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
	r.IDEXRegister.Clear()
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	EXMEMRegister

	// MemData is the extended value read by a load.
	MemData uint32

	// Align is the access width of a load or store.
	Align emu.Alignment
}

// Clear resets the MEM/WB register to a bubble.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
	r.EXMEMRegister.Clear()
}

// WritebackValue returns the value destined for rd, after the mem-to-reg
// select.
func (r *MEMWBRegister) WritebackValue() uint32 {
	if r.MemToReg {
		return r.MemData
	}
	return r.ALUResult
}

// Commits reports whether the instruction will update architectural
// registers.
func (r *MEMWBRegister) Commits() bool {
	return r.Valid && r.Trap == nil && r.RegWrite && r.Rd != 0
}

// Wires holds the combinational signals of one cycle.
type Wires struct {
	// PCSrc selects PCSrc1 over PCSrc0 for the next fetch.
	PCSrc  bool
	PCSrc0 uint32 // Sequential PC + 4
	PCSrc1 uint32 // Taken branch or jump target

	ForwardA ForwardSource // rs1 operand of execute
	ForwardB ForwardSource // rs2 operand of execute

	Stall bool // Load-use stall this cycle
	Flush bool // Fetch and decode outputs squashed this cycle
}

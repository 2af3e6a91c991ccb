package pipeline

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/cache"
)

// controlTable maps major opcodes to control signals. The ALU operation is
// filled in per instruction.
var controlTable = map[uint8]Control{
	insts.OpcodeOp:     {RegWrite: true},
	insts.OpcodeOpImm:  {RegWrite: true, ALUSrcImm: true},
	insts.OpcodeLoad:   {RegWrite: true, MemRead: true, MemToReg: true, ALUSrcImm: true},
	insts.OpcodeStore:  {MemWrite: true, ALUSrcImm: true},
	insts.OpcodeBranch: {Branch: true},
	insts.OpcodeJAL:    {RegWrite: true, Jump: true},
	insts.OpcodeJALR:   {RegWrite: true, Jump: true, ALUSrcImm: true},
	insts.OpcodeLUI:    {RegWrite: true, ALUSrcImm: true},
	insts.OpcodeAUIPC:  {RegWrite: true, ALUSrcImm: true},
	insts.OpcodeSystem: {},
}

// ControlFor derives the control signals of a decoded instruction.
func ControlFor(inst *insts.Instruction) Control {
	c := controlTable[inst.Opcode]
	c.ALUOp = emu.ALUOpFor(inst.Op)
	return c
}

// FetchStage handles instruction fetch from memory.
type FetchStage struct {
	memory *emu.Memory
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory) *FetchStage {
	return &FetchStage{memory: memory}
}

// Fetch reads the instruction at the given PC.
func (s *FetchStage) Fetch(pc uint32) IFIDRegister {
	word, err := s.memory.Load(pc, emu.AlignWord)
	if err != nil {
		return IFIDRegister{
			Valid:           true,
			PC:              pc,
			InstructionWord: insts.NopWord,
			Trap:            errors.Wrapf(err, "fetch at pc 0x%08x", pc),
		}
	}

	return IFIDRegister{
		Valid:           true,
		PC:              pc,
		InstructionWord: word,
	}
}

// DecodeStage handles instruction decode and register read.
type DecodeStage struct {
	regFile *emu.RegFile
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(regFile *emu.RegFile) *DecodeStage {
	return &DecodeStage{
		regFile: regFile,
		decoder: insts.NewDecoder(),
	}
}

// Decode decodes the instruction and reads register values. A value being
// written back in the same cycle by wb is read through.
func (s *DecodeStage) Decode(ifid IFIDRegister, wb *MEMWBRegister) IDEXRegister {
	var result IDEXRegister
	result.Clear()

	if !ifid.Valid {
		return result
	}

	result.IFIDRegister = ifid
	if ifid.Trap != nil {
		return result
	}

	inst, err := s.decoder.Decode(ifid.InstructionWord)
	if err != nil {
		result.Trap = errors.Wrapf(err, "pc 0x%08x", ifid.PC)
		return result
	}

	result.Inst = *inst
	result.Control = ControlFor(inst)
	result.Rd = inst.Rd()
	result.Rs1 = inst.Rs1()
	result.Rs2 = inst.Rs2()
	result.Imm = inst.Imm()

	result.Rs1Value = s.readReg(result.Rs1, wb)
	result.Rs2Value = s.readReg(result.Rs2, wb)

	return result
}

func (s *DecodeStage) readReg(reg uint8, wb *MEMWBRegister) uint32 {
	if wb != nil && wb.Commits() && wb.Rd == reg {
		return wb.WritebackValue()
	}
	return s.regFile.ReadReg(reg)
}

// ExecuteStage handles ALU operations, address calculation and control
// transfer resolution.
type ExecuteStage struct{}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{}
}

// Execute computes the ALU result of idex using the forwarded operand
// values rs1 and rs2. Branch conditions are evaluated on the same values.
func (s *ExecuteStage) Execute(idex IDEXRegister, rs1, rs2 uint32) EXMEMRegister {
	var result EXMEMRegister
	result.Clear()

	if !idex.Valid {
		return result
	}

	result.IDEXRegister = idex
	if idex.Trap != nil {
		return result
	}

	inst := &result.Inst
	a, b := emu.ALUOperands(inst, idex.PC, rs1, rs2)
	result.ALUResult = emu.ExecuteALU(a, b, idex.ALUOp)
	result.StoreValue = rs2

	if idex.Branch || idex.Jump {
		result.BranchTaken, result.Target = emu.ControlTarget(inst, idex.PC, rs1, rs2)
	}

	return result
}

// MemoryStage handles loads and stores and feeds the cache model.
type MemoryStage struct {
	lsu   *emu.LoadStoreUnit
	cache *cache.Cache
}

// NewMemoryStage creates a new memory stage. c may be nil to disable cache
// modeling.
func NewMemoryStage(memory *emu.Memory, c *cache.Cache) *MemoryStage {
	return &MemoryStage{
		lsu:   emu.NewLoadStoreUnit(memory),
		cache: c,
	}
}

// MemoryResult holds the result of the memory stage.
type MemoryResult struct {
	MEMWBRegister

	// Accessed is true if the instruction touched data memory.
	Accessed bool

	// Cache is the cache outcome when Accessed is true and a cache is
	// configured.
	Cache *cache.AccessResult
}

// Access performs the data memory access of exmem, if any.
func (s *MemoryStage) Access(exmem EXMEMRegister) MemoryResult {
	var result MemoryResult
	result.Clear()

	if !exmem.Valid {
		return result
	}

	result.EXMEMRegister = exmem
	if exmem.Trap != nil || (!exmem.MemRead && !exmem.MemWrite) {
		return result
	}

	inst := &exmem.Inst
	addr := exmem.ALUResult
	result.Align = emu.AlignmentFor(inst.Funct3())

	var err error
	if exmem.MemRead {
		result.MemData, err = s.lsu.Load(inst, addr)
	} else {
		err = s.lsu.Store(inst, addr, exmem.StoreValue)
	}
	if err != nil {
		result.Trap = errors.Wrapf(err, "pc 0x%08x", exmem.PC)
		return result
	}

	result.Accessed = true
	if s.cache != nil {
		r := s.cache.Access(uint64(addr))
		result.Cache = &r
	}

	return result
}

// WritebackStage handles register file writeback.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits memwb to the register file. It returns true if a valid
// instruction retired.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) bool {
	if !memwb.Valid || memwb.Trap != nil {
		return false
	}

	if memwb.Commits() {
		s.regFile.WriteReg(memwb.Rd, memwb.WritebackValue())
	}

	return true
}

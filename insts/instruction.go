package insts

// Op represents a resolved RV32 operation.
type Op uint8

// RV32 operations supported by the simulator.
const (
	OpUnknown Op = iota

	// R-type
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// I-type arithmetic
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	// Loads
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	// Stores
	OpSB
	OpSH
	OpSW

	// Branches
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// Jumps and upper immediates
	OpJAL
	OpJALR
	OpLUI
	OpAUIPC

	// System
	OpECALL

	numOps
)

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if o >= numOps {
		return "unknown"
	}
	return encodings[o].name
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // Register-register
	FormatI              // Immediate, loads, jalr, ecall
	FormatS              // Store
	FormatSB             // Conditional branch
	FormatU              // Upper immediate
	FormatUJ             // Jump
)

var formatNames = [...]string{"?", "R", "I", "S", "SB", "U", "UJ"}

func (f Format) String() string {
	if int(f) >= len(formatNames) {
		return "?"
	}
	return formatNames[f]
}

// Major opcodes, bits [6:0] of the instruction word.
const (
	OpcodeLoad   uint8 = 0x03
	OpcodeOpImm  uint8 = 0x13
	OpcodeAUIPC  uint8 = 0x17
	OpcodeStore  uint8 = 0x23
	OpcodeOp     uint8 = 0x33
	OpcodeLUI    uint8 = 0x37
	OpcodeBranch uint8 = 0x63
	OpcodeJALR   uint8 = 0x67
	OpcodeJAL    uint8 = 0x6F
	OpcodeSystem uint8 = 0x73
)

// NopWord is the canonical no-op, addi x0, x0, 0.
const NopWord uint32 = 0x00000013

// EcallWord is the only accepted encoding of ecall.
const EcallWord uint32 = 0x00000073

// RType holds the fields of a register-register instruction.
type RType struct {
	Rd     uint8
	Funct3 uint8
	Rs1    uint8
	Rs2    uint8
	Funct7 uint8
}

// IType holds the fields of an immediate instruction. Imm is the raw
// 12-bit field, not sign-extended.
type IType struct {
	Rd     uint8
	Funct3 uint8
	Rs1    uint8
	Imm    uint16
}

// SType holds the fields of a store. The offset is split into Imm5
// (imm[4:0]) and Imm7 (imm[11:5]).
type SType struct {
	Imm5   uint8
	Funct3 uint8
	Rs1    uint8
	Rs2    uint8
	Imm7   uint8
}

// SBType holds the fields of a conditional branch. Imm5 carries
// imm[4:1|11] and Imm7 carries imm[12|10:5].
type SBType struct {
	Imm5   uint8
	Funct3 uint8
	Rs1    uint8
	Rs2    uint8
	Imm7   uint8
}

// UType holds the fields of lui/auipc. Imm is bits [31:12] of the word.
type UType struct {
	Rd  uint8
	Imm uint32
}

// UJType holds the fields of jal. Imm is bits [31:12] of the word in
// encoded order: imm[20|10:1|11|19:12].
type UJType struct {
	Rd  uint8
	Imm uint32
}

// Instruction is a decoded RV32 instruction. Exactly one of the format
// records is populated, selected by Format.
type Instruction struct {
	Word   uint32 // Raw instruction bits
	Opcode uint8  // Bits [6:0]
	Format Format // Selects the populated record
	Op     Op     // Resolved operation

	R  RType
	I  IType
	S  SType
	SB SBType
	U  UType
	UJ UJType
}

// Nop returns the decoded canonical no-op.
func Nop() Instruction {
	return Instruction{
		Word:   NopWord,
		Opcode: OpcodeOpImm,
		Format: FormatI,
		Op:     OpADDI,
	}
}

// Rd returns the destination register, or 0 for formats without one.
func (i *Instruction) Rd() uint8 {
	switch i.Format {
	case FormatR:
		return i.R.Rd
	case FormatI:
		return i.I.Rd
	case FormatU:
		return i.U.Rd
	case FormatUJ:
		return i.UJ.Rd
	}
	return 0
}

// Rs1 returns the first source register, or 0 if the format reads none.
func (i *Instruction) Rs1() uint8 {
	switch i.Format {
	case FormatR:
		return i.R.Rs1
	case FormatI:
		return i.I.Rs1
	case FormatS:
		return i.S.Rs1
	case FormatSB:
		return i.SB.Rs1
	}
	return 0
}

// Rs2 returns the second source register, or 0 if the format reads none.
func (i *Instruction) Rs2() uint8 {
	switch i.Format {
	case FormatR:
		return i.R.Rs2
	case FormatS:
		return i.S.Rs2
	case FormatSB:
		return i.SB.Rs2
	}
	return 0
}

// Funct3 returns the funct3 field, or 0 for U and UJ formats.
func (i *Instruction) Funct3() uint8 {
	switch i.Format {
	case FormatR:
		return i.R.Funct3
	case FormatI:
		return i.I.Funct3
	case FormatS:
		return i.S.Funct3
	case FormatSB:
		return i.SB.Funct3
	}
	return 0
}

// Imm returns the sign-extended immediate of the instruction. Shift
// immediates return the 5-bit shift amount. U-type immediates are returned
// already shifted into bits [31:12].
func (i *Instruction) Imm() int32 {
	switch i.Format {
	case FormatI:
		if i.Op == OpSLLI || i.Op == OpSRLI || i.Op == OpSRAI {
			return int32(i.I.Imm & 0x1F)
		}
		return SignExtend(uint32(i.I.Imm), 12)
	case FormatS:
		return StoreOffset(i.S)
	case FormatSB:
		return BranchOffset(i.SB)
	case FormatU:
		return int32(i.U.Imm << 12)
	case FormatUJ:
		return JumpOffset(i.UJ)
	}
	return 0
}

// IsLoad reports whether the instruction reads data memory.
func (i *Instruction) IsLoad() bool { return i.Opcode == OpcodeLoad }

// IsStore reports whether the instruction writes data memory.
func (i *Instruction) IsStore() bool { return i.Opcode == OpcodeStore }

// IsBranch reports whether the instruction is a conditional branch.
func (i *Instruction) IsBranch() bool { return i.Opcode == OpcodeBranch }

// IsJump reports whether the instruction is jal or jalr.
func (i *Instruction) IsJump() bool {
	return i.Opcode == OpcodeJAL || i.Opcode == OpcodeJALR
}

// IsEcall reports whether the instruction is ecall.
func (i *Instruction) IsEcall() bool { return i.Op == OpECALL }

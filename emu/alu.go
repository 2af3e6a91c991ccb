package emu

import "github.com/sarchlab/rv32sim/insts"

// ALUErrorValue is returned by division and remainder by zero.
const ALUErrorValue uint32 = 0xBADCAFFE

// ALUOp selects the operation computed by ExecuteALU.
type ALUOp uint8

// ALU operations.
const (
	ALUAdd ALUOp = iota
	ALUSub
	ALUAnd
	ALUOr
	ALUXor
	ALUSll
	ALUSrl
	ALUSra
	ALUSlt
	ALUSltu
	ALUMul
	ALUMulh
	ALUMulhsu
	ALUMulhu
	ALUDiv
	ALUDivu
	ALURem
	ALURemu
)

var aluOpNames = [...]string{
	"add", "sub", "and", "or", "xor", "sll", "srl", "sra", "slt", "sltu",
	"mul", "mulh", "mulhsu", "mulhu", "div", "divu", "rem", "remu",
}

func (op ALUOp) String() string {
	if int(op) >= len(aluOpNames) {
		return "invalid"
	}
	return aluOpNames[op]
}

// ExecuteALU computes a 32-bit result from two operands. Shift amounts use
// the low 5 bits of b. Division and remainder by zero yield ALUErrorValue.
func ExecuteALU(a, b uint32, op ALUOp) uint32 {
	sa, sb := int32(a), int32(b)

	switch op {
	case ALUAdd:
		return a + b
	case ALUSub:
		return uint32(sa - sb)
	case ALUAnd:
		return a & b
	case ALUOr:
		return a | b
	case ALUXor:
		return a ^ b
	case ALUSll:
		return a << (b & 0x1F)
	case ALUSrl:
		return a >> (b & 0x1F)
	case ALUSra:
		return uint32(sa >> (b & 0x1F))
	case ALUSlt:
		if sa < sb {
			return 1
		}
		return 0
	case ALUSltu:
		if a < b {
			return 1
		}
		return 0
	case ALUMul:
		return uint32(sa * sb)
	case ALUMulh:
		return uint32((int64(sa) * int64(sb)) >> 32)
	case ALUMulhsu:
		return uint32((int64(sa) * int64(b)) >> 32)
	case ALUMulhu:
		return uint32((uint64(a) * uint64(b)) >> 32)
	case ALUDiv:
		if b == 0 {
			return ALUErrorValue
		}
		return uint32(sa / sb)
	case ALUDivu:
		if b == 0 {
			return ALUErrorValue
		}
		return a / b
	case ALURem:
		if b == 0 {
			return ALUErrorValue
		}
		return uint32(sa % sb)
	case ALURemu:
		if b == 0 {
			return ALUErrorValue
		}
		return a % b
	}

	return ALUErrorValue
}

// ALUOpFor maps an instruction to the ALU operation its execute stage
// performs. Loads, stores, jumps and upper-immediate instructions use
// addition for address or result computation. Branches use subtraction.
func ALUOpFor(op insts.Op) ALUOp {
	switch op {
	case insts.OpSUB, insts.OpBEQ, insts.OpBNE, insts.OpBLT,
		insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		return ALUSub
	case insts.OpAND, insts.OpANDI:
		return ALUAnd
	case insts.OpOR, insts.OpORI:
		return ALUOr
	case insts.OpXOR, insts.OpXORI:
		return ALUXor
	case insts.OpSLL, insts.OpSLLI:
		return ALUSll
	case insts.OpSRL, insts.OpSRLI:
		return ALUSrl
	case insts.OpSRA, insts.OpSRAI:
		return ALUSra
	case insts.OpSLT, insts.OpSLTI:
		return ALUSlt
	case insts.OpSLTU, insts.OpSLTIU:
		return ALUSltu
	case insts.OpMUL:
		return ALUMul
	case insts.OpMULH:
		return ALUMulh
	case insts.OpMULHSU:
		return ALUMulhsu
	case insts.OpMULHU:
		return ALUMulhu
	case insts.OpDIV:
		return ALUDiv
	case insts.OpDIVU:
		return ALUDivu
	case insts.OpREM:
		return ALURem
	case insts.OpREMU:
		return ALURemu
	}
	return ALUAdd
}

// ALUOperands returns the two ALU inputs for inst given its source register
// values. Immediate forms replace rs2 with the immediate. auipc adds to the
// PC and lui adds to zero.
func ALUOperands(inst *insts.Instruction, pc, rs1, rs2 uint32) (uint32, uint32) {
	switch inst.Format {
	case insts.FormatR, insts.FormatSB:
		return rs1, rs2
	case insts.FormatU:
		if inst.Op == insts.OpAUIPC {
			return pc, uint32(inst.Imm())
		}
		return 0, uint32(inst.Imm())
	case insts.FormatUJ:
		return pc, 4
	}

	if inst.Op == insts.OpJALR {
		return pc, 4
	}

	return rs1, uint32(inst.Imm())
}

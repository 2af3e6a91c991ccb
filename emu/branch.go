package emu

import "github.com/sarchlab/rv32sim/insts"

// BranchTaken evaluates the condition of a conditional branch on operand
// values. It returns false for non-branch operations.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	}
	return false
}

// ControlTarget returns whether inst transfers control and, if so, the
// target address. rs1 is the value of the first source register, used by
// jalr and by branch conditions together with rs2.
func ControlTarget(inst *insts.Instruction, pc, rs1, rs2 uint32) (bool, uint32) {
	switch {
	case inst.IsBranch():
		if !BranchTaken(inst.Op, rs1, rs2) {
			return false, 0
		}
		return true, pc + uint32(inst.Imm())
	case inst.Op == insts.OpJAL:
		return true, pc + uint32(inst.Imm())
	case inst.Op == insts.OpJALR:
		return true, (rs1 + uint32(inst.Imm())) &^ 1
	}
	return false, 0
}

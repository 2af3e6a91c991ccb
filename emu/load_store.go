package emu

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/insts"
)

// LoadStoreUnit implements RV32 load and store operations.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Load reads the value loaded by inst from addr, extended to 32 bits.
func (lsu *LoadStoreUnit) Load(inst *insts.Instruction, addr uint32) (uint32, error) {
	raw, err := lsu.memory.Load(addr, AlignmentFor(inst.Funct3()))
	if err != nil {
		return 0, errors.Wrapf(err, "%s", inst.Op)
	}
	return ExtendLoad(inst.Op, raw), nil
}

// Store writes value to addr with the width of inst.
func (lsu *LoadStoreUnit) Store(inst *insts.Instruction, addr, value uint32) error {
	err := lsu.memory.Store(addr, AlignmentFor(inst.Funct3()), value)
	if err != nil {
		return errors.Wrapf(err, "%s", inst.Op)
	}
	return nil
}

// ExtendLoad sign-extends lb/lh results and zero-extends the others.
func ExtendLoad(op insts.Op, raw uint32) uint32 {
	switch op {
	case insts.OpLB:
		return uint32(insts.SignExtend(raw&0xFF, 8))
	case insts.OpLH:
		return uint32(insts.SignExtend(raw&0xFFFF, 16))
	case insts.OpLBU:
		return raw & 0xFF
	case insts.OpLHU:
		return raw & 0xFFFF
	}
	return raw
}

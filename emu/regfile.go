// Package emu provides functional RV32 emulation.
package emu

// ABI register numbers used by the ecall convention.
const (
	RegA0 uint8 = 10 // Syscall selector
	RegA1 uint8 = 11 // Syscall argument
)

// RegFile represents the RV32 register file.
// It contains 32 general-purpose registers (x0-x31) and the program
// counter (PC).
type RegFile struct {
	// X holds general-purpose registers x0-x31.
	// X[0] is hard-wired to zero.
	X [32]uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads a register value. Register 0 and out-of-range indices
// return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to x0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}

// Reset clears all registers and the PC.
func (r *RegFile) Reset() {
	*r = RegFile{}
}

package emu

import (
	"github.com/pkg/errors"
)

// DefaultMemorySize is the size of the flat memory array in bytes.
const DefaultMemorySize = 1 << 20

// ErrAddressOutOfRange is returned for accesses outside the memory array.
var ErrAddressOutOfRange = errors.New("address out of range")

// Alignment is the width of a memory access in bytes.
type Alignment uint8

// Access widths.
const (
	AlignByte Alignment = 1
	AlignHalf Alignment = 2
	AlignWord Alignment = 4
)

// AlignmentFor derives the access width from a load or store funct3.
func AlignmentFor(funct3 uint8) Alignment {
	switch funct3 & 0x3 {
	case 0x0:
		return AlignByte
	case 0x1:
		return AlignHalf
	}
	return AlignWord
}

// Memory is a flat, byte-addressable, little-endian memory of fixed size.
// Unaligned multi-byte accesses are allowed.
type Memory struct {
	data []byte
}

// NewMemory creates a memory of DefaultMemorySize bytes.
func NewMemory() *Memory {
	return NewMemoryOfSize(DefaultMemorySize)
}

// NewMemoryOfSize creates a zero-filled memory of the given size in bytes.
func NewMemoryOfSize(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

func (m *Memory) check(addr uint32, n uint32) error {
	if uint64(addr)+uint64(n) > uint64(len(m.data)) {
		return errors.Wrapf(ErrAddressOutOfRange,
			"access of %d bytes at 0x%08x (size 0x%x)", n, addr, len(m.data))
	}
	return nil
}

// Load reads align bytes starting at addr and assembles them little-endian.
func (m *Memory) Load(addr uint32, align Alignment) (uint32, error) {
	if err := m.check(addr, uint32(align)); err != nil {
		return 0, err
	}

	var value uint32
	for i := uint32(0); i < uint32(align); i++ {
		value |= uint32(m.data[addr+i]) << (8 * i)
	}

	return value, nil
}

// Store writes the low align bytes of value starting at addr, little-endian.
func (m *Memory) Store(addr uint32, align Alignment, value uint32) error {
	if err := m.check(addr, uint32(align)); err != nil {
		return err
	}

	for i := uint32(0); i < uint32(align); i++ {
		m.data[addr+i] = byte(value >> (8 * i))
	}

	return nil
}

// Read8 reads a byte. Out-of-range reads return 0.
func (m *Memory) Read8(addr uint32) uint8 {
	if addr >= uint32(len(m.data)) {
		return 0
	}
	return m.data[addr]
}

// Read32 reads a little-endian word. Out-of-range reads return 0.
func (m *Memory) Read32(addr uint32) uint32 {
	v, _ := m.Load(addr, AlignWord)
	return v
}

// LoadProgram copies program into memory starting at addr.
func (m *Memory) LoadProgram(addr uint32, program []byte) error {
	if err := m.check(addr, uint32(len(program))); err != nil {
		return errors.Wrap(err, "load program")
	}
	copy(m.data[addr:], program)
	return nil
}

// WriteWords stores consecutive little-endian words starting at addr.
func (m *Memory) WriteWords(addr uint32, words []uint32) error {
	for i, w := range words {
		if err := m.Store(addr+uint32(4*i), AlignWord, w); err != nil {
			return errors.Wrap(err, "write words")
		}
	}
	return nil
}

// ReadString reads bytes starting at addr up to a NUL byte or the end of
// memory.
func (m *Memory) ReadString(addr uint32) string {
	end := addr
	for end < uint32(len(m.data)) && m.data[end] != 0 {
		end++
	}
	if addr >= end {
		return ""
	}
	return string(m.data[addr:end])
}

// Package loader provides program loading for RV32 executables and parsing
// of memory access traces.
package loader

import (
	"debug/elf"
	"io"

	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/emu"
)

// ErrUnsupportedBinary is returned for ELF files that are not 32-bit
// little-endian RISC-V executables.
var ErrUnsupportedBinary = errors.New("unsupported binary")

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment of a program.
type Segment struct {
	// VirtAddr is the address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments.
	Segments []Segment
}

// Load parses an RV32 ELF binary and returns a Program ready for loading
// into memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening ELF file")
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, errors.Wrap(ErrUnsupportedBinary, "not a 32-bit ELF file")
	}

	if f.Data != elf.ELFDATA2LSB {
		return nil, errors.Wrap(ErrUnsupportedBinary, "not a little-endian ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, errors.Wrapf(ErrUnsupportedBinary,
			"not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: uint32(f.Entry)}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, errors.Wrapf(err, "reading segment at 0x%x", phdr.Vaddr)
			}
			if uint64(n) != phdr.Filesz {
				return nil, errors.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadInto copies every segment into memory. The part of a segment beyond
// its file data is zero-filled.
func (p *Program) LoadInto(memory *emu.Memory) error {
	for _, seg := range p.Segments {
		image := seg.Data
		if seg.MemSize > uint32(len(seg.Data)) {
			image = make([]byte, seg.MemSize)
			copy(image, seg.Data)
		}

		if err := memory.LoadProgram(seg.VirtAddr, image); err != nil {
			return errors.Wrapf(err, "segment at 0x%08x", seg.VirtAddr)
		}
	}
	return nil
}

// Size returns the number of bytes the program occupies in memory.
func (p *Program) Size() uint32 {
	var size uint32
	for _, seg := range p.Segments {
		if seg.MemSize > uint32(len(seg.Data)) {
			size += seg.MemSize
		} else {
			size += uint32(len(seg.Data))
		}
	}
	return size
}

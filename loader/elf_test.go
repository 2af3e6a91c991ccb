package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/loader"
)

const (
	machineRISCV = 243
	machineARM   = 40
)

type testSegment struct {
	addr    uint32
	data    []byte
	memSize uint32
	flags   uint32
}

// writeELF32 writes a minimal little-endian ELF32 executable with one
// PT_LOAD program header per segment and no section headers.
func writeELF32(path string, machine uint16, entry uint32, segs ...testSegment) {
	const ehsize, phentsize = 52, 32

	header := make([]byte, ehsize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1 // ELFCLASS32
	header[5] = 1 // little endian
	header[6] = 1 // version
	binary.LittleEndian.PutUint16(header[16:18], 2) // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], entry)
	binary.LittleEndian.PutUint32(header[28:32], ehsize)
	binary.LittleEndian.PutUint16(header[40:42], ehsize)
	binary.LittleEndian.PutUint16(header[42:44], phentsize)
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[46:48], 40)

	offset := uint32(ehsize + phentsize*len(segs))
	var progHeaders, contents []byte
	for _, seg := range segs {
		ph := make([]byte, phentsize)
		binary.LittleEndian.PutUint32(ph[0:4], 1) // PT_LOAD
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], seg.addr)
		binary.LittleEndian.PutUint32(ph[12:16], seg.addr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(seg.data)))
		binary.LittleEndian.PutUint32(ph[20:24], seg.memSize)
		binary.LittleEndian.PutUint32(ph[24:28], seg.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 4)

		progHeaders = append(progHeaders, ph...)
		contents = append(contents, seg.data...)
		offset += uint32(len(seg.data))
	}

	image := append(append(header, progHeaders...), contents...)
	Expect(os.WriteFile(path, image, 0o644)).To(Succeed())
}

func wordBytes(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	Describe("Load", func() {
		Context("with a valid RV32 ELF binary", func() {
			var (
				elfPath string
				code    []byte
			)

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				code = wordBytes(
					insts.Encode(insts.OpADDI, 10, 0, 0, 10),
					insts.EcallWord,
				)
				writeELF32(elfPath, machineRISCV, 0x104, testSegment{
					addr: 0x100, data: code, memSize: uint32(len(code)), flags: 0x5,
				})
			})

			It("should extract the entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x104)))
			})

			It("should read segment contents and flags", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint32(0x100)))
				Expect(seg.Data).To(Equal(code))
				Expect(seg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagRead).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagWrite).To(BeZero())
			})

			It("should copy segments into memory", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				memory := emu.NewMemory()
				Expect(prog.LoadInto(memory)).To(Succeed())
				Expect(memory.Read32(0x104)).To(Equal(insts.EcallWord))
			})
		})

		It("should zero-fill BSS", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			data := []byte{1, 2, 3, 4}
			writeELF32(elfPath, machineRISCV, 0,
				testSegment{addr: 0, data: wordBytes(insts.EcallWord), memSize: 4, flags: 0x5},
				testSegment{addr: 0x200, data: data, memSize: 16, flags: 0x6},
			)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Size()).To(Equal(uint32(20)))

			memory := emu.NewMemory()
			Expect(memory.Store(0x208, emu.AlignWord, 0xFFFFFFFF)).To(Succeed())
			Expect(prog.LoadInto(memory)).To(Succeed())

			Expect(memory.Read32(0x200)).To(Equal(uint32(0x04030201)))
			Expect(memory.Read32(0x208)).To(Equal(uint32(0)))
			Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})

		It("should reject a non-RISC-V ELF", func() {
			elfPath := filepath.Join(tempDir, "arm.elf")
			writeELF32(elfPath, machineARM, 0)

			_, err := loader.Load(elfPath)
			Expect(err).To(MatchError(loader.ErrUnsupportedBinary))
		})

		It("should reject a file that is not ELF", func() {
			path := filepath.Join(tempDir, "notelf")
			Expect(os.WriteFile(path, []byte("hello"), 0o644)).To(Succeed())

			_, err := loader.Load(path)
			Expect(err).To(HaveOccurred())
		})

		It("should fail for a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.elf"))
			Expect(err).To(HaveOccurred())
		})

		It("should fail to load a segment beyond memory", func() {
			elfPath := filepath.Join(tempDir, "high.elf")
			writeELF32(elfPath, machineRISCV, 0, testSegment{
				addr: 0x10000, data: wordBytes(insts.EcallWord), memSize: 4, flags: 0x5,
			})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.LoadInto(emu.NewMemoryOfSize(0x1000))).To(MatchError(emu.ErrAddressOutOfRange))
		})
	})
})

package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/sarchlab/rv32sim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("I-format", func() {
		It("should decode addi x5, x1, 10", func() {
			inst, err := decoder.Decode(0x00A08293)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpADDI))
			Expect(inst.Format).To(Equal(insts.FormatI))
			Expect(inst.Rd()).To(Equal(uint8(5)))
			Expect(inst.Rs1()).To(Equal(uint8(1)))
			Expect(inst.Rs2()).To(Equal(uint8(0)))
			Expect(inst.Imm()).To(Equal(int32(10)))
		})

		It("should sign-extend negative immediates", func() {
			inst, err := decoder.Decode(insts.Encode(insts.OpADDI, 1, 2, 0, -1))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.I.Imm).To(Equal(uint16(0xFFF)))
			Expect(inst.Imm()).To(Equal(int32(-1)))
		})

		It("should decode shift immediates by funct7", func() {
			inst, err := decoder.Decode(insts.Encode(insts.OpSRAI, 1, 2, 0, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSRAI))
			Expect(inst.Imm()).To(Equal(int32(3)))

			inst, err = decoder.Decode(insts.Encode(insts.OpSRLI, 1, 2, 0, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpSRLI))
		})

		It("should decode the canonical nop", func() {
			inst, err := decoder.Decode(insts.NopWord)
			Expect(err).NotTo(HaveOccurred())
			Expect(*inst).To(Equal(insts.Nop()))
		})

		It("should decode ecall", func() {
			inst, err := decoder.Decode(insts.EcallWord)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.IsEcall()).To(BeTrue())
			Expect(inst.Rd()).To(Equal(uint8(0)))
		})
	})

	Describe("S-format", func() {
		It("should decode sw x5, 8(x2)", func() {
			inst, err := decoder.Decode(0x00512423)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op).To(Equal(insts.OpSW))
			Expect(inst.IsStore()).To(BeTrue())
			Expect(inst.Rs1()).To(Equal(uint8(2)))
			Expect(inst.Rs2()).To(Equal(uint8(5)))
			Expect(inst.Rd()).To(Equal(uint8(0)))
			Expect(inst.Imm()).To(Equal(int32(8)))
		})

		DescribeTable("store offsets survive encode and decode",
			func(offset int32) {
				inst, err := decoder.Decode(insts.Encode(insts.OpSB, 0, 3, 4, offset))
				Expect(err).NotTo(HaveOccurred())
				Expect(inst.Imm()).To(Equal(offset))
			},
			Entry("zero", int32(0)),
			Entry("max", int32(2047)),
			Entry("min", int32(-2048)),
			Entry("minus one", int32(-1)),
			Entry("split boundary", int32(32)),
		)
	})

	Describe("SB-format", func() {
		DescribeTable("branch offsets survive encode and decode",
			func(op insts.Op, offset int32) {
				inst, err := decoder.Decode(insts.Encode(op, 0, 1, 2, offset))
				Expect(err).NotTo(HaveOccurred())
				Expect(inst.Op).To(Equal(op))
				Expect(inst.IsBranch()).To(BeTrue())
				Expect(inst.Imm()).To(Equal(offset))
			},
			Entry("beq forward", insts.OpBEQ, int32(8)),
			Entry("bne backward", insts.OpBNE, int32(-8)),
			Entry("blt max", insts.OpBLT, int32(4094)),
			Entry("bge min", insts.OpBGE, int32(-4096)),
			Entry("bltu bit 11", insts.OpBLTU, int32(2048)),
			Entry("bgeu low bits", insts.OpBGEU, int32(30)),
		)

		It("should place imm[4:1] in bits 11:8", func() {
			word := insts.Encode(insts.OpBEQ, 0, 0, 0, 0x1E)
			Expect((word >> 8) & 0xF).To(Equal(uint32(0xF)))
			Expect((word >> 7) & 0x1).To(Equal(uint32(0)))
		})
	})

	Describe("U-format", func() {
		It("should decode lui", func() {
			word := insts.Encode(insts.OpLUI, 1, 0, 0, 0x12345)
			Expect(word).To(Equal(uint32(0x123450B7)))

			inst, err := decoder.Decode(word)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpLUI))
			Expect(inst.Rd()).To(Equal(uint8(1)))
			Expect(inst.Rs1()).To(Equal(uint8(0)))
			Expect(inst.Imm()).To(Equal(int32(0x12345000)))
		})

		It("should decode auipc", func() {
			inst, err := decoder.Decode(insts.Encode(insts.OpAUIPC, 3, 0, 0, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpAUIPC))
			Expect(inst.Imm()).To(Equal(int32(0x1000)))
		})
	})

	Describe("UJ-format", func() {
		It("should decode jal x1, 8", func() {
			inst, err := decoder.Decode(0x008000EF)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op).To(Equal(insts.OpJAL))
			Expect(inst.IsJump()).To(BeTrue())
			Expect(inst.Rd()).To(Equal(uint8(1)))
			Expect(inst.Imm()).To(Equal(int32(8)))
		})

		DescribeTable("jump offsets survive encode and decode",
			func(offset int32) {
				inst, err := decoder.Decode(insts.Encode(insts.OpJAL, 1, 0, 0, offset))
				Expect(err).NotTo(HaveOccurred())
				Expect(inst.Imm()).To(Equal(offset))
			},
			Entry("small backward", int32(-4)),
			Entry("bit 11", int32(2048)),
			Entry("bit 12", int32(4096)),
			Entry("max", int32(1<<20-2)),
			Entry("min", int32(-(1 << 20))),
			Entry("mixed", int32(0x5A5A4)),
		)
	})

	Describe("R-format", func() {
		DescribeTable("should resolve the operation from funct3 and funct7",
			func(op insts.Op) {
				inst, err := decoder.Decode(insts.Encode(op, 7, 8, 9, 0))
				Expect(err).NotTo(HaveOccurred())
				Expect(inst.Op).To(Equal(op))
				Expect(inst.Rd()).To(Equal(uint8(7)))
				Expect(inst.Rs1()).To(Equal(uint8(8)))
				Expect(inst.Rs2()).To(Equal(uint8(9)))
			},
			Entry("add", insts.OpADD),
			Entry("sub", insts.OpSUB),
			Entry("sra", insts.OpSRA),
			Entry("mul", insts.OpMUL),
			Entry("mulhsu", insts.OpMULHSU),
			Entry("divu", insts.OpDIVU),
			Entry("remu", insts.OpREMU),
		)
	})

	Describe("illegal words", func() {
		DescribeTable("should reject",
			func(word uint32) {
				inst, err := decoder.Decode(word)
				Expect(inst).To(BeNil())
				Expect(errors.Cause(err)).To(Equal(insts.ErrIllegalInstruction))
			},
			Entry("all ones", uint32(0xFFFFFFFF)),
			Entry("all zeros", uint32(0x00000000)),
			Entry("ebreak", uint32(0x00100073)),
			Entry("unknown funct7", uint32(0x10000033)),
			Entry("slli with funct7 0x20", uint32(0x40001013)),
			Entry("64-bit load", uint32(0x00003003)),
			Entry("branch funct3 2", uint32(0x00002063)),
		)
	})

	It("should name operations", func() {
		Expect(insts.OpADD.String()).To(Equal("add"))
		Expect(insts.OpMULHU.String()).To(Equal("mulhu"))
		Expect(insts.FormatSB.String()).To(Equal("SB"))
	})
})

var _ = Describe("SignExtend", func() {
	DescribeTable("widens n-bit fields",
		func(field uint32, n uint, expected int32) {
			Expect(insts.SignExtend(field, n)).To(Equal(expected))
		},
		Entry("12-bit minus one", uint32(0xFFF), uint(12), int32(-1)),
		Entry("12-bit max", uint32(0x7FF), uint(12), int32(2047)),
		Entry("12-bit min", uint32(0x800), uint(12), int32(-2048)),
		Entry("13-bit negative", uint32(0x1FFC), uint(13), int32(-4)),
		Entry("ignores high bits", uint32(0xF0000005), uint(12), int32(5)),
	)
})

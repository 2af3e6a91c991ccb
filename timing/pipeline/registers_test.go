package pipeline_test

import (
	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv32sim/insts"
	"github.com/sarchlab/rv32sim/timing/pipeline"
)

var _ = Describe("Pipeline registers", func() {
	Describe("Latch", func() {
		It("should expose the input only after Advance", func() {
			var l pipeline.Latch[pipeline.IFIDRegister]
			l.Inp = pipeline.IFIDRegister{Valid: true, PC: 8}

			Expect(l.Out.Valid).To(BeFalse())
			l.Advance()
			Expect(l.Out.PC).To(Equal(uint32(8)))
		})
	})

	Describe("Clear", func() {
		It("should turn every register into a nop bubble", func() {
			var r pipeline.MEMWBRegister
			r.Valid = true
			r.RegWrite = true
			r.Rd = 3
			r.Trap = errors.New("boom")

			r.Clear()

			Expect(r.Valid).To(BeFalse())
			Expect(r.Trap).To(BeNil())
			Expect(r.InstructionWord).To(Equal(insts.NopWord))
			Expect(r.Inst.Op).To(Equal(insts.OpADDI))
			Expect(r.Commits()).To(BeFalse())
		})
	})

	Describe("MEMWBRegister", func() {
		var r pipeline.MEMWBRegister

		BeforeEach(func() {
			r.Clear()
			r.Valid = true
			r.RegWrite = true
			r.Rd = 4
			r.ALUResult = 10
			r.MemData = 20
		})

		It("should select the writeback value", func() {
			Expect(r.WritebackValue()).To(Equal(uint32(10)))
			r.MemToReg = true
			Expect(r.WritebackValue()).To(Equal(uint32(20)))
		})

		It("should commit only valid writes to a nonzero register", func() {
			Expect(r.Commits()).To(BeTrue())

			r.Rd = 0
			Expect(r.Commits()).To(BeFalse())

			r.Rd = 4
			r.Trap = errors.New("trap")
			Expect(r.Commits()).To(BeFalse())
		})
	})
})

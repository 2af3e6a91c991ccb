package benchmarks

import (
	"github.com/sarchlab/rv32sim/emu"
	"github.com/sarchlab/rv32sim/insts"
)

// DataAddr is where benchmarks place their data.
const DataAddr uint32 = 0x2000

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUseChain(),
		arraySumLoop(),
		functionCalls(),
		matrixMultiply2x2(),
		divideGuard(),
		printString(),
	}
}

// GetCoreBenchmarks returns a minimal set of core benchmarks for quick
// validation: a loop, matrix multiply and call-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		arraySumLoop(),
		matrixMultiply2x2(),
		functionCalls(),
	}
}

func program(words ...[]uint32) []byte {
	var all []uint32
	for _, w := range words {
		all = append(all, w...)
	}
	return BuildProgram(all...)
}

func writeData(values ...uint32) func(*emu.RegFile, *emu.Memory) {
	return func(_ *emu.RegFile, memory *emu.Memory) {
		_ = memory.WriteWords(DataAddr, values)
	}
}

// 1. Arithmetic Sequential - independent operations, no hazards
func arithmeticSequential() Benchmark {
	var body []uint32
	for i := 0; i < 4; i++ {
		for rd := uint8(5); rd <= 9; rd++ {
			body = append(body, insts.Encode(insts.OpADDI, rd, rd, 0, 1))
		}
	}

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDIs over 5 registers - measures ideal throughput",
		Program:     program(body, Exit()),
		ExpectedRegs: map[uint8]uint32{
			5: 4, 6: 4, 7: 4, 8: 4, 9: 4,
		},
	}
}

// 2. Dependency Chain - every instruction needs the previous result
func dependencyChain() Benchmark {
	var body []uint32
	for i := 0; i < 20; i++ {
		body = append(body, insts.Encode(insts.OpADDI, 5, 5, 0, 1))
	}

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs (x5 = x5 + 1) - measures EX/MEM forwarding",
		Program:      program(body, Exit()),
		ExpectedRegs: map[uint8]uint32{5: 20},
	}
}

// 3. Load-Use Chain - each load is consumed by the next instruction
func loadUseChain() Benchmark {
	body := []uint32{insts.Encode(insts.OpLUI, 5, 0, 0, int32(DataAddr>>12))}
	for i := int32(0); i < 8; i++ {
		body = append(body,
			insts.Encode(insts.OpLW, 6, 5, 0, 4*i),
			insts.Encode(insts.OpADD, 7, 7, 6, 0),
		)
	}

	return Benchmark{
		Name:         "load_use_chain",
		Description:  "8 loads each feeding the next ADD - measures load-use stalls",
		Setup:        writeData(1, 2, 3, 4, 5, 6, 7, 8),
		Program:      program(body, Exit()),
		ExpectedRegs: map[uint8]uint32{7: 36},
	}
}

// 4. Array Sum Loop - a counted loop with a backward branch
func arraySumLoop() Benchmark {
	body := []uint32{
		insts.Encode(insts.OpLUI, 5, 0, 0, int32(DataAddr>>12)), // 0:  base
		insts.Encode(insts.OpADDI, 6, 0, 0, 8),                   // 4:  count
		insts.Encode(insts.OpADDI, 7, 0, 0, 0),                   // 8:  sum
		insts.Encode(insts.OpLW, 8, 5, 0, 0),                     // 12: loop
		insts.Encode(insts.OpADD, 7, 7, 8, 0),                    // 16
		insts.Encode(insts.OpADDI, 5, 5, 0, 4),                   // 20
		insts.Encode(insts.OpADDI, 6, 6, 0, -1),                  // 24
		insts.Encode(insts.OpBNE, 0, 6, 0, -16),                  // 28: to loop
		insts.Encode(insts.OpSW, 0, 5, 7, 32),                    // 32: store sum
	}

	return Benchmark{
		Name:         "array_sum_loop",
		Description:  "Sum of 8 words in a loop - measures branch flushes and cache locality",
		Setup:        writeData(1, 2, 3, 4, 5, 6, 7, 8),
		Program:      program(body, Exit()),
		ExpectedRegs: map[uint8]uint32{6: 0, 7: 36},
		ExpectedMem:  map[uint32]uint32{DataAddr + 0x40: 36},
	}
}

// 5. Function Calls - jal into a leaf and jalr back
func functionCalls() Benchmark {
	body := []uint32{
		insts.Encode(insts.OpADDI, 5, 0, 0, 0), // 0
		insts.Encode(insts.OpJAL, 1, 0, 0, 28), // 4:  call leaf at 32
		insts.Encode(insts.OpJAL, 1, 0, 0, 24), // 8
		insts.Encode(insts.OpJAL, 1, 0, 0, 20), // 12
		insts.Encode(insts.OpADDI, 6, 1, 0, 0), // 16: last return address
	}
	body = append(body, Exit()...) // 20, 24
	body = append(body,
		insts.NopWord,                           // 28
		insts.Encode(insts.OpADDI, 5, 5, 0, 7),  // 32: leaf
		insts.Encode(insts.OpJALR, 0, 1, 0, 0),  // 36: return
	)

	return Benchmark{
		Name:         "function_calls",
		Description:  "3 calls to a leaf function - measures jump penalties",
		Program:      program(body),
		ExpectedRegs: map[uint8]uint32{5: 21, 6: 16},
	}
}

// 6. Matrix Multiply 2x2 - loads, multiplies and stores
func matrixMultiply2x2() Benchmark {
	mul := func(rd, a, b uint8) uint32 { return insts.Encode(insts.OpMUL, rd, a, b, 0) }
	add := func(rd, a, b uint8) uint32 { return insts.Encode(insts.OpADD, rd, a, b, 0) }
	sw := func(rs uint8, off int32) uint32 { return insts.Encode(insts.OpSW, 0, 20, rs, off) }

	body := []uint32{insts.Encode(insts.OpLUI, 20, 0, 0, int32(DataAddr>>12))}
	for i, rd := range []uint8{5, 6, 7, 8, 12, 13, 14, 15} {
		body = append(body, insts.Encode(insts.OpLW, rd, 20, 0, int32(4*i)))
	}
	body = append(body,
		// c00 = a00*b00 + a01*b10
		mul(16, 5, 12), mul(17, 6, 14), add(18, 16, 17), sw(18, 32),
		// c01 = a00*b01 + a01*b11
		mul(16, 5, 13), mul(17, 6, 15), add(18, 16, 17), sw(18, 36),
		// c10 = a10*b00 + a11*b10
		mul(16, 7, 12), mul(17, 8, 14), add(18, 16, 17), sw(18, 40),
		// c11 = a10*b01 + a11*b11
		mul(16, 7, 13), mul(17, 8, 15), add(18, 16, 17), sw(18, 44),
	)

	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "2x2 integer matrix multiply - mixed load, ALU and store traffic",
		Setup:       writeData(1, 2, 3, 4, 5, 6, 7, 8),
		Program:     program(body, Exit()),
		ExpectedMem: map[uint32]uint32{
			DataAddr + 32: 19,
			DataAddr + 36: 22,
			DataAddr + 40: 43,
			DataAddr + 44: 50,
		},
	}
}

// 7. Divide Guard - division by zero and the M-extension corner cases
func divideGuard() Benchmark {
	body := []uint32{
		insts.Encode(insts.OpADDI, 5, 0, 0, -7),
		insts.Encode(insts.OpADDI, 6, 0, 0, 2),
		insts.Encode(insts.OpDIV, 7, 5, 6, 0),  // -3
		insts.Encode(insts.OpREM, 8, 5, 6, 0),  // -1
		insts.Encode(insts.OpDIVU, 9, 5, 0, 0), // by zero
		insts.Encode(insts.OpMULH, 12, 5, 6, 0),
		insts.Encode(insts.OpSRAI, 13, 5, 0, 1),
		insts.Encode(insts.OpSLTU, 14, 6, 5, 0),
	}

	return Benchmark{
		Name:        "divide_guard",
		Description: "Signed division, remainder and division by zero",
		Program:     program(body, Exit()),
		ExpectedRegs: map[uint8]uint32{
			7:  0xFFFFFFFD,
			8:  0xFFFFFFFF,
			9:  emu.ALUErrorValue,
			12: 0xFFFFFFFF,
			13: 0xFFFFFFFC,
			14: 1,
		},
	}
}

// 8. Print String - console syscalls
func printString() Benchmark {
	body := []uint32{
		insts.Encode(insts.OpLUI, emu.RegA1, 0, 0, int32(DataAddr>>12)),
		insts.Encode(insts.OpADDI, emu.RegA0, 0, 0, int32(emu.SyscallPrintString)),
		insts.EcallWord,
		insts.Encode(insts.OpADDI, emu.RegA1, 0, 0, 42),
		insts.Encode(insts.OpADDI, emu.RegA0, 0, 0, int32(emu.SyscallPrintInt)),
		insts.EcallWord,
	}

	return Benchmark{
		Name:        "print_string",
		Description: "Console output through ecall",
		Setup: func(_ *emu.RegFile, memory *emu.Memory) {
			_ = memory.LoadProgram(DataAddr, []byte("answer: \x00"))
		},
		Program: program(body, Exit()),
	}
}

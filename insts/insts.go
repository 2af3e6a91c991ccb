// Package insts provides RV32 instruction definitions, decoding and encoding.
//
// This package implements the bit-field codec of the simulator. A 32-bit
// instruction word is decoded into one of six format records (R, I, S, SB,
// U, UJ). Immediates that RISC-V scatters across the word are reassembled
// with BranchOffset, JumpOffset and StoreOffset and sign-extended with
// SignExtend.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00A08293) // addi x5, x1, 10
//	if err != nil {
//		return err
//	}
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd(), inst.Rs1(), inst.Imm())
//
// Encode is the inverse of Decode and is used to build test programs.
package insts

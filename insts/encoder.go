package insts

// Encode assembles a single instruction word for op. Operands that the
// op's format does not use are ignored. For shift immediates imm is the
// shift amount. For lui and auipc imm holds the value of bits [31:12]
// (for example lui x1, 0x12345 is Encode(OpLUI, 1, 0, 0, 0x12345)).
func Encode(op Op, rd, rs1, rs2 uint8, imm int32) uint32 {
	if op == OpECALL {
		return EcallWord
	}

	e := encodings[op]
	word := uint32(e.opcode)
	rdBits := uint32(rd&0x1F) << 7
	f3 := uint32(e.funct3) << 12
	rs1Bits := uint32(rs1&0x1F) << 15
	rs2Bits := uint32(rs2&0x1F) << 20
	u := uint32(imm)

	switch e.format {
	case FormatR:
		word |= rdBits | f3 | rs1Bits | rs2Bits | uint32(e.funct7)<<25
	case FormatI:
		if e.hasFunct7 {
			u = (u & 0x1F) | uint32(e.funct7)<<5
		}
		word |= rdBits | f3 | rs1Bits | (u&0xFFF)<<20
	case FormatS:
		word |= (u&0x1F)<<7 | f3 | rs1Bits | rs2Bits | ((u>>5)&0x7F)<<25
	case FormatSB:
		word |= ((u>>11)&0x1)<<7 |
			((u>>1)&0xF)<<8 |
			f3 | rs1Bits | rs2Bits |
			((u>>5)&0x3F)<<25 |
			((u>>12)&0x1)<<31
	case FormatU:
		word |= rdBits | (u&0xFFFFF)<<12
	case FormatUJ:
		word |= rdBits |
			((u>>12)&0xFF)<<12 |
			((u>>11)&0x1)<<20 |
			((u>>1)&0x3FF)<<21 |
			((u>>20)&0x1)<<31
	}

	return word
}

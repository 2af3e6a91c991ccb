package insts

// SignExtend treats the low n bits of field as a two's-complement number
// and widens it to 32 bits. The field is shifted so its sign bit lands in
// bit 31 and then shifted back arithmetically.
func SignExtend(field uint32, n uint) int32 {
	if n == 0 || n >= 32 {
		return int32(field)
	}
	shift := 32 - n
	return int32(field<<shift) >> shift
}

// StoreOffset reassembles imm[11:5|4:0] of a store and sign-extends it.
func StoreOffset(s SType) int32 {
	imm := uint32(s.Imm7&0x7F)<<5 | uint32(s.Imm5&0x1F)
	return SignExtend(imm, 12)
}

// BranchOffset reassembles imm[12|10:5|4:1|11] of a branch. Bit 0 of the
// offset is always zero and is shifted in, giving a 13-bit signed value.
func BranchOffset(sb SBType) int32 {
	imm12 := uint32(sb.Imm7>>6) & 0x1
	imm10to5 := uint32(sb.Imm7) & 0x3F
	imm11 := uint32(sb.Imm5) & 0x1
	imm4to1 := uint32(sb.Imm5>>1) & 0xF

	imm := imm12<<12 | imm11<<11 | imm10to5<<5 | imm4to1<<1
	return SignExtend(imm, 13)
}

// JumpOffset reassembles imm[20|10:1|11|19:12] of jal. Bit 0 of the offset
// is always zero and is shifted in, giving a 21-bit signed value.
func JumpOffset(uj UJType) int32 {
	field := uj.Imm & 0xFFFFF

	imm20 := (field >> 19) & 0x1
	imm10to1 := (field >> 9) & 0x3FF
	imm11 := (field >> 8) & 0x1
	imm19to12 := field & 0xFF

	imm := imm20<<20 | imm19to12<<12 | imm11<<11 | imm10to1<<1
	return SignExtend(imm, 21)
}

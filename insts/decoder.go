package insts

import (
	"github.com/pkg/errors"
)

// ErrIllegalInstruction is returned when a word does not encode a
// supported RV32IM instruction.
var ErrIllegalInstruction = errors.New("illegal instruction")

// encoding describes how an Op is laid out in the instruction word.
type encoding struct {
	name      string
	format    Format
	opcode    uint8
	funct3    uint8
	funct7    uint8
	hasFunct7 bool
}

var encodings = [numOps]encoding{
	OpUnknown: {name: "unknown"},

	OpADD:    {"add", FormatR, OpcodeOp, 0x0, 0x00, true},
	OpSUB:    {"sub", FormatR, OpcodeOp, 0x0, 0x20, true},
	OpSLL:    {"sll", FormatR, OpcodeOp, 0x1, 0x00, true},
	OpSLT:    {"slt", FormatR, OpcodeOp, 0x2, 0x00, true},
	OpSLTU:   {"sltu", FormatR, OpcodeOp, 0x3, 0x00, true},
	OpXOR:    {"xor", FormatR, OpcodeOp, 0x4, 0x00, true},
	OpSRL:    {"srl", FormatR, OpcodeOp, 0x5, 0x00, true},
	OpSRA:    {"sra", FormatR, OpcodeOp, 0x5, 0x20, true},
	OpOR:     {"or", FormatR, OpcodeOp, 0x6, 0x00, true},
	OpAND:    {"and", FormatR, OpcodeOp, 0x7, 0x00, true},
	OpMUL:    {"mul", FormatR, OpcodeOp, 0x0, 0x01, true},
	OpMULH:   {"mulh", FormatR, OpcodeOp, 0x1, 0x01, true},
	OpMULHSU: {"mulhsu", FormatR, OpcodeOp, 0x2, 0x01, true},
	OpMULHU:  {"mulhu", FormatR, OpcodeOp, 0x3, 0x01, true},
	OpDIV:    {"div", FormatR, OpcodeOp, 0x4, 0x01, true},
	OpDIVU:   {"divu", FormatR, OpcodeOp, 0x5, 0x01, true},
	OpREM:    {"rem", FormatR, OpcodeOp, 0x6, 0x01, true},
	OpREMU:   {"remu", FormatR, OpcodeOp, 0x7, 0x01, true},

	OpADDI:  {"addi", FormatI, OpcodeOpImm, 0x0, 0, false},
	OpSLTI:  {"slti", FormatI, OpcodeOpImm, 0x2, 0, false},
	OpSLTIU: {"sltiu", FormatI, OpcodeOpImm, 0x3, 0, false},
	OpXORI:  {"xori", FormatI, OpcodeOpImm, 0x4, 0, false},
	OpORI:   {"ori", FormatI, OpcodeOpImm, 0x6, 0, false},
	OpANDI:  {"andi", FormatI, OpcodeOpImm, 0x7, 0, false},
	OpSLLI:  {"slli", FormatI, OpcodeOpImm, 0x1, 0x00, true},
	OpSRLI:  {"srli", FormatI, OpcodeOpImm, 0x5, 0x00, true},
	OpSRAI:  {"srai", FormatI, OpcodeOpImm, 0x5, 0x20, true},

	OpLB:  {"lb", FormatI, OpcodeLoad, 0x0, 0, false},
	OpLH:  {"lh", FormatI, OpcodeLoad, 0x1, 0, false},
	OpLW:  {"lw", FormatI, OpcodeLoad, 0x2, 0, false},
	OpLBU: {"lbu", FormatI, OpcodeLoad, 0x4, 0, false},
	OpLHU: {"lhu", FormatI, OpcodeLoad, 0x5, 0, false},

	OpSB: {"sb", FormatS, OpcodeStore, 0x0, 0, false},
	OpSH: {"sh", FormatS, OpcodeStore, 0x1, 0, false},
	OpSW: {"sw", FormatS, OpcodeStore, 0x2, 0, false},

	OpBEQ:  {"beq", FormatSB, OpcodeBranch, 0x0, 0, false},
	OpBNE:  {"bne", FormatSB, OpcodeBranch, 0x1, 0, false},
	OpBLT:  {"blt", FormatSB, OpcodeBranch, 0x4, 0, false},
	OpBGE:  {"bge", FormatSB, OpcodeBranch, 0x5, 0, false},
	OpBLTU: {"bltu", FormatSB, OpcodeBranch, 0x6, 0, false},
	OpBGEU: {"bgeu", FormatSB, OpcodeBranch, 0x7, 0, false},

	OpJAL:   {"jal", FormatUJ, OpcodeJAL, 0, 0, false},
	OpJALR:  {"jalr", FormatI, OpcodeJALR, 0x0, 0, false},
	OpLUI:   {"lui", FormatU, OpcodeLUI, 0, 0, false},
	OpAUIPC: {"auipc", FormatU, OpcodeAUIPC, 0, 0, false},

	OpECALL: {"ecall", FormatI, OpcodeSystem, 0x0, 0, false},
}

// opKey identifies an Op by the fields that select it.
type opKey struct {
	opcode uint8
	funct3 uint8
	funct7 uint8
}

var (
	formatByOpcode = map[uint8]Format{}
	opByKey        = map[opKey]Op{}
)

func init() {
	for op := OpUnknown + 1; op < numOps; op++ {
		e := encodings[op]
		formatByOpcode[e.opcode] = e.format
		opByKey[keyOf(e.format, e.opcode, e.funct3, e.funct7)] = op
	}
}

// keyOf masks out the fields that do not participate in selecting the Op
// for the given format.
func keyOf(format Format, opcode, funct3, funct7 uint8) opKey {
	switch format {
	case FormatU, FormatUJ:
		return opKey{opcode: opcode}
	case FormatR:
		return opKey{opcode, funct3, funct7}
	case FormatI:
		if opcode == OpcodeOpImm && (funct3 == 0x1 || funct3 == 0x5) {
			return opKey{opcode, funct3, funct7}
		}
		return opKey{opcode: opcode, funct3: funct3}
	}
	return opKey{opcode: opcode, funct3: funct3}
}

// Decoder decodes RV32 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32 instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. Words whose major opcode,
// funct3 or funct7 do not name a supported operation are rejected with
// ErrIllegalInstruction.
func (d *Decoder) Decode(word uint32) (*Instruction, error) {
	opcode := uint8(word & 0x7F) // bits [6:0]

	format, ok := formatByOpcode[opcode]
	if !ok {
		return nil, errors.Wrapf(ErrIllegalInstruction,
			"word 0x%08x: opcode 0x%02x", word, opcode)
	}

	inst := &Instruction{Word: word, Opcode: opcode, Format: format}

	switch format {
	case FormatR:
		d.decodeR(word, inst)
	case FormatI:
		d.decodeI(word, inst)
	case FormatS:
		d.decodeS(word, inst)
	case FormatSB:
		d.decodeSB(word, inst)
	case FormatU:
		d.decodeU(word, inst)
	case FormatUJ:
		d.decodeUJ(word, inst)
	}

	op, ok := opByKey[keyOf(format, opcode, inst.Funct3(), funct7Of(word))]
	if !ok {
		return nil, errors.Wrapf(ErrIllegalInstruction,
			"word 0x%08x: opcode 0x%02x funct3 0x%x funct7 0x%02x",
			word, opcode, inst.Funct3(), funct7Of(word))
	}

	if op == OpECALL && word != EcallWord {
		return nil, errors.Wrapf(ErrIllegalInstruction,
			"word 0x%08x: unsupported system instruction", word)
	}

	inst.Op = op

	return inst, nil
}

// MustDecode decodes word and panics if it is illegal. It is intended for
// words produced by Encode.
func (d *Decoder) MustDecode(word uint32) *Instruction {
	inst, err := d.Decode(word)
	if err != nil {
		panic(err)
	}
	return inst
}

func funct7Of(word uint32) uint8 {
	return uint8((word >> 25) & 0x7F) // bits [31:25]
}

// decodeR decodes register-register instructions.
// Format: funct7 | rs2 | rs1 | funct3 | rd | opcode
func (d *Decoder) decodeR(word uint32, inst *Instruction) {
	inst.R = RType{
		Rd:     uint8((word >> 7) & 0x1F),  // bits [11:7]
		Funct3: uint8((word >> 12) & 0x7),  // bits [14:12]
		Rs1:    uint8((word >> 15) & 0x1F), // bits [19:15]
		Rs2:    uint8((word >> 20) & 0x1F), // bits [24:20]
		Funct7: funct7Of(word),
	}
}

// decodeI decodes immediate, load, jalr and system instructions.
// Format: imm[11:0] | rs1 | funct3 | rd | opcode
func (d *Decoder) decodeI(word uint32, inst *Instruction) {
	inst.I = IType{
		Rd:     uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Imm:    uint16((word >> 20) & 0xFFF), // bits [31:20]
	}
}

// decodeS decodes stores.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode
func (d *Decoder) decodeS(word uint32, inst *Instruction) {
	inst.S = SType{
		Imm5:   uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Imm7:   funct7Of(word),
	}
}

// decodeSB decodes conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | opcode
func (d *Decoder) decodeSB(word uint32, inst *Instruction) {
	inst.SB = SBType{
		Imm5:   uint8((word >> 7) & 0x1F),
		Funct3: uint8((word >> 12) & 0x7),
		Rs1:    uint8((word >> 15) & 0x1F),
		Rs2:    uint8((word >> 20) & 0x1F),
		Imm7:   funct7Of(word),
	}
}

// decodeU decodes lui and auipc.
// Format: imm[31:12] | rd | opcode
func (d *Decoder) decodeU(word uint32, inst *Instruction) {
	inst.U = UType{
		Rd:  uint8((word >> 7) & 0x1F),
		Imm: word >> 12,
	}
}

// decodeUJ decodes jal.
// Format: imm[20|10:1|11|19:12] | rd | opcode
func (d *Decoder) decodeUJ(word uint32, inst *Instruction) {
	inst.UJ = UJType{
		Rd:  uint8((word >> 7) & 0x1F),
		Imm: word >> 12,
	}
}

package pipeline

import "github.com/sarchlab/rv32sim/insts"

// ForwardSource indicates where a forwarded value should come from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromEXMEM means forward from EX/MEM pipeline register.
	ForwardFromEXMEM
	// ForwardFromMEMWB means forward from MEM/WB pipeline register.
	ForwardFromMEMWB
)

func (f ForwardSource) String() string {
	switch f {
	case ForwardFromEXMEM:
		return "exmem"
	case ForwardFromMEMWB:
		return "memwb"
	}
	return "none"
}

// ForwardingResult contains forwarding decisions for both source operands.
type ForwardingResult struct {
	// ForwardRs1 specifies the forwarding source for the rs1 operand.
	ForwardRs1 ForwardSource
	// ForwardRs2 specifies the forwarding source for the rs2 operand,
	// including store data.
	ForwardRs2 ForwardSource
}

// HazardResult contains all hazard decisions of a cycle.
type HazardResult struct {
	ForwardingResult

	// LoadUse indicates the instruction in decode reads the destination of
	// the load in execute. Fetch and decode hold and a bubble enters
	// execute.
	LoadUse bool
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct {
	decoder *insts.Decoder
}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{decoder: insts.NewDecoder()}
}

// Detect computes the forwarding selectors for the instruction entering
// execute and the load-use stall for the instruction entering decode. It
// reads only the output side of the latches.
func (h *HazardUnit) Detect(
	ifid *IFIDRegister,
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) HazardResult {
	result := HazardResult{
		ForwardingResult: h.DetectForwarding(idex, exmem, memwb),
	}

	if ifid.Valid && ifid.Trap == nil {
		inst, err := h.decoder.Decode(ifid.InstructionWord)
		if err == nil {
			result.LoadUse = h.DetectLoadUseHazard(idex, inst.Rs1(), inst.Rs2())
		}
	}

	return result
}

// DetectForwarding determines if forwarding is needed for the ID/EX stage.
// It checks if the source registers match the destination register of
// instructions in later pipeline stages.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{
		ForwardRs1: ForwardNone,
		ForwardRs2: ForwardNone,
	}

	if !idex.Valid || idex.Trap != nil {
		return result
	}

	result.ForwardRs1 = h.detectForwardForReg(idex.Rs1, exmem, memwb)
	result.ForwardRs2 = h.detectForwardForReg(idex.Rs2, exmem, memwb)

	return result
}

// detectForwardForReg checks if a specific register needs forwarding.
func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) ForwardSource {
	if reg == 0 {
		return ForwardNone
	}

	// EX/MEM has precedence over MEM/WB (more recent value)
	if exmem.Valid && exmem.Trap == nil && exmem.RegWrite && exmem.Rd == reg {
		return ForwardFromEXMEM
	}

	if memwb.Commits() && memwb.Rd == reg {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// DetectLoadUseHazard detects load-use hazards where a load instruction
// is immediately followed by an instruction using the loaded value.
// This requires a stall because the value isn't available until MEM stage.
func (h *HazardUnit) DetectLoadUseHazard(idex *IDEXRegister, nextRs1, nextRs2 uint8) bool {
	if !idex.Valid || idex.Trap != nil || !idex.MemRead {
		return false
	}

	if idex.Rd == 0 {
		return false
	}

	return idex.Rd == nextRs1 || idex.Rd == nextRs2
}

// GetForwardedValue returns the value to use based on forwarding decision.
// Both sources supply the value destined for the register file.
func (h *HazardUnit) GetForwardedValue(
	forward ForwardSource,
	originalValue uint32,
	exmem *EXMEMRegister,
	memwb *MEMWBRegister,
) uint32 {
	switch forward {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		return memwb.WritebackValue()
	default:
		return originalValue
	}
}

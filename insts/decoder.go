package insts

import "fmt"

// Main opcodes that select a secondary table.
const (
	opcSpecial = 0x00
	opcRegimm  = 0x01
	opcCop0    = 0x10
	opcCop1    = 0x11
	opcCop2    = 0x12
)

// Coprocessor rs values that select a secondary table.
const (
	copRsBC = 0x08
	copRsCO = 0x10
)

var opcodeTable = [64]Op{
	0x02: OpJ, 0x03: OpJAL, 0x04: OpBEQ, 0x05: OpBNE,
	0x06: OpBLEZ, 0x07: OpBGTZ,

	0x08: OpADDI, 0x09: OpADDIU, 0x0a: OpSLTI, 0x0b: OpSLTIU,
	0x0c: OpANDI, 0x0d: OpORI, 0x0e: OpXORI, 0x0f: OpLUI,

	0x14: OpBEQL, 0x15: OpBNEL, 0x16: OpBLEZL, 0x17: OpBGTZL,

	0x18: OpDADDI, 0x19: OpDADDIU, 0x1a: OpLDL, 0x1b: OpLDR,

	0x20: OpLB, 0x21: OpLH, 0x22: OpLWL, 0x23: OpLW,
	0x24: OpLBU, 0x25: OpLHU, 0x26: OpLWR, 0x27: OpLWU,

	0x28: OpSB, 0x29: OpSH, 0x2a: OpSWL, 0x2b: OpSW,
	0x2c: OpSDL, 0x2d: OpSDR, 0x2e: OpSWR, 0x2f: OpCACHE,

	0x30: OpLL, 0x31: OpLWC1, 0x32: OpLWC2,
	0x34: OpLLD, 0x35: OpLDC1, 0x36: OpLDC2, 0x37: OpLD,

	0x38: OpSC, 0x39: OpSWC1, 0x3a: OpSWC2,
	0x3c: OpSCD, 0x3d: OpSDC1, 0x3e: OpSDC2, 0x3f: OpSD,
}

var specialTable = [64]Op{
	0x00: OpSLL, 0x02: OpSRL, 0x03: OpSRA,
	0x04: OpSLLV, 0x06: OpSRLV, 0x07: OpSRAV,

	0x08: OpJR, 0x09: OpJALR,
	0x0c: OpSYSCALL, 0x0d: OpBREAK, 0x0e: OpXCRD, 0x0f: OpSYNC,

	0x10: OpMFHI, 0x11: OpMTHI, 0x12: OpMFLO, 0x13: OpMTLO,
	0x14: OpDSLLV, 0x16: OpDSRLV, 0x17: OpDSRAV,

	0x18: OpMULT, 0x19: OpMULTU, 0x1a: OpDIV, 0x1b: OpDIVU,
	0x1c: OpDMULT, 0x1d: OpDMULTU, 0x1e: OpDDIV, 0x1f: OpDDIVU,

	0x20: OpADD, 0x21: OpADDU, 0x22: OpSUB, 0x23: OpSUBU,
	0x24: OpAND, 0x25: OpOR, 0x26: OpXOR, 0x27: OpNOR,

	0x28: OpXHLT, 0x29: OpXINT, 0x2a: OpSLT, 0x2b: OpSLTU,
	0x2c: OpDADD, 0x2d: OpDADDU, 0x2e: OpDSUB, 0x2f: OpDSUBU,

	0x30: OpTGE, 0x31: OpTGEU, 0x32: OpTLT, 0x33: OpTLTU,
	0x34: OpTEQ, 0x35: OpXVAL, 0x36: OpTNE, 0x37: OpXRD,

	0x38: OpDSLL, 0x39: OpXTRC, 0x3a: OpDSRL, 0x3b: OpDSRA,
	0x3c: OpDSLL32, 0x3d: OpXTR0, 0x3e: OpDSRL32, 0x3f: OpDSRA32,
}

var regimmTable = [32]Op{
	0x00: OpBLTZ, 0x01: OpBGEZ, 0x02: OpBLTZL, 0x03: OpBGEZL,

	0x08: OpTGEI, 0x09: OpTGEIU, 0x0a: OpTLTI, 0x0b: OpTLTIU,
	0x0c: OpTEQI, 0x0e: OpTNEI,

	0x10: OpBLTZAL, 0x11: OpBGEZAL, 0x12: OpBLTZALL, 0x13: OpBGEZALL,
}

var cop0RsTable = [32]Op{
	0x00: OpMFC0, 0x01: OpDMFC0, 0x04: OpMTC0, 0x05: OpDMTC0,
}

var cop1RsTable = [32]Op{
	0x00: OpMFC1, 0x01: OpDMFC1, 0x02: OpCFC1,
	0x04: OpMTC1, 0x05: OpDMTC1, 0x06: OpCTC1,
}

var cop2RsTable = [32]Op{
	0x00: OpMFC2, 0x02: OpCFC2, 0x06: OpCTC2,
}

var cop0RtTable = [32]Op{0x00: OpBC0F, 0x01: OpBC0T, 0x02: OpBC0FL, 0x03: OpBC0TL}
var cop1RtTable = [32]Op{0x00: OpBC1F, 0x01: OpBC1T, 0x02: OpBC1FL, 0x03: OpBC1TL}
var cop2RtTable = [32]Op{0x00: OpBC2F, 0x01: OpBC2T, 0x02: OpBC2FL, 0x03: OpBC2TL}

// cop0FuncTable defaults to OpWarning rather than OpReserved; it is filled
// in by init.
var cop0FuncTable [64]Op

func init() {
	for i := range cop0FuncTable {
		cop0FuncTable[i] = OpWarning
	}
	cop0FuncTable[0x01] = OpTLBR
	cop0FuncTable[0x02] = OpTLBWI
	cop0FuncTable[0x06] = OpTLBWR
	cop0FuncTable[0x08] = OpTLBP
	cop0FuncTable[0x10] = OpReserved
	cop0FuncTable[0x18] = OpERET
	cop0FuncTable[0x20] = OpWAIT

	if err := checkCoverage(); err != nil {
		panic(err)
	}
}

// checkCoverage verifies that every operation is reachable from some
// decode slot and has a disassembly entry.
func checkCoverage() error {
	var seen [NumOps]bool
	mark := func(table []Op) {
		for _, op := range table {
			seen[op] = true
		}
	}

	mark(opcodeTable[:])
	mark(specialTable[:])
	mark(regimmTable[:])
	mark(cop0RsTable[:])
	mark(cop1RsTable[:])
	mark(cop2RsTable[:])
	mark(cop0RtTable[:])
	mark(cop1RtTable[:])
	mark(cop2RtTable[:])
	mark(cop0FuncTable[:])

	for op := Op(0); op < NumOps; op++ {
		if !seen[op] {
			return fmt.Errorf("operation %d is not reachable from any decode slot", op)
		}
		if mnemonicTable[op].name == "" {
			return fmt.Errorf("operation %d has no mnemonic entry", op)
		}
	}
	return nil
}

// Decoder maps instruction words to operations.
type Decoder struct {
	specific bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithSpecificInstructions enables or disables the simulator control
// instructions. When disabled they decode as reserved.
func WithSpecificInstructions(enabled bool) DecoderOption {
	return func(d *Decoder) {
		d.specific = enabled
	}
}

// NewDecoder creates a decoder. Simulator control instructions are enabled
// by default.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{specific: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SpecificInstructions reports whether simulator control instructions are
// decoded.
func (d *Decoder) SpecificInstructions() bool {
	return d.specific
}

// Decode returns the operation encoded by w.
func (d *Decoder) Decode(w Word) Op {
	op := Decode(w)
	if !d.specific && op.IsSpecific() {
		return OpReserved
	}
	return op
}

// Decode returns the operation encoded by w, with every simulator control
// instruction enabled.
func Decode(w Word) Op {
	switch w.Opcode() {
	case opcSpecial:
		return specialTable[w.Func()]
	case opcRegimm:
		return regimmTable[w.RT()]
	case opcCop0:
		// Any rs with the CO bit set selects the function table.
		switch rs := w.RS(); {
		case rs&copRsCO != 0:
			return cop0FuncTable[w.CopFunc()]
		case rs == copRsBC:
			return cop0RtTable[w.RT()]
		default:
			return cop0RsTable[rs]
		}
	case opcCop1:
		if w.RS() == copRsBC {
			return cop1RtTable[w.RT()]
		}
		return cop1RsTable[w.RS()]
	case opcCop2:
		if w.RS() == copRsBC {
			return cop2RtTable[w.RT()]
		}
		return cop2RsTable[w.RS()]
	default:
		return opcodeTable[w.Opcode()]
	}
}

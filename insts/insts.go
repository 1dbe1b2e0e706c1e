// Package insts provides MIPS R4000 instruction definitions, decoding and
// disassembly.
package insts

// Word is a raw 32-bit instruction word.
type Word uint32

// Field accessors shared by the R, I and J encodings.

// Opcode returns bits 31..26.
func (w Word) Opcode() uint32 { return uint32(w) >> 26 }

// RS returns bits 25..21.
func (w Word) RS() uint32 { return (uint32(w) >> 21) & 0x1f }

// RT returns bits 20..16.
func (w Word) RT() uint32 { return (uint32(w) >> 16) & 0x1f }

// RD returns bits 15..11.
func (w Word) RD() uint32 { return (uint32(w) >> 11) & 0x1f }

// SA returns the shift amount, bits 10..6.
func (w Word) SA() uint32 { return (uint32(w) >> 6) & 0x1f }

// Func returns the function field, bits 5..0.
func (w Word) Func() uint32 { return uint32(w) & 0x3f }

// Imm returns the 16-bit immediate.
func (w Word) Imm() uint16 { return uint16(w) }

// ImmSE returns the immediate sign-extended to 64 bits.
func (w Word) ImmSE() uint64 { return uint64(int64(int16(w))) }

// Target returns the 26-bit jump target field.
func (w Word) Target() uint32 { return uint32(w) & 0x03ffffff }

// CopFunc returns the coprocessor function field of a CO-format word.
func (w Word) CopFunc() uint32 { return uint32(w) & 0x3f }

// Op identifies a decoded instruction.
type Op uint16

// Instruction operations. OpReserved raises a reserved-instruction
// exception; OpWarning is an undefined COP0 function that executes as a
// no-op and is reported once.
const (
	OpReserved Op = iota
	OpWarning

	// Main opcode table.
	OpJ
	OpJAL
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpBEQL
	OpBNEL
	OpBLEZL
	OpBGTZL
	OpDADDI
	OpDADDIU
	OpLDL
	OpLDR
	OpLB
	OpLH
	OpLWL
	OpLW
	OpLBU
	OpLHU
	OpLWR
	OpLWU
	OpSB
	OpSH
	OpSWL
	OpSW
	OpSDL
	OpSDR
	OpSWR
	OpCACHE
	OpLL
	OpLWC1
	OpLWC2
	OpLLD
	OpLDC1
	OpLDC2
	OpLD
	OpSC
	OpSWC1
	OpSWC2
	OpSCD
	OpSDC1
	OpSDC2
	OpSD

	// SPECIAL function table.
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpJR
	OpJALR
	OpSYSCALL
	OpBREAK
	OpSYNC
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpDSLLV
	OpDSRLV
	OpDSRAV
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpDMULT
	OpDMULTU
	OpDDIV
	OpDDIVU
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpDADD
	OpDADDU
	OpDSUB
	OpDSUBU
	OpTGE
	OpTGEU
	OpTLT
	OpTLTU
	OpTEQ
	OpTNE
	OpDSLL
	OpDSRL
	OpDSRA
	OpDSLL32
	OpDSRL32
	OpDSRA32

	// Simulator control instructions living in unused SPECIAL slots.
	OpXCRD
	OpXHLT
	OpXINT
	OpXVAL
	OpXRD
	OpXTRC
	OpXTR0

	// REGIMM table.
	OpBLTZ
	OpBGEZ
	OpBLTZL
	OpBGEZL
	OpTGEI
	OpTGEIU
	OpTLTI
	OpTLTIU
	OpTEQI
	OpTNEI
	OpBLTZAL
	OpBGEZAL
	OpBLTZALL
	OpBGEZALL

	// Coprocessor 0.
	OpMFC0
	OpDMFC0
	OpMTC0
	OpDMTC0
	OpBC0F
	OpBC0T
	OpBC0FL
	OpBC0TL
	OpTLBR
	OpTLBWI
	OpTLBWR
	OpTLBP
	OpERET
	OpWAIT

	// Coprocessor 1.
	OpMFC1
	OpDMFC1
	OpCFC1
	OpMTC1
	OpDMTC1
	OpCTC1
	OpBC1F
	OpBC1T
	OpBC1FL
	OpBC1TL

	// Coprocessor 2.
	OpMFC2
	OpCFC2
	OpCTC2
	OpBC2F
	OpBC2T
	OpBC2FL
	OpBC2TL

	NumOps
)

// String returns the assembler mnemonic of the operation.
func (op Op) String() string {
	if op >= NumOps {
		return "(invalid)"
	}
	return mnemonicTable[op].name
}

// IsSpecific reports whether op is one of the simulator control
// instructions that can be switched off by configuration.
func (op Op) IsSpecific() bool {
	switch op {
	case OpXCRD, OpXHLT, OpXVAL, OpXRD, OpXTRC, OpXTR0:
		return true
	}
	return false
}

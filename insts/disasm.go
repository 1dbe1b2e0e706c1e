package insts

import (
	"fmt"
	"strings"
)

// NameVariant selects how register names are printed.
type NameVariant int

// Register name variants.
const (
	NamesNumeric NameVariant = iota // r0..r31, cp0 0..31
	NamesDollar                     // $0..$31
	NamesABI                        // ABI names, cp0 mnemonics
	numNameVariants
)

var gprNames = [numNameVariants][32]string{
	{
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		"r16", "r17", "r18", "r19", "r20", "r21", "r22", "r23",
		"r24", "r25", "r26", "r27", "r28", "r29", "r30", "r31",
	},
	dollarNames(),
	{
		"0", "at", "v0", "v1", "a0", "a1", "a2", "a3",
		"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
		"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
		"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
	},
}

var cp0Names = [numNameVariants][32]string{
	numericNames(""),
	dollarNames(),
	{
		"index", "random", "entrylo0", "entrylo1",
		"context", "pagemask", "wired", "res_7",
		"badvaddr", "count", "entryhi", "compare",
		"status", "cause", "epc", "prid",
		"config", "lladdr", "watchlo", "watchhi",
		"xcontext", "res_21", "res_22", "res_23",
		"res_24", "res_25", "ecc", "cacheerr",
		"taglo", "taghi", "errorepc", "res_31",
	},
}

var cp1Names = [numNameVariants][32]string{numericNames(""), dollarNames(), numericNames("cp1_")}
var cp2Names = [numNameVariants][32]string{numericNames(""), dollarNames(), numericNames("cp2_")}

func numericNames(prefix string) (names [32]string) {
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return names
}

func dollarNames() [32]string {
	return numericNames("$")
}

// ParseNameVariant converts a configuration string to a NameVariant.
func ParseNameVariant(s string) (NameVariant, error) {
	switch strings.ToLower(s) {
	case "", "abi":
		return NamesABI, nil
	case "numeric", "rn":
		return NamesNumeric, nil
	case "dollar", "$":
		return NamesDollar, nil
	}
	return NamesABI, fmt.Errorf("unknown register name variant %q", s)
}

// GPRName returns the name of general purpose register i.
func GPRName(v NameVariant, i uint32) string { return gprNames[v][i&0x1f] }

// CP0Name returns the name of coprocessor 0 register i.
func CP0Name(v NameVariant, i uint32) string { return cp0Names[v][i&0x1f] }

// argFormat describes the operand layout printed after a mnemonic.
type argFormat uint8

const (
	argNone argFormat = iota
	argTarget
	argOffset
	argRsOffset
	argRsRtOffset
	argRtOffsetBase
	argRtRsImm
	argRtRsUimm
	argRtUimm
	argRsImm
	argRdRsRt
	argRdRtRs
	argRdRtSa
	argRsRt
	argRdRs
	argRs
	argRd
	argRtCp0
	argRtCp1
	argRtCp2
)

type mnemonicEntry struct {
	name string
	args argFormat
}

// mnemonicTable mirrors the decode tables: every operation reachable from
// a decode slot has a formatter here.
var mnemonicTable = [NumOps]mnemonicEntry{
	OpReserved: {"(reserved)", argNone},
	OpWarning:  {"(undefined)", argNone},

	OpJ:       {"j", argTarget},
	OpJAL:     {"jal", argTarget},
	OpBEQ:     {"beq", argRsRtOffset},
	OpBNE:     {"bne", argRsRtOffset},
	OpBLEZ:    {"blez", argRsOffset},
	OpBGTZ:    {"bgtz", argRsOffset},
	OpADDI:    {"addi", argRtRsImm},
	OpADDIU:   {"addiu", argRtRsImm},
	OpSLTI:    {"slti", argRtRsImm},
	OpSLTIU:   {"sltiu", argRtRsImm},
	OpANDI:    {"andi", argRtRsUimm},
	OpORI:     {"ori", argRtRsUimm},
	OpXORI:    {"xori", argRtRsUimm},
	OpLUI:     {"lui", argRtUimm},
	OpBEQL:    {"beql", argRsRtOffset},
	OpBNEL:    {"bnel", argRsRtOffset},
	OpBLEZL:   {"blezl", argRsOffset},
	OpBGTZL:   {"bgtzl", argRsOffset},
	OpDADDI:   {"daddi", argRtRsImm},
	OpDADDIU:  {"daddiu", argRtRsImm},
	OpLDL:     {"ldl", argRtOffsetBase},
	OpLDR:     {"ldr", argRtOffsetBase},
	OpLB:      {"lb", argRtOffsetBase},
	OpLH:      {"lh", argRtOffsetBase},
	OpLWL:     {"lwl", argRtOffsetBase},
	OpLW:      {"lw", argRtOffsetBase},
	OpLBU:     {"lbu", argRtOffsetBase},
	OpLHU:     {"lhu", argRtOffsetBase},
	OpLWR:     {"lwr", argRtOffsetBase},
	OpLWU:     {"lwu", argRtOffsetBase},
	OpSB:      {"sb", argRtOffsetBase},
	OpSH:      {"sh", argRtOffsetBase},
	OpSWL:     {"swl", argRtOffsetBase},
	OpSW:      {"sw", argRtOffsetBase},
	OpSDL:     {"sdl", argRtOffsetBase},
	OpSDR:     {"sdr", argRtOffsetBase},
	OpSWR:     {"swr", argRtOffsetBase},
	OpCACHE:   {"cache", argNone},
	OpLL:      {"ll", argRtOffsetBase},
	OpLWC1:    {"lwc1", argRtOffsetBase},
	OpLWC2:    {"lwc2", argRtOffsetBase},
	OpLLD:     {"lld", argRtOffsetBase},
	OpLDC1:    {"ldc1", argRtOffsetBase},
	OpLDC2:    {"ldc2", argRtOffsetBase},
	OpLD:      {"ld", argRtOffsetBase},
	OpSC:      {"sc", argRtOffsetBase},
	OpSWC1:    {"swc1", argRtOffsetBase},
	OpSWC2:    {"swc2", argRtOffsetBase},
	OpSCD:     {"scd", argRtOffsetBase},
	OpSDC1:    {"sdc1", argRtOffsetBase},
	OpSDC2:    {"sdc2", argRtOffsetBase},
	OpSD:      {"sd", argRtOffsetBase},
	OpSLL:     {"sll", argRdRtSa},
	OpSRL:     {"srl", argRdRtSa},
	OpSRA:     {"sra", argRdRtSa},
	OpSLLV:    {"sllv", argRdRtRs},
	OpSRLV:    {"srlv", argRdRtRs},
	OpSRAV:    {"srav", argRdRtRs},
	OpJR:      {"jr", argRs},
	OpJALR:    {"jalr", argRdRs},
	OpSYSCALL: {"syscall", argNone},
	OpBREAK:   {"break", argNone},
	OpSYNC:    {"sync", argNone},
	OpMFHI:    {"mfhi", argRd},
	OpMTHI:    {"mthi", argRs},
	OpMFLO:    {"mflo", argRd},
	OpMTLO:    {"mtlo", argRs},
	OpDSLLV:   {"dsllv", argRdRtRs},
	OpDSRLV:   {"dsrlv", argRdRtRs},
	OpDSRAV:   {"dsrav", argRdRtRs},
	OpMULT:    {"mult", argRsRt},
	OpMULTU:   {"multu", argRsRt},
	OpDIV:     {"div", argRsRt},
	OpDIVU:    {"divu", argRsRt},
	OpDMULT:   {"dmult", argRsRt},
	OpDMULTU:  {"dmultu", argRsRt},
	OpDDIV:    {"ddiv", argRsRt},
	OpDDIVU:   {"ddivu", argRsRt},
	OpADD:     {"add", argRdRsRt},
	OpADDU:    {"addu", argRdRsRt},
	OpSUB:     {"sub", argRdRsRt},
	OpSUBU:    {"subu", argRdRsRt},
	OpAND:     {"and", argRdRsRt},
	OpOR:      {"or", argRdRsRt},
	OpXOR:     {"xor", argRdRsRt},
	OpNOR:     {"nor", argRdRsRt},
	OpSLT:     {"slt", argRdRsRt},
	OpSLTU:    {"sltu", argRdRsRt},
	OpDADD:    {"dadd", argRdRsRt},
	OpDADDU:   {"daddu", argRdRsRt},
	OpDSUB:    {"dsub", argRdRsRt},
	OpDSUBU:   {"dsubu", argRdRsRt},
	OpTGE:     {"tge", argRsRt},
	OpTGEU:    {"tgeu", argRsRt},
	OpTLT:     {"tlt", argRsRt},
	OpTLTU:    {"tltu", argRsRt},
	OpTEQ:     {"teq", argRsRt},
	OpTNE:     {"tne", argRsRt},
	OpDSLL:    {"dsll", argRdRtSa},
	OpDSRL:    {"dsrl", argRdRtSa},
	OpDSRA:    {"dsra", argRdRtSa},
	OpDSLL32:  {"dsll32", argRdRtSa},
	OpDSRL32:  {"dsrl32", argRdRtSa},
	OpDSRA32:  {"dsra32", argRdRtSa},

	OpXCRD: {"_xcrd", argNone},
	OpXHLT: {"_xhlt", argNone},
	OpXINT: {"_xint", argNone},
	OpXVAL: {"_xval", argNone},
	OpXRD:  {"_xrd", argNone},
	OpXTRC: {"_xtrc", argNone},
	OpXTR0: {"_xtr0", argNone},

	OpBLTZ:    {"bltz", argRsOffset},
	OpBGEZ:    {"bgez", argRsOffset},
	OpBLTZL:   {"bltzl", argRsOffset},
	OpBGEZL:   {"bgezl", argRsOffset},
	OpTGEI:    {"tgei", argRsImm},
	OpTGEIU:   {"tgeiu", argRsImm},
	OpTLTI:    {"tlti", argRsImm},
	OpTLTIU:   {"tltiu", argRsImm},
	OpTEQI:    {"teqi", argRsImm},
	OpTNEI:    {"tnei", argRsImm},
	OpBLTZAL:  {"bltzal", argRsOffset},
	OpBGEZAL:  {"bgezal", argRsOffset},
	OpBLTZALL: {"bltzall", argRsOffset},
	OpBGEZALL: {"bgezall", argRsOffset},

	OpMFC0:  {"mfc0", argRtCp0},
	OpDMFC0: {"dmfc0", argRtCp0},
	OpMTC0:  {"mtc0", argRtCp0},
	OpDMTC0: {"dmtc0", argRtCp0},
	OpBC0F:  {"bc0f", argOffset},
	OpBC0T:  {"bc0t", argOffset},
	OpBC0FL: {"bc0fl", argOffset},
	OpBC0TL: {"bc0tl", argOffset},
	OpTLBR:  {"tlbr", argNone},
	OpTLBWI: {"tlbwi", argNone},
	OpTLBWR: {"tlbwr", argNone},
	OpTLBP:  {"tlbp", argNone},
	OpERET:  {"eret", argNone},
	OpWAIT:  {"wait", argNone},

	OpMFC1:  {"mfc1", argRtCp1},
	OpDMFC1: {"dmfc1", argRtCp1},
	OpCFC1:  {"cfc1", argRtCp1},
	OpMTC1:  {"mtc1", argRtCp1},
	OpDMTC1: {"dmtc1", argRtCp1},
	OpCTC1:  {"ctc1", argRtCp1},
	OpBC1F:  {"bc1f", argOffset},
	OpBC1T:  {"bc1t", argOffset},
	OpBC1FL: {"bc1fl", argOffset},
	OpBC1TL: {"bc1tl", argOffset},

	OpMFC2:  {"mfc2", argRtCp2},
	OpCFC2:  {"cfc2", argRtCp2},
	OpCTC2:  {"ctc2", argRtCp2},
	OpBC2F:  {"bc2f", argOffset},
	OpBC2T:  {"bc2t", argOffset},
	OpBC2FL: {"bc2fl", argOffset},
	OpBC2TL: {"bc2tl", argOffset},
}

// Formatter renders one instruction located at addr. The comment is empty
// unless the operand layout has something to say, such as branch
// direction.
type Formatter func(addr uint64, w Word, v NameVariant) (mnemonic, comment string)

// DecodeMnemonics returns the formatter for w.
func DecodeMnemonics(w Word) Formatter {
	entry := mnemonicTable[Decode(w)]
	return func(addr uint64, w Word, v NameVariant) (string, string) {
		args, comment := formatArgs(entry.args, addr, w, v)
		return entry.name + args, comment
	}
}

// Disassemble renders w at addr using the given name variant.
func Disassemble(addr uint64, w Word, v NameVariant) (mnemonic, comment string) {
	return DecodeMnemonics(w)(addr, w, v)
}

func formatArgs(f argFormat, addr uint64, w Word, v NameVariant) (string, string) {
	gpr := func(i uint32) string { return GPRName(v, i) }

	switch f {
	case argTarget:
		target := ((addr + 4) & 0xfffffffff0000000) | uint64(w.Target())<<2
		return fmt.Sprintf(" %#x", target), ""
	case argOffset:
		return formatOffset(addr, w)
	case argRsOffset:
		s, c := formatOffset(addr, w)
		return fmt.Sprintf(" %s,", gpr(w.RS())) + s, c
	case argRsRtOffset:
		s, c := formatOffset(addr, w)
		return fmt.Sprintf(" %s, %s,", gpr(w.RS()), gpr(w.RT())) + s, c
	case argRtOffsetBase:
		return fmt.Sprintf(" %s, %d(%s)", gpr(w.RT()), int16(w.Imm()), gpr(w.RS())), ""
	case argRtRsImm:
		return fmt.Sprintf(" %s, %s, %d", gpr(w.RT()), gpr(w.RS()), int16(w.Imm())), ""
	case argRtRsUimm:
		return fmt.Sprintf(" %s, %s, %#x", gpr(w.RT()), gpr(w.RS()), w.Imm()), ""
	case argRtUimm:
		return fmt.Sprintf(" %s, %#x", gpr(w.RT()), w.Imm()), ""
	case argRsImm:
		return fmt.Sprintf(" %s, %d", gpr(w.RS()), int16(w.Imm())), ""
	case argRdRsRt:
		return fmt.Sprintf(" %s, %s, %s", gpr(w.RD()), gpr(w.RS()), gpr(w.RT())), ""
	case argRdRtRs:
		return fmt.Sprintf(" %s, %s, %s", gpr(w.RD()), gpr(w.RT()), gpr(w.RS())), ""
	case argRdRtSa:
		return fmt.Sprintf(" %s, %s, %d", gpr(w.RD()), gpr(w.RT()), w.SA()), ""
	case argRsRt:
		return fmt.Sprintf(" %s, %s", gpr(w.RS()), gpr(w.RT())), ""
	case argRdRs:
		return fmt.Sprintf(" %s, %s", gpr(w.RD()), gpr(w.RS())), ""
	case argRs:
		return " " + gpr(w.RS()), ""
	case argRd:
		return " " + gpr(w.RD()), ""
	case argRtCp0:
		return fmt.Sprintf(" %s, %s", gpr(w.RT()), CP0Name(v, w.RD())), ""
	case argRtCp1:
		return fmt.Sprintf(" %s, %s", gpr(w.RT()), cp1Names[v][w.RD()]), ""
	case argRtCp2:
		return fmt.Sprintf(" %s, %s", gpr(w.RT()), cp2Names[v][w.RD()]), ""
	}
	return "", ""
}

func formatOffset(addr uint64, w Word) (string, string) {
	offset := int64(w.ImmSE()) << 2
	target := addr + uint64(offset) + 4

	comment := "here"
	switch {
	case offset+4 > 0:
		comment = "forward"
	case offset+4 < 0:
		comment = "backward"
	}
	return fmt.Sprintf(" %#x", target), comment
}

package emu

import (
	"fmt"

	"github.com/d-iii-s/msim-sub002/insts"
)

// handler executes one decoded instruction.
type handler func(c *CPU, w insts.Word) Exception

var handlers [insts.NumOps]handler

// requires64 lists the operations that raise a reserved instruction
// exception unless 64-bit operations are enabled for the current mode.
var requires64 [insts.NumOps]bool

func init() {
	registerALU()
	registerShifts()
	registerMulDiv()
	registerBranches()
	registerTraps()
	registerLoadStore()
	registerCop()
	registerSpecific()

	handlers[insts.OpReserved] = func(c *CPU, _ insts.Word) Exception { return ExcRI }
	handlers[insts.OpWarning] = (*CPU).undefinedCop0

	for _, op := range []insts.Op{
		insts.OpDADD, insts.OpDADDU, insts.OpDADDI, insts.OpDADDIU,
		insts.OpDSUB, insts.OpDSUBU,
		insts.OpDMULT, insts.OpDMULTU, insts.OpDDIV, insts.OpDDIVU,
		insts.OpDSLL, insts.OpDSRL, insts.OpDSRA,
		insts.OpDSLL32, insts.OpDSRL32, insts.OpDSRA32,
		insts.OpDSLLV, insts.OpDSRLV, insts.OpDSRAV,
		insts.OpLD, insts.OpLDL, insts.OpLDR, insts.OpLLD, insts.OpLWU,
		insts.OpSD, insts.OpSDL, insts.OpSDR, insts.OpSCD,
		insts.OpDMFC0, insts.OpDMTC0, insts.OpDMFC1, insts.OpDMTC1,
	} {
		requires64[op] = true
	}

	for op := insts.Op(0); op < insts.NumOps; op++ {
		if handlers[op] == nil {
			panic(fmt.Sprintf("emu: no handler for %v", op))
		}
	}
}

// dispatch executes op.
func (c *CPU) dispatch(op insts.Op, w insts.Word) Exception {
	if requires64[op] && !c.allows64BitOps() {
		return ExcRI
	}
	return handlers[op](c, w)
}

// none adapts an instruction that cannot fail.
func none(f func(c *CPU, w insts.Word)) handler {
	return func(c *CPU, w insts.Word) Exception {
		f(c, w)
		return ExcNone
	}
}

func registerALU() {
	handlers[insts.OpADD] = func(c *CPU, w insts.Word) Exception { return c.alu.ADD(w.RD(), w.RS(), w.RT()) }
	handlers[insts.OpSUB] = func(c *CPU, w insts.Word) Exception { return c.alu.SUB(w.RD(), w.RS(), w.RT()) }
	handlers[insts.OpDADD] = func(c *CPU, w insts.Word) Exception { return c.alu.DADD(w.RD(), w.RS(), w.RT()) }
	handlers[insts.OpDSUB] = func(c *CPU, w insts.Word) Exception { return c.alu.DSUB(w.RD(), w.RS(), w.RT()) }
	handlers[insts.OpADDI] = func(c *CPU, w insts.Word) Exception { return c.alu.ADDI(w.RT(), w.RS(), w.Imm()) }
	handlers[insts.OpDADDI] = func(c *CPU, w insts.Word) Exception { return c.alu.DADDI(w.RT(), w.RS(), w.Imm()) }

	handlers[insts.OpADDU] = none(func(c *CPU, w insts.Word) { c.alu.ADDU(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpSUBU] = none(func(c *CPU, w insts.Word) { c.alu.SUBU(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpDADDU] = none(func(c *CPU, w insts.Word) { c.alu.DADDU(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpDSUBU] = none(func(c *CPU, w insts.Word) { c.alu.DSUBU(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpADDIU] = none(func(c *CPU, w insts.Word) { c.alu.ADDIU(w.RT(), w.RS(), w.Imm()) })
	handlers[insts.OpDADDIU] = none(func(c *CPU, w insts.Word) { c.alu.DADDIU(w.RT(), w.RS(), w.Imm()) })

	handlers[insts.OpAND] = none(func(c *CPU, w insts.Word) { c.alu.AND(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpOR] = none(func(c *CPU, w insts.Word) { c.alu.OR(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpXOR] = none(func(c *CPU, w insts.Word) { c.alu.XOR(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpNOR] = none(func(c *CPU, w insts.Word) { c.alu.NOR(w.RD(), w.RS(), w.RT()) })
	handlers[insts.OpANDI] = none(func(c *CPU, w insts.Word) { c.alu.ANDI(w.RT(), w.RS(), w.Imm()) })
	handlers[insts.OpORI] = none(func(c *CPU, w insts.Word) { c.alu.ORI(w.RT(), w.RS(), w.Imm()) })
	handlers[insts.OpXORI] = none(func(c *CPU, w insts.Word) { c.alu.XORI(w.RT(), w.RS(), w.Imm()) })
	handlers[insts.OpLUI] = none(func(c *CPU, w insts.Word) { c.alu.LUI(w.RT(), w.Imm()) })

	handlers[insts.OpSLT] = none(func(c *CPU, w insts.Word) {
		c.alu.SLT(w.RD(), w.RS(), w.RT(), c.Is64BitMode())
	})
	handlers[insts.OpSLTU] = none(func(c *CPU, w insts.Word) {
		c.alu.SLTU(w.RD(), w.RS(), w.RT(), c.Is64BitMode())
	})
	handlers[insts.OpSLTI] = none(func(c *CPU, w insts.Word) {
		c.alu.SLTI(w.RT(), w.RS(), w.Imm(), c.Is64BitMode())
	})
	handlers[insts.OpSLTIU] = none(func(c *CPU, w insts.Word) {
		c.alu.SLTIU(w.RT(), w.RS(), w.Imm(), c.Is64BitMode())
	})
}

func registerShifts() {
	handlers[insts.OpSLL] = none(func(c *CPU, w insts.Word) { c.alu.SLL(w.RD(), w.RT(), w.SA()) })
	handlers[insts.OpSRL] = none(func(c *CPU, w insts.Word) { c.alu.SRL(w.RD(), w.RT(), w.SA()) })
	handlers[insts.OpSRA] = none(func(c *CPU, w insts.Word) { c.alu.SRA(w.RD(), w.RT(), w.SA()) })
	handlers[insts.OpSLLV] = none(func(c *CPU, w insts.Word) { c.alu.SLLV(w.RD(), w.RT(), w.RS()) })
	handlers[insts.OpSRLV] = none(func(c *CPU, w insts.Word) { c.alu.SRLV(w.RD(), w.RT(), w.RS()) })
	handlers[insts.OpSRAV] = none(func(c *CPU, w insts.Word) { c.alu.SRAV(w.RD(), w.RT(), w.RS()) })

	handlers[insts.OpDSLL] = none(func(c *CPU, w insts.Word) { c.alu.DSLL(w.RD(), w.RT(), w.SA()) })
	handlers[insts.OpDSRL] = none(func(c *CPU, w insts.Word) { c.alu.DSRL(w.RD(), w.RT(), w.SA()) })
	handlers[insts.OpDSRA] = none(func(c *CPU, w insts.Word) { c.alu.DSRA(w.RD(), w.RT(), w.SA()) })
	handlers[insts.OpDSLL32] = none(func(c *CPU, w insts.Word) { c.alu.DSLL(w.RD(), w.RT(), w.SA()+32) })
	handlers[insts.OpDSRL32] = none(func(c *CPU, w insts.Word) { c.alu.DSRL(w.RD(), w.RT(), w.SA()+32) })
	handlers[insts.OpDSRA32] = none(func(c *CPU, w insts.Word) { c.alu.DSRA(w.RD(), w.RT(), w.SA()+32) })
	handlers[insts.OpDSLLV] = none(func(c *CPU, w insts.Word) { c.alu.DSLLV(w.RD(), w.RT(), w.RS()) })
	handlers[insts.OpDSRLV] = none(func(c *CPU, w insts.Word) { c.alu.DSRLV(w.RD(), w.RT(), w.RS()) })
	handlers[insts.OpDSRAV] = none(func(c *CPU, w insts.Word) { c.alu.DSRAV(w.RD(), w.RT(), w.RS()) })
}

func registerMulDiv() {
	handlers[insts.OpMULT] = none(func(c *CPU, w insts.Word) { c.alu.MULT(w.RS(), w.RT()) })
	handlers[insts.OpMULTU] = none(func(c *CPU, w insts.Word) { c.alu.MULTU(w.RS(), w.RT()) })
	handlers[insts.OpDIV] = none(func(c *CPU, w insts.Word) { c.alu.DIV(w.RS(), w.RT()) })
	handlers[insts.OpDIVU] = none(func(c *CPU, w insts.Word) { c.alu.DIVU(w.RS(), w.RT()) })
	handlers[insts.OpDMULT] = none(func(c *CPU, w insts.Word) { c.alu.DMULT(w.RS(), w.RT()) })
	handlers[insts.OpDMULTU] = none(func(c *CPU, w insts.Word) { c.alu.DMULTU(w.RS(), w.RT()) })
	handlers[insts.OpDDIV] = none(func(c *CPU, w insts.Word) { c.alu.DDIV(w.RS(), w.RT()) })
	handlers[insts.OpDDIVU] = none(func(c *CPU, w insts.Word) { c.alu.DDIVU(w.RS(), w.RT()) })
	handlers[insts.OpMFHI] = none(func(c *CPU, w insts.Word) { c.alu.MFHI(w.RD()) })
	handlers[insts.OpMFLO] = none(func(c *CPU, w insts.Word) { c.alu.MFLO(w.RD()) })
	handlers[insts.OpMTHI] = none(func(c *CPU, w insts.Word) { c.alu.MTHI(w.RS()) })
	handlers[insts.OpMTLO] = none(func(c *CPU, w insts.Word) { c.alu.MTLO(w.RS()) })
}

// operand returns register r as a signed value. Outside 64-bit mode only
// the low word takes part in comparisons.
func (c *CPU) operand(r uint32) int64 {
	v := c.regs.ReadReg(r)
	if c.Is64BitMode() {
		return int64(v)
	}
	return int64(int32(v))
}

func (c *CPU) rs(w insts.Word) int64 { return c.operand(w.RS()) }

func registerBranches() {
	handlers[insts.OpJ] = func(c *CPU, w insts.Word) Exception { return c.branchUnit.J(w.Target()) }
	handlers[insts.OpJAL] = func(c *CPU, w insts.Word) Exception { return c.branchUnit.JAL(w.Target()) }
	handlers[insts.OpJR] = func(c *CPU, w insts.Word) Exception { return c.branchUnit.JR(w.RS()) }
	handlers[insts.OpJALR] = func(c *CPU, w insts.Word) Exception { return c.branchUnit.JALR(w.RD(), w.RS()) }

	type cond func(c *CPU, w insts.Word) bool
	eq := func(c *CPU, w insts.Word) bool { return c.rs(w) == c.operand(w.RT()) }
	ne := func(c *CPU, w insts.Word) bool { return c.rs(w) != c.operand(w.RT()) }
	lez := func(c *CPU, w insts.Word) bool { return c.rs(w) <= 0 }
	gtz := func(c *CPU, w insts.Word) bool { return c.rs(w) > 0 }
	ltz := func(c *CPU, w insts.Word) bool { return c.rs(w) < 0 }
	gez := func(c *CPU, w insts.Word) bool { return c.rs(w) >= 0 }

	branch := func(f cond) handler {
		return func(c *CPU, w insts.Word) Exception { return c.branchUnit.Branch(f(c, w), w.Imm()) }
	}
	likely := func(f cond) handler {
		return func(c *CPU, w insts.Word) Exception { return c.branchUnit.BranchLikely(f(c, w), w.Imm()) }
	}
	// The link register is written even when the branch is not taken. The
	// condition is evaluated first so that rs = r31 sees the old value.
	link := func(f cond, skip bool) handler {
		return func(c *CPU, w insts.Word) Exception {
			taken := f(c, w)
			c.branchUnit.Link(31)
			if skip {
				return c.branchUnit.BranchLikely(taken, w.Imm())
			}
			return c.branchUnit.Branch(taken, w.Imm())
		}
	}

	handlers[insts.OpBEQ] = branch(eq)
	handlers[insts.OpBNE] = branch(ne)
	handlers[insts.OpBLEZ] = branch(lez)
	handlers[insts.OpBGTZ] = branch(gtz)
	handlers[insts.OpBLTZ] = branch(ltz)
	handlers[insts.OpBGEZ] = branch(gez)

	handlers[insts.OpBEQL] = likely(eq)
	handlers[insts.OpBNEL] = likely(ne)
	handlers[insts.OpBLEZL] = likely(lez)
	handlers[insts.OpBGTZL] = likely(gtz)
	handlers[insts.OpBLTZL] = likely(ltz)
	handlers[insts.OpBGEZL] = likely(gez)

	handlers[insts.OpBLTZAL] = link(ltz, false)
	handlers[insts.OpBGEZAL] = link(gez, false)
	handlers[insts.OpBLTZALL] = link(ltz, true)
	handlers[insts.OpBGEZALL] = link(gez, true)
}

func registerTraps() {
	trap := func(f func(c *CPU, w insts.Word, wide bool) bool) handler {
		return func(c *CPU, w insts.Word) Exception {
			if f(c, w, c.Is64BitMode()) {
				return ExcTr
			}
			return ExcNone
		}
	}

	handlers[insts.OpTGE] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		return c.alu.signed(w.RS(), wide) >= c.alu.signed(w.RT(), wide)
	})
	handlers[insts.OpTGEU] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		return c.alu.unsigned(w.RS(), wide) >= c.alu.unsigned(w.RT(), wide)
	})
	handlers[insts.OpTLT] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		return c.alu.signed(w.RS(), wide) < c.alu.signed(w.RT(), wide)
	})
	handlers[insts.OpTLTU] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		return c.alu.unsigned(w.RS(), wide) < c.alu.unsigned(w.RT(), wide)
	})
	handlers[insts.OpTEQ] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		return c.alu.unsigned(w.RS(), wide) == c.alu.unsigned(w.RT(), wide)
	})
	handlers[insts.OpTNE] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		return c.alu.unsigned(w.RS(), wide) != c.alu.unsigned(w.RT(), wide)
	})

	// Immediate traps compare against the sign-extended immediate; the
	// unsigned forms still sign-extend it first.
	imm := func(w insts.Word, wide bool) (int64, uint64) {
		v := w.ImmSE()
		if !wide {
			v = uint64(uint32(v))
		}
		return int64(int16(w.Imm())), v
	}

	handlers[insts.OpTGEI] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		s, _ := imm(w, wide)
		return c.alu.signed(w.RS(), wide) >= s
	})
	handlers[insts.OpTGEIU] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		_, u := imm(w, wide)
		return c.alu.unsigned(w.RS(), wide) >= u
	})
	handlers[insts.OpTLTI] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		s, _ := imm(w, wide)
		return c.alu.signed(w.RS(), wide) < s
	})
	handlers[insts.OpTLTIU] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		_, u := imm(w, wide)
		return c.alu.unsigned(w.RS(), wide) < u
	})
	handlers[insts.OpTEQI] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		s, _ := imm(w, wide)
		return c.alu.signed(w.RS(), wide) == s
	})
	handlers[insts.OpTNEI] = trap(func(c *CPU, w insts.Word, wide bool) bool {
		s, _ := imm(w, wide)
		return c.alu.signed(w.RS(), wide) != s
	})

	handlers[insts.OpSYSCALL] = func(*CPU, insts.Word) Exception { return ExcSys }
	handlers[insts.OpBREAK] = func(*CPU, insts.Word) Exception { return ExcBp }
	handlers[insts.OpSYNC] = func(*CPU, insts.Word) Exception { return ExcNone }
}

func registerLoadStore() {
	type access func(lsu *LoadStoreUnit, rt, base uint32, offset uint16) Exception

	for op, f := range map[insts.Op]access{
		insts.OpLB:  (*LoadStoreUnit).LB,
		insts.OpLBU: (*LoadStoreUnit).LBU,
		insts.OpLH:  (*LoadStoreUnit).LH,
		insts.OpLHU: (*LoadStoreUnit).LHU,
		insts.OpLW:  (*LoadStoreUnit).LW,
		insts.OpLWU: (*LoadStoreUnit).LWU,
		insts.OpLD:  (*LoadStoreUnit).LD,
		insts.OpLWL: (*LoadStoreUnit).LWL,
		insts.OpLWR: (*LoadStoreUnit).LWR,
		insts.OpLDL: (*LoadStoreUnit).LDL,
		insts.OpLDR: (*LoadStoreUnit).LDR,
		insts.OpLL:  (*LoadStoreUnit).LL,
		insts.OpLLD: (*LoadStoreUnit).LLD,
		insts.OpSB:  (*LoadStoreUnit).SB,
		insts.OpSH:  (*LoadStoreUnit).SH,
		insts.OpSW:  (*LoadStoreUnit).SW,
		insts.OpSD:  (*LoadStoreUnit).SD,
		insts.OpSWL: (*LoadStoreUnit).SWL,
		insts.OpSWR: (*LoadStoreUnit).SWR,
		insts.OpSDL: (*LoadStoreUnit).SDL,
		insts.OpSDR: (*LoadStoreUnit).SDR,
		insts.OpSC:  (*LoadStoreUnit).SC,
		insts.OpSCD: (*LoadStoreUnit).SCD,
	} {
		f := f // per-iteration copy; go directive is 1.21 (pre-loopvar)
		handlers[op] = func(c *CPU, w insts.Word) Exception {
			return f(c.lsu, w.RT(), w.RS(), w.Imm())
		}
	}
}

func registerCop() {
	handlers[insts.OpMFC0] = func(c *CPU, w insts.Word) Exception { return c.MFC0(w.RT(), w.RD()) }
	handlers[insts.OpDMFC0] = func(c *CPU, w insts.Word) Exception { return c.DMFC0(w.RT(), w.RD()) }
	handlers[insts.OpMTC0] = func(c *CPU, w insts.Word) Exception { return c.MTC0(w.RT(), w.RD()) }
	handlers[insts.OpDMTC0] = func(c *CPU, w insts.Word) Exception { return c.DMTC0(w.RT(), w.RD()) }

	handlers[insts.OpTLBR] = func(c *CPU, _ insts.Word) Exception { return c.TLBR() }
	handlers[insts.OpTLBWI] = func(c *CPU, _ insts.Word) Exception { return c.TLBWI() }
	handlers[insts.OpTLBWR] = func(c *CPU, _ insts.Word) Exception { return c.TLBWR() }
	handlers[insts.OpTLBP] = func(c *CPU, _ insts.Word) Exception { return c.TLBP() }
	handlers[insts.OpERET] = func(c *CPU, _ insts.Word) Exception { return c.ERET() }
	handlers[insts.OpWAIT] = func(c *CPU, _ insts.Word) Exception { return c.WAIT() }
	handlers[insts.OpCACHE] = func(c *CPU, _ insts.Word) Exception { return c.CACHE() }

	for _, op := range []insts.Op{insts.OpBC0F, insts.OpBC0T, insts.OpBC0FL, insts.OpBC0TL} {
		handlers[op] = func(c *CPU, _ insts.Word) Exception { return c.bc0() }
	}

	unit := func(n uint) handler {
		return func(c *CPU, _ insts.Word) Exception { return c.copIgnored(n) }
	}
	for _, op := range []insts.Op{
		insts.OpMFC1, insts.OpDMFC1, insts.OpCFC1, insts.OpMTC1, insts.OpDMTC1, insts.OpCTC1,
		insts.OpBC1F, insts.OpBC1T, insts.OpBC1FL, insts.OpBC1TL,
		insts.OpLWC1, insts.OpLDC1, insts.OpSWC1, insts.OpSDC1,
	} {
		handlers[op] = unit(1)
	}
	for _, op := range []insts.Op{
		insts.OpMFC2, insts.OpCFC2, insts.OpCTC2,
		insts.OpBC2F, insts.OpBC2T, insts.OpBC2FL, insts.OpBC2TL,
		insts.OpLWC2, insts.OpLDC2, insts.OpSWC2, insts.OpSDC2,
	} {
		handlers[op] = unit(2)
	}
}

// undefinedCop0 treats an unassigned COP0 function as a no-op and reports
// it the first time it is seen.
func (c *CPU) undefinedCop0(w insts.Word) Exception {
	if !c.warned {
		c.warned = true
		c.logger.Warn("undefined instruction (silent exception)",
			"cpu", c.procID, "pc", hex(c.regs.PC), "word", fmt.Sprintf("%08x", uint32(w)))
	}
	return ExcNone
}

func registerSpecific() {
	handlers[insts.OpXHLT] = none(func(c *CPU, _ insts.Word) { c.halted = true })
	handlers[insts.OpXINT] = none(func(c *CPU, _ insts.Word) { c.breakRequested = true })
	handlers[insts.OpXCRD] = none(func(c *CPU, _ insts.Word) { c.DumpCP0(c.output) })
	handlers[insts.OpXRD] = none(func(c *CPU, _ insts.Word) { c.DumpRegisters(c.output, insts.NamesABI) })
	handlers[insts.OpXVAL] = none(func(c *CPU, _ insts.Word) {
		a0 := c.regs.ReadReg(4)
		c.logger.Info(fmt.Sprintf("XVAL: Register a0 = %#x = %d (%d)", a0, a0, int64(a0)), "cpu", c.procID)
	})
	handlers[insts.OpXTRC] = none(func(c *CPU, _ insts.Word) {
		if !c.trace {
			c.DumpRegisters(c.output, insts.NamesABI)
		}
		c.trace = true
	})
	handlers[insts.OpXTR0] = none(func(c *CPU, _ insts.Word) { c.trace = false })
}

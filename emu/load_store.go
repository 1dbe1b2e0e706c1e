package emu

// LoadStoreUnit implements MIPS load and store operations. Effective
// addresses are base register plus sign-extended offset.
type LoadStoreUnit struct {
	cpu     *CPU
	regFile *RegFile
}

// NewLoadStoreUnit creates a new LoadStoreUnit for the given CPU.
func NewLoadStoreUnit(cpu *CPU) *LoadStoreUnit {
	return &LoadStoreUnit{
		cpu:     cpu,
		regFile: &cpu.regs,
	}
}

func (lsu *LoadStoreUnit) addr(base uint32, offset uint16) uint64 {
	return lsu.regFile.ReadReg(base) + signExtend16(offset)
}

// LB loads a sign-extended byte.
func (lsu *LoadStoreUnit) LB(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem8(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg(rt, signExtend8(val))
	}
	return exc
}

// LBU loads a zero-extended byte.
func (lsu *LoadStoreUnit) LBU(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem8(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg(rt, uint64(val))
	}
	return exc
}

// LH loads a sign-extended halfword.
func (lsu *LoadStoreUnit) LH(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem16(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg(rt, signExtend16(val))
	}
	return exc
}

// LHU loads a zero-extended halfword.
func (lsu *LoadStoreUnit) LHU(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem16(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg(rt, uint64(val))
	}
	return exc
}

// LW loads a sign-extended word.
func (lsu *LoadStoreUnit) LW(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem32(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg32(rt, val)
	}
	return exc
}

// LWU loads a zero-extended word.
func (lsu *LoadStoreUnit) LWU(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem32(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg(rt, uint64(val))
	}
	return exc
}

// LD loads a doubleword.
func (lsu *LoadStoreUnit) LD(rt, base uint32, offset uint16) Exception {
	val, exc := lsu.cpu.ReadMem64(lsu.addr(base, offset), true)
	if exc == ExcNone {
		lsu.regFile.WriteReg(rt, val)
	}
	return exc
}

// SB stores the low byte of rt.
func (lsu *LoadStoreUnit) SB(rt, base uint32, offset uint16) Exception {
	return lsu.cpu.WriteMem8(lsu.addr(base, offset), uint8(lsu.regFile.ReadReg(rt)), true)
}

// SH stores the low halfword of rt.
func (lsu *LoadStoreUnit) SH(rt, base uint32, offset uint16) Exception {
	return lsu.cpu.WriteMem16(lsu.addr(base, offset), uint16(lsu.regFile.ReadReg(rt)), true)
}

// SW stores the low word of rt.
func (lsu *LoadStoreUnit) SW(rt, base uint32, offset uint16) Exception {
	return lsu.cpu.WriteMem32(lsu.addr(base, offset), lsu.regFile.ReadReg32(rt), true)
}

// SD stores rt.
func (lsu *LoadStoreUnit) SD(rt, base uint32, offset uint16) Exception {
	return lsu.cpu.WriteMem64(lsu.addr(base, offset), lsu.regFile.ReadReg(rt), true)
}

// Unaligned accesses. Memory is little-endian, so the "left" part of a
// word is its most significant bytes, found at the higher addresses.

// LWL merges the bytes from the aligned word up to the effective address
// into the high end of rt.
func (lsu *LoadStoreUnit) LWL(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem32(ea&^3, true)
	if exc != ExcNone {
		return exc
	}

	shift := 8 * (3 - uint32(ea&3))
	keep := uint32(1)<<shift - 1
	comb := lsu.regFile.ReadReg32(rt)&keep | val<<shift
	lsu.regFile.WriteReg32(rt, comb)
	return ExcNone
}

// LWR merges the bytes from the effective address to the end of the
// aligned word into the low end of rt. Only a full word is sign-extended.
func (lsu *LoadStoreUnit) LWR(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem32(ea&^3, true)
	if exc != ExcNone {
		return exc
	}

	shift := 8 * uint32(ea&3)
	keep := ^(uint32(0xffffffff) >> shift)
	comb := lsu.regFile.ReadReg32(rt)&keep | val>>shift

	if shift == 0 {
		lsu.regFile.WriteReg32(rt, comb)
	} else {
		lsu.regFile.WriteReg(rt, uint64(comb))
	}
	return ExcNone
}

// SWL stores the high bytes of rt up to the effective address.
func (lsu *LoadStoreUnit) SWL(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem32(ea&^3, true)
	if exc != ExcNone {
		return storeException(exc)
	}

	shift := 8 * (3 - uint32(ea&3))
	val = val&^(uint32(0xffffffff)>>shift) | lsu.regFile.ReadReg32(rt)>>shift
	return lsu.cpu.WriteMem32(ea&^3, val, true)
}

// SWR stores the low bytes of rt from the effective address on.
func (lsu *LoadStoreUnit) SWR(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem32(ea&^3, true)
	if exc != ExcNone {
		return storeException(exc)
	}

	shift := 8 * uint32(ea&3)
	val = val&(uint32(1)<<shift-1) | lsu.regFile.ReadReg32(rt)<<shift
	return lsu.cpu.WriteMem32(ea&^3, val, true)
}

// LDL is the doubleword variant of LWL.
func (lsu *LoadStoreUnit) LDL(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem64(ea&^7, true)
	if exc != ExcNone {
		return exc
	}

	shift := 8 * (7 - ea&7)
	keep := uint64(1)<<shift - 1
	lsu.regFile.WriteReg(rt, lsu.regFile.ReadReg(rt)&keep|val<<shift)
	return ExcNone
}

// LDR is the doubleword variant of LWR.
func (lsu *LoadStoreUnit) LDR(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem64(ea&^7, true)
	if exc != ExcNone {
		return exc
	}

	shift := 8 * (ea & 7)
	keep := ^(^uint64(0) >> shift)
	lsu.regFile.WriteReg(rt, lsu.regFile.ReadReg(rt)&keep|val>>shift)
	return ExcNone
}

// SDL is the doubleword variant of SWL.
func (lsu *LoadStoreUnit) SDL(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem64(ea&^7, true)
	if exc != ExcNone {
		return storeException(exc)
	}

	shift := 8 * (7 - ea&7)
	val = val&^(^uint64(0)>>shift) | lsu.regFile.ReadReg(rt)>>shift
	return lsu.cpu.WriteMem64(ea&^7, val, true)
}

// SDR is the doubleword variant of SWR.
func (lsu *LoadStoreUnit) SDR(rt, base uint32, offset uint16) Exception {
	ea := lsu.addr(base, offset)
	val, exc := lsu.cpu.ReadMem64(ea&^7, true)
	if exc != ExcNone {
		return storeException(exc)
	}

	shift := 8 * (ea & 7)
	val = val&(uint64(1)<<shift-1) | lsu.regFile.ReadReg(rt)<<shift
	return lsu.cpu.WriteMem64(ea&^7, val, true)
}

// LL loads a word and links its physical address.
func (lsu *LoadStoreUnit) LL(rt, base uint32, offset uint16) Exception {
	return lsu.loadLinked(rt, base, offset, 4)
}

// LLD loads a doubleword and links its physical address.
func (lsu *LoadStoreUnit) LLD(rt, base uint32, offset uint16) Exception {
	return lsu.loadLinked(rt, base, offset, 8)
}

func (lsu *LoadStoreUnit) loadLinked(rt, base uint32, offset uint16, size uint64) Exception {
	c := lsu.cpu
	ea := lsu.addr(base, offset)

	var val uint64
	var exc Exception
	if size == 8 {
		val, exc = c.ReadMem64(ea, true)
	} else {
		var w uint32
		w, exc = c.ReadMem32(ea, true)
		val = signExtend32(w)
	}

	if exc != ExcNone {
		c.links.Unregister(c.procID)
		return exc
	}

	lsu.regFile.WriteReg(rt, val)

	phys, _ := c.Translate(ea, false, false)
	c.links.Register(c.procID, phys, size)
	c.cp0[CP0LLAddr] = phys >> 4

	return ExcNone
}

// SC stores a word if the link set by LL still holds and writes the
// outcome to rt.
func (lsu *LoadStoreUnit) SC(rt, base uint32, offset uint16) Exception {
	return lsu.storeConditional(rt, base, offset, 4)
}

// SCD stores a doubleword if the link set by LLD still holds.
func (lsu *LoadStoreUnit) SCD(rt, base uint32, offset uint16) Exception {
	return lsu.storeConditional(rt, base, offset, 8)
}

func (lsu *LoadStoreUnit) storeConditional(rt, base uint32, offset uint16, size uint64) Exception {
	c := lsu.cpu
	ea := lsu.addr(base, offset)

	linked, ok := c.links.Linked(c.procID)
	if !ok {
		lsu.regFile.WriteReg(rt, 0)
		return ExcNone
	}

	phys, exc := c.access(ea, size, true, true)
	if exc != ExcNone {
		c.links.Unregister(c.procID)
		return exc
	}

	if !c.links.TestAndClear(c.procID, phys) {
		c.logger.Warn("LL/SC addresses do not match",
			"cpu", c.procID, "linked", hex(linked), "phys", hex(phys))
		lsu.regFile.WriteReg(rt, 0)
		return ExcNone
	}

	if size == 8 {
		c.mem.Write64(c.procID, phys, lsu.regFile.ReadReg(rt), true)
	} else {
		c.mem.Write32(c.procID, phys, lsu.regFile.ReadReg32(rt), true)
	}
	lsu.regFile.WriteReg(rt, 1)

	return ExcNone
}

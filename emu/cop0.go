package emu

import "github.com/d-iii-s/msim-sub002/physmem"

// cpUnusable reports a coprocessor unusable exception for unit n.
func (c *CPU) cpUnusable(n uint64) Exception {
	c.cp0[CP0Cause] &^= CauseCE
	c.cp0[CP0Cause] |= n << causeCESh
	return ExcCpU
}

// MFC0 moves the sign-extended low word of a CP0 register to rt.
func (c *CPU) MFC0(rt, rd uint32) Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}
	c.regs.WriteReg32(rt, uint32(c.cp0[rd]))
	return ExcNone
}

// DMFC0 moves a whole CP0 register to rt.
func (c *CPU) DMFC0(rt, rd uint32) Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}
	c.regs.WriteReg(rt, c.cp0[rd])
	return ExcNone
}

// MTC0 moves rt to a CP0 register. Read-only fields are preserved and
// illegal values are reported and dropped.
func (c *CPU) MTC0(rt, rd uint32) Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}
	c.writeCP0(rd, c.regs.ReadReg(rt))
	return ExcNone
}

// DMTC0 is MTC0 for doubleword registers.
func (c *CPU) DMTC0(rt, rd uint32) Exception {
	return c.MTC0(rt, rd)
}

func (c *CPU) writeCP0(rd uint32, val uint64) {
	switch rd {
	case CP0Index:
		c.cp0[CP0Index] = val & IndexMask
	case CP0Random, CP0BadVAddr, CP0PRId, CP0CacheErr:
		// read-only
	case CP0EntryLo0, CP0EntryLo1:
		c.cp0[rd] = val & EntryLoMask
	case CP0Context:
		c.cp0[CP0Context] = val & ContextMask
	case CP0PageMask:
		c.cp0[CP0PageMask] = 0
		if isLegalPageMask(val & PageMaskMask) {
			c.cp0[CP0PageMask] = val & PageMaskMask
		} else {
			c.logger.Warn("invalid value for PageMask (MTC0)", "cpu", c.procID, "value", hex(val))
		}
	case CP0Wired:
		c.cp0[CP0Random] = RandomInitial
		c.cp0[CP0Wired] = val & IndexMask
		if c.cp0[CP0Wired] > RandomInitial {
			c.logger.Warn("invalid value for Wired (MTC0)", "cpu", c.procID, "value", hex(val))
		}
	case CP0Count:
		c.cp0[CP0Count] = uint64(uint32(val))
	case CP0EntryHi:
		c.cp0[CP0EntryHi] = val & EntryHiMask
		c.frame = nil
	case CP0Compare:
		c.cp0[CP0Compare] = uint64(uint32(val))
		c.cp0[CP0Cause] &^= CauseIP7
	case CP0Status:
		c.cp0[CP0Status] = val & StatusMask
		c.frame = nil
	case CP0Cause:
		c.cp0[CP0Cause] &^= causeWritable
		c.cp0[CP0Cause] |= val & causeWritable
	case CP0WatchLo:
		c.cp0[CP0WatchLo] = val & WatchLoMask
		c.updateWatch()
	case CP0WatchHi:
		c.cp0[CP0WatchHi] = val & WatchHiPAddr1
		c.updateWatch()
	case CP0XContext:
		c.cp0[CP0XContext] &^= XContextPTEBase
		c.cp0[CP0XContext] |= val & XContextPTEBase
	case CP0ECC:
		c.cp0[CP0ECC] = val & ECCMask
	case CP0EPC, CP0Config, CP0LLAddr, CP0TagLo, CP0TagHi, CP0ErrorEPC:
		if rd == CP0Config {
			val &= ConfigMask
		}
		c.cp0[rd] = val
	default:
		// reserved
	}
}

// TLBR reads the TLB entry selected by Index into EntryHi, EntryLo0,
// EntryLo1 and PageMask.
func (c *CPU) TLBR() Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}

	i := c.cp0[CP0Index] & IndexMask
	if i >= TLBEntries {
		c.logger.Warn("invalid value in Index (TLBR)", "cpu", c.procID, "index", i)
		c.cp0[CP0PageMask] = 0
		c.cp0[CP0EntryHi] = 0
		c.cp0[CP0EntryLo0] = 0
		c.cp0[CP0EntryLo1] = 0
		return ExcNone
	}

	e := &c.tlb.Entries[i]
	c.cp0[CP0PageMask] = ^e.Mask & PageMaskMask
	c.cp0[CP0EntryHi] = e.VPN2 | uint64(e.ASID)
	c.cp0[CP0EntryLo0] = encodeEntryLo(&e.Pages[0], e.Global)
	c.cp0[CP0EntryLo1] = encodeEntryLo(&e.Pages[1], e.Global)

	return ExcNone
}

func encodeEntryLo(p *TLBPage, global bool) uint64 {
	v := p.PFN>>entryLoPFNSh | uint64(p.Coherency)<<entryLoCSh
	if p.Dirty {
		v |= EntryLoD
	}
	if p.Valid {
		v |= EntryLoV
	}
	if global {
		v |= EntryLoG
	}
	return v
}

func decodeEntryLo(v uint64) TLBPage {
	return TLBPage{
		PFN:       (v & EntryLoPFN) << entryLoPFNSh,
		Valid:     v&EntryLoV != 0,
		Dirty:     v&EntryLoD != 0,
		Coherency: uint8((v & EntryLoC) >> entryLoCSh),
	}
}

// TLBWI writes the TLB entry selected by Index.
func (c *CPU) TLBWI() Exception {
	return c.tlbWrite(false)
}

// TLBWR writes the TLB entry selected by Random.
func (c *CPU) TLBWR() Exception {
	return c.tlbWrite(true)
}

func (c *CPU) tlbWrite(random bool) Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}

	i := c.cp0[CP0Index] & IndexMask
	if random {
		i = c.cp0[CP0Random]
	}

	if i >= TLBEntries {
		c.logger.Warn("invalid value in Index (TLBWI)", "cpu", c.procID, "index", i)
	} else {
		mask := EntryHiVPN2 &^ c.cp0[CP0PageMask]
		lo0 := c.cp0[CP0EntryLo0]
		lo1 := c.cp0[CP0EntryLo1]

		c.tlb.Entries[i] = TLBEntry{
			Mask:   mask,
			VPN2:   c.cp0[CP0EntryHi] & mask,
			ASID:   uint8(c.cp0[CP0EntryHi] & EntryHiASID),
			Global: lo0&lo1&EntryLoG != 0,
			Pages:  [2]TLBPage{decodeEntryLo(lo0), decodeEntryLo(lo1)},
		}
	}

	c.dropFrame()
	return ExcNone
}

// dropFrame forgets the current frame and makes sure it is decoded again
// before use.
func (c *CPU) dropFrame() {
	if c.frame != nil {
		c.frames.InvalidateFrame(c.frame.Addr >> physmem.FrameWidth)
	}
	c.frame = nil
}

// TLBP searches the TLB for EntryHi and stores the matching index, or the
// probe failure bit, in Index.
func (c *CPU) TLBP() Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}

	hi := c.cp0[CP0EntryHi]
	i := c.tlb.Probe(hi&EntryHiVPN2, uint8(hi&EntryHiASID))
	if i < 0 {
		c.cp0[CP0Index] = IndexP
	} else {
		c.cp0[CP0Index] = uint64(i)
	}

	return ExcNone
}

// ERET returns from an exception or error handler.
func (c *CPU) ERET() Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}

	c.links.Unregister(c.procID)

	if c.branch != BranchNone {
		c.logger.Warn("ERET in a branch delay slot", "cpu", c.procID, "pc", hex(c.regs.PC))
	}

	if c.cp0[CP0Status]&StatusERL != 0 {
		c.regs.PCNext = c.cp0[CP0ErrorEPC]
		c.cp0[CP0Status] &^= StatusERL
	} else {
		c.regs.PCNext = c.cp0[CP0EPC]
		c.cp0[CP0Status] &^= StatusEXL
	}

	c.frame = nil
	return ExcNone
}

// WAIT puts the CPU in standby until the next exception or interrupt.
func (c *CPU) WAIT() Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}
	c.regs.PCNext = c.regs.PC
	c.standby = true
	return ExcNone
}

// copUsable reports whether coprocessor n is enabled in Status.
func (c *CPU) copUsable(n uint) bool {
	return c.cp0[CP0Status]&(StatusCU0<<n) != 0
}

// copIgnored implements coprocessor 1/2 instructions, which are accepted
// and ignored while the unit is enabled.
func (c *CPU) copIgnored(n uint) Exception {
	if c.copUsable(n) {
		return ExcNone
	}
	return c.cpUnusable(uint64(n))
}

// bc0 implements BC0F/BC0T and the likely variants. The condition is
// never evaluated and the branch is never taken.
func (c *CPU) bc0() Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}
	return ExcNone
}

// CACHE is accepted as a no-op.
func (c *CPU) CACHE() Exception {
	if !c.cp0Usable() {
		return c.cpUnusable(0)
	}
	return ExcNone
}

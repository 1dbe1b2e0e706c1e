package emu

import (
	"fmt"
	"io"

	"github.com/d-iii-s/msim-sub002/insts"
)

func hex(v uint64) string {
	return fmt.Sprintf("%#016x", v)
}

// DumpRegisters writes the general purpose registers, HI, LO and PC to w,
// five registers per line.
func (c *CPU) DumpRegisters(w io.Writer, names insts.NameVariant) {
	fmt.Fprintf(w, "processor %d\n", c.procID)
	for i := uint32(0); i < 30; i += 5 {
		for j := i; j < i+5; j++ {
			fmt.Fprintf(w, " %3s %016x", insts.GPRName(names, j), c.regs.ReadReg(j))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, " %3s %016x %3s %016x  pc %016x\n",
		insts.GPRName(names, 30), c.regs.ReadReg(30),
		insts.GPRName(names, 31), c.regs.ReadReg(31), c.regs.PC)
	fmt.Fprintf(w, "  hi %016x  lo %016x\n", c.regs.HI, c.regs.LO)
}

// DumpCP0 writes the coprocessor 0 registers to w.
func (c *CPU) DumpCP0(w io.Writer) {
	fmt.Fprintf(w, "processor %d cp0\n", c.procID)
	for i := uint32(0); i < 32; i++ {
		if cp0Reserved(i) {
			continue
		}
		fmt.Fprintf(w, "  %2d %-9s %016x\n", i, insts.CP0Name(insts.NamesABI, i), c.cp0[i])
	}
}

func cp0Reserved(n uint32) bool {
	switch n {
	case 7, 21, 22, 23, 24, 25, 31:
		return true
	}
	return false
}

// DumpTLB writes the TLB entries to w.
func (c *CPU) DumpTLB(w io.Writer) {
	fmt.Fprintf(w, "processor %d tlb\n", c.procID)
	fmt.Fprintln(w, " no    vpn      mask g asid  v d   pfn     c    v d   pfn     c")
	for i := range c.tlb.Entries {
		e := &c.tlb.Entries[i]
		fmt.Fprintf(w, " %2d %08x %8s %d  %02x ",
			i, e.VPN2, pageMaskName(^e.Mask&PageMaskMask), b2u(e.Global), e.ASID)
		for _, p := range e.Pages {
			fmt.Fprintf(w, "  %d %d %08x %d ", b2u(p.Valid), b2u(p.Dirty), p.PFN, p.Coherency)
		}
		fmt.Fprintln(w)
	}
}

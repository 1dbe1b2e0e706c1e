package emu

// Mode is the privilege level a CPU runs at.
type Mode int

// Privilege levels. ModeInvalid is KSU=3 with EXL and ERL clear.
const (
	ModeKernel Mode = iota
	ModeSupervisor
	ModeUser
	ModeInvalid
)

func (m Mode) String() string {
	switch m {
	case ModeKernel:
		return "kernel"
	case ModeSupervisor:
		return "supervisor"
	case ModeUser:
		return "user"
	}
	return "invalid"
}

type segmentKind int

const (
	segMapped segmentKind = iota
	segUnmapped
	segMappedUnlessERL
	segUnsupported
)

// segment is an inclusive virtual address range.
type segment struct {
	name   string
	lo, hi uint64
	kind   segmentKind
	offset uint64
}

var segments32 = [3][]segment{
	ModeKernel: {
		{name: "kuseg", lo: 0x00000000, hi: 0x7fffffff, kind: segMappedUnlessERL},
		{name: "kseg0", lo: 0x80000000, hi: 0x9fffffff, kind: segUnmapped, offset: 0x80000000},
		{name: "kseg1", lo: 0xa0000000, hi: 0xbfffffff, kind: segUnmapped, offset: 0xa0000000},
		{name: "ksseg", lo: 0xc0000000, hi: 0xdfffffff, kind: segMapped},
		{name: "kseg3", lo: 0xe0000000, hi: 0xffffffff, kind: segMapped},
	},
	ModeSupervisor: {
		{name: "suseg", lo: 0x00000000, hi: 0x7fffffff, kind: segMapped},
		{name: "sseg", lo: 0xc0000000, hi: 0xdfffffff, kind: segMapped},
	},
	ModeUser: {
		{name: "useg", lo: 0x00000000, hi: 0x7fffffff, kind: segMapped},
	},
}

var segments64 = [3][]segment{
	ModeKernel: {
		{name: "xkuseg", lo: 0x0000000000000000, hi: 0x000000ffffffffff, kind: segMappedUnlessERL},
		{name: "xksseg", lo: 0x4000000000000000, hi: 0x400000ffffffffff, kind: segMapped},
		{name: "xkphys", lo: 0x8000000000000000, hi: 0xbfffffffffffffff, kind: segUnsupported},
		{name: "xkseg", lo: 0xc000000000000000, hi: 0xc00000ff7fffffff, kind: segMapped},
		{name: "ckseg0", lo: 0xffffffff80000000, hi: 0xffffffff9fffffff, kind: segUnmapped, offset: 0xffffffff80000000},
		{name: "ckseg1", lo: 0xffffffffa0000000, hi: 0xffffffffbfffffff, kind: segUnmapped, offset: 0xffffffffa0000000},
		{name: "cksseg", lo: 0xffffffffc0000000, hi: 0xffffffffdfffffff, kind: segMapped},
		{name: "ckseg3", lo: 0xffffffffe0000000, hi: 0xffffffffffffffff, kind: segMapped},
	},
	ModeSupervisor: {
		{name: "xsuseg", lo: 0x0000000000000000, hi: 0x000000ffffffffff, kind: segMapped},
		{name: "xsseg", lo: 0x4000000000000000, hi: 0x400000ffffffffff, kind: segMapped},
		{name: "csseg", lo: 0xffffffffc0000000, hi: 0xffffffffdfffffff, kind: segMapped},
	},
	ModeUser: {
		{name: "xuseg", lo: 0x0000000000000000, hi: 0x000000ffffffffff, kind: segMapped},
	},
}

func findSegment(table []segment, addr uint64) *segment {
	for i := range table {
		if addr >= table[i].lo && addr <= table[i].hi {
			return &table[i]
		}
	}
	return nil
}

// Mode returns the current privilege level.
func (c *CPU) Mode() Mode {
	status := c.cp0[CP0Status]
	if status&(StatusEXL|StatusERL) != 0 {
		return ModeKernel
	}
	switch (status & StatusKSU) >> statusKSUSh {
	case 0:
		return ModeKernel
	case 1:
		return ModeSupervisor
	case 2:
		return ModeUser
	}
	return ModeInvalid
}

// Is64BitMode reports whether addresses are interpreted as 64-bit.
func (c *CPU) Is64BitMode() bool {
	status := c.cp0[CP0Status]
	switch c.Mode() {
	case ModeKernel:
		return status&StatusKX != 0
	case ModeSupervisor:
		return status&StatusSX != 0
	case ModeUser:
		return status&StatusUX != 0
	}
	return false
}

// allows64BitOps reports whether doubleword instructions are enabled.
func (c *CPU) allows64BitOps() bool {
	status := c.cp0[CP0Status]
	switch c.Mode() {
	case ModeKernel:
		return true
	case ModeSupervisor:
		return status&StatusSX != 0
	case ModeUser:
		return status&StatusUX != 0
	}
	return false
}

// cp0Usable reports whether coprocessor 0 instructions may run.
func (c *CPU) cp0Usable() bool {
	return c.cp0[CP0Status]&StatusCU0 != 0 || c.Mode() == ModeKernel
}

// Translate converts a virtual address to a physical one. The returned
// exception is ExcNone on success, ExcAdEL for an address error, ExcTLBL
// for an invalid TLB entry, ExcTLBLRefill for a TLB miss and ExcMod for a
// write to a clean page; the load variants are mapped to their store
// counterparts by the data access paths. With noisy set, a failing
// translation updates BadVAddr, Context, XContext and EntryHi.
func (c *CPU) Translate(virt uint64, write, noisy bool) (uint64, Exception) {
	mode := c.Mode()
	if mode == ModeInvalid {
		c.fillAddrError(virt, noisy)
		return 0, ExcAdEL
	}

	var seg *segment
	addr := virt
	wide := c.Is64BitMode()
	if wide {
		seg = findSegment(segments64[mode], virt)
	} else {
		addr = virt & 0xffffffff
		seg = findSegment(segments32[mode], addr)
	}

	if seg == nil {
		c.fillAddrError(virt, noisy)
		return 0, ExcAdEL
	}

	switch seg.kind {
	case segUnmapped:
		return addr - seg.offset, ExcNone
	case segMappedUnlessERL:
		if c.cp0[CP0Status]&StatusERL != 0 {
			return addr & 0xffffffff, ExcNone
		}
	case segUnsupported:
		c.fatal("access to %s address %#016x: %w", seg.name, virt, ErrUnsupported)
	}

	if wide && addr != signExtend32(uint32(addr)) {
		c.fatal("mapped access to %s address %#016x: %w", seg.name, virt, ErrUnsupported)
	}

	return c.tlbTranslate(virt, write, noisy)
}

func (c *CPU) tlbTranslate(virt uint64, write, noisy bool) (uint64, Exception) {
	if c.cp0[CP0Status]&StatusTS != 0 {
		return virt & 0xffffffff, ExcNone
	}

	asid := uint8(c.cp0[CP0EntryHi] & EntryHiASID)
	phys, res := c.tlb.Lookup(virt, asid, write)

	switch res {
	case TLBHit:
		return phys, ExcNone
	case TLBRefill:
		if noisy {
			c.stats.TLBRefill++
			c.fillTLBError(virt)
		}
		return 0, ExcTLBLRefill
	case TLBInvalid:
		if noisy {
			c.stats.TLBInvalid++
			c.fillTLBError(virt)
		}
		return 0, ExcTLBL
	default:
		if noisy {
			c.stats.TLBModified++
			c.fillTLBError(virt)
		}
		return 0, ExcMod
	}
}

func (c *CPU) fillTLBError(addr uint64) {
	c.cp0[CP0BadVAddr] = addr

	c.cp0[CP0Context] &= ContextPTEBase
	c.cp0[CP0Context] |= (addr >> contextBadVPNSh) & ContextBadVPN2

	c.cp0[CP0XContext] &= XContextPTEBase
	c.cp0[CP0XContext] |= ((addr >> xcontextRegionSh) << xcontextRSh) & XContextR
	c.cp0[CP0XContext] |= (addr >> contextBadVPNSh) & XContextBadVPN2

	c.cp0[CP0EntryHi] &= EntryHiASID
	c.cp0[CP0EntryHi] |= addr & EntryHiVPN2
}

func (c *CPU) fillAddrError(addr uint64, noisy bool) {
	if !noisy {
		return
	}
	c.cp0[CP0BadVAddr] = addr
	c.cp0[CP0Context] &^= ContextBadVPN2
	c.cp0[CP0XContext] &^= XContextBadVPN2
	c.cp0[CP0EntryHi] &^= EntryHiVPN2
}

// storeException converts a load-side translation outcome to the store
// variant.
func storeException(e Exception) Exception {
	switch e {
	case ExcAdEL:
		return ExcAdES
	case ExcTLBL:
		return ExcTLBS
	case ExcTLBLRefill:
		return ExcTLBSRefill
	}
	return e
}

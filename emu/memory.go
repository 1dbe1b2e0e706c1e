package emu

// access checks alignment, translates virt and tests the watchpoint. The
// returned exception already distinguishes loads from stores.
func (c *CPU) access(virt uint64, size uint64, write, noisy bool) (uint64, Exception) {
	if virt&(size-1) != 0 {
		c.fillAddrError(virt, noisy)
		if write {
			return 0, ExcAdES
		}
		return 0, ExcAdEL
	}

	phys, exc := c.Translate(virt, write, noisy)
	if exc != ExcNone {
		if write {
			return 0, storeException(exc)
		}
		return 0, exc
	}

	if c.watchHit(phys, write) {
		if c.cp0[CP0Status]&StatusEXL != 0 {
			c.watchPending = true
			c.watchExcAddr = c.regs.PC
		} else {
			return 0, ExcWATCH
		}
	}

	return phys, ExcNone
}

func (c *CPU) watchHit(phys uint64, write bool) bool {
	lo := c.cp0[CP0WatchLo]
	enabled := (write && lo&WatchLoW != 0) || (!write && lo&WatchLoR != 0)
	return enabled && c.waddr == phys>>3
}

func (c *CPU) updateWatch() {
	c.waddr = (c.cp0[CP0WatchHi]&WatchHiPAddr1)<<watchHiSh |
		(c.cp0[CP0WatchLo]&WatchLoPAddr0)>>3
}

// ReadMem8 reads a byte from virtual address virt.
func (c *CPU) ReadMem8(virt uint64, noisy bool) (uint8, Exception) {
	phys, exc := c.access(virt, 1, false, noisy)
	if exc != ExcNone {
		return 0, exc
	}
	return c.mem.Read8(c.procID, phys, true), ExcNone
}

// ReadMem16 reads a halfword from virtual address virt.
func (c *CPU) ReadMem16(virt uint64, noisy bool) (uint16, Exception) {
	phys, exc := c.access(virt, 2, false, noisy)
	if exc != ExcNone {
		return 0, exc
	}
	return c.mem.Read16(c.procID, phys, true), ExcNone
}

// ReadMem32 reads a word from virtual address virt.
func (c *CPU) ReadMem32(virt uint64, noisy bool) (uint32, Exception) {
	phys, exc := c.access(virt, 4, false, noisy)
	if exc != ExcNone {
		return 0, exc
	}
	return c.mem.Read32(c.procID, phys, true), ExcNone
}

// ReadMem64 reads a doubleword from virtual address virt.
func (c *CPU) ReadMem64(virt uint64, noisy bool) (uint64, Exception) {
	phys, exc := c.access(virt, 8, false, noisy)
	if exc != ExcNone {
		return 0, exc
	}
	return c.mem.Read64(c.procID, phys, true), ExcNone
}

// WriteMem8 writes a byte to virtual address virt. Stores nothing accepts
// are dropped.
func (c *CPU) WriteMem8(virt uint64, val uint8, noisy bool) Exception {
	phys, exc := c.access(virt, 1, true, noisy)
	if exc == ExcNone {
		c.mem.Write8(c.procID, phys, val, true)
	}
	return exc
}

// WriteMem16 writes a halfword to virtual address virt.
func (c *CPU) WriteMem16(virt uint64, val uint16, noisy bool) Exception {
	phys, exc := c.access(virt, 2, true, noisy)
	if exc == ExcNone {
		c.mem.Write16(c.procID, phys, val, true)
	}
	return exc
}

// WriteMem32 writes a word to virtual address virt.
func (c *CPU) WriteMem32(virt uint64, val uint32, noisy bool) Exception {
	phys, exc := c.access(virt, 4, true, noisy)
	if exc == ExcNone {
		c.mem.Write32(c.procID, phys, val, true)
	}
	return exc
}

// WriteMem64 writes a doubleword to virtual address virt.
func (c *CPU) WriteMem64(virt uint64, val uint64, noisy bool) Exception {
	phys, exc := c.access(virt, 8, true, noisy)
	if exc == ExcNone {
		c.mem.Write64(c.procID, phys, val, true)
	}
	return exc
}

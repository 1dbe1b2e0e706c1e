package emu

// BranchUnit implements MIPS jumps and branches. A taken branch only
// redirects PCNext; the instruction in the delay slot still runs.
type BranchUnit struct {
	regFile *RegFile
	state   *BranchState
}

// NewBranchUnit creates a new BranchUnit connected to the given register
// file and branch state.
func NewBranchUnit(regFile *RegFile, state *BranchState) *BranchUnit {
	return &BranchUnit{regFile: regFile, state: state}
}

// Jump redirects execution to target after the delay slot.
func (b *BranchUnit) Jump(target uint64) Exception {
	b.regFile.PCNext = target
	*b.state = BranchCond
	return ExcJump
}

// J jumps within the current 256 MiB region.
func (b *BranchUnit) J(target uint32) Exception {
	region := (b.regFile.PC + 4) & 0xfffffffff0000000
	return b.Jump(region | uint64(target)<<2)
}

// JAL jumps within the current region and saves the return address in
// r31.
func (b *BranchUnit) JAL(target uint32) Exception {
	b.Link(31)
	return b.J(target)
}

// JR jumps to the address in rs.
func (b *BranchUnit) JR(rs uint32) Exception {
	return b.Jump(b.regFile.ReadReg(rs))
}

// JALR jumps to the address in rs and saves the return address in rd.
func (b *BranchUnit) JALR(rd, rs uint32) Exception {
	target := b.regFile.ReadReg(rs)
	b.Link(rd)
	return b.Jump(target)
}

// Link stores the address following the delay slot in reg.
func (b *BranchUnit) Link(reg uint32) {
	b.regFile.WriteReg(reg, b.regFile.PC+8)
}

// Branch takes a PC-relative branch when cond holds.
func (b *BranchUnit) Branch(cond bool, imm uint16) Exception {
	if !cond {
		return ExcNone
	}
	return b.Jump(b.regFile.PCNext + signExtend16(imm)<<2)
}

// BranchLikely behaves like Branch, but skips the delay slot when the
// branch is not taken.
func (b *BranchUnit) BranchLikely(cond bool, imm uint16) Exception {
	if !cond {
		b.regFile.PCNext += 4
		return ExcNone
	}
	return b.Jump(b.regFile.PCNext + signExtend16(imm)<<2)
}

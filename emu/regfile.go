// Package emu provides functional MIPS R4000 emulation.
package emu

// RegFile represents the MIPS general purpose register file.
// It contains 32 64-bit registers (r0 reads as zero), the HI/LO
// multiply/divide registers and the two program counters needed to model
// branch delay slots.
type RegFile struct {
	// GPR holds the general purpose registers r0-r31.
	GPR [32]uint64

	// HI and LO hold multiply/divide results.
	HI uint64
	LO uint64

	// PC is the address of the instruction being executed.
	PC uint64

	// PCNext is the address of the instruction executed after PC.
	PCNext uint64
}

// ReadReg reads a register value. Register 0 always reads as 0.
func (r *RegFile) ReadReg(reg uint32) uint64 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.GPR[reg]
}

// WriteReg writes a value to a register. Writes to register 0 are ignored.
func (r *RegFile) WriteReg(reg uint32, value uint64) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.GPR[reg] = value
}

// ReadReg32 reads the lower 32 bits of a register.
func (r *RegFile) ReadReg32(reg uint32) uint32 {
	return uint32(r.ReadReg(reg))
}

// WriteReg32 writes a 32-bit value, sign-extended to 64 bits.
func (r *RegFile) WriteReg32(reg uint32, value uint32) {
	r.WriteReg(reg, signExtend32(value))
}

// SetPC sets the program counter and points PCNext at the following word.
func (r *RegFile) SetPC(pc uint64) {
	r.PC = pc
	r.PCNext = pc + 4
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}

func signExtend16(v uint16) uint64 {
	return uint64(int64(int16(v)))
}

func signExtend8(v uint8) uint64 {
	return uint64(int64(int8(v)))
}

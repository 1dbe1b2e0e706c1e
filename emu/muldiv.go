package emu

import "math/bits"

// MULT multiplies the low words as signed values into HI:LO.
func (a *ALU) MULT(rs, rt uint32) {
	res := int64(int32(a.regFile.ReadReg32(rs))) * int64(int32(a.regFile.ReadReg32(rt)))
	a.regFile.LO = signExtend32(uint32(res))
	a.regFile.HI = signExtend32(uint32(uint64(res) >> 32))
}

// MULTU multiplies the low words as unsigned values into HI:LO.
func (a *ALU) MULTU(rs, rt uint32) {
	res := uint64(a.regFile.ReadReg32(rs)) * uint64(a.regFile.ReadReg32(rt))
	a.regFile.LO = signExtend32(uint32(res))
	a.regFile.HI = signExtend32(uint32(res >> 32))
}

// DIV divides the low words as signed values. Division by zero leaves
// zero in both HI and LO.
func (a *ALU) DIV(rs, rt uint32) {
	divisor := int32(a.regFile.ReadReg32(rt))
	if divisor == 0 {
		a.regFile.LO = 0
		a.regFile.HI = 0
		return
	}

	dividend := int32(a.regFile.ReadReg32(rs))
	if dividend == -1<<31 && divisor == -1 {
		a.regFile.LO = signExtend32(uint32(dividend))
		a.regFile.HI = 0
		return
	}

	a.regFile.LO = signExtend32(uint32(dividend / divisor))
	a.regFile.HI = signExtend32(uint32(dividend % divisor))
}

// DIVU divides the low words as unsigned values.
func (a *ALU) DIVU(rs, rt uint32) {
	divisor := a.regFile.ReadReg32(rt)
	if divisor == 0 {
		a.regFile.LO = 0
		a.regFile.HI = 0
		return
	}

	dividend := a.regFile.ReadReg32(rs)
	a.regFile.LO = signExtend32(dividend / divisor)
	a.regFile.HI = signExtend32(dividend % divisor)
}

// DMULT multiplies doublewords as signed values into HI:LO.
func (a *ALU) DMULT(rs, rt uint32) {
	x := a.regFile.ReadReg(rs)
	y := a.regFile.ReadReg(rt)

	hi, lo := bits.Mul64(x, y)
	// Correct the unsigned high half for negative operands.
	if int64(x) < 0 {
		hi -= y
	}
	if int64(y) < 0 {
		hi -= x
	}

	a.regFile.HI = hi
	a.regFile.LO = lo
}

// DMULTU multiplies doublewords as unsigned values into HI:LO.
func (a *ALU) DMULTU(rs, rt uint32) {
	a.regFile.HI, a.regFile.LO = bits.Mul64(a.regFile.ReadReg(rs), a.regFile.ReadReg(rt))
}

// DDIV divides doublewords as signed values.
func (a *ALU) DDIV(rs, rt uint32) {
	divisor := int64(a.regFile.ReadReg(rt))
	if divisor == 0 {
		a.regFile.LO = 0
		a.regFile.HI = 0
		return
	}

	dividend := int64(a.regFile.ReadReg(rs))
	if dividend == -1<<63 && divisor == -1 {
		a.regFile.LO = uint64(dividend)
		a.regFile.HI = 0
		return
	}

	a.regFile.LO = uint64(dividend / divisor)
	a.regFile.HI = uint64(dividend % divisor)
}

// DDIVU divides doublewords as unsigned values.
func (a *ALU) DDIVU(rs, rt uint32) {
	divisor := a.regFile.ReadReg(rt)
	if divisor == 0 {
		a.regFile.LO = 0
		a.regFile.HI = 0
		return
	}

	dividend := a.regFile.ReadReg(rs)
	a.regFile.LO = dividend / divisor
	a.regFile.HI = dividend % divisor
}

// MFHI copies HI to rd.
func (a *ALU) MFHI(rd uint32) { a.regFile.WriteReg(rd, a.regFile.HI) }

// MFLO copies LO to rd.
func (a *ALU) MFLO(rd uint32) { a.regFile.WriteReg(rd, a.regFile.LO) }

// MTHI copies rs to HI.
func (a *ALU) MTHI(rs uint32) { a.regFile.HI = a.regFile.ReadReg(rs) }

// MTLO copies rs to LO.
func (a *ALU) MTLO(rs uint32) { a.regFile.LO = a.regFile.ReadReg(rs) }

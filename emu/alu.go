package emu

// ALU implements MIPS integer arithmetic, logic and shift operations.
// Word-sized results are sign-extended to 64 bits.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

const (
	signBit32 = 1 << 31
	signBit64 = 1 << 63
)

// ADD performs 32-bit addition trapping on signed overflow. On overflow
// rd is left unchanged.
func (a *ALU) ADD(rd, rs, rt uint32) Exception {
	op1 := a.regFile.ReadReg32(rs)
	op2 := a.regFile.ReadReg32(rt)
	sum := op1 + op2

	if (op1^op2)&signBit32 == 0 && (op1^sum)&signBit32 != 0 {
		return ExcOv
	}

	a.regFile.WriteReg32(rd, sum)
	return ExcNone
}

// ADDU performs 32-bit addition without overflow detection.
func (a *ALU) ADDU(rd, rs, rt uint32) {
	a.regFile.WriteReg32(rd, a.regFile.ReadReg32(rs)+a.regFile.ReadReg32(rt))
}

// ADDI adds a sign-extended immediate, trapping on signed overflow.
func (a *ALU) ADDI(rt, rs uint32, imm uint16) Exception {
	op1 := a.regFile.ReadReg32(rs)
	op2 := uint32(signExtend16(imm))
	sum := op1 + op2

	if (op1^op2)&signBit32 == 0 && (op1^sum)&signBit32 != 0 {
		return ExcOv
	}

	a.regFile.WriteReg32(rt, sum)
	return ExcNone
}

// ADDIU adds a sign-extended immediate without overflow detection.
func (a *ALU) ADDIU(rt, rs uint32, imm uint16) {
	a.regFile.WriteReg32(rt, a.regFile.ReadReg32(rs)+uint32(signExtend16(imm)))
}

// SUB performs 32-bit subtraction trapping on signed overflow.
func (a *ALU) SUB(rd, rs, rt uint32) Exception {
	op1 := a.regFile.ReadReg32(rs)
	op2 := a.regFile.ReadReg32(rt)
	dif := op1 - op2

	if (op1^op2)&signBit32 != 0 && (op1^dif)&signBit32 != 0 {
		return ExcOv
	}

	a.regFile.WriteReg32(rd, dif)
	return ExcNone
}

// SUBU performs 32-bit subtraction without overflow detection.
func (a *ALU) SUBU(rd, rs, rt uint32) {
	a.regFile.WriteReg32(rd, a.regFile.ReadReg32(rs)-a.regFile.ReadReg32(rt))
}

// DADD performs 64-bit addition trapping on signed overflow.
func (a *ALU) DADD(rd, rs, rt uint32) Exception {
	op1 := a.regFile.ReadReg(rs)
	op2 := a.regFile.ReadReg(rt)
	sum := op1 + op2

	if (op1^op2)&signBit64 == 0 && (op1^sum)&signBit64 != 0 {
		return ExcOv
	}

	a.regFile.WriteReg(rd, sum)
	return ExcNone
}

// DADDU performs 64-bit addition without overflow detection.
func (a *ALU) DADDU(rd, rs, rt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs)+a.regFile.ReadReg(rt))
}

// DADDI adds a sign-extended immediate to a doubleword, trapping on
// signed overflow.
func (a *ALU) DADDI(rt, rs uint32, imm uint16) Exception {
	op1 := a.regFile.ReadReg(rs)
	op2 := signExtend16(imm)
	sum := op1 + op2

	if (op1^op2)&signBit64 == 0 && (op1^sum)&signBit64 != 0 {
		return ExcOv
	}

	a.regFile.WriteReg(rt, sum)
	return ExcNone
}

// DADDIU adds a sign-extended immediate to a doubleword.
func (a *ALU) DADDIU(rt, rs uint32, imm uint16) {
	a.regFile.WriteReg(rt, a.regFile.ReadReg(rs)+signExtend16(imm))
}

// DSUB performs 64-bit subtraction trapping on signed overflow.
func (a *ALU) DSUB(rd, rs, rt uint32) Exception {
	op1 := a.regFile.ReadReg(rs)
	op2 := a.regFile.ReadReg(rt)
	dif := op1 - op2

	if (op1^op2)&signBit64 != 0 && (op1^dif)&signBit64 != 0 {
		return ExcOv
	}

	a.regFile.WriteReg(rd, dif)
	return ExcNone
}

// DSUBU performs 64-bit subtraction without overflow detection.
func (a *ALU) DSUBU(rd, rs, rt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs)-a.regFile.ReadReg(rt))
}

// AND performs bitwise AND.
func (a *ALU) AND(rd, rs, rt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs)&a.regFile.ReadReg(rt))
}

// OR performs bitwise OR.
func (a *ALU) OR(rd, rs, rt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs)|a.regFile.ReadReg(rt))
}

// XOR performs bitwise exclusive OR.
func (a *ALU) XOR(rd, rs, rt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs)^a.regFile.ReadReg(rt))
}

// NOR performs bitwise NOR.
func (a *ALU) NOR(rd, rs, rt uint32) {
	a.regFile.WriteReg(rd, ^(a.regFile.ReadReg(rs) | a.regFile.ReadReg(rt)))
}

// ANDI performs bitwise AND with a zero-extended immediate.
func (a *ALU) ANDI(rt, rs uint32, imm uint16) {
	a.regFile.WriteReg(rt, a.regFile.ReadReg(rs)&uint64(imm))
}

// ORI performs bitwise OR with a zero-extended immediate.
func (a *ALU) ORI(rt, rs uint32, imm uint16) {
	a.regFile.WriteReg(rt, a.regFile.ReadReg(rs)|uint64(imm))
}

// XORI performs bitwise exclusive OR with a zero-extended immediate.
func (a *ALU) XORI(rt, rs uint32, imm uint16) {
	a.regFile.WriteReg(rt, a.regFile.ReadReg(rs)^uint64(imm))
}

// LUI loads the immediate into the upper half of the low word.
func (a *ALU) LUI(rt uint32, imm uint16) {
	a.regFile.WriteReg32(rt, uint32(imm)<<16)
}

// signed returns a register as a signed value of the current width.
func (a *ALU) signed(reg uint32, wide bool) int64 {
	if wide {
		return int64(a.regFile.ReadReg(reg))
	}
	return int64(int32(a.regFile.ReadReg32(reg)))
}

// unsigned returns a register as an unsigned value of the current width.
func (a *ALU) unsigned(reg uint32, wide bool) uint64 {
	if wide {
		return a.regFile.ReadReg(reg)
	}
	return uint64(a.regFile.ReadReg32(reg))
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// SLT sets rd to 1 when rs < rt as signed values.
func (a *ALU) SLT(rd, rs, rt uint32, wide bool) {
	a.regFile.WriteReg(rd, b2u(a.signed(rs, wide) < a.signed(rt, wide)))
}

// SLTU sets rd to 1 when rs < rt as unsigned values.
func (a *ALU) SLTU(rd, rs, rt uint32, wide bool) {
	a.regFile.WriteReg(rd, b2u(a.unsigned(rs, wide) < a.unsigned(rt, wide)))
}

// SLTI sets rt to 1 when rs is less than the sign-extended immediate.
func (a *ALU) SLTI(rt, rs uint32, imm uint16, wide bool) {
	a.regFile.WriteReg(rt, b2u(a.signed(rs, wide) < int64(int16(imm))))
}

// SLTIU compares rs with the sign-extended immediate as unsigned values.
func (a *ALU) SLTIU(rt, rs uint32, imm uint16, wide bool) {
	op2 := signExtend16(imm)
	if !wide {
		op2 &= 0xffffffff
	}
	a.regFile.WriteReg(rt, b2u(a.unsigned(rs, wide) < op2))
}

// SLL shifts the low word left.
func (a *ALU) SLL(rd, rt, sa uint32) {
	a.regFile.WriteReg32(rd, a.regFile.ReadReg32(rt)<<sa)
}

// SRL shifts the low word right, inserting zeroes.
func (a *ALU) SRL(rd, rt, sa uint32) {
	a.regFile.WriteReg32(rd, a.regFile.ReadReg32(rt)>>sa)
}

// SRA shifts the low word right, inserting copies of the sign bit.
func (a *ALU) SRA(rd, rt, sa uint32) {
	a.regFile.WriteReg32(rd, uint32(int32(a.regFile.ReadReg32(rt))>>sa))
}

// SLLV shifts left by the low five bits of rs.
func (a *ALU) SLLV(rd, rt, rs uint32) {
	a.SLL(rd, rt, a.regFile.ReadReg32(rs)&0x1f)
}

// SRLV shifts right logically by the low five bits of rs.
func (a *ALU) SRLV(rd, rt, rs uint32) {
	a.SRL(rd, rt, a.regFile.ReadReg32(rs)&0x1f)
}

// SRAV shifts right arithmetically by the low five bits of rs.
func (a *ALU) SRAV(rd, rt, rs uint32) {
	a.SRA(rd, rt, a.regFile.ReadReg32(rs)&0x1f)
}

// DSLL shifts a doubleword left.
func (a *ALU) DSLL(rd, rt, sa uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rt)<<sa)
}

// DSRL shifts a doubleword right, inserting zeroes.
func (a *ALU) DSRL(rd, rt, sa uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rt)>>sa)
}

// DSRA shifts a doubleword right, inserting copies of the sign bit.
func (a *ALU) DSRA(rd, rt, sa uint32) {
	a.regFile.WriteReg(rd, uint64(int64(a.regFile.ReadReg(rt))>>sa))
}

// DSLLV shifts a doubleword left by the low six bits of rs.
func (a *ALU) DSLLV(rd, rt, rs uint32) {
	a.DSLL(rd, rt, a.regFile.ReadReg32(rs)&0x3f)
}

// DSRLV shifts a doubleword right logically by the low six bits of rs.
func (a *ALU) DSRLV(rd, rt, rs uint32) {
	a.DSRL(rd, rt, a.regFile.ReadReg32(rs)&0x3f)
}

// DSRAV shifts a doubleword right arithmetically by the low six bits of rs.
func (a *ALU) DSRAV(rd, rt, rs uint32) {
	a.DSRA(rd, rt, a.regFile.ReadReg32(rs)&0x3f)
}

package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/d-iii-s/msim-sub002/emu"
)

const (
	generalBEV = 0xffffffffbfc00380
	general    = 0xffffffff80000180
)

var _ = Describe("CPU", func() {
	var r *rig

	BeforeEach(func() {
		r = newRig()
	})

	Describe("reset", func() {
		It("should start at the reset vector with ERL and BEV set", func() {
			Expect(r.cpu.RegFile().PC).To(Equal(uint64(emu.ResetVector)))
			Expect(r.cpu.RegFile().PCNext).To(Equal(uint64(emu.ResetVector + 4)))
			Expect(r.cpu.CP0(emu.CP0Status)).To(Equal(emu.ResetStatus))
			Expect(r.cpu.CP0(emu.CP0PRId)).To(Equal(uint64(emu.PRIdValue)))
			Expect(r.cpu.CP0(emu.CP0Random)).To(Equal(uint64(emu.RandomInitial)))
		})

		It("should fetch the first instruction from kseg1", func() {
			r.load(0x1fc00000, addiu(v0, zero, 7))
			r.step(1)
			Expect(r.reg(v0)).To(Equal(uint64(7)))
		})
	})

	Describe("register zero", func() {
		It("should always read as zero", func() {
			r.run(addiu(zero, zero, 5), ori(zero, zero, 0xffff))
			r.step(2)
			Expect(r.reg(zero)).To(BeZero())
			Expect(r.cpu.RegFile().GPR[0]).To(BeZero())
		})
	})

	Describe("accounting", func() {
		BeforeEach(func() {
			r.run(nop(), nop(), nop(), nop())
		})

		It("should count steps and rotate Random downwards", func() {
			count := r.cpu.CP0(emu.CP0Count)
			r.step(3)

			Expect(r.cpu.CP0(emu.CP0Count)).To(Equal(count + 3))
			Expect(r.cpu.CP0(emu.CP0Random)).To(Equal(uint64(emu.RandomInitial - 3)))
			Expect(r.cpu.Statistics().KernelCycles).To(Equal(uint64(3)))
		})

		It("should keep Random at or above Wired", func() {
			r.cpu.SetCP0(emu.CP0Wired, emu.RandomInitial-1)

			r.step(1)
			Expect(r.cpu.CP0(emu.CP0Random)).To(Equal(uint64(emu.RandomInitial - 1)))

			r.step(1)
			Expect(r.cpu.CP0(emu.CP0Random)).To(Equal(uint64(emu.RandomInitial)))
		})

		It("should raise IP7 when Count reaches Compare", func() {
			r.cpu.SetCP0(emu.CP0Compare, r.cpu.CP0(emu.CP0Count)+2)

			r.step(1)
			Expect(r.cpu.CP0(emu.CP0Cause) & emu.CauseIP7).To(BeZero())

			r.step(1)
			Expect(r.cpu.CP0(emu.CP0Cause) & emu.CauseIP7).NotTo(BeZero())
		})
	})

	Describe("arithmetic", func() {
		It("should trap on signed overflow and leave rd unchanged", func() {
			r.run(
				lui(t0, 0x7fff),
				ori(t0, t0, 0xffff),
				addiu(t2, zero, 5),
				add(t2, t0, t0),
			)
			res := r.step(4)

			Expect(res.Exception).To(Equal(emu.ExcOv))
			Expect(r.reg(t2)).To(Equal(uint64(5)))
			Expect(r.excCode()).To(Equal(emu.ExcOv))
			Expect(r.cpu.CP0(emu.CP0EPC)).To(Equal(uint64(codeBase + 12)))
			Expect(r.cpu.RegFile().PC).To(Equal(uint64(generalBEV)))
		})

		It("should trap on signed subtraction overflow", func() {
			r.run(
				lui(t0, 0x8000),
				addiu(t1, zero, 1),
				sub(t2, t0, t1),
			)
			Expect(r.step(3).Exception).To(Equal(emu.ExcOv))
			Expect(r.reg(t2)).To(BeZero())
		})

		It("should trap on ADDI overflow", func() {
			r.run(lui(t0, 0x7fff), ori(t0, t0, 0xffff), addi(t1, t0, 1))
			Expect(r.step(3).Exception).To(Equal(emu.ExcOv))
		})

		It("should never trap on unsigned arithmetic", func() {
			r.run(
				lui(t0, 0x7fff),
				ori(t0, t0, 0xffff),
				addu(t2, t0, t0),
			)
			res := r.step(3)

			Expect(res.Exception).To(Equal(emu.ExcNone))
			Expect(r.reg(t2)).To(Equal(uint64(0xfffffffffffffffe)))
		})

		It("should sign-extend LUI", func() {
			r.run(lui(t0, 0x8000))
			r.step(1)
			Expect(r.reg(t0)).To(Equal(uint64(0xffffffff80000000)))
		})
	})

	Describe("branches", func() {
		It("should execute the delay slot of a taken branch", func() {
			r.run(
				beq(zero, zero, 2),
				addiu(v0, zero, 1),
				addiu(v1, zero, 1),
				addiu(a0, zero, 1),
			)
			r.step(3)

			Expect(r.reg(v0)).To(Equal(uint64(1)))
			Expect(r.reg(v1)).To(BeZero())
			Expect(r.reg(a0)).To(Equal(uint64(1)))
		})

		It("should report the delay slot state", func() {
			r.run(beq(zero, zero, 2), nop(), nop(), nop())

			r.step(1)
			Expect(r.cpu.Branch()).To(Equal(emu.BranchPassed))
			r.step(1)
			Expect(r.cpu.Branch()).To(Equal(emu.BranchNone))
			Expect(r.cpu.RegFile().PC).To(Equal(uint64(codeBase + 12)))
		})

		It("should fall through a branch that is not taken", func() {
			r.run(
				addiu(t0, zero, 1),
				beq(t0, zero, 2),
				addiu(v0, zero, 1),
				addiu(v1, zero, 1),
			)
			r.step(4)

			Expect(r.reg(v0)).To(Equal(uint64(1)))
			Expect(r.reg(v1)).To(Equal(uint64(1)))
		})

		It("should nullify the delay slot of a likely branch not taken", func() {
			r.run(
				addiu(t0, zero, 1),
				beql(t0, zero, 2),
				addiu(v0, zero, 1),
				addiu(v1, zero, 1),
			)
			r.step(3)

			Expect(r.reg(v0)).To(BeZero())
			Expect(r.reg(v1)).To(Equal(uint64(1)))
		})

		It("should link the return address on JAL", func() {
			r.run(
				jal(codeBase+16),
				nop(),
				nop(),
				nop(),
				addiu(v0, zero, 9),
			)
			r.step(3)

			Expect(r.reg(ra)).To(Equal(uint64(codeBase + 8)))
			Expect(r.reg(v0)).To(Equal(uint64(9)))
		})

		It("should return through JR", func() {
			r.run(
				jal(codeBase+16),
				nop(),
				addiu(v1, zero, 3),
				xhlt(),
				jr(ra),
				addiu(v0, zero, 2),
			)
			res := r.step(6)

			Expect(res.Halted).To(BeTrue())
			Expect(r.reg(v0)).To(Equal(uint64(2)))
			Expect(r.reg(v1)).To(Equal(uint64(3)))
		})

		It("should link on BGEZAL even when the branch is not taken", func() {
			r.run(
				addiu(t0, zero, -1),
				bgezal(t0, 4),
				nop(),
			)
			r.step(3)

			Expect(r.reg(ra)).To(Equal(uint64(codeBase + 12)))
			Expect(r.cpu.RegFile().PC).To(Equal(uint64(codeBase + 12)))
		})

		It("should loop with BNE", func() {
			r.run(
				addiu(t0, zero, 3),
				addiu(t0, t0, -1),
				bne(t0, zero, -2),
				addiu(v0, v0, 1),
				xhlt(),
			)
			for i := 0; i < 20 && !r.cpu.Halted(); i++ {
				r.step(1)
			}

			Expect(r.cpu.Halted()).To(BeTrue())
			Expect(r.reg(t0)).To(BeZero())
			Expect(r.reg(v0)).To(Equal(uint64(3)))
		})
	})

	Describe("comparison width", func() {
		slt := func(rd, rs, rt uint32) uint32 { return rtype(0x2a, rs, rt, rd, 0) }

		BeforeEach(func() {
			r.run(
				beq(t0, zero, 2),
				slt(t2, t1, zero),
				addiu(v0, zero, 1),
				addiu(v1, zero, 1),
			)
			r.cpu.RegFile().WriteReg(t0, 0x100000000)
			r.cpu.RegFile().WriteReg(t1, 0x80000000)
		})

		It("should compare only the low words outside 64-bit mode", func() {
			r.step(3)

			Expect(r.reg(t2)).To(Equal(uint64(1)))
			Expect(r.reg(v0)).To(BeZero())
			Expect(r.reg(v1)).To(Equal(uint64(1)))
		})

		It("should compare doublewords in 64-bit mode", func() {
			r.cpu.SetCP0(emu.CP0Status, emu.ResetStatus|emu.StatusKX)
			r.step(3)

			Expect(r.reg(t2)).To(BeZero())
			Expect(r.reg(v0)).To(Equal(uint64(1)))
		})
	})

	Describe("traps", func() {
		It("should raise a trap when TEQ holds", func() {
			r.run(teq(zero, zero))
			Expect(r.step(1).Exception).To(Equal(emu.ExcTr))
		})

		It("should not trap when TEQ fails", func() {
			r.run(addiu(t0, zero, 1), teq(t0, zero))
			Expect(r.step(2).Exception).To(Equal(emu.ExcNone))
		})

		It("should raise syscall and breakpoint exceptions", func() {
			r.run(syscall())
			Expect(r.step(1).Exception).To(Equal(emu.ExcSys))

			r.run(brk())
			Expect(r.step(1).Exception).To(Equal(emu.ExcBp))
		})
	})

	Describe("unaligned loads", func() {
		It("should assemble a word with LWL and LWR", func() {
			r.load(dataPhys, 0x44332211, 0x88776655)
			r.run(
				lui(t1, 0x8000),
				lwr(t0, t1, 0x2001),
				lwl(t0, t1, 0x2004),
			)
			r.step(3)

			Expect(r.reg(t0)).To(Equal(uint64(0x55443322)))
		})

		It("should raise an address error on a misaligned LW", func() {
			r.run(lui(t1, 0x8000), lw(t0, t1, 0x2002))
			Expect(r.step(2).Exception).To(Equal(emu.ExcAdEL))
			Expect(r.cpu.CP0(emu.CP0BadVAddr)).To(Equal(uint64(dataBase + 2)))
		})
	})

	Describe("LL/SC", func() {
		BeforeEach(func() {
			r.mem.Write32(0, dataPhys, 41, true)
		})

		It("should succeed when nothing touched the word", func() {
			r.run(
				lui(t1, 0x8000),
				ll(t0, t1, 0x2000),
				addiu(t0, t0, 1),
				sc(t0, t1, 0x2000),
			)
			r.step(4)

			Expect(r.reg(t0)).To(Equal(uint64(1)))
			Expect(r.mem.Read32(0, dataPhys, true)).To(Equal(uint32(42)))
			Expect(r.cpu.CP0(emu.CP0LLAddr)).To(Equal(uint64(dataPhys >> 4)))
		})

		It("should fail after another processor wrote the word", func() {
			r.run(
				lui(t1, 0x8000),
				ll(t0, t1, 0x2000),
				addiu(t0, t0, 1),
				sc(t0, t1, 0x2000),
			)
			r.step(2)
			r.mem.Write32(1, dataPhys, 7, true)
			r.step(2)

			Expect(r.reg(t0)).To(BeZero())
			Expect(r.mem.Read32(0, dataPhys, true)).To(Equal(uint32(7)))
		})

		It("should fail without a preceding LL", func() {
			r.run(
				lui(t1, 0x8000),
				addiu(t0, zero, 5),
				sc(t0, t1, 0x2000),
			)
			r.step(3)

			Expect(r.reg(t0)).To(BeZero())
			Expect(r.mem.Read32(0, dataPhys, true)).To(Equal(uint32(41)))
		})
	})

	Describe("WAIT and interrupts", func() {
		BeforeEach(func() {
			r.cpu.SetCP0(emu.CP0Status, emu.StatusIE|1<<10)
		})

		It("should stay in standby until an interrupt arrives", func() {
			r.run(wait(), nop())

			r.step(3)
			Expect(r.cpu.Standby()).To(BeTrue())
			Expect(r.cpu.Statistics().WaitCycles).To(Equal(uint64(3)))

			r.cpu.InterruptUp(2)
			res := r.step(1)

			Expect(res.Exception).To(Equal(emu.ExcInt))
			Expect(r.cpu.Standby()).To(BeFalse())
			Expect(r.cpu.CP0(emu.CP0EPC)).To(Equal(uint64(codeBase + 4)))
			Expect(r.cpu.RegFile().PC).To(Equal(uint64(general)))
			Expect(r.cpu.Statistics().Interrupts[2]).To(Equal(uint64(1)))
		})

		It("should ignore masked interrupt lines", func() {
			r.run(nop(), nop())
			r.cpu.InterruptUp(3)

			Expect(r.step(1).Exception).To(Equal(emu.ExcNone))

			r.cpu.InterruptDown(3)
			Expect(r.cpu.CP0(emu.CP0Cause) & emu.CauseIP).To(BeZero())
		})

		It("should resume after the interrupted instruction with ERET", func() {
			r.load(0x180, mfc0(t0, emu.CP0EPC), nop(), eret())
			r.run(nop(), addiu(v0, zero, 1), xhlt())
			r.cpu.InterruptUp(2)

			Expect(r.step(1).Exception).To(Equal(emu.ExcInt))
			r.cpu.InterruptDown(2)
			r.step(3)

			Expect(r.reg(t0)).To(Equal(uint64(codeBase + 4)))
			Expect(r.cpu.CP0(emu.CP0Status) & emu.StatusEXL).To(BeZero())

			res := r.step(2)
			Expect(res.Halted).To(BeTrue())
			Expect(r.reg(v0)).To(Equal(uint64(1)))
		})
	})

	Describe("decoded frames", func() {
		It("should see code modified after it was decoded", func() {
			r.run(addiu(v0, zero, 1), addiu(v1, zero, 1))
			r.step(1)

			r.mem.Write32(0, codePhys+4, addiu(v1, zero, 7), true)
			r.step(1)

			Expect(r.reg(v1)).To(Equal(uint64(7)))
			Expect(r.cpu.FrameCache().Stats().Decodes).To(Equal(uint64(2)))
		})

		It("should decode the current frame again after a TLB write", func() {
			r.run(tlbwi(), nop())
			r.step(1)

			Expect(r.cpu.FrameCache().Stats().Invalidations).To(Equal(uint64(1)))

			r.step(1)
			Expect(r.cpu.FrameCache().Stats().Decodes).To(Equal(uint64(2)))
		})
	})

	Describe("user mode", func() {
		BeforeEach(func() {
			r.cpu.TLB().Entries[0] = emu.TLBEntry{
				Mask:   emu.EntryHiVPN2,
				Global: true,
				Pages: [2]emu.TLBPage{
					{PFN: 0x3000, Valid: true, Dirty: true},
				},
			}
			r.cpu.SetCP0(emu.CP0Status, 2<<3)
		})

		It("should run mapped code", func() {
			r.load(0x3000, addiu(v0, zero, 4))
			r.cpu.SetPC(0)
			r.step(1)

			Expect(r.reg(v0)).To(Equal(uint64(4)))
			Expect(r.cpu.Mode()).To(Equal(emu.ModeUser))
			Expect(r.cpu.Statistics().UserCycles).To(Equal(uint64(1)))
		})

		It("should reject 64-bit instructions in 32-bit user mode", func() {
			r.load(0x3000, daddu(v0, zero, zero))
			r.cpu.SetPC(0)

			Expect(r.step(1).Exception).To(Equal(emu.ExcRI))
			Expect(r.cpu.CP0(emu.CP0EPC)).To(BeZero())
			Expect(r.cpu.RegFile().PC).To(Equal(uint64(general)))
		})

		It("should raise an address error for kernel addresses", func() {
			r.load(0x3000, lui(t1, 0x8000), lw(t0, t1, 0))
			r.cpu.SetPC(0)

			Expect(r.step(2).Exception).To(Equal(emu.ExcAdEL))
			Expect(r.cpu.CP0(emu.CP0BadVAddr)).To(Equal(uint64(0xffffffff80000000)))
		})

		It("should refuse CP0 access", func() {
			r.load(0x3000, mfc0(t0, emu.CP0Status))
			r.cpu.SetPC(0)

			Expect(r.step(1).Exception).To(Equal(emu.ExcCpU))
			Expect(r.cpu.CP0(emu.CP0Cause) & emu.CauseCE).To(BeZero())
		})
	})

	Describe("simulator control instructions", func() {
		It("should halt on _XHLT", func() {
			r.run(xhlt())
			Expect(r.step(1).Halted).To(BeTrue())
			Expect(r.cpu.Halted()).To(BeTrue())
		})

		It("should not execute anything once halted", func() {
			r.run(addiu(t0, zero, 3), xhlt(), addiu(t0, zero, 7))
			r.step(2)
			pc := r.cpu.RegFile().PC

			Expect(r.step(1).Halted).To(BeTrue())
			Expect(r.cpu.RegFile().PC).To(Equal(pc))
			Expect(r.reg(t0)).To(Equal(uint64(3)))
		})

		It("should request a break on _XINT", func() {
			r.run(xint())
			Expect(r.step(1).Break).To(BeTrue())
		})

		It("should decode them as reserved when disabled", func() {
			r = newRig(emu.WithSpecificInstructions(false))
			r.run(xhlt())

			res := r.step(1)
			Expect(res.Halted).To(BeFalse())
			Expect(res.Exception).To(Equal(emu.ExcRI))
		})
	})
})

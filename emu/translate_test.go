package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/d-iii-s/msim-sub002/emu"
)

var _ = Describe("Address translation", func() {
	var cpu *emu.CPU

	BeforeEach(func() {
		cpu = newRig().cpu
		// A non-zero ASID keeps cleared TLB entries from matching.
		cpu.SetCP0(emu.CP0EntryHi, 1)
	})

	type route struct {
		status uint64
		virt   uint64
		phys   uint64
		exc    emu.Exception
	}

	const (
		kernel32   = 0
		kernel64   = emu.StatusKX
		super32    = 1 << 3
		user32     = 2 << 3
		user64     = 2<<3 | emu.StatusUX
		kernelERL  = emu.StatusERL
		invalidKSU = 3 << 3
	)

	DescribeTable("segment routing",
		func(rt route) {
			cpu.SetCP0(emu.CP0Status, rt.status)
			phys, exc := cpu.Translate(rt.virt, false, true)
			Expect(exc).To(Equal(rt.exc))
			if rt.exc == emu.ExcNone {
				Expect(phys).To(Equal(rt.phys))
			}
		},
		Entry("kseg0", route{kernel32, 0xffffffff80001234, 0x1234, emu.ExcNone}),
		Entry("kseg0 without sign extension", route{kernel32, 0x80001234, 0x1234, emu.ExcNone}),
		Entry("kseg1", route{kernel32, 0xffffffffa0001234, 0x1234, emu.ExcNone}),
		Entry("kuseg refill", route{kernel32, 0x00001000, 0, emu.ExcTLBLRefill}),
		Entry("kuseg with ERL", route{kernelERL, 0x00401000, 0x00401000, emu.ExcNone}),
		Entry("ksseg refill", route{kernel32, 0xffffffffc0000000, 0, emu.ExcTLBLRefill}),
		Entry("kseg3 refill", route{kernel32, 0xffffffffe0000000, 0, emu.ExcTLBLRefill}),
		Entry("supervisor kseg0", route{super32, 0xffffffff80000000, 0, emu.ExcAdEL}),
		Entry("supervisor sseg", route{super32, 0xffffffffc0000000, 0, emu.ExcTLBLRefill}),
		Entry("user kseg0", route{user32, 0xffffffff80000000, 0, emu.ExcAdEL}),
		Entry("user useg", route{user32, 0x7ffff000, 0, emu.ExcTLBLRefill}),
		Entry("ckseg0", route{kernel64, 0xffffffff80001234, 0x1234, emu.ExcNone}),
		Entry("ckseg1", route{kernel64, 0xffffffffa0001234, 0x1234, emu.ExcNone}),
		Entry("64-bit hole", route{kernel64, 0x0000010000000000, 0, emu.ExcAdEL}),
		Entry("64-bit user above xuseg", route{user64, 0x4000000000000000, 0, emu.ExcAdEL}),
		Entry("xuseg refill", route{user64, 0x0000000000001000, 0, emu.ExcTLBLRefill}),
		Entry("invalid KSU", route{invalidKSU, 0xffffffff80000000, 0, emu.ExcAdEL}),
	)

	It("should fill BadVAddr, Context and EntryHi on a noisy refill", func() {
		cpu.SetCP0(emu.CP0Status, 0)
		cpu.SetCP0(emu.CP0Context, 0xff800000)
		cpu.SetCP0(emu.CP0EntryHi, 0x42)

		_, exc := cpu.Translate(0x00456789, false, true)
		Expect(exc).To(Equal(emu.ExcTLBLRefill))

		Expect(cpu.CP0(emu.CP0BadVAddr)).To(Equal(uint64(0x00456789)))
		Expect(cpu.CP0(emu.CP0Context)).To(Equal(uint64(0xff800000 | 0x00456000>>9)))
		Expect(cpu.CP0(emu.CP0EntryHi)).To(Equal(uint64(0x00456000 | 0x42)))
		Expect(cpu.Statistics().TLBRefill).To(Equal(uint64(1)))
	})

	It("should leave CP0 alone on a quiet translation", func() {
		cpu.SetCP0(emu.CP0Status, 2<<3)

		_, exc := cpu.Translate(0xffffffff80000000, false, false)
		Expect(exc).To(Equal(emu.ExcAdEL))
		Expect(cpu.CP0(emu.CP0BadVAddr)).To(BeZero())

		_, exc = cpu.Translate(0x1000, false, false)
		Expect(exc).To(Equal(emu.ExcTLBLRefill))
		Expect(cpu.CP0(emu.CP0BadVAddr)).To(BeZero())
		Expect(cpu.Statistics().TLBRefill).To(BeZero())
	})

	It("should report a write to a clean page as modified", func() {
		cpu.SetCP0(emu.CP0Status, 0)
		cpu.TLB().Entries[0] = emu.TLBEntry{
			Mask:   emu.EntryHiVPN2,
			Global: true,
			Pages:  [2]emu.TLBPage{{PFN: 0x5000, Valid: true}},
		}

		phys, exc := cpu.Translate(0x0123, false, true)
		Expect(exc).To(Equal(emu.ExcNone))
		Expect(phys).To(Equal(uint64(0x5123)))

		_, exc = cpu.Translate(0x0123, true, true)
		Expect(exc).To(Equal(emu.ExcMod))
		Expect(cpu.Statistics().TLBModified).To(Equal(uint64(1)))
	})

	It("should bypass the TLB after a shutdown", func() {
		cpu.SetCP0(emu.CP0Status, emu.StatusTS)

		phys, exc := cpu.Translate(0x00123456, false, true)
		Expect(exc).To(Equal(emu.ExcNone))
		Expect(phys).To(Equal(uint64(0x00123456)))
	})

	isUnsupported := func(v interface{}) bool {
		fe, ok := v.(*emu.FatalError)
		return ok && errors.Is(fe, emu.ErrUnsupported)
	}

	It("should refuse xkphys", func() {
		cpu.SetCP0(emu.CP0Status, emu.StatusKX)
		Expect(func() {
			cpu.Translate(0x9000000000001000, false, true)
		}).To(PanicWith(Satisfy(isUnsupported)))
	})

	It("should refuse mapped 64-bit addresses beyond the 32-bit range", func() {
		cpu.SetCP0(emu.CP0Status, emu.StatusKX)
		Expect(func() {
			cpu.Translate(0x0000000100000000, false, true)
		}).To(PanicWith(Satisfy(isUnsupported)))
	})

	It("should report the privilege level", func() {
		cpu.SetCP0(emu.CP0Status, 2<<3)
		Expect(cpu.Mode()).To(Equal(emu.ModeUser))
		Expect(cpu.Mode().String()).To(Equal("user"))

		cpu.SetCP0(emu.CP0Status, 2<<3|emu.StatusEXL)
		Expect(cpu.Mode()).To(Equal(emu.ModeKernel))
	})
})

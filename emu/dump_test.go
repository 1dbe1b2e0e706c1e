package emu_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/insts"
)

var _ = Describe("Dumps", func() {
	var (
		r   *rig
		out *bytes.Buffer
	)

	BeforeEach(func() {
		r = newRig()
		out = &bytes.Buffer{}
	})

	It("should print registers five to a line", func() {
		r.cpu.RegFile().WriteReg(a0, 0x1234)
		r.cpu.RegFile().HI = 0xabc
		r.cpu.DumpRegisters(out, insts.NamesABI)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(9))
		Expect(lines[0]).To(Equal("processor 0"))
		Expect(lines[1]).To(ContainSubstring(" a0 0000000000001234"))
		Expect(lines[7]).To(ContainSubstring("pc ffffffffbfc00000"))
		Expect(lines[8]).To(ContainSubstring("hi 0000000000000abc"))
	})

	It("should use the requested register names", func() {
		r.cpu.DumpRegisters(out, insts.NamesNumeric)
		Expect(out.String()).To(ContainSubstring("r31"))
		Expect(out.String()).NotTo(ContainSubstring(" ra "))
	})

	It("should skip reserved CP0 registers", func() {
		r.cpu.DumpCP0(out)

		Expect(out.String()).To(ContainSubstring("status"))
		Expect(out.String()).To(ContainSubstring("errorepc"))
		Expect(out.String()).NotTo(ContainSubstring("res_7"))
		Expect(out.String()).NotTo(ContainSubstring("res_31"))
	})

	It("should print TLB entries with their page size", func() {
		r.cpu.TLB().Entries[4] = emu.TLBEntry{
			Mask:   0xffff8000,
			VPN2:   0x00010000,
			Global: true,
		}
		r.cpu.DumpTLB(out)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(2 + emu.TLBEntries))
		Expect(lines[6]).To(ContainSubstring("00010000      16k 1"))
	})
})

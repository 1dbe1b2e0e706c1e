package emu_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/loader"
	"github.com/d-iii-s/msim-sub002/physmem"
)

func image(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// program is a single executable segment at codeBase.
func program(words ...uint32) *loader.Program {
	return &loader.Program{
		EntryPoint: codeBase,
		Segments: []loader.Segment{{
			VirtAddr: codeBase,
			Data:     image(words...),
			MemSize:  uint64(4 * len(words)),
			Flags:    loader.SegmentFlagRead | loader.SegmentFlagExecute,
		}},
	}
}

var _ = Describe("Machine", func() {
	var (
		mem *physmem.Memory
		m   *emu.Machine
		ctx context.Context
	)

	newMachine := func(n int) {
		m = emu.NewMachine(mem, n,
			emu.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			emu.WithOutput(io.Discard),
		)
	}

	BeforeEach(func() {
		mem = physmem.NewMemory()
		_, err := mem.AddRAM(0, 0x100000)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		newMachine(1)
	})

	It("should run a program until it halts", func() {
		Expect(m.LoadProgram(program(
			addiu(t0, zero, 5),
			addiu(t0, t0, 5),
			xhlt(),
		))).To(Succeed())

		n, err := m.Run(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(3)))
		Expect(m.Halted()).To(BeTrue())
		Expect(m.Steps()).To(Equal(uint64(3)))
		Expect(m.CPU(0).RegFile().ReadReg(t0)).To(Equal(uint64(10)))
	})

	It("should zero the uninitialized part of a segment", func() {
		mem.Write32(0, codePhys+4, 0xdeadbeef, true)
		prog := program(xhlt())
		prog.Segments[0].MemSize = 8

		Expect(m.LoadProgram(prog)).To(Succeed())
		Expect(mem.Read32(0, codePhys+4, true)).To(BeZero())
	})

	It("should refuse segments outside the unmapped kernel segments", func() {
		prog := program(xhlt())
		prog.Segments[0].VirtAddr = 0x00400000

		err := m.LoadProgram(prog)
		Expect(errors.Is(err, loader.ErrUnmappedLoad)).To(BeTrue())
	})

	It("should refuse segments without memory behind them", func() {
		prog := program(xhlt())
		prog.Segments[0].VirtAddr = 0xffffffff81000000

		err := m.LoadProgram(prog)
		Expect(errors.Is(err, physmem.ErrNoMemory)).To(BeTrue())
	})

	It("should stop after the step limit", func() {
		Expect(m.LoadProgram(program(beq(zero, zero, -1), nop()))).To(Succeed())

		n, err := m.Run(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(10)))
		Expect(m.Halted()).To(BeFalse())
	})

	It("should stop when the context is cancelled", func() {
		Expect(m.LoadProgram(program(beq(zero, zero, -1), nop()))).To(Succeed())

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		n, err := m.Run(cancelled, 0)
		Expect(err).To(MatchError(context.Canceled))
		Expect(n).To(BeZero())
	})

	It("should return ErrBreak when the guest asks for the console", func() {
		Expect(m.LoadProgram(program(nop(), xint(), nop()))).To(Succeed())

		n, err := m.Run(ctx, 0)
		Expect(err).To(MatchError(emu.ErrBreak))
		Expect(n).To(Equal(uint64(2)))
	})

	It("should surface fatal errors", func() {
		cpu := m.CPU(0)
		cpu.SetCP0(emu.CP0Status, emu.StatusERL|emu.StatusBEV|emu.StatusKX)
		cpu.SetPC(0x9000000000001000)

		_, err := m.Run(ctx, 0)
		Expect(errors.Is(err, emu.ErrUnsupported)).To(BeTrue())

		var fe *emu.FatalError
		Expect(errors.As(err, &fe)).To(BeTrue())
		Expect(fe.CPU).To(Equal(0))
		Expect(fe.PC).To(Equal(uint64(0x9000000000001000)))
	})

	Context("with two processors", func() {
		BeforeEach(func() {
			newMachine(2)
		})

		It("should step every processor", func() {
			Expect(m.LoadProgram(program(addiu(t0, zero, 7), nop()))).To(Succeed())

			m.Step()
			for i, cpu := range m.CPUs() {
				Expect(cpu.ID()).To(Equal(i))
				Expect(cpu.RegFile().ReadReg(t0)).To(Equal(uint64(7)))
			}
		})

		It("should stop the step at the processor that halts", func() {
			Expect(m.LoadProgram(program(xhlt()))).To(Succeed())

			res := m.Step()
			Expect(res.Halted).To(BeTrue())
			Expect(m.CPU(1).RegFile().PC).To(Equal(uint64(codeBase)))
		})

		It("should route interrupts to one processor", func() {
			m.InterruptUp(1, 3)
			Expect(m.CPU(1).CP0(emu.CP0Cause) & (1 << 11)).NotTo(BeZero())
			Expect(m.CPU(0).CP0(emu.CP0Cause) & (1 << 11)).To(BeZero())

			m.InterruptDown(1, 3)
			Expect(m.CPU(1).CP0(emu.CP0Cause) & (1 << 11)).To(BeZero())
		})

		It("should reset every processor", func() {
			Expect(m.LoadProgram(program(nop(), nop()))).To(Succeed())
			m.Step()
			m.Reset()

			Expect(m.Steps()).To(BeZero())
			for _, cpu := range m.CPUs() {
				Expect(cpu.RegFile().PC).To(Equal(uint64(emu.ResetVector)))
			}
		})
	})
})

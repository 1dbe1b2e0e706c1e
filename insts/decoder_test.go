package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/d-iii-s/msim-sub002/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("Main opcode table", func() {
		// addiu sp, sp, -16
		It("should decode ADDIU", func() {
			Expect(decoder.Decode(0x27bdfff0)).To(Equal(insts.OpADDIU))
		})

		It("should decode LW", func() {
			Expect(decoder.Decode(0x8fa80004)).To(Equal(insts.OpLW))
		})

		It("should decode LUI and ORI", func() {
			Expect(decoder.Decode(0x3c081234)).To(Equal(insts.OpLUI))
			Expect(decoder.Decode(0x350800ff)).To(Equal(insts.OpORI))
		})

		It("should decode J", func() {
			Expect(decoder.Decode(0x08000100)).To(Equal(insts.OpJ))
		})

		It("should decode unused opcodes as reserved", func() {
			Expect(decoder.Decode(0x70000000)).To(Equal(insts.OpReserved))
			Expect(decoder.Decode(0x4c000000)).To(Equal(insts.OpReserved))
		})
	})

	Describe("SPECIAL table", func() {
		It("should decode ADD", func() {
			Expect(decoder.Decode(0x012a4020)).To(Equal(insts.OpADD))
		})

		It("should decode the all-zero word as SLL", func() {
			Expect(decoder.Decode(0x00000000)).To(Equal(insts.OpSLL))
		})

		It("should decode unused SPECIAL functions as reserved", func() {
			Expect(decoder.Decode(0x00000001)).To(Equal(insts.OpReserved))
		})
	})

	Describe("REGIMM table", func() {
		It("should decode BGEZAL by the rt field", func() {
			Expect(decoder.Decode(0x04110004)).To(Equal(insts.OpBGEZAL))
		})

		It("should decode TEQI", func() {
			Expect(decoder.Decode(0x040c0000)).To(Equal(insts.OpTEQI))
		})
	})

	Describe("Coprocessor 0", func() {
		It("should decode moves by the rs field", func() {
			Expect(decoder.Decode(0x40886000)).To(Equal(insts.OpMTC0))
			Expect(decoder.Decode(0x401a6800)).To(Equal(insts.OpMFC0))
		})

		It("should decode BC0 branches by the rt field", func() {
			Expect(decoder.Decode(0x41000003)).To(Equal(insts.OpBC0F))
			Expect(decoder.Decode(0x41010003)).To(Equal(insts.OpBC0T))
		})

		It("should decode CO functions", func() {
			Expect(decoder.Decode(0x42000001)).To(Equal(insts.OpTLBR))
			Expect(decoder.Decode(0x42000002)).To(Equal(insts.OpTLBWI))
			Expect(decoder.Decode(0x42000006)).To(Equal(insts.OpTLBWR))
			Expect(decoder.Decode(0x42000008)).To(Equal(insts.OpTLBP))
			Expect(decoder.Decode(0x42000018)).To(Equal(insts.OpERET))
			Expect(decoder.Decode(0x42000020)).To(Equal(insts.OpWAIT))
			// rs 0x11..0x1f still carry the CO bit.
			Expect(decoder.Decode(0x43e00018)).To(Equal(insts.OpERET))
		})

		It("should treat unused CO functions as warnings except slot 16", func() {
			Expect(decoder.Decode(0x42000003)).To(Equal(insts.OpWarning))
			Expect(decoder.Decode(0x4200003f)).To(Equal(insts.OpWarning))
			Expect(decoder.Decode(0x42000010)).To(Equal(insts.OpReserved))
		})
	})

	Describe("Coprocessors 1 and 2", func() {
		It("should decode moves and branches", func() {
			Expect(decoder.Decode(0x44000000)).To(Equal(insts.OpMFC1))
			Expect(decoder.Decode(0x45000000)).To(Equal(insts.OpBC1F))
			Expect(decoder.Decode(0x48000000)).To(Equal(insts.OpMFC2))
			Expect(decoder.Decode(0x49030000)).To(Equal(insts.OpBC2TL))
		})

		It("should decode unused rs values as reserved", func() {
			Expect(decoder.Decode(0x48200000)).To(Equal(insts.OpReserved))
		})
	})

	Describe("Simulator control instructions", func() {
		It("should decode them when enabled", func() {
			Expect(decoder.Decode(0x00000028)).To(Equal(insts.OpXHLT))
			Expect(decoder.Decode(0x00000039)).To(Equal(insts.OpXTRC))
		})

		It("should decode them as reserved when disabled", func() {
			d := insts.NewDecoder(insts.WithSpecificInstructions(false))
			Expect(d.SpecificInstructions()).To(BeFalse())
			Expect(d.Decode(0x00000028)).To(Equal(insts.OpReserved))
			Expect(d.Decode(0x0000000e)).To(Equal(insts.OpReserved))
		})

		It("should never gate the interactive request", func() {
			d := insts.NewDecoder(insts.WithSpecificInstructions(false))
			Expect(d.Decode(0x00000029)).To(Equal(insts.OpXINT))
		})
	})
})

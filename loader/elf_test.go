package loader_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/d-iii-s/msim-sub002/loader"
)

type testSegment struct {
	vaddr   uint32
	data    []byte
	memSize uint32
	flags   uint32
}

const (
	emMIPS   = 8
	emX86_64 = 62
	pfX      = 1
	pfW      = 2
	pfR      = 4
)

// buildELF32 builds a minimal ELF32 executable with one PT_LOAD header per
// segment.
func buildELF32(order binary.ByteOrder, machine uint16, entry uint32, segs []testSegment) []byte {
	const ehsize, phentsize = 52, 32

	hdr := make([]byte, ehsize)
	copy(hdr[0:4], []byte{0x7f, 'E', 'L', 'F'})
	hdr[4] = 1 // ELFCLASS32
	hdr[5] = 1 // little endian
	if order == binary.BigEndian {
		hdr[5] = 2
	}
	hdr[6] = 1
	order.PutUint16(hdr[16:18], 2) // ET_EXEC
	order.PutUint16(hdr[18:20], machine)
	order.PutUint32(hdr[20:24], 1)
	order.PutUint32(hdr[24:28], entry)
	order.PutUint32(hdr[28:32], ehsize)
	order.PutUint16(hdr[40:42], ehsize)
	order.PutUint16(hdr[42:44], phentsize)
	order.PutUint16(hdr[44:46], uint16(len(segs)))

	var phdrs, body bytes.Buffer
	offset := uint32(ehsize + phentsize*len(segs))
	for _, s := range segs {
		ph := make([]byte, phentsize)
		order.PutUint32(ph[0:4], 1) // PT_LOAD
		order.PutUint32(ph[4:8], offset)
		order.PutUint32(ph[8:12], s.vaddr)
		order.PutUint32(ph[12:16], s.vaddr&0x1fffffff)
		order.PutUint32(ph[16:20], uint32(len(s.data)))
		order.PutUint32(ph[20:24], s.memSize)
		order.PutUint32(ph[24:28], s.flags)
		order.PutUint32(ph[28:32], 0x1000)
		phdrs.Write(ph)
		body.Write(s.data)
		offset += uint32(len(s.data))
	}

	return append(append(hdr, phdrs.Bytes()...), body.Bytes()...)
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	write := func(name string, image []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, image, 0o644)).To(Succeed())
		return path
	}

	// lui t0, 0x1234; _xhlt
	code := []byte{0x34, 0x12, 0x08, 0x3c, 0x28, 0x00, 0x00, 0x00}

	Describe("Load", func() {
		Context("with a valid little-endian MIPS image", func() {
			var path string

			BeforeEach(func() {
				path = write("kernel", buildELF32(binary.LittleEndian, emMIPS, 0x80000400, []testSegment{
					{vaddr: 0x80000400, data: code, memSize: uint32(len(code)), flags: pfR | pfX},
				}))
			})

			It("should sign-extend the entry point", func() {
				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0xffffffff80000400)))
			})

			It("should load segment contents", func() {
				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))
				Expect(prog.Segments[0].Data).To(Equal(code))
				Expect(prog.Segments[0].VirtAddr).To(Equal(uint64(0xffffffff80000400)))
				Expect(prog.Segments[0].Flags & loader.SegmentFlagExecute).NotTo(BeZero())
			})

			It("should fold kseg0 to a physical address", func() {
				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				phys, err := prog.Segments[0].PhysAddr()
				Expect(err).NotTo(HaveOccurred())
				Expect(phys).To(Equal(uint64(0x400)))
			})
		})

		It("should keep BSS sizes", func() {
			data := []byte{1, 2, 3, 4}
			prog, err := loader.Parse(bytes.NewReader(buildELF32(binary.LittleEndian, emMIPS, 0x80000000, []testSegment{
				{vaddr: 0x80000000, data: code, memSize: uint32(len(code)), flags: pfR | pfX},
				{vaddr: 0x80001000, data: data, memSize: 1024, flags: pfR | pfW},
			})))
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[1].Data).To(Equal(data))
			Expect(prog.Segments[1].MemSize).To(Equal(uint64(1024)))
			Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})

		It("should reject a missing file", func() {
			_, err := loader.Load("/nonexistent/path/to/kernel")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("failed to open"))
		})

		It("should reject a file that is not ELF", func() {
			_, err := loader.Load(write("not-elf", []byte("not an elf file")))
			Expect(err).To(HaveOccurred())
		})

		It("should reject other machines", func() {
			_, err := loader.Parse(bytes.NewReader(buildELF32(binary.LittleEndian, emX86_64, 0, []testSegment{
				{vaddr: 0x80000000, data: code, memSize: 8, flags: pfR},
			})))
			Expect(err).To(MatchError(loader.ErrNotMIPS))
		})

		It("should reject big-endian images", func() {
			_, err := loader.Parse(bytes.NewReader(buildELF32(binary.BigEndian, emMIPS, 0x80000000, []testSegment{
				{vaddr: 0x80000000, data: code, memSize: 8, flags: pfR},
			})))
			Expect(err).To(MatchError(loader.ErrBigEndian))
		})

		It("should reject images without loadable segments", func() {
			_, err := loader.Parse(bytes.NewReader(buildELF32(binary.LittleEndian, emMIPS, 0x80000000, nil)))
			Expect(err).To(MatchError(loader.ErrNoSegments))
		})
	})

	Describe("Physical", func() {
		DescribeTable("folding unmapped kernel addresses",
			func(virt, phys uint64) {
				Expect(loader.Physical(virt)).To(Equal(phys))
			},
			Entry("kseg0", uint64(0x80001000), uint64(0x1000)),
			Entry("kseg1", uint64(0xbfc00000), uint64(0x1fc00000)),
			Entry("sign-extended kseg0", uint64(0xffffffff80000400), uint64(0x400)),
			Entry("sign-extended kseg1", uint64(0xffffffffa0100000), uint64(0x100000)),
		)

		DescribeTable("rejecting mapped addresses",
			func(virt uint64) {
				_, err := loader.Physical(virt)
				Expect(err).To(MatchError(loader.ErrUnmappedLoad))
			},
			Entry("kuseg", uint64(0x00400000)),
			Entry("kseg2", uint64(0xc0000000)),
			Entry("xkphys", uint64(0x9000000000000000)),
		)
	})
})

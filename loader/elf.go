// Package loader provides ELF image loading for little-endian MIPS
// executables.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// SegmentFlags mirrors the PF_X, PF_W and PF_R bits of a program header.
type SegmentFlags uint32

// Segment permissions.
const (
	SegmentFlagExecute SegmentFlags = 1 << iota
	SegmentFlagWrite
	SegmentFlagRead
)

// Errors returned for images the simulator cannot run.
var (
	ErrNotMIPS      = errors.New("not a MIPS ELF file")
	ErrBigEndian    = errors.New("big-endian images are not supported")
	ErrNoSegments   = errors.New("no loadable segments")
	ErrUnmappedLoad = errors.New("segment address is not in kseg0 or kseg1")
)

// Segment is one PT_LOAD program header with its file contents.
type Segment struct {
	VirtAddr uint64
	Data     []byte

	// MemSize covers the zero-filled tail past len(Data).
	MemSize uint64
	Flags   SegmentFlags
}

// PhysAddr returns the physical address a segment is loaded to. Only the
// unmapped kernel segments kseg0 and kseg1 are accepted, in both their
// 32-bit and sign-extended forms.
func (s *Segment) PhysAddr() (uint64, error) {
	return Physical(s.VirtAddr)
}

// Program represents a loaded ELF image ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
}

// Physical folds a kseg0 or kseg1 virtual address to its physical address.
func Physical(virt uint64) (uint64, error) {
	low := uint32(virt)
	if virt>>32 != 0 && virt>>32 != 0xffffffff {
		return 0, fmt.Errorf("%#x: %w", virt, ErrUnmappedLoad)
	}
	if low < 0x80000000 || low >= 0xc0000000 {
		return 0, fmt.Errorf("%#x: %w", virt, ErrUnmappedLoad)
	}
	return uint64(low & 0x1fffffff), nil
}

// Load parses a MIPS ELF image and returns a Program struct ready for
// loading into physical memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parse(f)
}

// Parse reads a MIPS ELF image from r.
func Parse(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	return parse(f)
}

func parse(f *elf.File) (*Program, error) {
	if f.Machine != elf.EM_MIPS {
		return nil, fmt.Errorf("%w (machine type: %v)", ErrNotMIPS, f.Machine)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, ErrBigEndian
	}

	entry := f.Entry
	if f.Class == elf.ELFCLASS32 {
		entry = uint64(int64(int32(uint32(entry))))
	}

	prog := &Program{EntryPoint: entry}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Memsz == 0 {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		vaddr := phdr.Vaddr
		if f.Class == elf.ELFCLASS32 {
			vaddr = uint64(int64(int32(uint32(vaddr))))
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	if len(prog.Segments) == 0 {
		return nil, ErrNoSegments
	}

	return prog, nil
}

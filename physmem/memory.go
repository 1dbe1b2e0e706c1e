// Package physmem provides the physical memory shared by all simulated
// processors: RAM and ROM areas split into frames, a device fallback for
// unbacked addresses and the load-linked registry.
package physmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Frame geometry.
const (
	FrameWidth = 12
	FrameSize  = 1 << FrameWidth
	FrameMask  = FrameSize - 1
)

// Errors returned when areas are added.
var (
	ErrUnaligned = errors.New("area is not frame aligned")
	ErrOverlap   = errors.New("area overlaps an existing area")
	ErrNoMemory  = errors.New("address is not backed by memory")
)

// AreaType is the kind of a memory area.
type AreaType int

// Area kinds.
const (
	AreaRAM AreaType = iota
	AreaROM
)

func (t AreaType) String() string {
	if t == AreaROM {
		return "rom"
	}
	return "ram"
}

// Area is a contiguous block of physical memory.
type Area struct {
	Type     AreaType
	Writable bool
	Start    uint64
	Data     []byte
}

// Size returns the size of the area in bytes.
func (a *Area) Size() uint64 { return uint64(len(a.Data)) }

// Frame is one FrameSize page of an area.
type Frame struct {
	area *Area
	pfn  uint64
	data []byte
}

// PFN returns the physical frame number.
func (f *Frame) PFN() uint64 { return f.pfn }

// Addr returns the physical address of the first byte of the frame.
func (f *Frame) Addr() uint64 { return f.pfn << FrameWidth }

// Data returns the backing bytes of the frame.
func (f *Frame) Data() []byte { return f.data }

// Writable reports whether protected writes may modify the frame.
func (f *Frame) Writable() bool { return f.area.Writable }

// Word32 returns the little-endian word at offset within the frame.
func (f *Frame) Word32(offset uint64) uint32 {
	return binary.LittleEndian.Uint32(f.data[offset&FrameMask&^3:])
}

// FrameWatcher is notified whenever the contents of a frame change.
type FrameWatcher interface {
	InvalidateFrame(pfn uint64)
}

// Memory is the physical address space.
type Memory struct {
	areas    []*Area
	frames   map[uint64]*Frame
	devices  []Device
	watchers []FrameWatcher
	links    *LinkRegistry
}

// NewMemory creates an empty physical address space.
func NewMemory() *Memory {
	return &Memory{
		frames: make(map[uint64]*Frame),
		links:  NewLinkRegistry(),
	}
}

// Links returns the load-linked registry.
func (m *Memory) Links() *LinkRegistry { return m.links }

// Areas returns the areas sorted by start address.
func (m *Memory) Areas() []*Area { return m.areas }

// AddRAM adds a writable area of size bytes at start.
func (m *Memory) AddRAM(start, size uint64) (*Area, error) {
	return m.AddArea(&Area{
		Type:     AreaRAM,
		Writable: true,
		Start:    start,
		Data:     make([]byte, size),
	})
}

// AddROM adds a read-only area holding image, padded with zeroes to a
// whole number of frames.
func (m *Memory) AddROM(start uint64, image []byte) (*Area, error) {
	size := (uint64(len(image)) + FrameMask) &^ FrameMask
	if size == 0 {
		size = FrameSize
	}
	data := make([]byte, size)
	copy(data, image)

	return m.AddArea(&Area{
		Type:  AreaROM,
		Start: start,
		Data:  data,
	})
}

// AddArea maps a in the address space.
func (m *Memory) AddArea(a *Area) (*Area, error) {
	if a.Start&FrameMask != 0 || a.Size()&FrameMask != 0 || a.Size() == 0 {
		return nil, fmt.Errorf("area %#x+%#x: %w", a.Start, a.Size(), ErrUnaligned)
	}

	for _, other := range m.areas {
		if a.Start < other.Start+other.Size() && other.Start < a.Start+a.Size() {
			return nil, fmt.Errorf("area %#x+%#x: %w", a.Start, a.Size(), ErrOverlap)
		}
	}

	first := a.Start >> FrameWidth
	count := a.Size() >> FrameWidth
	for i := uint64(0); i < count; i++ {
		m.frames[first+i] = &Frame{
			area: a,
			pfn:  first + i,
			data: a.Data[i<<FrameWidth : (i+1)<<FrameWidth],
		}
	}

	m.areas = append(m.areas, a)
	sort.Slice(m.areas, func(i, j int) bool { return m.areas[i].Start < m.areas[j].Start })

	return a, nil
}

// AddDevice registers a device that serves accesses to unbacked addresses.
func (m *Memory) AddDevice(d Device) {
	m.devices = append(m.devices, d)
}

// Subscribe registers w for frame change notifications.
func (m *Memory) Subscribe(w FrameWatcher) {
	m.watchers = append(m.watchers, w)
}

// Unsubscribe removes w from the notification list.
func (m *Memory) Unsubscribe(w FrameWatcher) {
	for i, x := range m.watchers {
		if x == w {
			m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
			return
		}
	}
}

// FindFrame returns the frame containing addr, or nil.
func (m *Memory) FindFrame(addr uint64) *Frame {
	return m.frames[addr>>FrameWidth]
}

// Load copies data to addr regardless of write protection. It is used to
// place boot images.
func (m *Memory) Load(addr uint64, data []byte) error {
	for len(data) > 0 {
		f := m.FindFrame(addr)
		if f == nil {
			return fmt.Errorf("load at %#x: %w", addr, ErrNoMemory)
		}
		n := copy(f.data[addr&FrameMask:], data)
		m.changed(f)
		data = data[n:]
		addr += uint64(n)
	}
	return nil
}

func (m *Memory) changed(f *Frame) {
	for _, w := range m.watchers {
		w.InvalidateFrame(f.pfn)
	}
}

// slot returns the bytes backing an aligned access of size bytes.
func (m *Memory) slot(addr uint64, size uint64) (*Frame, []byte) {
	f := m.FindFrame(addr)
	if f == nil {
		return nil, nil
	}
	off := addr & FrameMask
	if off+size > FrameSize {
		return nil, nil
	}
	return f, f.data[off : off+size]
}

func (m *Memory) readDevice(procID int, addr uint64, size int) uint64 {
	for _, d := range m.devices {
		if v, ok := d.Read(procID, addr, size); ok {
			return v
		}
	}
	return defaultValue(size)
}

func (m *Memory) writeDevice(procID int, addr uint64, size int, val uint64) bool {
	for _, d := range m.devices {
		if d.Write(procID, addr, size, val) {
			return true
		}
	}
	return false
}

func defaultValue(size int) uint64 {
	if size >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * size)) - 1
}

// Read8 reads a byte. Addresses without memory or device behind them
// read as all ones.
func (m *Memory) Read8(procID int, addr uint64, protected bool) uint8 {
	if _, b := m.slot(addr, 1); b != nil {
		return b[0]
	}
	return uint8(m.readDevice(procID, addr, 1))
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(procID int, addr uint64, protected bool) uint16 {
	if _, b := m.slot(addr, 2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return uint16(m.readDevice(procID, addr, 2))
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(procID int, addr uint64, protected bool) uint32 {
	if _, b := m.slot(addr, 4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return uint32(m.readDevice(procID, addr, 4))
}

// Read64 reads a little-endian doubleword.
func (m *Memory) Read64(procID int, addr uint64, protected bool) uint64 {
	if _, b := m.slot(addr, 8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return m.readDevice(procID, addr, 8)
}

// write stores into memory, or hands the access to devices. Protected
// writes to read-only frames fail. Successful memory writes break any
// load-linked reservation on the written bytes and notify watchers.
func (m *Memory) write(procID int, addr uint64, size int, val uint64, protected bool) bool {
	f, b := m.slot(addr, uint64(size))
	if f == nil {
		return m.writeDevice(procID, addr, size, val)
	}
	if protected && !f.Writable() {
		return false
	}

	switch size {
	case 1:
		b[0] = uint8(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(val))
	default:
		binary.LittleEndian.PutUint64(b, val)
	}

	m.links.Invalidate(addr, uint64(size))
	m.changed(f)
	return true
}

// Write8 writes a byte.
func (m *Memory) Write8(procID int, addr uint64, val uint8, protected bool) bool {
	return m.write(procID, addr, 1, uint64(val), protected)
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(procID int, addr uint64, val uint16, protected bool) bool {
	return m.write(procID, addr, 2, uint64(val), protected)
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(procID int, addr uint64, val uint32, protected bool) bool {
	return m.write(procID, addr, 4, uint64(val), protected)
}

// Write64 writes a little-endian doubleword.
func (m *Memory) Write64(procID int, addr uint64, val uint64, protected bool) bool {
	return m.write(procID, addr, 8, val, protected)
}

package physmem

// Device serves physical accesses that no memory area backs. Read and
// Write report whether the device claimed the address.
type Device interface {
	Name() string
	Read(procID int, addr uint64, size int) (uint64, bool)
	Write(procID int, addr uint64, size int, val uint64) bool
}

// Register is a single read/write device register, useful for simple
// memory-mapped peripherals such as a halt or output port.
type Register struct {
	name    string
	addr    uint64
	value   uint64
	onWrite func(procID int, val uint64)
}

// NewRegister creates a device register at addr. onWrite may be nil.
func NewRegister(name string, addr uint64, onWrite func(procID int, val uint64)) *Register {
	return &Register{name: name, addr: addr, onWrite: onWrite}
}

// Name returns the device name.
func (r *Register) Name() string { return r.name }

// Value returns the last written value.
func (r *Register) Value() uint64 { return r.value }

// Read returns the register value when addr matches.
func (r *Register) Read(procID int, addr uint64, size int) (uint64, bool) {
	if addr != r.addr {
		return 0, false
	}
	return r.value, true
}

// Write stores val when addr matches.
func (r *Register) Write(procID int, addr uint64, size int, val uint64) bool {
	if addr != r.addr {
		return false
	}
	r.value = val
	if r.onWrite != nil {
		r.onWrite(procID, val)
	}
	return true
}

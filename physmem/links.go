package physmem

import "sync"

type link struct {
	addr uint64
	size uint64
}

// LinkRegistry tracks load-linked reservations. A reservation belongs to
// one processor and covers an aligned word or doubleword; any write that
// touches it breaks it.
type LinkRegistry struct {
	mu    sync.Mutex
	links map[int]link
}

// NewLinkRegistry creates an empty registry.
func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{links: make(map[int]link)}
}

// Register reserves size bytes at addr for procID, replacing any previous
// reservation of that processor.
func (r *LinkRegistry) Register(procID int, addr, size uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links[procID] = link{addr: addr &^ (size - 1), size: size}
}

// Unregister drops the reservation of procID.
func (r *LinkRegistry) Unregister(procID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.links, procID)
}

// Linked returns the reserved address of procID.
func (r *LinkRegistry) Linked(procID int) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[procID]
	return l.addr, ok
}

// TestAndClear reports whether procID still holds a reservation on addr
// and drops the reservation in any case.
func (r *LinkRegistry) TestAndClear(procID int, addr uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[procID]
	delete(r.links, procID)

	return ok && l.addr == addr&^(l.size-1)
}

// Invalidate breaks every reservation overlapping [addr, addr+size).
func (r *LinkRegistry) Invalidate(addr, size uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, l := range r.links {
		if addr < l.addr+l.size && l.addr < addr+size {
			delete(r.links, id)
		}
	}
}

// Count returns the number of live reservations.
func (r *LinkRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.links)
}

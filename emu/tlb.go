package emu

// TLBPage is one half of a TLB entry.
type TLBPage struct {
	// PFN is the physical address of the page.
	PFN       uint64
	Valid     bool
	Dirty     bool
	Coherency uint8
}

// TLBEntry maps a pair of adjacent virtual pages.
type TLBEntry struct {
	// Mask selects the VPN2 bits compared on lookup.
	Mask   uint64
	VPN2   uint64
	ASID   uint8
	Global bool
	Pages  [2]TLBPage
}

// offsetMask returns the in-page offset bits of the entry's pages.
func (e *TLBEntry) offsetMask() uint64 {
	return (^e.Mask & 0xffffffff) >> 1
}

func (e *TLBEntry) matches(vpn uint64, asid uint8) bool {
	return vpn&e.Mask == e.VPN2 && (e.Global || e.ASID == asid)
}

// TLBResult is the outcome of a TLB lookup.
type TLBResult int

// TLB lookup outcomes.
const (
	TLBHit TLBResult = iota
	TLBRefill
	TLBInvalid
	TLBModified
)

func (r TLBResult) String() string {
	switch r {
	case TLBHit:
		return "hit"
	case TLBRefill:
		return "refill"
	case TLBInvalid:
		return "invalid"
	case TLBModified:
		return "modified"
	}
	return "unknown"
}

// TLB is the fully associative joint TLB.
type TLB struct {
	Entries [TLBEntries]TLBEntry

	// hint is the index of the entry that hit last; scans start there.
	hint int
}

// NewTLB creates a TLB with every entry cleared.
func NewTLB() *TLB {
	return &TLB{}
}

// Reset clears every entry.
func (t *TLB) Reset() {
	*t = TLB{}
}

// Lookup translates the 32-bit virtual address virt for the given ASID.
func (t *TLB) Lookup(virt uint64, asid uint8, write bool) (uint64, TLBResult) {
	virt &= 0xffffffff

	for n := 0; n < TLBEntries; n++ {
		i := (t.hint + n) % TLBEntries
		e := &t.Entries[i]

		if !e.matches(virt, asid) {
			continue
		}

		offset := e.offsetMask()
		sub := 0
		if virt&(offset+1) != 0 {
			sub = 1
		}

		page := &e.Pages[sub]
		if !page.Valid {
			return 0, TLBInvalid
		}
		if write && !page.Dirty {
			return 0, TLBModified
		}

		t.hint = i
		return (page.PFN &^ offset) | (virt & offset), TLBHit
	}

	return 0, TLBRefill
}

// Probe returns the index of the entry matching vpn2 and asid, or -1.
func (t *TLB) Probe(vpn2 uint64, asid uint8) int {
	for i := range t.Entries {
		e := &t.Entries[i]
		if e.VPN2 == vpn2&e.Mask && (e.Global || e.ASID == asid) {
			return i
		}
	}
	return -1
}

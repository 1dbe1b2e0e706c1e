package emu

// Coprocessor 0 register numbers.
const (
	CP0Index    = 0
	CP0Random   = 1
	CP0EntryLo0 = 2
	CP0EntryLo1 = 3
	CP0Context  = 4
	CP0PageMask = 5
	CP0Wired    = 6
	CP0BadVAddr = 8
	CP0Count    = 9
	CP0EntryHi  = 10
	CP0Compare  = 11
	CP0Status   = 12
	CP0Cause    = 13
	CP0EPC      = 14
	CP0PRId     = 15
	CP0Config   = 16
	CP0LLAddr   = 17
	CP0WatchLo  = 18
	CP0WatchHi  = 19
	CP0XContext = 20
	CP0ECC      = 26
	CP0CacheErr = 27
	CP0TagLo    = 28
	CP0TagHi    = 29
	CP0ErrorEPC = 30
)

// Status register fields.
const (
	StatusIE    uint64 = 1 << 0
	StatusEXL   uint64 = 1 << 1
	StatusERL   uint64 = 1 << 2
	StatusKSU   uint64 = 0x18
	StatusUX    uint64 = 1 << 5
	StatusSX    uint64 = 1 << 6
	StatusKX    uint64 = 1 << 7
	StatusIM    uint64 = 0xff00
	StatusDE    uint64 = 1 << 16
	StatusCE    uint64 = 1 << 17
	StatusCH    uint64 = 1 << 18
	StatusSR    uint64 = 1 << 20
	StatusTS    uint64 = 1 << 21
	StatusBEV   uint64 = 1 << 22
	StatusRE    uint64 = 1 << 25
	StatusFR    uint64 = 1 << 26
	StatusRP    uint64 = 1 << 27
	StatusCU0   uint64 = 1 << 28
	StatusCU1   uint64 = 1 << 29
	StatusCU2   uint64 = 1 << 30
	StatusCU3   uint64 = 1 << 31
	StatusMask  uint64 = 0xff77ff1f
	statusKSUSh        = 3
)

// Cause register fields.
const (
	CauseExcCode  uint64 = 0x7c
	CauseIP       uint64 = 0xff00
	CauseIP0      uint64 = 1 << 8
	CauseIP1      uint64 = 1 << 9
	CauseIP7      uint64 = 1 << 15
	CauseCE       uint64 = 0x30000000
	CauseBD       uint64 = 1 << 31
	causeExcSh           = 2
	causeIPSh            = 8
	causeCESh            = 28
	causeWritable        = CauseIP0 | CauseIP1
)

// EntryHi fields.
const (
	EntryHiASID uint64 = 0xff
	EntryHiVPN2 uint64 = 0xffffe000
	EntryHiMask uint64 = 0xfffff0ff
)

// EntryLo fields.
const (
	EntryLoG     uint64 = 1 << 0
	EntryLoV     uint64 = 1 << 1
	EntryLoD     uint64 = 1 << 2
	EntryLoC     uint64 = 0x38
	EntryLoPFN   uint64 = 0x3fffffc0
	EntryLoMask  uint64 = 0x3fffffff
	entryLoCSh          = 3
	entryLoPFNSh        = 6
)

// Context and XContext fields.
const (
	ContextBadVPN2   uint64 = 0x007ffff0
	ContextPTEBase   uint64 = 0xff800000
	ContextMask      uint64 = 0xfffffff0
	XContextBadVPN2  uint64 = 0x7ffffff0
	XContextR        uint64 = 0x180000000
	XContextPTEBase  uint64 = 0xfffffffe00000000
	contextBadVPNSh         = 9
	xcontextRSh             = 31
	xcontextRegionSh        = 62
)

// Index, PageMask, Config and watch fields.
const (
	IndexP        uint64 = 0x80000000
	IndexMask     uint64 = 0x3f
	PageMaskMask  uint64 = 0x01ffe000
	ConfigMask    uint64 = 0xffffefff
	WatchLoR      uint64 = 1 << 1
	WatchLoW      uint64 = 1 << 0
	WatchLoPAddr0 uint64 = 0xfffffff8
	WatchLoMask   uint64 = 0xfffffffb
	WatchHiPAddr1 uint64 = 0xf
	ECCMask       uint64 = 0xff
	watchHiSh            = 29
)

// Reset values.
const (
	PRIdValue     = 0x0400
	ResetVector   = 0xffffffffbfc00000
	ResetStatus   = StatusERL | StatusBEV
	TLBEntries    = 48
	RandomInitial = TLBEntries - 1
)

// legalPageMasks lists the PageMask values the TLB accepts.
var legalPageMasks = []uint64{
	0x0000000,
	0x0006000,
	0x001e000,
	0x007e000,
	0x01fe000,
	0x07fe000,
	0x1ffe000,
}

func isLegalPageMask(v uint64) bool {
	for _, m := range legalPageMasks {
		if v == m {
			return true
		}
	}
	return false
}

// pageMaskName returns the page size a legal PageMask selects.
func pageMaskName(v uint64) string {
	switch v {
	case 0x0000000:
		return "4k"
	case 0x0006000:
		return "16k"
	case 0x001e000:
		return "64k"
	case 0x007e000:
		return "256k"
	case 0x01fe000:
		return "1M"
	case 0x07fe000:
		return "4M"
	case 0x1ffe000:
		return "16M"
	}
	return "???"
}

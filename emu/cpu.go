package emu

import (
	"io"
	"log/slog"
	"os"

	"github.com/d-iii-s/msim-sub002/insts"
	"github.com/d-iii-s/msim-sub002/physmem"
)

// Exception vectors.
const (
	vectorBase      = 0xffffffff80000000
	vectorBaseBEV   = 0xffffffffbfc00200
	vectorGeneralOf = 0x180

	// maxFetchAttempts bounds how many consecutive exceptions instruction
	// fetch may raise within one step before the machine gives up.
	maxFetchAttempts = 4
)

// BranchState tracks branch delay slots. A taken branch sets BranchCond;
// every step decrements it, so the delay slot runs with BranchPassed.
type BranchState int

// Branch states.
const (
	BranchNone BranchState = iota
	BranchPassed
	BranchCond
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the machine was stopped by the guest.
	Halted bool

	// Break is true if the guest asked for the interactive console.
	Break bool

	// Exception is the exception delivered during the step, or ExcNone.
	Exception Exception

	// Err is set if the machine cannot continue.
	Err error
}

// Statistics holds per-CPU counters.
type Statistics struct {
	KernelCycles uint64
	UserCycles   uint64
	WaitCycles   uint64

	TLBRefill   uint64
	TLBInvalid  uint64
	TLBModified uint64

	// Interrupts counts how often each interrupt line was raised.
	Interrupts [8]uint64
}

// Tracer receives executed instructions and delivered exceptions while
// tracing is on.
type Tracer interface {
	Instruction(cpu int, pc uint64, word insts.Word, op insts.Op)
	Exception(cpu int, pc uint64, exc Exception)
}

// CPU is one MIPS R4000 processor.
type CPU struct {
	procID int

	regs RegFile
	cp0  [32]uint64
	tlb  *TLB

	mem     *physmem.Memory
	links   *physmem.LinkRegistry
	decoder *insts.Decoder

	frameConfig FrameCacheConfig
	frames      *FrameCache
	frame       *DecodedFrame

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	branch  BranchState
	excAddr uint64
	standby bool

	// Watchpoint state
	waddr        uint64
	watchPending bool
	watchExcAddr uint64

	stats Statistics

	logger *slog.Logger
	tracer Tracer
	trace  bool
	output io.Writer

	halted         bool
	breakRequested bool
	warned         bool
	delivered      Exception
}

// CPUOption is a functional option for configuring a CPU.
type CPUOption func(*CPU)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) CPUOption {
	return func(c *CPU) {
		c.logger = logger
	}
}

// WithTracer sets the instruction tracer.
func WithTracer(t Tracer) CPUOption {
	return func(c *CPU) {
		c.tracer = t
	}
}

// WithTrace turns tracing on from the start.
func WithTrace(on bool) CPUOption {
	return func(c *CPU) {
		c.trace = on
	}
}

// WithOutput sets where register dumps requested by the guest are
// written.
func WithOutput(w io.Writer) CPUOption {
	return func(c *CPU) {
		c.output = w
	}
}

// WithFrameCacheConfig sets the decoded frame cache geometry.
func WithFrameCacheConfig(config FrameCacheConfig) CPUOption {
	return func(c *CPU) {
		c.frameConfig = config
	}
}

// WithSpecificInstructions enables or disables the simulator control
// instructions.
func WithSpecificInstructions(enabled bool) CPUOption {
	return func(c *CPU) {
		c.decoder = insts.NewDecoder(insts.WithSpecificInstructions(enabled))
	}
}

// NewCPU creates processor procID attached to mem and performs a hard
// reset.
func NewCPU(procID int, mem *physmem.Memory, opts ...CPUOption) *CPU {
	c := &CPU{
		procID:      procID,
		tlb:         NewTLB(),
		mem:         mem,
		links:       mem.Links(),
		decoder:     insts.NewDecoder(),
		frameConfig: DefaultFrameCacheConfig(),
		logger:      slog.Default(),
		output:      os.Stdout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.frames = NewFrameCache(c.frameConfig, mem, c.decoder)
	c.alu = NewALU(&c.regs)
	c.lsu = NewLoadStoreUnit(c)
	c.branchUnit = NewBranchUnit(&c.regs, &c.branch)

	c.Reset()

	return c
}

// Reset performs a hard reset.
func (c *CPU) Reset() {
	c.regs = RegFile{}
	c.regs.SetPC(ResetVector)

	c.cp0 = [32]uint64{}
	c.cp0[CP0Random] = RandomInitial
	c.cp0[CP0PRId] = PRIdValue
	c.cp0[CP0Status] = ResetStatus

	c.tlb.Reset()
	c.frames.Reset()
	c.frame = nil
	c.links.Unregister(c.procID)

	c.branch = BranchNone
	c.excAddr = c.regs.PC
	c.standby = false
	c.waddr = 0
	c.watchPending = false
	c.stats = Statistics{}
	c.halted = false
	c.breakRequested = false
	c.warned = false
}

// softReset moves the CPU to the reset vector keeping the rest of its
// state, as the R4000 does on a soft reset or NMI.
func (c *CPU) softReset() {
	c.cp0[CP0ErrorEPC] = c.regs.PC
	c.cp0[CP0Status] |= StatusERL | StatusBEV | StatusSR
	c.cp0[CP0Status] &^= StatusTS
	c.regs.SetPC(ResetVector)
	c.branch = BranchNone
	c.standby = false
	c.frame = nil
}

// SoftReset delivers a soft reset, as the reset line does on a running
// processor.
func (c *CPU) SoftReset() {
	c.handleException(ExcReset)
}

// ID returns the processor number.
func (c *CPU) ID() int { return c.procID }

// RegFile returns the general purpose registers.
func (c *CPU) RegFile() *RegFile { return &c.regs }

// TLB returns the translation lookaside buffer.
func (c *CPU) TLB() *TLB { return c.tlb }

// FrameCache returns the decoded frame cache.
func (c *CPU) FrameCache() *FrameCache { return c.frames }

// CP0 returns coprocessor 0 register n.
func (c *CPU) CP0(n int) uint64 { return c.cp0[n&31] }

// SetCP0 sets coprocessor 0 register n directly, bypassing MTC0 masking.
func (c *CPU) SetCP0(n int, v uint64) {
	c.cp0[n&31] = v
	if n == CP0WatchLo || n == CP0WatchHi {
		c.updateWatch()
	}
}

// Statistics returns the CPU counters.
func (c *CPU) Statistics() Statistics { return c.stats }

// Branch returns the branch delay state.
func (c *CPU) Branch() BranchState { return c.branch }

// Standby reports whether the CPU waits for an interrupt.
func (c *CPU) Standby() bool { return c.standby }

// Halted reports whether the guest halted the machine.
func (c *CPU) Halted() bool { return c.halted }

// Tracing reports whether instruction tracing is on.
func (c *CPU) Tracing() bool { return c.trace }

// SetTrace turns instruction tracing on or off.
func (c *CPU) SetTrace(on bool) { c.trace = on }

// SetPC moves execution to pc and cancels any pending delay slot.
func (c *CPU) SetPC(pc uint64) {
	c.regs.SetPC(pc)
	c.branch = BranchNone
	c.excAddr = pc
	c.frame = nil
}

// InterruptUp asserts interrupt line n.
func (c *CPU) InterruptUp(n uint) {
	if n >= 8 {
		c.logger.Warn("interrupt line out of range", "cpu", c.procID, "line", n)
		return
	}
	c.cp0[CP0Cause] |= 1 << (causeIPSh + n)
	c.stats.Interrupts[n]++
}

// InterruptDown deasserts interrupt line n.
func (c *CPU) InterruptDown(n uint) {
	if n >= 8 {
		c.logger.Warn("interrupt line out of range", "cpu", c.procID, "line", n)
		return
	}
	c.cp0[CP0Cause] &^= 1 << (causeIPSh + n)
}

// Step executes a single instruction and handles whatever exception or
// interrupt results from it.
func (c *CPU) Step() StepResult {
	c.delivered = ExcNone
	c.breakRequested = false
	oldPC := c.regs.PC

	exc := ExcNone
	if !c.standby && !c.halted {
		exc = c.execute()
	}

	c.manage(exc, oldPC)
	c.account()

	return StepResult{
		Halted:    c.halted,
		Break:     c.breakRequested,
		Exception: c.delivered,
	}
}

// fetchFrame makes the frame holding PC current.
func (c *CPU) fetchFrame() Exception {
	pc := c.regs.PC

	if pc&3 != 0 {
		if c.branch == BranchNone {
			c.excAddr = pc
		}
		c.fillAddrError(pc, true)
		return ExcAdEL
	}

	phys, exc := c.Translate(pc, false, true)
	if exc != ExcNone {
		if c.branch == BranchNone {
			c.excAddr = pc
		}
		return exc
	}

	frame, ok := c.frames.Fetch(phys)
	if !ok {
		c.logger.Error("trying to fetch instructions from outside of physical memory",
			"cpu", c.procID, "pc", hex(pc), "phys", hex(phys))
		if c.branch == BranchNone {
			c.excAddr = pc
		}
		return ExcAdEL
	}

	c.frame = frame
	return ExcNone
}

func (c *CPU) execute() Exception {
	for attempt := 0; c.frame == nil; attempt++ {
		if attempt == maxFetchAttempts {
			c.fatal("instruction fetch keeps failing at %#016x", c.regs.PC)
		}
		if exc := c.fetchFrame(); exc != ExcNone {
			c.handleException(exc)
		}
	}

	if !c.frame.Valid() {
		c.frames.Refresh(c.frame)
	}

	pc := c.regs.PC
	idx := (pc & physmem.FrameMask) >> 2
	word := c.frame.Words[idx]
	op := c.frame.Ops[idx]

	if c.trace && c.tracer != nil {
		c.tracer.Instruction(c.procID, pc, word, op)
	}

	exc := c.dispatch(op, word)

	if c.branch == BranchCond || c.branch == BranchNone {
		c.excAddr = pc
	}

	c.regs.GPR[0] = 0

	if exc == ExcJump {
		c.regs.PC += 4
		return ExcNone
	}

	c.regs.PC = c.regs.PCNext
	c.regs.PCNext += 4

	return exc
}

// interruptPending reports whether an enabled interrupt is asserted.
func (c *CPU) interruptPending() bool {
	status := c.cp0[CP0Status]
	if status&(StatusEXL|StatusERL) != 0 || status&StatusIE == 0 {
		return false
	}
	return c.cp0[CP0Cause]&status&CauseIP != 0
}

func (c *CPU) manage(exc Exception, oldPC uint64) {
	if exc == ExcNone && c.watchPending &&
		c.cp0[CP0Status]&(StatusEXL|StatusERL) == 0 {
		c.watchPending = false
		c.excAddr = c.watchExcAddr
		exc = ExcWATCH
	}

	if exc == ExcNone && c.interruptPending() {
		exc = ExcInt
	}

	if exc != ExcNone {
		c.handleException(exc)
	}

	c.cp0[CP0Count] = uint64(uint32(c.cp0[CP0Count] + 1))

	if c.cp0[CP0Random] == 0 {
		c.cp0[CP0Random] = RandomInitial
	} else {
		c.cp0[CP0Random]--
	}
	if c.cp0[CP0Random] < c.cp0[CP0Wired] {
		c.cp0[CP0Random] = RandomInitial
	}

	if uint32(c.cp0[CP0Count]) == uint32(c.cp0[CP0Compare]) {
		c.cp0[CP0Cause] |= CauseIP7
	}

	if c.branch > BranchNone {
		c.branch--
	}

	if c.frame != nil && oldPC|physmem.FrameMask != c.regs.PC|physmem.FrameMask {
		c.frame = nil
	}
}

func (c *CPU) account() {
	switch {
	case c.standby:
		c.stats.WaitCycles++
	case c.Mode() == ModeKernel:
		c.stats.KernelCycles++
	default:
		c.stats.UserCycles++
	}
}

// handleException changes the processor state to enter the handler of exc.
func (c *CPU) handleException(exc Exception) {
	c.delivered = exc

	if exc == ExcReset {
		if c.trace && c.tracer != nil {
			c.tracer.Exception(c.procID, c.regs.PC, exc)
		}
		c.softReset()
		return
	}

	refill := exc.IsRefill()
	switch exc {
	case ExcTLBLRefill:
		exc = ExcTLBL
	case ExcTLBSRefill:
		exc = ExcTLBS
	}

	if c.standby {
		c.regs.SetPC(c.regs.PCNext)
		c.standby = false
	}

	if c.trace && c.tracer != nil {
		c.tracer.Exception(c.procID, c.regs.PC, exc)
	}

	status := c.cp0[CP0Status]

	delaySlot := c.branch == BranchPassed
	epc := c.excAddr
	if exc == ExcInt && c.branch != BranchCond {
		// The next instruction is the one interrupted.
		epc = c.regs.PC
	}

	cause := c.cp0[CP0Cause] &^ (CauseExcCode | CauseBD)
	cause |= uint64(exc) << causeExcSh
	if delaySlot {
		cause |= CauseBD
	}
	c.cp0[CP0Cause] = cause

	if status&StatusEXL == 0 {
		c.cp0[CP0EPC] = epc
	}

	vector := uint64(vectorBase)
	if status&StatusBEV != 0 {
		vector = vectorBaseBEV
	}
	if status&StatusEXL != 0 || !refill {
		vector += vectorGeneralOf
	}

	c.regs.SetPC(vector)
	c.cp0[CP0Status] |= StatusEXL
	c.branch = BranchNone
	c.frame = nil
}

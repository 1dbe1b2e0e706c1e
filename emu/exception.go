package emu

import (
	"errors"
	"fmt"
)

// Exception is the outcome of executing one instruction. Values below 32
// are architectural exception codes written to Cause.ExcCode; the others
// are internal to the step engine.
type Exception int

// Architectural exception codes.
const (
	ExcInt   Exception = 0  // interrupt
	ExcMod   Exception = 1  // TLB modification
	ExcTLBL  Exception = 2  // TLB exception (load or fetch)
	ExcTLBS  Exception = 3  // TLB exception (store)
	ExcAdEL  Exception = 4  // address error (load or fetch)
	ExcAdES  Exception = 5  // address error (store)
	ExcIBE   Exception = 6  // bus error (fetch)
	ExcDBE   Exception = 7  // bus error (data)
	ExcSys   Exception = 8  // syscall
	ExcBp    Exception = 9  // breakpoint
	ExcRI    Exception = 10 // reserved instruction
	ExcCpU   Exception = 11 // coprocessor unusable
	ExcOv    Exception = 12 // arithmetic overflow
	ExcTr    Exception = 13 // trap
	ExcVCEI  Exception = 14 // virtual coherency (fetch)
	ExcFPE   Exception = 15 // floating point
	ExcWATCH Exception = 23 // watch
	ExcVCED  Exception = 31 // virtual coherency (data)
)

// Internal outcomes.
const (
	// ExcTLBLRefill and ExcTLBSRefill are TLB misses with no matching
	// entry. They are delivered as ExcTLBL/ExcTLBS through the refill
	// vector.
	ExcTLBLRefill Exception = 64 + iota
	ExcTLBSRefill

	// ExcNone means the instruction completed.
	ExcNone

	// ExcJump means the instruction was a taken branch: the delay slot
	// runs next and PCNext already holds the target.
	ExcJump

	// ExcReset requests a soft reset through the reset vector.
	ExcReset
)

var exceptionNames = map[Exception]string{
	ExcInt:        "Interrupt",
	ExcMod:        "TLB Modification",
	ExcTLBL:       "TLB Exception (Load)",
	ExcTLBS:       "TLB Exception (Store)",
	ExcAdEL:       "Address Error (Load)",
	ExcAdES:       "Address Error (Store)",
	ExcIBE:        "Bus Error (Code)",
	ExcDBE:        "Bus Error (Data)",
	ExcSys:        "System Call",
	ExcBp:         "Breakpoint",
	ExcRI:         "Reserved Instruction",
	ExcCpU:        "Coprocessor Unusable",
	ExcOv:         "Arithmetic Overflow",
	ExcTr:         "Trap",
	ExcVCEI:       "Virtual Coherency (Code)",
	ExcFPE:        "Floating Point",
	ExcWATCH:      "Watch",
	ExcVCED:       "Virtual Coherency (Data)",
	ExcTLBLRefill: "TLB Refill (Load)",
	ExcTLBSRefill: "TLB Refill (Store)",
	ExcNone:       "None",
	ExcJump:       "Jump",
	ExcReset:      "Reset",
}

// String returns a human readable exception name.
func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Reserved (%d)", int(e))
}

// IsRefill reports whether e is a TLB refill.
func (e Exception) IsRefill() bool {
	return e == ExcTLBLRefill || e == ExcTLBSRefill
}

// Delivered reports whether e has to be delivered to the guest.
func (e Exception) Delivered() bool {
	return e != ExcNone && e != ExcJump
}

// ErrUnsupported is wrapped by fatal errors raised for guest behaviour the
// emulator does not model.
var ErrUnsupported = errors.New("unsupported operation")

// FatalError reports a condition after which the simulated machine cannot
// continue. CPUs panic with *FatalError; Machine.Run recovers it.
type FatalError struct {
	CPU int
	PC  uint64
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("cpu%d: fatal error at pc %#016x: %v", e.CPU, e.PC, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func (c *CPU) fatal(format string, args ...interface{}) {
	panic(&FatalError{
		CPU: c.procID,
		PC:  c.regs.PC,
		Err: fmt.Errorf(format, args...),
	})
}

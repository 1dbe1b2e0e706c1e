package emu

import (
	"context"
	"errors"
	"fmt"

	"github.com/d-iii-s/msim-sub002/loader"
	"github.com/d-iii-s/msim-sub002/physmem"
)

// ErrBreak is returned by Run when a processor asks for the interactive
// console.
var ErrBreak = errors.New("break requested by the guest")

// Machine is a set of processors sharing one physical memory.
type Machine struct {
	mem   *physmem.Memory
	cpus  []*CPU
	steps uint64
}

// NewMachine creates a machine with n processors attached to mem. Every
// processor receives the same options.
func NewMachine(mem *physmem.Memory, n int, opts ...CPUOption) *Machine {
	m := &Machine{mem: mem}
	for i := 0; i < n; i++ {
		m.cpus = append(m.cpus, NewCPU(i, mem, opts...))
	}
	return m
}

// Memory returns the machine's physical memory.
func (m *Machine) Memory() *physmem.Memory {
	return m.mem
}

// CPUs returns the machine's processors.
func (m *Machine) CPUs() []*CPU {
	return m.cpus
}

// CPU returns processor i.
func (m *Machine) CPU(i int) *CPU {
	return m.cpus[i]
}

// Steps returns the number of machine steps executed.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// LoadProgram copies the segments of prog to physical memory and moves
// every processor to its entry point. Segment addresses must lie in kseg0
// or kseg1.
func (m *Machine) LoadProgram(prog *loader.Program) error {
	for i := range prog.Segments {
		seg := &prog.Segments[i]

		phys, err := seg.PhysAddr()
		if err != nil {
			return fmt.Errorf("failed to place segment: %w", err)
		}

		data := seg.Data
		if seg.MemSize > uint64(len(data)) {
			data = make([]byte, seg.MemSize)
			copy(data, seg.Data)
		}

		if err := m.mem.Load(phys, data); err != nil {
			return fmt.Errorf("failed to load segment at %#x: %w", seg.VirtAddr, err)
		}
	}

	for _, c := range m.cpus {
		c.SetPC(prog.EntryPoint)
	}

	return nil
}

// Reset performs a hard reset of every processor.
func (m *Machine) Reset() {
	for _, c := range m.cpus {
		c.Reset()
	}
	m.steps = 0
}

// Halted reports whether any processor halted the machine.
func (m *Machine) Halted() bool {
	for _, c := range m.cpus {
		if c.Halted() {
			return true
		}
	}
	return false
}

// InterruptUp asserts interrupt line n of processor cpu.
func (m *Machine) InterruptUp(cpu int, n uint) {
	m.cpus[cpu].InterruptUp(n)
}

// InterruptDown deasserts interrupt line n of processor cpu.
func (m *Machine) InterruptDown(cpu int, n uint) {
	m.cpus[cpu].InterruptDown(n)
}

// Step advances every processor by one instruction, in order. The result
// carries the last delivered exception, and stops early when a processor
// halts or fails.
func (m *Machine) Step() (result StepResult) {
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			result.Err = fe
		}
	}()

	m.steps++

	for _, c := range m.cpus {
		res := c.Step()
		if res.Exception != ExcNone {
			result.Exception = res.Exception
		}
		result.Break = result.Break || res.Break
		if res.Halted {
			result.Halted = true
			return result
		}
	}

	return result
}

// Run steps the machine until it halts, the guest requests a break,
// maxSteps steps have run or ctx is done. A maxSteps of 0 means no limit.
// It returns the number of steps executed.
func (m *Machine) Run(ctx context.Context, maxSteps uint64) (uint64, error) {
	var n uint64
	for maxSteps == 0 || n < maxSteps {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		res := m.Step()
		n++

		switch {
		case res.Err != nil:
			return n, res.Err
		case res.Halted:
			return n, nil
		case res.Break:
			return n, ErrBreak
		}
	}
	return n, nil
}

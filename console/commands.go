package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/insts"
)

type cmd struct {
	Name    string // Command name.
	Min     int    // Minimum match size.
	Args    string
	Help    string
	Process func(*Console, []string) (bool, error)
}

var cmdList []cmd

func init() {
	cmdList = []cmd{
		{Name: "step", Min: 1, Args: "[count]", Help: "Simulates one or a specified number of steps.", Process: step},
		{Name: "continue", Min: 1, Args: "[count]", Help: "Runs until the machine halts or breaks.", Process: cont},
		{Name: "regs", Min: 1, Args: "[cpu]", Help: "Dumps general purpose registers.", Process: regs},
		{Name: "cp0", Min: 2, Args: "[cpu]", Help: "Dumps coprocessor 0 registers.", Process: cp0},
		{Name: "tlb", Min: 2, Args: "[cpu]", Help: "Dumps the TLB.", Process: tlb},
		{Name: "mem", Min: 1, Args: "<addr> [count]", Help: "Dumps words from physical memory.", Process: mem},
		{Name: "mbd", Min: 2, Help: "Dumps the installed memory blocks.", Process: mbd},
		{Name: "dis", Min: 1, Args: "<addr> [count]", Help: "Disassembles physical memory.", Process: dis},
		{Name: "irq", Min: 1, Args: "<cpu> <line> up|down", Help: "Raises or clears an interrupt line.", Process: irq},
		{Name: "stat", Min: 3, Help: "Dumps statistics.", Process: stat},
		{Name: "trace", Min: 2, Args: "on|off", Help: "Turns instruction tracing on or off.", Process: traceCmd},
		{Name: "echo", Min: 1, Args: "[text]", Help: "Prints a message.", Process: echo},
		{Name: "quit", Min: 1, Help: "Exits the simulator.", Process: quit},
		{Name: "help", Min: 1, Args: "[command]", Help: "Displays this help text.", Process: help},
	}
}

// Check if command matches at least to minimum length.
func matchCommand(match cmd, command string) bool {
	return len(command) >= match.Min && strings.HasPrefix(match.Name, command)
}

// Check if command matches one of the commands. An exact name wins over
// abbreviations.
func matchList(command string) []cmd {
	if command == "" {
		return nil
	}

	var match []cmd
	for _, m := range cmdList {
		if m.Name == command {
			return []cmd{m}
		}
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

func parseNumber(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", s)
	}
	return v, nil
}

// optNumber parses args[i] if present.
func optNumber(args []string, i int, def uint64) (uint64, error) {
	if len(args) <= i {
		return def, nil
	}
	return parseNumber(args[i])
}

func (c *Console) cpuArg(args []string) (*emu.CPU, error) {
	n, err := optNumber(args, 0, 0)
	if err != nil {
		return nil, err
	}
	if n >= uint64(len(c.machine.CPUs())) {
		return nil, fmt.Errorf("no such processor: %d", n)
	}
	return c.machine.CPU(int(n)), nil
}

// Simulate a number of steps.
func step(c *Console, args []string) (bool, error) {
	n, err := optNumber(args, 0, 1)
	if err != nil {
		return false, err
	}

	for i := uint64(0); i < n; i++ {
		res := c.machine.Step()
		if res.Err != nil {
			return false, res.Err
		}
		if res.Exception != emu.ExcNone {
			fmt.Fprintf(c.out, "exception: %s\n", res.Exception)
		}
		if res.Halted {
			fmt.Fprintln(c.out, "machine halted")
			return false, nil
		}
	}

	for _, cpu := range c.machine.CPUs() {
		c.showNext(cpu)
	}
	return false, nil
}

// showNext prints the instruction the processor executes next.
func (c *Console) showNext(cpu *emu.CPU) {
	pc := cpu.RegFile().PC
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(*emu.FatalError); !ok {
				panic(r)
			}
			fmt.Fprintf(c.out, "cpu%d %016x  (unsupported address)\n", cpu.ID(), pc)
		}
	}()

	phys, exc := cpu.Translate(pc, false, false)
	if exc != emu.ExcNone {
		fmt.Fprintf(c.out, "cpu%d %016x  (%s)\n", cpu.ID(), pc, exc)
		return
	}

	w := insts.Word(c.machine.Memory().Read32(cpu.ID(), phys, false))
	mnemonic, comment := insts.Disassemble(pc, w, c.names)
	fmt.Fprintf(c.out, "cpu%d %016x %08x  %s%s\n", cpu.ID(), pc, uint32(w), mnemonic, commentSuffix(comment))
}

func commentSuffix(comment string) string {
	if comment == "" {
		return ""
	}
	return "  # " + comment
}

// Continue running the machine.
func cont(c *Console, args []string) (bool, error) {
	limit, err := optNumber(args, 0, 0)
	if err != nil {
		return false, err
	}

	n, err := c.machine.Run(c.ctx, limit)
	switch {
	case errors.Is(err, emu.ErrBreak):
		fmt.Fprintf(c.out, "break after %d steps\n", n)
	case err != nil && c.ctx.Err() != nil:
		fmt.Fprintf(c.out, "interrupted after %d steps\n", n)
	case err != nil:
		return false, err
	case c.machine.Halted():
		fmt.Fprintf(c.out, "machine halted after %d steps\n", n)
	default:
		fmt.Fprintf(c.out, "stopped after %d steps\n", n)
	}
	return false, nil
}

func regs(c *Console, args []string) (bool, error) {
	cpu, err := c.cpuArg(args)
	if err != nil {
		return false, err
	}
	cpu.DumpRegisters(c.out, c.names)
	return false, nil
}

func cp0(c *Console, args []string) (bool, error) {
	cpu, err := c.cpuArg(args)
	if err != nil {
		return false, err
	}
	cpu.DumpCP0(c.out)
	return false, nil
}

func tlb(c *Console, args []string) (bool, error) {
	cpu, err := c.cpuArg(args)
	if err != nil {
		return false, err
	}
	cpu.DumpTLB(c.out)
	return false, nil
}

func addrCount(args []string, def uint64) (uint64, uint64, error) {
	if len(args) == 0 {
		return 0, 0, errors.New("address expected")
	}
	addr, err := parseNumber(args[0])
	if err != nil {
		return 0, 0, err
	}
	n, err := optNumber(args, 1, def)
	if err != nil {
		return 0, 0, err
	}
	return addr &^ 3, n, nil
}

// Dump words from physical memory, four to a line.
func mem(c *Console, args []string) (bool, error) {
	addr, n, err := addrCount(args, 4)
	if err != nil {
		return false, err
	}

	m := c.machine.Memory()
	for i := uint64(0); i < n; i++ {
		if i%4 == 0 {
			if i != 0 {
				fmt.Fprintln(c.out)
			}
			fmt.Fprintf(c.out, "%08x:", addr)
		}
		fmt.Fprintf(c.out, " %08x", m.Read32(-1, addr, false))
		addr += 4
	}
	fmt.Fprintln(c.out)
	return false, nil
}

func mbd(c *Console, _ []string) (bool, error) {
	for _, a := range c.machine.Memory().Areas() {
		fmt.Fprintf(c.out, "%08x %08x %s\n", a.Start, a.Size(), a.Type)
	}
	return false, nil
}

// Disassemble physical memory.
func dis(c *Console, args []string) (bool, error) {
	addr, n, err := addrCount(args, 8)
	if err != nil {
		return false, err
	}

	m := c.machine.Memory()
	for i := uint64(0); i < n; i++ {
		w := insts.Word(m.Read32(-1, addr, false))
		mnemonic, comment := insts.Disassemble(addr, w, c.names)
		fmt.Fprintf(c.out, "%08x %08x  %s%s\n", addr, uint32(w), mnemonic, commentSuffix(comment))
		addr += 4
	}
	return false, nil
}

func irq(c *Console, args []string) (bool, error) {
	if len(args) != 3 {
		return false, errors.New("usage: irq <cpu> <line> up|down")
	}
	cpu, err := c.cpuArg(args[:1])
	if err != nil {
		return false, err
	}
	line, err := parseNumber(args[1])
	if err != nil {
		return false, err
	}
	if line >= 8 {
		return false, fmt.Errorf("no such interrupt line: %d", line)
	}

	switch args[2] {
	case "up":
		cpu.InterruptUp(uint(line))
	case "down":
		cpu.InterruptDown(uint(line))
	default:
		return false, fmt.Errorf("expected up or down, got %s", args[2])
	}
	return false, nil
}

func stat(c *Console, _ []string) (bool, error) {
	fmt.Fprintf(c.out, "steps %d\n", c.machine.Steps())
	for _, cpu := range c.machine.CPUs() {
		s := cpu.Statistics()
		fc := cpu.FrameCache().Stats()
		fmt.Fprintf(c.out, "cpu%d cycles: kernel %d user %d wait %d\n",
			cpu.ID(), s.KernelCycles, s.UserCycles, s.WaitCycles)
		fmt.Fprintf(c.out, "cpu%d tlb: refill %d invalid %d modified %d\n",
			cpu.ID(), s.TLBRefill, s.TLBInvalid, s.TLBModified)
		fmt.Fprintf(c.out, "cpu%d interrupts: %v\n", cpu.ID(), s.Interrupts)
		fmt.Fprintf(c.out, "cpu%d frames: hits %d misses %d decodes %d invalidations %d evictions %d\n",
			cpu.ID(), fc.Hits, fc.Misses, fc.Decodes, fc.Invalidations, fc.Evictions)
	}
	return false, nil
}

func traceCmd(c *Console, args []string) (bool, error) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return false, errors.New("usage: trace on|off")
	}
	for _, cpu := range c.machine.CPUs() {
		cpu.SetTrace(args[0] == "on")
	}
	return false, nil
}

func echo(c *Console, args []string) (bool, error) {
	fmt.Fprintln(c.out, strings.Join(args, " "))
	return false, nil
}

func quit(_ *Console, _ []string) (bool, error) {
	return true, nil
}

func help(c *Console, args []string) (bool, error) {
	list := cmdList
	if len(args) > 0 {
		list = matchList(strings.ToLower(args[0]))
		if len(list) == 0 {
			return false, errors.New("command not found: " + args[0])
		}
	}
	for _, m := range list {
		fmt.Fprintf(c.out, "%-8s %-22s %s\n", m.Name, m.Args, m.Help)
	}
	return false, nil
}

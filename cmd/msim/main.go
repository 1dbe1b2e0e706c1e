// Package main provides the entry point for MSIM.
// MSIM simulates a machine built around MIPS R4000 processors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	getopt "github.com/pborman/getopt/v2"
	"github.com/pkg/profile"

	"github.com/d-iii-s/msim-sub002/config"
	"github.com/d-iii-s/msim-sub002/console"
	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/insts"
	"github.com/d-iii-s/msim-sub002/loader"
	"github.com/d-iii-s/msim-sub002/logger"
	"github.com/d-iii-s/msim-sub002/trace"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

type options struct {
	config      *string
	logFile     *string
	debug       *bool
	steps       *uint64
	interactive *bool
	trace       *string
	traceJSON   *bool
	names       *string
	profile     *string
	help        *bool
}

func newOptions(set *getopt.Set) *options {
	set.SetParameters("[image.elf]")
	return &options{
		config:      set.StringLong("config", 'c', "", "Machine configuration file"),
		logFile:     set.StringLong("log", 'l', "", "Log file"),
		debug:       set.BoolLong("debug", 'd', "Log debug to console"),
		steps:       set.Uint64Long("steps", 'n', 0, "Stop after this many steps"),
		interactive: set.BoolLong("interactive", 'i', "Start in the debugger"),
		trace:       set.StringLong("trace", 't', "", "Trace instructions to file (- for stderr)"),
		traceJSON:   set.BoolLong("json", 'j', "Write the trace as JSON"),
		names:       set.StringLong("names", 'r', "abi", "Register names: abi, numeric or dollar"),
		profile:     set.StringLong("profile", 'p', "", "Write a CPU profile to this directory"),
		help:        set.BoolLong("help", 'h', "Help"),
	}
}

// run is main without the exit, so it can be tested.
func run(args []string, stdout, stderr io.Writer) int {
	set := getopt.New()
	opts := newOptions(set)
	if err := set.Getopt(args, nil); err != nil {
		fmt.Fprintln(stderr, err)
		set.PrintUsage(stderr)
		return 1
	}
	if *opts.help {
		set.PrintUsage(stdout)
		return 0
	}
	if set.NArgs() > 1 {
		set.PrintUsage(stderr)
		return 1
	}

	if *opts.profile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*opts.profile), profile.Quiet).Stop()
	}

	var logOut io.Writer
	if *opts.logFile != "" {
		file, err := os.Create(*opts.logFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error creating log file: %v\n", err)
			return 1
		}
		defer file.Close()
		logOut = file
	}
	handler := logger.NewHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}, *opts.debug)
	handler.SetConsole(stderr)
	log := slog.New(handler)
	slog.SetDefault(log)

	if err := simulate(opts, set.Args(), log, stdout, stderr); err != nil {
		log.Error(err.Error())
		return 1
	}
	return 0
}

func loadConfig(opts *options) (*config.MachineConfig, error) {
	cfg := config.DefaultMachineConfig()
	if *opts.config != "" {
		var err error
		cfg, err = config.LoadConfig(*opts.config)
		if err != nil {
			return nil, err
		}
	}

	if *opts.steps != 0 {
		cfg.MaxSteps = *opts.steps
	}
	if *opts.trace != "" {
		cfg.Trace = true
	}
	if *opts.traceJSON {
		cfg.TraceFormat = config.TraceJSON
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func simulate(opts *options, args []string, log *slog.Logger, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	names, err := insts.ParseNameVariant(*opts.names)
	if err != nil {
		return err
	}

	mem, err := cfg.BuildMemory()
	if err != nil {
		return fmt.Errorf("failed to build memory: %w", err)
	}

	cpuOpts := append(cfg.CPUOptions(), emu.WithLogger(log), emu.WithOutput(stdout))
	if cfg.Trace {
		w := stderr
		if *opts.trace != "" && *opts.trace != "-" {
			file, err := os.Create(*opts.trace)
			if err != nil {
				return fmt.Errorf("failed to create trace file: %w", err)
			}
			defer file.Close()
			w = file
		}
		cpuOpts = append(cpuOpts, emu.WithTracer(trace.New(w, cfg.TraceFormat, trace.WithNames(names))))
	}

	machine := emu.NewMachine(mem, cfg.CPUs, cpuOpts...)

	if len(args) == 1 {
		prog, err := loader.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		if err := machine.LoadProgram(prog); err != nil {
			return err
		}
		log.Info("program loaded", "image", args[0], "entry", fmt.Sprintf("%#x", prog.EntryPoint))
	}
	if cfg.StartAddress != 0 {
		for _, cpu := range machine.CPUs() {
			cpu.SetPC(cfg.StartAddress)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	con := console.New(machine, stdout, console.WithNames(names))
	if *opts.interactive {
		return con.Run(ctx)
	}

	n, err := machine.Run(ctx, cfg.MaxSteps)
	switch {
	case errors.Is(err, emu.ErrBreak):
		log.Info("entering debugger", "steps", n)
		return con.Run(context.Background())
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(stdout, "interrupted after %d steps\n", n)
		return nil
	case err != nil:
		return err
	case machine.Halted():
		fmt.Fprintf(stdout, "machine halted after %d steps\n", n)
	default:
		fmt.Fprintf(stdout, "stopped after %d steps\n", n)
	}
	return nil
}

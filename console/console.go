// Package console implements the interactive debugger prompt.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/peterh/liner"

	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/insts"
)

// Prompt is shown before every command.
const Prompt = "[msim] "

// Console executes debugger commands against a machine.
type Console struct {
	machine *emu.Machine
	out     io.Writer
	names   insts.NameVariant
	ctx     context.Context
}

// Option configures a Console.
type Option func(*Console)

// WithNames selects the register names used in dumps and disassembly.
func WithNames(v insts.NameVariant) Option {
	return func(c *Console) {
		c.names = v
	}
}

// New creates a console for m writing its output to out.
func New(m *emu.Machine, out io.Writer, opts ...Option) *Console {
	c := &Console{
		machine: m,
		out:     out,
		names:   insts.NamesABI,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one command line. An empty line steps the machine once. It
// reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, commandLine string) (bool, error) {
	c.ctx = ctx

	line := commandLine
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	words := strings.Fields(line)
	if len(words) == 0 {
		return step(c, nil)
	}

	name := strings.ToLower(words[0])
	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("unique command not found: " + name)
	}

	slog.Debug("console command", "command", match[0].Name)
	return match[0].Process(c, words[1:])
}

// Complete returns the commands starting with the partial line.
func (c *Console) Complete(line string) []string {
	if strings.ContainsAny(line, " \t") {
		return nil
	}

	prefix := strings.ToLower(line)
	var matches []string
	for _, m := range cmdList {
		if strings.HasPrefix(m.Name, prefix) {
			matches = append(matches, m.Name)
		}
	}
	slices.Sort(matches)
	return matches
}

// Run reads commands from the terminal until the user quits or aborts the
// prompt.
func (c *Console) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(c.Complete)

	for {
		command, err := line.Prompt(Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading line: %w", err)
		}

		if strings.TrimSpace(command) != "" {
			line.AppendHistory(command)
		}

		quit, err := c.Execute(ctx, command)
		if err != nil {
			var fatal *emu.FatalError
			if errors.As(err, &fatal) {
				return err
			}
			fmt.Fprintln(c.out, "Error: "+err.Error())
		}
		if quit {
			return nil
		}
	}
}

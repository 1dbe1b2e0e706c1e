// Package trace writes executed instructions and delivered exceptions as
// structured log entries.
package trace

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/d-iii-s/msim-sub002/emu"
	"github.com/d-iii-s/msim-sub002/insts"
)

// Tracer implements emu.Tracer on top of a logrus logger.
type Tracer struct {
	log   *logrus.Logger
	names insts.NameVariant
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithNames selects the register names used in disassembly.
func WithNames(v insts.NameVariant) Option {
	return func(t *Tracer) {
		t.names = v
	}
}

// New creates a tracer writing to w. Format is "json" for one JSON object
// per entry, anything else selects plain text.
func New(w io.Writer, format string, opts ...Option) *Tracer {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(logrus.DebugLevel)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: true})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		})
	}

	t := &Tracer{log: log, names: insts.NamesABI}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Logger returns the underlying logger.
func (t *Tracer) Logger() *logrus.Logger {
	return t.log
}

// Instruction logs one executed instruction.
func (t *Tracer) Instruction(cpu int, pc uint64, word insts.Word, op insts.Op) {
	mnemonic, comment := insts.Disassemble(pc, word, t.names)

	fields := logrus.Fields{
		"cpu":  cpu,
		"pc":   fmt.Sprintf("%016x", pc),
		"word": fmt.Sprintf("%08x", uint32(word)),
		"op":   op.String(),
	}
	if comment != "" {
		fields["comment"] = comment
	}
	t.log.WithFields(fields).Debug(mnemonic)
}

// Exception logs an exception about to be delivered.
func (t *Tracer) Exception(cpu int, pc uint64, exc emu.Exception) {
	t.log.WithFields(logrus.Fields{
		"cpu":       cpu,
		"pc":        fmt.Sprintf("%016x", pc),
		"exception": exc.String(),
	}).Info("exception")
}

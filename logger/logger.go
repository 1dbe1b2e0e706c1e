// Package logger provides the slog handler used for simulator diagnostics.
// Records go to a log file, and everything above debug level (or
// everything, in debug mode) is mirrored to the console.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogHandler formats records as "date time LEVEL: message key=value ...".
type LogHandler struct {
	out     io.Writer
	console io.Writer
	level   slog.Leveler
	attrs   []slog.Attr
	group   string
	mu      *sync.Mutex
	debug   bool
}

// NewHandler creates a handler writing to file, which may be nil. When
// debug is set, debug records are shown on the console too.
func NewHandler(file io.Writer, opts *slog.HandlerOptions, debug bool) *LogHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{
		out:     file,
		console: os.Stderr,
		level:   level,
		mu:      &sync.Mutex{},
		debug:   debug,
	}
}

// SetConsole redirects the console copy of records.
func (h *LogHandler) SetConsole(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.console = w
}

// SetDebug turns mirroring of debug records on or off.
func (h *LogHandler) SetDebug(debug bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.debug = debug
}

// clone copies h under its lock. The copy shares the lock, since both
// write to the same outputs.
func (h *LogHandler) clone() LogHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := h.clone()
	n.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &n
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	n := h.clone()
	if n.group != "" {
		name = n.group + "." + name
	}
	n.group = name
	return &n
}

func (h *LogHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
	}
	return out
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	strs := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}

	for _, a := range h.attrs {
		strs = append(strs, a.Key+"="+a.Value.String())
	}

	var recAttrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		recAttrs = append(recAttrs, a)
		return true
	})
	for _, a := range h.qualify(recAttrs) {
		strs = append(strs, a.Key+"="+a.Value.String())
	}

	b := []byte(strings.Join(strs, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.out != nil {
		_, err = h.out.Write(b)
	}

	if h.console != nil && (h.debug || r.Level > slog.LevelDebug) {
		if _, cerr := h.console.Write(b); err == nil {
			err = cerr
		}
	}
	return err
}

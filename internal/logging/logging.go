// Package logging provides the slog handler behind lspwarm's log file.
//
// Lines are written as
//
//	[2006-01-02 15:04:05] [LEVEL] message key=value ...
//
// Logging is best-effort: failures to open or write the file are reported
// once through Config.OnError and never returned to the caller.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// TimeFormat is the timestamp layout of every log line.
const TimeFormat = "2006-01-02 15:04:05"

// Config configures a file logger.
type Config struct {
	// Path of the log file. Parent directories are created. Empty logs nowhere.
	Path string

	// Level is the minimum level written.
	Level slog.Level

	// OnError receives the first open or write failure. Optional.
	OnError func(error)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Open creates a logger appending to cfg.Path. The returned closer must be
// closed on shutdown. When the file cannot be opened the failure goes to
// OnError and the logger discards everything.
func Open(cfg Config) (*slog.Logger, io.Closer) {
	rep := &reporter{fn: cfg.OnError}
	if cfg.Path == "" {
		return Discard(), nopCloser{}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		rep.report(fmt.Errorf("create log dir: %w", err))
		return Discard(), nopCloser{}
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		rep.report(fmt.Errorf("open log file: %w", err))
		return Discard(), nopCloser{}
	}
	return slog.New(newHandler(f, cfg.Level, rep)), f
}

// New returns a logger writing bracket-formatted lines to w.
func New(w io.Writer, level slog.Level, onError func(error)) *slog.Logger {
	return slog.New(newHandler(w, level, &reporter{fn: onError}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// reporter forwards only the first failure so a broken disk doesn't flood
// the side channel.
type reporter struct {
	fn   func(error)
	once atomic.Bool
}

func (r *reporter) report(err error) {
	if r == nil || r.fn == nil {
		return
	}
	if r.once.CompareAndSwap(false, true) {
		r.fn(err)
	}
}

type handler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	rep    *reporter
	attrs  string
	prefix string
	now    func() time.Time
}

func newHandler(w io.Writer, level slog.Leveler, rep *reporter) *handler {
	return &handler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
		rep:   rep,
		now:   time.Now,
	}
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = h.now()
	}
	b.WriteString("[")
	b.WriteString(ts.Format(TimeFormat))
	b.WriteString("] [")
	b.WriteString(r.Level.String())
	b.WriteString("] ")
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := io.WriteString(h.w, b.String()); err != nil {
		h.rep.report(fmt.Errorf("write log: %w", err))
	}
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&b, h.prefix, a)
	}
	h2 := *h
	h2.attrs = b.String()
	return &h2
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, p, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().Format(TimeFormat)
	case slog.KindDuration:
		s = v.Duration().String()
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

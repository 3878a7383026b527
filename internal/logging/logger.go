// Package logging builds the process slog logger from [log] config.
package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"hostwatch/internal/config"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// New creates a logger fanning out to enabled console/file sinks.
// Params: cfg validated log section.
// Returns: logger, close func for file sinks, and setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	handlers := make([]slog.Handler, 0, 2)
	closers := make([]io.Closer, 0, 1)

	if cfg.Console.Enabled {
		var out io.Writer = os.Stderr
		if cfg.Console.Format == "line" && isatty.IsTerminal(os.Stderr.Fd()) {
			out = &colorLineWriter{dst: os.Stderr}
		}
		handler, err := newHandler(out, cfg.Console)
		if err != nil {
			return nil, nil, fmt.Errorf("log.console: %w", err)
		}
		handlers = append(handlers, handler)
	}

	if cfg.File.Enabled {
		file, err := openLogFile(cfg.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("log.file: %w", err)
		}
		handler, err := newHandler(file, cfg.File)
		if err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("log.file: %w", err)
		}
		handlers = append(handlers, handler)
		closers = append(closers, file)
	}

	closeFn := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closeFn, nil
	case 1:
		return slog.New(handlers[0]), closeFn, nil
	default:
		return slog.New(&fanoutHandler{handlers: handlers}), closeFn, nil
	}
}

// newHandler builds one sink handler.
// Params: out sink writer; sink level/format options.
// Returns: slog handler or error on unknown level/format.
func newHandler(out io.Writer, sink config.LogSinkConfig) (slog.Handler, error) {
	level, err := ParseLevel(sink.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch sink.Format {
	case "", "line":
		return slog.NewTextHandler(out, opts), nil
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", sink.Format)
	}
}

// ParseLevel maps config level names to slog levels.
// Params: level name (debug, info, warn, error).
// Returns: slog level or error.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", level)
	}
}

func openLogFile(path string) (*os.File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %q: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return file, nil
}

// fanoutHandler forwards records to every handler that accepts the level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithAttrs(attrs))
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithGroup(name))
	}
	return &fanoutHandler{handlers: next}
}

// colorLineWriter paints slog text lines for terminals.
// Params: dst underlying writer.
// Returns: writer coloring level and value tokens.
type colorLineWriter struct {
	dst io.Writer
}

// Write colors one rendered log line.
// Params: p one slog text record (optionally newline-terminated).
// Returns: len(p) on success; lines without known level pass through unchanged.
func (w *colorLineWriter) Write(p []byte) (int, error) {
	base := levelColor(p)
	if base == "" {
		if _, err := w.dst.Write(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	line := p
	newline := false
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		newline = true
	}

	var out bytes.Buffer
	out.Grow(len(p) + 64)
	out.WriteString(base)
	colorizeTokens(&out, line, base)
	out.WriteString(ansiReset)
	if newline {
		out.WriteByte('\n')
	}

	if _, err := w.dst.Write(out.Bytes()); err != nil {
		return 0, err
	}
	return len(p), nil
}

// levelColor picks the base line color from level=... field.
func levelColor(line []byte) string {
	switch {
	case bytes.Contains(line, []byte("level=ERROR")):
		return ansiRed
	case bytes.Contains(line, []byte("level=WARN")):
		return ansiMagenta
	case bytes.Contains(line, []byte("level=INFO")):
		return ansiBlue
	case bytes.Contains(line, []byte("level=DEBUG")):
		return ansiCyan
	default:
		return ""
	}
}

// colorizeTokens highlights quoted strings, IP addresses, and numbers.
// Params: out destination buffer; line record without newline; base line color to restore.
// Returns: none.
func colorizeTokens(out *bytes.Buffer, line []byte, base string) {
	for i := 0; i < len(line); {
		ch := line[i]
		switch {
		case ch == '"':
			end := quotedEnd(line, i)
			writeColored(out, line[i:end], ansiGreen, base)
			i = end
		case ch == ' ' || ch == '=' || ch == '\t':
			out.WriteByte(ch)
			i++
		default:
			end := i
			for end < len(line) && line[end] != ' ' && line[end] != '=' && line[end] != '\t' && line[end] != '"' {
				end++
			}
			token := line[i:end]
			switch {
			case isIPToken(string(token)):
				writeColored(out, token, ansiCyan, base)
			case isNumberToken(string(token)):
				writeColored(out, token, ansiYellow, base)
			default:
				out.Write(token)
			}
			i = end
		}
	}
}

// quotedEnd returns index right after the closing quote starting at start.
func quotedEnd(line []byte, start int) int {
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(line)
}

func writeColored(out *bytes.Buffer, token []byte, color, base string) {
	out.WriteString(color)
	out.Write(token)
	out.WriteString(ansiReset)
	out.WriteString(base)
}

func isIPToken(token string) bool {
	if !strings.ContainsAny(token, ".:") {
		return false
	}
	if net.ParseIP(token) != nil {
		return true
	}
	host, _, err := net.SplitHostPort(token)
	return err == nil && net.ParseIP(host) != nil
}

func isNumberToken(token string) bool {
	_, err := strconv.ParseFloat(token, 64)
	return err == nil
}

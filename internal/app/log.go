package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"
)

// riverbankHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<instanceID>\t<message>\t<key=value ...>
type riverbankHandler struct {
	w          io.Writer
	instanceID string
	level      slog.Leveler
	attrs      []slog.Attr
}

func (h *riverbankHandler) Enabled(_ context.Context, l slog.Level) bool {
	if h.level == nil {
		return true
	}
	return l >= h.level.Level()
}

func (h *riverbankHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.instanceID, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *riverbankHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &riverbankHandler{
		w:          h.w,
		instanceID: h.instanceID,
		level:      h.level,
		attrs:      append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *riverbankHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that appends to logDir/riverbank.log.
// When stderr is a terminal the output is mirrored there as well, so an
// operator running `riverbank serve` by hand sees the log live while a
// supervised service keeps stderr quiet.
func newLogger(logDir, instanceID string, level slog.Leveler) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "riverbank.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if term.IsTerminal(int(os.Stderr.Fd())) {
		w = io.MultiWriter(f, os.Stderr)
	}
	handler := &riverbankHandler{w: w, instanceID: instanceID, level: level}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the riverbank.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

// ABOUTME: Error reporting hooks for contract violations detected by the store
// ABOUTME: Provides the ErrorHandler interface and a slog-backed default handler

package store

import (
	"log/slog"
	"runtime"
	"strconv"
	"strings"
)

// ErrorHandler receives errors the store detects but cannot return to a
// caller, such as a finalizer panic during a cascade, as well as every error
// it does return.
type ErrorHandler interface {
	HandleError(err *Error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err *Error)

// HandleError calls f(err).
func (f ErrorHandlerFunc) HandleError(err *Error) {
	f(err)
}

// LogHandler is an ErrorHandler that logs through slog.
type LogHandler struct {
	// Logger receives the records. Nil means slog.Default().
	Logger *slog.Logger
	// Verbose adds the captured stack trace to each record.
	Verbose bool
}

// HandleError logs err at Error level for fatal kinds and Warn otherwise.
func (h *LogHandler) HandleError(err *Error) {
	if err == nil {
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("op", err.Op),
		slog.String("kind", err.Kind.String()),
		slog.Uint64("slot", uint64(err.Slot)),
	}
	if err.Err != nil {
		attrs = append(attrs, slog.String("error", err.Err.Error()))
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, slog.String("stack", err.StackTrace))
	}
	if err.Kind.Fatal() {
		logger.Error("arclens contract violation", attrs...)
		return
	}
	logger.Warn("arclens error", attrs...)
}

// report hands err to the store's handler and returns it for chaining.
func (s *Store) report(err *Error) *Error {
	if err != nil && s.handler != nil {
		s.handler.HandleError(err)
	}
	return err
}

// CaptureStack returns the current call stack as a string, skipping the
// CaptureStack frame and its caller.
func CaptureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}

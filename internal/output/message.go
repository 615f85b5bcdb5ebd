package output

import (
	"fmt"
	"io"
	"os"

	"github.com/mrz1836/coffer/internal/notify"
)

// Info prints an informational message to stdout with an info prefix.
func Info(msg string) {
	_, _ = fmt.Fprintln(os.Stdout, "ℹ️  "+msg)
}

// Infof prints a formatted informational message to stdout.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning message to stderr with a warning prefix.
func Warn(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, "⚠️  "+msg)
}

// Warnf prints a formatted warning message to stderr.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}

// Success prints a success message to stdout with a success prefix.
func Success(msg string) {
	_, _ = fmt.Fprintln(os.Stdout, "✅ "+msg)
}

// Successf prints a formatted success message to stdout.
func Successf(format string, args ...any) {
	Success(fmt.Sprintf(format, args...))
}

// levelPrefix returns the text prefix for a notification level.
func levelPrefix(level notify.Level) string {
	switch level {
	case notify.LevelSuccess:
		return "✅"
	case notify.LevelWarning:
		return "⚠️ "
	case notify.LevelError:
		return "❌"
	default:
		return "ℹ️ "
	}
}

// Notification renders one notification as a text line or a JSON object.
func Notification(w io.Writer, n notify.Notification, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, n)
	}

	line := levelPrefix(n.Level) + " " + n.Title
	if n.Message != "" {
		line += " " + n.Message
	}
	if n.TxHash != "" {
		line += " (tx " + shortHash(n.TxHash) + ")"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// shortHash abbreviates a transaction hash to its first and last four
// hex digits.
func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}

package transaction

import (
	"github.com/mrz1836/coffer/internal/notify"
)

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Publisher publishes user notifications.
type Publisher interface {
	Publish(n notify.Notification) notify.Notification
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Package notify delivers short, non-blocking user notifications.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Notifier shows an error notification to the user. Implementations must not
// block the caller.
type Notifier interface {
	Error(message string)
}

// LogNotifier records notifications through a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a Notifier writing at warn level.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

func (n *LogNotifier) Error(message string) {
	n.logger.Warn("notification", "message", message)
}

// WriterNotifier prints notifications as lines to w, for terminal front ends.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier returns a Notifier printing to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "! %s\n", message)
}

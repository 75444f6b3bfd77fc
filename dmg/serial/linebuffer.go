package serial

import "log/slog"

// lineBuffer accumulates bytes received over the link port and flushes them
// as a log line on newline, so test-ROM serial output reads as text instead
// of one log entry per byte.
type lineBuffer struct {
	bytes []byte
}

func (l *lineBuffer) reset() {
	l.bytes = l.bytes[:0]
}

// feed appends b to the buffer, flushing to logger when b terminates a line
// (or is the NUL many test ROMs pad their output with).
func (l *lineBuffer) feed(b byte, logger *slog.Logger) {
	if b == 0 || b == '\n' || b == '\r' {
		l.flush(logger)
		return
	}
	l.bytes = append(l.bytes, b)
}

func (l *lineBuffer) flush(logger *slog.Logger) {
	if len(l.bytes) == 0 {
		return
	}
	logger.Info("serial", "line", string(l.bytes))
	l.bytes = l.bytes[:0]
}

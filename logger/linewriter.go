package logger

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLineBytes bounds how much of an unterminated line is buffered before it
// is flushed as its own entry.
const maxLineBytes = 64 * 1024

// LineWriter is an io.Writer that emits one log entry per line written to it.
// It is used to surface the raw output streams of child processes.
type LineWriter struct {
	logger *zap.Logger
	level  zapcore.Level
	stream string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter returns a writer logging each line at level, tagged with stream
func NewLineWriter(logger *zap.Logger, level zapcore.Level, stream string) *LineWriter {
	return &LineWriter{logger: logger, level: level, stream: stream}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line: keep it for the next write unless it grew too large.
			if len(line) >= maxLineBytes {
				w.emit(line)
			} else {
				w.buf.Write(line)
			}
			break
		}
		w.emit(bytes.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush logs any buffered partial line
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line []byte) {
	if ce := w.logger.Check(w.level, string(line)); ce != nil {
		ce.Write(zap.String("stream", w.stream))
	}
}

package logger

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// LineWriter forwards complete lines written to it as debug events.
// It is used to stream remote command output into the structured log.
type LineWriter struct {
	log    zerolog.Logger
	stream string
	mu     sync.Mutex
	buf    bytes.Buffer
}

func NewWriter(log zerolog.Logger, stream string) *LineWriter {
	return &LineWriter{log: log, stream: stream}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// partial line, keep it for the next write
			w.buf.Write(line)
			break
		}
		w.emit(bytes.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
}

func (w *LineWriter) emit(line []byte) {
	if len(line) == 0 {
		return
	}
	w.log.Debug().Str("stream", w.stream).Msg(string(line))
}

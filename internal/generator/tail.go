package generator

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
)

// DefaultTailLines is how many trailing output lines are kept for error
// reports.
const DefaultTailLines = 200

// maxPartialBytes bounds an unterminated line; older bytes are dropped.
const maxPartialBytes = 64 << 10

// tailWriter forwards everything to an optional sink and keeps the last
// max complete lines. "\n", "\r" and "\r\n" all end a line, so progress
// bars that redraw with a carriage return do not grow one endless line.
// It is safe for concurrent use so stdout and stderr can share one instance.
type tailWriter struct {
	mu      sync.Mutex
	sink    io.Writer
	logger  *slog.Logger
	max     int
	lines   []string
	partial []byte
	// afterCR is set when the previous byte was '\r', so a following '\n'
	// completes the same line break.
	afterCR bool
}

func newTailWriter(sink io.Writer, max int, logger *slog.Logger) *tailWriter {
	if max <= 0 {
		max = DefaultTailLines
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &tailWriter{sink: sink, max: max, logger: logger}
}

// Write never fails: a broken sink is dropped so the child keeps running
// and the tail keeps filling.
func (t *tailWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sink != nil {
		if _, err := t.sink.Write(p); err != nil {
			t.logger.Warn("output sink failed, continuing without it", "error", err)
			t.sink = nil
		}
	}

	data := p
	if t.afterCR && len(data) > 0 && data[0] == '\n' {
		data = data[1:]
	}
	t.afterCR = false

	for len(data) > 0 {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			t.appendPartial(data)
			break
		}
		t.appendPartial(data[:i])
		t.push(string(t.partial))
		t.partial = t.partial[:0]

		if data[i] == '\r' {
			if i+1 == len(data) {
				t.afterCR = true
			} else if data[i+1] == '\n' {
				i++
			}
		}
		data = data[i+1:]
	}
	return len(p), nil
}

func (t *tailWriter) appendPartial(b []byte) {
	t.partial = append(t.partial, b...)
	if over := len(t.partial) - maxPartialBytes; over > 0 {
		n := copy(t.partial, t.partial[over:])
		t.partial = t.partial[:n]
	}
}

func (t *tailWriter) push(line string) {
	if len(t.lines) == t.max {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.max-1]
	}
	t.lines = append(t.lines, line)
}

// Lines returns the retained lines, including an unterminated last line.
func (t *tailWriter) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.lines), len(t.lines)+1)
	copy(out, t.lines)
	if len(t.partial) > 0 {
		out = append(out, string(t.partial))
		if len(out) > t.max {
			out = out[1:]
		}
	}
	return out
}

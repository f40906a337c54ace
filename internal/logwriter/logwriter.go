// Package logwriter implements the reader side of the Log Channel: it
// reads one message per read(2) from the named pipe, assigns a monotonic
// sequence number and a wall-clock timestamp, and appends the result to a
// log file. Sequence numbers are owned exclusively by this package; no
// other component may assign them.
package logwriter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// timestampLayout matches the original log-writer's "%Y-%m-%d %H:%M:%S".
const timestampLayout = "2006-01-02 15:04:05"

// Writer reads framed messages from an io.Reader (the Log Channel's
// named pipe, opened for reading) and appends sequenced, timestamped
// lines to an io.Writer (the log file).
type Writer struct {
	seq uint64
	out *bufio.Writer
	// now is overridable for deterministic tests.
	now func() time.Time
}

// New creates a Writer appending to out, starting sequence numbers at 0.
func New(out io.Writer) *Writer {
	return &Writer{out: bufio.NewWriter(out), now: time.Now}
}

// Run reads up to maxMessageBytes at a time from in until EOF (the
// gateway process closed its writing end), appending one sequenced line
// per message read. Returns nil on a clean EOF.
func (w *Writer) Run(in io.Reader, maxMessageBytes int) error {
	buf := make([]byte, maxMessageBytes)

	for {
		n, err := in.Read(buf)
		if n > 0 {
			w.appendLine(string(buf[:n]))
			if flushErr := w.out.Flush(); flushErr != nil {
				return fmt.Errorf("logwriter: flush: %w", flushErr)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("logwriter: read: %w", err)
		}
	}
}

// appendLine writes "<seq> <timestamp> <payload>\n", incrementing seq
// from 0 as the original's log-writer did.
func (w *Writer) appendLine(payload string) {
	line := fmt.Sprintf("%d %s %s\n", w.seq, w.now().Format(timestampLayout), payload)
	w.seq++
	_, _ = w.out.WriteString(line)
}

// LastSequence returns the most recently assigned sequence number, for
// metrics reporting by the process hosting this Writer. Returns 0 if no
// message has been appended yet, matching the pre-increment state.
func (w *Writer) LastSequence() uint64 {
	if w.seq == 0 {
		return 0
	}
	return w.seq - 1
}

// OpenLogFile opens path for appending, creating it if necessary.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logwriter: open %s: %w", path, err)
	}
	return f, nil
}

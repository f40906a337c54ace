//go:build linux

package logchan_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ekiciact/SensorNet-Manager/internal/logchan"
)

func TestOpenCreatesFIFO(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.fifo")

	// Open blocks until a reader attaches, so exercise it from a goroutine
	// with a concurrent reader.
	done := make(chan error, 1)
	go func() {
		w, err := logchan.Open(path, logchan.MaxMessageBytes)
		if err != nil {
			done <- err
			return
		}
		w.Logf("hello %d", 1)
		done <- w.Close()
	}()

	var f *os.File
	var err error
	for i := 0; i < 100; i++ {
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("open fifo for reading: %v", err)
	}
	defer f.Close()

	buf := make([]byte, logchan.MaxMessageBytes)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if got := string(buf[:n]); got != "hello 1" {
		t.Errorf("message = %q, want %q", got, "hello 1")
	}

	if err := <-done; err != nil {
		t.Fatalf("writer goroutine error: %v", err)
	}
}

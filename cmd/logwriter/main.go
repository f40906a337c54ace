// Command logwriter is the Log Channel's reader side: it opens the named
// pipe the gateway process writes to, assigns each message a sequence
// number and timestamp, and appends the result to a log file. It exits
// once the gateway closes its end of the pipe.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/ekiciact/SensorNet-Manager/internal/logwriter"
)

func main() {
	os.Exit(run())
}

func run() int {
	fifoPath := flag.String("fifo", "", "path to the log channel named pipe")
	logFilePath := flag.String("logfile", "", "path to the log file to append to")
	maxMessageBytes := flag.Int("max-message-bytes", 1024, "maximum bytes read per message")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *fifoPath == "" || *logFilePath == "" {
		logger.Error("both -fifo and -logfile are required")
		return 2
	}

	in, err := os.OpenFile(*fifoPath, os.O_RDONLY, 0)
	if err != nil {
		logger.Error("open fifo for reading", slog.String("error", err.Error()))
		return 1
	}
	defer in.Close()

	out, err := logwriter.OpenLogFile(*logFilePath)
	if err != nil {
		logger.Error("open log file", slog.String("error", err.Error()))
		return 1
	}
	defer out.Close()

	w := logwriter.New(out)
	if err := w.Run(in, *maxMessageBytes); err != nil {
		logger.Error("logwriter run", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("logwriter exiting", slog.Uint64("last_sequence", w.LastSequence()))
	return 0
}

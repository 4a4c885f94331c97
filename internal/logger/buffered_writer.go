package logger

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultBufferSize is the write buffer for log files.
const DefaultBufferSize = 32 * 1024

// DefaultFlushInterval is how often buffered lines are pushed to the OS.
const DefaultFlushInterval = 5 * time.Second

// LogFilePermissions is the mode used when creating log files.
const LogFilePermissions = 0o600

// BufferedFileWriter wraps a file with buffered, periodically flushed I/O.
// It is safe for concurrent use.
type BufferedFileWriter struct {
	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	stopFlush chan struct{}
	flushDone chan struct{}
	closed    bool
}

// NewBufferedFileWriter opens filePath in append mode and starts the
// auto-flush loop.
func NewBufferedFileWriter(filePath string) (*BufferedFileWriter, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
	}

	w := &BufferedFileWriter{
		file:      file,
		writer:    bufio.NewWriterSize(file, DefaultBufferSize),
		stopFlush: make(chan struct{}),
		flushDone: make(chan struct{}),
	}
	go w.autoFlushLoop(DefaultFlushInterval)

	return w, nil
}

func (w *BufferedFileWriter) autoFlushLoop(interval time.Duration) {
	defer close(w.flushDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stopFlush:
			return
		}
	}
}

// Write implements io.Writer
func (w *BufferedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, os.ErrClosed
	}
	return w.writer.Write(p)
}

// Flush pushes buffered data to the file.
func (w *BufferedFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	return w.writer.Flush()
}

// Close stops the flush loop, flushes, syncs and closes the file.
func (w *BufferedFileWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	flushErr := w.writer.Flush()
	w.mu.Unlock()

	close(w.stopFlush)
	<-w.flushDone

	syncErr := w.file.Sync()
	closeErr := w.file.Close()

	switch {
	case flushErr != nil:
		return fmt.Errorf("failed to flush log file: %w", flushErr)
	case syncErr != nil:
		return fmt.Errorf("failed to sync log file: %w", syncErr)
	default:
		return closeErr
	}
}

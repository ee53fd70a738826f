package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"watchkeeper/internal/metrics"
)

const (
	queueSize = 1024
	tailChunk = 8 * 1024
)

var ErrSinkClosed = errors.New("log sink closed")

type entry struct {
	data []byte
	ack  chan struct{}
}

// Sink is the append-only log stream shared by the worker's output and the
// supervisor's own log lines. Writes are queued and persisted by a single
// goroutine, so a slow disk never blocks the writer. When the queue is full
// the chunk is dropped and counted.
type Sink struct {
	path string
	out  io.WriteCloser

	mu     sync.RWMutex
	closed bool
	queue  chan entry
	done   chan struct{}
}

// NewSink opens path for appending. Files are rotated at maxSizeMB; rotated
// files are kept, nothing is deleted or truncated.
func NewSink(path string, maxSizeMB int) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create log dir for %s", path)
	}
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 0,
		MaxAge:     0,
		Compress:   false,
	}
	return newSink(path, out), nil
}

func newSink(path string, out io.WriteCloser) *Sink {
	s := &Sink{
		path:  path,
		out:   out,
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	defer close(s.done)
	for e := range s.queue {
		if e.ack != nil {
			close(e.ack)
			continue
		}
		if _, err := s.out.Write(e.data); err != nil {
			// Nowhere else to report it without recursing into the sink.
			os.Stderr.WriteString("watchkeeper: log write failed: " + err.Error() + "\n")
		}
	}
}

// Write queues a copy of p. It never blocks on disk I/O.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrSinkClosed
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case s.queue <- entry{data: buf}:
	default:
		metrics.LogDroppedChunks.Inc()
	}
	return len(p), nil
}

// Sync blocks until everything queued before the call has been written.
func (s *Sink) Sync() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSinkClosed
	}
	ack := make(chan struct{})
	s.queue <- entry{ack: ack}
	s.mu.RUnlock()
	<-ack
	return nil
}

// Close drains the queue and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.out.Close()
}

// Path returns the active log file.
func (s *Sink) Path() string {
	return s.path
}

// Tail returns the last n complete lines of the active log file, including
// everything written to the sink before the call.
func (s *Sink) Tail(n int) []string {
	_ = s.Sync()
	return TailFile(s.path, n)
}

// TailFile returns the last n complete lines of path, reading backwards from
// the end. A missing or unreadable file yields an empty result.
func TailFile(path string, n int) []string {
	if n <= 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil
	}

	var buf []byte
	offset := st.Size()
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		size := int64(tailChunk)
		if offset < size {
			size = offset
		}
		offset -= size
		part := make([]byte, size)
		if _, err := f.ReadAt(part, offset); err != nil && err != io.EOF {
			return nil
		}
		buf = append(part, buf...)
	}

	// Anything after the last newline is a line still being written.
	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		return nil
	}
	lines := strings.Split(string(buf[:end]), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}

package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxSize = 5 * 1024 * 1024

// FileSink mirrors everything written to the process log into a size-capped
// file. When a write would push the file past the cap, the current file is
// renamed to <path>.1 and a fresh one is started, so at most one backup
// exists and no file ever exceeds the cap.
type FileSink struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup opens the sink at path and tees the stdlib logger to stdout and the
// sink. The returned sink must be closed on shutdown.
func Setup(path string) (*FileSink, error) {
	sink, err := NewFileSink(path, defaultMaxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, sink))
	return sink, nil
}

// NewFileSink opens (or creates) the log file at path. A leftover file
// already past maxSize is rotated away rather than appended to, so old
// entries survive a restart as the backup.
func NewFileSink(path string, maxSize int64) (*FileSink, error) {
	s := &FileSink{path: path, maxSize: maxSize}

	if info, err := os.Stat(path); err == nil && info.Size() >= maxSize {
		os.Rename(path, path+".1")
	}

	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	s.file = f
	s.size = 0
	if info, err := f.Stat(); err == nil {
		s.size = info.Size()
	}
	return nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size > 0 && s.size+int64(len(p)) > s.maxSize {
		s.rotate()
	}

	n, err := s.file.Write(p)
	s.size += int64(n)
	return n, err
}

// rotate swaps the current file out for a fresh one. A failed reopen leaves
// the old handle in place; losing rotation beats losing the log.
func (s *FileSink) rotate() {
	old := s.file
	os.Rename(s.path, s.path+".1")

	if err := s.open(); err != nil {
		s.file = old
		return
	}
	old.Close()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Package spool provides the temp-file backed byte stream carried
// between pipeline stages: the network stage writes into it, completion
// finalizes it (flush plus rewind), and the decode/parse stage reads it.
// Closing removes the backing file.
package spool

import (
	"fmt"
	"io"
	"os"
)

// Stream is the seekable, readable byte-stream contract consumed by the
// decode/parse stage.
type Stream interface {
	io.Reader
	io.Seeker
	io.Closer
}

// File is a temp-file backed Stream that deletes its file on Close.
type File struct {
	f    *os.File
	path string
}

// New creates an empty spool file in dir ("" means the OS temp dir).
func New(dir string) (*File, error) {
	f, err := os.CreateTemp(dir, "lumen-spool-*")
	if err != nil {
		return nil, fmt.Errorf("spool: create temp file: %w", err)
	}
	return &File{f: f, path: f.Name()}, nil
}

// Write appends to the spool. Used by the producing stage only.
func (s *File) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

// Read reads from the current position.
func (s *File) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

// Seek repositions the read cursor.
func (s *File) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

// Finalize flushes buffered writes and rewinds to the start, preparing
// the spool for the consuming stage. Called exactly once, by the side
// that finished writing.
func (s *File) Finalize() error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("spool: sync: %w", err)
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("spool: rewind: %w", err)
	}
	return nil
}

// Size reports the number of bytes written so far.
func (s *File) Size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes and removes the backing file.
func (s *File) Close() error {
	err := s.f.Close()
	if rmErr := os.Remove(s.path); err == nil {
		err = rmErr
	}
	return err
}

// Path returns the backing file path. Exposed for logging only.
func (s *File) Path() string {
	return s.path
}

package persistence

import (
	"io"

	"github.com/pkg/errors"
)

// Store represents persistent storage.
type Store struct {
	dev Dev
}

// OpenStore opens the persistent store.
func OpenStore(dev Dev) *Store {
	return &Store{
		dev: dev,
	}
}

// Read reads bytes stored at offset.
func (s *Store) Read(offset int64, p []byte) error {
	if len(p) == 0 || offset < 0 || offset+int64(len(p)) > s.dev.Size() {
		return errors.Errorf("invalid read of %d bytes at offset %d, size: %d", len(p), offset, s.dev.Size())
	}

	if _, err := s.dev.Seek(offset, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.ReadFull(s.dev, p); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Write writes bytes at offset.
func (s *Store) Write(offset int64, p []byte) error {
	if len(p) == 0 || offset < 0 || offset > s.dev.Size() {
		return errors.Errorf("invalid write of %d bytes at offset %d, size: %d", len(p), offset, s.dev.Size())
	}

	if _, err := s.dev.Seek(offset, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := s.dev.Write(p); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Size returns the size of the store.
func (s *Store) Size() int64 {
	return s.dev.Size()
}

// Truncate changes the size of the store.
func (s *Store) Truncate(size int64) error {
	return errors.WithStack(s.dev.Truncate(size))
}

// Sync forces data to be written to the dev.
func (s *Store) Sync() error {
	return errors.WithStack(s.dev.Sync())
}

// Close syncs and closes the dev.
func (s *Store) Close() error {
	if err := s.Sync(); err != nil {
		_ = s.dev.Close()
		return err
	}
	return errors.WithStack(s.dev.Close())
}
